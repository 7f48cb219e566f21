package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/revenuleaks/billing-sync-server/internal/config"
)

// NewAuthMiddleware creates authentication middleware based on config.
func NewAuthMiddleware(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	mode := config.AuthModeNone
	if cfg != nil {
		mode = cfg.GetAuthMode()
	}

	switch mode {
	case config.AuthModeNone:
		slog.Warn("API authentication disabled, sync and detection endpoints accept unauthenticated requests")
		return anonymousMiddleware, nil
	case config.AuthModeToken:
		token, err := cfg.Auth.GetToken()
		if err != nil {
			return nil, fmt.Errorf("failed to load API token: %w", err)
		}

		validator, err := NewStaticTokenValidator(token)
		if err != nil {
			return nil, fmt.Errorf("failed to create token validator: %w", err)
		}

		m, err := newTokenMiddleware(validator, defaultRealm)
		if err != nil {
			return nil, err
		}

		slog.Info("API authentication enabled", "mode", config.AuthModeToken)
		return m.Middleware, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", mode)
	}
}

// anonymousMiddleware is a no-op middleware that passes requests through without authentication.
func anonymousMiddleware(next http.Handler) http.Handler {
	return next
}
