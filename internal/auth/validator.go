package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// ErrInvalidToken indicates the presented token does not match the configured secret.
var ErrInvalidToken = errors.New("invalid token")

// TokenValidator checks bearer credentials presented on API requests.
type TokenValidator interface {
	// ValidateToken returns nil when the token is accepted.
	ValidateToken(ctx context.Context, token string) error
}

// staticTokenValidator accepts a single pre-shared token.
//
// Both sides of the comparison are hashed first, so the comparison is
// constant time and does not leak the configured token's length.
type staticTokenValidator struct {
	digest [sha256.Size]byte
}

// NewStaticTokenValidator creates a validator for a pre-shared token.
func NewStaticTokenValidator(token string) (TokenValidator, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}

	return &staticTokenValidator{
		digest: sha256.Sum256([]byte(token)),
	}, nil
}

// ValidateToken compares the presented token against the configured secret.
func (v *staticTokenValidator) ValidateToken(_ context.Context, token string) error {
	presented := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(v.digest[:], presented[:]) != 1 {
		return ErrInvalidToken
	}
	return nil
}
