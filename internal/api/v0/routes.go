// Package v0 provides the REST API handlers for the billing sync server.
package v0

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/signals"
	pkgsync "github.com/revenuleaks/billing-sync-server/internal/sync"
	"github.com/revenuleaks/billing-sync-server/internal/sync/state"
	"github.com/revenuleaks/billing-sync-server/internal/versions"
)

const (
	// defaultSignalLimit is applied when the limit query parameter is absent
	defaultSignalLimit = 50

	// maxSignalLimit caps the limit query parameter
	maxSignalLimit = 500
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SyncRequest is the body of a sync trigger request
type SyncRequest struct {
	AccountID string `json:"account_id"`
	Force     bool   `json:"force,omitempty"`
}

// SyncTriggerResponse reports the outcome of a sync trigger request
type SyncTriggerResponse struct {
	AccountID string `json:"account_id"`
	Result    string `json:"result"`
	Message   string `json:"message,omitempty"`
}

// DetectRequest is the body of a signal detection request
type DetectRequest struct {
	AccountID string `json:"account_id"`
}

// DetectResponse reports the outcome of an on-demand signal detection run
type DetectResponse struct {
	AccountID string                  `json:"account_id"`
	Inserted  int                     `json:"inserted"`
	Signals   []signals.RevenueSignal `json:"signals"`
}

// SignalsResponse is a page of revenue signals
type SignalsResponse struct {
	Signals []signals.RevenueSignal `json:"signals"`
	Total   int64                   `json:"total"`
}

// ReadinessChecker reports whether the server's backing stores are reachable.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Dependencies groups the components the v0 routes are built from.
type Dependencies struct {
	Config     *config.Config
	Dispatcher pkgsync.Dispatcher
	State      state.AccountStateService
	Snapshots  aggregates.Store
	Signals    signals.Store
	Detection  *signals.Service
}

// Routes defines the routes for the sync API with dependency injection
type Routes struct {
	config      *config.Config
	dispatcher  pkgsync.Dispatcher
	state       state.AccountStateService
	snapshots   aggregates.Store
	signalStore signals.Store
	detection   *signals.Service
}

// NewRoutes creates a new Routes instance with the provided dependencies
func NewRoutes(deps Dependencies) *Routes {
	return &Routes{
		config:      deps.Config,
		dispatcher:  deps.Dispatcher,
		state:       deps.State,
		snapshots:   deps.Snapshots,
		signalStore: deps.Signals,
		detection:   deps.Detection,
	}
}

// Router creates a new router for the sync API
func Router(deps Dependencies) http.Handler {
	routes := NewRoutes(deps)

	r := chi.NewRouter()

	r.Post("/sync", routes.triggerSync)
	r.Get("/sync/status", routes.getSyncStatus)

	r.Get("/signals", routes.listSignals)
	r.Post("/signals/detect", routes.detectSignals)

	r.Get("/metrics", routes.getLatestMetrics)

	return r
}

// triggerSync handles POST /api/v0/sync
//
// @Summary		Trigger an account sync
// @Description	Queue a full billing sync for the account. Returns immediately, progress is reported via the status endpoint
// @Tags			sync
// @Accept			json
// @Produce		json
// @Param			request	body		SyncRequest	true	"Sync trigger request"
// @Success		202		{object}	SyncTriggerResponse
// @Success		200		{object}	SyncTriggerResponse	"Sync skipped, last run is recent enough"
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Failure		409		{object}	SyncTriggerResponse	"A sync for this account is already running"
// @Failure		503		{object}	SyncTriggerResponse
// @Router			/api/v0/sync [post]
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rr.writeErrorResponse(w, "Invalid request body: expected JSON with account_id", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		rr.writeErrorResponse(w, "account_id is required", http.StatusBadRequest)
		return
	}
	if _, ok := rr.config.GetAccount(req.AccountID); !ok {
		rr.writeErrorResponse(w, "Unknown account: "+req.AccountID, http.StatusNotFound)
		return
	}

	result := rr.dispatcher.Trigger(r.Context(), req.AccountID, req.Force)

	resp := SyncTriggerResponse{
		AccountID: req.AccountID,
		Result:    string(result.Outcome),
		Message:   result.Message,
	}

	switch result.Outcome {
	case pkgsync.OutcomeTriggered:
		rr.writeJSONResponse(w, http.StatusAccepted, resp)
	case pkgsync.OutcomeSkipped:
		rr.writeJSONResponse(w, http.StatusOK, resp)
	case pkgsync.OutcomeAlreadySyncing:
		rr.writeJSONResponse(w, http.StatusConflict, resp)
	default:
		rr.writeJSONResponse(w, http.StatusServiceUnavailable, resp)
	}
}

// getSyncStatus handles GET /api/v0/sync/status
//
// @Summary		Get sync status
// @Description	Get the current sync status of the account, including stage, progress, and last successful sync time
// @Tags			sync
// @Produce		json
// @Param			account_id	query		string	true	"Account identifier"
// @Success		200			{object}	status.SyncStatus
// @Failure		400			{object}	ErrorResponse
// @Failure		404			{object}	ErrorResponse
// @Router			/api/v0/sync/status [get]
func (rr *Routes) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		rr.writeErrorResponse(w, "account_id query parameter is required", http.StatusBadRequest)
		return
	}
	if _, ok := rr.config.GetAccount(accountID); !ok {
		rr.writeErrorResponse(w, "Unknown account: "+accountID, http.StatusNotFound)
		return
	}

	syncStatus, err := rr.state.GetSyncStatus(r.Context(), accountID)
	if err != nil {
		slog.Error("Failed to load sync status", "account_id", accountID, "error", err)
		rr.writeErrorResponse(w, "Failed to load sync status", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, http.StatusOK, syncStatus)
}

// listSignals handles GET /api/v0/signals
//
// @Summary		List revenue signals
// @Description	List detected revenue signals newest-first, optionally scoped to one account
// @Tags			signals
// @Produce		json
// @Param			account_id	query		string	false	"Account identifier"
// @Param			limit		query		int		false	"Maximum number of signals to return"	default(50)
// @Success		200			{object}	SignalsResponse
// @Failure		400			{object}	ErrorResponse
// @Failure		404			{object}	ErrorResponse
// @Router			/api/v0/signals [get]
func (rr *Routes) listSignals(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultSignalLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		limitVal, err := strconv.Atoi(limitStr)
		if err != nil || limitVal <= 0 {
			rr.writeErrorResponse(w, "Invalid limit parameter: must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(limitVal, maxSignalLimit)
	}

	accountID := query.Get("account_id")
	if accountID == "" {
		signalList, err := rr.signalStore.ListAllSignals(r.Context(), limit)
		if err != nil {
			slog.Error("Failed to list signals", "error", err)
			rr.writeErrorResponse(w, "Failed to list signals", http.StatusInternalServerError)
			return
		}

		rr.writeJSONResponse(w, http.StatusOK, SignalsResponse{
			Signals: signalList,
			Total:   int64(len(signalList)),
		})
		return
	}

	if _, ok := rr.config.GetAccount(accountID); !ok {
		rr.writeErrorResponse(w, "Unknown account: "+accountID, http.StatusNotFound)
		return
	}

	signalList, err := rr.signalStore.ListSignals(r.Context(), accountID, limit)
	if err != nil {
		slog.Error("Failed to list signals", "account_id", accountID, "error", err)
		rr.writeErrorResponse(w, "Failed to list signals", http.StatusInternalServerError)
		return
	}

	total, err := rr.signalStore.CountSignals(r.Context(), accountID)
	if err != nil {
		slog.Error("Failed to count signals", "account_id", accountID, "error", err)
		rr.writeErrorResponse(w, "Failed to list signals", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, http.StatusOK, SignalsResponse{
		Signals: signalList,
		Total:   total,
	})
}

// detectSignals handles POST /api/v0/signals/detect
//
// @Summary		Run signal detection
// @Description	Run the detection heuristics against the account's recorded metric snapshots and persist any new signals
// @Tags			signals
// @Accept			json
// @Produce		json
// @Param			request	body		DetectRequest	true	"Detection request"
// @Success		200		{object}	DetectResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Router			/api/v0/signals/detect [post]
func (rr *Routes) detectSignals(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rr.writeErrorResponse(w, "Invalid request body: expected JSON with account_id", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		rr.writeErrorResponse(w, "account_id is required", http.StatusBadRequest)
		return
	}
	if _, ok := rr.config.GetAccount(req.AccountID); !ok {
		rr.writeErrorResponse(w, "Unknown account: "+req.AccountID, http.StatusNotFound)
		return
	}
	if rr.detection == nil {
		rr.writeErrorResponse(w, "Signal detection is not configured", http.StatusServiceUnavailable)
		return
	}

	inserted, err := rr.detection.DetectAndPersist(r.Context(), req.AccountID)
	if err != nil {
		slog.Error("Signal detection failed", "account_id", req.AccountID, "error", err)
		rr.writeErrorResponse(w, "Signal detection failed", http.StatusInternalServerError)
		return
	}

	if inserted == nil {
		inserted = []signals.RevenueSignal{}
	}

	rr.writeJSONResponse(w, http.StatusOK, DetectResponse{
		AccountID: req.AccountID,
		Inserted:  len(inserted),
		Signals:   inserted,
	})
}

// getLatestMetrics handles GET /api/v0/metrics
//
// @Summary		Get latest metric snapshot
// @Description	Get the most recent metric snapshot recorded for the account
// @Tags			metrics
// @Produce		json
// @Param			account_id	query		string	true	"Account identifier"
// @Success		200			{object}	aggregates.MetricSnapshot
// @Failure		400			{object}	ErrorResponse
// @Failure		404			{object}	ErrorResponse
// @Router			/api/v0/metrics [get]
func (rr *Routes) getLatestMetrics(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		rr.writeErrorResponse(w, "account_id query parameter is required", http.StatusBadRequest)
		return
	}
	if _, ok := rr.config.GetAccount(accountID); !ok {
		rr.writeErrorResponse(w, "Unknown account: "+accountID, http.StatusNotFound)
		return
	}

	snapshot, err := rr.snapshots.LatestSnapshot(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, aggregates.ErrNoSnapshot) {
			rr.writeErrorResponse(w, "No metric snapshot recorded for account: "+accountID, http.StatusNotFound)
			return
		}
		slog.Error("Failed to load metric snapshot", "account_id", accountID, "error", err)
		rr.writeErrorResponse(w, "Failed to load metric snapshot", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, http.StatusOK, snapshot)
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(checker ReadinessChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(checker))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
//
// @Summary		Health check
// @Description	Check if the sync API is healthy
// @Tags			system
// @Produce		json
// @Success		200	{object}	map[string]string
// @Router			/health [get]
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler handles readiness check requests
//
// @Summary		Readiness check
// @Description	Check if the sync API is ready to serve requests
// @Tags			system
// @Produce		json
// @Success		200	{object}	map[string]string
// @Failure		503	{object}	ErrorResponse
// @Router			/readiness [get]
func readinessHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.CheckReadiness(r.Context()); err != nil {
				errorResp := ErrorResponse{
					Error: "Server not ready: " + err.Error(),
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				if encodeErr := json.NewEncoder(w).Encode(errorResp); encodeErr != nil {
					slog.Error("Failed to encode readiness error response", "error", encodeErr)
				}
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// versionHandler handles version information requests
//
// @Summary		Version information
// @Description	Get version information about the sync API
// @Tags			system
// @Produce		json
// @Success		200	{object}	map[string]string
// @Router			/version [get]
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	response := map[string]string{
		"version":    info.Version,
		"commit":     info.Commit,
		"build_date": info.BuildDate,
		"go_version": info.GoVersion,
		"platform":   info.Platform,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode version info", "error", err)
	}
}

// writeJSONResponse writes a JSON response with the given status code and data
func (*Routes) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (*Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	errorResp := ErrorResponse{
		Error: message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
