package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trogers1052/holdings-service/internal/logging"
	"github.com/trogers1052/holdings-service/internal/models"
	"github.com/trogers1052/holdings-service/internal/presentation"
)

// ViewModel is the presentation side the handlers read and trigger
type ViewModel interface {
	State() presentation.State
	RowsErr() error
	NotifyViewReady()
}

// LocalStore is the subset of the holdings service exposed for maintenance
type LocalStore interface {
	Append(ctx context.Context, holdings []models.Holding) error
	Delete(ctx context.Context) error
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	view   ViewModel
	store  LocalStore
	db     Pinger
	logger logrus.FieldLogger
}

// NewHandler creates a new Handler. store and db may be nil.
func NewHandler(view ViewModel, store LocalStore, db Pinger, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		view:   view,
		store:  store,
		db:     db,
		logger: logger.WithField("component", "api"),
	}
}

// RequestLogger attaches a request-scoped logger to the context and logs each request.
func (h *Handler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := h.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), logger)))
		logger.WithField("elapsed", time.Since(start)).Debug("Handled request")
	})
}

type stateResponse struct {
	presentation.State
	ShowError bool   `json:"show_error"`
	RowsError string `json:"rows_error,omitempty"`
}

// GetHoldings handles GET /holdings
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	st := h.view.State()
	resp := stateResponse{State: st, ShowError: st.ShowError()}
	if err := h.view.RowsErr(); err != nil {
		resp.RowsError = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// RefreshHoldings handles POST /holdings/refresh
func (h *Handler) RefreshHoldings(w http.ResponseWriter, r *http.Request) {
	h.view.NotifyViewReady()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

// AppendHoldings handles POST /holdings
func (h *Handler) AppendHoldings(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "local store not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Holdings []json.RawMessage `json:"holdings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	holdings, errs := models.DecodeHoldings(req.Holdings)
	if len(errs) > 0 {
		http.Error(w, errs[0].Error(), http.StatusBadRequest)
		return
	}
	if len(holdings) == 0 {
		http.Error(w, "holdings are required", http.StatusBadRequest)
		return
	}

	if err := h.store.Append(r.Context(), holdings); err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("Failed to append holdings")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]int{"appended": len(holdings)})
}

// DeleteHoldings handles DELETE /holdings
func (h *Handler) DeleteHoldings(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "local store not configured", http.StatusServiceUnavailable)
		return
	}

	if err := h.store.Delete(r.Context()); err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("Failed to delete holdings")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
