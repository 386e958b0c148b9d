package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes. A nil metrics handler leaves /metrics unrouted.
func SetupRoutes(handler *Handler, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(handler.RequestLogger)

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}

	// Holdings routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/holdings", handler.GetHoldings).Methods("GET")
	api.HandleFunc("/holdings", handler.AppendHoldings).Methods("POST")
	api.HandleFunc("/holdings", handler.DeleteHoldings).Methods("DELETE")
	api.HandleFunc("/holdings/refresh", handler.RefreshHoldings).Methods("POST")

	return r
}
