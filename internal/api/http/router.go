package http

import (
	"context"
	"net/http"
	"time"

	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/security"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter registers every API route
func NewRouter(h *RentalHandler, tokens security.TokenManager, store Pinger) *mux.Router {
	router := mux.NewRouter()
	router.Use(Recovery, RequestLogging, Metrics)

	auth := authenticator{tokens: tokens}

	router.HandleFunc("/health", healthHandler(store)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/rentals").Subrouter()
	api.HandleFunc("/equipment", h.ListEquipment).Methods(http.MethodGet)
	api.HandleFunc("/quote", h.Quote).Methods(http.MethodPost)
	api.HandleFunc("", auth.requireUser(h.CreateRental)).Methods(http.MethodPost)
	api.HandleFunc("", auth.requireUser(h.ListRentals)).Methods(http.MethodGet)
	api.HandleFunc("/{id}", auth.requireUser(h.GetRental)).Methods(http.MethodGet)
	api.HandleFunc("/{id}/extend", auth.requireUser(h.ExtendRental)).Methods(http.MethodPut)
	api.HandleFunc("/{id}/cancel", auth.requireUser(h.CancelRental)).Methods(http.MethodPut)
	api.HandleFunc("/{id}/status", auth.requireAdmin(h.UpdateStatus)).Methods(http.MethodPut)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "route not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return router
}

func rentalID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func healthHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "Health check failed", "error", err)
			writeFailure(w, http.StatusServiceUnavailable, "database unreachable", map[string]string{"status": "unhealthy"})
			return
		}
		writeSuccess(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
