package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "user-ingest/docs"
	"user-ingest/internal/auth"
	"user-ingest/internal/metrics"
)

const healthMessage = "API is running successfully!"

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)

	// Public
	r.Get("/", a.Health)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Secured when a JWT secret is configured
	r.Group(func(r chi.Router) {
		r.Use(a.Auth.Middleware)

		r.Get("/data", a.ListData)
	})

	return r
}

// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} MessageResponse
// @Router / [get]
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: healthMessage})
}

// @Summary Readiness check against the store
// @Tags Health
// @Produce json
// @Success 200 {object} StatusResponse
// @Failure 503 {object} ErrorResponse
// @Router /readyz [get]
func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.QueryTimeout)
	defer cancel()

	if err := a.Storage.Ping(ctx); err != nil {
		a.Log.Warn("Store is not ready", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// @Summary List all ingested records
// @Tags Records
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} DataResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /data [get]
func (a *API) ListData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.QueryTimeout)
	defer cancel()

	records, err := a.Storage.ListRecords(ctx)
	if err != nil {
		a.Log.Error("Failed to list records", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	if sub := auth.GetSubject(r); sub != "" {
		a.Log.Debug("Records listed", zap.String("subject", sub), zap.Int("count", len(records)))
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
