// Package http exposes the telemetry ingest service over HTTP
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wrale/wrale-lexdesk/internal/lexd/telemetry"
)

// DefaultMaxBodyBytes limits batch bodies when no limit is configured
const DefaultMaxBodyBytes = 1 << 20

type Handler struct {
	service      telemetry.Service
	logger       zerolog.Logger
	maxBodyBytes int64
}

func NewHandler(service telemetry.Service, logger zerolog.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		service:      service,
		logger:       logger.With().Str("component", "telemetry-http").Logger(),
		maxBodyBytes: maxBodyBytes,
	}
}

// Router returns a router with all telemetry endpoints mounted at its root.
// The given middlewares wrap every route.
func (h *Handler) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the telemetry endpoints on the provided router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/batch", h.handleIngestBatch)
	r.Get("/sessions/{id}", h.handleGetSession)
	r.Get("/pages/metrics", h.handleGetPageMetrics)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	msg := "internal server error"

	if he := toHTTPError(err); he != nil {
		code = he.StatusCode()
		msg = he.Error()
	} else {
		h.logger.Error().Err(err).Msg("request failed")
	}

	h.respondJSON(w, code, map[string]string{"error": msg})
}
