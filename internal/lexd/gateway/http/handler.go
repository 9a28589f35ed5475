// Package http serves the offline cache gateway: the intercepting proxy and
// the /_gateway control surface
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
	"github.com/wrale/wrale-lexdesk/internal/lexd/gateway"
	"github.com/wrale/wrale-lexdesk/internal/lexd/ratelimit"
)

const (
	// ControlPrefix is where the control routes are mounted
	ControlPrefix = "/_gateway"

	maxProxyBodyBytes   = 10 << 20
	maxControlBodyBytes = 64 << 10

	headerSource   = "X-Gateway-Source"
	headerStrategy = "X-Gateway-Strategy"
)

// Handler exposes a gateway worker over HTTP
type Handler struct {
	worker *gateway.Worker
	hub    *Hub
	logger *slog.Logger
}

// NewHandler creates a handler. The hub must be the worker's Clients.
func NewHandler(worker *gateway.Worker, hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{
		worker: worker,
		hub:    hub,
		logger: logger.With("component", "gateway-http"),
	}
}

// Router returns the control routes. limits may be nil.
func (h *Handler) Router(limits *ratelimit.CommonRateLimiters) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.NoCache)

	r.Get("/status", h.handleStatus)

	r.Group(func(r chi.Router) {
		if limits != nil {
			r.Use(limits.GatewayControlLimiter())
		}
		r.Post("/message", h.handleMessage)
		r.Post("/push", h.handlePush)
		r.Post("/notificationclick", h.handleNotificationClick)
	})

	ws := chi.NewRouter()
	if limits != nil {
		ws.Use(limits.WebSocketLimiter())
	}
	ws.Get("/", h.handleWs)
	r.Mount("/ws", ws)

	return r
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.worker.Status(r.Context()))
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg v1alpha1.GatewayMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxControlBodyBytes)).Decode(&msg); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid control message")
		return
	}

	if err := h.worker.HandleMessage(r.Context(), msg); err != nil {
		h.logger.Warn("control message failed",
			"error", err,
			"type", msg.Type,
		)
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, h.worker.Status(r.Context()))
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxControlBodyBytes))
	if err != nil {
		h.respondError(w, http.StatusRequestEntityTooLarge, "push payload too large")
		return
	}
	h.respondJSON(w, http.StatusAccepted, h.worker.HandlePush(payload))
}

func (h *Handler) handleNotificationClick(w http.ResponseWriter, r *http.Request) {
	var click v1alpha1.NotificationClick
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxControlBodyBytes)).Decode(&click); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid notification click")
		return
	}
	h.worker.HandleNotificationClick(click.Action)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWs(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWs(w, r, func(msg v1alpha1.GatewayMessage) {
		if err := h.worker.HandleMessage(context.Background(), msg); err != nil {
			h.logger.Warn("control message from client failed",
				"error", err,
				"type", msg.Type,
			)
		}
	})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}

// hopHeaders are connection-scoped and never forwarded
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func stripHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

// ServeHTTP intercepts a page request, answers it through the worker and
// always writes a response
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBodyBytes))
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
	}

	header := r.Header.Clone()
	stripHopHeaders(header)

	res := h.worker.Fetch(r.Context(), gateway.Request{
		Method: r.Method,
		URL:    h.targetURL(r),
		Header: header,
		Body:   body,
	})

	w.Header().Set(headerStrategy, string(res.Strategy))
	w.Header().Set(headerSource, string(res.Source))

	if res.Err != nil {
		h.logger.Warn("pass-through request failed",
			"error", res.Err,
			"url", r.URL.String(),
		)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	resp := res.Response
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	stripHopHeaders(w.Header())
	w.Header().Del("Content-Length")
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		if _, err := w.Write(resp.Body); err != nil {
			h.logger.Debug("failed to write response", "error", err)
		}
	}
}

// targetURL maps an incoming request onto the upstream it stands for.
// Absolute request URIs (forward proxy) are used as-is; requests addressed
// to the partner host go there; everything else goes to the origin.
func (h *Handler) targetURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}

	cfg := h.worker.Config()
	host := r.Host
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	if cfg.PartnerHost != "" && strings.EqualFold(host, cfg.PartnerHost) {
		return "https://" + r.Host + r.URL.RequestURI()
	}
	return cfg.Origin.Scheme + "://" + cfg.Origin.Host + r.URL.RequestURI()
}
