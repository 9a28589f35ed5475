package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

func (h *Handler) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var batch v1alpha1.AnalyticsBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.respondError(w, ErrTooLarge("request body too large"))
			return
		}
		h.respondError(w, ErrInvalidRequest("invalid request body"))
		return
	}

	result, err := h.service.IngestBatch(r.Context(), &batch)
	if err != nil {
		h.logger.Warn().Err(err).
			Str("sessionId", r.Header.Get("X-Session-ID")).
			Int("records", batch.Len()).
			Msg("batch rejected")
		h.respondError(w, err)
		return
	}

	if batch.Empty() {
		h.respondJSON(w, http.StatusNoContent, nil)
		return
	}

	h.respondJSON(w, http.StatusAccepted, result)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.respondError(w, ErrInvalidRequest("session id is required"))
		return
	}

	summary, err := h.service.SessionSummary(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleGetPageMetrics(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, ErrInvalidRequest("url parameter is required"))
		return
	}

	since, err := parseSince(r.URL.Query().Get("since"), time.Now())
	if err != nil {
		h.respondError(w, ErrInvalidRequest("since must be RFC3339 or a duration such as 24h"))
		return
	}

	metrics, err := h.service.PageMetrics(r.Context(), url, since)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, metrics)
}

// parseSince accepts an RFC3339 time or a look-back duration. An empty value
// yields the zero time so the service applies its default window.
func parseSince(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}
	return time.Parse(time.RFC3339, v)
}
