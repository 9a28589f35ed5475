package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
	werrors "github.com/wrale/wrale-lexdesk/internal/lexd/errors"
	"github.com/wrale/wrale-lexdesk/internal/lexd/metrics"
)

type telemetryService struct {
	repo     Repository
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates the ingest service. recorder may be nil.
func NewService(repo Repository, recorder Recorder, logger *slog.Logger) Service {
	return &telemetryService{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *telemetryService) IngestBatch(ctx context.Context, batch *v1alpha1.AnalyticsBatch) (*v1alpha1.IngestResult, error) {
	if err := ValidateBatch(batch); err != nil {
		s.record(metrics.ResultRejected, nil)
		return nil, err
	}

	result := &v1alpha1.IngestResult{
		SessionID:    batchSessionID(batch),
		Events:       len(batch.Events),
		Performance:  len(batch.Performance),
		Errors:       len(batch.Errors),
		Interactions: len(batch.Interactions),
	}

	if batch.Empty() {
		s.record(metrics.ResultEmpty, nil)
		return result, nil
	}

	if err := s.repo.SaveBatch(ctx, batch); err != nil {
		s.logger.Error("failed to persist telemetry batch",
			"error", err,
			"sessionId", result.SessionID,
			"records", batch.Len(),
		)
		s.record(metrics.ResultFailed, nil)
		return nil, err
	}

	s.logger.Debug("telemetry batch ingested",
		"sessionId", result.SessionID,
		"events", result.Events,
		"performance", result.Performance,
		"errors", result.Errors,
		"interactions", result.Interactions,
	)

	s.record(metrics.ResultAccepted, map[string]int{
		CategoryEvents:       result.Events,
		CategoryPerformance:  result.Performance,
		CategoryErrors:       result.Errors,
		CategoryInteractions: result.Interactions,
	})

	return result, nil
}

func (s *telemetryService) SessionSummary(ctx context.Context, sessionID string) (*v1alpha1.SessionSummary, error) {
	if sessionID == "" {
		return nil, werrors.Invalid("telemetry.SessionSummary", "session id is required")
	}
	return s.repo.GetSession(ctx, sessionID)
}

func (s *telemetryService) PageMetrics(ctx context.Context, url string, since time.Time) (*v1alpha1.PageMetrics, error) {
	if url == "" {
		return nil, werrors.Invalid("telemetry.PageMetrics", "url is required")
	}
	if since.IsZero() {
		since = s.now().Add(-DefaultMetricsWindow)
	}
	return s.repo.GetPageMetrics(ctx, url, since)
}

func (s *telemetryService) record(result string, counts map[string]int) {
	if s.recorder != nil {
		s.recorder.RecordBatch(result, counts)
	}
}

// batchSessionID picks the session a batch belongs to, preferring the
// attached snapshot over the first record
func batchSessionID(b *v1alpha1.AnalyticsBatch) string {
	switch {
	case b.Session != nil:
		return b.Session.SessionID
	case len(b.Events) > 0:
		return b.Events[0].SessionID
	case len(b.Performance) > 0:
		return b.Performance[0].SessionID
	case len(b.Errors) > 0:
		return b.Errors[0].SessionID
	case len(b.Interactions) > 0:
		return b.Interactions[0].SessionID
	}
	return ""
}
