// Package telemetry implements the server side of the analytics wire
// contract: batch validation, persistence and read-side aggregates.
package telemetry

import (
	"context"
	"time"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

// Service defines the telemetry ingest service interface
type Service interface {
	// IngestBatch validates and persists one collector flush
	IngestBatch(ctx context.Context, batch *v1alpha1.AnalyticsBatch) (*v1alpha1.IngestResult, error)
	// SessionSummary returns the stored aggregate for a session
	SessionSummary(ctx context.Context, sessionID string) (*v1alpha1.SessionSummary, error)
	// PageMetrics aggregates performance and error records for a page
	PageMetrics(ctx context.Context, url string, since time.Time) (*v1alpha1.PageMetrics, error)
}

// Repository persists telemetry batches
type Repository interface {
	SaveBatch(ctx context.Context, batch *v1alpha1.AnalyticsBatch) error
	GetSession(ctx context.Context, sessionID string) (*v1alpha1.SessionSummary, error)
	GetPageMetrics(ctx context.Context, url string, since time.Time) (*v1alpha1.PageMetrics, error)
}

// Recorder counts ingest outcomes
type Recorder interface {
	RecordBatch(result string, counts map[string]int)
}

// Batch categories as they appear on the wire and in metrics labels
const (
	CategoryEvents       = "events"
	CategoryPerformance  = "performance"
	CategoryErrors       = "errors"
	CategoryInteractions = "interactions"
)

// MaxBatchRecords bounds the records accepted in one batch
const MaxBatchRecords = 1000

// DefaultMetricsWindow is used when PageMetrics is called without a since time
const DefaultMetricsWindow = 24 * time.Hour
