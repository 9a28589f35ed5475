// Package postgres stores telemetry batches in PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
	"github.com/wrale/wrale-lexdesk/internal/lexd/database"
)

var (
	eventColumns = []string{
		"id", "session_id", "user_id", "org_id", "timestamp",
		"event_type", "event_name", "event_data", "page_url", "page_title",
	}
	performanceColumns = []string{
		"id", "session_id", "user_id", "org_id", "timestamp", "page_url",
		"load_time", "dom_content_loaded", "first_contentful_paint",
		"largest_contentful_paint", "first_input_delay",
		"cumulative_layout_shift", "time_to_interactive",
	}
	errorColumns = []string{
		"id", "session_id", "user_id", "org_id", "timestamp",
		"error_message", "error_stack", "error_type", "page_url", "context_data",
	}
	interactionColumns = []string{
		"id", "session_id", "user_id", "org_id", "timestamp",
		"interaction_type", "element_path", "page_url", "interaction_data",
	}
)

// upsertSession merges a snapshot into the stored session. Counters only
// grow, end_time is written once and identity fields keep the last bound
// value.
const upsertSession = `
	INSERT INTO analytics_sessions (
		session_id, user_id, org_id, user_agent, start_time, end_time,
		page_views, events_count, errors_count, last_seen
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	ON CONFLICT (session_id) DO UPDATE SET
		user_id      = COALESCE(EXCLUDED.user_id, analytics_sessions.user_id),
		org_id       = COALESCE(EXCLUDED.org_id, analytics_sessions.org_id),
		user_agent   = COALESCE(analytics_sessions.user_agent, EXCLUDED.user_agent),
		start_time   = LEAST(analytics_sessions.start_time, EXCLUDED.start_time),
		end_time     = COALESCE(analytics_sessions.end_time, EXCLUDED.end_time),
		page_views   = GREATEST(analytics_sessions.page_views, EXCLUDED.page_views),
		events_count = GREATEST(analytics_sessions.events_count, EXCLUDED.events_count),
		errors_count = GREATEST(analytics_sessions.errors_count, EXCLUDED.errors_count),
		last_seen    = NOW()
`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

// SaveBatch writes one batch in a single transaction
func (r *repository) SaveBatch(ctx context.Context, batch *v1alpha1.AnalyticsBatch) error {
	const op = "TelemetryRepository.SaveBatch"

	err := database.RunInTx(ctx, r.db, nil, func(tx *database.Tx) error {
		if s := batch.Session; s != nil {
			if _, err := tx.ExecContext(ctx, upsertSession,
				s.SessionID,
				nullString(s.UserID),
				nullString(s.OrgID),
				nullString(s.UserAgent),
				s.StartTime,
				nullInt64(s.EndTime),
				s.PageViews,
				s.EventsCount,
				s.ErrorsCount,
			); err != nil {
				return err
			}
		} else if err := touchSessions(ctx, tx, batch); err != nil {
			return err
		}

		if err := insertEach(ctx, tx, "analytics_events", eventColumns, len(batch.Events), func(i int) ([]interface{}, error) {
			e := batch.Events[i]
			data, err := jsonMap(e.EventData)
			if err != nil {
				return nil, err
			}
			return append(identityArgs(e.EventIdentity),
				e.EventType, e.EventName, data, e.PageURL, nullString(e.PageTitle)), nil
		}); err != nil {
			return err
		}

		if err := insertEach(ctx, tx, "performance_metrics", performanceColumns, len(batch.Performance), func(i int) ([]interface{}, error) {
			p := batch.Performance[i]
			return append(identityArgs(p.EventIdentity),
				p.PageURL, p.LoadTime, p.DOMContentLoaded, p.FirstContentfulPaint,
				p.LargestContentfulPaint, p.FirstInputDelay, p.CumulativeLayoutShift,
				p.TimeToInteractive), nil
		}); err != nil {
			return err
		}

		if err := insertEach(ctx, tx, "error_events", errorColumns, len(batch.Errors), func(i int) ([]interface{}, error) {
			e := batch.Errors[i]
			data, err := jsonMap(e.ContextData)
			if err != nil {
				return nil, err
			}
			return append(identityArgs(e.EventIdentity),
				e.ErrorMessage, nullString(e.ErrorStack), string(e.ErrorType), e.PageURL, data), nil
		}); err != nil {
			return err
		}

		return insertEach(ctx, tx, "user_interactions", interactionColumns, len(batch.Interactions), func(i int) ([]interface{}, error) {
			in := batch.Interactions[i]
			data, err := jsonMap(in.InteractionData)
			if err != nil {
				return nil, err
			}
			return append(identityArgs(in.EventIdentity),
				string(in.InteractionType), nullString(in.ElementPath), in.PageURL, data), nil
		})
	})

	if err != nil {
		return database.MapError(err, op)
	}
	return nil
}

// GetSession returns the stored aggregate for a session
func (r *repository) GetSession(ctx context.Context, sessionID string) (*v1alpha1.SessionSummary, error) {
	const op = "TelemetryRepository.GetSession"

	var (
		summary                  v1alpha1.SessionSummary
		userID, orgID, userAgent sql.NullString
		endTime                  sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, org_id, user_agent, start_time, end_time,
			page_views, events_count, errors_count, last_seen
		FROM analytics_sessions
		WHERE session_id = $1
	`, sessionID).Scan(
		&summary.SessionID,
		&userID,
		&orgID,
		&userAgent,
		&summary.StartTime,
		&endTime,
		&summary.PageViews,
		&summary.EventsCount,
		&summary.ErrorsCount,
		&summary.LastSeen,
	)
	if err != nil {
		return nil, database.MapError(err, op)
	}

	summary.UserID = userID.String
	summary.OrgID = orgID.String
	summary.UserAgent = userAgent.String
	summary.EndTime = endTime.Int64

	return &summary, nil
}

// GetPageMetrics aggregates performance samples and error counts for a page
func (r *repository) GetPageMetrics(ctx context.Context, url string, since time.Time) (*v1alpha1.PageMetrics, error) {
	const op = "TelemetryRepository.GetPageMetrics"

	metrics := v1alpha1.PageMetrics{URL: url, Since: since}

	err := database.RunInTx(ctx, r.db, &database.TxOptions{ReadOnly: true}, func(tx *database.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT
				COUNT(*),
				COALESCE(AVG(load_time), 0),
				COALESCE(AVG(first_contentful_paint), 0),
				COALESCE(AVG(largest_contentful_paint), 0),
				COALESCE(AVG(first_input_delay), 0),
				COALESCE(MAX(cumulative_layout_shift), 0)
			FROM performance_metrics
			WHERE page_url = $1 AND timestamp >= $2
		`, url, since).Scan(
			&metrics.Samples,
			&metrics.AvgLoadTime,
			&metrics.AvgFirstContentfulPaint,
			&metrics.AvgLargestContentfulPaint,
			&metrics.AvgFirstInputDelay,
			&metrics.MaxCumulativeLayoutShift,
		)
		if err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM error_events
			WHERE page_url = $1 AND timestamp >= $2
		`, url, since).Scan(&metrics.ErrorCount)
	})
	if err != nil {
		return nil, database.MapError(err, op)
	}

	return &metrics, nil
}

// insertEach prepares one INSERT for table and executes it n times
func insertEach(ctx context.Context, tx *database.Tx, table string, columns []string, n int, args func(i int) ([]interface{}, error)) error {
	if n == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, database.GenerateInsertQuery(table, columns))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		values, err := args(i)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return err
		}
	}
	return nil
}

// touchSessions bumps last_seen for sessions named by records of a batch
// that carries no snapshot
func touchSessions(ctx context.Context, tx *database.Tx, batch *v1alpha1.AnalyticsBatch) error {
	seen := make(map[string]struct{})
	add := func(id v1alpha1.EventIdentity) { seen[id.SessionID] = struct{}{} }
	for _, e := range batch.Events {
		add(e.EventIdentity)
	}
	for _, p := range batch.Performance {
		add(p.EventIdentity)
	}
	for _, e := range batch.Errors {
		add(e.EventIdentity)
	}
	for _, in := range batch.Interactions {
		add(in.EventIdentity)
	}

	for id := range seen {
		if _, err := tx.ExecContext(ctx,
			"UPDATE analytics_sessions SET last_seen = NOW() WHERE session_id = $1", id,
		); err != nil {
			return err
		}
	}
	return nil
}

func identityArgs(id v1alpha1.EventIdentity) []interface{} {
	return []interface{}{
		uuid.New(),
		id.SessionID,
		nullString(id.UserID),
		nullString(id.OrgID),
		id.Timestamp,
	}
}

// jsonMap encodes a free-form map for a JSONB column
func jsonMap(m map[string]interface{}) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
