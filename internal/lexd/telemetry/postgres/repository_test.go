package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
	werrors "github.com/wrale/wrale-lexdesk/internal/lexd/errors"
	"github.com/wrale/wrale-lexdesk/internal/lexd/testutil"
)

func ptr(v float64) *float64 { return &v }

func TestSaveBatchAndGetSession(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	ts := time.Now().UTC().Truncate(time.Millisecond)
	id := v1alpha1.EventIdentity{Timestamp: ts, SessionID: "1714642200000-k3j9x0a1b"}

	batch := &v1alpha1.AnalyticsBatch{
		Events: []v1alpha1.AnalyticsEvent{{
			EventIdentity: id,
			EventType:     "navigation",
			EventName:     "page_view",
			EventData:     map[string]interface{}{"referrer": "https://google.com"},
			PageURL:       "https://crm.example.com/dashboard",
		}},
		Performance: []v1alpha1.PerformanceMetric{{
			EventIdentity: id,
			PageURL:       "https://crm.example.com/dashboard",
			LoadTime:      ptr(120),
		}},
		Errors: []v1alpha1.ErrorEvent{{
			EventIdentity: id,
			ErrorMessage:  "Failed to load resource: /app.js",
			ErrorType:     v1alpha1.ErrorTypeResource,
			PageURL:       "https://crm.example.com/dashboard",
			ContextData:   map[string]interface{}{"tagName": "SCRIPT"},
		}},
		Interactions: []v1alpha1.UserInteraction{{
			EventIdentity:   id,
			InteractionType: v1alpha1.InteractionClick,
			ElementPath:     "div#app > button.primary",
			PageURL:         "https://crm.example.com/dashboard",
		}},
		Session: &v1alpha1.SessionSnapshot{
			SessionID:   id.SessionID,
			StartTime:   1714642200000,
			PageViews:   1,
			EventsCount: 1,
			ErrorsCount: 1,
			UserAgent:   "test-agent",
		},
	}
	require.NoError(t, repo.SaveBatch(ctx, batch))

	// A later snapshot with smaller counters and an end time
	require.NoError(t, repo.SaveBatch(ctx, &v1alpha1.AnalyticsBatch{
		Session: &v1alpha1.SessionSnapshot{
			SessionID: id.SessionID,
			StartTime: 1714642200000,
			EndTime:   1714642260000,
			UserID:    "u-42",
		},
	}))
	// A second end time must not overwrite the first
	require.NoError(t, repo.SaveBatch(ctx, &v1alpha1.AnalyticsBatch{
		Session: &v1alpha1.SessionSnapshot{
			SessionID: id.SessionID,
			StartTime: 1714642200000,
			EndTime:   1714642999000,
		},
	}))

	summary, err := repo.GetSession(ctx, id.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PageViews)
	assert.Equal(t, 1, summary.ErrorsCount)
	assert.Equal(t, int64(1714642260000), summary.EndTime)
	assert.Equal(t, "u-42", summary.UserID)
	assert.Equal(t, "test-agent", summary.UserAgent)

	metrics, err := repo.GetPageMetrics(ctx, "https://crm.example.com/dashboard", ts.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.Samples)
	assert.Equal(t, 120.0, metrics.AvgLoadTime)
	assert.Equal(t, int64(1), metrics.ErrorCount)
}

func TestGetSessionNotFound(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	_, err := NewRepository(db).GetSession(context.Background(), "missing")
	assert.True(t, werrors.IsNotFound(err))
}

func TestSaveBatchRejectsUnknownEnum(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	err := NewRepository(db).SaveBatch(context.Background(), &v1alpha1.AnalyticsBatch{
		Errors: []v1alpha1.ErrorEvent{{
			EventIdentity: v1alpha1.EventIdentity{Timestamp: time.Now(), SessionID: "s"},
			ErrorMessage:  "x",
			ErrorType:     "fatal",
			PageURL:       "/",
		}},
	})
	assert.True(t, werrors.IsInvalidInput(err))
}
