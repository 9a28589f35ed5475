package collector

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Session is the state of one page lifetime
type Session struct {
	SessionID   string
	UserID      string
	OrgID       string
	StartTime   int64
	EndTime     int64
	PageViews   int
	EventsCount int
	ErrorsCount int
	UserAgent   string
}

// newSessionID returns "<epochMillis>-<9 base36 chars>"
func newSessionID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + string(suffix)
}

func (s *Session) snapshot() *v1alpha1.SessionSnapshot {
	return &v1alpha1.SessionSnapshot{
		SessionID:   s.SessionID,
		UserID:      s.UserID,
		OrgID:       s.OrgID,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		PageViews:   s.PageViews,
		EventsCount: s.EventsCount,
		ErrorsCount: s.ErrorsCount,
		UserAgent:   s.UserAgent,
	}
}
