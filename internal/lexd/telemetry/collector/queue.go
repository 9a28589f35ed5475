package collector

import (
	"sort"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

// segment holds the records of one snapshot. Segments are ordered by seq,
// the order in which their snapshots were taken.
type segment struct {
	seq          uint64
	events       []v1alpha1.AnalyticsEvent
	performance  []v1alpha1.PerformanceMetric
	errors       []v1alpha1.ErrorEvent
	interactions []v1alpha1.UserInteraction
	session      bool
}

func (s *segment) len() int {
	return len(s.events) + len(s.performance) + len(s.errors) + len(s.interactions)
}

// outgoing is a batch in flight together with the segments it was built from
type outgoing struct {
	batch    *v1alpha1.AnalyticsBatch
	segments []*segment
}

// queue buffers records per category until the next flush. The collector
// mutex guards it.
type queue struct {
	events       []v1alpha1.AnalyticsEvent
	performance  []v1alpha1.PerformanceMetric
	errors       []v1alpha1.ErrorEvent
	interactions []v1alpha1.UserInteraction
	// sessionPending marks that the next batch must carry a session snapshot
	sessionPending bool

	// failed holds segments of failed sends awaiting retry, oldest first
	failed []*segment
	seq    uint64
}

func (q *queue) len() int {
	n := len(q.events) + len(q.performance) + len(q.errors) + len(q.interactions)
	for _, s := range q.failed {
		n += s.len()
	}
	return n
}

func (q *queue) pending() bool {
	if q.len() > 0 || q.sessionPending {
		return true
	}
	for _, s := range q.failed {
		if s.session {
			return true
		}
	}
	return false
}

// take moves everything queued into one batch, failed segments first, and
// leaves the queue empty
func (q *queue) take(session *Session) *outgoing {
	q.seq++
	fresh := &segment{
		seq:          q.seq,
		events:       q.events,
		performance:  q.performance,
		errors:       q.errors,
		interactions: q.interactions,
		session:      q.sessionPending,
	}

	segments := q.failed
	if fresh.len() > 0 || fresh.session {
		segments = append(segments, fresh)
	}

	b := &v1alpha1.AnalyticsBatch{
		Events:       []v1alpha1.AnalyticsEvent{},
		Performance:  []v1alpha1.PerformanceMetric{},
		Errors:       []v1alpha1.ErrorEvent{},
		Interactions: []v1alpha1.UserInteraction{},
	}
	withSession := false
	for _, s := range segments {
		b.Events = append(b.Events, s.events...)
		b.Performance = append(b.Performance, s.performance...)
		b.Errors = append(b.Errors, s.errors...)
		b.Interactions = append(b.Interactions, s.interactions...)
		withSession = withSession || s.session
	}
	if withSession && session != nil {
		b.Session = session.snapshot()
	}

	seq := q.seq
	*q = queue{seq: seq}
	return &outgoing{batch: b, segments: segments}
}

// requeue puts the segments of a failed batch back among the failed
// segments in snapshot order, ahead of anything queued since
func (q *queue) requeue(o *outgoing) {
	q.failed = append(q.failed, o.segments...)
	sort.SliceStable(q.failed, func(i, j int) bool {
		return q.failed[i].seq < q.failed[j].seq
	})
}
