package collector

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

func event(name string) v1alpha1.AnalyticsEvent {
	return v1alpha1.AnalyticsEvent{EventType: "test", EventName: name}
}

func eventNames(events []v1alpha1.AnalyticsEvent) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.EventName
	}
	return names
}

func TestQueueTake(t *testing.T) {
	var q queue
	assert.False(t, q.pending())

	q.events = append(q.events, event("a"), event("b"))
	q.errors = append(q.errors, v1alpha1.ErrorEvent{ErrorMessage: "x"})
	q.sessionPending = true
	assert.Equal(t, 3, q.len())

	s := &Session{SessionID: "s-1", PageViews: 2}
	b := q.take(s).batch
	assert.Equal(t, []string{"a", "b"}, eventNames(b.Events))
	assert.Len(t, b.Errors, 1)
	assert.NotNil(t, b.Performance)
	assert.NotNil(t, b.Interactions)
	assert.Equal(t, 2, b.Session.PageViews)
	assert.False(t, q.pending())
}

func TestQueueRequeuePreservesOrder(t *testing.T) {
	var q queue
	q.events = append(q.events, event("a"), event("b"))
	failed := q.take(nil)

	q.events = append(q.events, event("c"))
	q.requeue(failed)
	assert.Equal(t, 3, q.len())

	next := q.take(nil)
	assert.Equal(t, []string{"a", "b", "c"}, eventNames(next.batch.Events))
	assert.Nil(t, next.batch.Session)

	q.sessionPending = true
	failed = q.take(&Session{SessionID: "s"})
	q.requeue(failed)
	assert.True(t, q.pending())
	assert.NotNil(t, q.take(&Session{SessionID: "s"}).batch.Session)
}

func TestQueueRequeueOutOfOrderFailures(t *testing.T) {
	var q queue
	q.events = append(q.events, event("a"), event("b"))
	older := q.take(nil)
	q.events = append(q.events, event("c"), event("d"))
	newer := q.take(nil)
	q.events = append(q.events, event("e"))

	q.requeue(older)
	q.requeue(newer)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, eventNames(q.take(nil).batch.Events))

	q.events = append(q.events, event("f"))
	older = q.take(nil)
	q.events = append(q.events, event("g"))
	newer = q.take(nil)

	q.requeue(newer)
	q.requeue(older)
	assert.Equal(t, []string{"f", "g"}, eventNames(q.take(nil).batch.Events))
}

func TestQueueRequeueMergedBatchKeepsSnapshotOrder(t *testing.T) {
	var q queue
	q.events = append(q.events, event("a"))
	first := q.take(nil)
	q.events = append(q.events, event("b"))
	second := q.take(nil)
	q.events = append(q.events, event("c"))
	third := q.take(nil)

	// first and third fail, then a merged retry of both goes out while
	// second is still in flight
	q.requeue(third)
	q.requeue(first)
	merged := q.take(nil)
	assert.Equal(t, []string{"a", "c"}, eventNames(merged.batch.Events))

	q.requeue(second)
	q.requeue(merged)
	assert.Equal(t, []string{"a", "b", "c"}, eventNames(q.take(nil).batch.Events))
}

func TestNewSessionID(t *testing.T) {
	now := time.UnixMilli(1714642200123)
	id := newSessionID(now)
	assert.Regexp(t, regexp.MustCompile(`^1714642200123-[0-9a-z]{9}$`), id)
	assert.NotEqual(t, id, newSessionID(now))
}
