// Package collector buffers page telemetry and ships it to the lexd
// analytics endpoint in batches.
//
// A Collector observes one Page for its lifetime. Records are queued per
// category and flushed on a timer, when the queue reaches BatchSize, on
// every error, and when the page is hidden or unloaded. Failed flushes are
// put back in front of the queue and retried on an exponential schedule
// until MaxRetries is spent, after which the batch is dropped.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

// Option configures a Collector
type Option func(*Collector)

// WithPage sets the observed page
func WithPage(p Page) Option {
	return func(c *Collector) { c.page = p }
}

// WithTransport overrides the HTTP transport built from Config.Endpoint
func WithTransport(t Transport) Option {
	return func(c *Collector) { c.transport = t }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// WithClock replaces the wall clock and timers
func WithClock(clk Clock) Option {
	return func(c *Collector) { c.clock = clk }
}

// WithBackoff replaces the retry schedule
func WithBackoff(newBackoff func() backoff.BackOff) Option {
	return func(c *Collector) { c.retryPolicy = newBackoff() }
}

// RetryBackoff returns the default schedule: 2s, 4s, 8s and so on, without
// jitter and without an elapsed-time cap
func RetryBackoff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     2 * time.Second,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         10 * time.Minute,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Collector queues page telemetry and flushes it to a Transport
type Collector struct {
	cfg       Config
	page      Page
	transport Transport
	logger    *slog.Logger
	clock     Clock
	level     slog.Level

	mu          sync.Mutex
	sessionID   string
	userID      string
	orgID       string
	session     *Session
	queue       queue
	initialized bool
	destroyed   bool

	retries     int
	retryPolicy backoff.BackOff
	retryTimer  Timer
	flushTimer  Timer

	observers   []Observer
	unsubscribe []func()
	clsValue    float64
	scrollTimer Timer
	loadTimer   Timer

	// inflight tracks flushes sent from background goroutines
	inflight sync.WaitGroup
}

// New creates a collector. It does not observe anything until Init.
func New(cfg Config, opts ...Option) *Collector {
	c := &Collector{
		cfg:   cfg.withDefaults(),
		clock: realClock{},
		level: slog.LevelDebug,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "telemetry-collector")
	if c.cfg.Debug {
		c.level = slog.LevelInfo
	}
	if c.retryPolicy == nil {
		c.retryPolicy = RetryBackoff()
	}
	if c.transport == nil {
		base := ""
		if c.page != nil {
			base = c.page.URL()
		}
		t, err := NewHTTPTransport(base, c.cfg.Endpoint, nil)
		if err != nil {
			c.logger.Warn("telemetry transport unavailable", "error", err)
			c.transport = noopTransport{}
		} else {
			c.transport = t
		}
	}

	c.sessionID = newSessionID(c.clock.Now())
	return c
}

// Start creates a collector and initializes it
func Start(cfg Config, opts ...Option) *Collector {
	c := New(cfg, opts...)
	c.Init()
	return c
}

func (c *Collector) log(msg string, args ...interface{}) {
	c.logger.Log(context.Background(), c.level, msg, args...)
}

// Init attaches the collector to its page. It runs once and only when the
// collector is enabled and has a page.
func (c *Collector) Init() {
	if !c.cfg.Enabled || c.page == nil {
		return
	}

	c.mu.Lock()
	if c.initialized || c.destroyed {
		c.mu.Unlock()
		return
	}
	c.initialized = true
	c.session = &Session{
		SessionID: c.sessionID,
		UserID:    c.userID,
		OrgID:     c.orgID,
		StartTime: c.clock.Now().UnixMilli(),
		UserAgent: c.page.UserAgent(),
	}
	c.queue.sessionPending = true
	c.mu.Unlock()

	if c.cfg.TrackPerformance {
		c.observePerformance()
	}
	if c.cfg.TrackErrors {
		c.subscribe(errorHooks{c: c})
	}
	if c.cfg.TrackInteractions {
		c.subscribe(interactionHooks{c: c})
	}
	if c.cfg.TrackPageViews {
		c.TrackPageView("", "")
	}

	c.mu.Lock()
	c.scheduleFlushTimerLocked()
	c.mu.Unlock()

	c.subscribe(lifecycleHooks{c: c})

	c.log("telemetry collector initialized", "sessionId", c.sessionID)
}

func (c *Collector) subscribe(l Listener) {
	unsub := c.page.Subscribe(l)
	c.mu.Lock()
	c.unsubscribe = append(c.unsubscribe, unsub)
	c.mu.Unlock()
}

func (c *Collector) scheduleFlushTimerLocked() {
	c.flushTimer = c.clock.AfterFunc(c.cfg.FlushInterval, c.onFlushTimer)
}

func (c *Collector) onFlushTimer() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.scheduleFlushTimerLocked()
	pending := c.queue.pending()
	c.mu.Unlock()

	if pending {
		_ = c.Flush(context.Background())
	}
}

// SetUser binds identity to the session and to every record queued from
// now on. The last call wins.
func (c *Collector) SetUser(userID, orgID string) {
	if !c.cfg.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.userID, c.orgID = userID, orgID
	if c.session != nil {
		c.session.UserID, c.session.OrgID = userID, orgID
		c.queue.sessionPending = true
	}
}

// EventInput is the caller-supplied part of an analytics event
type EventInput struct {
	EventType string
	EventName string
	EventData map[string]interface{}
	// PageURL and PageTitle default to the current page
	PageURL   string
	PageTitle string
}

// TrackEvent queues an analytics event
func (c *Collector) TrackEvent(in EventInput) {
	if !c.cfg.Enabled {
		return
	}
	ev := v1alpha1.AnalyticsEvent{
		EventType: in.EventType,
		EventName: in.EventName,
		EventData: in.EventData,
		PageURL:   in.PageURL,
		PageTitle: in.PageTitle,
	}
	if ev.PageURL == "" {
		ev.PageURL = c.pageURL()
	}
	if ev.PageTitle == "" && c.page != nil {
		ev.PageTitle = c.page.Title()
	}

	c.mu.Lock()
	ev.EventIdentity = c.identityLocked()
	c.queue.events = append(c.queue.events, ev)
	if c.session != nil {
		c.session.EventsCount++
	}
	c.mu.Unlock()

	c.log("analytics event queued", "eventType", in.EventType, "eventName", in.EventName)
	c.checkBatchSize()
}

// TrackPageView queues a navigation page_view event. Empty arguments
// default to the current page URL and title.
func (c *Collector) TrackPageView(url, title string) {
	if !c.cfg.Enabled {
		return
	}
	if url == "" {
		url = c.pageURL()
	}
	if title == "" && c.page != nil {
		title = c.page.Title()
	}
	data := map[string]interface{}{}
	if c.page != nil {
		data["referrer"] = c.page.Referrer()
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.PageViews++
	}
	c.mu.Unlock()

	c.TrackEvent(EventInput{
		EventType: "navigation",
		EventName: "page_view",
		EventData: data,
		PageURL:   url,
		PageTitle: title,
	})
}

// TrackError queues a failure reported by application code and flushes
// immediately. The error type defaults to network.
func (c *Collector) TrackError(err error, errorType v1alpha1.ErrorType, contextData map[string]interface{}) {
	if !c.cfg.Enabled || err == nil {
		return
	}
	if !errorType.Valid() {
		errorType = v1alpha1.ErrorTypeNetwork
	}
	c.recordError(v1alpha1.ErrorEvent{
		ErrorMessage: err.Error(),
		ErrorStack:   stackOf(err),
		ErrorType:    errorType,
		ContextData:  contextData,
	})
}

func (c *Collector) trackPerformance(m v1alpha1.PerformanceMetric) {
	m.PageURL = c.pageURL()

	c.mu.Lock()
	m.EventIdentity = c.identityLocked()
	c.queue.performance = append(c.queue.performance, m)
	c.mu.Unlock()

	c.checkBatchSize()
}

func (c *Collector) trackInteraction(in v1alpha1.UserInteraction) {
	in.PageURL = c.pageURL()

	c.mu.Lock()
	in.EventIdentity = c.identityLocked()
	c.queue.interactions = append(c.queue.interactions, in)
	c.mu.Unlock()

	c.checkBatchSize()
}

// recordError queues an error event and flushes without waiting for the
// batch threshold
func (c *Collector) recordError(e v1alpha1.ErrorEvent) {
	e.PageURL = c.pageURL()

	c.mu.Lock()
	e.EventIdentity = c.identityLocked()
	c.queue.errors = append(c.queue.errors, e)
	if c.session != nil {
		c.session.ErrorsCount++
	}
	c.mu.Unlock()

	c.log("error captured", "errorType", e.ErrorType, "message", e.ErrorMessage)
	c.flushAsync()
}

func (c *Collector) checkBatchSize() {
	c.mu.Lock()
	full := c.queue.len() >= c.cfg.BatchSize
	c.mu.Unlock()

	if full {
		c.flushAsync()
	}
}

func (c *Collector) identityLocked() v1alpha1.EventIdentity {
	return v1alpha1.EventIdentity{
		Timestamp: c.clock.Now().UTC(),
		SessionID: c.sessionID,
		UserID:    c.userID,
		OrgID:     c.orgID,
	}
}

func (c *Collector) pageURL() string {
	if c.page == nil {
		return ""
	}
	return c.page.URL()
}

// Flush sends everything queued in one batch. It makes no call when the
// queue is empty. The returned error is the transport failure, if any; the
// batch has already been requeued or dropped by then.
func (c *Collector) Flush(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	c.mu.Lock()
	if !c.queue.pending() {
		c.mu.Unlock()
		return nil
	}
	out := c.queue.take(c.session)
	c.mu.Unlock()

	return c.send(ctx, out)
}

// flushAsync snapshots the queue now and sends it in the background
func (c *Collector) flushAsync() {
	c.mu.Lock()
	if c.destroyed || !c.queue.pending() {
		c.mu.Unlock()
		return
	}
	out := c.queue.take(c.session)
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		_ = c.send(context.Background(), out)
	}()
}

// send delivers one snapshot. A failed snapshot is requeued by sequence, so
// concurrent failures keep older records ahead of newer ones.
func (c *Collector) send(ctx context.Context, out *outgoing) error {
	batch := out.batch
	err := c.transport.Send(ctx, batch)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.retries = 0
		c.retryPolicy.Reset()
		c.log("telemetry batch sent", "records", batch.Len())
		return nil
	}

	if c.retries >= c.cfg.MaxRetries {
		c.logger.Warn("dropping telemetry batch after retries",
			"error", err,
			"records", batch.Len(),
			"retries", c.retries,
		)
		c.retries = 0
		c.retryPolicy.Reset()
		return err
	}

	c.queue.requeue(out)
	c.retries++
	delay := c.retryPolicy.NextBackOff()
	c.log("telemetry flush failed, will retry",
		"error", err,
		"retry", c.retries,
		"delay", delay,
	)
	if c.retryTimer == nil && !c.destroyed && delay != backoff.Stop {
		c.retryTimer = c.clock.AfterFunc(delay, c.onRetryTimer)
	}
	return err
}

func (c *Collector) onRetryTimer() {
	c.mu.Lock()
	c.retryTimer = nil
	destroyed := c.destroyed
	c.mu.Unlock()

	if !destroyed {
		_ = c.Flush(context.Background())
	}
}

// endSession stamps the session end time once and marks the snapshot for
// the next batch
func (c *Collector) endSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.EndTime == 0 {
		c.session.EndTime = c.clock.Now().UnixMilli()
		c.queue.sessionPending = true
	}
}

// Destroy detaches from the page, stops timers, ends the session and sends
// a final flush. It waits for background flushes to finish.
func (c *Collector) Destroy(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	for _, t := range []Timer{c.flushTimer, c.retryTimer, c.scrollTimer, c.loadTimer} {
		if t != nil {
			t.Stop()
		}
	}
	c.flushTimer, c.retryTimer, c.scrollTimer, c.loadTimer = nil, nil, nil, nil
	observers, unsubscribe := c.observers, c.unsubscribe
	c.observers, c.unsubscribe = nil, nil
	c.mu.Unlock()

	for _, o := range observers {
		o.Disconnect()
	}
	for _, unsub := range unsubscribe {
		unsub()
	}

	c.endSession()
	err := c.Flush(ctx)
	c.inflight.Wait()
	return err
}

// Session returns a copy of the session state
func (c *Collector) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{SessionID: c.sessionID, UserID: c.userID, OrgID: c.orgID}
	}
	return *c.session
}

// Pending returns the number of queued records
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

var (
	defaultMu        sync.Mutex
	defaultCollector *Collector
)

// Default returns the process-wide collector, creating a page-less one with
// DefaultConfig on first use
func Default() *Collector {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCollector == nil {
		defaultCollector = New(DefaultConfig())
	}
	return defaultCollector
}

// SetDefault replaces the process-wide collector
func SetDefault(c *Collector) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultCollector = c
}
