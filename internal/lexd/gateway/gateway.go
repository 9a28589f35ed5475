// Package gateway implements the offline cache gateway that sits between
// LexDesk pages and the application upstream.
//
// Every request is classified and answered by one strategy: network-first
// with an offline app shell for critical routes, network-first with a JSON
// fallback for the partner API, cache-first for static assets, and
// network-first without caching for the rest. Responses live in two
// versioned buckets; activating a new version deletes every other bucket.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
	werrors "github.com/wrale/wrale-lexdesk/internal/lexd/errors"
)

// Config describes one gateway version
type Config struct {
	AppName string
	Version string
	// Origin is the application upstream, e.g. http://localhost:3000
	Origin *url.URL
	// PartnerHost is the API partner domain; its subdomains match too
	PartnerHost    string
	CriticalRoutes []string
	// Precache lists the critical files stored at install time. Relative
	// entries resolve against Origin.
	Precache []string
}

// StaticBucket returns the name of the current static bucket
func (c *Config) StaticBucket() string {
	return c.AppName + "-static-" + c.Version
}

// DynamicBucket returns the name of the current dynamic bucket
func (c *Config) DynamicBucket() string {
	return c.AppName + "-dynamic-" + c.Version
}

func (c *Config) validate() error {
	const op = "gateway.Config"
	switch {
	case c.AppName == "":
		return werrors.Invalid(op, "app name is required")
	case c.Version == "":
		return werrors.Invalid(op, "version is required")
	case c.Origin == nil || !c.Origin.IsAbs():
		return werrors.Invalid(op, "origin must be an absolute URL")
	}
	return nil
}

// Doer sends upstream requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Clients are the pages connected to the gateway
type Clients interface {
	// Claim tells every client the given version now controls it and
	// returns how many were claimed
	Claim(version string) int
	ShowNotification(n v1alpha1.Notification)
	CloseNotification()
	OpenWindow(url string)
	Count() int
}

// Recorder counts answered requests
type Recorder interface {
	RecordGatewayRequest(strategy, source string)
}

type nopClients struct{}

func (nopClients) Claim(string) int                       { return 0 }
func (nopClients) ShowNotification(v1alpha1.Notification) {}
func (nopClients) CloseNotification()                     {}
func (nopClients) OpenWindow(string)                      {}
func (nopClients) Count() int                             { return 0 }

type nopRecorder struct{}

func (nopRecorder) RecordGatewayRequest(string, string) {}

// Option configures a Worker
type Option func(*Worker)

// WithClient sets the upstream client
func WithClient(d Doer) Option {
	return func(w *Worker) { w.client = d }
}

// WithClients sets the connected-clients channel used for claims and
// notifications
func WithClients(c Clients) Option {
	return func(w *Worker) { w.clients = c }
}

// WithRecorder sets the request metrics recorder
func WithRecorder(r Recorder) Option {
	return func(w *Worker) { w.recorder = r }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithNow replaces the wall clock
func WithNow(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// Worker is one version of the gateway
type Worker struct {
	cfg      Config
	storage  Storage
	client   Doer
	clients  Clients
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	state v1alpha1.GatewayState
}

// NewWorker creates a worker in the parsed state
func NewWorker(cfg Config, storage Storage, opts ...Option) (*Worker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.CriticalRoutes == nil {
		cfg.CriticalRoutes = DefaultCriticalRoutes
	}

	w := &Worker{
		cfg:     cfg,
		storage: storage,
		state:   v1alpha1.GatewayStateParsed,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.client == nil {
		w.client = http.DefaultClient
	}
	if w.clients == nil {
		w.clients = nopClients{}
	}
	if w.recorder == nil {
		w.recorder = nopRecorder{}
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	w.logger = w.logger.With("component", "gateway", "version", cfg.Version)
	return w, nil
}

// Config returns the worker configuration
func (w *Worker) Config() Config {
	return w.cfg
}

// State returns the lifecycle state
func (w *Worker) State() v1alpha1.GatewayState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s v1alpha1.GatewayState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Install pre-caches the critical files into the static bucket. A failed
// pre-cache is logged and leaves the worker waiting; a successful one skips
// waiting and activates immediately.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(v1alpha1.GatewayStateInstalling)

	if err := w.addAll(ctx, w.cfg.StaticBucket(), w.cfg.Precache); err != nil {
		w.logger.Error("pre-cache failed, waiting for activation",
			"error", err,
			"bucket", w.cfg.StaticBucket(),
		)
		w.setState(v1alpha1.GatewayStateInstalled)
		return nil
	}
	w.logger.Info("critical files cached",
		"bucket", w.cfg.StaticBucket(),
		"files", len(w.cfg.Precache),
	)
	w.setState(v1alpha1.GatewayStateInstalled)

	return w.Activate(ctx)
}

// Activate deletes every bucket that does not belong to this version and
// claims the connected clients
func (w *Worker) Activate(ctx context.Context) error {
	w.mu.Lock()
	if w.state == v1alpha1.GatewayStateActivated {
		w.mu.Unlock()
		return nil
	}
	previous := w.state
	w.state = v1alpha1.GatewayStateActivating
	w.mu.Unlock()

	names, err := w.storage.Keys(ctx)
	if err != nil {
		w.setState(previous)
		return fmt.Errorf("list buckets: %w", err)
	}

	static, dynamic := w.cfg.StaticBucket(), w.cfg.DynamicBucket()
	for _, name := range names {
		if name == static || name == dynamic {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			w.logger.Error("failed to delete old bucket", "error", err, "bucket", name)
			continue
		}
		w.logger.Info("deleted old bucket", "bucket", name)
	}

	w.setState(v1alpha1.GatewayStateActivated)
	claimed := w.clients.Claim(w.cfg.Version)
	w.logger.Info("gateway activated", "clients", claimed)
	return nil
}

// HandleMessage applies a control message. Unknown types are ignored.
func (w *Worker) HandleMessage(ctx context.Context, msg v1alpha1.GatewayMessage) error {
	switch msg.Type {
	case v1alpha1.GatewayMessageSkipWaiting:
		if w.State() != v1alpha1.GatewayStateInstalled {
			return nil
		}
		return w.Activate(ctx)
	case v1alpha1.GatewayMessageCacheURLs:
		if err := w.addAll(ctx, w.cfg.StaticBucket(), msg.URLs); err != nil {
			return fmt.Errorf("cache urls: %w", err)
		}
		w.logger.Info("urls cached", "count", len(msg.URLs))
		return nil
	default:
		w.logger.Warn("unknown control message", "type", msg.Type)
		return nil
	}
}

// Status reports the lifecycle state and the stored buckets
func (w *Worker) Status(ctx context.Context) v1alpha1.GatewayStatus {
	names, err := w.storage.Keys(ctx)
	if err != nil {
		w.logger.Warn("failed to list buckets", "error", err)
	}
	if names == nil {
		names = []string{}
	}
	return v1alpha1.GatewayStatus{
		Version:       w.cfg.Version,
		State:         w.State(),
		StaticBucket:  w.cfg.StaticBucket(),
		DynamicBucket: w.cfg.DynamicBucket(),
		Buckets:       names,
		Clients:       w.clients.Count(),
	}
}
