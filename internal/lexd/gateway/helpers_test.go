package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

var errRefused = errors.New("dial tcp: connection refused")

// upstream answers requests in process and records them
type upstream struct {
	mu      sync.Mutex
	calls   []string
	offline bool
	status  map[string]int
}

func newUpstream() *upstream {
	return &upstream{status: map[string]int{}}
}

func (u *upstream) Do(r *http.Request) (*http.Response, error) {
	u.mu.Lock()
	u.calls = append(u.calls, r.Method+" "+r.URL.String())
	offline := u.offline
	status, ok := u.status[r.URL.Path]
	u.mu.Unlock()

	if offline {
		return nil, errRefused
	}
	if !ok {
		status = http.StatusOK
	}
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "text/plain")
	rec.WriteHeader(status)
	_, _ = io.WriteString(rec, "upstream "+r.URL.Path)
	return rec.Result(), nil
}

func (u *upstream) setOffline(v bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.offline = v
}

func (u *upstream) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

// recordingClients records what the worker asked of connected clients
type recordingClients struct {
	mu            sync.Mutex
	claims        []string
	notifications []v1alpha1.Notification
	closed        int
	opened        []string
}

func (c *recordingClients) Claim(version string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claims = append(c.claims, version)
	return 2
}

func (c *recordingClients) ShowNotification(n v1alpha1.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, n)
}

func (c *recordingClients) CloseNotification() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *recordingClients) OpenWindow(u string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, u)
}

func (c *recordingClients) Count() int { return 2 }

type recordingRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingRecorder) RecordGatewayRequest(strategy, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, strategy+"/"+source)
}

const origin = "https://crm.example.com"

func testConfig(t *testing.T, version string) Config {
	t.Helper()
	u, err := url.Parse(origin)
	require.NoError(t, err)
	return Config{
		AppName:     "lexdesk",
		Version:     version,
		Origin:      u,
		PartnerHost: "api.partner.example",
		Precache:    []string{"/", "/dashboard", "/manifest.json"},
	}
}

type fixture struct {
	worker   *Worker
	storage  *MemoryStorage
	upstream *upstream
	clients  *recordingClients
	recorder *recordingRecorder
}

func newFixture(t *testing.T, version string) *fixture {
	t.Helper()
	f := &fixture{
		storage:  NewMemoryStorage(),
		upstream: newUpstream(),
		clients:  &recordingClients{},
		recorder: &recordingRecorder{},
	}
	w, err := NewWorker(testConfig(t, version), f.storage,
		WithClient(f.upstream),
		WithClients(f.clients),
		WithRecorder(f.recorder),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNow(func() time.Time { return time.UnixMilli(1714642200000) }),
	)
	require.NoError(t, err)
	f.worker = w
	return f
}
