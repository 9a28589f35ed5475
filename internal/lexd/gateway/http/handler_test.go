package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
	"github.com/wrale/wrale-lexdesk/internal/lexd/gateway"
)

type testEnv struct {
	upstream *httptest.Server
	front    *httptest.Server
	worker   *gateway.Worker
	hub      *Hub
	handler  *Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, precache ...string) *testEnv {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Connection", "keep-alive")
		_, _ = io.WriteString(w, "upstream "+r.Method+" "+r.URL.Path)
	}))
	t.Cleanup(upstream.Close)

	origin, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(discardLogger(), nil)
	go hub.Run(ctx)
	t.Cleanup(cancel)

	worker, err := gateway.NewWorker(gateway.Config{
		AppName:  "lexdesk",
		Version:  "v1",
		Origin:   origin,
		Precache: precache,
	}, gateway.NewMemoryStorage(),
		gateway.WithClient(upstream.Client()),
		gateway.WithClients(hub),
		gateway.WithLogger(discardLogger()),
	)
	require.NoError(t, err)

	h := NewHandler(worker, hub, discardLogger())
	r := chi.NewRouter()
	r.Mount(ControlPrefix, h.Router(nil))
	r.Handle("/*", h)
	front := httptest.NewServer(r)
	t.Cleanup(front.Close)

	return &testEnv{upstream: upstream, front: front, worker: worker, hub: hub, handler: h}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(e.front.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) post(t *testing.T, path, contentType, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.front.URL+path, contentType, strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.front.URL, "http") + ControlPrefix + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return e.hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readClientMessage(t *testing.T, conn *websocket.Conn) v1alpha1.ClientMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg v1alpha1.ClientMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestProxyCriticalRoute(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/dashboard?tab=cases")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "upstream GET /dashboard", body)
	assert.Equal(t, "critical", resp.Header.Get(headerStrategy))
	assert.Equal(t, "network", resp.Header.Get(headerSource))
	assert.Empty(t, resp.Header.Get("Connection"))

	env.upstream.Close()

	resp, body = env.get(t, "/dashboard?tab=cases")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cache", resp.Header.Get(headerSource))
	assert.Equal(t, "upstream GET /dashboard", body)

	resp, body = env.get(t, "/contacts")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "offline", resp.Header.Get(headerSource))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Sin conexión")
}

func TestProxyStaticOffline(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.Close()

	resp, body := env.get(t, "/assets/app.js")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Offline - resource not available", body)
}

func TestProxyForwardsBody(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/contacts", "application/json", `{"name":"Ana"}`)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "upstream POST /contacts", string(body))
}

func TestProxyPassthroughFailure(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:1/script.js", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "passthrough", rec.Header().Get(headerStrategy))
}

func TestTargetURL(t *testing.T) {
	env := newTestEnv(t)
	origin := env.worker.Config().Origin

	req := httptest.NewRequest(http.MethodGet, "/contacts?page=2", nil)
	assert.Equal(t, origin.String()+"/contacts?page=2", env.handler.targetURL(req))

	req = httptest.NewRequest(http.MethodGet, "https://cdn.example.com/lib.js", nil)
	assert.Equal(t, "https://cdn.example.com/lib.js", env.handler.targetURL(req))
}

func TestTargetURLPartnerHost(t *testing.T) {
	origin, err := url.Parse("http://localhost:3000")
	require.NoError(t, err)
	worker, err := gateway.NewWorker(gateway.Config{
		AppName:     "lexdesk",
		Version:     "v1",
		Origin:      origin,
		PartnerHost: "api.partner.example",
	}, gateway.NewMemoryStorage(), gateway.WithLogger(discardLogger()))
	require.NoError(t, err)
	h := NewHandler(worker, NewHub(discardLogger(), nil), discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/rest/v1/contacts", nil)
	req.Host = "api.partner.example:443"
	assert.Equal(t, "https://api.partner.example:443/rest/v1/contacts", h.targetURL(req))
}

func TestControlMessage(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, ControlPrefix+"/message", "application/json",
		`{"type":"CACHE_URLS","urls":["/expedientes","/calendar"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status v1alpha1.GatewayStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, []string{"lexdesk-static-v1"}, status.Buckets)

	resp = env.post(t, ControlPrefix+"/message", "application/json",
		`{"type":"CACHE_URLS","urls":["/missing"]}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = env.post(t, ControlPrefix+"/message", "application/json", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusRoute(t *testing.T) {
	env := newTestEnv(t, "/", "/dashboard")
	require.NoError(t, env.worker.Install(context.Background()))

	resp, body := env.get(t, ControlPrefix+"/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status v1alpha1.GatewayStatus
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, v1alpha1.GatewayStateActivated, status.State)
	assert.Equal(t, "lexdesk-dynamic-v1", status.DynamicBucket)
}

func TestPushOverWebsocket(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	resp := env.post(t, ControlPrefix+"/push", "text/plain", "Audiencia mañana")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	msg := readClientMessage(t, conn)
	assert.Equal(t, v1alpha1.ClientMessageNotification, msg.Type)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, "LexDesk CRM", msg.Notification.Title)
	assert.Equal(t, "Audiencia mañana", msg.Notification.Body)

	resp = env.post(t, ControlPrefix+"/notificationclick", "application/json", `{"action":"explore"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, v1alpha1.ClientMessageCloseNotification, readClientMessage(t, conn).Type)
	open := readClientMessage(t, conn)
	assert.Equal(t, v1alpha1.ClientMessageOpenWindow, open.Type)
	assert.Equal(t, "/", open.URL)
}

func TestSkipWaitingOverWebsocket(t *testing.T) {
	env := newTestEnv(t, "/", "/missing")
	require.NoError(t, env.worker.Install(context.Background()))
	require.Equal(t, v1alpha1.GatewayStateInstalled, env.worker.State())

	conn := env.dial(t)
	data, err := json.Marshal(v1alpha1.GatewayMessage{Type: v1alpha1.GatewayMessageSkipWaiting})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	msg := readClientMessage(t, conn)
	assert.Equal(t, v1alpha1.ClientMessageControllerChange, msg.Type)
	assert.Equal(t, "v1", msg.Version)
	assert.Equal(t, v1alpha1.GatewayStateActivated, env.worker.State())
}

func TestHubDisconnect(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return env.hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubPublishAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(discardLogger(), nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	for i := 0; i < 100; i++ {
		hub.ShowNotification(v1alpha1.Notification{Title: "x"})
	}
	assert.Equal(t, 0, hub.Claim("v2"))
}

