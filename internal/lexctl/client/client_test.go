package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/ignored/path")
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost:8080")
	assert.Error(t, err)
}

func TestGatewayStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_gateway/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(v1alpha1.GatewayStatus{Version: "v3", State: v1alpha1.GatewayStateActivated})
	})

	status, err := c.GatewayStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v3", status.Version)
	assert.Equal(t, v1alpha1.GatewayStateActivated, status.State)
}

func TestSendGatewayMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var msg v1alpha1.GatewayMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, v1alpha1.GatewayMessageCacheURLs, msg.Type)
		assert.Equal(t, []string{"/calendar"}, msg.URLs)
		_ = json.NewEncoder(w).Encode(v1alpha1.GatewayStatus{Version: "v1"})
	})

	_, err := c.SendGatewayMessage(context.Background(), v1alpha1.GatewayMessage{
		Type: v1alpha1.GatewayMessageCacheURLs,
		URLs: []string{"/calendar"},
	})
	require.NoError(t, err)
}

func TestPushSendsText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "Nuevo expediente", string(body))
		assert.Contains(t, r.Header.Get("Content-Type"), "text/plain")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(v1alpha1.Notification{Title: "LexDesk CRM", Body: string(body)})
	})

	n, err := c.Push(context.Background(), "Nuevo expediente")
	require.NoError(t, err)
	assert.Equal(t, "Nuevo expediente", n.Body)
}

func TestPageMetricsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1alpha1/analytics/pages/metrics", r.URL.Path)
		assert.Equal(t, "https://crm.example.com/dashboard", r.URL.Query().Get("url"))
		assert.Equal(t, "1h", r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode(v1alpha1.PageMetrics{URL: "https://crm.example.com/dashboard", Samples: 4})
	})

	m, err := c.PageMetrics(context.Background(), "https://crm.example.com/dashboard", "1h")
	require.NoError(t, err)
	assert.EqualValues(t, 4, m.Samples)
}

func TestErrorResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1alpha1/analytics/sessions/a%2Fb", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"session not found"}`)
	})

	_, err := c.Session(context.Background(), "a/b")
	require.Error(t, err)
	assert.Equal(t, "HTTP 404: session not found", err.Error())
}

func TestErrorResponseWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GatewayStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, "HTTP 502: Bad Gateway", err.Error())
}

func TestWatch(t *testing.T) {
	received := make(chan v1alpha1.GatewayMessage, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_gateway/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(v1alpha1.ClientMessage{Type: v1alpha1.ClientMessageControllerChange, Version: "v2"})

		var msg v1alpha1.GatewayMessage
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w, err := c.Watch(ctx)
	require.NoError(t, err)

	msg, ok := <-w.Messages()
	require.True(t, ok)
	assert.Equal(t, v1alpha1.ClientMessageControllerChange, msg.Type)
	assert.Equal(t, "v2", msg.Version)

	require.NoError(t, w.Send(v1alpha1.GatewayMessage{Type: v1alpha1.GatewayMessageSkipWaiting}))
	select {
	case m := <-received:
		assert.Equal(t, v1alpha1.GatewayMessageSkipWaiting, m.Type)
	case <-ctx.Done():
		t.Fatal("control message not received")
	}

	require.NoError(t, w.Close())
	for range w.Messages() {
	}
}
