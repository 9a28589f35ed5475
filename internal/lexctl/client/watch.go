package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

// Watcher receives gateway broadcasts over the client websocket
type Watcher struct {
	conn      *websocket.Conn
	messages  chan v1alpha1.ClientMessage
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// Watch connects to the gateway websocket. The watcher stops when ctx is
// done or Close is called.
func (c *Client) Watch(ctx context.Context) (*Watcher, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = gatewayPrefix + "/ws"

	dialer := *websocket.DefaultDialer
	if t, ok := c.httpClient.Transport.(*http.Transport); ok {
		dialer.TLSClientConfig = t.TLSClientConfig
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error connecting to gateway: %w", err)
	}

	w := &Watcher{
		conn:     conn,
		messages: make(chan v1alpha1.ClientMessage, 16),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	go w.readMessages()
	go func() {
		select {
		case <-ctx.Done():
			_ = w.Close()
		case <-w.done:
		}
	}()
	return w, nil
}

// Messages returns the channel of received broadcasts. It is closed when
// the connection ends.
func (w *Watcher) Messages() <-chan v1alpha1.ClientMessage {
	return w.messages
}

// Errors returns the channel that reports why the connection ended
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Send writes a control message to the gateway
func (w *Watcher) Send(msg v1alpha1.GatewayMessage) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(msg)
}

// Close terminates the connection
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.writeMu.Lock()
		_ = w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

func (w *Watcher) readMessages() {
	defer close(w.messages)

	for {
		var msg v1alpha1.ClientMessage
		if err := w.conn.ReadJSON(&msg); err != nil {
			select {
			case <-w.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					w.errors <- err
				}
			}
			return
		}

		select {
		case w.messages <- msg:
		case <-w.done:
			return
		}
	}
}
