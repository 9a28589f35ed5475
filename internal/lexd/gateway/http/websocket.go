package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the gateway origin and partner host
		return true
	},
}

// ClientGauge receives the number of connected clients
type ClientGauge interface {
	SetGatewayClients(n int)
}

// client is a middleman between the websocket connection and the hub
type client struct {
	id        uuid.UUID
	ws        *websocket.Conn
	send      chan []byte
	hub       *Hub
	logger    *slog.Logger
	onMessage func(v1alpha1.GatewayMessage)
}

func (c *client) cleanup() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}

	if err := c.ws.Close(); err != nil {
		c.logger.Debug("error closing websocket connection",
			"error", err,
			"clientId", c.id,
		)
	}
}

func (c *client) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline",
			"error", err,
			"clientId", c.id,
		)
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("websocket read error",
					"error", err,
					"clientId", c.id,
				)
			}
			break
		}

		var msg v1alpha1.GatewayMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("invalid control message",
				"error", err,
				"clientId", c.id,
			)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *client) write(mt int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(mt, payload)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.logger.Debug("failed to write message",
					"error", err,
					"clientId", c.id,
				)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, []byte{}); err != nil {
				c.logger.Debug("failed to write ping",
					"error", err,
					"clientId", c.id,
				)
				return
			}
		}
	}
}

// Hub maintains the connected pages and broadcasts gateway messages to
// them. It implements gateway.Clients.
type Hub struct {
	// Registered clients, owned by Run
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	count  atomic.Int64
	gauge  ClientGauge
	now    func() time.Time
	logger *slog.Logger
}

// NewHub creates a hub. gauge may be nil.
func NewHub(logger *slog.Logger, gauge ClientGauge) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		gauge:      gauge,
		now:        time.Now,
		logger:     logger.With("component", "gateway-hub"),
	}
}

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.setCount()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			h.logger.Info("client connected",
				"clientId", c.id,
				"clients", len(h.clients),
			)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount()
				h.logger.Info("client disconnected",
					"clientId", c.id,
					"clients", len(h.clients),
				)
			}
		case m := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- m:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.setCount()
		}
	}
}

func (h *Hub) setCount() {
	n := len(h.clients)
	h.count.Store(int64(n))
	if h.gauge != nil {
		h.gauge.SetGatewayClients(n)
	}
}

func (h *Hub) publish(msg v1alpha1.ClientMessage) {
	msg.Timestamp = h.now().UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal client message", "error", err, "type", msg.Type)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// Claim tells every client that version now controls it
func (h *Hub) Claim(version string) int {
	h.publish(v1alpha1.ClientMessage{Type: v1alpha1.ClientMessageControllerChange, Version: version})
	return h.Count()
}

func (h *Hub) ShowNotification(n v1alpha1.Notification) {
	h.publish(v1alpha1.ClientMessage{Type: v1alpha1.ClientMessageNotification, Notification: &n})
}

func (h *Hub) CloseNotification() {
	h.publish(v1alpha1.ClientMessage{Type: v1alpha1.ClientMessageCloseNotification})
}

func (h *Hub) OpenWindow(url string) {
	h.publish(v1alpha1.ClientMessage{Type: v1alpha1.ClientMessageOpenWindow, URL: url})
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// ServeWs upgrades a page connection and attaches it to the hub. Messages
// received from the page are passed to onMessage.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, onMessage func(v1alpha1.GatewayMessage)) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:        uuid.New(),
		ws:        ws,
		send:      make(chan []byte, 256),
		hub:       h,
		logger:    h.logger,
		onMessage: onMessage,
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = ws.Close()
		return
	}

	go c.writePump()
	c.readPump()
}
