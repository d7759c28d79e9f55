package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	xlogger "SignalDesk/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsSendBuffer = 32
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsClient struct {
	send chan []byte
}

// EventHub streams lifecycle events to websocket clients. It is an
// EventPublisher sink; a client that cannot keep up is disconnected.
type EventHub struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	snapshot func() []models.Event
	l        *xlogger.Logger
}

var _ domrepo.EventPublisher = (*EventHub)(nil)

// NewEventHub creates a hub. snapshot, when set, provides the events a new
// client receives before the live stream.
func NewEventHub(snapshot func() []models.Event, l *xlogger.Logger) *EventHub {
	if l == nil {
		l = xlogger.Nop()
	}
	return &EventHub{
		clients:  make(map[*wsClient]struct{}),
		snapshot: snapshot,
		l:        l.Component("event_hub"),
	}
}

// SetSnapshot replaces the snapshot source.
func (h *EventHub) SetSnapshot(fn func() []models.Event) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

func (h *EventHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/events", h.Serve)
}

// Publish fans e out to every connected client without blocking.
func (h *EventHub) Publish(_ context.Context, e models.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.l.Warn("slow websocket client dropped")
			delete(h.clients, c)
			close(c.send)
		}
	}
	return nil
}

func (h *EventHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and streams events until the client leaves.
func (h *EventHub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade", xlogger.Error(err))
		return nil
	}

	client := &wsClient{send: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	snapshot := h.snapshot
	h.mu.Unlock()
	if snapshot != nil {
		for _, e := range snapshot() {
			b, err := json.Marshal(e)
			if err != nil {
				continue
			}
			select {
			case client.send <- b:
			default:
			}
		}
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.l.Debug("websocket client connected", xlogger.String("remote", c.RealIP()))

	go h.writePump(conn, client)
	h.readPump(conn, client)
	return nil
}

// readPump discards client frames; it exists to observe close and pong.
func (h *EventHub) readPump(conn *websocket.Conn, client *wsClient) {
	defer func() {
		h.remove(client)
		_ = conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writePump(conn *websocket.Conn, client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case b, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventHub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Close disconnects every client.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
