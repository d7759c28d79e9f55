package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	applogger "SignalDesk/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements AdminSignalStream over a Phoenix-style realtime
// websocket that forwards Postgres row changes of the admin_signals table.
type Client struct {
	baseURL        string
	apiKey         string
	table          string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer
	log            *applogger.Logger

	wmu       sync.Mutex // one writer at a time
	conn      *websocket.Conn
	connected atomic.Bool
	ref       atomic.Int64
}

var _ drepo.AdminSignalStream = (*Client)(nil)

// New creates a realtime AdminSignalStream for table.
func New(baseURL, apiKey, table string, reconnectDelay, pingInterval time.Duration, log *applogger.Logger) *Client {
	if log == nil {
		log = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &Client{
		baseURL:        baseURL,
		apiKey:         apiKey,
		table:          table,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		dialer:         websocket.DefaultDialer,
		log:            log.Component("realtime"),
	}
}

// Connect dials the socket and joins the table's change channel.
func (c *Client) Connect(ctx context.Context) error {
	u, err := c.socketURL()
	if err != nil {
		return err
	}
	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("realtime connect: %w", err)
	}

	c.wmu.Lock()
	c.conn = conn
	c.wmu.Unlock()

	if err := c.send(joinMessage(c.topic(), c.table, c.nextRef())); err != nil {
		_ = conn.Close()
		return fmt.Errorf("realtime join: %w", err)
	}
	c.connected.Store(true)
	c.log.Info("connected", applogger.String("table", c.table))
	return nil
}

func (c *Client) socketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("realtime url: %w", err)
	}
	q := u.Query()
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) topic() string { return "realtime:public:" + c.table }

func (c *Client) nextRef() string { return strconv.FormatInt(c.ref.Add(1), 10) }

func (c *Client) send(m message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("realtime not connected")
	}
	return c.conn.WriteJSON(m)
}

// Read streams pending admin signals and read errors for the current
// connection. Both channels close when the connection drops.
func (c *Client) Read(ctx context.Context) (<-chan *models.AdminSignal, <-chan error) {
	out := make(chan *models.AdminSignal, 64)
	errs := make(chan error, 1)

	c.wmu.Lock()
	conn := c.conn
	c.wmu.Unlock()

	done := make(chan struct{})

	// heartbeat loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := c.send(heartbeatMessage(c.nextRef())); err != nil {
					c.log.Warn("heartbeat", applogger.Error(err))
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(done)
		defer close(out)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("realtime conn nil")
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.connected.Store(false)
				if ctx.Err() == nil {
					errs <- fmt.Errorf("realtime read: %w", err)
				}
				return
			}
			a, ok := decodeChange(b)
			if !ok {
				continue
			}
			select {
			case out <- a:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errs
}

// Reconnect closes the socket, waits the reconnect delay and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	return c.Connect(ctx)
}

// Close closes the socket.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool { return c.connected.Load() }

type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

func joinMessage(topic, table, ref string) message {
	payload, _ := json.Marshal(map[string]any{
		"config": map[string]any{
			"postgres_changes": []changeFilter{{Event: "*", Schema: "public", Table: table}},
		},
	})
	return message{Topic: topic, Event: "phx_join", Payload: payload, Ref: &ref}
}

func heartbeatMessage(ref string) message {
	return message{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage(`{}`), Ref: &ref}
}

type changePayload struct {
	Data struct {
		Type      string                `json:"type"`
		Record    models.AdminSignalRow `json:"record"`
		OldRecord models.AdminSignalRow `json:"old_record"`
	} `json:"data"`
}

// decodeChange extracts a pending admin signal from a change frame. Inserts
// pass when pending; updates pass only when the row just became pending.
func decodeChange(b []byte) (*models.AdminSignal, bool) {
	var m message
	if err := json.Unmarshal(b, &m); err != nil || m.Event != "postgres_changes" {
		return nil, false
	}
	var p changePayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, false
	}
	a, ok := p.Data.Record.ToAdminSignal()
	if !ok || !a.IsPending() {
		return nil, false
	}
	switch p.Data.Type {
	case "INSERT":
		return a, true
	case "UPDATE":
		if models.AdminStatus(p.Data.OldRecord.Status) == models.AdminPending {
			return nil, false
		}
		return a, true
	}
	return nil, false
}
