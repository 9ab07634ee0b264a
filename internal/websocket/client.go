package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sealevel/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to render a chart for one range request
	renderTimeout = 15 * time.Second

	sendBuffer = 256
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages
	send chan []byte

	// Closed by the hub once the client is registered
	ready chan struct{}

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger
}

// NewClient creates a client for conn. An empty traceID gets a fresh one.
func NewClient(hub *Hub, conn Connection, traceID string) *Client {
	id := uuid.New().String()
	if traceID == "" {
		traceID = infrastructure.GenerateTraceID()
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		ready:       make(chan struct{}),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger: hub.logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
			slog.String("trace_id", traceID),
		),
	}
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	return infrastructure.WithTraceID(context.Background(), c.traceID)
}

// ReadPump reads client frames until the connection fails, answering range
// requests with charts
func (c *Client) ReadPump() {
	pongWait := c.hub.cfg.PongWait
	var received int

	defer func() {
		c.logger.Info("websocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int("messages_received", received))
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		received++
		c.handle(bytes.TrimSpace(bytes.ReplaceAll(message, newline, space)))
	}
}

func (c *Client) handle(message []byte) {
	ctx := c.context()

	var in inbound
	if err := json.Unmarshal(message, &in); err != nil {
		c.hub.recordReceived(ctx, "invalid")
		c.reply(NewMessage(TypeError, ErrorPayload{Message: "message is not valid JSON"}))
		return
	}
	c.hub.recordReceived(ctx, in.Type)

	switch in.Type {
	case TypeHeartbeat:
		c.logger.Debug("heartbeat received")
	case TypeRange:
		c.handleRange(ctx, in)
	default:
		c.reply(NewMessage(TypeError, ErrorPayload{Message: "unsupported message type " + quote(in.Type)}))
	}
}

func (c *Client) handleRange(ctx context.Context, in inbound) {
	if c.hub.charts == nil {
		c.reply(NewMessage(TypeError, ErrorPayload{Message: "charts are not available"}))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	view, err := c.hub.charts.Chart(ctx, in.chartRequest())
	if err != nil {
		c.logger.Warn("range request failed",
			slog.Int("start", in.Start),
			slog.Int("end", in.End),
			slog.String("error", err.Error()))
		c.reply(NewMessage(TypeError, ErrorPayload{Message: err.Error()}))
		return
	}

	c.reply(NewMessage(TypeChart, NewChartPayload(view)))
}

func (c *Client) reply(msg Message) {
	if !c.hub.SendTo(c, msg) {
		c.logger.Warn("reply dropped", slog.String("type", msg.Type))
	}
}

// WritePump writes queued messages to the connection and keeps it alive
// with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.hub.cfg.PongWait * 9 / 10)
	var sent int

	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug("websocket write pump stopped", slog.Int("messages_sent", sent))
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("write websocket message", slog.String("error", err.Error()))
				return
			}
			sent++

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("send ping", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// ServeWS registers a client for an upgraded connection and starts its pumps
func ServeWS(hub *Hub, conn Connection, traceID string) *Client {
	client := NewClient(hub, conn, traceID)
	hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return client
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
