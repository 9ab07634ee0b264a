package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"sealevel/internal/config"
	"sealevel/internal/infrastructure"
)

const broadcastBuffer = 64

// HubStats is a point-in-time view of hub activity
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	Dropped          int64 `json:"dropped"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	cfg     config.WebSocketConfig
	charts  ChartProvider
	metrics *infrastructure.BusinessMetrics

	totalConnections int64
	messagesSent     int64
	messagesReceived int64
	dropped          int64

	quit    chan struct{}
	done    chan struct{}
	running bool
	stopped bool
}

// NewHub creates a hub that answers range requests with charts from charts.
// A nil metrics falls back to no-op instruments.
func NewHub(cfg config.WebSocketConfig, charts ChartProvider, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		metrics, _ = infrastructure.CreateBusinessMetrics(nil)
	}
	defaults := config.Default().WebSocket
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		cfg:        cfg,
		charts:     charts,
		metrics:    metrics,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine. It is a no-op once started.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running || h.stopped {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			count := len(h.clients)
			h.mu.Unlock()

			ctx := client.context()
			h.metrics.WebSocketClients.Add(ctx, 1)
			h.logger.InfoContext(ctx, "client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.SendTo(client, NewMessage(TypeConnection, map[string]string{
				"status":    "connected",
				"client_id": client.id,
			}))
			close(client.ready)

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				ctx := client.context()
				h.metrics.WebSocketClients.Add(ctx, -1)
				h.logger.InfoContext(ctx, "client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var sent, failed int
	for client := range h.clients {
		select {
		case client.send <- message:
			sent++
		default:
			failed++
			close(client.send)
			delete(h.clients, client)
			h.metrics.WebSocketClients.Add(context.Background(), -1)
			h.logger.Warn("client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}
	h.messagesSent += int64(sent)

	h.logger.Debug("broadcast delivered",
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Int("message_size", len(message)))
}

// Broadcast sends a typed message to every connected client. Messages are
// dropped, not queued, when the hub is not running or its queue is full.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := json.Marshal(NewMessage(messageType, data))
	if err != nil {
		h.logger.Error("marshal broadcast", slog.String("type", messageType), slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()

	if running {
		select {
		case h.broadcast <- payload:
			h.metrics.WebSocketMessages.Add(context.Background(), 1, metric.WithAttributes(
				attribute.String("direction", "out"),
				attribute.String("type", messageType),
			))
			return
		default:
		}
	}

	h.mu.Lock()
	h.dropped++
	h.mu.Unlock()
	h.logger.Debug("broadcast dropped", slog.String("type", messageType), slog.Bool("running", running))
}

// SendTo queues a message for a single registered client
func (h *Hub) SendTo(client *Client, msg Message) bool {
	if msg.TraceID == "" {
		msg.TraceID = client.traceID
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", slog.String("type", msg.Type), slog.String("error", err.Error()))
		return false
	}

	h.mu.RLock()
	ok := h.clients[client]
	if ok {
		select {
		case client.send <- payload:
		default:
			ok = false
		}
	}
	h.mu.RUnlock()

	if !ok {
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		return false
	}

	h.mu.Lock()
	h.messagesSent++
	h.mu.Unlock()
	h.metrics.WebSocketMessages.Add(client.context(), 1, metric.WithAttributes(
		attribute.String("direction", "out"),
		attribute.String("type", msg.Type),
	))
	return true
}

// Register adds a client and waits until it has been greeted. It returns
// immediately once the hub is stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		return
	}
	select {
	case <-client.ready:
	case <-h.quit:
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		MessagesReceived: h.messagesReceived,
		Dropped:          h.dropped,
	}
}

// Stop ends the hub loop and disconnects every client. It is safe to call
// more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	wasRunning := h.running
	h.running = false
	h.stopped = true
	h.mu.Unlock()

	close(h.quit)
	if wasRunning {
		<-h.done
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) recordReceived(ctx context.Context, messageType string) {
	h.mu.Lock()
	h.messagesReceived++
	h.mu.Unlock()
	h.metrics.WebSocketMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", "in"),
		attribute.String("type", messageType),
	))
}
