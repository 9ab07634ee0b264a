package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"sealevel/internal/config"
	apperrors "sealevel/internal/errors"
	"sealevel/internal/middleware"
	ws "sealevel/internal/websocket"
)

// WebSocketHandler upgrades /ws requests and hands the connection to the hub
type WebSocketHandler struct {
	hub            *ws.Hub
	upgrader       websocket.Upgrader
	allowedOrigins []string
	logger         *slog.Logger
}

// NewWebSocketHandler creates the upgrade handler. Origins are checked
// against allowedOrigins; same-host origins are always accepted.
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         logger.With(slog.String("handler", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	if middleware.OriginAllowed(h.allowedOrigins, origin) {
		return true
	}
	h.logger.WarnContext(r.Context(), "websocket origin not allowed",
		slog.String("origin", origin),
		slog.String("host", r.Host))
	return false
}

// ServeHTTP handles GET /ws
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetRequestID(r.Context())

	// on failure the upgrader has already answered the client
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), apperrors.ErrWebSocketUpgrade.Message,
			slog.String("error", err.Error()),
			slog.String("remote_addr", middleware.GetRealIP(r)))
		return
	}

	client := ws.ServeWS(h.hub, ws.WrapConn(conn), traceID)
	h.logger.InfoContext(r.Context(), "websocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", middleware.GetRealIP(r)))
}
