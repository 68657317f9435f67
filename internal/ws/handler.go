package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"geo-chat-service/internal/config"
	"geo-chat-service/internal/logging"
	"geo-chat-service/internal/observability"
)

// Handler upgrades HTTP requests to websocket connections and runs them.
type Handler struct {
	hub      *Hub
	router   *Router
	cfg      config.WSConfig
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler constructs a Handler. allowedOrigins follows the CORS policy of the HTTP surface.
func NewHandler(hub *Hub, router *Router, allowedOrigins []string, cfg config.WSConfig, log *slog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		router: router,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// Handle upgrades the connection and registers the client.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("geo-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WarnContext(ctx, "ws handler - upgrade failed", logging.Err(err))
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info, h.cfg.SendBuffer)
	h.hub.Register(client)

	observability.IncWSActive(wsKind)
	h.publishWSEvent(ctx, "ws_connect", info, "")
	h.log.InfoContext(ctx, "ws handler - connection established", logging.ConnID(info.ConnID), slog.String("ip", info.IP))

	// The request context ends when this handler returns; the session outlives it.
	sessionCtx := context.WithoutCancel(ctx)
	go client.writeLoop(h.cfg.WriteTimeout)
	go h.readLoop(sessionCtx, client, conn)
}

func (h *Handler) readLoop(ctx context.Context, client *Client, conn *websocket.Conn) {
	info := client.Info()
	var closeReason string
	defer func() {
		h.router.HandleDisconnect(ctx, client)
		client.Close()
		observability.DecWSActive(wsKind)
		h.publishWSEvent(ctx, "ws_disconnect", info, closeReason)
		h.log.InfoContext(ctx, "ws handler - connection closed", logging.ConnID(info.ConnID), slog.String("reason", closeReason))
	}()

	conn.SetReadLimit(h.cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.publishWSEvent(ctx, "ws_error", info, closeReason)
			}
			return
		}
		if len(data) == 0 {
			continue
		}
		h.router.HandleFrame(ctx, client, data)
	}
}

func (h *Handler) publishWSEvent(ctx context.Context, event string, info ConnInfo, reason string) {
	var durationMs int64
	if event != "ws_connect" {
		durationMs = time.Since(info.ConnectedAt).Milliseconds()
	}
	observability.IncWSEvent(wsKind, event)
	_ = observability.PublishEvent(ctx, "ws_events.geo", observability.NewEventEnvelope("ws_events", event, map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        wsKind,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMs,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}), observability.BuildHeaders(info.RequestID, info.TraceID))
}
