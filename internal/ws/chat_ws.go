package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/auth"
	"messaging-service/internal/conversation"
	"messaging-service/internal/observability"
	"messaging-service/internal/service"
	"messaging-service/internal/stream"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatSocketHandler serves the per-conversation live stream. Every snapshot
// delivered while the socket is open also runs the seen-sweep, mirroring the
// chat view marking inbound messages read upon display.
type ChatSocketHandler struct {
	hub      *Hub
	broker   *stream.Broker
	chat     *service.ChatService
	verifier *auth.Verifier
}

// NewChatSocketHandler constructs a ChatSocketHandler.
func NewChatSocketHandler(hub *Hub, broker *stream.Broker, chat *service.ChatService, verifier *auth.Verifier) *ChatSocketHandler {
	return &ChatSocketHandler{hub: hub, broker: broker, chat: chat, verifier: verifier}
}

// Handle upgrades the connection and streams conversation snapshots.
func (h *ChatSocketHandler) Handle(c *gin.Context) {
	friendID := c.Param("friend_id")

	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := identityFromRequest(c, h.verifier)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conversationID, err := conversation.DeriveID(identity.UserID, friendID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid friend id"})
		return
	}

	sub, err := h.broker.Subscribe(ctx, conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open conversation stream"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddChatClient(conversationID, conn, info)

	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")
	publishSocketEvent(context.Background(), "chat", conversationID, "ws_connect", info, "")

	var once sync.Once
	teardown := func(reason string) {
		once.Do(func() {
			sub.Close()
			h.hub.RemoveChatClient(conversationID, conn)
			conn.Close()
			observability.DecWSActive("chat")
			observability.IncWSEvent("chat", "ws_disconnect")
			publishSocketEvent(context.Background(), "chat", conversationID, "ws_disconnect", info, reason)
		})
	}

	// Write pump: snapshots out, seen-sweep after each delivery.
	go func() {
		for msgs := range sub.C {
			payload, err := json.Marshal(snapshotEvent(msgs))
			if err != nil {
				log.Printf("ws chat: marshal snapshot: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				teardown(err.Error())
				return
			}
			h.chat.MarkDeliveredSeen(context.Background(), identity.UserID, conversationID, msgs)
		}
		teardown("stream closed")
	}()

	// Read pump: the client sends nothing meaningful; reads only detect close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("chat", "ws_error")
				}
				teardown(err.Error())
				return
			}
		}
	}()
}

func identityFromRequest(c *gin.Context, verifier *auth.Verifier) (auth.Identity, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}
	parts := strings.SplitN(token, " ", 2)
	if len(parts) != 2 {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return verifier.Verify(parts[1])
}

func publishSocketEvent(ctx context.Context, kind, resourceID, event string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, socketRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        kind,
				"resource_id": resourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func socketRoutingKey(kind string) string {
	if kind == "notifications" {
		return "ws_events.notifications"
	}
	return "ws_events.conversations"
}
