package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/service"
)

// NotificationSocketHandler serves the per-user global stream: live unseen
// conversation counts plus one-shot new-message notices. It runs regardless
// of which page the client is on.
type NotificationSocketHandler struct {
	hub      *Hub
	unseen   *service.UnseenService
	notifier *service.NotifierService
	verifier *auth.Verifier
}

// NewNotificationSocketHandler constructs a NotificationSocketHandler.
func NewNotificationSocketHandler(hub *Hub, unseen *service.UnseenService, notifier *service.NotifierService, verifier *auth.Verifier) *NotificationSocketHandler {
	return &NotificationSocketHandler{hub: hub, unseen: unseen, notifier: notifier, verifier: verifier}
}

// Handle upgrades the connection and streams notification events. Watchers
// live exactly as long as the socket, so a disconnected client leaves no
// subscriptions behind.
func (h *NotificationSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := identityFromRequest(c, h.verifier)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	watchCtx := context.Background()
	unseenWatcher, err := h.unseen.Watch(watchCtx, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start unseen watcher"})
		return
	}
	notifWatcher, err := h.notifier.Watch(watchCtx, identity.UserID)
	if err != nil {
		unseenWatcher.Close()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start notifier"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		unseenWatcher.Close()
		notifWatcher.Close()
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
	h.hub.AddNotificationClient(identity.UserID, conn, info)

	observability.IncWSActive("notifications")
	observability.IncWSEvent("notifications", "ws_connect")
	publishSocketEvent(context.Background(), "notifications", identity.UserID, "ws_connect", info, "")

	var once sync.Once
	teardown := func(reason string) {
		once.Do(func() {
			unseenWatcher.Close()
			notifWatcher.Close()
			h.hub.RemoveNotificationClient(identity.UserID, conn)
			conn.Close()
			observability.DecWSActive("notifications")
			observability.IncWSEvent("notifications", "ws_disconnect")
			publishSocketEvent(context.Background(), "notifications", identity.UserID, "ws_disconnect", info, reason)
		})
	}

	// Write pump: merge count updates and message notices onto the socket.
	go func() {
		for {
			var event models.NotificationEvent
			select {
			case count, ok := <-unseenWatcher.C:
				if !ok {
					teardown("watcher closed")
					return
				}
				event = unseenCountEvent(count)
			case notice, ok := <-notifWatcher.C:
				if !ok {
					teardown("watcher closed")
					return
				}
				event = notice
			}

			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("ws notifications: marshal event: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				teardown(err.Error())
				return
			}
		}
	}()

	// Read pump: detect close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("notifications", "ws_error")
				}
				teardown(err.Error())
				return
			}
		}
	}()
}
