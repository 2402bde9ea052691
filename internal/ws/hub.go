package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks live websocket connections. Message fan-out runs through the
// stream broker; the hub's job is connection bookkeeping and presence — who
// currently has which conversation open, so the notifier can stay quiet
// about messages the viewer is already looking at.
type Hub struct {
	mu         sync.RWMutex
	chatConns  map[string]map[*websocket.Conn]ConnInfo
	notifConns map[string]map[*websocket.Conn]ConnInfo
	open       map[string]map[string]int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		chatConns:  make(map[string]map[*websocket.Conn]ConnInfo),
		notifConns: make(map[string]map[*websocket.Conn]ConnInfo),
		open:       make(map[string]map[string]int),
	}
}

// AddChatClient registers a chat-view connection and marks the conversation
// open for the user. Multiple tabs on the same conversation are refcounted.
func (h *Hub) AddChatClient(conversationID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chatConns[conversationID]; !ok {
		h.chatConns[conversationID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.chatConns[conversationID][conn] = info

	if _, ok := h.open[info.UserID]; !ok {
		h.open[info.UserID] = make(map[string]int)
	}
	h.open[info.UserID][conversationID]++
}

// RemoveChatClient drops a chat-view connection and releases presence.
func (h *Hub) RemoveChatClient(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.chatConns[conversationID]
	if !ok {
		return
	}
	info, ok := conns[conn]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.chatConns, conversationID)
	}

	if opened, ok := h.open[info.UserID]; ok {
		opened[conversationID]--
		if opened[conversationID] <= 0 {
			delete(opened, conversationID)
		}
		if len(opened) == 0 {
			delete(h.open, info.UserID)
		}
	}
}

// HasConversationOpen reports live chat-view presence for the notifier.
func (h *Hub) HasConversationOpen(userID, conversationID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.open[userID][conversationID] > 0
}

// AddNotificationClient registers a per-user notification connection.
func (h *Hub) AddNotificationClient(userID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.notifConns[userID]; !ok {
		h.notifConns[userID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.notifConns[userID][conn] = info
}

// RemoveNotificationClient drops a notification connection.
func (h *Hub) RemoveNotificationClient(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.notifConns[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.notifConns, userID)
		}
	}
}
