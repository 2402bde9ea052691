package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/service"
)

// ChatHandler serves the conversation REST endpoints.
type ChatHandler struct {
	chat   *service.ChatService
	unseen *service.UnseenService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chat *service.ChatService, unseen *service.UnseenService) *ChatHandler {
	return &ChatHandler{chat: chat, unseen: unseen}
}

// GetMessages returns the ordered history of the conversation with a friend.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	viewerID := c.GetString("userID")
	friendID := c.Param("friend_id")

	msgs, err := h.chat.History(c.Request.Context(), viewerID, friendID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message and fans it out to stream observers.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	viewerID := c.GetString("userID")
	viewerName := c.GetString("userName")
	friendID := c.Param("friend_id")

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), viewerID, viewerName, friendID, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBlankMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message body is blank"})
		case errors.Is(err, service.ErrSelfMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		}
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// DeleteMessage hard-deletes a message the caller sent. A missing id returns
// 204 as well: from the caller's perspective the message is gone either way.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	viewerID := c.GetString("userID")
	friendID := c.Param("friend_id")
	messageID := c.Param("message_id")

	if err := h.chat.Delete(c.Request.Context(), viewerID, friendID, messageID); err != nil {
		if errors.Is(err, service.ErrNotMessageSender) {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete a message"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetUnseenCount returns the current number of conversations with at least
// one unread inbound message. Live updates flow over the notification socket.
func (h *ChatHandler) GetUnseenCount(c *gin.Context) {
	viewerID := c.GetString("userID")

	count, err := h.unseen.Current(c.Request.Context(), viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute unseen count"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unseen_count": count})
}
