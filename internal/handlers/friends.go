package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
)

// FriendsHandler serves roster and profile endpoints.
type FriendsHandler struct {
	chat  *service.ChatService
	users repositories.UserRepository
}

// NewFriendsHandler builds a FriendsHandler.
func NewFriendsHandler(chat *service.ChatService, users repositories.UserRepository) *FriendsHandler {
	return &FriendsHandler{chat: chat, users: users}
}

// ListFriends returns the viewer's roster enriched for the sidebar: profile,
// last message preview and unseen flag per friend.
func (h *FriendsHandler) ListFriends(c *gin.Context) {
	viewerID := c.GetString("userID")

	entries, err := h.chat.RosterEntries(c.Request.Context(), viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friends"})
		return
	}
	if entries == nil {
		entries = []models.RosterEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"friends": entries})
}

// FriendDetails resolves a batch of friend ids to basic profiles. Unknown
// ids are skipped, not errors.
func (h *FriendsHandler) FriendDetails(c *gin.Context) {
	var req struct {
		FriendIDs []string `json:"friend_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "friend_ids must be provided as an array"})
		return
	}

	profiles, err := h.users.GetBatch(c.Request.Context(), req.FriendIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friend details"})
		return
	}
	if profiles == nil {
		profiles = []models.UserProfile{}
	}
	c.JSON(http.StatusOK, gin.H{"friends": profiles})
}

// SyncProfile upserts the caller's profile from the identity provider. The
// id always comes from the token, never the body.
func (h *FriendsHandler) SyncProfile(c *gin.Context) {
	viewerID := c.GetString("userID")

	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email"`
		PhotoURL string `json:"photo_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile := models.UserProfile{
		ID:       viewerID,
		Name:     req.Name,
		Email:    req.Email,
		PhotoURL: req.PhotoURL,
	}
	if err := h.users.Upsert(c.Request.Context(), profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sync profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
