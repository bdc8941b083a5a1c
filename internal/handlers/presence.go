package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kiochat-ws/internal/hub"
)

// PresenceHandler exposes presence lookups over HTTP.
type PresenceHandler struct {
	presence *hub.PresenceTracker
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(presence *hub.PresenceTracker) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// GetPresence reports whether a user is online and, when offline, when they
// were last seen.
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	userID := c.Param("user_id")

	if h.presence.IsOnline(userID) {
		c.JSON(http.StatusOK, gin.H{"userId": userID, "online": true})
		return
	}

	lastSeen, ok, err := h.presence.LastSeen(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load last seen"})
		return
	}

	resp := gin.H{"userId": userID, "online": false}
	if ok {
		resp["lastSeen"] = lastSeen.UTC().Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, resp)
}
