package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kiochat-ws/internal/hub"
	"kiochat-ws/internal/repositories"
)

// DefaultMessageBatch is the history page size when the client sends none.
const DefaultMessageBatch = 20

// MessageHandler serves the message-history and mark-read endpoints.
type MessageHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	status      *hub.StatusTracker
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, status *hub.StatusTracker) *MessageHandler {
	return &MessageHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		status:      status,
	}
}

// GetChatMessages returns one page of chat history, oldest first, with a
// cursor to the next older page.
func (h *MessageHandler) GetChatMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	limit := DefaultMessageBatch
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	msgs, nextCursor, err := h.messageRepo.ListMessages(c.Request.Context(), chatID, c.Query("cursor"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "nextCursor": nextCursor})
}

// MarkChatRead marks every message in the chat not sent by the caller as
// READ and pushes the status change to the affected senders' connections.
func (h *MessageHandler) MarkChatRead(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	updated, err := h.messageRepo.MarkChatRead(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}

	h.status.PublishBatch(updated)
	c.JSON(http.StatusOK, gin.H{"updated": len(updated)})
}
