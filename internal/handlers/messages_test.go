package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kiochat-ws/internal/hub"
	"kiochat-ws/internal/mocks"
	"kiochat-ws/internal/models"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	})
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/chats/:chat_id/read", handler.MarkChatRead)
	return r
}

func newMessageHandler(chatRepo *mocks.ChatRepositoryMock, messageRepo *mocks.MessageRepositoryMock) *MessageHandler {
	status := hub.NewStatusTracker(hub.NewRegistry(), messageRepo, chatRepo)
	return NewMessageHandler(chatRepo, messageRepo, status)
}

func TestGetChatMessagesSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(chatRepo, messageRepo))

	msgs := []models.Message{
		{ID: "m1", ChatID: "room-7", SenderID: "u2", Content: "old", Status: models.StatusRead},
		{ID: "m2", ChatID: "room-7", SenderID: "u1", Content: "new", Status: models.StatusSent},
	}
	chatRepo.On("IsParticipant", mock.Anything, "room-7", "u1").Return(true, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, "room-7", "", DefaultMessageBatch).Return(msgs, "m1", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/room-7/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages   []models.Message `json:"messages"`
		NextCursor string           `json:"nextCursor"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	require.Equal(t, "old", resp.Messages[0].Content)
	require.Equal(t, "m1", resp.NextCursor)

	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestGetChatMessagesCustomLimitAndCursor(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(chatRepo, messageRepo))

	chatRepo.On("IsParticipant", mock.Anything, "room-7", "u1").Return(true, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, "room-7", "m20", 50).Return([]models.Message{}, "", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/room-7/messages?limit=50&cursor=m20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestGetChatMessagesInvalidLimit(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(chatRepo, messageRepo))

	chatRepo.On("IsParticipant", mock.Anything, "room-7", "u1").Return(true, nil)

	for _, limit := range []string{"0", "101", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/chats/room-7/messages?limit="+limit, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "limit %s", limit)
	}
	messageRepo.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetChatMessagesForbiddenForNonMember(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(chatRepo, messageRepo))

	chatRepo.On("IsParticipant", mock.Anything, "room-7", "u1").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/room-7/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetChatMessagesRepoError(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(chatRepo, messageRepo))

	chatRepo.On("IsParticipant", mock.Anything, "room-7", "u1").Return(true, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, "room-7", "", DefaultMessageBatch).Return(([]models.Message)(nil), "", assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/room-7/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMarkChatReadSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(chatRepo, messageRepo))

	now := time.Now().UTC()
	updated := []models.Message{
		{ID: "m1", ChatID: "room-7", SenderID: "u2", Status: models.StatusRead, ReadAt: &now},
		{ID: "m2", ChatID: "room-7", SenderID: "u2", Status: models.StatusRead, ReadAt: &now},
	}
	chatRepo.On("IsParticipant", mock.Anything, "room-7", "u1").Return(true, nil).Once()
	messageRepo.On("MarkChatRead", mock.Anything, "room-7", "u1").Return(updated, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/room-7/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp["updated"])

	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestMarkChatReadForbiddenForNonMember(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(newMessageHandler(chatRepo, messageRepo))

	chatRepo.On("IsParticipant", mock.Anything, "room-7", "u1").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/room-7/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "MarkChatRead", mock.Anything, mock.Anything, mock.Anything)
}
