package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/refdirectly/referral-backend/internal/service"
)

// ChatHandler обслуживает маршруты чатов.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler создаёт новый хэндлер.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListRooms обрабатывает GET /chat/rooms.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	rooms, err := h.chat.ListMyRooms(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoom обрабатывает GET /chat/:roomId: комната и её история.
func (h *ChatHandler) GetRoom(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор комнаты"})
		return
	}

	room, err := h.chat.GetRoomForUser(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	limit, offset := pagination(c)
	messages, err := h.chat.ListMessages(c.Request.Context(), roomID, userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":     room,
		"messages": messages,
	})
}

// SendMessage обрабатывает POST /chat/:roomId/messages.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор комнаты"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	message, err := h.chat.SendMessage(c.Request.Context(), roomID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": message})
}
