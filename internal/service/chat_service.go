package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/refdirectly/referral-backend/internal/logger"
	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/pkg/apperror"
	"github.com/refdirectly/referral-backend/internal/repository"
	"github.com/refdirectly/referral-backend/internal/validation"
)

// ChatRepository описывает взаимодействие сервиса с хранилищем чатов.
type ChatRepository interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error)
	GetRoomByRequestID(ctx context.Context, requestID uuid.UUID) (*models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatRoom, error)
	AddMessage(ctx context.Context, message *models.ChatMessage) error
	ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.ChatMessage, error)
}

// RoomNotifier интерфейс для отправки событий участникам комнаты.
type RoomNotifier interface {
	BroadcastToRoom(roomID uuid.UUID, event string, data interface{}, exclude uuid.UUID) error
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}

// ChatService содержит бизнес-логику чатов соискателя и рекомендателя.
type ChatService struct {
	repo ChatRepository
	hub  RoomNotifier
}

// NewChatService создаёт сервис чатов.
func NewChatService(repo ChatRepository) *ChatService {
	return &ChatService{repo: repo}
}

// SetHub подключает канал realtime-доставки.
func (s *ChatService) SetHub(hub RoomNotifier) {
	s.hub = hub
}

// ListMyRooms возвращает комнаты пользователя.
func (s *ChatService) ListMyRooms(ctx context.Context, userID uuid.UUID) ([]models.ChatRoom, error) {
	rooms, err := s.repo.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []models.ChatRoom{}
	}
	return rooms, nil
}

// GetRoomForUser возвращает комнату участнику. Для постороннего комната
// неотличима от несуществующей.
func (s *ChatService) GetRoomForUser(ctx context.Context, roomID, userID uuid.UUID) (*models.ChatRoom, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperror.ErrRoomNotFound
		}
		return nil, err
	}

	if !room.HasParticipant(userID) {
		return nil, apperror.ErrRoomNotFound
	}

	return room, nil
}

// ListMessages возвращает историю сообщений комнаты участнику.
func (s *ChatService) ListMessages(ctx context.Context, roomID, userID uuid.UUID, limit, offset int) ([]models.ChatMessage, error) {
	if _, err := s.GetRoomForUser(ctx, roomID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.repo.ListMessages(ctx, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	return messages, nil
}

// SendMessage сохраняет сообщение и рассылает его участникам комнаты.
// Сообщение считается доставленным после записи в хранилище: realtime —
// только ускорение, история всегда доступна через ListMessages.
func (s *ChatService) SendMessage(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if err := validation.ValidateLength("сообщение", content, validation.MinMessageLength, validation.MaxMessageLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	room, err := s.GetRoomForUser(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}

	senderRole := models.RoleSeeker
	if room.ReferrerID == senderID {
		senderRole = models.RoleReferrer
	}

	message := &models.ChatMessage{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderRole: senderRole,
		Content:    content,
	}

	if err := s.repo.AddMessage(ctx, message); err != nil {
		return nil, err
	}

	if s.hub != nil {
		if err := s.hub.BroadcastToRoom(roomID, "chat_message", message, senderID); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"room_id": roomID,
				"error":   err.Error(),
			}).Debug("chat service: сообщение не доставлено в realtime")
		}

		// Второй участник мог не подписаться на комнату, но держать
		// общее соединение.
		recipient := room.SeekerID
		if recipient == senderID {
			recipient = room.ReferrerID
		}
		_ = s.hub.BroadcastToUser(recipient, "chat_message", message)
	}

	return message, nil
}

// NotifyTyping ретранслирует индикатор набора остальным участникам.
func (s *ChatService) NotifyTyping(ctx context.Context, roomID, userID uuid.UUID, typing bool) error {
	if _, err := s.GetRoomForUser(ctx, roomID, userID); err != nil {
		return err
	}

	if s.hub == nil {
		return nil
	}

	return s.hub.BroadcastToRoom(roomID, "typing", map[string]interface{}{
		"room_id": roomID,
		"user_id": userID,
		"typing":  typing,
	}, userID)
}
