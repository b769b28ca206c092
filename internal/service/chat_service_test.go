package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/pkg/apperror"
)

type mockChatRepo struct {
	mock.Mock
}

func (m *mockChatRepo) GetRoom(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *mockChatRepo) GetRoomByRequestID(ctx context.Context, requestID uuid.UUID) (*models.ChatRoom, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *mockChatRepo) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatRoom, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatRoom), args.Error(1)
}

func (m *mockChatRepo) AddMessage(ctx context.Context, message *models.ChatMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *mockChatRepo) ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

type mockRoomNotifier struct {
	mock.Mock
}

func (m *mockRoomNotifier) BroadcastToRoom(roomID uuid.UUID, event string, data interface{}, exclude uuid.UUID) error {
	args := m.Called(roomID, event, data, exclude)
	return args.Error(0)
}

func (m *mockRoomNotifier) BroadcastToUser(userID uuid.UUID, event string, data interface{}) error {
	args := m.Called(userID, event, data)
	return args.Error(0)
}

func TestChatService_GetRoomForUser_NonParticipant(t *testing.T) {
	repo := new(mockChatRepo)
	svc := NewChatService(repo)
	ctx := context.Background()

	roomID := uuid.New()
	repo.On("GetRoom", ctx, roomID).Return(&models.ChatRoom{
		ID:         roomID,
		SeekerID:   uuid.New(),
		ReferrerID: uuid.New(),
	}, nil)

	_, err := svc.GetRoomForUser(ctx, roomID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

func TestChatService_SendMessage_Success(t *testing.T) {
	repo := new(mockChatRepo)
	hub := new(mockRoomNotifier)
	svc := NewChatService(repo)
	svc.SetHub(hub)
	ctx := context.Background()

	roomID := uuid.New()
	seekerID := uuid.New()
	referrerID := uuid.New()
	room := &models.ChatRoom{ID: roomID, SeekerID: seekerID, ReferrerID: referrerID}

	repo.On("GetRoom", ctx, roomID).Return(room, nil)
	repo.On("AddMessage", ctx, mock.MatchedBy(func(m *models.ChatMessage) bool {
		return m.SenderID == referrerID && m.SenderRole == models.RoleReferrer && m.Content == "Привет, отправил ваше резюме"
	})).Return(nil)
	hub.On("BroadcastToRoom", roomID, "chat_message", mock.Anything, referrerID).Return(nil)
	hub.On("BroadcastToUser", seekerID, "chat_message", mock.Anything).Return(nil)

	message, err := svc.SendMessage(ctx, roomID, referrerID, "  Привет, отправил ваше резюме  ")
	assert.NoError(t, err)
	assert.Equal(t, models.RoleReferrer, message.SenderRole)
	repo.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestChatService_SendMessage_EmptyContent(t *testing.T) {
	repo := new(mockChatRepo)
	svc := NewChatService(repo)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, uuid.New(), uuid.New(), "   ")
	assert.True(t, apperror.IsValidation(err))
	repo.AssertNotCalled(t, "AddMessage", mock.Anything, mock.Anything)
}

func TestChatService_SendMessage_NonParticipant(t *testing.T) {
	repo := new(mockChatRepo)
	svc := NewChatService(repo)
	ctx := context.Background()

	roomID := uuid.New()
	repo.On("GetRoom", ctx, roomID).Return(&models.ChatRoom{
		ID:         roomID,
		SeekerID:   uuid.New(),
		ReferrerID: uuid.New(),
	}, nil)

	_, err := svc.SendMessage(ctx, roomID, uuid.New(), "привет")
	assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

func TestChatService_SendMessage_DeliveredWithoutHub(t *testing.T) {
	repo := new(mockChatRepo)
	svc := NewChatService(repo)
	ctx := context.Background()

	roomID := uuid.New()
	seekerID := uuid.New()
	room := &models.ChatRoom{ID: roomID, SeekerID: seekerID, ReferrerID: uuid.New()}

	repo.On("GetRoom", ctx, roomID).Return(room, nil)
	repo.On("AddMessage", ctx, mock.Anything).Return(nil)

	message, err := svc.SendMessage(ctx, roomID, seekerID, "привет")
	assert.NoError(t, err)
	assert.Equal(t, models.RoleSeeker, message.SenderRole)
}

func TestChatService_NotifyTyping(t *testing.T) {
	repo := new(mockChatRepo)
	hub := new(mockRoomNotifier)
	svc := NewChatService(repo)
	svc.SetHub(hub)
	ctx := context.Background()

	roomID := uuid.New()
	seekerID := uuid.New()
	repo.On("GetRoom", ctx, roomID).Return(&models.ChatRoom{ID: roomID, SeekerID: seekerID, ReferrerID: uuid.New()}, nil)
	hub.On("BroadcastToRoom", roomID, "typing", mock.Anything, seekerID).Return(nil)

	err := svc.NotifyTyping(ctx, roomID, seekerID, true)
	assert.NoError(t, err)
	hub.AssertExpectations(t)
}
