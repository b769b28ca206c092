package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/pkg/apperror"
	"github.com/refdirectly/referral-backend/internal/repository"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	ListWaiting(ctx context.Context, userID uuid.UUID) ([]models.Notification, error)
	RejectOwn(ctx context.Context, id, userID uuid.UUID) error
}

// NotificationService содержит бизнес-логику работы с лентой уведомлений.
type NotificationService struct {
	repo NotificationRepository
}

// NewNotificationService создаёт новый сервис уведомлений.
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// NotificationFeed — выдача ленты вместе со счётчиком непрочитанных.
type NotificationFeed struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// ListNotifications возвращает ленту пользователя со счётчиком непрочитанных.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) (*NotificationFeed, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := s.repo.List(ctx, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &NotificationFeed{Notifications: notifications, UnreadCount: unread}, nil
}

// ListIncoming возвращает входящие приглашения рекомендателя: его
// waiting-уведомления о новых запросах.
func (s *NotificationService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	notifications, err := s.repo.ListWaiting(ctx, userID)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// GetForUser возвращает уведомление владельцу. Чужое уведомление
// неотличимо от несуществующего.
func (s *NotificationService) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return nil, apperror.ErrNotificationNotFound
		}
		return nil, err
	}

	if notification.UserID != userID {
		return nil, apperror.ErrNotificationNotFound
	}

	return notification, nil
}

// MarkAsRead отмечает уведомление как прочитанное.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.MarkAsRead(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.ErrNotificationNotFound
		}
		return err
	}
	return nil
}

// MarkAllAsRead отмечает все уведомления пользователя как прочитанные.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// DeleteNotification удаляет уведомление владельца.
func (s *NotificationService) DeleteNotification(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.ErrNotificationNotFound
		}
		return err
	}
	return nil
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// ResolveRequestID возвращает запрос, к которому привязано waiting-
// уведомление пользователя. Принятие из ленты сводится к обычному
// принятию запроса — гонку всё равно решает хранилище.
func (s *NotificationService) ResolveRequestID(ctx context.Context, id, userID uuid.UUID) (uuid.UUID, error) {
	notification, err := s.GetForUser(ctx, id, userID)
	if err != nil {
		return uuid.Nil, err
	}

	if notification.JobRequestID == nil || notification.Status == nil || *notification.Status != models.NotificationStatusWaiting {
		return uuid.Nil, apperror.New(apperror.ErrCodeConflict, "уведомление уже не ожидает ответа")
	}

	return *notification.JobRequestID, nil
}

// Reject — явный отказ рекомендателя от приглашения. Запрос при этом не
// трогается: остальные рекомендатели продолжают соревноваться.
func (s *NotificationService) Reject(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.RejectOwn(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.New(apperror.ErrCodeConflict, "уведомление уже не ожидает ответа")
		}
		return err
	}
	return nil
}
