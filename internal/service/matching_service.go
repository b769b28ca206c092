package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/refdirectly/referral-backend/internal/logger"
	"github.com/refdirectly/referral-backend/internal/models"
)

// MatchingUserRepository описывает выборку подходящих рекомендателей.
type MatchingUserRepository interface {
	ListVerifiedReferrers(ctx context.Context, company string) ([]models.User, error)
}

// MatchingNotificationRepository описывает запись уведомлений при рассылке.
type MatchingNotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// WSNotifier интерфейс для отправки WebSocket событий пользователю.
type WSNotifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}

// MatchingService подбирает рекомендателей под запрос и рассылает им
// waiting-уведомления.
type MatchingService struct {
	users         MatchingUserRepository
	notifications MatchingNotificationRepository
	hub           WSNotifier
}

// NewMatchingService создаёт сервис подбора.
func NewMatchingService(users MatchingUserRepository, notifications MatchingNotificationRepository) *MatchingService {
	return &MatchingService{
		users:         users,
		notifications: notifications,
	}
}

// SetHub подключает канал realtime-доставки. До вызова рассылка работает
// только через хранилище.
func (s *MatchingService) SetHub(hub WSNotifier) {
	s.hub = hub
}

// ComputeEligibleReferrers возвращает рекомендателей с подтверждённой
// привязкой к компании запроса. Автор запроса исключается из выборки.
func (s *MatchingService) ComputeEligibleReferrers(ctx context.Context, company string, seekerID uuid.UUID) ([]models.User, error) {
	referrers, err := s.users.ListVerifiedReferrers(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("matching service: eligible referrers %w", err)
	}

	eligible := referrers[:0]
	for _, referrer := range referrers {
		if referrer.ID == seekerID {
			continue
		}
		eligible = append(eligible, referrer)
	}

	return eligible, nil
}

// FanOut создаёт по одному waiting-уведомлению на каждого подходящего
// рекомендателя. Ошибка записи одной строки не прерывает рассылку:
// возвращается число успешно созданных уведомлений. Push в WebSocket
// выполняется после записи и на результат не влияет.
func (s *MatchingService) FanOut(ctx context.Context, request *models.ReferralRequest, seekerName string) (int, error) {
	referrers, err := s.ComputeEligibleReferrers(ctx, request.Company, request.SeekerID)
	if err != nil {
		return 0, err
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"company":     request.Company,
		"role":        request.Role,
		"skills":      []string(request.Skills),
		"reward":      request.Reward,
		"seeker_id":   request.SeekerID,
		"seeker_name": seekerName,
	})
	if err != nil {
		return 0, fmt.Errorf("matching service: marshal metadata %w", err)
	}

	sent := 0
	for _, referrer := range referrers {
		status := models.NotificationStatusWaiting
		requestID := request.ID
		notification := &models.Notification{
			UserID:       referrer.ID,
			UserRole:     models.RoleReferrer,
			Type:         models.NotificationTypeReferralRequest,
			Title:        fmt.Sprintf("New Referral Request - %s", request.Company),
			Message:      fmt.Sprintf("%s position at %s. Reward: $%.0f", request.Role, request.Company, request.Reward),
			Status:       &status,
			JobRequestID: &requestID,
			Priority:     models.PriorityHigh,
			Metadata:     metadata,
		}

		if err := s.notifications.Create(ctx, notification); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"request_id":  request.ID,
				"referrer_id": referrer.ID,
				"error":       err.Error(),
			}).Warn("matching service: не удалось создать уведомление рекомендателю")
			continue
		}
		sent++

		if s.hub != nil {
			if err := s.hub.BroadcastToUser(referrer.ID, "notification", notification); err != nil {
				logger.Log.WithFields(map[string]interface{}{
					"referrer_id": referrer.ID,
					"error":       err.Error(),
				}).Debug("matching service: push не доставлен")
			}
		}
	}

	return sent, nil
}
