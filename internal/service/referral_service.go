package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/refdirectly/referral-backend/internal/logger"
	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/pkg/apperror"
	"github.com/refdirectly/referral-backend/internal/repository"
	"github.com/refdirectly/referral-backend/internal/validation"
)

// ReferralRequestRepository описывает хранилище запросов рекомендаций.
type ReferralRequestRepository interface {
	Create(ctx context.Context, request *models.ReferralRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReferralRequest, error)
	ListBySeeker(ctx context.Context, seekerID uuid.UUID, status string, limit, offset int) ([]models.ReferralRequest, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]models.ReferralRequest, error)
	AcceptPending(ctx context.Context, id, referrerID uuid.UUID) (*models.ReferralRequest, error)
	CompleteAccepted(ctx context.Context, id, referrerID uuid.UUID) (*models.ReferralRequest, error)
	CancelPending(ctx context.Context, id, seekerID uuid.UUID) (*models.ReferralRequest, error)
	SetChatRoom(ctx context.Context, id, roomID uuid.UUID) error
}

// FanInNotificationRepository описывает операции над уведомлениями,
// которые выполняет координатор после перехода статуса.
type FanInNotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	MarkWinner(ctx context.Context, requestID, userID uuid.UUID) error
	RejectOthers(ctx context.Context, requestID, winnerID uuid.UUID) (int64, error)
	CompleteForRequest(ctx context.Context, requestID uuid.UUID) error
	ExpireForRequest(ctx context.Context, requestID uuid.UUID) (int64, error)
}

// RoomRepository описывает создание и поиск комнат чата.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	GetRoomByRequestID(ctx context.Context, requestID uuid.UUID) (*models.ChatRoom, error)
}

// ReferrerDirectory описывает доступ к данным пользователей.
type ReferrerDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetReferrerCard(ctx context.Context, id uuid.UUID) (*models.ReferrerCard, error)
}

// EscrowManager описывает точки привязки платежей к жизненному циклу запроса.
type EscrowManager interface {
	Hold(ctx context.Context, requestID, seekerID, referrerID uuid.UUID, amount float64) error
	Release(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error)
	Refund(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error)
}

// ReferralService координирует жизненный цикл запроса рекомендации:
// создание с рассылкой, гонку принятия, завершение и отмену.
//
// Никаких блокировок в процессе нет: единственная точка сериализации
// гонки — условный UPDATE статуса в хранилище. Всё, что идёт после него
// (комната, fan-in уведомлений, push, escrow), не влияет на исход гонки.
type ReferralService struct {
	requests      ReferralRequestRepository
	notifications FanInNotificationRepository
	rooms         RoomRepository
	users         ReferrerDirectory
	matching      *MatchingService
	escrow        EscrowManager
	hub           WSNotifier
}

// NewReferralService создаёт координатор запросов.
func NewReferralService(
	requests ReferralRequestRepository,
	notifications FanInNotificationRepository,
	rooms RoomRepository,
	users ReferrerDirectory,
	matching *MatchingService,
	escrow EscrowManager,
) *ReferralService {
	return &ReferralService{
		requests:      requests,
		notifications: notifications,
		rooms:         rooms,
		users:         users,
		matching:      matching,
		escrow:        escrow,
	}
}

// SetHub подключает канал realtime-доставки.
func (s *ReferralService) SetHub(hub WSNotifier) {
	s.hub = hub
}

// CreateRequestInput содержит данные нового запроса.
type CreateRequestInput struct {
	SeekerID    uuid.UUID
	Company     string
	Role        string
	Skills      []string
	Description string
	ResumeID    *uuid.UUID
	Reward      float64
}

// CreateResult возвращает созданный запрос и число разосланных уведомлений.
type CreateResult struct {
	Request           *models.ReferralRequest `json:"request"`
	NotificationsSent int                     `json:"notifications_sent"`
}

// CreateRequest сохраняет запрос и рассылает уведомления подходящим
// рекомендателям. Запрос без единого подходящего рекомендателя — не
// ошибка: он сохраняется с notifications_sent = 0 и ждёт, пока кто-то
// подтвердит привязку к компании.
func (s *ReferralService) CreateRequest(ctx context.Context, in CreateRequestInput) (*CreateResult, error) {
	if err := s.validateCreateInput(in); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	seeker, err := s.users.GetByID(ctx, in.SeekerID)
	if err != nil {
		return nil, apperror.ErrUserNotFound
	}

	request := &models.ReferralRequest{
		SeekerID:    in.SeekerID,
		Company:     strings.TrimSpace(in.Company),
		Role:        strings.TrimSpace(in.Role),
		Skills:      in.Skills,
		Description: in.Description,
		ResumeID:    in.ResumeID,
		Reward:      in.Reward,
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, err
	}

	sent, err := s.matching.FanOut(ctx, request, seeker.Name)
	if err != nil {
		// Запрос уже сохранён; полная неудача рассылки сводится к
		// notifications_sent = 0, как и частичная — к меньшему счётчику.
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"error":      err.Error(),
		}).Warn("referral service: рассылка уведомлений не выполнена")
		sent = 0
	}

	logger.Log.WithFields(map[string]interface{}{
		"request_id":         request.ID,
		"company":            request.Company,
		"notifications_sent": sent,
	}).Info("referral service: запрос создан")

	return &CreateResult{Request: request, NotificationsSent: sent}, nil
}

// AcceptResult возвращает итог принятия запроса.
type AcceptResult struct {
	Request    *models.ReferralRequest `json:"request"`
	ChatRoomID *uuid.UUID              `json:"chat_room_id,omitempty"`
}

// AcceptRequest разыгрывает гонку принятия. Победу определяет условный
// UPDATE pending → accepted; проигравший получает конфликт. Повторный
/// вызов от уже победившего рекомендателя идемпотентен: возвращается та
// же комната, при необходимости она досоздаётся.
func (s *ReferralService) AcceptRequest(ctx context.Context, requestID, referrerID uuid.UUID) (*AcceptResult, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, err
	}

	// Идемпотентный повтор от победителя.
	if request.Status == models.RequestStatusAccepted && request.AcceptedBy != nil && *request.AcceptedBy == referrerID {
		room, err := s.ensureRoom(ctx, request)
		if err != nil {
			return nil, err
		}
		return &AcceptResult{Request: request, ChatRoomID: &room.ID}, nil
	}

	accepted, err := s.requests.AcceptPending(ctx, requestID, referrerID)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, apperror.ErrAlreadyAccepted
		}
		return nil, err
	}

	// Статус уже зафиксирован: всё ниже — последствия победы, их сбои
	// не откатывают принятие.
	room, err := s.ensureRoom(ctx, accepted)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": accepted.ID,
			"error":      err.Error(),
		}).Warn("referral service: комната чата не создана, будет досоздана при повторе")
	}

	s.fanIn(ctx, accepted, referrerID, room)
	s.holdReward(ctx, accepted, referrerID)

	result := &AcceptResult{Request: accepted}
	if room != nil {
		result.ChatRoomID = &room.ID
	}

	return result, nil
}

// CompleteRequest переводит запрос accepted → completed, закрывает
// уведомление победителя и освобождает вознаграждение.
func (s *ReferralService) CompleteRequest(ctx context.Context, requestID, referrerID uuid.UUID) (*models.ReferralRequest, error) {
	request, err := s.requests.CompleteAccepted(ctx, requestID, referrerID)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, err
	}

	if err := s.notifications.CompleteForRequest(ctx, request.ID); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"error":      err.Error(),
		}).Warn("referral service: уведомление победителя не закрыто")
	}

	s.releaseReward(ctx, request, referrerID)
	s.notifySeeker(ctx, request, models.NotificationTypeApplicationUpdate,
		fmt.Sprintf("Referral Completed - %s", request.Company),
		fmt.Sprintf("Your referral for %s at %s has been submitted", request.Role, request.Company),
		nil)

	return request, nil
}

// CancelRequest переводит запрос pending → cancelled и гасит все
// ожидающие уведомления.
func (s *ReferralService) CancelRequest(ctx context.Context, requestID, seekerID uuid.UUID) (*models.ReferralRequest, error) {
	request, err := s.requests.CancelPending(ctx, requestID, seekerID)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			existing, getErr := s.requests.GetByID(ctx, requestID)
			if getErr != nil || existing.SeekerID != seekerID {
				return nil, apperror.ErrRequestNotFound
			}
			return nil, apperror.New(apperror.ErrCodeConflict, "запрос уже нельзя отменить")
		}
		return nil, err
	}

	expired, err := s.notifications.ExpireForRequest(ctx, request.ID)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"error":      err.Error(),
		}).Warn("referral service: ожидающие уведомления не погашены")
	} else if expired > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"expired":    expired,
		}).Info("referral service: запрос отменён, уведомления погашены")
	}

	// Заморозка снимается, если она была; её отсутствие — норма для
	// pending-запроса.
	if _, err := s.escrow.Refund(ctx, request.ID); err != nil && !errors.Is(err, repository.ErrEscrowNotFound) {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"error":      err.Error(),
		}).Warn("referral service: возврат заморозки не выполнен")
	}

	return request, nil
}

// GetRequest возвращает запрос участнику: автору или принявшему рекомендателю.
func (s *ReferralService) GetRequest(ctx context.Context, requestID, userID uuid.UUID) (*models.ReferralRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, err
	}

	if request.SeekerID != userID && (request.AcceptedBy == nil || *request.AcceptedBy != userID) {
		// Для постороннего запрос неотличим от несуществующего.
		return nil, apperror.ErrRequestNotFound
	}

	s.expandReferrer(ctx, request)

	return request, nil
}

// ListMyRequests возвращает запросы соискателя, раскрывая принявшего
// рекомендателя до безопасной карточки.
func (s *ReferralService) ListMyRequests(ctx context.Context, seekerID uuid.UUID, status string, limit, offset int) ([]models.ReferralRequest, error) {
	if status != "" {
		if _, ok := models.ValidRequestStatuses[status]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "некорректный статус")
		}
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	requests, err := s.requests.ListBySeeker(ctx, seekerID, status, limit, offset)
	if err != nil {
		return nil, err
	}

	// Карточки кэшируются на время выдачи: один рекомендатель мог
	// принять несколько запросов соискателя.
	cards := make(map[uuid.UUID]*models.ReferrerCard)
	for i := range requests {
		request := &requests[i]
		if request.AcceptedBy == nil {
			continue
		}
		card, ok := cards[*request.AcceptedBy]
		if !ok {
			card, err = s.users.GetReferrerCard(ctx, *request.AcceptedBy)
			if err != nil {
				continue
			}
			cards[*request.AcceptedBy] = card
		}
		request.Referrer = card
	}

	return requests, nil
}

// ListAcceptedByMe возвращает запросы, принятые рекомендателем.
func (s *ReferralService) ListAcceptedByMe(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]models.ReferralRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.requests.ListByReferrer(ctx, referrerID, limit, offset)
}

// ensureRoom возвращает комнату запроса, создавая её при отсутствии.
// Создание идемпотентно на уровне хранилища, поэтому гонки повторов
// безопасны.
func (s *ReferralService) ensureRoom(ctx context.Context, request *models.ReferralRequest) (*models.ChatRoom, error) {
	if request.AcceptedBy == nil {
		return nil, fmt.Errorf("referral service: запрос без принявшего рекомендателя")
	}

	room := &models.ChatRoom{
		RequestID:  request.ID,
		SeekerID:   request.SeekerID,
		ReferrerID: *request.AcceptedBy,
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	if request.ChatRoomID == nil || *request.ChatRoomID != room.ID {
		if err := s.requests.SetChatRoom(ctx, request.ID, room.ID); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"request_id": request.ID,
				"room_id":    room.ID,
				"error":      err.Error(),
			}).Warn("referral service: ссылка на комнату не записана")
		}
		roomID := room.ID
		request.ChatRoomID = &roomID
	}

	return room, nil
}

// fanIn закрывает гонку в уведомлениях: победителю in_progress,
// остальным rejected, соискателю — событие о принятии.
func (s *ReferralService) fanIn(ctx context.Context, request *models.ReferralRequest, winnerID uuid.UUID, room *models.ChatRoom) {
	if err := s.notifications.MarkWinner(ctx, request.ID, winnerID); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"winner_id":  winnerID,
			"error":      err.Error(),
		}).Warn("referral service: уведомление победителя не обновлено")
	}

	rejected, err := s.notifications.RejectOthers(ctx, request.ID, winnerID)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"error":      err.Error(),
		}).Warn("referral service: уведомления проигравших не обновлены")
	} else {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"winner_id":  winnerID,
			"rejected":   rejected,
		}).Info("referral service: запрос принят")
	}

	metadata := map[string]interface{}{
		"request_id": request.ID,
	}
	if card, err := s.users.GetReferrerCard(ctx, winnerID); err == nil {
		metadata["referrer"] = card
	}
	if room != nil {
		metadata["chat_room_id"] = room.ID
	}

	s.notifySeeker(ctx, request, models.NotificationTypeReferralAccepted,
		fmt.Sprintf("Referral Request Accepted - %s", request.Company),
		fmt.Sprintf("A referrer accepted your request for %s at %s", request.Role, request.Company),
		metadata)
}

// holdReward замораживает вознаграждение соискателя под принятый запрос.
// Нехватка средств принятие не отменяет.
func (s *ReferralService) holdReward(ctx context.Context, request *models.ReferralRequest, referrerID uuid.UUID) {
	if request.Reward <= 0 || s.escrow == nil {
		return
	}

	if err := s.escrow.Hold(ctx, request.ID, request.SeekerID, referrerID, request.Reward); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"seeker_id":  request.SeekerID,
			"error":      err.Error(),
		}).Warn("referral service: вознаграждение не заморожено")
	}
}

// releaseReward переводит замороженное вознаграждение рекомендателю и
// создаёт платёжные уведомления обеим сторонам.
func (s *ReferralService) releaseReward(ctx context.Context, request *models.ReferralRequest, referrerID uuid.UUID) {
	if request.Reward <= 0 || s.escrow == nil {
		return
	}

	escrow, err := s.escrow.Release(ctx, request.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrEscrowNotFound) {
			logger.Log.WithFields(map[string]interface{}{
				"request_id": request.ID,
				"error":      err.Error(),
			}).Warn("referral service: вознаграждение не выплачено")
		}
		return
	}

	requestID := request.ID
	received := &models.Notification{
		UserID:       referrerID,
		UserRole:     models.RoleReferrer,
		Type:         models.NotificationTypePaymentReceived,
		Title:        "Payment Received",
		Message:      fmt.Sprintf("You received $%.0f for the %s referral", escrow.Amount, request.Company),
		JobRequestID: &requestID,
		Priority:     models.PriorityMedium,
	}
	sent := &models.Notification{
		UserID:       request.SeekerID,
		UserRole:     models.RoleSeeker,
		Type:         models.NotificationTypePaymentSent,
		Title:        "Payment Sent",
		Message:      fmt.Sprintf("Reward of $%.0f was paid for the %s referral", escrow.Amount, request.Company),
		JobRequestID: &requestID,
		Priority:     models.PriorityMedium,
	}

	for _, notification := range []*models.Notification{received, sent} {
		if err := s.notifications.Create(ctx, notification); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"request_id": request.ID,
				"user_id":    notification.UserID,
				"error":      err.Error(),
			}).Warn("referral service: платёжное уведомление не создано")
			continue
		}
		s.push(notification.UserID, notification)
	}
}

// notifySeeker создаёт информационное уведомление автору запроса и
// пушит его в realtime-канал.
func (s *ReferralService) notifySeeker(ctx context.Context, request *models.ReferralRequest, notificationType, title, message string, metadata map[string]interface{}) {
	requestID := request.ID
	notification := &models.Notification{
		UserID:       request.SeekerID,
		UserRole:     models.RoleSeeker,
		Type:         notificationType,
		Title:        title,
		Message:      message,
		JobRequestID: &requestID,
		Priority:     models.PriorityHigh,
	}

	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err == nil {
			notification.Metadata = raw
		}
	}

	if err := s.notifications.Create(ctx, notification); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": request.ID,
			"error":      err.Error(),
		}).Warn("referral service: уведомление соискателю не создано")
		return
	}

	s.push(notification.UserID, notification)
}

// expandReferrer раскрывает accepted_by до карточки рекомендателя.
func (s *ReferralService) expandReferrer(ctx context.Context, request *models.ReferralRequest) {
	if request.AcceptedBy == nil {
		return
	}
	if card, err := s.users.GetReferrerCard(ctx, *request.AcceptedBy); err == nil {
		request.Referrer = card
	}
}

// push отправляет событие в WebSocket, если канал подключён. Доставка
// best-effort: отсутствие соединения не ошибка.
func (s *ReferralService) push(userID uuid.UUID, data interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.BroadcastToUser(userID, "notification", data); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		}).Debug("referral service: push не доставлен")
	}
}

// validateCreateInput проверяет поля нового запроса.
func (s *ReferralService) validateCreateInput(in CreateRequestInput) error {
	if err := validation.ValidateLength("компания", in.Company, validation.MinCompanyLength, validation.MaxCompanyLength); err != nil {
		return err
	}
	if err := validation.ValidateLength("должность", in.Role, validation.MinRoleLength, validation.MaxRoleLength); err != nil {
		return err
	}
	if err := validation.ValidateLength("описание", in.Description, validation.MinDescriptionLength, validation.MaxDescriptionLength); err != nil {
		return err
	}
	if err := validation.ValidateSkills(in.Skills); err != nil {
		return err
	}
	return validation.ValidateReward(in.Reward)
}
