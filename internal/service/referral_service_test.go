package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/pkg/apperror"
	"github.com/refdirectly/referral-backend/internal/repository"
)

type mockRequestRepo struct {
	mock.Mock
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.ReferralRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ReferralRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralRequest), args.Error(1)
}

func (m *mockRequestRepo) ListBySeeker(ctx context.Context, seekerID uuid.UUID, status string, limit, offset int) ([]models.ReferralRequest, error) {
	args := m.Called(ctx, seekerID, status, limit, offset)
	return args.Get(0).([]models.ReferralRequest), args.Error(1)
}

func (m *mockRequestRepo) ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]models.ReferralRequest, error) {
	args := m.Called(ctx, referrerID, limit, offset)
	return args.Get(0).([]models.ReferralRequest), args.Error(1)
}

func (m *mockRequestRepo) AcceptPending(ctx context.Context, id, referrerID uuid.UUID) (*models.ReferralRequest, error) {
	args := m.Called(ctx, id, referrerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralRequest), args.Error(1)
}

func (m *mockRequestRepo) CompleteAccepted(ctx context.Context, id, referrerID uuid.UUID) (*models.ReferralRequest, error) {
	args := m.Called(ctx, id, referrerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralRequest), args.Error(1)
}

func (m *mockRequestRepo) CancelPending(ctx context.Context, id, seekerID uuid.UUID) (*models.ReferralRequest, error) {
	args := m.Called(ctx, id, seekerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralRequest), args.Error(1)
}

func (m *mockRequestRepo) SetChatRoom(ctx context.Context, id, roomID uuid.UUID) error {
	args := m.Called(ctx, id, roomID)
	return args.Error(0)
}

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *mockNotificationRepo) MarkWinner(ctx context.Context, requestID, userID uuid.UUID) error {
	args := m.Called(ctx, requestID, userID)
	return args.Error(0)
}

func (m *mockNotificationRepo) RejectOthers(ctx context.Context, requestID, winnerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, requestID, winnerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotificationRepo) CompleteForRequest(ctx context.Context, requestID uuid.UUID) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

func (m *mockNotificationRepo) ExpireForRequest(ctx context.Context, requestID uuid.UUID) (int64, error) {
	args := m.Called(ctx, requestID)
	return args.Get(0).(int64), args.Error(1)
}

type mockRoomRepo struct {
	mock.Mock
}

func (m *mockRoomRepo) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *mockRoomRepo) GetRoomByRequestID(ctx context.Context, requestID uuid.UUID) (*models.ChatRoom, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockDirectory) GetReferrerCard(ctx context.Context, id uuid.UUID) (*models.ReferrerCard, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferrerCard), args.Error(1)
}

func (m *mockDirectory) ListVerifiedReferrers(ctx context.Context, company string) ([]models.User, error) {
	args := m.Called(ctx, company)
	return args.Get(0).([]models.User), args.Error(1)
}

type mockEscrow struct {
	mock.Mock
}

func (m *mockEscrow) Hold(ctx context.Context, requestID, seekerID, referrerID uuid.UUID, amount float64) error {
	args := m.Called(ctx, requestID, seekerID, referrerID, amount)
	return args.Error(0)
}

func (m *mockEscrow) Release(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrow) Refund(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func newTestReferralService(requests *mockRequestRepo, notifications *mockNotificationRepo, rooms *mockRoomRepo, users *mockDirectory, escrow *mockEscrow) *ReferralService {
	matching := NewMatchingService(users, notifications)
	return NewReferralService(requests, notifications, rooms, users, matching, escrow)
}

func validCreateInput(seekerID uuid.UUID) CreateRequestInput {
	return CreateRequestInput{
		SeekerID:    seekerID,
		Company:     "Google",
		Role:        "Senior Go Developer",
		Skills:      []string{"go", "postgres"},
		Description: "Ищу рекомендацию на позицию бэкенд-разработчика",
		Reward:      500,
	}
}

func TestReferralService_CreateRequest_FanOutCount(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	seekerID := uuid.New()
	users.On("GetByID", ctx, seekerID).Return(&models.User{ID: seekerID, Name: "Анна"}, nil)
	requests.On("Create", ctx, mock.Anything).Return(nil)
	users.On("ListVerifiedReferrers", ctx, "Google").Return([]models.User{
		{ID: uuid.New()},
		{ID: uuid.New()},
		{ID: uuid.New()},
	}, nil)
	notifications.On("Create", ctx, mock.Anything).Return(nil).Times(3)

	result, err := svc.CreateRequest(ctx, validCreateInput(seekerID))
	assert.NoError(t, err)
	assert.Equal(t, 3, result.NotificationsSent)
	notifications.AssertExpectations(t)
}

func TestReferralService_CreateRequest_SeekerExcludedFromFanOut(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	seekerID := uuid.New()
	referrerID := uuid.New()
	users.On("GetByID", ctx, seekerID).Return(&models.User{ID: seekerID, Name: "Анна"}, nil)
	requests.On("Create", ctx, mock.Anything).Return(nil)
	// Соискатель сам подтверждён в Google, но уведомление себе не получает.
	users.On("ListVerifiedReferrers", ctx, "Google").Return([]models.User{
		{ID: seekerID},
		{ID: referrerID},
	}, nil)
	notifications.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.UserID == referrerID
	})).Return(nil).Once()

	result, err := svc.CreateRequest(ctx, validCreateInput(seekerID))
	assert.NoError(t, err)
	assert.Equal(t, 1, result.NotificationsSent)
	notifications.AssertExpectations(t)
}

func TestReferralService_CreateRequest_PartialFanOutFailure(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	seekerID := uuid.New()
	okReferrer := uuid.New()
	failReferrer := uuid.New()
	users.On("GetByID", ctx, seekerID).Return(&models.User{ID: seekerID, Name: "Анна"}, nil)
	requests.On("Create", ctx, mock.Anything).Return(nil)
	users.On("ListVerifiedReferrers", ctx, "Google").Return([]models.User{
		{ID: okReferrer},
		{ID: failReferrer},
	}, nil)
	notifications.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.UserID == okReferrer
	})).Return(nil)
	notifications.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.UserID == failReferrer
	})).Return(errors.New("insert failed"))

	result, err := svc.CreateRequest(ctx, validCreateInput(seekerID))
	assert.NoError(t, err)
	assert.Equal(t, 1, result.NotificationsSent)
}

func TestReferralService_CreateRequest_NoEligibleReferrers(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	seekerID := uuid.New()
	users.On("GetByID", ctx, seekerID).Return(&models.User{ID: seekerID, Name: "Анна"}, nil)
	requests.On("Create", ctx, mock.Anything).Return(nil)
	users.On("ListVerifiedReferrers", ctx, "Google").Return([]models.User{}, nil)

	result, err := svc.CreateRequest(ctx, validCreateInput(seekerID))
	assert.NoError(t, err)
	assert.Equal(t, 0, result.NotificationsSent)
}

func TestReferralService_CreateRequest_ValidationError(t *testing.T) {
	svc := newTestReferralService(new(mockRequestRepo), new(mockNotificationRepo), new(mockRoomRepo), new(mockDirectory), new(mockEscrow))
	ctx := context.Background()

	in := validCreateInput(uuid.New())
	in.Company = ""

	_, err := svc.CreateRequest(ctx, in)
	assert.Error(t, err)

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
}

func TestReferralService_AcceptRequest_Winner(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	requestID := uuid.New()
	seekerID := uuid.New()
	referrerID := uuid.New()
	roomID := uuid.New()

	pending := &models.ReferralRequest{ID: requestID, SeekerID: seekerID, Company: "Google", Role: "Go Developer", Status: models.RequestStatusPending, Reward: 500}
	accepted := &models.ReferralRequest{ID: requestID, SeekerID: seekerID, Company: "Google", Role: "Go Developer", Status: models.RequestStatusAccepted, AcceptedBy: &referrerID, Reward: 500}

	requests.On("GetByID", ctx, requestID).Return(pending, nil)
	requests.On("AcceptPending", ctx, requestID, referrerID).Return(accepted, nil)
	rooms.On("CreateRoom", ctx, mock.Anything).Run(func(args mock.Arguments) {
		room := args.Get(1).(*models.ChatRoom)
		room.ID = roomID
	}).Return(nil)
	requests.On("SetChatRoom", ctx, requestID, roomID).Return(nil)
	notifications.On("MarkWinner", ctx, requestID, referrerID).Return(nil)
	notifications.On("RejectOthers", ctx, requestID, referrerID).Return(int64(2), nil)
	users.On("GetReferrerCard", ctx, referrerID).Return(&models.ReferrerCard{ID: referrerID, Name: "Борис"}, nil)
	notifications.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.UserID == seekerID && n.Type == models.NotificationTypeReferralAccepted
	})).Return(nil)
	escrow.On("Hold", ctx, requestID, seekerID, referrerID, float64(500)).Return(nil)

	result, err := svc.AcceptRequest(ctx, requestID, referrerID)
	assert.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, result.Request.Status)
	assert.NotNil(t, result.ChatRoomID)
	assert.Equal(t, roomID, *result.ChatRoomID)

	requests.AssertExpectations(t)
	notifications.AssertExpectations(t)
	escrow.AssertExpectations(t)
}

func TestReferralService_AcceptRequest_Loser(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	requestID := uuid.New()
	winnerID := uuid.New()
	loserID := uuid.New()

	accepted := &models.ReferralRequest{ID: requestID, Status: models.RequestStatusAccepted, AcceptedBy: &winnerID}
	requests.On("GetByID", ctx, requestID).Return(accepted, nil)
	requests.On("AcceptPending", ctx, requestID, loserID).Return(nil, repository.ErrPreconditionFailed)

	_, err := svc.AcceptRequest(ctx, requestID, loserID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyAccepted)
	escrow.AssertNotCalled(t, "Hold", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	notifications.AssertNotCalled(t, "MarkWinner", mock.Anything, mock.Anything, mock.Anything)
}

func TestReferralService_AcceptRequest_IdempotentReplay(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	requestID := uuid.New()
	referrerID := uuid.New()
	roomID := uuid.New()

	accepted := &models.ReferralRequest{ID: requestID, Status: models.RequestStatusAccepted, AcceptedBy: &referrerID, ChatRoomID: &roomID}
	requests.On("GetByID", ctx, requestID).Return(accepted, nil)
	// Хранилище идемпотентно: повтор возвращает уже существующую комнату.
	rooms.On("CreateRoom", ctx, mock.Anything).Run(func(args mock.Arguments) {
		room := args.Get(1).(*models.ChatRoom)
		room.ID = roomID
	}).Return(nil)

	result, err := svc.AcceptRequest(ctx, requestID, referrerID)
	assert.NoError(t, err)
	assert.Equal(t, roomID, *result.ChatRoomID)

	// Повтор не трогает ни гонку, ни уведомления, ни escrow.
	requests.AssertNotCalled(t, "AcceptPending", mock.Anything, mock.Anything, mock.Anything)
	notifications.AssertNotCalled(t, "MarkWinner", mock.Anything, mock.Anything, mock.Anything)
	escrow.AssertNotCalled(t, "Hold", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReferralService_AcceptRequest_EscrowFailureDoesNotFailAccept(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	requestID := uuid.New()
	seekerID := uuid.New()
	referrerID := uuid.New()
	roomID := uuid.New()

	pending := &models.ReferralRequest{ID: requestID, SeekerID: seekerID, Company: "Google", Status: models.RequestStatusPending, Reward: 500}
	accepted := &models.ReferralRequest{ID: requestID, SeekerID: seekerID, Company: "Google", Status: models.RequestStatusAccepted, AcceptedBy: &referrerID, Reward: 500}

	requests.On("GetByID", ctx, requestID).Return(pending, nil)
	requests.On("AcceptPending", ctx, requestID, referrerID).Return(accepted, nil)
	rooms.On("CreateRoom", ctx, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.ChatRoom).ID = roomID
	}).Return(nil)
	requests.On("SetChatRoom", ctx, requestID, roomID).Return(nil)
	notifications.On("MarkWinner", ctx, requestID, referrerID).Return(nil)
	notifications.On("RejectOthers", ctx, requestID, referrerID).Return(int64(0), nil)
	users.On("GetReferrerCard", ctx, referrerID).Return(&models.ReferrerCard{ID: referrerID}, nil)
	notifications.On("Create", ctx, mock.Anything).Return(nil)
	escrow.On("Hold", ctx, requestID, seekerID, referrerID, float64(500)).Return(repository.ErrInsufficientFunds)

	result, err := svc.AcceptRequest(ctx, requestID, referrerID)
	assert.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, result.Request.Status)
}

// casRequestRepo эмулирует условный UPDATE: победитель ровно один,
// независимо от числа параллельных вызовов.
type casRequestRepo struct {
	mockRequestRepo

	mu      sync.Mutex
	request models.ReferralRequest
}

func (r *casRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ReferralRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.request
	return &snapshot, nil
}

func (r *casRequestRepo) AcceptPending(ctx context.Context, id, referrerID uuid.UUID) (*models.ReferralRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.request.Status != models.RequestStatusPending {
		return nil, repository.ErrPreconditionFailed
	}
	r.request.Status = models.RequestStatusAccepted
	acceptedBy := referrerID
	r.request.AcceptedBy = &acceptedBy
	snapshot := r.request
	return &snapshot, nil
}

func (r *casRequestRepo) SetChatRoom(ctx context.Context, id, roomID uuid.UUID) error {
	return nil
}

type nopNotificationRepo struct{}

func (nopNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	return nil
}
func (nopNotificationRepo) MarkWinner(ctx context.Context, requestID, userID uuid.UUID) error {
	return nil
}
func (nopNotificationRepo) RejectOthers(ctx context.Context, requestID, winnerID uuid.UUID) (int64, error) {
	return 0, nil
}
func (nopNotificationRepo) CompleteForRequest(ctx context.Context, requestID uuid.UUID) error {
	return nil
}
func (nopNotificationRepo) ExpireForRequest(ctx context.Context, requestID uuid.UUID) (int64, error) {
	return 0, nil
}

type idempotentRoomRepo struct {
	mu   sync.Mutex
	room *models.ChatRoom
}

func (r *idempotentRoomRepo) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.room == nil {
		room.ID = uuid.New()
		stored := *room
		r.room = &stored
		return nil
	}
	*room = *r.room
	return nil
}

func (r *idempotentRoomRepo) GetRoomByRequestID(ctx context.Context, requestID uuid.UUID) (*models.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.room == nil {
		return nil, repository.ErrRoomNotFound
	}
	snapshot := *r.room
	return &snapshot, nil
}

type nopDirectory struct{}

func (nopDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id}, nil
}
func (nopDirectory) GetReferrerCard(ctx context.Context, id uuid.UUID) (*models.ReferrerCard, error) {
	return &models.ReferrerCard{ID: id}, nil
}
func (nopDirectory) ListVerifiedReferrers(ctx context.Context, company string) ([]models.User, error) {
	return nil, nil
}

func TestReferralService_AcceptRequest_SingleWinnerUnderConcurrency(t *testing.T) {
	requestID := uuid.New()
	seekerID := uuid.New()

	requests := &casRequestRepo{request: models.ReferralRequest{
		ID:       requestID,
		SeekerID: seekerID,
		Company:  "Google",
		Status:   models.RequestStatusPending,
	}}
	matching := NewMatchingService(nopDirectory{}, nopNotificationRepo{})
	svc := NewReferralService(requests, nopNotificationRepo{}, &idempotentRoomRepo{}, nopDirectory{}, matching, nil)
	ctx := context.Background()

	const competitors = 16
	var wg sync.WaitGroup
	var winners, conflicts int64
	var mu sync.Mutex

	for i := 0; i < competitors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AcceptRequest(ctx, requestID, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, apperror.ErrAlreadyAccepted):
				conflicts++
			default:
				t.Errorf("неожиданная ошибка: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), winners)
	assert.Equal(t, int64(competitors-1), conflicts)
}

func TestReferralService_CompleteRequest_ReleasesReward(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	requestID := uuid.New()
	seekerID := uuid.New()
	referrerID := uuid.New()

	completed := &models.ReferralRequest{ID: requestID, SeekerID: seekerID, Company: "Google", Role: "Go Developer", Status: models.RequestStatusCompleted, AcceptedBy: &referrerID, Reward: 500}
	requests.On("CompleteAccepted", ctx, requestID, referrerID).Return(completed, nil)
	notifications.On("CompleteForRequest", ctx, requestID).Return(nil)
	escrow.On("Release", ctx, requestID).Return(&models.Escrow{RequestID: requestID, Amount: 500}, nil)
	notifications.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Type == models.NotificationTypePaymentReceived && n.UserID == referrerID
	})).Return(nil).Once()
	notifications.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Type == models.NotificationTypePaymentSent && n.UserID == seekerID
	})).Return(nil).Once()
	notifications.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Type == models.NotificationTypeApplicationUpdate && n.UserID == seekerID
	})).Return(nil).Once()

	request, err := svc.CompleteRequest(ctx, requestID, referrerID)
	assert.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, request.Status)
	notifications.AssertExpectations(t)
	escrow.AssertExpectations(t)
}

func TestReferralService_CompleteRequest_NotAcceptedByCaller(t *testing.T) {
	requests := new(mockRequestRepo)
	svc := newTestReferralService(requests, new(mockNotificationRepo), new(mockRoomRepo), new(mockDirectory), new(mockEscrow))
	ctx := context.Background()

	requestID := uuid.New()
	strangerID := uuid.New()
	requests.On("CompleteAccepted", ctx, requestID, strangerID).Return(nil, repository.ErrPreconditionFailed)

	_, err := svc.CompleteRequest(ctx, requestID, strangerID)
	assert.ErrorIs(t, err, apperror.ErrRequestNotFound)
}

func TestReferralService_CancelRequest_ExpiresNotifications(t *testing.T) {
	requests := new(mockRequestRepo)
	notifications := new(mockNotificationRepo)
	rooms := new(mockRoomRepo)
	users := new(mockDirectory)
	escrow := new(mockEscrow)
	svc := newTestReferralService(requests, notifications, rooms, users, escrow)
	ctx := context.Background()

	requestID := uuid.New()
	seekerID := uuid.New()

	cancelled := &models.ReferralRequest{ID: requestID, SeekerID: seekerID, Status: models.RequestStatusCancelled}
	requests.On("CancelPending", ctx, requestID, seekerID).Return(cancelled, nil)
	notifications.On("ExpireForRequest", ctx, requestID).Return(int64(3), nil)
	// Заморозки у pending-запроса нет, и это не ошибка.
	escrow.On("Refund", ctx, requestID).Return(nil, repository.ErrEscrowNotFound)

	request, err := svc.CancelRequest(ctx, requestID, seekerID)
	assert.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, request.Status)
	notifications.AssertExpectations(t)
}

func TestReferralService_CancelRequest_AlreadyAccepted(t *testing.T) {
	requests := new(mockRequestRepo)
	svc := newTestReferralService(requests, new(mockNotificationRepo), new(mockRoomRepo), new(mockDirectory), new(mockEscrow))
	ctx := context.Background()

	requestID := uuid.New()
	seekerID := uuid.New()
	referrerID := uuid.New()

	requests.On("CancelPending", ctx, requestID, seekerID).Return(nil, repository.ErrPreconditionFailed)
	requests.On("GetByID", ctx, requestID).Return(&models.ReferralRequest{ID: requestID, SeekerID: seekerID, Status: models.RequestStatusAccepted, AcceptedBy: &referrerID}, nil)

	_, err := svc.CancelRequest(ctx, requestID, seekerID)
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
}

func TestReferralService_CancelRequest_NotOwner(t *testing.T) {
	requests := new(mockRequestRepo)
	svc := newTestReferralService(requests, new(mockNotificationRepo), new(mockRoomRepo), new(mockDirectory), new(mockEscrow))
	ctx := context.Background()

	requestID := uuid.New()
	ownerID := uuid.New()
	strangerID := uuid.New()

	requests.On("CancelPending", ctx, requestID, strangerID).Return(nil, repository.ErrPreconditionFailed)
	requests.On("GetByID", ctx, requestID).Return(&models.ReferralRequest{ID: requestID, SeekerID: ownerID, Status: models.RequestStatusPending}, nil)

	_, err := svc.CancelRequest(ctx, requestID, strangerID)
	assert.ErrorIs(t, err, apperror.ErrRequestNotFound)
}

func TestReferralService_GetRequest_NonParticipant(t *testing.T) {
	requests := new(mockRequestRepo)
	svc := newTestReferralService(requests, new(mockNotificationRepo), new(mockRoomRepo), new(mockDirectory), new(mockEscrow))
	ctx := context.Background()

	requestID := uuid.New()
	requests.On("GetByID", ctx, requestID).Return(&models.ReferralRequest{ID: requestID, SeekerID: uuid.New()}, nil)

	_, err := svc.GetRequest(ctx, requestID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrRequestNotFound)
}
