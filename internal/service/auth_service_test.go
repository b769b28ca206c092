package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockAuthRepo) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

func (m *mockAuthRepo) AddCompany(ctx context.Context, affiliation *models.CompanyAffiliation) error {
	args := m.Called(ctx, affiliation)
	return args.Error(0)
}

func (m *mockAuthRepo) ListCompanies(ctx context.Context, userID uuid.UUID) ([]models.CompanyAffiliation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CompanyAffiliation), args.Error(1)
}

func (m *mockAuthRepo) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockAuthRepo) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockAuthRepo) DeleteSession(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func newTestTokenManager() *TokenManager {
	return NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "user@example.com").Return(nil, repository.ErrUserNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "user@example.com" && u.Role == models.RoleSeeker && u.PasswordHash != "password123"
	})).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "user@example.com",
		Password: "password123",
		Name:     "Анна Иванова",
	}, nil)

	assert.NoError(t, err)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
	repo.AssertExpectations(t)
}

func TestAuthService_Register_ReferrerCompaniesUnverified(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "ref@example.com").Return(nil, repository.ErrUserNotFound)
	repo.On("Create", ctx, mock.Anything).Return(nil)
	repo.On("AddCompany", ctx, mock.MatchedBy(func(a *models.CompanyAffiliation) bool {
		return a.Company == "Google" && !a.Verified
	})).Return(nil).Once()
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:     "ref@example.com",
		Password:  "password123",
		Name:      "Борис Петров",
		Role:      models.RoleReferrer,
		Companies: []string{"Google", "  "},
	}, nil)

	assert.NoError(t, err)
	assert.Len(t, result.Companies, 1)
	repo.AssertExpectations(t)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "user@example.com").Return(&models.User{ID: uuid.New()}, nil)

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "user@example.com",
		Password: "password123",
		Name:     "Анна",
	}, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "уже зарегистрирован")
}

func TestAuthService_Register_InvalidRole(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepo), newTestTokenManager())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "password123",
		Name:     "Анна",
		Role:     "admin",
	}, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "некорректная роль")
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: string(hash), Role: models.RoleSeeker, IsActive: true}

	repo.On("GetByEmail", ctx, "user@example.com").Return(user, nil)
	repo.On("UpdateLastLogin", ctx, user.ID).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)
	repo.On("ListCompanies", ctx, user.ID).Return([]models.CompanyAffiliation{}, nil)

	result, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "password123"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{ID: uuid.New(), PasswordHash: string(hash), IsActive: true}
	repo.On("GetByEmail", ctx, "user@example.com").Return(user, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "wrong"}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "неверный email или пароль")
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "user@example.com").Return(&models.User{ID: uuid.New(), IsActive: false}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "password123"}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "заблокирован")
}

func TestAuthService_Refresh_ReusedTokenRejected(t *testing.T) {
	repo := new(mockAuthRepo)
	tokens := newTestTokenManager()
	svc := NewAuthService(repo, tokens)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Role: models.RoleSeeker}
	pair, _, _, err := tokens.GeneratePair(user)
	assert.NoError(t, err)

	// Сессия уже обменяна: токен валиден криптографически, но мёртв.
	repo.On("GetSessionByToken", ctx, pair.RefreshToken).Return(nil, repository.ErrSessionNotFound)

	_, err = svc.Refresh(ctx, pair.RefreshToken, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "сессия не найдена")
}

func TestAuthService_Refresh_RotatesSession(t *testing.T) {
	repo := new(mockAuthRepo)
	tokens := newTestTokenManager()
	svc := NewAuthService(repo, tokens)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Role: models.RoleSeeker}
	pair, _, _, err := tokens.GeneratePair(user)
	assert.NoError(t, err)

	repo.On("GetSessionByToken", ctx, pair.RefreshToken).Return(&models.Session{UserID: user.ID}, nil)
	repo.On("GetByID", ctx, user.ID).Return(user, nil)
	repo.On("DeleteSession", ctx, pair.RefreshToken).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken, nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, newPair.AccessToken)
	repo.AssertExpectations(t)
}

func TestAuthService_AddCompany_SeekerForbidden(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	userID := uuid.New()
	repo.On("GetByID", ctx, userID).Return(&models.User{ID: userID, Role: models.RoleSeeker}, nil)

	_, err := svc.AddCompany(ctx, userID, "Google", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "только рекомендателям")
}
