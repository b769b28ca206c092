package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/refdirectly/referral-backend/internal/logger"
	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/repository"
	"github.com/refdirectly/referral-backend/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	AddCompany(ctx context.Context, affiliation *models.CompanyAffiliation) error
	ListCompanies(ctx context.Context, userID uuid.UUID) ([]models.CompanyAffiliation, error)
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
}

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	repo         AuthRepository
	tokenManager *TokenManager
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
	// Компании указываются рекомендателями при регистрации; привязки
	// создаются неподтверждёнными.
	Companies []string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User      *models.User
	Companies []models.CompanyAffiliation
	TokenPair *TokenPair
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
	}
}

// Register создаёт нового пользователя.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if err := validation.ValidateLength("имя", in.Name, validation.MinNameLength, validation.MaxNameLength); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if len(in.Password) < validation.MinPasswordLength {
		return nil, fmt.Errorf("auth service: пароль должен быть не менее %d символов", validation.MinPasswordLength)
	}

	role := in.Role
	if role == "" {
		role = models.RoleSeeker
	}
	if _, ok := models.ValidRoles[role]; !ok {
		return nil, fmt.Errorf("auth service: некорректная роль")
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("auth service: email уже зарегистрирован")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(in.Email),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(passHash),
		Role:         role,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	var companies []models.CompanyAffiliation
	if role == models.RoleReferrer {
		for _, company := range in.Companies {
			company = strings.TrimSpace(company)
			if company == "" {
				continue
			}
			affiliation := models.CompanyAffiliation{
				UserID:  user.ID,
				Company: company,
			}
			if err := s.repo.AddCompany(ctx, &affiliation); err != nil {
				return nil, err
			}
			companies = append(companies, affiliation)
		}
	}

	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	applySessionMeta(session, meta)

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:      user,
		Companies: companies,
		TokenPair: tokenPair,
	}, nil
}

// Login проверяет учётные данные и возвращает токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	user, err := s.repo.GetByEmail(ctx, strings.ToLower(in.Email))
	if err != nil {
		return nil, fmt.Errorf("auth service: неверный email или пароль")
	}

	if !user.IsActive {
		return nil, fmt.Errorf("auth service: аккаунт заблокирован")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, fmt.Errorf("auth service: неверный email или пароль")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		// Логируем ошибку, но не прерываем процесс логина
		if logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"user_id": user.ID,
				"error":   err.Error(),
			}).Warn("auth service: не удалось обновить last_login_at")
		}
	}

	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	applySessionMeta(session, meta)

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	companies, err := s.repo.ListCompanies(ctx, user.ID)
	if err != nil {
		companies = nil
	}

	return &AuthResult{
		User:      user,
		Companies: companies,
		TokenPair: tokenPair,
	}, nil
}

// Refresh выпускает новую пару токенов взамен предъявленного refresh.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta map[string]string) (*TokenPair, error) {
	claims, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, fmt.Errorf("auth service: refresh токен невалиден: %w", err)
	}

	// Токен должен соответствовать живой сессии: при повторном
	// использовании уже обменянного токена выходим с ошибкой.
	if _, err := s.repo.GetSessionByToken(ctx, oldToken); err != nil {
		return nil, fmt.Errorf("auth service: сессия не найдена или истекла")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("auth service: некорректный subject: %w", err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteSession(ctx, oldToken); err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       userID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	applySessionMeta(session, meta)

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return tokenPair, nil
}

// Logout удаляет сессию по refresh-токену.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.DeleteSession(ctx, refreshToken)
}

// GetUser возвращает пользователя с его привязками к компаниям.
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, []models.CompanyAffiliation, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	companies, err := s.repo.ListCompanies(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return user, companies, nil
}

// UpdateProfile обновляет отображаемое имя пользователя.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, name string) (*models.User, error) {
	if err := validation.ValidateLength("имя", name, validation.MinNameLength, validation.MaxNameLength); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	if err := s.repo.UpdateName(ctx, userID, strings.TrimSpace(name)); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, userID)
}

// AddCompany привязывает рекомендателя к компании.
func (s *AuthService) AddCompany(ctx context.Context, userID uuid.UUID, company, position string) (*models.CompanyAffiliation, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleReferrer {
		return nil, fmt.Errorf("auth service: компании доступны только рекомендателям")
	}

	if err := validation.ValidateLength("компания", company, validation.MinCompanyLength, validation.MaxCompanyLength); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	affiliation := &models.CompanyAffiliation{
		UserID:  userID,
		Company: strings.TrimSpace(company),
	}
	if position != "" {
		affiliation.Position = &position
	}

	if err := s.repo.AddCompany(ctx, affiliation); err != nil {
		return nil, err
	}

	return affiliation, nil
}

// applySessionMeta переносит user-agent и IP из метаданных запроса в сессию.
func applySessionMeta(session *models.Session, meta map[string]string) {
	if meta == nil {
		return
	}
	if ua, ok := meta["user_agent"]; ok {
		session.UserAgent = &ua
	}
	if ip, ok := meta["ip"]; ok {
		session.IPAddress = &ip
	}
}
