package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/refdirectly/referral-backend/internal/models"
)

// ErrUserNotFound возвращается, когда запись пользователя не найдена.
var ErrUserNotFound = errors.New("user not found")

// ErrSessionNotFound возвращается, когда сессия не найдена или истекла.
var ErrSessionNotFound = errors.New("session not found")

// UserRepository отвечает за работу с таблицами users, user_companies и sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, name, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.Name, user.PasswordHash, user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, name, password_hash, role, is_active, last_login_at, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}

	return &user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, name, password_hash, role, is_active, last_login_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}

	return &user, nil
}

// UpdateLastLogin обновляет отметку последнего входа.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("user repository: update last login %w", err)
	}
	return nil
}

// UpdateName обновляет отображаемое имя пользователя.
func (r *UserRepository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("user repository: update name %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("user repository: update name rows affected %w", err)
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// AddCompany привязывает рекомендателя к компании. Повторная привязка
// к той же компании обновляет должность, не создавая дубликат.
func (r *UserRepository) AddCompany(ctx context.Context, affiliation *models.CompanyAffiliation) error {
	query := `
		INSERT INTO user_companies (user_id, company, position, verified, verified_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, company) DO UPDATE
		SET position = EXCLUDED.position
		RETURNING id, created_at
	`

	var verifiedAt *time.Time
	if affiliation.Verified {
		now := time.Now()
		verifiedAt = &now
	}

	if err := r.db.QueryRowxContext(
		ctx, query,
		affiliation.UserID, affiliation.Company, affiliation.Position, affiliation.Verified, verifiedAt,
	).Scan(&affiliation.ID, &affiliation.CreatedAt); err != nil {
		return fmt.Errorf("user repository: add company %w", err)
	}
	affiliation.VerifiedAt = verifiedAt

	return nil
}

// ListCompanies возвращает все привязки пользователя к компаниям.
func (r *UserRepository) ListCompanies(ctx context.Context, userID uuid.UUID) ([]models.CompanyAffiliation, error) {
	var affiliations []models.CompanyAffiliation
	query := `
		SELECT id, user_id, company, position, verified, verified_at, created_at
		FROM user_companies
		WHERE user_id = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &affiliations, query, userID); err != nil {
		return nil, fmt.Errorf("user repository: list companies %w", err)
	}

	return affiliations, nil
}

// ListVerifiedReferrers возвращает активных рекомендателей с подтверждённой
// привязкой к компании. Сравнение названия компании регистронезависимое.
func (r *UserRepository) ListVerifiedReferrers(ctx context.Context, company string) ([]models.User, error) {
	var users []models.User
	query := `
		SELECT u.id, u.email, u.name, u.password_hash, u.role, u.is_active, u.last_login_at, u.created_at, u.updated_at
		FROM users u
		JOIN user_companies uc ON uc.user_id = u.id
		WHERE u.role = 'referrer'
		  AND u.is_active = TRUE
		  AND uc.verified = TRUE
		  AND LOWER(uc.company) = LOWER($1)
	`
	if err := r.db.SelectContext(ctx, &users, query, company); err != nil {
		return nil, fmt.Errorf("user repository: list verified referrers %w", err)
	}

	return users, nil
}

// GetReferrerCard возвращает проекцию рекомендателя для выдачи наружу.
func (r *UserRepository) GetReferrerCard(ctx context.Context, id uuid.UUID) (*models.ReferrerCard, error) {
	var row struct {
		ID        uuid.UUID      `db:"id"`
		Name      string         `db:"name"`
		Email     string         `db:"email"`
		Companies pq.StringArray `db:"companies"`
	}
	query := `
		SELECT u.id, u.name, u.email,
		       COALESCE(ARRAY_AGG(uc.company ORDER BY uc.company) FILTER (WHERE uc.verified), '{}') AS companies
		FROM users u
		LEFT JOIN user_companies uc ON uc.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id
	`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get referrer card %w", err)
	}

	return &models.ReferrerCard{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Companies: row.Companies,
	}, nil
}

// CreateSession сохраняет refresh-сессию пользователя.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		session.UserID, session.RefreshToken, session.UserAgent, session.IPAddress, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}

	return nil
}

// GetSessionByToken возвращает живую сессию по refresh-токену.
func (r *UserRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	var session models.Session
	query := `
		SELECT id, user_id, refresh_token, user_agent, ip_address, expires_at, created_at
		FROM sessions
		WHERE refresh_token = $1 AND expires_at > NOW()
	`
	if err := r.db.GetContext(ctx, &session, query, refreshToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("user repository: get session %w", err)
	}

	return &session, nil
}

// DeleteSession удаляет сессию по refresh-токену.
func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken); err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return nil
}

// DeleteExpiredSessions подчищает истёкшие сессии.
func (r *UserRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("user repository: delete expired sessions %w", err)
	}

	return result.RowsAffected()
}
