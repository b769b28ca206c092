package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/refdirectly/referral-backend/internal/models"
)

// Ошибки уровня репозитория.
var (
	ErrRequestNotFound = errors.New("referral request not found")

	// ErrPreconditionFailed означает, что условный переход статуса не
	// сработал: строка существует, но её статус уже не тот, что требовался.
	ErrPreconditionFailed = errors.New("request status precondition failed")
)

// RequestRepository отвечает за работу с запросами рекомендаций.
//
// Все переходы из статуса pending выполняются одиночными условными UPDATE:
// фильтр по текущему статусу в WHERE и есть точка сериализации гонки —
// из конкурирующих транзакций строку меняет ровно одна.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository создаёт экземпляр репозитория.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, seeker_id, company, role, skills, description, resume_id, reward,
	       status, accepted_by, accepted_at, completed_at, chat_room_id, created_at, updated_at`

// Create сохраняет новый запрос в статусе pending.
func (r *RequestRepository) Create(ctx context.Context, request *models.ReferralRequest) error {
	query := `
		INSERT INTO referral_requests (seeker_id, company, role, skills, description, resume_id, reward)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, status, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		request.SeekerID, request.Company, request.Role, pq.Array(request.Skills),
		request.Description, request.ResumeID, request.Reward,
	).Scan(&request.ID, &request.Status, &request.CreatedAt, &request.UpdatedAt); err != nil {
		return fmt.Errorf("request repository: create %w", err)
	}

	return nil
}

// GetByID возвращает запрос по идентификатору.
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReferralRequest, error) {
	var request models.ReferralRequest
	query := `SELECT ` + requestColumns + ` FROM referral_requests WHERE id = $1`
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("request repository: get by id %w", err)
	}

	return &request, nil
}

// ListBySeeker возвращает запросы соискателя, новые первыми.
func (r *RequestRepository) ListBySeeker(ctx context.Context, seekerID uuid.UUID, status string, limit, offset int) ([]models.ReferralRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM referral_requests WHERE seeker_id = $1`
	args := []interface{}{seekerID}
	argIndex := 2

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	var requests []models.ReferralRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("request repository: list by seeker %w", err)
	}

	return requests, nil
}

// ListByReferrer возвращает запросы, принятые данным рекомендателем.
func (r *RequestRepository) ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]models.ReferralRequest, error) {
	var requests []models.ReferralRequest
	query := `
		SELECT ` + requestColumns + `
		FROM referral_requests
		WHERE accepted_by = $1
		ORDER BY accepted_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &requests, query, referrerID, limit, offset); err != nil {
		return nil, fmt.Errorf("request repository: list by referrer %w", err)
	}

	return requests, nil
}

// AcceptPending атомарно переводит запрос pending → accepted и фиксирует
// победителя. Если строка уже не pending, возвращает ErrPreconditionFailed —
// проигравший в гонке узнаёт об этом именно здесь.
func (r *RequestRepository) AcceptPending(ctx context.Context, id, referrerID uuid.UUID) (*models.ReferralRequest, error) {
	var request models.ReferralRequest
	query := `
		UPDATE referral_requests
		SET status = 'accepted', accepted_by = $2, accepted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns + `
	`
	if err := r.db.GetContext(ctx, &request, query, id, referrerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPreconditionFailed
		}
		return nil, fmt.Errorf("request repository: accept pending %w", err)
	}

	return &request, nil
}

// CompleteAccepted переводит запрос accepted → completed. Сработает
// только для рекомендателя, который этот запрос принял.
func (r *RequestRepository) CompleteAccepted(ctx context.Context, id, referrerID uuid.UUID) (*models.ReferralRequest, error) {
	var request models.ReferralRequest
	query := `
		UPDATE referral_requests
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'accepted' AND accepted_by = $2
		RETURNING ` + requestColumns + `
	`
	if err := r.db.GetContext(ctx, &request, query, id, referrerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPreconditionFailed
		}
		return nil, fmt.Errorf("request repository: complete accepted %w", err)
	}

	return &request, nil
}

// CancelPending переводит запрос pending → cancelled. Отменить запрос
// может только его автор.
func (r *RequestRepository) CancelPending(ctx context.Context, id, seekerID uuid.UUID) (*models.ReferralRequest, error) {
	var request models.ReferralRequest
	query := `
		UPDATE referral_requests
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND seeker_id = $2
		RETURNING ` + requestColumns + `
	`
	if err := r.db.GetContext(ctx, &request, query, id, seekerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPreconditionFailed
		}
		return nil, fmt.Errorf("request repository: cancel pending %w", err)
	}

	return &request, nil
}

// SetChatRoom привязывает комнату чата к принятому запросу.
func (r *RequestRepository) SetChatRoom(ctx context.Context, id, roomID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE referral_requests SET chat_room_id = $2, updated_at = NOW() WHERE id = $1
	`, id, roomID)
	if err != nil {
		return fmt.Errorf("request repository: set chat room %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("request repository: set chat room rows affected %w", err)
	}

	if rowsAffected == 0 {
		return ErrRequestNotFound
	}

	return nil
}

// CountByStatus возвращает распределение запросов соискателя по статусам.
func (r *RequestRepository) CountByStatus(ctx context.Context, seekerID uuid.UUID) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT status, COUNT(*) FROM referral_requests WHERE seeker_id = $1 GROUP BY status
	`, seekerID)
	if err != nil {
		return nil, fmt.Errorf("request repository: count by status %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("request repository: count by status scan %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// CountByReferrer возвращает число принятых и завершённых рекомендателем
// запросов.
func (r *RequestRepository) CountByReferrer(ctx context.Context, referrerID uuid.UUID) (accepted, completed int, err error) {
	row := r.db.QueryRowxContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'accepted'),
		       COUNT(*) FILTER (WHERE status = 'completed')
		FROM referral_requests
		WHERE accepted_by = $1
	`, referrerID)
	if err := row.Scan(&accepted, &completed); err != nil {
		return 0, 0, fmt.Errorf("request repository: count by referrer %w", err)
	}

	return accepted, completed, nil
}
