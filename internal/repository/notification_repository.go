package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/refdirectly/referral-backend/internal/models"
)

// ErrNotificationNotFound возвращается, когда уведомление не найдено.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository отвечает за работу с уведомлениями.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository создаёт экземпляр репозитория.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, user_role, type, title, message, status, read,
	       job_request_id, priority, metadata, accepted_at, completed_at, created_at`

// Create создаёт новое уведомление.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, user_role, type, title, message, status, job_request_id, priority, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		notification.UserID,
		notification.UserRole,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.Status,
		notification.JobRequestID,
		notification.Priority,
		notification.Metadata,
	).Scan(&notification.ID, &notification.CreatedAt); err != nil {
		return fmt.Errorf("notification repository: create %w", err)
	}

	return nil
}

// GetByID возвращает уведомление по идентификатору.
func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification repository: get by id %w", err)
	}

	return &notification, nil
}

// List возвращает список уведомлений пользователя с пагинацией.
func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	args := []interface{}{userID}
	argIndex := 2

	if unreadOnly {
		query += " AND read = FALSE"
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

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("notification repository: list %w", err)
	}

	return notifications, nil
}

// ListWaiting возвращает waiting-уведомления пользователя — его входящие
// приглашения на рекомендацию, пока не разыгранные.
func (r *NotificationRepository) ListWaiting(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	var notifications []models.Notification
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND status = 'waiting'
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("notification repository: list waiting %w", err)
	}

	return notifications, nil
}

// MarkAsRead отмечает уведомление как прочитанное. Срабатывает только
// для уведомлений владельца.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notification repository: mark as read %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("notification repository: mark as read rows affected %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkAllAsRead отмечает все уведомления пользователя как прочитанные.
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("notification repository: mark all as read %w", err)
	}

	return nil
}

// Delete удаляет уведомление владельца.
func (r *NotificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notification repository: delete %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("notification repository: delete rows affected %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// CountUnread возвращает количество непрочитанных уведомлений пользователя.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("notification repository: count unread %w", err)
	}

	return count, nil
}

// FindWaitingForUser ищет waiting-уведомление пользователя по запросу.
// Так рекомендателя, отвечающего через ленту уведомлений, сводят к тому
// же пути принятия, что и прямой вызов accept.
func (r *NotificationRepository) FindWaitingForUser(ctx context.Context, requestID, userID uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE job_request_id = $1 AND user_id = $2 AND status = 'waiting'
	`
	if err := r.db.GetContext(ctx, &notification, query, requestID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification repository: find waiting %w", err)
	}

	return &notification, nil
}

// MarkWinner переводит waiting-уведомление победителя в in_progress.
func (r *NotificationRepository) MarkWinner(ctx context.Context, requestID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'in_progress', accepted_at = NOW()
		WHERE job_request_id = $1 AND user_id = $2 AND status = 'waiting'
	`, requestID, userID)
	if err != nil {
		return fmt.Errorf("notification repository: mark winner %w", err)
	}

	return nil
}

// RejectOthers переводит все остальные waiting-уведомления запроса
// в rejected. Возвращает число затронутых строк.
func (r *NotificationRepository) RejectOthers(ctx context.Context, requestID, winnerID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'rejected'
		WHERE job_request_id = $1 AND user_id <> $2 AND status = 'waiting'
	`, requestID, winnerID)
	if err != nil {
		return 0, fmt.Errorf("notification repository: reject others %w", err)
	}

	return result.RowsAffected()
}

// RejectOwn переводит waiting-уведомление пользователя в rejected —
// явный отказ рекомендателя от запроса.
func (r *NotificationRepository) RejectOwn(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = 'rejected' WHERE id = $1 AND user_id = $2 AND status = 'waiting'
	`, id, userID)
	if err != nil {
		return fmt.Errorf("notification repository: reject own %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("notification repository: reject own rows affected %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// CompleteForRequest переводит in_progress-уведомление победителя
// в completed при завершении запроса.
func (r *NotificationRepository) CompleteForRequest(ctx context.Context, requestID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'completed', completed_at = NOW()
		WHERE job_request_id = $1 AND status = 'in_progress'
	`, requestID)
	if err != nil {
		return fmt.Errorf("notification repository: complete for request %w", err)
	}

	return nil
}

// ExpireForRequest переводит все waiting-уведомления отменённого запроса
// в expired.
func (r *NotificationRepository) ExpireForRequest(ctx context.Context, requestID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = 'expired' WHERE job_request_id = $1 AND status = 'waiting'
	`, requestID)
	if err != nil {
		return 0, fmt.Errorf("notification repository: expire for request %w", err)
	}

	return result.RowsAffected()
}
