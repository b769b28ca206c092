package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/refdirectly/referral-backend/internal/models"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEscrowNotFound    = errors.New("escrow not found")
)

// PaymentRepository отвечает за балансы, escrow и историю транзакций.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository создаёт экземпляр репозитория.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetBalance возвращает баланс пользователя, создаёт если не существует.
func (r *PaymentRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	query := `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING user_id, available, frozen, updated_at
	`
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		return nil, fmt.Errorf("payment repository: get balance %w", err)
	}
	return &balance, nil
}

// Deposit пополняет баланс пользователя.
func (r *PaymentRepository) Deposit(ctx context.Context, userID uuid.UUID, amount float64, description string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Обновляем баланс
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
	`, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("payment repository: deposit update balance %w", err)
	}

	// Создаём транзакцию
	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (user_id, type, amount, status, description, completed_at)
		VALUES ($1, 'deposit', $2, 'completed', $3, NOW())
		RETURNING id, user_id, request_id, type, amount, status, description, created_at, completed_at
	`, userID, amount, description)
	if err != nil {
		return nil, fmt.Errorf("payment repository: deposit create transaction %w", err)
	}

	return &transaction, tx.Commit()
}

// CreateEscrow создаёт escrow и замораживает вознаграждение соискателя.
func (r *PaymentRepository) CreateEscrow(ctx context.Context, requestID, seekerID, referrerID uuid.UUID, amount float64) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Проверяем баланс соискателя
	var balance models.UserBalance
	err = tx.GetContext(ctx, &balance, `SELECT user_id, available, frozen FROM user_balances WHERE user_id = $1 FOR UPDATE`, seekerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}
	if balance.Available < amount {
		return nil, ErrInsufficientFunds
	}

	// Замораживаем средства
	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET available = available - $2, frozen = frozen + $2, updated_at = NOW()
		WHERE user_id = $1
	`, seekerID, amount)
	if err != nil {
		return nil, err
	}

	// Создаём escrow
	var escrow models.Escrow
	err = tx.GetContext(ctx, &escrow, `
		INSERT INTO escrow (request_id, seeker_id, referrer_id, amount, status)
		VALUES ($1, $2, $3, $4, 'held')
		RETURNING id, request_id, seeker_id, referrer_id, amount, status, created_at, released_at
	`, requestID, seekerID, referrerID, amount)
	if err != nil {
		return nil, err
	}

	// Транзакция заморозки
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, request_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_hold', $3, 'completed', 'Заморозка вознаграждения за рекомендацию', NOW())
	`, seekerID, requestID, amount)
	if err != nil {
		return nil, err
	}

	return &escrow, tx.Commit()
}

// ReleaseEscrow освобождает вознаграждение в пользу рекомендателя.
func (r *PaymentRepository) ReleaseEscrow(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var escrow models.Escrow
	err = tx.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE request_id = $1 AND status = 'held' FOR UPDATE`, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}

	// Снимаем заморозку у соискателя
	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.SeekerID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	// Начисляем рекомендателю
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
	`, escrow.ReferrerID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	// Обновляем escrow
	now := time.Now()
	_, err = tx.ExecContext(ctx, `UPDATE escrow SET status = 'released', released_at = $2 WHERE id = $1`, escrow.ID, now)
	if err != nil {
		return nil, err
	}
	escrow.Status = models.EscrowStatusReleased
	escrow.ReleasedAt = &now

	// Транзакция освобождения
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, request_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_release', $3, 'completed', 'Получение вознаграждения за рекомендацию', NOW())
	`, escrow.ReferrerID, requestID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	return &escrow, tx.Commit()
}

// RefundEscrow возвращает вознаграждение соискателю.
func (r *PaymentRepository) RefundEscrow(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var escrow models.Escrow
	err = tx.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE request_id = $1 AND status = 'held' FOR UPDATE`, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}

	// Возвращаем средства соискателю
	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET available = available + $2, frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.SeekerID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `UPDATE escrow SET status = 'refunded', released_at = $2 WHERE id = $1`, escrow.ID, now)
	if err != nil {
		return nil, err
	}
	escrow.Status = models.EscrowStatusRefunded
	escrow.ReleasedAt = &now

	// Транзакция возврата
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, request_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_refund', $3, 'completed', 'Возврат вознаграждения за отменённый запрос', NOW())
	`, escrow.SeekerID, requestID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	return &escrow, tx.Commit()
}

// GetEscrowByRequestID возвращает escrow по ID запроса.
func (r *PaymentRepository) GetEscrowByRequestID(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.db.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE request_id = $1`, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}
	return &escrow, nil
}

// SumEarned возвращает сумму выплат, полученных пользователем за рекомендации.
func (r *PaymentRepository) SumEarned(ctx context.Context, userID uuid.UUID) (float64, error) {
	var total float64
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE user_id = $1 AND type = 'escrow_release' AND status = 'completed'
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("payment repository: sum earned %w", err)
	}
	return total, nil
}

// ListTransactions возвращает историю транзакций пользователя.
func (r *PaymentRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, request_id, type, amount, status, description, created_at, completed_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return transactions, err
}
