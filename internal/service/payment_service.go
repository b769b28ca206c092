package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/pkg/apperror"
	"github.com/refdirectly/referral-backend/internal/repository"
)

// PaymentRepository описывает взаимодействие сервиса с платёжным хранилищем.
type PaymentRepository interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount float64, description string) (*models.Transaction, error)
	CreateEscrow(ctx context.Context, requestID, seekerID, referrerID uuid.UUID, amount float64) (*models.Escrow, error)
	ReleaseEscrow(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error)
	RefundEscrow(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error)
	GetEscrowByRequestID(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// PaymentService содержит платёжную логику: балансы и escrow,
// привязанный к жизненному циклу запросов рекомендаций.
type PaymentService struct {
	repo PaymentRepository
}

// NewPaymentService создаёт платёжный сервис.
func NewPaymentService(repo PaymentRepository) *PaymentService {
	return &PaymentService{repo: repo}
}

// GetBalance возвращает баланс пользователя.
func (s *PaymentService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	return s.repo.GetBalance(ctx, userID)
}

// Deposit пополняет баланс.
func (s *PaymentService) Deposit(ctx context.Context, userID uuid.UUID, amount float64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма пополнения должна быть положительной")
	}

	return s.repo.Deposit(ctx, userID, amount, "Пополнение баланса")
}

// ListTransactions возвращает историю операций пользователя.
func (s *PaymentService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	return transactions, nil
}

// GetEscrow возвращает escrow запроса его участнику.
func (s *PaymentService) GetEscrow(ctx context.Context, requestID, userID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.GetEscrowByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "escrow не найден")
		}
		return nil, err
	}

	if escrow.SeekerID != userID && escrow.ReferrerID != userID {
		return nil, apperror.New(apperror.ErrCodeNotFound, "escrow не найден")
	}

	return escrow, nil
}

// Hold замораживает вознаграждение соискателя под принятый запрос.
func (s *PaymentService) Hold(ctx context.Context, requestID, seekerID, referrerID uuid.UUID, amount float64) error {
	_, err := s.repo.CreateEscrow(ctx, requestID, seekerID, referrerID, amount)
	return err
}

// Release переводит замороженное вознаграждение рекомендателю.
func (s *PaymentService) Release(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error) {
	return s.repo.ReleaseEscrow(ctx, requestID)
}

// Refund возвращает замороженное вознаграждение соискателю.
func (s *PaymentService) Refund(ctx context.Context, requestID uuid.UUID) (*models.Escrow, error) {
	return s.repo.RefundEscrow(ctx, requestID)
}
