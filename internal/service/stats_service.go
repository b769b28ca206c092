package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/refdirectly/referral-backend/internal/models"
)

// StatsRequestRepository описывает агрегаты по запросам.
type StatsRequestRepository interface {
	CountByStatus(ctx context.Context, seekerID uuid.UUID) (map[string]int, error)
	CountByReferrer(ctx context.Context, referrerID uuid.UUID) (accepted, completed int, err error)
}

// StatsPaymentRepository описывает агрегаты по выплатам.
type StatsPaymentRepository interface {
	SumEarned(ctx context.Context, userID uuid.UUID) (float64, error)
}

// StatsService считает сводку личного кабинета.
type StatsService struct {
	requests StatsRequestRepository
	payments StatsPaymentRepository
}

// NewStatsService создаёт сервис статистики.
func NewStatsService(requests StatsRequestRepository, payments StatsPaymentRepository) *StatsService {
	return &StatsService{requests: requests, payments: payments}
}

// SeekerStats — сводка соискателя по его запросам.
type SeekerStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// ReferrerStats — сводка рекомендателя.
type ReferrerStats struct {
	InProgress int     `json:"in_progress"`
	Completed  int     `json:"completed"`
	Earned     float64 `json:"earned"`
}

// ForSeeker возвращает распределение запросов соискателя по статусам.
func (s *StatsService) ForSeeker(ctx context.Context, seekerID uuid.UUID) (*SeekerStats, error) {
	counts, err := s.requests.CountByStatus(ctx, seekerID)
	if err != nil {
		return nil, err
	}

	stats := &SeekerStats{
		Pending:   counts[models.RequestStatusPending],
		Accepted:  counts[models.RequestStatusAccepted],
		Completed: counts[models.RequestStatusCompleted],
		Cancelled: counts[models.RequestStatusCancelled],
	}
	stats.Total = stats.Pending + stats.Accepted + stats.Completed + stats.Cancelled

	return stats, nil
}

// ForReferrer возвращает сводку рекомендателя: запросы в работе,
// завершённые и заработанная сумма.
func (s *StatsService) ForReferrer(ctx context.Context, referrerID uuid.UUID) (*ReferrerStats, error) {
	accepted, completed, err := s.requests.CountByReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	earned, err := s.payments.SumEarned(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	return &ReferrerStats{
		InProgress: accepted,
		Completed:  completed,
		Earned:     earned,
	}, nil
}
