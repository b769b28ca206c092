package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/refdirectly/referral-backend/internal/logger"
	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/repository"
)

// SeedService наполняет development-окружение демо-рекомендателями с
// подтверждёнными компаниями. В production не регистрируется.
type SeedService struct {
	users AuthRepository
}

// NewSeedService создаёт сервис демо-данных.
func NewSeedService(users AuthRepository) *SeedService {
	return &SeedService{users: users}
}

type seedReferrer struct {
	email     string
	name      string
	companies []string
}

var demoReferrers = []seedReferrer{
	{email: "referrer.google@example.com", name: "Anna Petrova", companies: []string{"Google", "YouTube"}},
	{email: "referrer.meta@example.com", name: "Ivan Sidorov", companies: []string{"Meta"}},
	{email: "referrer.amazon@example.com", name: "Maria Ivanova", companies: []string{"Amazon", "AWS"}},
	{email: "referrer.stripe@example.com", name: "Oleg Smirnov", companies: []string{"Stripe"}},
}

// SeedDemoReferrers создаёт демо-рекомендателей. Повторный вызов
// пропускает уже существующих пользователей.
func (s *SeedService) SeedDemoReferrers(ctx context.Context) (int, error) {
	passHash, err := bcrypt.GenerateFromPassword([]byte("demo-password-123"), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("seed service: %w", err)
	}

	created := 0
	for _, demo := range demoReferrers {
		if _, err := s.users.GetByEmail(ctx, demo.email); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return created, err
		}

		user := &models.User{
			Email:        demo.email,
			Name:         demo.name,
			PasswordHash: string(passHash),
			Role:         models.RoleReferrer,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return created, err
		}

		for _, company := range demo.companies {
			affiliation := &models.CompanyAffiliation{
				UserID:   user.ID,
				Company:  company,
				Verified: true,
			}
			if err := s.users.AddCompany(ctx, affiliation); err != nil {
				return created, err
			}
		}

		created++
		logger.Log.WithFields(map[string]interface{}{
			"email":     demo.email,
			"companies": demo.companies,
		}).Info("seed service: демо-рекомендатель создан")
	}

	return created, nil
}
