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

// ErrResumeNotFound возвращается, когда файл резюме не найден.
var ErrResumeNotFound = errors.New("resume not found")

// ResumeRepository отвечает за метаданные загруженных резюме.
type ResumeRepository struct {
	db *sqlx.DB
}

// NewResumeRepository создаёт экземпляр репозитория.
func NewResumeRepository(db *sqlx.DB) *ResumeRepository {
	return &ResumeRepository{db: db}
}

// Save сохраняет метаданные загруженного файла.
func (r *ResumeRepository) Save(ctx context.Context, resume *models.ResumeFile) error {
	query := `
		INSERT INTO resume_files (user_id, file_path, file_type, file_size)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		resume.UserID, resume.FilePath, resume.FileType, resume.FileSize,
	).Scan(&resume.ID, &resume.CreatedAt); err != nil {
		return fmt.Errorf("resume repository: save %w", err)
	}

	return nil
}

// GetByID возвращает метаданные резюме по идентификатору.
func (r *ResumeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ResumeFile, error) {
	var resume models.ResumeFile
	err := r.db.GetContext(ctx, &resume, `
		SELECT id, user_id, file_path, file_type, file_size, created_at
		FROM resume_files
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResumeNotFound
		}
		return nil, fmt.Errorf("resume repository: get by id %w", err)
	}

	return &resume, nil
}

// ListByUser возвращает резюме пользователя, новые первыми.
func (r *ResumeRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ResumeFile, error) {
	var resumes []models.ResumeFile
	err := r.db.SelectContext(ctx, &resumes, `
		SELECT id, user_id, file_path, file_type, file_size, created_at
		FROM resume_files
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("resume repository: list by user %w", err)
	}

	return resumes, nil
}
