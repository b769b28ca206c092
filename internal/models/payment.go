package models

import (
	"time"

	"github.com/google/uuid"
)

// UserBalance хранит доступные и замороженные средства пользователя.
type UserBalance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Available float64   `db:"available" json:"available"`
	Frozen    float64   `db:"frozen" json:"frozen"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Escrow фиксирует вознаграждение, замороженное под запрос рекомендации.
type Escrow struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	RequestID  uuid.UUID  `db:"request_id" json:"request_id"`
	SeekerID   uuid.UUID  `db:"seeker_id" json:"seeker_id"`
	ReferrerID uuid.UUID  `db:"referrer_id" json:"referrer_id"`
	Amount     float64    `db:"amount" json:"amount"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ReleasedAt *time.Time `db:"released_at" json:"released_at,omitempty"`
}

// Transaction — запись в истории операций пользователя.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	RequestID   *uuid.UUID `db:"request_id" json:"request_id,omitempty"`
	Type        string     `db:"type" json:"type"`
	Amount      float64    `db:"amount" json:"amount"`
	Status      string     `db:"status" json:"status"`
	Description string     `db:"description" json:"description"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// ResumeFile описывает загруженное резюме.
type ResumeFile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	FilePath  string    `db:"file_path" json:"file_path"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
