package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification описывает событие, адресованное одному пользователю.
//
// Уведомления делятся на два вида: «actionable» — привязанные к запросу
// рекомендации (status заполнен, job_request_id не NULL) и информационные
// (status NULL). Все waiting-уведомления одного запроса — взаимоисключающие
// претенденты: ровно одно переходит в in_progress, остальные в rejected.
type Notification struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	UserRole     string          `db:"user_role" json:"user_role"`
	Type         string          `db:"type" json:"type"`
	Title        string          `db:"title" json:"title"`
	Message      string          `db:"message" json:"message"`
	Status       *string         `db:"status" json:"status,omitempty"`
	Read         bool            `db:"read" json:"read"`
	JobRequestID *uuid.UUID      `db:"job_request_id" json:"job_request_id,omitempty"`
	Priority     string          `db:"priority" json:"priority"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	AcceptedAt   *time.Time      `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
