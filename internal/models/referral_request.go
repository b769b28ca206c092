package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ReferralRequest описывает запрос соискателя на рекомендацию в компанию.
// Поле status — единственная точка сериализации гонки приёма: переходы
// дальше pending выполняются только условными UPDATE в репозитории.
type ReferralRequest struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	SeekerID    uuid.UUID      `db:"seeker_id" json:"seeker_id"`
	Company     string         `db:"company" json:"company"`
	Role        string         `db:"role" json:"role"`
	Skills      pq.StringArray `db:"skills" json:"skills"`
	Description string         `db:"description" json:"description"`
	ResumeID    *uuid.UUID     `db:"resume_id" json:"resume_id,omitempty"`
	Reward      float64        `db:"reward" json:"reward"`
	Status      string         `db:"status" json:"status"`
	AcceptedBy  *uuid.UUID     `db:"accepted_by" json:"accepted_by,omitempty"`
	AcceptedAt  *time.Time     `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	ChatRoomID  *uuid.UUID     `db:"chat_room_id" json:"chat_room_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`

	// Заполняется отдельно при выдаче списков.
	Referrer *ReferrerCard `json:"referrer,omitempty"`
}
