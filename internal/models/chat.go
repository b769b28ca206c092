package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRoom описывает чат между соискателем и принявшим запрос рекомендателем.
// На один принятый запрос создаётся ровно одна комната (уникальный индекс
// по request_id); участники неизменяемы после создания.
type ChatRoom struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	RequestID     uuid.UUID  `db:"request_id" json:"request_id"`
	SeekerID      uuid.UUID  `db:"seeker_id" json:"seeker_id"`
	ReferrerID    uuid.UUID  `db:"referrer_id" json:"referrer_id"`
	LastMessage   *string    `db:"last_message" json:"last_message,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// HasParticipant сообщает, состоит ли пользователь в комнате.
func (r *ChatRoom) HasParticipant(userID uuid.UUID) bool {
	return r.SeekerID == userID || r.ReferrerID == userID
}

// ChatMessage — одно сообщение в комнате. Лог append-only, порядок —
// естественный порядок вставки в хранилище.
type ChatMessage struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	RoomID       uuid.UUID  `db:"room_id" json:"room_id"`
	SenderID     uuid.UUID  `db:"sender_id" json:"sender_id"`
	SenderRole   string     `db:"sender_role" json:"sender_role"`
	Content      string     `db:"content" json:"content"`
	AttachmentID *uuid.UUID `db:"attachment_id" json:"attachment_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
