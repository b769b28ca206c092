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

// Ошибки уровня репозитория.
var (
	ErrRoomNotFound    = errors.New("chat room not found")
	ErrMessageNotFound = errors.New("chat message not found")
)

// ChatRepository отвечает за комнаты чатов и сообщения.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository создаёт экземпляр репозитория.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

const roomColumns = `id, request_id, seeker_id, referrer_id, last_message, last_message_at, created_at`

// CreateRoom создаёт комнату для принятого запроса. Уникальный индекс по
// request_id делает операцию идемпотентной: при повторном вызове вставка
// не срабатывает и возвращается уже существующая комната.
func (r *ChatRepository) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	query := `
		INSERT INTO chat_rooms (request_id, seeker_id, referrer_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query, room.RequestID, room.SeekerID, room.ReferrerID).
		Scan(&room.ID, &room.CreatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("chat repository: create room %w", err)
	}

	// Комната уже существует — перечитываем её.
	existing, err := r.GetRoomByRequestID(ctx, room.RequestID)
	if err != nil {
		return fmt.Errorf("chat repository: create room reselect %w", err)
	}
	*room = *existing

	return nil
}

// GetRoom возвращает комнату по идентификатору.
func (r *ChatRepository) GetRoom(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	query := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE id = $1`
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("chat repository: get room %w", err)
	}

	return &room, nil
}

// GetRoomByRequestID возвращает комнату принятого запроса.
func (r *ChatRepository) GetRoomByRequestID(ctx context.Context, requestID uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	query := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE request_id = $1`
	if err := r.db.GetContext(ctx, &room, query, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("chat repository: get room by request %w", err)
	}

	return &room, nil
}

// ListRoomsForUser возвращает комнаты пользователя, недавно активные первыми.
func (r *ChatRepository) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	query := `
		SELECT ` + roomColumns + `
		FROM chat_rooms
		WHERE seeker_id = $1 OR referrer_id = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`
	if err := r.db.SelectContext(ctx, &rooms, query, userID); err != nil {
		return nil, fmt.Errorf("chat repository: list rooms %w", err)
	}

	return rooms, nil
}

// AddMessage добавляет сообщение и обновляет витрину последнего сообщения
// комнаты в одной транзакции.
func (r *ChatRepository) AddMessage(ctx context.Context, message *models.ChatMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("chat repository: add message begin %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowxContext(ctx, `
		INSERT INTO chat_messages (room_id, sender_id, sender_role, content, attachment_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, message.RoomID, message.SenderID, message.SenderRole, message.Content, message.AttachmentID).
		Scan(&message.ID, &message.CreatedAt); err != nil {
		return fmt.Errorf("chat repository: add message insert %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE chat_rooms SET last_message = $2, last_message_at = $3 WHERE id = $1
	`, message.RoomID, message.Content, message.CreatedAt); err != nil {
		return fmt.Errorf("chat repository: add message update room %w", err)
	}

	return tx.Commit()
}

// ListMessages возвращает сообщения комнаты в порядке отправки.
func (r *ChatRepository) ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.ChatMessage, error) {
	query := `
		SELECT id, room_id, sender_id, sender_role, content, attachment_id, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at
	`
	args := []interface{}{roomID}
	argIndex := 2

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("chat repository: list messages %w", err)
	}

	return messages, nil
}
