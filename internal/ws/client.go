package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/refdirectly/referral-backend/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ChatGateway обрабатывает входящие события чата. Каждая операция сама
// проверяет, что пользователь — участник комнаты.
type ChatGateway interface {
	GetRoomForUser(ctx context.Context, roomID, userID uuid.UUID) (*models.ChatRoom, error)
	SendMessage(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.ChatMessage, error)
	NotifyTyping(ctx context.Context, roomID, userID uuid.UUID, typing bool) error
}

// Client представляет одно подключение WebSocket.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	chat   ChatGateway
	userID uuid.UUID
	send   chan []byte
	// joined защищён мьютексом хаба.
	joined map[uuid.UUID]struct{}
}

// inboundEvent — конверт входящего события: "type" + "data".
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type inboundChatData struct {
	RoomID  uuid.UUID `json:"room_id"`
	Content string    `json:"content"`
	Typing  bool      `json:"typing"`
}

// NewClient создаёт нового клиента.
func NewClient(conn *websocket.Conn, hub *Hub, chat ChatGateway, userID uuid.UUID) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		chat:   chat,
		userID: userID,
		send:   make(chan []byte, 16),
		joined: make(map[uuid.UUID]struct{}),
	}
}

// Run запускает обработку входящих и исходящих сообщений.
func (c *Client) Run(ctx context.Context) {
	go c.writePumpSafe()
	c.readPump(ctx)
}

// writePumpSafe запускает writePump с обработкой panic
func (c *Client) writePumpSafe() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("WebSocket writePump panic recovered: %v\nStack trace:\n%s\n", r, debug.Stack())
			c.Close()
		}
	}()
	c.writePump()
}

// Close закрывает соединение.
func (c *Client) Close() {
	c.hub.Unregister(c)
	c.conn.Close()
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("WebSocket readPump panic recovered: %v\nStack trace:\n%s\n", r, debug.Stack())
		}
		c.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, raw, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			c.handleInbound(ctx, raw)
		}
	}
}

// handleInbound разбирает событие от клиента. Неизвестные и битые
// события молча пропускаются: контракт не требует ответных ошибок.
func (c *Client) handleInbound(ctx context.Context, raw []byte) {
	var event inboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return
	}

	var data inboundChatData
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return
		}
	}
	if data.RoomID == uuid.Nil {
		return
	}

	switch event.Type {
	case "join_chat_room":
		// Подписка только для участников комнаты.
		if _, err := c.chat.GetRoomForUser(ctx, data.RoomID, c.userID); err != nil {
			return
		}
		c.hub.JoinRoom(c, data.RoomID)
	case "leave_chat_room":
		c.hub.LeaveRoom(c, data.RoomID)
	case "typing":
		_ = c.chat.NotifyTyping(ctx, data.RoomID, c.userID, data.Typing)
	case "chat_message":
		if strings.TrimSpace(data.Content) == "" {
			return
		}
		_, _ = c.chat.SendMessage(ctx, data.RoomID, c.userID, data.Content)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
