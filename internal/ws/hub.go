package ws

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// Hub управляет всеми WebSocket клиентами. Адресация двухуровневая:
// по пользователю (уведомления) и по комнате чата (сообщения, typing).
//
// Хаб — чистый транспорт: он ничего не пишет в хранилище, и доставка
// best-effort. Источник истины для догоняющего чтения — БД.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	rooms      map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
}

type message struct {
	userID  uuid.UUID
	roomID  uuid.UUID
	exclude uuid.UUID
	toRoom  bool
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			if msg.toRoom {
				h.sendToRoom(msg.roomID, msg.exclude, msg.payload)
			} else {
				h.sendToUser(msg.userID, msg.payload)
			}
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента и выводит его из всех комнат.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom подписывает клиента на события комнаты. Проверка, что
// пользователь — участник комнаты, выполняется до вызова.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
	client.joined[roomID] = struct{}{}
}

// LeaveRoom отписывает клиента от комнаты.
func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detachFromRoom(client, roomID)
}

// BroadcastToUser отправляет событие на все соединения пользователя.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event string, data interface{}) error {
	raw, err := encodeEvent(event, data)
	if err != nil {
		return err
	}

	h.broadcast <- message{userID: userID, payload: raw}
	return nil
}

// BroadcastToRoom отправляет событие подписчикам комнаты, кроме exclude.
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, event string, data interface{}, exclude uuid.UUID) error {
	raw, err := encodeEvent(event, data)
	if err != nil {
		return err
	}

	h.broadcast <- message{roomID: roomID, exclude: exclude, toRoom: true, payload: raw}
	return nil
}

// encodeEvent сериализует событие по контракту WebSocket API: поле
// "type" содержит имя события, "data" — полезную нагрузку.
func encodeEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		return nil, fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}
	return raw, nil
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range client.joined {
		h.detachFromRoom(client, roomID)
	}

	if clients, ok := h.clients[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

// detachFromRoom вызывается только под h.mu.
func (h *Hub) detachFromRoom(client *Client, roomID uuid.UUID) {
	delete(client.joined, roomID)
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) sendToUser(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		h.deliver(client, payload)
	}
}

func (h *Hub) sendToRoom(roomID, exclude uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		if client.userID == exclude {
			continue
		}
		h.deliver(client, payload)
	}
}

// deliver кладёт payload в буфер клиента. Переполненный буфер означает
// мёртвое или безнадёжно отставшее соединение: такого клиента закрываем.
func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		go func(c *Client) {
			defer func() {
				if r := recover(); r != nil {
					fmt.Printf("WebSocket client close panic recovered: %v\nStack trace:\n%s\n", r, debug.Stack())
				}
			}()
			c.Close()
		}(client)
	}
}
