package app

import (
	"sync"

	"quiz-rooms-service/internal/domain"
)

const chatHistoryLimit = 50

// RoomEvent is a server-confirmed event fanned out to every connection in a
// room. Clients reconcile their local optimistic state against these.
type RoomEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// RoomHub tracks live connections per room and broadcasts events to them.
// It holds presence and a bounded chat buffer only; all game truth lives in
// the stores.
type RoomHub struct {
	mu    sync.RWMutex
	rooms map[string]*roomChannel
}

type roomChannel struct {
	mu          sync.RWMutex
	present     map[string]string // playerID -> display name
	chat        []domain.ChatMessage
	subscribers map[chan RoomEvent]struct{}
}

func NewRoomHub() *RoomHub {
	return &RoomHub{rooms: make(map[string]*roomChannel)}
}

// Join marks playerID present in the room, creating the channel on first use.
func (h *RoomHub) Join(roomID, playerID, name string) {
	ch := h.getOrCreate(roomID)
	ch.mu.Lock()
	ch.present[playerID] = name
	ch.mu.Unlock()
}

// Leave removes playerID and drops the channel once nobody is connected.
func (h *RoomHub) Leave(roomID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.rooms[roomID]
	if !ok {
		return
	}
	ch.mu.Lock()
	delete(ch.present, playerID)
	empty := len(ch.present) == 0 && len(ch.subscribers) == 0
	ch.mu.Unlock()
	if empty {
		delete(h.rooms, roomID)
	}
}

// Subscribe returns a channel receiving the room's events. The caller must
// invoke the returned cancel function to avoid leaks.
func (h *RoomHub) Subscribe(roomID string) (<-chan RoomEvent, func()) {
	ch := h.getOrCreate(roomID)
	sub := make(chan RoomEvent, 16)

	ch.mu.Lock()
	ch.subscribers[sub] = struct{}{}
	ch.mu.Unlock()

	cancel := func() {
		ch.mu.Lock()
		if _, ok := ch.subscribers[sub]; ok {
			delete(ch.subscribers, sub)
			close(sub)
		}
		ch.mu.Unlock()
	}
	return sub, cancel
}

// Broadcast fans the event out to every subscriber. Slow consumers lose their
// oldest pending event rather than blocking the broadcaster.
func (h *RoomHub) Broadcast(roomID string, event RoomEvent) {
	h.mu.RLock()
	ch, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	ch.mu.RLock()
	defer ch.mu.RUnlock()
	for sub := range ch.subscribers {
		select {
		case sub <- event:
		default:
			select {
			case <-sub:
			default:
			}
			sub <- event
		}
	}
}

// Chat appends the message to the room's bounded history and broadcasts it.
func (h *RoomHub) Chat(roomID string, msg domain.ChatMessage) {
	ch := h.getOrCreate(roomID)
	ch.mu.Lock()
	ch.chat = append(ch.chat, msg)
	if len(ch.chat) > chatHistoryLimit {
		ch.chat = ch.chat[len(ch.chat)-chatHistoryLimit:]
	}
	ch.mu.Unlock()

	h.Broadcast(roomID, RoomEvent{Type: "chat", Payload: msg})
}

// ChatHistory returns a copy of the room's recent chat messages.
func (h *RoomHub) ChatHistory(roomID string) []domain.ChatMessage {
	h.mu.RLock()
	ch, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	out := make([]domain.ChatMessage, len(ch.chat))
	copy(out, ch.chat)
	return out
}

// Present returns the display names of connected players, keyed by player ID.
func (h *RoomHub) Present(roomID string) map[string]string {
	h.mu.RLock()
	ch, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	out := make(map[string]string, len(ch.present))
	for id, name := range ch.present {
		out[id] = name
	}
	return out
}

func (h *RoomHub) getOrCreate(roomID string) *roomChannel {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.rooms[roomID]; ok {
		return ch
	}
	ch := &roomChannel{
		present:     make(map[string]string),
		subscribers: make(map[chan RoomEvent]struct{}),
	}
	h.rooms[roomID] = ch
	return ch
}
