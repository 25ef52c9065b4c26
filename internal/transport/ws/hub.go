package ws

import (
	"sync"

	"github.com/cwrk-planet/poker-service/internal/service"
)

// Hub — канал на имя комнаты. Подписка живёт с момента createRoom/joinRoom
// до Disconnect или перехода в другую комнату.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[service.Conn]struct{} // room name -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[service.Conn]struct{})}
}

var _ service.Hub = (*Hub)(nil)

func (h *Hub) Subscribe(room string, c service.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[room]
	if !ok {
		rs = make(map[service.Conn]struct{})
		h.rooms[room] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Unsubscribe(room string, c service.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[room]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) Broadcast(room, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[room]; ok {
		for c := range rs {
			_ = c.Send(event, payload) // best-effort
		}
	}
}
