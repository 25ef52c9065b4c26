// Package memory — RoomStore в памяти процесса: дев-режим без postgres и тесты.
package memory

import (
	"context"
	"sync"

	"github.com/cwrk-planet/poker-service/internal/domain"
	"github.com/cwrk-planet/poker-service/internal/store"
)

type entry struct {
	mu   sync.Mutex // сериализует Mutate по одной комнате
	room *domain.Room
}

type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*entry
	order []string // имена в порядке создания, для List
}

func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string]*entry)}
}

var _ store.RoomStore = (*RoomStore)(nil)

func (s *RoomStore) CreateIfAbsent(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Name]; ok {
		return domain.ErrRoomExists
	}
	s.rooms[room.Name] = &entry{room: room.Clone()}
	s.order = append(s.order, room.Name)
	return nil
}

func (s *RoomStore) Get(_ context.Context, name string) (*domain.Room, error) {
	s.mu.RLock()
	e, ok := s.rooms[name]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.Clone(), nil
}

// Mutate работает с клоном: откат при ошибке fn бесплатный, наружу
// документ без клона не выходит.
func (s *RoomStore) Mutate(_ context.Context, name string, fn store.MutateFn) (*domain.Room, error) {
	s.mu.RLock()
	e, ok := s.rooms[name]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.room.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	e.room = next
	return next.Clone(), nil
}

// List отдаёт комнаты от новых к старым; курсор — имя последней выданной.
func (s *RoomStore) List(_ context.Context, limit int, cursor string) ([]domain.Room, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	s.mu.RLock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	s.mu.RUnlock()

	// от новых к старым, как у postgres-реализации
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	start := 0
	if cursor != "" {
		start = len(names)
		for i, n := range names {
			if n == cursor {
				start = i + 1
				break
			}
		}
	}

	var out []domain.Room
	var next string
	for _, n := range names[min(start, len(names)):] {
		if len(out) == limit {
			break
		}
		s.mu.RLock()
		e, ok := s.rooms[n]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		e.mu.Lock()
		out = append(out, *e.room.Clone())
		e.mu.Unlock()
		next = n
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}
