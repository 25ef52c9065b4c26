package service

import (
	"context"
	"errors"

	"github.com/cwrk-planet/poker-service/internal/domain"
	"github.com/cwrk-planet/poker-service/internal/store"
)

// RoomService — read-only сторона для REST: список комнат и история.
type RoomService struct {
	store store.RoomStore
}

func NewRoomService(st store.RoomStore) *RoomService {
	return &RoomService{store: st}
}

// ListRooms возвращает список комнат с курсорной пагинацией.
func (s *RoomService) ListRooms(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	return s.store.List(ctx, limit, cursor)
}

// GetRoom возвращает комнату по имени.
func (s *RoomService) GetRoom(ctx context.Context, name string) (*domain.Room, error) {
	room, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// Rounds — история раундов комнаты (append-only, уже с открытыми голосами).
func (s *RoomService) Rounds(ctx context.Context, name string) ([]domain.Round, error) {
	room, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return room.Rounds, nil
}
