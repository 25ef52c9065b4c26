// Package store — узкий порт к документному хранилищу комнат.
package store

import (
	"context"
	"errors"

	"github.com/cwrk-planet/poker-service/internal/domain"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// MutateFn — чистое преобразование снапшота комнаты. Возврат ошибки
// отменяет запись целиком.
type MutateFn func(*domain.Room) error

// RoomStore владеет каноническим документом комнаты.
//
// CreateIfAbsent — атомарный check-and-insert: из двух конкурентных
// вызовов с одним именем ровно один создаёт, второй получает
// domain.ErrRoomExists.
//
// Mutate — граница сериализации: конкурентные мутации одной комнаты
// не теряют эффектов друг друга; разные комнаты независимы.
type RoomStore interface {
	CreateIfAbsent(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, name string) (*domain.Room, error)
	Mutate(ctx context.Context, name string, fn MutateFn) (*domain.Room, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error)
}
