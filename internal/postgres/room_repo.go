package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cwrk-planet/poker-service/internal/domain"
	"github.com/cwrk-planet/poker-service/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomStore хранит комнату одним JSONB-документом, ключ — имя.
type RoomStore struct {
	db *pgxpool.Pool
}

func NewRoomStore(db *pgxpool.Pool) *RoomStore {
	return &RoomStore{db: db}
}

var _ store.RoomStore = (*RoomStore)(nil)

// Migrate создаёт таблицу, если её нет. Гоняется на старте процесса.
func (r *RoomStore) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS poker_rooms (
			name       TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// CreateIfAbsent — атомарный check-and-insert через ON CONFLICT:
// гонка двух создателей не даст дубликата.
func (r *RoomStore) CreateIfAbsent(ctx context.Context, room *domain.Room) error {
	doc, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	cmd, err := r.db.Exec(ctx, `
		INSERT INTO poker_rooms (name, doc)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, room.Name, doc)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrRoomExists
	}
	return nil
}

func (r *RoomStore) Get(ctx context.Context, name string) (*domain.Room, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT doc FROM poker_rooms WHERE name=$1`, name).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	var room domain.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return nil, fmt.Errorf("unmarshal room %q: %w", name, err)
	}
	return &room, nil
}

// Mutate — граница сериализации. Блокируем строку комнаты FOR UPDATE:
// параллельные мутации той же комнаты встают в очередь, lost update исключён.
func (r *RoomStore) Mutate(ctx context.Context, name string, fn store.MutateFn) (*domain.Room, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var doc []byte
	if err := tx.QueryRow(ctx, `SELECT doc FROM poker_rooms WHERE name=$1 FOR UPDATE`, name).Scan(&doc); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}

	var room domain.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return nil, fmt.Errorf("unmarshal room %q: %w", name, err)
	}
	if err := fn(&room); err != nil {
		return nil, err
	}

	out, err := json.Marshal(&room)
	if err != nil {
		return nil, fmt.Errorf("marshal room: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE poker_rooms SET doc=$2 WHERE name=$1`, name, out); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &room, nil
}

// List возвращает комнаты с курсорной пагинацией (created_at, name DESC).
func (r *RoomStore) List(ctx context.Context, limit int, cursorStr string) ([]domain.Room, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	cur, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	const query = `
		SELECT doc, created_at
		FROM poker_rooms
		WHERE ($1::timestamptz IS NULL OR created_at < $1
		       OR (created_at = $1 AND name < $2))
		ORDER BY created_at DESC, name DESC
		LIMIT $3`

	var createdAt any
	var name any
	if cur != nil {
		createdAt = cur.CreatedAt
		name = cur.Name
	}

	rows, err := r.db.Query(ctx, query, createdAt, name, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var rooms []domain.Room
	var lastCur Cursor
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc, &lastCur.CreatedAt); err != nil {
			return nil, "", err
		}
		var room domain.Room
		if err := json.Unmarshal(doc, &room); err != nil {
			return nil, "", fmt.Errorf("unmarshal room: %w", err)
		}
		lastCur.Name = room.Name
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(rooms) == limit {
		next, _ = EncodeCursor(lastCur)
	}
	return rooms, next, nil
}
