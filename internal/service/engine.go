package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cwrk-planet/poker-service/internal/domain"
	"github.com/cwrk-planet/poker-service/internal/estimate"
	"github.com/cwrk-planet/poker-service/internal/presence"
	"github.com/cwrk-planet/poker-service/internal/store"
	"github.com/cwrk-planet/poker-service/internal/vault"
)

// Engine применяет события клиентов к комнате. Каждое чтение-с-записью
// идёт одной атомарной единицей через store.Mutate; бродкаст — только
// после успешной записи, частичных рассылок не бывает.
type Engine struct {
	store    store.RoomStore
	vault    *vault.Vault
	hub      Hub
	presence *presence.Tracker

	roomMu sync.Map // имя комнаты -> *sync.Mutex
}

func NewEngine(st store.RoomStore, v *vault.Vault, hub Hub, tr *presence.Tracker) *Engine {
	return &Engine{
		store:    st,
		vault:    v,
		hub:      hub,
		presence: tr,
	}
}

// lockRoom держит мутацию и её рассылку под одним замком: порядок
// бродкастов комнаты совпадает с порядком persisted-состояний.
func (e *Engine) lockRoom(name string) func() {
	v, _ := e.roomMu.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// bind подписывает соединение на комнату; переход в другую комнату
// снимает старую подписку.
func (e *Engine) bind(c Conn, room, uid string) {
	if prev, ok := e.presence.Bind(c.ID(), room, uid); ok && prev.Room != room {
		e.hub.Unsubscribe(prev.Room, c)
	}
	e.hub.Subscribe(room, c)
}

func (e *Engine) CreateRoom(ctx context.Context, c Conn, name string, user domain.Participant) error {
	if name == "" || user.UID == "" {
		return domain.ErrInvalidInput
	}
	defer e.lockRoom(name)()

	user.ConnectionID = c.ID()
	room := domain.NewRoom(name, user)
	if err := e.store.CreateIfAbsent(ctx, room); err != nil {
		return err
	}

	e.bind(c, name, user.UID)
	if err := c.Send(EventInit, InitPayload{Users: room.Users, Messages: room.Messages, Topic: room.Topic}); err != nil {
		slog.Debug("init reply failed", "room", name, "uid", user.UID, "err", err)
	}
	e.hub.Broadcast(name, EventUpdateUsers, room.Users)

	slog.Info("room created", "room", name, "uid", user.UID)
	return nil
}

func (e *Engine) JoinRoom(ctx context.Context, c Conn, name string, user domain.Participant) error {
	if name == "" || user.UID == "" {
		return domain.ErrInvalidInput
	}
	defer e.lockRoom(name)()

	room, err := e.store.Mutate(ctx, name, func(r *domain.Room) error {
		p := r.UpsertUser(user, c.ID())
		r.AppendMessage(domain.NewMessage(*p, fmt.Sprintf("%s se ha unido a la sala", p.DisplayName)))
		return nil
	})
	if err != nil {
		return err
	}

	e.bind(c, name, user.UID)
	if err := c.Send(EventInit, InitPayload{Users: room.Users, Messages: room.Messages, Topic: room.Topic}); err != nil {
		slog.Debug("init reply failed", "room", name, "uid", user.UID, "err", err)
	}
	e.hub.Broadcast(name, EventUpdateUsers, room.Users)
	e.hub.Broadcast(name, EventUpdateMessages, room.Messages)

	slog.Info("user joined", "room", name, "uid", user.UID)
	return nil
}

func (e *Engine) NewMessage(ctx context.Context, name string, msg domain.Message) error {
	content := strings.TrimSpace(msg.Content)
	if name == "" || content == "" {
		return domain.ErrInvalidInput
	}
	// todo: лимит длины вынести в конфиг
	if len(content) > 4000 {
		return domain.ErrInvalidInput
	}
	defer e.lockRoom(name)()

	room, err := e.store.Mutate(ctx, name, func(r *domain.Room) error {
		r.AppendMessage(domain.NewMessage(msg.User, content))
		return nil
	})
	if err != nil {
		return err
	}

	e.hub.Broadcast(name, EventUpdateMessages, room.Messages)
	return nil
}

// Vote пишет в документ только шифртекст; открытый текст голоса до
// reveal нигде не сохраняется и не рассылается.
func (e *Engine) Vote(ctx context.Context, name, uid, vote string) error {
	if name == "" || uid == "" {
		return domain.ErrInvalidInput
	}

	ciphertext := ""
	if vote != "" {
		var err error
		if ciphertext, err = e.vault.Encrypt(vote); err != nil {
			return err
		}
	}
	defer e.lockRoom(name)()

	room, err := e.store.Mutate(ctx, name, func(r *domain.Room) error {
		p := r.FindUser(uid)
		if p == nil {
			return domain.ErrNotInRoom
		}
		p.Vote = ciphertext
		if vote != "" {
			r.AppendMessage(domain.NewMessage(*p, "ha votado."))
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.hub.Broadcast(name, EventUpdateUsers, room.Users)
	if vote != "" {
		e.hub.Broadcast(name, EventUpdateMessages, room.Messages)
	}
	return nil
}

// RevealVotes расшифровывает все голоса, считает агрегат и архивирует
// раунд. Открытые голоса остаются в документе вместо шифртекста —
// задокументированное поведение продукта. Неподдающийся расшифровке
// голос считается отсутствующим.
func (e *Engine) RevealVotes(ctx context.Context, name string) error {
	if name == "" {
		return domain.ErrInvalidInput
	}
	defer e.lockRoom(name)()

	var res domain.Result
	room, err := e.store.Mutate(ctx, name, func(r *domain.Room) error {
		votes := make([]string, 0, len(r.Users))
		for i := range r.Users {
			p := &r.Users[i]
			if p.Vote == "" {
				continue
			}
			plain, err := e.vault.Decrypt(p.Vote)
			if err != nil {
				slog.Warn("vote discarded", "room", r.Name, "uid", p.UID, "err", err)
				p.Vote = ""
				continue
			}
			p.Vote = plain
			votes = append(votes, plain)
		}
		res = estimate.Compute(votes)
		r.Rounds = append(r.Rounds, domain.NewRound(r.Topic, res, r.UsersSnapshot()))
		r.AppendMessage(domain.SystemMessage(fmt.Sprintf(
			"[SYSTEM] Los resultados son: Promedio = %g, Mínimo = %g, Máximo = %g, Ratio = %.2f%%",
			res.Avg, res.Min, res.Max, res.Ratio)))
		return nil
	})
	if err != nil {
		return err
	}

	e.hub.Broadcast(name, EventResults, ResultsPayload{Users: room.Users, Results: res})
	e.hub.Broadcast(name, EventUpdateMessages, room.Messages)

	slog.Info("votes revealed", "room", name, "avg", res.Avg, "ratio", res.Ratio)
	return nil
}

func (e *Engine) ChangeTopic(ctx context.Context, name, topic string) error {
	if name == "" {
		return domain.ErrInvalidInput
	}
	defer e.lockRoom(name)()

	room, err := e.store.Mutate(ctx, name, func(r *domain.Room) error {
		r.Topic = topic
		r.ClearVotes()
		return nil
	})
	if err != nil {
		return err
	}

	e.hub.Broadcast(name, EventNewTopic, topic)
	e.hub.Broadcast(name, EventUpdateUsers, room.Users)
	return nil
}

func (e *Engine) ResetRoom(ctx context.Context, name string) error {
	if name == "" {
		return domain.ErrInvalidInput
	}
	defer e.lockRoom(name)()

	room, err := e.store.Mutate(ctx, name, func(r *domain.Room) error {
		r.ClearVotes()
		r.Messages = []domain.Message{}
		return nil
	})
	if err != nil {
		return err
	}

	e.hub.Broadcast(name, EventResults, ResultsPayload{
		Users:   room.Users,
		Results: domain.Result{Reset: true},
	})
	return nil
}

// GetVote отвечает только запросившему соединению; в канал комнаты
// ничего не уходит. Нерасшифровываемый голос отдаётся как пустой.
func (e *Engine) GetVote(ctx context.Context, c Conn, name, uid string) error {
	if name == "" || uid == "" {
		return domain.ErrInvalidInput
	}

	room, err := e.store.Get(ctx, name)
	if err != nil {
		return err
	}

	plain := ""
	if p := room.FindUser(uid); p != nil && p.Vote != "" {
		if v, err := e.vault.Decrypt(p.Vote); err == nil {
			plain = v
		} else {
			slog.Debug("getVote decrypt failed", "room", name, "uid", uid, "err", err)
		}
	}
	return c.Send(EventReceiveVote, plain)
}

var errStaleConn = errors.New("stale connection")

// Disconnect — best-effort: участник помечается offline, в чат уходит
// системное «покинул». Соединение без привязки ничего не меняет.
func (e *Engine) Disconnect(ctx context.Context, c Conn) error {
	sess, ok := e.presence.Drop(c.ID())
	if !ok {
		return nil
	}
	e.hub.Unsubscribe(sess.Room, c)
	defer e.lockRoom(sess.Room)()

	room, err := e.store.Mutate(ctx, sess.Room, func(r *domain.Room) error {
		p := r.FindUser(sess.UID)
		if p == nil {
			return domain.ErrNotInRoom
		}
		// реконнект под новым id уже занял место — позднее закрытие
		// старого соединения не гасит участника
		if p.ConnectionID != c.ID() {
			return errStaleConn
		}
		p.Online = false
		p.ConnectionID = ""
		r.AppendMessage(domain.NewMessage(*p, fmt.Sprintf("%s ha abandonado la sala", p.DisplayName)))
		return nil
	})
	switch {
	case errors.Is(err, errStaleConn),
		errors.Is(err, domain.ErrNotInRoom),
		errors.Is(err, domain.ErrRoomNotFound):
		return nil
	case err != nil:
		return err
	}

	e.hub.Broadcast(sess.Room, EventUpdateMessages, room.Messages)
	e.hub.Broadcast(sess.Room, EventUpdateUsers, room.Users)

	slog.Info("user disconnected", "room", sess.Room, "uid", sess.UID)
	return nil
}
