package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/poker-service/internal/domain"
	"github.com/cwrk-planet/poker-service/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Engine interface {
	CreateRoom(ctx context.Context, c service.Conn, room string, user domain.Participant) error
	JoinRoom(ctx context.Context, c service.Conn, room string, user domain.Participant) error
	NewMessage(ctx context.Context, room string, msg domain.Message) error
	Vote(ctx context.Context, room, uid, vote string) error
	RevealVotes(ctx context.Context, room string) error
	ChangeTopic(ctx context.Context, room, topic string) error
	ResetRoom(ctx context.Context, room string) error
	GetVote(ctx context.Context, c service.Conn, room, uid string) error
	Disconnect(ctx context.Context, c service.Conn) error
}

type Server struct {
	upgrader websocket.Upgrader
	engine   Engine

	pingEvery time.Duration
}

func NewServer(engine Engine, allowedOrigins []string) *Server {
	return &Server{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pingEvery: 15 * time.Second,
	}
}

// Пустой список origins — wildcard (дев-режим).
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// WS endpoint: GET /ws. Соединение не привязано к комнате на момент
// апгрейда — привязку делает первый createRoom/joinRoom.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newConn(wsc)
	slog.Debug("client connected", "conn", c.id)

	// закрытие соединения не прерывает начатую мутацию: она дописывается
	// и рассылается, а затем отдельной операцией идёт disconnect
	ctx := context.WithoutCancel(r.Context())

	go s.writeLoop(c)
	s.readLoop(ctx, c)

	if err := s.engine.Disconnect(ctx, c); err != nil {
		slog.Warn("disconnect sweep failed", "conn", c.id, "err", err)
	}
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "conn", c.id, "err", err)
	}
	slog.Debug("client disconnected", "conn", c.id)
}

func (s *Server) readLoop(ctx context.Context, c *conn) {
	defer func() { _ = c.Close() }()

	c.ws.SetReadLimit(1 << 20)
	c.ws.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if err := s.dispatch(ctx, c, msg); err != nil {
			slog.Warn("event failed", "conn", c.id, "type", msg.Type, "err", err)
			_ = c.Send(TypeError, ErrorPayload{Message: errorMessage(err)})
		}
	}
}

func (s *Server) dispatch(ctx context.Context, c *conn, msg Message) error {
	switch msg.Type {
	case TypeCreateRoom:
		var p RoomUserPayload
		if err := decode(msg.Payload, &p); err != nil {
			return domain.ErrInvalidInput
		}
		return s.engine.CreateRoom(ctx, c, p.Room, p.User)

	case TypeJoinRoom:
		var p RoomUserPayload
		if err := decode(msg.Payload, &p); err != nil {
			return domain.ErrInvalidInput
		}
		return s.engine.JoinRoom(ctx, c, p.Room, p.User)

	case TypeNewMessage:
		var p ChatPayload
		if err := decode(msg.Payload, &p); err != nil {
			return domain.ErrInvalidInput
		}
		return s.engine.NewMessage(ctx, p.Room, p.Message)

	case TypeVote:
		var p VotePayload
		if err := decode(msg.Payload, &p); err != nil {
			return domain.ErrInvalidInput
		}
		return s.engine.Vote(ctx, p.Room, p.UserID, p.Vote)

	case TypeRevealVotes:
		var p RoomPayload
		if err := decode(msg.Payload, &p); err != nil {
			return domain.ErrInvalidInput
		}
		return s.engine.RevealVotes(ctx, p.Room)

	case TypeChangeTopic:
		var p TopicPayload
		if err := decode(msg.Payload, &p); err != nil {
			return domain.ErrInvalidInput
		}
		return s.engine.ChangeTopic(ctx, p.Room, p.NewTopic)

	case TypeResetRoom:
		var p RoomPayload
		if err := decode(msg.Payload, &p); err != nil {
			return domain.ErrInvalidInput
		}
		return s.engine.ResetRoom(ctx, p.Room)

	case TypeGetVote:
		var p GetVotePayload
		if err := decode(msg.Payload, &p); err != nil {
			return domain.ErrInvalidInput
		}
		return s.engine.GetVote(ctx, c, p.Room, p.UserID)

	default:
		// ignore
		return nil
	}
}

func (s *Server) writeLoop(c *conn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-c.closed:
			return
		}
	}
}

// Ошибки наружу уходят только инициатору, текстами контракта клиента.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomExists):
		return "La sala ya existe"
	case errors.Is(err, domain.ErrRoomNotFound):
		return "La sala no existe"
	case errors.Is(err, domain.ErrInvalidInput):
		return "Datos incompletos"
	case errors.Is(err, domain.ErrNotInRoom):
		return "El usuario no está en la sala"
	default:
		return "Error interno"
	}
}

// --- helpers ---

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type conn struct {
	id     string
	ws     *websocket.Conn
	sendMu chan struct{}
	closed chan struct{}
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		id:     uuid.New().String(),
		ws:     ws,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

var _ service.Conn = (*conn)(nil)

func (c *conn) ID() string { return c.id }

func (c *conn) Send(event string, payload any) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.ws.WriteJSON(Message{Type: event, Payload: payload})
}

func (c *conn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.ws.Close()
}
