package service

import "github.com/cwrk-planet/poker-service/internal/domain"

// Исходящие события движка. Имена — контракт клиента, менять нельзя.
const (
	EventInit           = "init"
	EventUpdateUsers    = "updateUsers"
	EventUpdateMessages = "updateMessages"
	EventResults        = "results"
	EventNewTopic       = "newTopic"
	EventReceiveVote    = "receiveVote"
)

// Conn — одно живое соединение клиента. Send — приватная доставка,
// только этому соединению.
type Conn interface {
	ID() string
	Send(event string, payload any) error
}

// Hub — канал комнаты: подписка соединений и fan-out полного снапшота
// всем подписчикам. Дельт нет, каждое событие несёт коллекцию целиком.
type Hub interface {
	Subscribe(room string, c Conn)
	Unsubscribe(room string, c Conn)
	Broadcast(room, event string, payload any)
}

type InitPayload struct {
	Users    []domain.Participant `json:"users"`
	Messages []domain.Message     `json:"messages"`
	Topic    string               `json:"topic"`
}

type ResultsPayload struct {
	Users   []domain.Participant `json:"users"`
	Results domain.Result        `json:"results"`
}
