package ws

import "github.com/cwrk-planet/poker-service/internal/domain"

// Типы входящих событий. Имена — контракт клиента.
const (
	TypeCreateRoom  = "createRoom"
	TypeJoinRoom    = "joinRoom"
	TypeNewMessage  = "newMessage"
	TypeVote        = "vote"
	TypeRevealVotes = "revealVotes"
	TypeChangeTopic = "changeTopic"
	TypeResetRoom   = "resetRoom"
	TypeGetVote     = "getVote"

	TypeError = "error"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type RoomUserPayload struct {
	Room string             `json:"room"`
	User domain.Participant `json:"user"`
}

type ChatPayload struct {
	Room    string         `json:"room"`
	Message domain.Message `json:"message"`
}

type VotePayload struct {
	Room   string `json:"room"`
	UserID string `json:"userId"`
	Vote   string `json:"vote"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

type TopicPayload struct {
	Room     string `json:"room"`
	NewTopic string `json:"newTopic"`
}

type GetVotePayload struct {
	Room   string `json:"room"`
	UserID string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
