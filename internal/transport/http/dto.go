package http

import (
	"time"

	"github.com/cwrk-planet/poker-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// Участник без поля vote: живой документ держит шифртексты (или открытые
// голоса после reveal), REST их не отдаёт.
type ParticipantItem struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Online      bool   `json:"online"`
	Role        string `json:"role"`
}

type RoomItem struct {
	Name         string `json:"name"`
	Topic        string `json:"topic"`
	Participants int    `json:"participants"`
	Rounds       int    `json:"rounds"`
}

type RoomsListResponse struct {
	Items      []RoomItem `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type RoomDetailResponse struct {
	Name   string            `json:"name"`
	Topic  string            `json:"topic"`
	Users  []ParticipantItem `json:"users"`
	Rounds int               `json:"rounds"`
}

type RoundItem struct {
	ID        string        `json:"id,omitempty"`
	Topic     string        `json:"topic"`
	Results   domain.Result `json:"results"`
	Users     []RoundVote   `json:"users"`
	Timestamp time.Time     `json:"timestamp"`
}

// RoundVote — голос в архиве раунда, уже открытый.
type RoundVote struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Vote        string `json:"vote"`
}

type RoundsResponse struct {
	Items []RoundItem `json:"items"`
}
