package domain

import (
	"time"

	"github.com/google/uuid"
)

// Result — агрегат одного reveal. Avg уже прижат к шкале {1,2,3,5,8}.
type Result struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Ratio float64 `json:"ratio"`
	Reset bool    `json:"reset,omitempty"`
}

// Round — неизменяемая запись истории: создаётся только reveal-ом,
// Users хранит голоса уже открытым текстом.
type Round struct {
	ID        string        `json:"id,omitempty"`
	Topic     string        `json:"topic"`
	Results   Result        `json:"results"`
	Users     []Participant `json:"users"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewRound(topic string, results Result, users []Participant) Round {
	return Round{
		ID:        uuid.New().String(),
		Topic:     topic,
		Results:   results,
		Users:     users,
		Timestamp: time.Now(),
	}
}
