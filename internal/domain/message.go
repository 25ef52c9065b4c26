package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message — чат-сообщение либо системная запись. User — снапшот участника
// на момент отправки, не живая ссылка.
type Message struct {
	ID        string      `json:"id,omitempty"`
	User      Participant `json:"user"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewMessage(user Participant, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		User:      user,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func SystemMessage(content string) Message {
	return NewMessage(Participant{DisplayName: "Sistema"}, content)
}
