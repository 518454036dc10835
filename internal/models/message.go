package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single entry of the conversation transcript. ID is assigned once at creation and never
// reused; the position of a message in the transcript is its insertion order.
type Message struct {
	ID        string
	Text      string
	IsUser    bool
	Timestamp time.Time
}

// NewUserMessage creates a user message carrying text.
func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Text:      text,
		IsUser:    true,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates the empty assistant placeholder that a stream session fills in.
func NewAssistantMessage() Message {
	return Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
	}
}

// Role returns "user" or "assistant", used by the views to pick a template or a colour.
func (m Message) Role() string {
	if m.IsUser {
		return "user"
	}
	return "assistant"
}
