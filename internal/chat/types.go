package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Chat is one conversation owned by a user.
type Chat struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	Title      string    `json:"title"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Message is one turn in a chat. Content is stored as raw JSON so the
// store stays agnostic to the message part schema.
type Message struct {
	ID             uuid.UUID       `json:"id"`
	ChatID         uuid.UUID       `json:"chatId"`
	Role           string          `json:"role"`
	Content        json.RawMessage `json:"content"`
	SequenceNumber int32           `json:"sequenceNumber"`
	CreatedAt      time.Time       `json:"createdAt"`
}
