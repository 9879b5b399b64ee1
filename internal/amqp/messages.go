package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"groupspend/internal/events"
)

// MessageTypeExpenseCreated is set as the AMQP type of published events.
const MessageTypeExpenseCreated = "expense.created"

// ExpenseCreatedMessage is the envelope exchanged between instances.
// Origin lets a consumer skip the events it published itself.
type ExpenseCreatedMessage struct {
	Origin      string                `json:"origin"`
	PublishedAt time.Time             `json:"published_at"`
	Event       events.ExpenseCreated `json:"event"`
}

func NewExpenseCreatedMessage(origin string, evt events.ExpenseCreated) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		Origin:      origin,
		PublishedAt: time.Now().UTC(),
		Event:       evt,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON decodes a message and rejects envelopes
// without an origin or expense id.
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Origin == "" || msg.Event.ExpenseID == 0 {
		return nil, fmt.Errorf("incomplete expense.created message")
	}
	return &msg, nil
}
