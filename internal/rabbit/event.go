// Package rabbit carries book lifecycle events between the catalog and
// circulation services over a RabbitMQ topic exchange.
package rabbit

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Exchange is the durable topic exchange all book events flow through.
const Exchange = "book_events"

// BindingKey matches every book event routing key.
const BindingKey = "book.*"

// Actions a catalog write can announce.
const (
	ActionCreated = "created"
	ActionDeleted = "deleted"
)

// BookEvent is the wire representation of a catalog mutation. It exists
// only on the broker; nothing persists it.
type BookEvent struct {
	BookID uuid.UUID `json:"book_id"`
	Action string    `json:"action"`
}

// RoutingKey returns the topic routing key for the event, e.g. "book.created".
func (e BookEvent) RoutingKey() string {
	return "book." + e.Action
}

func (e BookEvent) encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode book event: %w", err)
	}
	return body, nil
}

func decodeBookEvent(body []byte) (BookEvent, error) {
	var event BookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return BookEvent{}, fmt.Errorf("decode book event: %w", err)
	}
	if event.BookID == uuid.Nil {
		return BookEvent{}, fmt.Errorf("decode book event: missing book_id")
	}
	return event, nil
}
