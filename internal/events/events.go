// Package events carries cache invalidation notices between clients that
// share one remote account.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind names the mutation that produced an event.
type Kind string

const (
	KindReceiptCreated Kind = "receipt.created"
	KindReceiptUpdated Kind = "receipt.updated"
	KindReceiptDeleted Kind = "receipt.deleted"
	KindItemsChanged   Kind = "receipt.items_changed"
)

// Event is a lightweight notice: consumers refetch instead of trusting a body.
type Event struct {
	Kind      Kind      `json:"kind"`
	ReceiptID uuid.UUID `json:"receipt_id"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(kind Kind, receiptID uuid.UUID, origin string) Event {
	return Event{Kind: kind, ReceiptID: receiptID, Origin: origin, Timestamp: time.Now().UTC()}
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event.
func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Publisher fans out committed mutations.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
