// Package notify fans workflow events out to live dashboards and an optional
// outbound webhook.
package notify

import (
	"context"
	"time"
)

// Event types published by the services
const (
	EventRequestCreated     = "purchase_request.created"
	EventStageApproved      = "purchase_request.stage_approved"
	EventRequestDecided     = "purchase_request.decided"
	EventRequestDeleted     = "purchase_request.deleted"
	EventOrderCreated       = "purchase_order.created"
	EventOrderStatusChanged = "purchase_order.status_changed"
	EventOrderDeleted       = "purchase_order.deleted"
	EventStockReceived      = "stock.received"
	EventStockUpdated       = "stock.updated"
	EventApprovalReminder   = "approval.reminder"
)

// Event is the payload sent to every subscriber.
type Event struct {
	Type       string      `json:"type"`
	EntityID   string      `json:"entity_id"`
	Data       interface{} `json:"data,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, entityID string, data interface{}) Event {
	return Event{Type: eventType, EntityID: entityID, Data: data, OccurredAt: time.Now().UTC()}
}

// Publisher delivers events. Implementations must not block the caller on
// slow subscribers and never return delivery failures.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Multi publishes to each publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, evt)
		}
	}
}
