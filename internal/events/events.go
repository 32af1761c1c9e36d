// Package events is an in-process pub/sub used to fan out calendar changes.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// TypeSlotFreed carries a FreedInterval.
	TypeSlotFreed = "slot_freed"
)

// Reasons a calendar interval becomes free.
const (
	ReasonCancelled   = "cancelled"
	ReasonRescheduled = "rescheduled"
	ReasonOverride    = "override"
	ReasonManual      = "manual"
)

// FreedInterval is a stretch of a date that just stopped being occupied.
type FreedInterval struct {
	Date   time.Time `json:"date"`
	Start  string    `json:"start"`
	End    string    `json:"end"`
	Reason string    `json:"reason"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   any
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handlers run synchronously
// in registration order; a failing handler is logged and does not stop the rest.
func (b *EventBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().Err(err).Str("type", event.Type).Msg("event handler failed")
		}
	}
}

// PublishFreed is shorthand for publishing a TypeSlotFreed event.
func (b *EventBus) PublishFreed(ctx context.Context, freed FreedInterval) {
	b.Publish(ctx, Event{Type: TypeSlotFreed, Payload: freed})
}
