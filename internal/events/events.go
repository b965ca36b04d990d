package events

import (
	"encoding/json"
	"sync"
	"time"

	"travelbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventProviderRegistered = "provider_registered"
	EventProviderDecided    = "provider_decided"
	EventEmailVerified      = "email_verified"
	EventBookingRequested   = "booking_requested"
)

// ProviderEventPayload is published on registration and on every approval decision.
type ProviderEventPayload struct {
	ProviderID     string                `json:"provider_id"`
	Email          string                `json:"email"`
	FullName       string                `json:"full_name,omitempty"`
	ApprovalStatus models.ApprovalStatus `json:"approval_status"`
	Action         string                `json:"action,omitempty"`
	Reason         string                `json:"reason,omitempty"`
	DecidedBy      string                `json:"decided_by,omitempty"`
	DecisionID     string                `json:"decision_id,omitempty"`
	At             time.Time             `json:"at"`
}

type IdentityEventPayload struct {
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	At         time.Time `json:"at"`
}

// BookingRequestedPayload is published after the payment collaborator accepted a request.
type BookingRequestedPayload struct {
	Request   models.BookingRequest `json:"request"`
	Reference string                `json:"reference"`
	Status    string                `json:"status"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. logger may be nil.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the handlers of the event type in subscription order. A failing
// handler is logged and does not stop the others.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("Event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
