package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that occurred in the domain
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	SchoolID() uuid.UUID
}

// BaseDomainEvent provides common fields for all domain events
type BaseDomainEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggID         uuid.UUID `json:"aggregate_id"`
	AggType       string    `json:"aggregate_type"`
	SchoolIDValue uuid.UUID `json:"school_id"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the aggregate that produced this event
func (e *BaseDomainEvent) AggregateID() uuid.UUID {
	return e.AggID
}

// AggregateType returns the type of the aggregate
func (e *BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// SchoolID returns the school the event belongs to
func (e *BaseDomainEvent) SchoolID() uuid.UUID {
	return e.SchoolIDValue
}

// EventPublisher publishes domain events after aggregates are persisted
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// EventHandler consumes domain events published on the bus
type EventHandler interface {
	// Handle processes one event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types the handler subscribes to
	EventTypes() []string
}

// NewBaseDomainEvent creates a new base domain event
func NewBaseDomainEvent(eventType, aggType string, aggID, schoolID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now(),
		AggID:         aggID,
		AggType:       aggType,
		SchoolIDValue: schoolID,
	}
}
