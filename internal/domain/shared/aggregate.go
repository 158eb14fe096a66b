package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is implemented by every identifiable domain object
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries identity and lifecycle timestamps. Embed it in domain
// entities; identity is assigned once at construction and never reused.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity returns a BaseEntity with a fresh identity
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// GetID returns the entity identity
func (e *BaseEntity) GetID() uuid.UUID { return e.ID }

// GetCreatedAt returns when the entity was created
func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }

// GetUpdatedAt returns when the entity was last modified
func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// Touch records a modification time
func (e *BaseEntity) Touch() { e.UpdatedAt = time.Now() }

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	domainEvents []DomainEvent `gorm:"-"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion bumps the optimistic-lock version. Every version bump
// is a mutation, so the modification timestamp moves with it.
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
	a.Touch()
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

// SchoolAggregateRoot extends BaseAggregateRoot with multi-tenant support.
// Every school-scoped aggregate carries its school ID so no read or write
// can cross tenant boundaries.
type SchoolAggregateRoot struct {
	BaseAggregateRoot
	SchoolID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;index"` // Staff member who created this record
}

// NewSchoolAggregateRoot creates a new school-scoped aggregate root
func NewSchoolAggregateRoot(schoolID uuid.UUID) SchoolAggregateRoot {
	return SchoolAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		SchoolID:          schoolID,
	}
}

// NewSchoolAggregateRootWithCreator creates a new school-scoped aggregate root with creator info
func NewSchoolAggregateRootWithCreator(schoolID, createdBy uuid.UUID) SchoolAggregateRoot {
	return SchoolAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		SchoolID:          schoolID,
		CreatedBy:         &createdBy,
	}
}

// SetCreatedBy sets the creator user ID
func (s *SchoolAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	s.CreatedBy = &userID
}

// GetCreatedBy returns the creator user ID
func (s *SchoolAggregateRoot) GetCreatedBy() *uuid.UUID {
	return s.CreatedBy
}
