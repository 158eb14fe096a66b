package event

import (
	"context"
	"sync"

	"github.com/schoolerp/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus is a synchronous in-process publisher. Handlers run on
// the publishing goroutine; a failing or panicking handler never propagates
// back into the ledger write path.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	logger   *zap.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]shared.EventHandler),
		logger:   logger,
	}
}

// Publish dispatches the event to all handlers subscribed to its type
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.DomainEvent) error {
	b.mu.RLock()
	handlers := append([]shared.EventHandler(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := b.dispatchToHandler(ctx, handler, event); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Subscribe registers a handler for its declared event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	for _, eventType := range eventTypes {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
	}
	b.mu.Unlock()

	b.logger.Debug("handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// dispatchToHandler safely dispatches an event to a handler
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	return handler.Handle(ctx, event)
}

// Ensure InMemoryEventBus implements EventPublisher
var _ shared.EventPublisher = (*InMemoryEventBus)(nil)
