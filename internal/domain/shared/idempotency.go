package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed event IDs to prevent duplicate processing.
// Payment gateways redeliver webhooks without waiting for acknowledgment, so
// every delivery is checked against this store before it can touch the ledger.
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an event has already been processed
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Release removes a processed mark so a failed handler can be retried
	Release(ctx context.Context, eventID string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for processed event IDs.
	// After this duration, the same event ID can be processed again.
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
