package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/config"
)

// RedisIdempotencyStore implements IdempotencyStore using Redis.
// Suitable for distributed deployments where multiple instances need to
// share webhook processing state.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore creates a new Redis-based idempotency store
func NewRedisIdempotencyStore(cfg *config.RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "webhook:idempotency:",
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "webhook:idempotency:"
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed marks an event as processed with a TTL.
// Returns true if the event was newly marked, false if it was already
// processed. Uses SETNX so concurrent deliveries race atomically.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return result, nil
}

// IsProcessed checks if an event has already been processed
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}
	return exists > 0, nil
}

// Release removes a processed marker so the event can be retried.
// Called when handling failed after the key was claimed.
func (s *RedisIdempotencyStore) Release(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("failed to release event marker: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
