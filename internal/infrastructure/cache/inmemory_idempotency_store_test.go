package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("first mark wins, second is a replay", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		fresh, err := store.MarkProcessed(ctx, "payment:RAZORPAY:pay_1", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = store.MarkProcessed(ctx, "payment:RAZORPAY:pay_1", time.Hour)
		require.NoError(t, err)
		assert.False(t, fresh)

		processed, err := store.IsProcessed(ctx, "payment:RAZORPAY:pay_1")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("released key can be claimed again", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		_, err := store.MarkProcessed(ctx, "payment:RAZORPAY:pay_2", time.Hour)
		require.NoError(t, err)

		require.NoError(t, store.Release(ctx, "payment:RAZORPAY:pay_2"))

		fresh, err := store.MarkProcessed(ctx, "payment:RAZORPAY:pay_2", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("expired entry is treated as unprocessed", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		_, err := store.MarkProcessed(ctx, "payment:RAZORPAY:pay_3", time.Millisecond)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		processed, err := store.IsProcessed(ctx, "payment:RAZORPAY:pay_3")
		require.NoError(t, err)
		assert.False(t, processed)

		fresh, err := store.MarkProcessed(ctx, "payment:RAZORPAY:pay_3", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("exactly one concurrent claimer wins", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		const claimers = 20
		var wins int64
		var mu sync.Mutex
		var wg sync.WaitGroup

		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fresh, err := store.MarkProcessed(ctx, "payment:RAZORPAY:pay_4", time.Hour)
				require.NoError(t, err)
				if fresh {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), wins)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())
	})
}
