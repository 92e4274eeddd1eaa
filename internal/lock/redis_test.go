package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pix-ledger/internal/testutil"
)

func TestRedisLock(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	l := NewRedisLock(client)
	ctx := context.Background()

	t.Run("second acquire fails while held", func(t *testing.T) {
		token, err := l.Acquire(ctx, "sweep", time.Minute)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		other, err := l.Acquire(ctx, "sweep", time.Minute)
		require.NoError(t, err)
		assert.Empty(t, other)

		require.NoError(t, l.Release(ctx, "sweep", token))

		again, err := l.Acquire(ctx, "sweep", time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, again)
		require.NoError(t, l.Release(ctx, "sweep", again))
	})

	t.Run("release with foreign token keeps lock", func(t *testing.T) {
		token, err := l.Acquire(ctx, "foreign", time.Minute)
		require.NoError(t, err)

		err = l.Release(ctx, "foreign", "not-the-token")
		assert.ErrorIs(t, err, ErrNotHeld)

		held, err := client.Exists(ctx, "lock:foreign").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), held)
		require.NoError(t, l.Release(ctx, "foreign", token))
	})

	t.Run("lock expires", func(t *testing.T) {
		token, err := l.Acquire(ctx, "short", 100*time.Millisecond)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		time.Sleep(300 * time.Millisecond)

		next, err := l.Acquire(ctx, "short", time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, next)
		assert.ErrorIs(t, l.Release(ctx, "short", token), ErrNotHeld)
	})
}
