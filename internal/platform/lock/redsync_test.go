package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewManager(client, Options{Expiry: 2 * time.Second, Tries: 1, RetryDelay: 10 * time.Millisecond}, nil)
}

func TestWithLockRunsAndReleases(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	ran := 0
	for i := 0; i < 2; i++ {
		require.NoError(t, m.WithLock(ctx, "settlement:order:po:1:9", func(context.Context) error {
			ran++
			return nil
		}))
	}
	require.Equal(t, 2, ran)
}

func TestWithLockContendedReturnsConflict(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	err := m.WithLock(ctx, "bank:automatch:1:2", func(ctx context.Context) error {
		return m.WithLock(ctx, "bank:automatch:1:2", func(context.Context) error {
			t.Fatal("nested critical section must not run")
			return nil
		})
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestWithLockPropagatesError(t *testing.T) {
	m := newManager(t)
	boom := errors.New("boom")
	err := m.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, m.WithLock(context.Background(), "", nil), ErrEmptyKey)
}
