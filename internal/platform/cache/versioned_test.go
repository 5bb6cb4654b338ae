package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "test", time.Minute), mr
}

type payload struct {
	Total string `json:"total"`
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Total: "10.00"}, nil
	}

	key, err := c.BuildKey(ctx, 1, "bs", "2024-01-31")
	require.NoError(t, err)
	var out payload
	hit, err := c.FetchJSON(ctx, key, &out, loader)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, "10.00", out.Total)

	hit, err = c.FetchJSON(ctx, key, &out, loader)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx, 1))
	bumped, err := c.BuildKey(ctx, 1, "bs", "2024-01-31")
	require.NoError(t, err)
	require.NotEqual(t, key, bumped)

	hit, err = c.FetchJSON(ctx, bumped, &out, loader)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, calls)
}

func TestBumpIsTenantScoped(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.Version(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx, 1))
	after, err := c.Version(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestFetchJSONWithoutClientCallsLoader(t *testing.T) {
	c := NewVersioned(nil, "", time.Minute)
	var out payload
	hit, err := c.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return payload{Total: "1"}, nil
	})
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, "1", out.Total)

	_, err = c.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	require.EqualError(t, err, "boom")
}

func TestNilCacheBuildsKeysAndLoads(t *testing.T) {
	var c *Versioned
	ctx := context.Background()
	key, err := c.BuildKey(ctx, 4, "tb", "2024-01-01")
	require.NoError(t, err)
	require.Equal(t, "ledger:4:tb:2024-01-01:v0", key)
	require.NoError(t, c.Bump(ctx, 4))

	var out payload
	hit, err := c.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return payload{Total: "2"}, nil
	})
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, "2", out.Total)
}
