package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Versioned is a JSON cache whose keys embed a per-tenant version counter.
// Bumping the counter invalidates every key of that tenant at once; stale
// entries simply expire.
type Versioned struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewVersioned instantiates the cache helper. A nil client disables caching.
func NewVersioned(client *redis.Client, prefix string, ttl time.Duration) *Versioned {
	if prefix == "" {
		prefix = "ledger"
	}
	return &Versioned{client: client, prefix: prefix, ttl: ttl}
}

func (c *Versioned) versionKey(companyID int64) string {
	return fmt.Sprintf("%s:version:%d", c.prefix, companyID)
}

// Version returns the tenant's current version, initialising when missing.
func (c *Versioned) Version(ctx context.Context, companyID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := c.versionKey(companyID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the tenant's current version. A nil
// or disabled cache still yields a key, usable for coalescing builds.
func (c *Versioned) BuildKey(ctx context.Context, companyID int64, parts ...string) (string, error) {
	prefix := "ledger"
	if c != nil {
		prefix = c.prefix
	}
	ver, err := c.Version(ctx, companyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s:v%d", prefix, companyID, strings.Join(parts, ":"), ver), nil
}

// FetchJSON loads a cached value or populates it using the loader. hit
// reports whether the value came from redis.
func (c *Versioned) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (hit bool, err error) {
	if loader == nil {
		return false, errors.New("cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return true, json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return false, err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return false, err
		}
	}
	return false, json.Unmarshal(raw, dest)
}

// Bump invalidates every cached value of the tenant.
func (c *Versioned) Bump(ctx context.Context, companyID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey(companyID)).Err()
}
