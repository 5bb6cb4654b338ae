// Package lock provides redis backed distributed locks.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrEmptyKey is returned when an empty lock key is provided.
var ErrEmptyKey = errors.New("lock: key cannot be empty")

// Options configures lock acquisition.
type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultOptions suits request-scoped critical sections.
func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      3,
		RetryDelay: 200 * time.Millisecond,
	}
}

// Manager hands out RedLock mutexes over a redis client.
type Manager struct {
	rs     *redsync.Redsync
	opts   Options
	logger *slog.Logger
}

// NewManager builds a Manager. Zero option fields fall back to defaults.
func NewManager(client redis.UniversalClient, opts Options, logger *slog.Logger) *Manager {
	def := DefaultOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = def.Expiry
	}
	if opts.Tries <= 0 {
		opts.Tries = def.Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{rs: redsync.New(goredis.NewPool(client)), opts: opts, logger: logger}
}

// WithLock runs fn while holding the lock for key. Failing to acquire the
// lock maps to shared.ErrConflict so callers can surface it as retryable.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if key == "" {
		return ErrEmptyKey
	}
	mutex := m.rs.NewMutex(key,
		redsync.WithExpiry(m.opts.Expiry),
		redsync.WithTries(m.opts.Tries),
		redsync.WithRetryDelay(m.opts.RetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("%w: lock %s busy: %v", shared.ErrConflict, key, err)
	}
	defer func() {
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil || !ok {
			m.logger.Warn("lock release failed", slog.String("key", key), slog.Any("error", err))
		}
	}()
	return fn(ctx)
}

var _ shared.Locker = (*Manager)(nil)
