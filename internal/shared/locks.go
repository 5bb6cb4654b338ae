package shared

import (
	"context"
	"fmt"
)

// Locker serialises a critical section across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// NoopLocker runs fn directly. Row locks inside the transaction remain the
// authoritative guard; the distributed lock only narrows contention.
type NoopLocker struct{}

// WithLock runs fn without locking.
func (NoopLocker) WithLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// OrderLockKey builds the key guarding settlement against one order.
func OrderLockKey(kind string, companyID, orderID int64) string {
	return fmt.Sprintf("settlement:order:%s:%d:%d", kind, companyID, orderID)
}

// AutoMatchLockKey builds the key guarding an auto-match run for a bank account.
func AutoMatchLockKey(companyID, bankAccountID int64) string {
	return fmt.Sprintf("bank:automatch:%d:%d", companyID, bankAccountID)
}

// JobLockKey builds the key guarding a singleton background job.
func JobLockKey(name string, companyID int64) string {
	return fmt.Sprintf("jobs:%s:%d:lock", name, companyID)
}
