package shared

import "context"

// LedgerListener is notified after a transaction that changed posted ledger
// data has committed.
type LedgerListener interface {
	LedgerChanged(ctx context.Context, companyID int64)
}

// LedgerListeners fans a notification out to every listener.
type LedgerListeners []LedgerListener

// LedgerChanged notifies each non-nil listener.
func (ls LedgerListeners) LedgerChanged(ctx context.Context, companyID int64) {
	for _, l := range ls {
		if l != nil {
			l.LedgerChanged(ctx, companyID)
		}
	}
}
