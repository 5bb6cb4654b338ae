package orders

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PostPurchaseOrder receives the goods of a draft PO: IN movements at the
// discounted unit price, one journal debiting inventory (or purchase expense
// for lines without a product) and crediting payable, then Posted.
func (s *Service) PostPurchaseOrder(ctx context.Context, companyID, id int64, in PostInput) (Order, error) {
	if in.ActorID == 0 {
		return Order{}, accshared.ErrPostedByRequired
	}
	set, err := s.mappings.Current(ctx, companyID)
	if err != nil {
		return Order{}, err
	}
	var posted Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.OrderForUpdate(ctx, companyID, KindPurchase, id)
		if err != nil {
			return err
		}
		if order.Status != StatusDraft {
			return fmt.Errorf("%w: %s is %s", ErrNotDraft, order.Reference(), order.Status)
		}
		codes := []string{set.Codes.Inventory, set.Codes.Payable}
		if slices.ContainsFunc(order.Lines, func(l Line) bool { return l.ProductID == nil }) {
			codes = append(codes, set.Codes.PurchaseExpense)
		}
		accts, err := journals.ResolveCodes(ctx, tx, companyID, codes...)
		if err != nil {
			return err
		}

		at := s.now()
		items, err := tx.ItemsForUpdate(ctx, companyID, productIDs(order.Lines))
		if err != nil {
			return err
		}
		for _, line := range order.Lines {
			if line.ProductID == nil {
				continue
			}
			pid := *line.ProductID
			item, ok := items[pid]
			if !ok {
				item = inventory.Item{CompanyID: companyID, ProductID: pid}
			}
			updated, _, err := inventory.PostIn(ctx, tx, item, inventory.Movement{
				ProductID:  pid,
				Quantity:   line.Quantity,
				UnitCost:   line.NetUnitPrice(),
				SourceType: inventory.SourcePO,
				SourceID:   &order.ID,
				Location:   in.Locations[pid],
				Remark:     order.Reference(),
				ActorID:    in.ActorID,
			}, at)
			if err != nil {
				return err
			}
			items[pid] = updated
		}

		posting := Posting{PostedBy: in.ActorID, PostedAt: at}
		if order.Total.IsPositive() {
			lines := make([]journals.LineInput, 0, len(order.Lines)+1)
			for _, line := range order.Lines {
				if !line.Amount.IsPositive() {
					continue
				}
				account := accts[set.Codes.Inventory]
				if line.ProductID == nil {
					account = accts[set.Codes.PurchaseExpense]
				}
				lines = append(lines, journals.LineInput{AccountID: account.ID, Debit: line.Amount, Memo: line.Description})
			}
			lines = append(lines, journals.LineInput{AccountID: accts[set.Codes.Payable].ID, Credit: order.Total, Memo: order.Reference()})
			entry, err := s.journal.Record(ctx, tx, companyID, journals.CreateInput{
				Date:        shared.NewDate(order.Date),
				Description: "Purchase receipt " + order.Reference(),
				SourceType:  journals.SourcePO,
				SourceID:    &order.ID,
				PostedBy:    in.ActorID,
				Lines:       lines,
			})
			if err != nil {
				return err
			}
			posting.JournalID = &entry.ID
		}
		if err := tx.MarkOrderPosted(ctx, companyID, id, posting); err != nil {
			return err
		}
		posted = withPosting(order, posting)
		return nil
	})
	s.observe(KindPurchase, err)
	if err != nil {
		return Order{}, err
	}
	s.changed(ctx, companyID, posted)
	s.record(ctx, "order.post", posted, map[string]any{"journal_id": posted.JournalID})
	return posted, nil
}

// PostSalesOrder ships a draft SO. Stock and cost are checked for every
// product before anything moves; credit orders must fit the customer's limit.
func (s *Service) PostSalesOrder(ctx context.Context, companyID, id, actorID int64) (Order, error) {
	if actorID == 0 {
		return Order{}, accshared.ErrPostedByRequired
	}
	set, err := s.mappings.Current(ctx, companyID)
	if err != nil {
		return Order{}, err
	}
	var posted Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.OrderForUpdate(ctx, companyID, KindSales, id)
		if err != nil {
			return err
		}
		if order.Status != StatusDraft {
			return fmt.Errorf("%w: %s is %s", ErrNotDraft, order.Reference(), order.Status)
		}
		accts, err := journals.ResolveCodes(ctx, tx, companyID,
			set.Codes.Receivable, set.Codes.Revenue, set.Codes.COGS, set.Codes.Inventory)
		if err != nil {
			return err
		}

		need := make(map[int64]decimal.Decimal)
		for _, line := range order.Lines {
			if line.ProductID != nil {
				need[*line.ProductID] = need[*line.ProductID].Add(line.Quantity)
			}
		}
		ids := productIDs(order.Lines)
		items, err := tx.ItemsForUpdate(ctx, companyID, ids)
		if err != nil {
			return err
		}
		for _, pid := range ids {
			item := items[pid]
			if need[pid].GreaterThan(item.Quantity) {
				return fmt.Errorf("%w: product %d has %s, order needs %s", inventory.ErrInsufficientStock, pid, item.Quantity.String(), need[pid].String())
			}
		}
		for _, pid := range ids {
			if !items[pid].AverageCost.IsPositive() {
				return fmt.Errorf("%w: product %d", inventory.ErrMissingCost, pid)
			}
		}

		if order.PaymentMethod == MethodCredit {
			if err := checkCredit(ctx, tx, order); err != nil {
				return err
			}
		}

		at := s.now()
		cost := decimal.Zero
		for _, line := range order.Lines {
			if line.ProductID == nil {
				continue
			}
			pid := *line.ProductID
			updated, t, err := inventory.PostOut(ctx, tx, items[pid], inventory.Movement{
				ProductID:  pid,
				Quantity:   line.Quantity,
				SourceType: inventory.SourceSO,
				SourceID:   &order.ID,
				Remark:     order.Reference(),
				ActorID:    actorID,
			}, at)
			if err != nil {
				return err
			}
			items[pid] = updated
			cost = cost.Add(shared.Money(line.Quantity.Mul(t.UnitCost)))
		}

		posting := Posting{PostedBy: actorID, PostedAt: at}
		date := shared.NewDate(order.Date)
		if order.Total.IsPositive() {
			entry, err := s.journal.Record(ctx, tx, companyID, journals.CreateInput{
				Date:        date,
				Description: "Sales revenue " + order.Reference(),
				SourceType:  journals.SourceSO,
				SourceID:    &order.ID,
				PostedBy:    actorID,
				Lines: []journals.LineInput{
					{AccountID: accts[set.Codes.Receivable].ID, Debit: order.Total, Memo: order.Reference()},
					{AccountID: accts[set.Codes.Revenue].ID, Credit: order.Total, Memo: order.Reference()},
				},
			})
			if err != nil {
				return err
			}
			posting.JournalID = &entry.ID
		}
		if cost.IsPositive() {
			entry, err := s.journal.Record(ctx, tx, companyID, journals.CreateInput{
				Date:        date,
				Description: "Cost of goods sold " + order.Reference(),
				SourceType:  journals.SourceSO,
				SourceID:    &order.ID,
				PostedBy:    actorID,
				Lines: []journals.LineInput{
					{AccountID: accts[set.Codes.COGS].ID, Debit: cost, Memo: order.Reference()},
					{AccountID: accts[set.Codes.Inventory].ID, Credit: cost, Memo: order.Reference()},
				},
			})
			if err != nil {
				return err
			}
			posting.CostJournalID = &entry.ID
		}
		if err := tx.MarkOrderPosted(ctx, companyID, id, posting); err != nil {
			return err
		}
		posted = withPosting(order, posting)
		return nil
	})
	s.observe(KindSales, err)
	if err != nil {
		return Order{}, err
	}
	s.changed(ctx, companyID, posted)
	s.record(ctx, "order.post", posted, map[string]any{"journal_id": posted.JournalID, "cost_journal_id": posted.CostJournalID})
	return posted, nil
}

// checkCredit rejects credit sales beyond the customer's limit. A limit of
// zero means no credit at all.
func checkCredit(ctx context.Context, tx TxRepository, order Order) error {
	customer, err := tx.PartnerForUpdate(ctx, order.CompanyID, partners.KindCustomer, order.CounterpartyID)
	if err != nil {
		return err
	}
	if !customer.CreditLimit.IsPositive() {
		return fmt.Errorf("%w: customer %d has no credit allowed", ErrCreditLimitExceeded, customer.ID)
	}
	exposure, err := tx.CreditExposure(ctx, order.CompanyID, customer.ID, order.ID)
	if err != nil {
		return err
	}
	if exposure.Add(order.Total).GreaterThan(customer.CreditLimit) {
		return fmt.Errorf("%w: outstanding %s plus order %s exceeds limit %s", ErrCreditLimitExceeded,
			exposure.StringFixed(2), order.Total.StringFixed(2), customer.CreditLimit.StringFixed(2))
	}
	return nil
}

// MarkPaid moves a posted purchase order to Paid inside the caller's transaction.
func MarkPaid(ctx context.Context, tx StatusTx, companyID, id int64, at time.Time) error {
	return advance(ctx, tx, companyID, KindPurchase, id, StatusPaid, at)
}

// MarkCollected moves a posted sales order to Collected inside the caller's transaction.
func MarkCollected(ctx context.Context, tx StatusTx, companyID, id int64, at time.Time) error {
	return advance(ctx, tx, companyID, KindSales, id, StatusCollected, at)
}

func advance(ctx context.Context, tx StatusTx, companyID int64, kind Kind, id int64, to Status, at time.Time) error {
	order, err := tx.OrderForUpdate(ctx, companyID, kind, id)
	if err != nil {
		return err
	}
	if order.Status != StatusPosted {
		return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, order.Reference(), order.Status, to)
	}
	return tx.SetOrderStatus(ctx, companyID, id, to, at)
}

func productIDs(lines []Line) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.ProductID != nil {
			ids = append(ids, *line.ProductID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func withPosting(o Order, p Posting) Order {
	o.Status = StatusPosted
	o.PostedBy = p.PostedBy
	at := p.PostedAt
	o.PostedAt = &at
	o.JournalID = p.JournalID
	o.CostJournalID = p.CostJournalID
	o.UpdatedAt = at
	return o
}

func (s *Service) observe(kind Kind, err error) {
	if s.metrics != nil {
		s.metrics.ObservePosting(string(kind), err)
	}
	if err != nil {
		s.logger.Info("order posting rejected", slog.String("kind", string(kind)), slog.String("code", shared.CodeOf(err)), slog.Any("error", err))
	}
}

func (s *Service) changed(ctx context.Context, companyID int64, o Order) {
	if s.listener != nil && (o.JournalID != nil || o.CostJournalID != nil) {
		s.listener.LedgerChanged(ctx, companyID)
	}
}
