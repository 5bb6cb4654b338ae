package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/settlement"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type inventoryRepo struct{ s *Store }

// Inventory returns the stock repository.
func (s *Store) Inventory() inventory.RepositoryPort { return inventoryRepo{s} }

func cloneItem(item inventory.Item) inventory.Item {
	item.Locations = slices.Clone(item.Locations)
	return item
}

func (r inventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.s.write(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r inventoryRepo) GetItem(_ context.Context, companyID, productID int64) (inventory.Item, error) {
	var (
		item inventory.Item
		ok   bool
	)
	r.s.read(func(st *state) { item, ok = st.items[itemKey{companyID, productID}] })
	if !ok {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return cloneItem(item), nil
}

func (r inventoryRepo) ListItems(_ context.Context, companyID int64) ([]inventory.Item, error) {
	var out []inventory.Item
	r.s.read(func(st *state) {
		for k, item := range st.items {
			if k.companyID == companyID {
				out = append(out, cloneItem(item))
			}
		}
	})
	slices.SortFunc(out, func(a, b inventory.Item) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return out, nil
}

func (r inventoryRepo) ListTransactions(_ context.Context, companyID int64, f inventory.TransactionFilter) ([]inventory.Transaction, error) {
	var out []inventory.Transaction
	r.s.read(func(st *state) {
		for _, t := range st.movements {
			if t.CompanyID != companyID || (f.ProductID != nil && t.ProductID != *f.ProductID) {
				continue
			}
			out = append(out, t)
		}
	})
	slices.SortFunc(out, func(a, b inventory.Transaction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(out, f.Window), nil
}

func (t *tx) ItemsForUpdate(_ context.Context, companyID int64, productIDs []int64) (map[int64]inventory.Item, error) {
	out := make(map[int64]inventory.Item, len(productIDs))
	for _, id := range productIDs {
		if item, ok := t.st.items[itemKey{companyID, id}]; ok {
			out[id] = cloneItem(item)
		}
	}
	return out, nil
}

func (t *tx) UpsertItem(_ context.Context, item inventory.Item) error {
	t.st.items[itemKey{item.CompanyID, item.ProductID}] = cloneItem(item)
	return nil
}

func (t *tx) InsertInventoryTransaction(_ context.Context, m inventory.Transaction) (inventory.Transaction, error) {
	m.ID = t.st.id("inventory_transactions")
	t.st.movements = append(t.st.movements, m)
	return m, nil
}

type partnerRepo struct{ s *Store }

// Partners returns the customer and supplier repository.
func (s *Store) Partners() partners.Repository { return partnerRepo{s} }

func (st *state) partner(companyID int64, kind partners.Kind, id int64) (partners.Partner, error) {
	p, ok := st.partners[id]
	if !ok || p.CompanyID != companyID || p.Kind != kind {
		return partners.Partner{}, partners.ErrPartnerNotFound
	}
	return p, nil
}

func (st *state) partnerNameTaken(p partners.Partner) bool {
	for _, other := range st.partners {
		if other.ID != p.ID && other.CompanyID == p.CompanyID && other.Kind == p.Kind && other.Name == p.Name {
			return true
		}
	}
	return false
}

func (r partnerRepo) GetPartner(_ context.Context, companyID int64, kind partners.Kind, id int64) (partners.Partner, error) {
	var (
		p   partners.Partner
		err error
	)
	r.s.read(func(st *state) { p, err = st.partner(companyID, kind, id) })
	return p, err
}

func (r partnerRepo) ListPartners(_ context.Context, companyID int64, kind partners.Kind, w shared.Window) ([]partners.Partner, error) {
	var out []partners.Partner
	r.s.read(func(st *state) {
		for _, p := range st.partners {
			if p.CompanyID == companyID && p.Kind == kind {
				out = append(out, p)
			}
		}
	})
	slices.SortFunc(out, func(a, b partners.Partner) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return page(out, w), nil
}

func (r partnerRepo) InsertPartner(ctx context.Context, p partners.Partner) (partners.Partner, error) {
	err := r.s.write(ctx, func(t *tx) error {
		if t.st.partnerNameTaken(p) {
			return partners.ErrDuplicatePartner
		}
		p.ID = t.st.id("partners")
		p.UpdatedAt = p.CreatedAt
		t.st.partners[p.ID] = p
		return nil
	})
	if err != nil {
		return partners.Partner{}, err
	}
	return p, nil
}

func (r partnerRepo) UpdatePartner(ctx context.Context, p partners.Partner) error {
	return r.s.write(ctx, func(t *tx) error {
		current, err := t.st.partner(p.CompanyID, p.Kind, p.ID)
		if err != nil {
			return err
		}
		if t.st.partnerNameTaken(p) {
			return partners.ErrDuplicatePartner
		}
		p.CreatedAt = current.CreatedAt
		t.st.partners[p.ID] = p
		return nil
	})
}

func (t *tx) PartnerForUpdate(_ context.Context, companyID int64, kind partners.Kind, id int64) (partners.Partner, error) {
	return t.st.partner(companyID, kind, id)
}

type orderRepo struct{ s *Store }

// Orders returns the purchase and sales order repository.
func (s *Store) Orders() orders.Repository { return orderRepo{s} }

func cloneOrder(o orders.Order) orders.Order {
	o.Lines = slices.Clone(o.Lines)
	return o
}

func (st *state) order(companyID int64, kind orders.Kind, id int64) (orders.Order, error) {
	o, ok := st.orders[id]
	if !ok || o.CompanyID != companyID || o.Kind != kind {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (st *state) draft(companyID, id int64) (orders.Order, error) {
	o, ok := st.orders[id]
	if !ok || o.CompanyID != companyID || o.Status != orders.StatusDraft {
		return orders.Order{}, orders.ErrNotDraft
	}
	return cloneOrder(o), nil
}

func (st *state) putOrder(o *orders.Order) {
	o.Lines = slices.Clone(o.Lines)
	for i := range o.Lines {
		if o.Lines[i].ID == 0 {
			o.Lines[i].ID = st.id("order_lines")
		}
		o.Lines[i].OrderID = o.ID
	}
	st.orders[o.ID] = cloneOrder(*o)
}

func (r orderRepo) GetOrder(_ context.Context, companyID int64, kind orders.Kind, id int64) (orders.Order, error) {
	var (
		o   orders.Order
		err error
	)
	r.s.read(func(st *state) { o, err = st.order(companyID, kind, id) })
	return o, err
}

func (r orderRepo) ListOrders(_ context.Context, companyID int64, kind orders.Kind, f orders.Filter) ([]orders.Order, error) {
	var out []orders.Order
	r.s.read(func(st *state) {
		for _, o := range st.orders {
			if o.CompanyID != companyID || o.Kind != kind {
				continue
			}
			if f.Status != "" && o.Status != f.Status {
				continue
			}
			if f.CounterpartyID != 0 && o.CounterpartyID != f.CounterpartyID {
				continue
			}
			o.Lines = nil
			out = append(out, o)
		}
	})
	slices.SortFunc(out, func(a, b orders.Order) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(out, f.Window), nil
}

func (r orderRepo) WithTx(ctx context.Context, fn func(context.Context, orders.TxRepository) error) error {
	return r.s.write(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (t *tx) OrderForUpdate(_ context.Context, companyID int64, kind orders.Kind, id int64) (orders.Order, error) {
	return t.st.order(companyID, kind, id)
}

func (t *tx) SetOrderStatus(_ context.Context, companyID, id int64, status orders.Status, at time.Time) error {
	o, ok := t.st.orders[id]
	if !ok || o.CompanyID != companyID {
		return orders.ErrOrderNotFound
	}
	o.Status, o.UpdatedAt = status, at
	t.st.orders[id] = o
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) (orders.Order, error) {
	o.ID = t.st.id("orders")
	o.UpdatedAt = o.CreatedAt
	t.st.putOrder(&o)
	return o, nil
}

func (t *tx) ReplaceOrder(_ context.Context, o orders.Order) (orders.Order, error) {
	current, err := t.st.draft(o.CompanyID, o.ID)
	if err != nil {
		return orders.Order{}, err
	}
	o.Kind, o.Status, o.CreatedAt = current.Kind, current.Status, current.CreatedAt
	for i := range o.Lines {
		o.Lines[i].ID = 0
	}
	t.st.putOrder(&o)
	return o, nil
}

func (t *tx) DeleteOrder(_ context.Context, companyID, id int64) error {
	if _, err := t.st.draft(companyID, id); err != nil {
		return err
	}
	delete(t.st.orders, id)
	return nil
}

func (t *tx) MarkOrderPosted(_ context.Context, companyID, id int64, p orders.Posting) error {
	o, err := t.st.draft(companyID, id)
	if err != nil {
		return err
	}
	at := p.PostedAt
	o.Status = orders.StatusPosted
	o.PostedBy, o.PostedAt = p.PostedBy, &at
	o.JournalID, o.CostJournalID = p.JournalID, p.CostJournalID
	o.UpdatedAt = at
	t.st.orders[id] = o
	return nil
}

func (t *tx) CreditExposure(_ context.Context, companyID, customerID, excludeID int64) (decimal.Decimal, error) {
	return t.st.creditExposure(companyID, customerID, excludeID), nil
}

func (r orderRepo) CreditExposure(_ context.Context, companyID, customerID, excludeID int64) (decimal.Decimal, error) {
	var exposure decimal.Decimal
	r.s.read(func(st *state) { exposure = st.creditExposure(companyID, customerID, excludeID) })
	return exposure, nil
}

func (r orderRepo) TotalsByStatus(_ context.Context, companyID int64, kind orders.Kind, counterpartyID int64) ([]orders.StatusTotal, error) {
	byStatus := map[orders.Status]*orders.StatusTotal{}
	r.s.read(func(st *state) {
		for _, o := range st.orders {
			if o.CompanyID != companyID || o.Kind != kind || o.CounterpartyID != counterpartyID {
				continue
			}
			row, ok := byStatus[o.Status]
			if !ok {
				row = &orders.StatusTotal{Status: o.Status}
				byStatus[o.Status] = row
			}
			row.Orders++
			row.Total = row.Total.Add(o.Total)
		}
	})
	out := make([]orders.StatusTotal, 0, len(byStatus))
	for _, row := range byStatus {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b orders.StatusTotal) int { return cmp.Compare(a.Status, b.Status) })
	return out, nil
}

func (st *state) creditExposure(companyID, customerID, excludeID int64) decimal.Decimal {
	exposure := decimal.Zero
	for _, o := range st.orders {
		if o.CompanyID != companyID || o.Kind != orders.KindSales || o.Status != orders.StatusPosted ||
			o.PaymentMethod != orders.MethodCredit || o.CounterpartyID != customerID || o.ID == excludeID {
			continue
		}
		exposure = exposure.Add(o.Total.Sub(st.settled(companyID, settlement.KindReceipt, o.ID)))
	}
	return exposure
}

type settlementRepo struct{ s *Store }

// Settlements returns the payment and receipt repository.
func (s *Store) Settlements() settlement.Repository { return settlementRepo{s} }

func (st *state) settled(companyID int64, kind settlement.Kind, orderID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range st.settlements {
		if s.CompanyID == companyID && s.Kind == kind && s.OrderID != nil && *s.OrderID == orderID {
			sum = sum.Add(s.Amount)
		}
	}
	return sum
}

func (r settlementRepo) ListSettlements(_ context.Context, companyID int64, kind settlement.Kind, w shared.Window) ([]settlement.Settlement, error) {
	var out []settlement.Settlement
	r.s.read(func(st *state) {
		for _, s := range st.settlements {
			if s.CompanyID == companyID && s.Kind == kind {
				out = append(out, s)
			}
		}
	})
	slices.SortFunc(out, func(a, b settlement.Settlement) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(out, w), nil
}

func (r settlementRepo) OpenOrders(_ context.Context, companyID int64, kind settlement.Kind) ([]settlement.OpenOrder, error) {
	var out []settlement.OpenOrder
	r.s.read(func(st *state) {
		for _, o := range st.orders {
			if o.CompanyID != companyID || o.Kind != kind.OrderKind() || o.Status != orders.StatusPosted {
				continue
			}
			settled := st.settled(companyID, kind, o.ID)
			if !o.Total.Sub(settled).IsPositive() {
				continue
			}
			out = append(out, settlement.OpenOrder{
				OrderID: o.ID, CounterpartyID: o.CounterpartyID, Date: o.Date,
				Total: o.Total, Settled: settled, Outstanding: settlement.Outstanding(o.Total, settled),
			})
		}
	})
	slices.SortFunc(out, func(a, b settlement.OpenOrder) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.OrderID, b.OrderID)
	})
	return out, nil
}

func (r settlementRepo) WithTx(ctx context.Context, fn func(context.Context, settlement.TxRepository) error) error {
	return r.s.write(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (t *tx) InsertSettlement(_ context.Context, s settlement.Settlement) (settlement.Settlement, error) {
	s.ID = t.st.id("settlements")
	t.st.settlements[s.ID] = s
	return s, nil
}

func (t *tx) AttachSettlementJournal(_ context.Context, companyID, id, journalID int64) error {
	s, ok := t.st.settlements[id]
	if !ok || s.CompanyID != companyID {
		return nil
	}
	s.JournalID = journalID
	t.st.settlements[id] = s
	return nil
}

func (t *tx) SettledAmount(_ context.Context, companyID int64, kind settlement.Kind, orderID int64) (decimal.Decimal, error) {
	return t.st.settled(companyID, kind, orderID), nil
}
