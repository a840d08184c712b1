package fulfillment

import (
	"context"
	"maps"
	"time"

	"github.com/shopspring/decimal"

	"github.com/metalyard/metalyard/internal/inventory"
	"github.com/metalyard/metalyard/internal/invoices"
	"github.com/metalyard/metalyard/internal/quotes"
	"github.com/metalyard/metalyard/internal/shared"
)

type grade struct {
	id         int64
	materialID int64
	label      string
}

// store is an in-memory database shared by the quote, inventory, invoice and fulfillment
// fakes. WithTx restores a snapshot when the callback fails, like a rollback.
type store struct {
	grades    []grade
	items     map[int64]inventory.Item
	quotes    map[int64]quotes.Quote
	lines     map[int64][]quotes.LineItem
	orders    map[int64]SalesOrder
	shipments map[int64]Shipment
	invoices  map[int64]invoices.Invoice
	keys      map[string]bool
	seq       int64
}

func newStore() *store {
	return &store{
		grades: []grade{
			{id: 10, materialID: 1, label: "A36"},
			{id: 11, materialID: 1, label: "A572"},
			{id: 20, materialID: 2, label: "6061"},
		},
		items:     make(map[int64]inventory.Item),
		quotes:    make(map[int64]quotes.Quote),
		lines:     make(map[int64][]quotes.LineItem),
		orders:    make(map[int64]SalesOrder),
		shipments: make(map[int64]Shipment),
		invoices:  make(map[int64]invoices.Invoice),
		keys:      make(map[string]bool),
	}
}

func (s *store) next() int64 {
	s.seq++
	return s.seq
}

func (s *store) transact(fn func() error) error {
	items, qs, lines := maps.Clone(s.items), maps.Clone(s.quotes), maps.Clone(s.lines)
	orders, shipments, invs, keys := maps.Clone(s.orders), maps.Clone(s.shipments), maps.Clone(s.invoices), maps.Clone(s.keys)
	if err := fn(); err != nil {
		s.items, s.quotes, s.lines = items, qs, lines
		s.orders, s.shipments, s.invoices, s.keys = orders, shipments, invs, keys
		return err
	}
	return nil
}

func (s *store) seedItem(tenant string, materialID, gradeID int64, dims shared.Dimensions, onHand, allocated float64) inventory.Item {
	item := inventory.Item{
		ID:           s.next(),
		UserID:       tenant,
		MaterialID:   materialID,
		GradeID:      gradeID,
		Dimensions:   dims,
		OnHand:       onHand,
		Allocated:    allocated,
		DefaultPrice: decimal.NewFromInt(10),
	}
	s.items[item.ID] = item
	return item
}

// fulfillment RepositoryPort + TxRepository

func (s *store) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return s.transact(func() error { return fn(ctx, s) })
}

func (s *store) ListSalesOrders(ctx context.Context, tenant string) ([]SalesOrder, error) {
	out := make([]SalesOrder, 0)
	for _, so := range s.orders {
		if so.UserID == tenant {
			out = append(out, so)
		}
	}
	return out, nil
}

func (s *store) GetSalesOrder(ctx context.Context, tenant string, id int64) (SalesOrder, error) {
	so, ok := s.orders[id]
	if !ok || so.UserID != tenant {
		return SalesOrder{}, ErrSalesOrderNotFound
	}
	return so, nil
}

func (s *store) ListShipments(ctx context.Context, tenant string, salesOrderID int64) ([]Shipment, error) {
	out := make([]Shipment, 0)
	for _, sh := range s.shipments {
		if sh.UserID == tenant && (salesOrderID == 0 || sh.SalesOrderID == salesOrderID) {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (s *store) GetShipment(ctx context.Context, tenant string, id int64) (Shipment, error) {
	sh, ok := s.shipments[id]
	if !ok || sh.UserID != tenant {
		return Shipment{}, ErrShipmentNotFound
	}
	return sh, nil
}

func (s *store) Inventory() inventory.TxRepository { return memInventory{s} }

func (s *store) Quotes() quotes.TxRepository { return memQuotes{s} }

func (s *store) Invoices() invoices.Writer { return memInvoices{s} }

func (s *store) ClaimIdempotencyKey(ctx context.Context, tenant, scope, key string) error {
	k := tenant + "|" + scope + "|" + key
	if s.keys[k] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[k] = true
	return nil
}

func (s *store) InsertSalesOrder(ctx context.Context, so SalesOrder) (SalesOrder, error) {
	for _, existing := range s.orders {
		if existing.QuoteID == so.QuoteID {
			return SalesOrder{}, ErrQuoteAlreadyOrdered
		}
	}
	so.ID = s.next()
	so.CreatedAt = time.Now()
	s.orders[so.ID] = so
	return so, nil
}

func (s *store) LockSalesOrder(ctx context.Context, tenant string, id int64) (SalesOrder, error) {
	return s.GetSalesOrder(ctx, tenant, id)
}

func (s *store) SetSalesOrderStatus(ctx context.Context, tenant string, id int64, status SalesOrderStatus) (SalesOrder, error) {
	so, err := s.GetSalesOrder(ctx, tenant, id)
	if err != nil {
		return SalesOrder{}, err
	}
	so.Status = status
	s.orders[id] = so
	return so, nil
}

func (s *store) InsertShipment(ctx context.Context, sh Shipment) (Shipment, error) {
	sh.ID = s.next()
	s.shipments[sh.ID] = sh
	return sh, nil
}

func (s *store) LockShipment(ctx context.Context, tenant string, id int64) (Shipment, error) {
	return s.GetShipment(ctx, tenant, id)
}

func (s *store) UpdateShipment(ctx context.Context, sh Shipment) (Shipment, error) {
	if _, err := s.GetShipment(ctx, sh.UserID, sh.ID); err != nil {
		return Shipment{}, err
	}
	s.shipments[sh.ID] = sh
	return sh, nil
}

// quotes

type memQuotes struct{ s *store }

// quotesRepo adapts the store to quotes.RepositoryPort so quotes are built by the real service.
type quotesRepo struct{ s *store }

func (r quotesRepo) WithTx(ctx context.Context, fn func(context.Context, quotes.TxRepository) error) error {
	return r.s.transact(func() error { return fn(ctx, memQuotes{r.s}) })
}

func (r quotesRepo) List(ctx context.Context, tenant string) ([]quotes.Quote, error) {
	out := make([]quotes.Quote, 0)
	for _, q := range r.s.quotes {
		if q.UserID == tenant {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r quotesRepo) Get(ctx context.Context, tenant string, id int64) (quotes.Quote, error) {
	q, err := memQuotes(r).LockQuote(ctx, tenant, id)
	if err != nil {
		return quotes.Quote{}, err
	}
	q.LineItems = r.s.lines[id]
	return q, nil
}

func (m memQuotes) InsertQuote(ctx context.Context, q quotes.Quote) (quotes.Quote, error) {
	q.ID = m.s.next()
	m.s.quotes[q.ID] = q
	return q, nil
}

func (m memQuotes) InsertLineItems(ctx context.Context, tenant string, quoteID int64, items []quotes.LineItem) ([]quotes.LineItem, error) {
	out := make([]quotes.LineItem, 0, len(items))
	for _, item := range items {
		item.ID = m.s.next()
		item.QuoteID = quoteID
		out = append(out, item)
	}
	m.s.lines[quoteID] = out
	return out, nil
}

func (m memQuotes) LockQuote(ctx context.Context, tenant string, id int64) (quotes.Quote, error) {
	q, ok := m.s.quotes[id]
	if !ok || q.UserID != tenant {
		return quotes.Quote{}, quotes.ErrNotFound
	}
	return q, nil
}

func (m memQuotes) UpdateQuote(ctx context.Context, q quotes.Quote) (quotes.Quote, error) {
	m.s.quotes[q.ID] = q
	return q, nil
}

func (m memQuotes) LineItems(ctx context.Context, quoteID int64) ([]quotes.LineItem, error) {
	return m.s.lines[quoteID], nil
}

// inventory

type memInventory struct{ s *store }

func (m memInventory) GradeMaterial(ctx context.Context, gradeID int64) (int64, error) {
	for _, g := range m.s.grades {
		if g.id == gradeID {
			return g.materialID, nil
		}
	}
	return 0, inventory.ErrInvalidGrade
}

func (m memInventory) ResolveGrade(ctx context.Context, materialID int64, label string) (int64, error) {
	for _, g := range m.s.grades {
		if g.materialID == materialID && g.label == label {
			return g.id, nil
		}
	}
	return 0, inventory.ErrGradeNotFound
}

func (m memInventory) LockMatching(ctx context.Context, tenant string, materialID, gradeID int64, dims shared.Dimensions) (inventory.Item, error) {
	var found []inventory.Item
	for _, item := range m.s.items {
		if item.UserID == tenant && item.MaterialID == materialID && item.GradeID == gradeID && dims.Matches(item.Dimensions) {
			found = append(found, item)
		}
	}
	if len(found) != 1 {
		return inventory.Item{}, inventory.ErrInventoryNotFound
	}
	return found[0], nil
}

func (m memInventory) LockByID(ctx context.Context, tenant string, id int64) (inventory.Item, error) {
	item, ok := m.s.items[id]
	if !ok || item.UserID != tenant {
		return inventory.Item{}, inventory.ErrNotFound
	}
	return item, nil
}

func (m memInventory) Insert(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	item.ID = m.s.next()
	m.s.items[item.ID] = item
	return item, nil
}

func (m memInventory) Update(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	m.s.items[item.ID] = item
	return item, nil
}

func (m memInventory) Delete(ctx context.Context, tenant string, id int64) error {
	delete(m.s.items, id)
	return nil
}

// invoices

type memInvoices struct{ s *store }

func (m memInvoices) InsertInvoice(ctx context.Context, inv invoices.Invoice) (invoices.Invoice, error) {
	for _, existing := range m.s.invoices {
		if existing.ShipmentID == inv.ShipmentID {
			return invoices.Invoice{}, invoices.ErrAlreadyInvoiced
		}
	}
	inv.ID = m.s.next()
	m.s.invoices[inv.ID] = inv
	return inv, nil
}
