package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metalyard/metalyard/internal/platform/db"
	"github.com/metalyard/metalyard/internal/quotes"
)

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Writer inserts invoices inside a caller-owned transaction.
type Writer interface {
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
}

// TxRepository exposes transactional invoice statements.
type TxRepository interface {
	Writer
	LockSource(ctx context.Context, tenant string, shipmentID int64) (Source, error)
	SourceLines(ctx context.Context, quoteID int64) ([]quotes.LineItem, error)
	LockInvoice(ctx context.Context, tenant string, id int64) (Invoice, error)
	SetStatus(ctx context.Context, tenant string, id int64, status Status, paidAt *time.Time) (Invoice, error)
}

type txRepo struct {
	conn db.DBTX
}

// NewTxRepository binds the invoice statements to an open transaction.
func NewTxRepository(conn db.DBTX) TxRepository {
	return &txRepo{conn: conn}
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const invoiceColumns = `id, user_id, shipment_id, sales_order_id, customer_name, invoice_date, due_date, payment_terms,
	subtotal_amount, tax_rate, tax_amount, discount_amount, total_amount, status, paid_at, created_at`

// List returns the tenant's invoices, newest invoice date first.
func (r *Repository) List(ctx context.Context, tenant string) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE user_id = $1 ORDER BY invoice_date DESC, id DESC`, tenant)
	if err != nil {
		return nil, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()
	out := make([]Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Get returns the invoice with the shipment and sales order it bills.
func (r *Repository) Get(ctx context.Context, tenant string, id int64) (Detail, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE user_id = $1 AND id = $2`, tenant, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, fmt.Errorf("invoices: get: %w", err)
	}
	detail := Detail{Invoice: inv}
	detail.Shipment, err = r.shipment(ctx, tenant, inv.ShipmentID)
	if err != nil {
		return Detail{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT id, quote_id, customer_name, total_price, COALESCE(payment_terms, ''), COALESCE(delivery_terms, ''), status
FROM sales_orders WHERE user_id = $1 AND id = $2`, tenant, detail.Shipment.SalesOrderID).Scan(
		&detail.SalesOrder.ID, &detail.SalesOrder.QuoteID, &detail.SalesOrder.CustomerName, &detail.SalesOrder.TotalPrice,
		&detail.SalesOrder.PaymentTerms, &detail.SalesOrder.DeliveryTerms, &detail.SalesOrder.Status)
	if err != nil {
		if db.IsNoRows(err) {
			return Detail{}, ErrSalesOrderNotFound
		}
		return Detail{}, fmt.Errorf("invoices: sales order: %w", err)
	}
	return detail, nil
}

// LineItems walks invoice -> shipment -> sales order -> quote line items.
func (r *Repository) LineItems(ctx context.Context, tenant string, id int64) (LineItemsView, error) {
	var shipmentID int64
	err := r.pool.QueryRow(ctx, `SELECT shipment_id FROM invoices WHERE user_id = $1 AND id = $2`, tenant, id).Scan(&shipmentID)
	if err != nil {
		if db.IsNoRows(err) {
			return LineItemsView{}, ErrNotFound
		}
		return LineItemsView{}, fmt.Errorf("invoices: line items: %w", err)
	}
	shipment, err := r.shipment(ctx, tenant, shipmentID)
	if err != nil {
		return LineItemsView{}, err
	}
	var quoteID int64
	err = r.pool.QueryRow(ctx, `SELECT quote_id FROM sales_orders WHERE user_id = $1 AND id = $2`, tenant, shipment.SalesOrderID).Scan(&quoteID)
	if err != nil {
		if db.IsNoRows(err) {
			return LineItemsView{}, ErrSalesOrderNotFound
		}
		return LineItemsView{}, fmt.Errorf("invoices: line items: %w", err)
	}
	lines, err := quotes.NewTxRepository(r.pool).LineItems(ctx, quoteID)
	if err != nil {
		return LineItemsView{}, err
	}
	return LineItemsView{LineItems: lines, Shipment: shipment}, nil
}

// MarkOverdue flips pending invoices due before asOf. It spans every tenant and is only
// called from the scheduled sweep.
func (r *Repository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET status = $1 WHERE status = $2 AND due_date < $3::date`,
		StatusOverdue, StatusPending, asOf.UTC())
	if err != nil {
		return 0, fmt.Errorf("invoices: mark overdue: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) shipment(ctx context.Context, tenant string, id int64) (ShipmentRef, error) {
	var s ShipmentRef
	err := r.pool.QueryRow(ctx, `SELECT id, sales_order_id, customer_name, status, COALESCE(carrier, ''),
	COALESCE(tracking_number, ''), COALESCE(shipping_address, ''), actual_ship_date
FROM shipments WHERE user_id = $1 AND id = $2`, tenant, id).Scan(
		&s.ID, &s.SalesOrderID, &s.CustomerName, &s.Status, &s.Carrier, &s.TrackingNumber, &s.ShippingAddress, &s.ActualShipDate)
	if err != nil {
		if db.IsNoRows(err) {
			return ShipmentRef{}, ErrShipmentNotFound
		}
		return ShipmentRef{}, fmt.Errorf("invoices: shipment: %w", err)
	}
	return s, nil
}

func (r *txRepo) LockSource(ctx context.Context, tenant string, shipmentID int64) (Source, error) {
	var src Source
	err := r.conn.QueryRow(ctx, `SELECT id, status, sales_order_id, customer_name
FROM shipments WHERE user_id = $1 AND id = $2 FOR UPDATE`, tenant, shipmentID).Scan(
		&src.ShipmentID, &src.ShipmentStatus, &src.SalesOrderID, &src.CustomerName)
	if err != nil {
		if db.IsNoRows(err) {
			return Source{}, ErrShipmentNotFound
		}
		return Source{}, fmt.Errorf("invoices: lock shipment: %w", err)
	}
	err = r.conn.QueryRow(ctx, `SELECT quote_id FROM sales_orders WHERE user_id = $1 AND id = $2`, tenant, src.SalesOrderID).Scan(&src.QuoteID)
	if err != nil {
		if db.IsNoRows(err) {
			return Source{}, ErrSalesOrderNotFound
		}
		return Source{}, fmt.Errorf("invoices: sales order: %w", err)
	}
	return src, nil
}

func (r *txRepo) SourceLines(ctx context.Context, quoteID int64) ([]quotes.LineItem, error) {
	return quotes.NewTxRepository(r.conn).LineItems(ctx, quoteID)
}

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	created, err := scanInvoice(r.conn.QueryRow(ctx, `INSERT INTO invoices
	(user_id, shipment_id, sales_order_id, customer_name, invoice_date, due_date, payment_terms,
	 subtotal_amount, tax_rate, tax_amount, discount_amount, total_amount, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING `+invoiceColumns,
		inv.UserID, inv.ShipmentID, inv.SalesOrderID, inv.CustomerName, inv.InvoiceDate, inv.DueDate, inv.PaymentTerms,
		inv.SubtotalAmount, inv.TaxRate, inv.TaxAmount, inv.DiscountAmount, inv.TotalAmount, inv.Status))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Invoice{}, ErrAlreadyInvoiced
		}
		return Invoice{}, fmt.Errorf("invoices: insert: %w", err)
	}
	return created, nil
}

func (r *txRepo) LockInvoice(ctx context.Context, tenant string, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.conn.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE user_id = $1 AND id = $2 FOR UPDATE`, tenant, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, fmt.Errorf("invoices: lock: %w", err)
	}
	return inv, nil
}

func (r *txRepo) SetStatus(ctx context.Context, tenant string, id int64, status Status, paidAt *time.Time) (Invoice, error) {
	inv, err := scanInvoice(r.conn.QueryRow(ctx, `UPDATE invoices SET status = $3, paid_at = $4
WHERE user_id = $1 AND id = $2
RETURNING `+invoiceColumns, tenant, id, status, paidAt))
	if err != nil {
		if db.IsNoRows(err) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, fmt.Errorf("invoices: set status: %w", err)
	}
	return inv, nil
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.UserID, &inv.ShipmentID, &inv.SalesOrderID, &inv.CustomerName,
		&inv.InvoiceDate, &inv.DueDate, &inv.PaymentTerms,
		&inv.SubtotalAmount, &inv.TaxRate, &inv.TaxAmount, &inv.DiscountAmount, &inv.TotalAmount,
		&inv.Status, &inv.PaidAt, &inv.CreatedAt)
	return inv, err
}
