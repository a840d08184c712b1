package fulfillment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metalyard/metalyard/internal/inventory"
	"github.com/metalyard/metalyard/internal/invoices"
	"github.com/metalyard/metalyard/internal/platform/db"
	"github.com/metalyard/metalyard/internal/quotes"
	"github.com/metalyard/metalyard/internal/shared"
)

// Repository persists sales orders and shipments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository binds every statement a saga needs to one transaction: the order and
// shipment statements here plus the inventory, quote and invoice statements of their
// packages.
type TxRepository interface {
	Inventory() inventory.TxRepository
	Quotes() quotes.TxRepository
	Invoices() invoices.Writer
	ClaimIdempotencyKey(ctx context.Context, tenant, scope, key string) error
	InsertSalesOrder(ctx context.Context, so SalesOrder) (SalesOrder, error)
	LockSalesOrder(ctx context.Context, tenant string, id int64) (SalesOrder, error)
	SetSalesOrderStatus(ctx context.Context, tenant string, id int64, status SalesOrderStatus) (SalesOrder, error)
	InsertShipment(ctx context.Context, sh Shipment) (Shipment, error)
	LockShipment(ctx context.Context, tenant string, id int64) (Shipment, error)
	UpdateShipment(ctx context.Context, sh Shipment) (Shipment, error)
}

type txRepo struct {
	conn db.DBTX
}

// NewTxRepository binds the saga statements to an open transaction.
func NewTxRepository(conn db.DBTX) TxRepository {
	return &txRepo{conn: conn}
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const salesOrderColumns = `id, user_id, quote_id, customer_name, total_price, COALESCE(payment_terms, ''),
	COALESCE(delivery_terms, ''), status, created_at, updated_at`

const shipmentColumns = `id, user_id, sales_order_id, customer_name, status, planned_ship_date, actual_ship_date,
	estimated_delivery_date, actual_delivery_date, COALESCE(freight_cost, 0), COALESCE(carrier, ''),
	COALESCE(tracking_number, ''), COALESCE(shipping_address, ''), created_at, updated_at`

// ListSalesOrders returns the tenant's sales orders, newest first.
func (r *Repository) ListSalesOrders(ctx context.Context, tenant string) ([]SalesOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+salesOrderColumns+` FROM sales_orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, tenant)
	if err != nil {
		return nil, fmt.Errorf("fulfillment: list sales orders: %w", err)
	}
	defer rows.Close()
	out := make([]SalesOrder, 0)
	for rows.Next() {
		so, err := scanSalesOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, so)
	}
	return out, rows.Err()
}

// GetSalesOrder returns one sales order owned by tenant.
func (r *Repository) GetSalesOrder(ctx context.Context, tenant string, id int64) (SalesOrder, error) {
	so, err := scanSalesOrder(r.pool.QueryRow(ctx, `SELECT `+salesOrderColumns+` FROM sales_orders WHERE user_id = $1 AND id = $2`, tenant, id))
	if err != nil {
		if db.IsNoRows(err) {
			return SalesOrder{}, ErrSalesOrderNotFound
		}
		return SalesOrder{}, fmt.Errorf("fulfillment: get sales order: %w", err)
	}
	return so, nil
}

// ListShipments returns the tenant's shipments, optionally restricted to one sales order.
func (r *Repository) ListShipments(ctx context.Context, tenant string, salesOrderID int64) ([]Shipment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments
WHERE user_id = $1 AND ($2::bigint = 0 OR sales_order_id = $2)
ORDER BY created_at DESC, id DESC`, tenant, salesOrderID)
	if err != nil {
		return nil, fmt.Errorf("fulfillment: list shipments: %w", err)
	}
	defer rows.Close()
	out := make([]Shipment, 0)
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// GetShipment returns one shipment owned by tenant.
func (r *Repository) GetShipment(ctx context.Context, tenant string, id int64) (Shipment, error) {
	sh, err := scanShipment(r.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE user_id = $1 AND id = $2`, tenant, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Shipment{}, ErrShipmentNotFound
		}
		return Shipment{}, fmt.Errorf("fulfillment: get shipment: %w", err)
	}
	return sh, nil
}

func (r *txRepo) Inventory() inventory.TxRepository { return inventory.NewTxRepository(r.conn) }

func (r *txRepo) Quotes() quotes.TxRepository { return quotes.NewTxRepository(r.conn) }

func (r *txRepo) Invoices() invoices.Writer { return invoices.NewTxRepository(r.conn) }

func (r *txRepo) ClaimIdempotencyKey(ctx context.Context, tenant, scope, key string) error {
	return shared.NewIdempotencyStore(r.conn).Claim(ctx, tenant, scope, key)
}

func (r *txRepo) InsertSalesOrder(ctx context.Context, so SalesOrder) (SalesOrder, error) {
	created, err := scanSalesOrder(r.conn.QueryRow(ctx, `INSERT INTO sales_orders
	(user_id, quote_id, customer_name, total_price, payment_terms, delivery_terms, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+salesOrderColumns,
		so.UserID, so.QuoteID, so.CustomerName, so.TotalPrice, so.PaymentTerms, so.DeliveryTerms, so.Status))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return SalesOrder{}, ErrQuoteAlreadyOrdered
		}
		return SalesOrder{}, fmt.Errorf("fulfillment: insert sales order: %w", err)
	}
	return created, nil
}

func (r *txRepo) LockSalesOrder(ctx context.Context, tenant string, id int64) (SalesOrder, error) {
	so, err := scanSalesOrder(r.conn.QueryRow(ctx, `SELECT `+salesOrderColumns+` FROM sales_orders WHERE user_id = $1 AND id = $2 FOR UPDATE`, tenant, id))
	if err != nil {
		if db.IsNoRows(err) {
			return SalesOrder{}, ErrSalesOrderNotFound
		}
		return SalesOrder{}, fmt.Errorf("fulfillment: lock sales order: %w", err)
	}
	return so, nil
}

func (r *txRepo) SetSalesOrderStatus(ctx context.Context, tenant string, id int64, status SalesOrderStatus) (SalesOrder, error) {
	so, err := scanSalesOrder(r.conn.QueryRow(ctx, `UPDATE sales_orders SET status = $3, updated_at = NOW()
WHERE user_id = $1 AND id = $2
RETURNING `+salesOrderColumns, tenant, id, status))
	if err != nil {
		if db.IsNoRows(err) {
			return SalesOrder{}, ErrSalesOrderNotFound
		}
		return SalesOrder{}, fmt.Errorf("fulfillment: set sales order status: %w", err)
	}
	return so, nil
}

func (r *txRepo) InsertShipment(ctx context.Context, sh Shipment) (Shipment, error) {
	created, err := scanShipment(r.conn.QueryRow(ctx, `INSERT INTO shipments (user_id, sales_order_id, customer_name, status)
VALUES ($1, $2, $3, $4)
RETURNING `+shipmentColumns, sh.UserID, sh.SalesOrderID, sh.CustomerName, sh.Status))
	if err != nil {
		return Shipment{}, fmt.Errorf("fulfillment: insert shipment: %w", err)
	}
	return created, nil
}

func (r *txRepo) LockShipment(ctx context.Context, tenant string, id int64) (Shipment, error) {
	sh, err := scanShipment(r.conn.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE user_id = $1 AND id = $2 FOR UPDATE`, tenant, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Shipment{}, ErrShipmentNotFound
		}
		return Shipment{}, fmt.Errorf("fulfillment: lock shipment: %w", err)
	}
	return sh, nil
}

func (r *txRepo) UpdateShipment(ctx context.Context, sh Shipment) (Shipment, error) {
	updated, err := scanShipment(r.conn.QueryRow(ctx, `UPDATE shipments
SET status = $3, planned_ship_date = $4, actual_ship_date = $5, estimated_delivery_date = $6,
	actual_delivery_date = $7, freight_cost = $8, carrier = $9, tracking_number = $10,
	shipping_address = $11, updated_at = NOW()
WHERE user_id = $1 AND id = $2
RETURNING `+shipmentColumns,
		sh.UserID, sh.ID, sh.Status, sh.PlannedShipDate, sh.ActualShipDate, sh.EstimatedDeliveryDate,
		sh.ActualDeliveryDate, sh.FreightCost, sh.Carrier, sh.TrackingNumber, sh.ShippingAddress))
	if err != nil {
		if db.IsNoRows(err) {
			return Shipment{}, ErrShipmentNotFound
		}
		return Shipment{}, fmt.Errorf("fulfillment: update shipment: %w", err)
	}
	return updated, nil
}

func scanSalesOrder(row pgx.Row) (SalesOrder, error) {
	var so SalesOrder
	err := row.Scan(&so.ID, &so.UserID, &so.QuoteID, &so.CustomerName, &so.TotalPrice, &so.PaymentTerms,
		&so.DeliveryTerms, &so.Status, &so.CreatedAt, &so.UpdatedAt)
	return so, err
}

func scanShipment(row pgx.Row) (Shipment, error) {
	var sh Shipment
	err := row.Scan(&sh.ID, &sh.UserID, &sh.SalesOrderID, &sh.CustomerName, &sh.Status, &sh.PlannedShipDate,
		&sh.ActualShipDate, &sh.EstimatedDeliveryDate, &sh.ActualDeliveryDate, &sh.FreightCost, &sh.Carrier,
		&sh.TrackingNumber, &sh.ShippingAddress, &sh.CreatedAt, &sh.UpdatedAt)
	return sh, err
}
