package quotes

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metalyard/metalyard/internal/platform/db"
)

// Repository persists quotes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional quote statements.
type TxRepository interface {
	InsertQuote(ctx context.Context, q Quote) (Quote, error)
	InsertLineItems(ctx context.Context, tenant string, quoteID int64, items []LineItem) ([]LineItem, error)
	LockQuote(ctx context.Context, tenant string, id int64) (Quote, error)
	UpdateQuote(ctx context.Context, q Quote) (Quote, error)
	LineItems(ctx context.Context, quoteID int64) ([]LineItem, error)
}

type txRepo struct {
	conn db.DBTX
}

// NewTxRepository binds the quote statements to an open transaction.
func NewTxRepository(conn db.DBTX) TxRepository {
	return &txRepo{conn: conn}
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const quoteColumns = `id, user_id, customer_name, status, COALESCE(notes, ''), total_price, created_at, updated_at`

// List returns the tenant's quotes, newest first, without line items.
func (r *Repository) List(ctx context.Context, tenant string) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, tenant)
	if err != nil {
		return nil, fmt.Errorf("quotes: list: %w", err)
	}
	defer rows.Close()
	out := make([]Quote, 0)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Get returns a quote owned by tenant with its line items.
func (r *Repository) Get(ctx context.Context, tenant string, id int64) (Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE user_id = $1 AND id = $2`, tenant, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("quotes: get: %w", err)
	}
	q.LineItems, err = queryLineItems(ctx, r.pool, id)
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}

func (r *txRepo) InsertQuote(ctx context.Context, q Quote) (Quote, error) {
	created, err := scanQuote(r.conn.QueryRow(ctx, `INSERT INTO quotes (user_id, customer_name, status, notes, total_price)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+quoteColumns, q.UserID, q.CustomerName, q.Status, q.Notes, q.TotalPrice))
	if err != nil {
		return Quote{}, fmt.Errorf("quotes: insert: %w", err)
	}
	return created, nil
}

func (r *txRepo) InsertLineItems(ctx context.Context, tenant string, quoteID int64, items []LineItem) ([]LineItem, error) {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		var id int64
		err := r.conn.QueryRow(ctx, `INSERT INTO quote_line_items
	(quote_id, user_id, material_id, material_name, grade, length, width, thickness, dimensions, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`,
			quoteID, tenant, item.MaterialID, item.MaterialName, item.Grade,
			item.Length, item.Width, item.Thickness, item.DimensionsLabel,
			item.Quantity, item.UnitPrice, item.Subtotal).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("quotes: insert line item: %w", err)
		}
		item.ID = id
		item.QuoteID = quoteID
		out = append(out, item)
	}
	return out, nil
}

func (r *txRepo) LockQuote(ctx context.Context, tenant string, id int64) (Quote, error) {
	q, err := scanQuote(r.conn.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE user_id = $1 AND id = $2 FOR UPDATE`, tenant, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("quotes: lock: %w", err)
	}
	return q, nil
}

func (r *txRepo) UpdateQuote(ctx context.Context, q Quote) (Quote, error) {
	updated, err := scanQuote(r.conn.QueryRow(ctx, `UPDATE quotes
SET customer_name = $3, status = $4, notes = $5, updated_at = NOW()
WHERE user_id = $1 AND id = $2
RETURNING `+quoteColumns, q.UserID, q.ID, q.CustomerName, q.Status, q.Notes))
	if err != nil {
		if db.IsNoRows(err) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("quotes: update: %w", err)
	}
	return updated, nil
}

func (r *txRepo) LineItems(ctx context.Context, quoteID int64) ([]LineItem, error) {
	return queryLineItems(ctx, r.conn, quoteID)
}

func queryLineItems(ctx context.Context, conn db.DBTX, quoteID int64) ([]LineItem, error) {
	rows, err := conn.Query(ctx, `SELECT id, quote_id, material_id, COALESCE(material_name, ''), grade,
	length, width, thickness, COALESCE(dimensions, ''), quantity, unit_price, subtotal
FROM quote_line_items
WHERE quote_id = $1
ORDER BY id`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("quotes: line items: %w", err)
	}
	defer rows.Close()
	out := make([]LineItem, 0)
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.QuoteID, &li.MaterialID, &li.MaterialName, &li.Grade,
			&li.Length, &li.Width, &li.Thickness, &li.DimensionsLabel,
			&li.Quantity, &li.UnitPrice, &li.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(&q.ID, &q.UserID, &q.CustomerName, &q.Status, &q.Notes, &q.TotalPrice, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}
