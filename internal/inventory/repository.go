package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metalyard/metalyard/internal/platform/db"
	"github.com/metalyard/metalyard/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the row-locking operations used inside a transaction.
// The fulfillment sagas compose it with their own statements on the same pgx.Tx.
type TxRepository interface {
	GradeMaterial(ctx context.Context, gradeID int64) (int64, error)
	ResolveGrade(ctx context.Context, materialID int64, label string) (int64, error)
	LockMatching(ctx context.Context, tenant string, materialID, gradeID int64, dims shared.Dimensions) (Item, error)
	LockByID(ctx context.Context, tenant string, id int64) (Item, error)
	Insert(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, item Item) (Item, error)
	Delete(ctx context.Context, tenant string, id int64) error
}

type txRepo struct {
	conn db.DBTX
}

// NewTxRepository binds the inventory statements to an open transaction.
func NewTxRepository(conn db.DBTX) TxRepository {
	return &txRepo{conn: conn}
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const itemColumns = `i.id, i.user_id, i.material_id, i.grade_id, i.length, i.width, i.thickness,
	i.on_hand_quantity, i.allocated_quantity, i.default_price, i.created_at, i.updated_at`

const listQuery = `SELECT ` + itemColumns + `, m.name, g.grade_label
FROM inventory i
JOIN materials m ON m.id = i.material_id
JOIN grades g ON g.id = i.grade_id
WHERE i.user_id = $1`

// List returns every item owned by tenant, newest first.
func (r *Repository) List(ctx context.Context, tenant string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, listQuery+` ORDER BY i.created_at DESC, i.id DESC`, tenant)
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	defer rows.Close()
	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows, true)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get loads one item owned by tenant.
func (r *Repository) Get(ctx context.Context, tenant string, id int64) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, listQuery+` AND i.id = $2`, tenant, id), true)
	if err != nil {
		if db.IsNoRows(err) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("inventory: get: %w", err)
	}
	return item, nil
}

// Anomalies lists rows with a negative counter.
func (r *Repository) Anomalies(ctx context.Context) ([]Anomaly, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, on_hand_quantity, allocated_quantity
FROM inventory
WHERE on_hand_quantity < 0 OR allocated_quantity < 0
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("inventory: anomalies: %w", err)
	}
	defer rows.Close()
	out := make([]Anomaly, 0)
	for rows.Next() {
		var a Anomaly
		if err := rows.Scan(&a.ItemID, &a.UserID, &a.OnHand, &a.Allocated); err != nil {
			return nil, err
		}
		reason, ok := AnomalyReason(a.OnHand, a.Allocated)
		if !ok {
			continue
		}
		a.Reason = reason
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepo) GradeMaterial(ctx context.Context, gradeID int64) (int64, error) {
	var materialID int64
	err := r.conn.QueryRow(ctx, `SELECT material_id FROM grades WHERE id = $1`, gradeID).Scan(&materialID)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, ErrInvalidGrade
		}
		return 0, fmt.Errorf("inventory: grade material: %w", err)
	}
	return materialID, nil
}

func (r *txRepo) ResolveGrade(ctx context.Context, materialID int64, label string) (int64, error) {
	var gradeID int64
	err := r.conn.QueryRow(ctx, `SELECT id FROM grades WHERE material_id = $1 AND grade_label = $2`, materialID, label).Scan(&gradeID)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, ErrGradeNotFound.WithDetails(fmt.Sprintf("grade %q for material %d", label, materialID))
		}
		return 0, fmt.Errorf("inventory: resolve grade: %w", err)
	}
	return gradeID, nil
}

func (r *txRepo) LockMatching(ctx context.Context, tenant string, materialID, gradeID int64, dims shared.Dimensions) (Item, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+itemColumns+`
FROM inventory i
WHERE i.user_id = $1 AND i.material_id = $2 AND i.grade_id = $3
	AND ($4::numeric IS NULL OR i.length = $4)
	AND ($5::numeric IS NULL OR i.width = $5)
	AND ($6::numeric IS NULL OR i.thickness = $6)
ORDER BY i.id
LIMIT 2
FOR UPDATE`, tenant, materialID, gradeID, dims.Length, dims.Width, dims.Thickness)
	if err != nil {
		return Item{}, fmt.Errorf("inventory: lock matching: %w", err)
	}
	defer rows.Close()
	var matches []Item
	for rows.Next() {
		item, err := scanItem(rows, false)
		if err != nil {
			return Item{}, err
		}
		matches = append(matches, item)
	}
	if err := rows.Err(); err != nil {
		return Item{}, err
	}
	switch len(matches) {
	case 0:
		return Item{}, ErrInventoryNotFound.WithDetails(fmt.Sprintf("material %d, grade %d, %s", materialID, gradeID, dimsLabel(dims)))
	case 1:
		return matches[0], nil
	default:
		return Item{}, ErrInventoryNotFound.WithDetails(fmt.Sprintf("several items match material %d, grade %d, %s", materialID, gradeID, dimsLabel(dims)))
	}
}

func (r *txRepo) LockByID(ctx context.Context, tenant string, id int64) (Item, error) {
	item, err := scanItem(r.conn.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory i WHERE i.user_id = $1 AND i.id = $2 FOR UPDATE`, tenant, id), false)
	if err != nil {
		if db.IsNoRows(err) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("inventory: lock item: %w", err)
	}
	return item, nil
}

func (r *txRepo) Insert(ctx context.Context, item Item) (Item, error) {
	row := r.conn.QueryRow(ctx, `INSERT INTO inventory AS i
	(user_id, material_id, grade_id, length, width, thickness, on_hand_quantity, allocated_quantity, default_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+itemColumns,
		item.UserID, item.MaterialID, item.GradeID, item.Length, item.Width, item.Thickness,
		item.OnHand, item.Allocated, item.DefaultPrice)
	created, err := scanItem(row, false)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Item{}, ErrDuplicateItem
		}
		return Item{}, fmt.Errorf("inventory: insert: %w", err)
	}
	return created, nil
}

func (r *txRepo) Update(ctx context.Context, item Item) (Item, error) {
	row := r.conn.QueryRow(ctx, `UPDATE inventory AS i SET
	material_id = $3, grade_id = $4, length = $5, width = $6, thickness = $7,
	on_hand_quantity = $8, allocated_quantity = $9, default_price = $10, updated_at = NOW()
WHERE i.user_id = $1 AND i.id = $2
RETURNING `+itemColumns,
		item.UserID, item.ID, item.MaterialID, item.GradeID, item.Length, item.Width, item.Thickness,
		item.OnHand, item.Allocated, item.DefaultPrice)
	updated, err := scanItem(row, false)
	if err != nil {
		switch {
		case db.IsNoRows(err):
			return Item{}, ErrNotFound
		case db.IsUniqueViolation(err):
			return Item{}, ErrDuplicateItem
		}
		return Item{}, fmt.Errorf("inventory: update: %w", err)
	}
	return updated, nil
}

func (r *txRepo) Delete(ctx context.Context, tenant string, id int64) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM inventory WHERE user_id = $1 AND id = $2`, tenant, id)
	if err != nil {
		return fmt.Errorf("inventory: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row, withNames bool) (Item, error) {
	var item Item
	dest := []any{
		&item.ID, &item.UserID, &item.MaterialID, &item.GradeID,
		&item.Length, &item.Width, &item.Thickness,
		&item.OnHand, &item.Allocated, &item.DefaultPrice, &item.CreatedAt, &item.UpdatedAt,
	}
	if withNames {
		dest = append(dest, &item.MaterialName, &item.GradeLabel)
	}
	err := row.Scan(dest...)
	return item, err
}

func dimsLabel(d shared.Dimensions) string {
	if d.IsZero() {
		return "any dimensions"
	}
	return d.Label()
}
