package catalog

import (
	"context"
	"fmt"

	"github.com/metalyard/metalyard/internal/platform/db"
)

// Repository reads catalog tables.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs Repository.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

// ListMaterials returns every material ordered by name.
func (r *Repository) ListMaterials(ctx context.Context) ([]Material, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, COALESCE(description, ''), created_at FROM materials ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list materials: %w", err)
	}
	defer rows.Close()
	out := make([]Material, 0)
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListGrades returns grades ordered by label, optionally filtered to one material.
func (r *Repository) ListGrades(ctx context.Context, materialID int64) ([]Grade, error) {
	rows, err := r.db.Query(ctx, `SELECT id, material_id, grade_label, COALESCE(description, '')
FROM grades
WHERE ($1::bigint = 0 OR material_id = $1)
ORDER BY grade_label, id`, materialID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list grades: %w", err)
	}
	defer rows.Close()
	out := make([]Grade, 0)
	for rows.Next() {
		var g Grade
		if err := rows.Scan(&g.ID, &g.MaterialID, &g.GradeLabel, &g.Description); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetGrade loads one grade.
func (r *Repository) GetGrade(ctx context.Context, id int64) (Grade, error) {
	var g Grade
	err := r.db.QueryRow(ctx, `SELECT id, material_id, grade_label, COALESCE(description, '') FROM grades WHERE id = $1`, id).
		Scan(&g.ID, &g.MaterialID, &g.GradeLabel, &g.Description)
	if err != nil {
		if db.IsNoRows(err) {
			return Grade{}, ErrGradeNotFound
		}
		return Grade{}, fmt.Errorf("catalog: get grade: %w", err)
	}
	return g, nil
}
