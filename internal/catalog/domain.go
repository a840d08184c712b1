// Package catalog serves the global, read-only material and grade reference data.
package catalog

import (
	"time"

	"github.com/metalyard/metalyard/internal/shared"
)

// Material is a metal family such as Steel or Aluminum.
type Material struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Grade is a designation within a material, e.g. A36 for Steel.
type Grade struct {
	ID          int64  `json:"id"`
	MaterialID  int64  `json:"material_id"`
	GradeLabel  string `json:"grade_label"`
	Description string `json:"description,omitempty"`
}

var (
	// ErrGradeNotFound indicates an unknown grade id.
	ErrGradeNotFound = shared.NotFound("grade not found")
)
