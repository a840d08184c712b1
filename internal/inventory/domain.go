// Package inventory tracks each tenant's stock per material, grade and dimensions, and
// moves quantities between on-hand and allocated as quotes are accepted and shipped.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/metalyard/metalyard/internal/shared"
)

// Item is one stocked (material, grade, dimensions) combination owned by a tenant.
type Item struct {
	ID         int64  `json:"id"`
	UserID     string `json:"user_id"`
	MaterialID int64  `json:"material_id"`
	GradeID    int64  `json:"grade_id"`
	shared.Dimensions
	OnHand       float64         `json:"on_hand_quantity"`
	Allocated    float64         `json:"allocated_quantity"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	MaterialName string          `json:"material_name,omitempty"`
	GradeLabel   string          `json:"grade_label,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateInput describes a new inventory row.
type CreateInput struct {
	MaterialID   int64           `json:"material_id" validate:"required,gt=0"`
	GradeID      int64           `json:"grade_id" validate:"required,gt=0"`
	Length       *float64        `json:"length" validate:"omitempty,gte=0"`
	Width        *float64        `json:"width" validate:"omitempty,gte=0"`
	Thickness    *float64        `json:"thickness" validate:"omitempty,gte=0"`
	OnHand       float64         `json:"on_hand_quantity" validate:"gte=0"`
	Allocated    float64         `json:"allocated_quantity" validate:"gte=0"`
	DefaultPrice decimal.Decimal `json:"default_price"`
}

// UpdateInput patches the mutable fields of an item; nil fields are left untouched.
type UpdateInput struct {
	MaterialID   *int64           `json:"material_id" validate:"omitempty,gt=0"`
	GradeID      *int64           `json:"grade_id" validate:"omitempty,gt=0"`
	Length       *float64         `json:"length" validate:"omitempty,gte=0"`
	Width        *float64         `json:"width" validate:"omitempty,gte=0"`
	Thickness    *float64         `json:"thickness" validate:"omitempty,gte=0"`
	OnHand       *float64         `json:"on_hand_quantity" validate:"omitempty,gte=0"`
	Allocated    *float64         `json:"allocated_quantity" validate:"omitempty,gte=0"`
	DefaultPrice *decimal.Decimal `json:"default_price"`
}

// Allocation identifies the stock a quote line draws from.
type Allocation struct {
	MaterialID int64
	GradeLabel string
	Dimensions shared.Dimensions
	Quantity   float64
}

// Anomaly reasons reported by the allocation audit.
const (
	ReasonNegativeOnHand    = "negative_on_hand"
	ReasonNegativeAllocated = "negative_allocated"
)

// AnomalyReasons lists every reason AnomalyReason can return.
var AnomalyReasons = []string{ReasonNegativeOnHand, ReasonNegativeAllocated}

// AnomalyReason classifies a row's counters. On-hand is already net of allocations, so
// allocated above on-hand is a healthy state; only negative counters are anomalies.
func AnomalyReason(onHand, allocated float64) (string, bool) {
	switch {
	case onHand < 0:
		return ReasonNegativeOnHand, true
	case allocated < 0:
		return ReasonNegativeAllocated, true
	}
	return "", false
}

// Anomaly flags an item whose counters break the ledger's expectations.
type Anomaly struct {
	ItemID    int64   `json:"item_id"`
	UserID    string  `json:"user_id"`
	OnHand    float64 `json:"on_hand_quantity"`
	Allocated float64 `json:"allocated_quantity"`
	Reason    string  `json:"reason"`
}

var (
	// ErrNotFound indicates no item with that id is owned by the caller.
	ErrNotFound = shared.NotFound("Inventory item not found")
	// ErrInvalidGrade indicates the grade does not belong to the material.
	ErrInvalidGrade = shared.InvalidInput("Invalid grade selection")
	// ErrGradeNotFound indicates no grade with that label exists for the material.
	ErrGradeNotFound = shared.NotFound("Grade not found for material")
	// ErrInventoryNotFound indicates no single inventory row matches an allocation.
	ErrInventoryNotFound = shared.NotFound("No matching inventory item")
	// ErrInsufficientStock indicates an allocation would drive on-hand below zero.
	ErrInsufficientStock = shared.NewError(shared.KindInvalidState, "Insufficient stock on hand")
	// ErrInvalidQuantity indicates a non-positive allocation or release quantity.
	ErrInvalidQuantity = shared.InvalidInput("Quantity must be greater than zero")
	// ErrInvalidPrice indicates a negative default price.
	ErrInvalidPrice = shared.InvalidInput("Default price must not be negative")
	// ErrNegativeQuantity indicates negative stock counters on create or update.
	ErrNegativeQuantity = shared.InvalidInput("Stock quantities must not be negative")
	// ErrDuplicateItem indicates the tenant already stocks this combination.
	ErrDuplicateItem = shared.NewError(shared.KindConflict, "Inventory item already exists for this material, grade and dimensions")
)
