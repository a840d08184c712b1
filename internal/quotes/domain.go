// Package quotes builds customer quotes: a header plus priced line items whose subtotals
// sum to the quote total.
package quotes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/metalyard/metalyard/internal/shared"
)

// Status tracks a quote through its life.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Acceptable reports whether a quote in status s may be accepted.
func (s Status) Acceptable() bool {
	return s == StatusDraft || s == StatusSent
}

// Quote is the header of a customer quote.
type Quote struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"user_id"`
	CustomerName string          `json:"customer_name"`
	Status       Status          `json:"status"`
	Notes        string          `json:"notes"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	LineItems    []LineItem      `json:"line_items,omitempty"`
}

// LineItem is one priced material request on a quote.
type LineItem struct {
	ID           int64  `json:"id"`
	QuoteID      int64  `json:"quote_id"`
	MaterialID   int64  `json:"material_id"`
	MaterialName string `json:"material_name"`
	Grade        string `json:"grade"`
	shared.Dimensions
	DimensionsLabel string          `json:"dimensions"`
	Quantity        float64         `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// LineItemInput is a line as submitted by the client. Dimensions may be given as numbers
// or as the legacy "L: 10, W: 5, T: 0.25" label.
type LineItemInput struct {
	MaterialID   int64            `json:"material_id" validate:"required,gt=0"`
	MaterialName string           `json:"material_name"`
	Grade        string           `json:"grade" validate:"required"`
	Length       *float64         `json:"length" validate:"omitempty,gte=0"`
	Width        *float64         `json:"width" validate:"omitempty,gte=0"`
	Thickness    *float64         `json:"thickness" validate:"omitempty,gte=0"`
	Dimensions   string           `json:"dimensions"`
	Quantity     float64          `json:"quantity" validate:"gt=0"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	Subtotal     *decimal.Decimal `json:"subtotal"`
}

// CreateInput describes a new quote.
type CreateInput struct {
	CustomerName string          `json:"customer_name" validate:"required"`
	Status       Status          `json:"status"`
	Notes        string          `json:"notes"`
	LineItems    []LineItemInput `json:"line_items" validate:"dive"`
}

// UpdateInput patches a quote header; nil fields are left untouched.
type UpdateInput struct {
	CustomerName *string `json:"customer_name" validate:"omitempty,min=1"`
	Status       *Status `json:"status"`
	Notes        *string `json:"notes"`
}

var (
	// ErrNotFound indicates no quote with that id is owned by the caller.
	ErrNotFound = shared.NotFound("Quote not found")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = shared.InvalidInput("Invalid quote status")
	// ErrSubtotalMismatch indicates a client subtotal that is not unit_price x quantity.
	ErrSubtotalMismatch = shared.InvalidInput("Line subtotal must equal unit_price x quantity")
	// ErrInvalidPrice indicates a negative unit price.
	ErrInvalidPrice = shared.InvalidInput("Unit price must not be negative")
	// ErrPricePrecision indicates a unit price with sub-cent digits.
	ErrPricePrecision = shared.InvalidInput("Unit price must have at most 2 decimal places")
	// ErrAcceptViaEndpoint indicates an attempt to accept a quote through a plain update.
	ErrAcceptViaEndpoint = shared.NewError(shared.KindInvalidState, "Quotes are accepted through the accept endpoint")
	// ErrQuoteClosed indicates an accepted quote whose status can no longer change.
	ErrQuoteClosed = shared.NewError(shared.KindInvalidState, "Accepted quotes cannot change status")
)
