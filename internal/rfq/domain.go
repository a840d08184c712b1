// Package rfq turns customer request-for-quote text into structured requests and matches
// requested items against the caller's inventory with a language model. Nothing here is
// persisted; the results are suggestions for a human building a quote.
package rfq

import (
	"github.com/metalyard/metalyard/internal/shared"
)

// Match statuses a draft suggestion may carry.
const (
	MatchExact      = "exact"
	MatchSubstitute = "substitute"
)

// RequestedMaterial is one material mentioned in an RFQ. Fields the RFQ does not state
// are left empty.
type RequestedMaterial struct {
	Name       string            `json:"name"`
	Grade      string            `json:"grade,omitempty"`
	Dimensions shared.Dimensions `json:"dimensions"`
	Quantity   *float64          `json:"quantity,omitempty"`
	Notes      string            `json:"notes,omitempty"`
}

// Summary is the structured reading of an RFQ.
type Summary struct {
	Materials []RequestedMaterial `json:"materials"`
	Customer  string              `json:"customer,omitempty"`
	DueDate   string              `json:"dueDate,omitempty"`
	Notes     string              `json:"notes,omitempty"`
}

// ParseInput is the body of POST /parse-rfq.
type ParseInput struct {
	Text string `json:"text" validate:"required"`
}

// RequestedItem is an RFQ line as the quoting screen holds it.
type RequestedItem struct {
	MaterialName string  `json:"material_name" validate:"required"`
	Grade        string  `json:"grade"`
	Dimensions   string  `json:"dimensions"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
}

// InventoryEntry is a stock row offered to the model as a candidate match.
type InventoryEntry struct {
	UserID       string   `json:"user_id"`
	MaterialName string   `json:"material_name"`
	GradeName    string   `json:"grade_name"`
	Length       *float64 `json:"length"`
	Width        *float64 `json:"width"`
	Thickness    *float64 `json:"thickness"`
	OnHand       float64  `json:"on_hand_quantity"`
}

// DraftRequest is the body of POST /ai-draft-quote. When InventoryList is omitted the
// caller's own inventory is used.
type DraftRequest struct {
	ParsedRFQs    []RequestedItem  `json:"parsedRfqs" validate:"required,min=1,dive"`
	InventoryList []InventoryEntry `json:"inventoryList"`
}

// Suggestion pairs a requested item with the inventory the model picked for it.
type Suggestion struct {
	MaterialName      string  `json:"material_name"`
	Grade             string  `json:"grade"`
	Dimensions        string  `json:"dimensions"`
	RequestedQuantity float64 `json:"requested_quantity"`
	AvailableQuantity float64 `json:"available_quantity"`
	MatchStatus       string  `json:"match_status"`
	Notes             string  `json:"notes"`
}

// Draft is the response of POST /ai-draft-quote.
type Draft struct {
	Items []Suggestion `json:"items"`
}

var (
	// ErrEmptyText indicates an RFQ with no text to read.
	ErrEmptyText = shared.InvalidInput("RFQ text is required")
	// ErrMissingItems indicates a draft request without requested items.
	ErrMissingItems = shared.InvalidInput("Missing required data in request body")
	// ErrNoResponse indicates the provider answered without content.
	ErrNoResponse = shared.NewError(shared.KindUpstreamFailure, "No response from AI provider")
	// ErrInvalidResponse indicates content that does not have the expected shape.
	ErrInvalidResponse = shared.NewError(shared.KindUpstreamFailure, "Invalid response format from AI provider")
	// ErrProviderUnavailable is returned while the circuit breaker is open.
	ErrProviderUnavailable = shared.NewError(shared.KindUnavailable, "AI provider unavailable")
)
