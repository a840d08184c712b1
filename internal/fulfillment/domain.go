// Package fulfillment runs the order lifecycle: accepting a quote into a sales order and a
// shipment, and executing that shipment into an invoice. Each step commits atomically
// together with the inventory movements it implies.
package fulfillment

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/metalyard/metalyard/internal/invoices"
	"github.com/metalyard/metalyard/internal/shared"
)

// SalesOrderStatus is the lifecycle of a sales order.
type SalesOrderStatus string

const (
	SalesOrderPending    SalesOrderStatus = "pending"
	SalesOrderProcessing SalesOrderStatus = "processing"
	SalesOrderShipped    SalesOrderStatus = "shipped"
	SalesOrderDelivered  SalesOrderStatus = "delivered"
	SalesOrderCancelled  SalesOrderStatus = "cancelled"
)

// ShipmentStatus is the lifecycle of a shipment.
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentInTransit ShipmentStatus = "in_transit"
	ShipmentDelivered ShipmentStatus = "delivered"
	ShipmentCancelled ShipmentStatus = "cancelled"
)

// Valid reports whether s is a known shipment status.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentPending, ShipmentInTransit, ShipmentDelivered, ShipmentCancelled:
		return true
	default:
		return false
	}
}

// CanExecute reports whether the shipment can still be executed.
func (s ShipmentStatus) CanExecute() bool {
	return s == ShipmentPending || s == ShipmentInTransit
}

// SalesOrder is created when a quote is accepted.
type SalesOrder struct {
	ID            int64            `json:"id"`
	UserID        string           `json:"user_id"`
	QuoteID       int64            `json:"quote_id"`
	CustomerName  string           `json:"customer_name"`
	TotalPrice    decimal.Decimal  `json:"total_price"`
	PaymentTerms  string           `json:"payment_terms"`
	DeliveryTerms string           `json:"delivery_terms"`
	Status        SalesOrderStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Shipment moves the goods of a sales order to the customer.
type Shipment struct {
	ID                    int64           `json:"id"`
	UserID                string          `json:"user_id"`
	SalesOrderID          int64           `json:"sales_order_id"`
	CustomerName          string          `json:"customer_name"`
	Status                ShipmentStatus  `json:"status"`
	PlannedShipDate       *time.Time      `json:"planned_ship_date"`
	ActualShipDate        *time.Time      `json:"actual_ship_date"`
	EstimatedDeliveryDate *time.Time      `json:"estimated_delivery_date"`
	ActualDeliveryDate    *time.Time      `json:"actual_delivery_date"`
	FreightCost           decimal.Decimal `json:"freight_cost"`
	Carrier               string          `json:"carrier"`
	TrackingNumber        string          `json:"tracking_number"`
	ShippingAddress       string          `json:"shipping_address"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// AcceptInput is the body of POST /quotes/{id}/accept.
type AcceptInput struct {
	PaymentTerms  string `json:"payment_terms"`
	DeliveryTerms string `json:"delivery_terms"`
}

// AcceptResult reports the documents created by an acceptance.
type AcceptResult struct {
	Message    string     `json:"message"`
	SalesOrder SalesOrder `json:"salesOrder"`
	Shipment   Shipment   `json:"shipment"`
}

// CreateSalesOrderInput is the body of POST /sales-orders/create.
type CreateSalesOrderInput struct {
	QuoteID       int64            `json:"quote_id" validate:"required,gt=0"`
	CustomerName  string           `json:"customer_name"`
	TotalPrice    *decimal.Decimal `json:"total_price"`
	PaymentTerms  string           `json:"payment_terms"`
	DeliveryTerms string           `json:"delivery_terms"`
}

// CreateSalesOrderResult reports a manually created sales order and its draft shipment.
type CreateSalesOrderResult struct {
	SalesOrder SalesOrder `json:"salesOrder"`
	Shipment   Shipment   `json:"shipment"`
}

// UpdateShipmentInput patches a shipment; nil fields are left untouched. Dates accept
// YYYY-MM-DD or RFC 3339.
type UpdateShipmentInput struct {
	PlannedShipDate       *string          `json:"planned_ship_date"`
	ActualShipDate        *string          `json:"actual_ship_date"`
	EstimatedDeliveryDate *string          `json:"estimated_delivery_date"`
	ActualDeliveryDate    *string          `json:"actual_delivery_date"`
	FreightCost           *decimal.Decimal `json:"freight_cost"`
	Carrier               *string          `json:"carrier" validate:"omitempty,max=120"`
	TrackingNumber        *string          `json:"tracking_number" validate:"omitempty,max=120"`
	ShippingAddress       *string          `json:"shipping_address" validate:"omitempty,max=500"`
	Status                *ShipmentStatus  `json:"status"`
}

// ExecuteInput is the optional body of PATCH /shipments/{id}/execute. Empty payment terms
// fall back to the sales order's terms.
type ExecuteInput struct {
	ActualShipDate *string         `json:"actual_ship_date"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PaymentTerms   string          `json:"payment_terms"`
}

// ExecuteResult reports the delivered shipment and its invoice.
type ExecuteResult struct {
	Shipment Shipment         `json:"shipment"`
	Invoice  invoices.Invoice `json:"invoice"`
}

const acceptedMessage = "Quote accepted, sales order and shipment created, inventory adjusted"

var (
	// ErrSalesOrderNotFound indicates no sales order with that id is owned by the caller.
	ErrSalesOrderNotFound = shared.NotFound("Sales order not found")
	// ErrShipmentNotFound indicates no shipment with that id is owned by the caller.
	ErrShipmentNotFound = shared.NotFound("Shipment not found")
	// ErrQuoteNotAcceptable indicates the quote is not draft or sent.
	ErrQuoteNotAcceptable = shared.NewError(shared.KindInvalidState, "Quote cannot be accepted in its current status")
	// ErrQuoteAlreadyOrdered indicates the quote already produced a sales order.
	ErrQuoteAlreadyOrdered = shared.NewError(shared.KindConflict, "Quote already has a sales order")
	// ErrShipmentNotExecutable indicates the shipment is already delivered or cancelled.
	ErrShipmentNotExecutable = shared.NewError(shared.KindInvalidState, "Shipment cannot be executed in its current status")
	// ErrDeliverViaExecute indicates an attempt to mark a shipment delivered without executing it.
	ErrDeliverViaExecute = shared.NewError(shared.KindInvalidState, "Shipments are delivered by executing them")
	// ErrShipmentClosed indicates a status change on a delivered or cancelled shipment.
	ErrShipmentClosed = shared.NewError(shared.KindInvalidState, "Shipment is closed")
	// ErrInvalidShipmentStatus indicates an unknown shipment status.
	ErrInvalidShipmentStatus = shared.InvalidInput("Invalid shipment status")
	// ErrInvalidFreight indicates a negative freight cost.
	ErrInvalidFreight = shared.InvalidInput("Freight cost must be positive")
	// ErrInvalidDate indicates a date that is neither YYYY-MM-DD nor RFC 3339.
	ErrInvalidDate = shared.InvalidInput("Dates must be YYYY-MM-DD or RFC 3339")
	// ErrInvalidTotal indicates a negative sales order total.
	ErrInvalidTotal = shared.InvalidInput("Total price must not be negative")
)

// parseDate reads a date field. An empty string clears the date.
func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, ErrInvalidDate.WithDetails(raw)
}
