// Package invoices composes invoices from shipped quotes and serves their read paths.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/metalyard/metalyard/internal/quotes"
	"github.com/metalyard/metalyard/internal/shared"
)

// Status of an invoice.
type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusOverdue Status = "Overdue"
	StatusVoid    Status = "Void"
)

// DefaultPaymentTerms applies when the caller supplies none.
const DefaultPaymentTerms = "Net 30"

// Invoice bills one delivered shipment.
type Invoice struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"user_id"`
	ShipmentID     int64           `json:"shipment_id"`
	SalesOrderID   int64           `json:"sales_order_id"`
	CustomerName   string          `json:"customer_name"`
	InvoiceDate    time.Time       `json:"invoice_date"`
	DueDate        time.Time       `json:"due_date"`
	PaymentTerms   string          `json:"payment_terms"`
	SubtotalAmount decimal.Decimal `json:"subtotal_amount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         Status          `json:"status"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Source is the shipment and sales order an invoice is drawn from.
type Source struct {
	ShipmentID     int64
	ShipmentStatus string
	SalesOrderID   int64
	QuoteID        int64
	CustomerName   string
}

// Draft carries the caller-controlled invoice parameters.
type Draft struct {
	TaxRate        decimal.Decimal
	DiscountAmount decimal.Decimal
	PaymentTerms   string
}

// CreateInput is the body of POST /invoices/create.
type CreateInput struct {
	ShipmentID     int64           `json:"shipmentId" validate:"required,gt=0"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PaymentTerms   string          `json:"payment_terms"`
}

// ShipmentRef is the shipment summary returned alongside an invoice.
type ShipmentRef struct {
	ID              int64      `json:"id"`
	SalesOrderID    int64      `json:"sales_order_id"`
	CustomerName    string     `json:"customer_name"`
	Status          string     `json:"status"`
	Carrier         string     `json:"carrier,omitempty"`
	TrackingNumber  string     `json:"tracking_number,omitempty"`
	ShippingAddress string     `json:"shipping_address,omitempty"`
	ActualShipDate  *time.Time `json:"actual_ship_date,omitempty"`
}

// SalesOrderRef is the sales order summary returned alongside an invoice.
type SalesOrderRef struct {
	ID            int64           `json:"id"`
	QuoteID       int64           `json:"quote_id"`
	CustomerName  string          `json:"customer_name"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PaymentTerms  string          `json:"payment_terms"`
	DeliveryTerms string          `json:"delivery_terms"`
	Status        string          `json:"status"`
}

// Detail is an invoice with the documents it was drawn from.
type Detail struct {
	Invoice
	Shipment   ShipmentRef   `json:"shipment"`
	SalesOrder SalesOrderRef `json:"sales_order"`
}

// LineItemsView is the body of GET /invoices/{id}/line-items.
type LineItemsView struct {
	LineItems []quotes.LineItem `json:"lineItems"`
	Shipment  ShipmentRef       `json:"shipment"`
}

var (
	// ErrNotFound indicates no invoice with that id is owned by the caller.
	ErrNotFound = shared.NotFound("Invoice not found")
	// ErrShipmentNotFound indicates the shipment to bill does not exist or is not owned by the caller.
	ErrShipmentNotFound = shared.NotFound("Shipment not found")
	// ErrSalesOrderNotFound indicates the shipment's sales order is missing.
	ErrSalesOrderNotFound = shared.NotFound("Sales order not found")
	// ErrShipmentCancelled indicates an attempt to bill a cancelled shipment.
	ErrShipmentCancelled = shared.NewError(shared.KindInvalidState, "Cannot invoice a cancelled shipment")
	// ErrAlreadyInvoiced indicates the shipment already has an invoice.
	ErrAlreadyInvoiced = shared.NewError(shared.KindConflict, "Shipment already invoiced")
	// ErrNothingToInvoice indicates a shipment whose quote has no lines.
	ErrNothingToInvoice = shared.NewError(shared.KindInvalidState, "No line items found for this shipment")
	// ErrInvalidTaxRate indicates a tax rate outside [0, 100].
	ErrInvalidTaxRate = shared.InvalidInput("Tax rate must be between 0 and 100")
	// ErrInvalidDiscount indicates a negative discount or one larger than the taxed subtotal.
	ErrInvalidDiscount = shared.InvalidInput("Discount must be between 0 and the taxed subtotal")
	// ErrInvalidPaymentTerms indicates terms that are not "Net N", "Due on receipt" or "COD".
	ErrInvalidPaymentTerms = shared.InvalidInput("Payment terms must look like \"Net 30\"")
	// ErrNotPayable indicates an invoice that is already paid or void.
	ErrNotPayable = shared.NewError(shared.KindInvalidState, "Invoice cannot be marked paid in its current status")
)
