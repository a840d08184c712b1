package invoices

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/metalyard/metalyard/internal/quotes"
)

var hundred = decimal.NewFromInt(100)

// Amounts are the money columns of an invoice.
type Amounts struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Compute prices lines: subtotal is the sum of per-line unit_price x quantity in cents, tax is
// subtotal x taxRate/100 rounded to cents, total is subtotal + tax - discount.
func Compute(lines []quotes.LineItem, taxRate, discount decimal.Decimal) (Amounts, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return Amounts{}, ErrInvalidTaxRate
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(quotes.Subtotal(l.UnitPrice, l.Quantity))
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	if discount.IsNegative() || discount.GreaterThan(subtotal.Add(tax)) {
		return Amounts{}, ErrInvalidDiscount
	}
	return Amounts{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal.Add(tax).Sub(discount),
	}, nil
}

var netTerms = regexp.MustCompile(`(?i)^net\s*(\d{1,3})$`)

// DueDate derives the due date from payment terms. Empty terms mean Net 30.
func DueDate(invoiceDate time.Time, terms string) (time.Time, error) {
	t := strings.TrimSpace(terms)
	if t == "" {
		t = DefaultPaymentTerms
	}
	switch strings.ToLower(t) {
	case "due on receipt", "cod":
		return invoiceDate, nil
	}
	m := netTerms.FindStringSubmatch(t)
	if m == nil {
		return time.Time{}, ErrInvalidPaymentTerms.WithDetails(terms)
	}
	days, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, ErrInvalidPaymentTerms.WithDetails(terms)
	}
	return invoiceDate.AddDate(0, 0, days), nil
}

// Compose builds an unsaved invoice for src dated on now's calendar day (UTC).
func Compose(tenant string, src Source, lines []quotes.LineItem, d Draft, now time.Time) (Invoice, error) {
	if len(lines) == 0 {
		return Invoice{}, ErrNothingToInvoice
	}
	amounts, err := Compute(lines, d.TaxRate, d.DiscountAmount)
	if err != nil {
		return Invoice{}, err
	}
	terms := strings.TrimSpace(d.PaymentTerms)
	if terms == "" {
		terms = DefaultPaymentTerms
	}
	invoiceDate := now.UTC().Truncate(24 * time.Hour)
	due, err := DueDate(invoiceDate, terms)
	if err != nil {
		return Invoice{}, err
	}
	return Invoice{
		UserID:         tenant,
		ShipmentID:     src.ShipmentID,
		SalesOrderID:   src.SalesOrderID,
		CustomerName:   src.CustomerName,
		InvoiceDate:    invoiceDate,
		DueDate:        due,
		PaymentTerms:   terms,
		SubtotalAmount: amounts.Subtotal,
		TaxRate:        d.TaxRate,
		TaxAmount:      amounts.Tax,
		DiscountAmount: amounts.Discount,
		TotalAmount:    amounts.Total,
		Status:         StatusPending,
	}, nil
}
