package quotes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/metalyard/metalyard/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, tenant string) ([]Quote, error)
	Get(ctx context.Context, tenant string, id int64) (Quote, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates quote operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create stores the header and its line items in one transaction. The total is the sum
// of the server-computed subtotals; a quote without lines totals zero.
func (s *Service) Create(ctx context.Context, tenant string, input CreateInput) (Quote, error) {
	status := input.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return Quote{}, ErrInvalidStatus
	}
	if status == StatusAccepted {
		return Quote{}, ErrAcceptViaEndpoint
	}
	lines := make([]LineItem, 0, len(input.LineItems))
	for i, in := range input.LineItems {
		line, err := BuildLineItem(in)
		if err != nil {
			return Quote{}, lineError(i+1, err)
		}
		lines = append(lines, line)
	}

	header := Quote{
		UserID:       tenant,
		CustomerName: strings.TrimSpace(input.CustomerName),
		Status:       status,
		Notes:        input.Notes,
		TotalPrice:   Total(lines),
	}
	var created Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.InsertQuote(ctx, header)
		if err != nil {
			return err
		}
		q.LineItems, err = tx.InsertLineItems(ctx, tenant, q.ID, lines)
		if err != nil {
			return err
		}
		created = q
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	s.record(ctx, tenant, "quote:create", created.ID, map[string]any{
		"customer_name": created.CustomerName,
		"total_price":   created.TotalPrice.String(),
		"lines":         len(created.LineItems),
	})
	return created, nil
}

// Update patches a quote owned by tenant. The total is not recomputed.
func (s *Service) Update(ctx context.Context, tenant string, id int64, input UpdateInput) (Quote, error) {
	if input.Status != nil {
		if !input.Status.Valid() {
			return Quote{}, ErrInvalidStatus
		}
		if *input.Status == StatusAccepted {
			return Quote{}, ErrAcceptViaEndpoint
		}
	}
	var updated Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.LockQuote(ctx, tenant, id)
		if err != nil {
			return err
		}
		if input.CustomerName != nil {
			q.CustomerName = strings.TrimSpace(*input.CustomerName)
		}
		if input.Notes != nil {
			q.Notes = *input.Notes
		}
		if input.Status != nil && *input.Status != q.Status {
			if q.Status == StatusAccepted {
				return ErrQuoteClosed
			}
			q.Status = *input.Status
		}
		updated, err = tx.UpdateQuote(ctx, q)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	s.record(ctx, tenant, "quote:update", id, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

// Get returns a quote owned by tenant with its line items.
func (s *Service) Get(ctx context.Context, tenant string, id int64) (Quote, error) {
	return s.repo.Get(ctx, tenant, id)
}

// List returns the tenant's quotes, newest first.
func (s *Service) List(ctx context.Context, tenant string) ([]Quote, error) {
	return s.repo.List(ctx, tenant)
}

// BuildLineItem resolves dimensions and prices a client line.
func BuildLineItem(in LineItemInput) (LineItem, error) {
	if in.Quantity <= 0 {
		return LineItem{}, shared.InvalidInput("Quantity must be greater than zero")
	}
	if in.UnitPrice.IsNegative() {
		return LineItem{}, ErrInvalidPrice
	}
	if !in.UnitPrice.Equal(in.UnitPrice.Round(2)) {
		return LineItem{}, ErrPricePrecision
	}
	dims := shared.Dimensions{Length: in.Length, Width: in.Width, Thickness: in.Thickness}
	if dims.IsZero() {
		parsed, err := shared.ParseDimensions(in.Dimensions)
		if err != nil {
			return LineItem{}, err
		}
		dims = parsed
	}
	if err := dims.Validate(); err != nil {
		return LineItem{}, err
	}
	subtotal := Subtotal(in.UnitPrice, in.Quantity)
	if in.Subtotal != nil && !in.Subtotal.Round(2).Equal(subtotal) {
		return LineItem{}, ErrSubtotalMismatch.WithDetails(fmt.Sprintf("expected %s, got %s", subtotal.StringFixed(2), in.Subtotal.StringFixed(2)))
	}
	return LineItem{
		MaterialID:      in.MaterialID,
		MaterialName:    strings.TrimSpace(in.MaterialName),
		Grade:           strings.TrimSpace(in.Grade),
		Dimensions:      dims,
		DimensionsLabel: dims.Label(),
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		Subtotal:        subtotal,
	}, nil
}

// Subtotal is unit price times quantity rounded to cents, the scale of the stored money
// columns. Totals are summed from rounded subtotals so they equal the sum of stored lines.
func Subtotal(unitPrice decimal.Decimal, quantity float64) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromFloat(quantity)).Round(2)
}

// Total sums the subtotals of lines.
func Total(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

func lineError(n int, err error) error {
	var se *shared.Error
	if errors.As(err, &se) {
		detail := fmt.Sprintf("line %d", n)
		if se.Details != "" {
			detail += ": " + se.Details
		}
		return se.WithDetails(detail)
	}
	return fmt.Errorf("line %d: %w", n, err)
}

func (s *Service) record(ctx context.Context, tenant, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Tenant:   tenant,
		Action:   action,
		Entity:   "quote",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
