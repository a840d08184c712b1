package invoices

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/metalyard/metalyard/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, tenant string) ([]Invoice, error)
	Get(ctx context.Context, tenant string, id int64) (Detail, error)
	LineItems(ctx context.Context, tenant string, id int64) (LineItemsView, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// DocumentRenderer produces the PDF of an invoice.
type DocumentRenderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// DocumentCache stores rendered PDFs.
type DocumentCache interface {
	Get(ctx context.Context, id int64) ([]byte, bool, error)
	Put(ctx context.Context, id int64, pdf []byte) error
	Invalidate(ctx context.Context, id int64) error
}

// RenderQueue schedules background PDF rendering.
type RenderQueue interface {
	EnqueueInvoiceRender(ctx context.Context, tenant string, invoiceID int64) error
}

// ServiceConfig wires the optional collaborators of Service.
type ServiceConfig struct {
	Renderer DocumentRenderer
	Cache    DocumentCache
	Queue    RenderQueue
	Logger   *slog.Logger
	Now      func() time.Time
}

// ErrRenderUnavailable is returned when no PDF renderer is configured.
var ErrRenderUnavailable = shared.NewError(shared.KindUnavailable, "PDF rendering is not configured")

// Service coordinates invoice operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	renderer DocumentRenderer
	cache    DocumentCache
	queue    RenderQueue
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		renderer: cfg.Renderer,
		cache:    cfg.Cache,
		queue:    cfg.Queue,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Create bills a shipment owned by tenant. A shipment is invoiced at most once.
func (s *Service) Create(ctx context.Context, tenant string, input CreateInput) (Invoice, error) {
	if input.ShipmentID <= 0 {
		return Invoice{}, shared.InvalidInput("shipmentId is required")
	}
	var created Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		src, err := tx.LockSource(ctx, tenant, input.ShipmentID)
		if err != nil {
			return err
		}
		if src.ShipmentStatus == "cancelled" {
			return ErrShipmentCancelled
		}
		lines, err := tx.SourceLines(ctx, src.QuoteID)
		if err != nil {
			return err
		}
		inv, err := Compose(tenant, src, lines, Draft{
			TaxRate:        input.TaxRate,
			DiscountAmount: input.DiscountAmount,
			PaymentTerms:   input.PaymentTerms,
		}, s.now())
		if err != nil {
			return err
		}
		created, err = tx.InsertInvoice(ctx, inv)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.Record(ctx, tenant, "invoice:create", created)
	s.EnqueueRender(ctx, tenant, created.ID)
	return created, nil
}

// List returns the tenant's invoices, newest first.
func (s *Service) List(ctx context.Context, tenant string) ([]Invoice, error) {
	return s.repo.List(ctx, tenant)
}

// Get returns an invoice with its shipment and sales order.
func (s *Service) Get(ctx context.Context, tenant string, id int64) (Detail, error) {
	return s.repo.Get(ctx, tenant, id)
}

// ListLineItems returns the quote lines billed by an invoice and its shipment.
func (s *Service) ListLineItems(ctx context.Context, tenant string, id int64) (LineItemsView, error) {
	return s.repo.LineItems(ctx, tenant, id)
}

// MarkPaid settles a pending or overdue invoice.
func (s *Service) MarkPaid(ctx context.Context, tenant string, id int64) (Invoice, error) {
	var paid Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvoice(ctx, tenant, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusPending && inv.Status != StatusOverdue {
			return ErrNotPayable.WithDetails("status is " + string(inv.Status))
		}
		at := s.now().UTC()
		paid, err = tx.SetStatus(ctx, tenant, id, StatusPaid, &at)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.Warn("invalidate invoice pdf", slog.Int64("invoice_id", id), slog.Any("error", err))
		}
	}
	s.Record(ctx, tenant, "invoice:pay", paid)
	return paid, nil
}

// RenderPDF returns the invoice document, serving the cached copy when present.
func (s *Service) RenderPDF(ctx context.Context, tenant string, id int64) ([]byte, error) {
	detail, err := s.repo.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		pdf, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("read invoice pdf cache", slog.Int64("invoice_id", id), slog.Any("error", err))
		} else if ok {
			return pdf, nil
		}
	}
	if s.renderer == nil {
		return nil, ErrRenderUnavailable
	}
	view, err := s.repo.LineItems(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.Render(ctx, Document{Invoice: detail, Lines: view.LineItems})
	if err != nil {
		return nil, shared.Upstream("Failed to render invoice PDF", err)
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, id, pdf); err != nil {
			s.logger.Warn("write invoice pdf cache", slog.Int64("invoice_id", id), slog.Any("error", err))
		}
	}
	return pdf, nil
}

// EnqueueRender schedules background rendering. Failures are logged; the PDF endpoint
// renders on demand anyway.
func (s *Service) EnqueueRender(ctx context.Context, tenant string, id int64) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueInvoiceRender(ctx, tenant, id); err != nil {
		s.logger.Warn("enqueue invoice render", slog.Int64("invoice_id", id), slog.Any("error", err))
	}
}

// Record writes an audit row for an invoice mutation.
func (s *Service) Record(ctx context.Context, tenant, action string, inv Invoice) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Tenant:   tenant,
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta: map[string]any{
			"shipment_id":  inv.ShipmentID,
			"status":       string(inv.Status),
			"total_amount": inv.TotalAmount.String(),
		},
	})
}
