package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/metalyard/metalyard/internal/inventory"
	"github.com/metalyard/metalyard/internal/invoices"
	"github.com/metalyard/metalyard/internal/quotes"
	"github.com/metalyard/metalyard/internal/shared"
)

// Idempotency scopes of the sagas.
const (
	ScopeAccept  = "quote:accept"
	ScopeExecute = "shipment:execute"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListSalesOrders(ctx context.Context, tenant string) ([]SalesOrder, error)
	GetSalesOrder(ctx context.Context, tenant string, id int64) (SalesOrder, error)
	ListShipments(ctx context.Context, tenant string, salesOrderID int64) ([]Shipment, error)
	GetShipment(ctx context.Context, tenant string, id int64) (Shipment, error)
}

// StockLedger moves quantities between on-hand and allocated inside a transaction.
type StockLedger interface {
	Allocate(ctx context.Context, tx inventory.TxRepository, tenant string, a inventory.Allocation) (inventory.Item, error)
	Release(ctx context.Context, tx inventory.TxRepository, tenant string, a inventory.Allocation) (inventory.Item, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SagaObserver records saga outcomes.
type SagaObserver interface {
	ObserveSaga(saga string, err error, elapsed time.Duration)
}

// ServiceConfig wires the optional collaborators of Service.
type ServiceConfig struct {
	Queue    invoices.RenderQueue
	Observer SagaObserver
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service coordinates sales orders, shipments and the sagas between them.
type Service struct {
	repo     RepositoryPort
	stock    StockLedger
	audit    AuditPort
	queue    invoices.RenderQueue
	observer SagaObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, stock StockLedger, audit AuditPort, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:     repo,
		stock:    stock,
		audit:    audit,
		queue:    cfg.Queue,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Accept turns a draft or sent quote into a pending sales order with a pending shipment
// and allocates stock for every line. Nothing is written unless every step succeeds.
// A non-empty idempotency key is claimed in the same transaction.
func (s *Service) Accept(ctx context.Context, tenant string, quoteID int64, idempotencyKey string, input AcceptInput) (AcceptResult, error) {
	started := s.now()
	terms, err := normalizeTerms(input.PaymentTerms)
	if err != nil {
		return AcceptResult{}, err
	}
	var result AcceptResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.claim(ctx, tx, tenant, ScopeAccept, idempotencyKey); err != nil {
			return err
		}
		q, err := tx.Quotes().LockQuote(ctx, tenant, quoteID)
		if err != nil {
			return err
		}
		if !q.Status.Acceptable() {
			return ErrQuoteNotAcceptable.WithDetails("status is " + string(q.Status))
		}
		q.Status = quotes.StatusAccepted
		if _, err := tx.Quotes().UpdateQuote(ctx, q); err != nil {
			return err
		}
		lines, err := tx.Quotes().LineItems(ctx, q.ID)
		if err != nil {
			return err
		}

		so, err := tx.InsertSalesOrder(ctx, SalesOrder{
			UserID:        tenant,
			QuoteID:       q.ID,
			CustomerName:  q.CustomerName,
			TotalPrice:    q.TotalPrice,
			PaymentTerms:  terms,
			DeliveryTerms: strings.TrimSpace(input.DeliveryTerms),
			Status:        SalesOrderPending,
		})
		if err != nil {
			return err
		}
		sh, err := tx.InsertShipment(ctx, Shipment{
			UserID:       tenant,
			SalesOrderID: so.ID,
			CustomerName: q.CustomerName,
			Status:       ShipmentPending,
		})
		if err != nil {
			return err
		}

		stock := tx.Inventory()
		for i, line := range lines {
			if _, err := s.stock.Allocate(ctx, stock, tenant, allocationFor(line)); err != nil {
				return lineError(i+1, line, err)
			}
		}
		result = AcceptResult{Message: acceptedMessage, SalesOrder: so, Shipment: sh}
		return nil
	})
	s.observe("accept", err, started)
	if err != nil {
		return AcceptResult{}, err
	}
	s.record(ctx, tenant, "quote:accept", "quote", quoteID, map[string]any{
		"sales_order_id": result.SalesOrder.ID,
		"shipment_id":    result.Shipment.ID,
	})
	return result, nil
}

// Execute delivers a pending or in-transit shipment: it releases the allocations of the
// quote's lines, marks the shipment delivered and the sales order shipped, and bills the
// shipment. All of it commits in one transaction.
func (s *Service) Execute(ctx context.Context, tenant string, shipmentID int64, idempotencyKey string, input ExecuteInput) (ExecuteResult, error) {
	started := s.now()
	shipDate := started.UTC()
	if input.ActualShipDate != nil {
		parsed, err := parseDate(*input.ActualShipDate)
		if err != nil {
			return ExecuteResult{}, err
		}
		if parsed != nil {
			shipDate = *parsed
		}
	}
	var result ExecuteResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.claim(ctx, tx, tenant, ScopeExecute, idempotencyKey); err != nil {
			return err
		}
		sh, err := tx.LockShipment(ctx, tenant, shipmentID)
		if err != nil {
			return err
		}
		if !sh.Status.CanExecute() {
			return ErrShipmentNotExecutable.WithDetails("status is " + string(sh.Status))
		}
		so, err := tx.LockSalesOrder(ctx, tenant, sh.SalesOrderID)
		if err != nil {
			return err
		}
		lines, err := tx.Quotes().LineItems(ctx, so.QuoteID)
		if err != nil {
			return err
		}

		stock := tx.Inventory()
		for i, line := range lines {
			if _, err := s.stock.Release(ctx, stock, tenant, allocationFor(line)); err != nil {
				return lineError(i+1, line, err)
			}
		}

		sh.Status = ShipmentDelivered
		sh.ActualShipDate = &shipDate
		if sh, err = tx.UpdateShipment(ctx, sh); err != nil {
			return err
		}
		if _, err := tx.SetSalesOrderStatus(ctx, tenant, so.ID, SalesOrderShipped); err != nil {
			return err
		}

		terms := strings.TrimSpace(input.PaymentTerms)
		if terms == "" {
			terms = so.PaymentTerms
		}
		draft, err := invoices.Compose(tenant, invoices.Source{
			ShipmentID:     sh.ID,
			ShipmentStatus: string(sh.Status),
			SalesOrderID:   so.ID,
			QuoteID:        so.QuoteID,
			CustomerName:   sh.CustomerName,
		}, lines, invoices.Draft{
			TaxRate:        input.TaxRate,
			DiscountAmount: input.DiscountAmount,
			PaymentTerms:   terms,
		}, started)
		if err != nil {
			return err
		}
		inv, err := tx.Invoices().InsertInvoice(ctx, draft)
		if err != nil {
			return err
		}
		result = ExecuteResult{Shipment: sh, Invoice: inv}
		return nil
	})
	s.observe("execute", err, started)
	if err != nil {
		return ExecuteResult{}, err
	}
	s.record(ctx, tenant, "shipment:execute", "shipment", shipmentID, map[string]any{
		"invoice_id":   result.Invoice.ID,
		"total_amount": result.Invoice.TotalAmount.String(),
	})
	if s.queue != nil {
		if err := s.queue.EnqueueInvoiceRender(ctx, tenant, result.Invoice.ID); err != nil {
			s.logger.Warn("enqueue invoice render", slog.Int64("invoice_id", result.Invoice.ID), slog.Any("error", err))
		}
	}
	return result, nil
}

// CreateSalesOrder records a sales order for a quote owned by tenant, with a draft
// shipment. No stock is allocated.
func (s *Service) CreateSalesOrder(ctx context.Context, tenant string, input CreateSalesOrderInput) (CreateSalesOrderResult, error) {
	if input.TotalPrice != nil && input.TotalPrice.IsNegative() {
		return CreateSalesOrderResult{}, ErrInvalidTotal
	}
	terms, err := normalizeTerms(input.PaymentTerms)
	if err != nil {
		return CreateSalesOrderResult{}, err
	}
	var result CreateSalesOrderResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.Quotes().LockQuote(ctx, tenant, input.QuoteID)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(input.CustomerName)
		if name == "" {
			name = q.CustomerName
		}
		total := q.TotalPrice
		if input.TotalPrice != nil {
			total = *input.TotalPrice
		}
		so, err := tx.InsertSalesOrder(ctx, SalesOrder{
			UserID:        tenant,
			QuoteID:       q.ID,
			CustomerName:  name,
			TotalPrice:    total,
			PaymentTerms:  terms,
			DeliveryTerms: strings.TrimSpace(input.DeliveryTerms),
			Status:        SalesOrderPending,
		})
		if err != nil {
			return err
		}
		sh, err := tx.InsertShipment(ctx, Shipment{UserID: tenant, SalesOrderID: so.ID, CustomerName: name, Status: ShipmentPending})
		if err != nil {
			return err
		}
		result = CreateSalesOrderResult{SalesOrder: so, Shipment: sh}
		return nil
	})
	if err != nil {
		return CreateSalesOrderResult{}, err
	}
	s.record(ctx, tenant, "sales_order:create", "sales_order", result.SalesOrder.ID, map[string]any{"quote_id": input.QuoteID})
	return result, nil
}

// ListSalesOrders returns the tenant's sales orders, newest first.
func (s *Service) ListSalesOrders(ctx context.Context, tenant string) ([]SalesOrder, error) {
	return s.repo.ListSalesOrders(ctx, tenant)
}

// GetSalesOrder returns one sales order owned by tenant.
func (s *Service) GetSalesOrder(ctx context.Context, tenant string, id int64) (SalesOrder, error) {
	return s.repo.GetSalesOrder(ctx, tenant, id)
}

// ListShipmentsForOrder returns the shipments of a sales order owned by tenant.
func (s *Service) ListShipmentsForOrder(ctx context.Context, tenant string, salesOrderID int64) ([]Shipment, error) {
	if _, err := s.repo.GetSalesOrder(ctx, tenant, salesOrderID); err != nil {
		return nil, err
	}
	return s.repo.ListShipments(ctx, tenant, salesOrderID)
}

// ListShipments returns every shipment owned by tenant.
func (s *Service) ListShipments(ctx context.Context, tenant string) ([]Shipment, error) {
	return s.repo.ListShipments(ctx, tenant, 0)
}

// GetShipment returns one shipment owned by tenant.
func (s *Service) GetShipment(ctx context.Context, tenant string, id int64) (Shipment, error) {
	return s.repo.GetShipment(ctx, tenant, id)
}

// UpdateShipment patches logistics fields. Delivery happens through Execute, and closed
// shipments keep their status.
func (s *Service) UpdateShipment(ctx context.Context, tenant string, id int64, input UpdateShipmentInput) (Shipment, error) {
	if input.FreightCost != nil && input.FreightCost.IsNegative() {
		return Shipment{}, ErrInvalidFreight
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return Shipment{}, ErrInvalidShipmentStatus.WithDetails(string(*input.Status))
		}
	}
	dates := []struct {
		raw    *string
		target func(*Shipment, *time.Time)
	}{
		{input.PlannedShipDate, func(sh *Shipment, t *time.Time) { sh.PlannedShipDate = t }},
		{input.ActualShipDate, func(sh *Shipment, t *time.Time) { sh.ActualShipDate = t }},
		{input.EstimatedDeliveryDate, func(sh *Shipment, t *time.Time) { sh.EstimatedDeliveryDate = t }},
		{input.ActualDeliveryDate, func(sh *Shipment, t *time.Time) { sh.ActualDeliveryDate = t }},
	}
	parsed := make([]*time.Time, len(dates))
	for i, d := range dates {
		if d.raw == nil {
			continue
		}
		t, err := parseDate(*d.raw)
		if err != nil {
			return Shipment{}, err
		}
		parsed[i] = t
	}

	var updated Shipment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sh, err := tx.LockShipment(ctx, tenant, id)
		if err != nil {
			return err
		}
		if input.Status != nil && *input.Status != sh.Status {
			if !sh.Status.CanExecute() {
				return ErrShipmentClosed.WithDetails("status is " + string(sh.Status))
			}
			if *input.Status == ShipmentDelivered {
				return ErrDeliverViaExecute
			}
			sh.Status = *input.Status
		}
		for i, d := range dates {
			if d.raw != nil {
				d.target(&sh, parsed[i])
			}
		}
		if input.FreightCost != nil {
			sh.FreightCost = *input.FreightCost
		}
		if input.Carrier != nil {
			sh.Carrier = strings.TrimSpace(*input.Carrier)
		}
		if input.TrackingNumber != nil {
			sh.TrackingNumber = strings.TrimSpace(*input.TrackingNumber)
		}
		if input.ShippingAddress != nil {
			sh.ShippingAddress = strings.TrimSpace(*input.ShippingAddress)
		}
		updated, err = tx.UpdateShipment(ctx, sh)
		return err
	})
	if err != nil {
		return Shipment{}, err
	}
	s.record(ctx, tenant, "shipment:update", "shipment", id, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

func (s *Service) claim(ctx context.Context, tx TxRepository, tenant, scope, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return tx.ClaimIdempotencyKey(ctx, tenant, scope, key)
}

func (s *Service) observe(saga string, err error, started time.Time) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveSaga(saga, err, s.now().Sub(started))
}

func (s *Service) record(ctx context.Context, tenant, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Tenant:   tenant,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

// normalizeTerms defaults empty terms to Net 30 and rejects terms no invoice could use.
func normalizeTerms(raw string) (string, error) {
	terms := strings.TrimSpace(raw)
	if terms == "" {
		return invoices.DefaultPaymentTerms, nil
	}
	if _, err := invoices.DueDate(time.Time{}, terms); err != nil {
		return "", err
	}
	return terms, nil
}

// allocationFor maps a quote line to the stock it draws from. Lines stored before
// dimensions were structured fall back to the printed label; an unreadable label matches
// any dimensions.
func allocationFor(line quotes.LineItem) inventory.Allocation {
	dims := line.Dimensions
	if dims.IsZero() {
		if parsed, err := shared.ParseDimensions(line.DimensionsLabel); err == nil {
			dims = parsed
		}
	}
	return inventory.Allocation{
		MaterialID: line.MaterialID,
		GradeLabel: line.Grade,
		Dimensions: dims,
		Quantity:   line.Quantity,
	}
}

func lineError(n int, line quotes.LineItem, err error) error {
	detail := fmt.Sprintf("line %d: material_id %d, grade %s", n, line.MaterialID, line.Grade)
	if label := line.Dimensions.Label(); label != "" {
		detail += ", " + label
	} else if line.DimensionsLabel != "" {
		detail += ", " + line.DimensionsLabel
	}
	var se *shared.Error
	if errors.As(err, &se) {
		if se.Details != "" {
			detail += ": " + se.Details
		}
		return se.WithDetails(detail)
	}
	return fmt.Errorf("%s: %w", detail, err)
}
