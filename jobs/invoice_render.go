package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/metalyard/metalyard/internal/jobs"
	"github.com/metalyard/metalyard/internal/shared"
)

// InvoiceRenderer renders an invoice and stores the PDF in the cache.
type InvoiceRenderer interface {
	RenderPDF(ctx context.Context, tenant string, id int64) ([]byte, error)
}

// InvoiceRenderJob warms the PDF cache after an invoice is created.
type InvoiceRenderJob struct {
	Renderer InvoiceRenderer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewInvoiceRenderJob initialises the render handler.
func NewInvoiceRenderJob(renderer InvoiceRenderer, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceRenderJob {
	return &InvoiceRenderJob{Renderer: renderer, Logger: logger, Metrics: metrics}
}

// Handle renders one invoice. Invoices that no longer resolve are not retried.
func (j *InvoiceRenderJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Renderer == nil {
		return errors.New("invoice render: handler not configured")
	}
	var payload InvoiceRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invoice render: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskInvoiceRender)
	defer func() {
		err = tracker.End(err)
	}()

	logger := runLogger(j.Logger, TaskInvoiceRender).With(slog.Int64("invoice_id", payload.InvoiceID))
	pdf, err := j.Renderer.RenderPDF(ctx, payload.Tenant, payload.InvoiceID)
	if err != nil {
		switch shared.KindOf(err) {
		case shared.KindNotFound, shared.KindUnavailable:
			logger.Warn("invoice render skipped", slog.Any("error", err))
			return fmt.Errorf("invoice render: %v: %w", err, asynq.SkipRetry)
		}
		logger.Error("invoice render failed", slog.Any("error", err))
		return err
	}
	logger.Info("invoice rendered", slog.Int("bytes", len(pdf)))
	return nil
}
