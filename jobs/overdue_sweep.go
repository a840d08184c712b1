package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/metalyard/metalyard/internal/jobs"
)

// OverdueMarker flips Pending invoices due before asOf to Overdue across tenants.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// OverdueSweepJob runs the overdue sweep.
type OverdueSweepJob struct {
	Invoices OverdueMarker
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewOverdueSweepJob initialises the sweep handler.
func NewOverdueSweepJob(invoices OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{
		Invoices: invoices,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *OverdueSweepJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskInvoiceOverdueSweep)
	defer func() {
		err = tracker.End(err)
	}()

	asOf := j.clock()
	logger := runLogger(j.Logger, TaskInvoiceOverdueSweep)
	count, err := j.Invoices.MarkOverdue(ctx, asOf)
	if err != nil {
		logger.Error("overdue sweep failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddOverdueInvoices(count)
	logger.Info("overdue sweep completed", slog.Int64("marked", count), slog.Time("as_of", asOf))
	return nil
}
