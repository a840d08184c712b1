package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/metalyard/metalyard/internal/inventory"
	jobmetrics "github.com/metalyard/metalyard/internal/jobs"
)

// AnomalySource lists inventory rows whose counters break the ledger rules.
type AnomalySource interface {
	Anomalies(ctx context.Context) ([]inventory.Anomaly, error)
}

// AllocationAuditJob logs and publishes inventory counter anomalies.
type AllocationAuditJob struct {
	Inventory AnomalySource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewAllocationAuditJob initialises the audit handler.
func NewAllocationAuditJob(source AnomalySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *AllocationAuditJob {
	return &AllocationAuditJob{Inventory: source, Logger: logger, Metrics: metrics}
}

// Handle executes the audit.
func (j *AllocationAuditJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Inventory == nil {
		return errors.New("allocation audit: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAllocationAudit)
	defer func() {
		err = tracker.End(err)
	}()

	logger := runLogger(j.Logger, TaskAllocationAudit)
	anomalies, err := j.Inventory.Anomalies(ctx)
	if err != nil {
		logger.Error("allocation audit failed", slog.Any("error", err))
		return err
	}
	counts := make(map[string]int, len(inventory.AnomalyReasons))
	for _, a := range anomalies {
		counts[a.Reason]++
		logger.Warn("inventory anomaly",
			slog.Int64("item_id", a.ItemID),
			slog.String("tenant", a.UserID),
			slog.Float64("on_hand", a.OnHand),
			slog.Float64("allocated", a.Allocated),
			slog.String("reason", a.Reason),
		)
	}
	j.Metrics.SetAllocationAnomalies(counts, inventory.AnomalyReasons...)
	logger.Info("allocation audit completed", slog.Int("anomalies", len(anomalies)))
	return nil
}
