package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceRender pre-renders an invoice PDF into the cache.
	TaskInvoiceRender = "invoice:render"
	// TaskInvoiceOverdueSweep flips Pending invoices past their due date to Overdue.
	TaskInvoiceOverdueSweep = "invoice:overdue_sweep"
	// TaskAllocationAudit reports inventory rows whose counters break the ledger rules.
	TaskAllocationAudit = "inventory:allocation_audit"
	// TaskIdempotencyCleanup drops idempotency keys past their retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// DefaultIdempotencyRetention is how long saga keys are remembered.
const DefaultIdempotencyRetention = 7 * 24 * time.Hour

// InvoiceRenderPayload identifies the invoice to render.
type InvoiceRenderPayload struct {
	Tenant    string `json:"tenant"`
	InvoiceID int64  `json:"invoice_id"`
}

// NewInvoiceRenderTask constructs the render task. Enqueueing the same invoice twice
// while the first task is pending is rejected by asynq as a duplicate.
func NewInvoiceRenderTask(tenant string, invoiceID int64) (*asynq.Task, error) {
	if tenant == "" || invoiceID <= 0 {
		return nil, fmt.Errorf("jobs: invoice render needs tenant and invoice id")
	}
	body, err := json.Marshal(InvoiceRenderPayload{Tenant: tenant, InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceRender, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(fmt.Sprintf("%s:%d", TaskInvoiceRender, invoiceID)),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
	), nil
}

// NewOverdueSweepTask constructs the scheduled sweep task.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskInvoiceOverdueSweep, nil, asynq.Queue(QueueDefault))
}

// NewAllocationAuditTask constructs the scheduled audit task.
func NewAllocationAuditTask() *asynq.Task {
	return asynq.NewTask(TaskAllocationAudit, nil, asynq.Queue(QueueDefault))
}

// IdempotencyCleanupPayload carries the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
