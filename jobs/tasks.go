package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/nimbus-billing/nimbus-billing/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceEmail delivers the invoice notification after a status
	// change to sent.
	TaskInvoiceEmail = "invoice:email"
	// TaskAggregatesReconcile recomputes the denormalized customer totals.
	TaskAggregatesReconcile = "aggregates:reconcile"
	// TaskSessionsCleanup removes expired session rows.
	TaskSessionsCleanup = "sessions:cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// InvoiceEmailPayload identifies the invoice to announce.
type InvoiceEmailPayload struct {
	InvoiceID int64 `json:"invoice_id"`
}

// NewInvoiceEmailTask constructs an Asynq task for one invoice email.
func NewInvoiceEmailTask(invoiceID int64) (*asynq.Task, error) {
	body, err := json.Marshal(InvoiceEmailPayload{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceEmail, body, asynq.Queue(QueueDefault)), nil
}

// ScheduledPayload carries scheduling metadata for cron-fired tasks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAggregatesReconcileTask constructs the nightly reconciliation task.
func NewAggregatesReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAggregatesReconcile, body, asynq.Queue(QueueDefault)), nil
}

// NewSessionsCleanupTask constructs the nightly session cleanup task.
func NewSessionsCleanupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsCleanup, body, asynq.Queue(QueueDefault)), nil
}
