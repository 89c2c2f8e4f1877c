package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbus-billing/nimbus-billing/internal/platform/db"
	"github.com/nimbus-billing/nimbus-billing/internal/settings"

	jobmetrics "github.com/nimbus-billing/nimbus-billing/internal/jobs"
)

// InvoiceEmailJob announces an invoice to the customer once it is marked
// sent. Actual SMTP delivery is a placeholder; the job resolves and logs
// everything a mailer needs.
type InvoiceEmailJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewInvoiceEmailJob initialises the email handler.
func NewInvoiceEmailJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceEmailJob {
	return &InvoiceEmailJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle resolves the invoice and logs the delivery intent.
func (j *InvoiceEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("invoice email: handler not configured")
	}
	var payload InvoiceEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskInvoiceEmail)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("invoice_id", payload.InvoiceID))

	var (
		invoiceNumber string
		grandTotal    pgtype.Numeric
		customerName  string
		email         pgtype.Text
	)
	err := j.Pool.QueryRow(ctx, `
		SELECT i.invoice_number, i.grand_total, c.customer_name, c.email
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		WHERE i.id = $1`,
		payload.InvoiceID,
	).Scan(&invoiceNumber, &grandTotal, &customerName, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		logger.Warn("invoice vanished before email delivery")
		return asynq.SkipRetry
	}
	if err != nil {
		resultErr = err
		logger.Error("load invoice for email", slog.Any("error", err))
		return resultErr
	}

	if !email.Valid || email.String == "" {
		logger.Info("customer has no email address, skipping delivery",
			slog.String("invoice_number", invoiceNumber),
			slog.String("customer", customerName),
		)
		return resultErr
	}

	amount, err := db.NumericToDecimal(grandTotal)
	if err != nil {
		resultErr = err
		return resultErr
	}

	companyName := settings.Defaults().CompanyName
	if err := j.Pool.QueryRow(ctx, `SELECT company_name FROM company_settings WHERE id = 1`).Scan(&companyName); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		logger.Warn("load company settings", slog.Any("error", err))
	}

	// TODO: hand the message to an SMTP relay once one is provisioned.
	logger.Info("invoice email ready for delivery",
		slog.String("to", email.String),
		slog.String("invoice_number", invoiceNumber),
		slog.String("customer", customerName),
		slog.String("amount", amount.String()),
		slog.String("from_company", companyName),
	)
	return resultErr
}

func (j *InvoiceEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInvoiceEmail))
	}
	return slog.Default().With(slog.String("job", TaskInvoiceEmail))
}

func (j *InvoiceEmailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
