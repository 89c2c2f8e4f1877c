package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nimbus-billing/nimbus-billing/internal/platform/db"

	jobmetrics "github.com/nimbus-billing/nimbus-billing/internal/jobs"
)

// ReconcileJob repairs drift between the stored customer aggregates and
// the invoice table. The invoice flow recomputes the aggregates inside
// its own transaction, so under normal operation this job finds nothing.
type ReconcileJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReconcileJob initialises the reconciliation handler.
func NewReconcileJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type driftRow struct {
	CustomerID   int64
	StoredCount  int
	ActualCount  int
	StoredAmount decimal.Decimal
	ActualAmount decimal.Decimal
}

// Handle executes the reconciliation sweep.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("aggregates reconcile: handler not configured")
	}
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskAggregatesReconcile)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting aggregate reconciliation")

	repaired, err := j.reconcile(ctx)
	if err != nil {
		resultErr = err
		logger.Error("reconciliation failed", slog.Any("error", err))
		return resultErr
	}

	for _, row := range repaired {
		logger.Warn("customer aggregate drift repaired",
			slog.Int64("customer_id", row.CustomerID),
			slog.Int("stored_invoices", row.StoredCount),
			slog.Int("actual_invoices", row.ActualCount),
			slog.String("stored_amount", row.StoredAmount.String()),
			slog.String("actual_amount", row.ActualAmount.String()),
		)
		if row.StoredCount != row.ActualCount {
			j.metrics().AddDrift("total_invoices", row.CustomerID, 1)
		}
		if !row.StoredAmount.Equal(row.ActualAmount) {
			j.metrics().AddDrift("total_amount", row.CustomerID, 1)
		}
	}

	logger.Info("completed aggregate reconciliation",
		slog.Int("repaired", len(repaired)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

// reconcile updates every customer whose stored totals disagree with the
// recomputed ones and returns the rows it touched.
func (j *ReconcileJob) reconcile(ctx context.Context) ([]driftRow, error) {
	if j.Pool == nil {
		return nil, errors.New("aggregates reconcile: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `
		WITH stats AS (
			SELECT c.id AS customer_id,
				c.total_invoices AS stored_count,
				c.total_amount AS stored_amount,
				COUNT(i.id) AS actual_count,
				COALESCE(SUM(i.grand_total), 0) AS actual_amount
			FROM customers c
			LEFT JOIN invoices i ON i.customer_id = c.id
			GROUP BY c.id, c.total_invoices, c.total_amount
		)
		UPDATE customers
		SET total_invoices = stats.actual_count,
			total_amount = stats.actual_amount,
			updated_at = NOW()
		FROM stats
		WHERE customers.id = stats.customer_id
			AND (customers.total_invoices <> stats.actual_count
				OR customers.total_amount <> stats.actual_amount)
		RETURNING customers.id, stats.stored_count, stats.actual_count,
			stats.stored_amount, stats.actual_amount`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repaired []driftRow
	for rows.Next() {
		var row driftRow
		var stored, actual pgtype.Numeric
		if err := rows.Scan(&row.CustomerID, &row.StoredCount, &row.ActualCount, &stored, &actual); err != nil {
			return nil, err
		}
		if row.StoredAmount, err = db.NumericToDecimal(stored); err != nil {
			return nil, err
		}
		if row.ActualAmount, err = db.NumericToDecimal(actual); err != nil {
			return nil, err
		}
		repaired = append(repaired, row)
	}
	return repaired, rows.Err()
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAggregatesReconcile))
	}
	return slog.Default().With(slog.String("job", TaskAggregatesReconcile))
}

func (j *ReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReconcileJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
