package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/nimbus-billing/nimbus-billing/internal/jobs"
)

// SessionPurger deletes expired sessions. Implemented by auth.Service.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionsCleanupJob removes session rows past their expiry.
type SessionsCleanupJob struct {
	Sessions SessionPurger
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewSessionsCleanupJob initialises the cleanup handler.
func NewSessionsCleanupJob(sessions SessionPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionsCleanupJob {
	return &SessionsCleanupJob{
		Sessions: sessions,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the cleanup.
func (j *SessionsCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sessions == nil {
		return errors.New("sessions cleanup: handler not configured")
	}
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSessionsCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	removed, err := j.Sessions.PurgeExpiredSessions(ctx, j.now())
	if err != nil {
		resultErr = err
		j.logger().Error("session cleanup failed", slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("expired sessions removed", slog.Int64("removed", removed))
	return resultErr
}

func (j *SessionsCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSessionsCleanup))
	}
	return slog.Default().With(slog.String("job", TaskSessionsCleanup))
}

func (j *SessionsCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SessionsCleanupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
