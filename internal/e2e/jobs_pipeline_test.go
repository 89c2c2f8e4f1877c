package e2e

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/nimbus-billing/nimbus-billing/internal/jobs"
	"github.com/nimbus-billing/nimbus-billing/jobs"
)

type stubPurger struct {
	calls   []time.Time
	removed int64
	err     error
}

func (s *stubPurger) PurgeExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.calls = append(s.calls, now)
	return s.removed, s.err
}

func TestSessionsCleanupJobRecordsMetrics(t *testing.T) {
	purger := &stubPurger{removed: 7}
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	job := jobs.NewSessionsCleanupJob(purger, nil, metrics)
	task, err := jobs.NewSessionsCleanupTask(time.Now().UTC())
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("job handle: %v", err)
	}
	if len(purger.calls) != 1 {
		t.Fatalf("expected 1 purge call, got %d", len(purger.calls))
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if !assertCounter(t, families, "nimbus_jobs_total", map[string]string{"job": jobs.TaskSessionsCleanup, "status": "success"}, 1) {
		t.Fatalf("expected nimbus_jobs_total increment for session cleanup")
	}
	if !metricExists(families, "nimbus_job_duration_seconds") {
		t.Fatalf("expected nimbus_job_duration_seconds to be recorded")
	}
}

func TestSessionsCleanupJobCountsFailures(t *testing.T) {
	purger := &stubPurger{err: errors.New("connection reset")}
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	job := jobs.NewSessionsCleanupJob(purger, nil, metrics)
	task, err := jobs.NewSessionsCleanupTask(time.Now().UTC())
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := job.Handle(context.Background(), task); err == nil {
		t.Fatal("expected purge error to propagate")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if !assertCounter(t, families, "nimbus_jobs_failures_total", map[string]string{"job": jobs.TaskSessionsCleanup}, 1) {
		t.Fatalf("expected nimbus_jobs_failures_total increment")
	}
	if !assertCounter(t, families, "nimbus_jobs_total", map[string]string{"job": jobs.TaskSessionsCleanup, "status": "failure"}, 1) {
		t.Fatalf("expected failure status on nimbus_jobs_total")
	}
}

func assertCounter(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string, expected float64) bool {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				if metric.GetCounter() == nil {
					return false
				}
				if metric.GetCounter().GetValue() == expected {
					return true
				}
			}
		}
	}
	return false
}

func metricExists(families []*dto.MetricFamily, name string) bool {
	for _, fam := range families {
		if fam.GetName() == name {
			return true
		}
	}
	return false
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	if len(expected) == 0 {
		return true
	}
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}
