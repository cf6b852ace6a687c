package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsCountsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("grace-sweep")
	m.IncSuccess("grace-sweep")
	m.IncFailure("grace-sweep")
	m.IncFailure("")

	successes := m.runs.WithLabelValues("grace-sweep", resultSuccess)
	if got := testutil.ToFloat64(successes); got != 2 {
		t.Fatalf("successes = %v, want 2", got)
	}
	failures := m.runs.WithLabelValues("grace-sweep", resultFailure)
	if got := testutil.ToFloat64(failures); got != 1 {
		t.Fatalf("failures = %v, want 1", got)
	}
	unknown := m.runs.WithLabelValues("unknown", resultFailure)
	if got := testutil.ToFloat64(unknown); got != 1 {
		t.Fatalf("blank job name must be counted as unknown, got %v", got)
	}
}

func TestCronJobMetricsObservesDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("grace-sweep", 1500*time.Millisecond)

	if got := testutil.CollectAndCount(m.duration, "gembot_cron_run_duration_seconds"); got != 1 {
		t.Fatalf("expected one duration series, got %d", got)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.IncSuccess("grace-sweep")
	m.IncFailure("grace-sweep")
	m.ObserveDuration("grace-sweep", time.Second)

	unregistered := NewCronJobMetrics(nil)
	unregistered.IncSuccess("grace-sweep")
	unregistered.ObserveDuration("grace-sweep", time.Second)
}
