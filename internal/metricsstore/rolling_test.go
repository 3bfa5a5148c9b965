package metricsstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

func TestIngestAndQueryWithinWindow(t *testing.T) {
	s := New()
	defer s.Close()

	now := time.Now().UnixMilli()
	s.Ingest(model.MetricSample{Name: "test.metric", Value: 1, TimestampMs: now})
	s.Ingest(model.MetricSample{Name: "test.metric", Value: 3, TimestampMs: now})

	require.Eventually(t, func() bool {
		return len(s.Query("test.metric", Window1m)) == 2
	}, time.Second, time.Millisecond)

	samples := s.Query("test.metric", Window1m)
	assert.InDelta(t, 2.0, Average(samples), 1e-9)
}

func TestQueryExcludesSamplesOutsideWindow(t *testing.T) {
	s := New()
	defer s.Close()

	old := time.Now().Add(-2 * time.Hour).UnixMilli()
	s.Ingest(model.MetricSample{Name: "test.metric", Value: 99, TimestampMs: old})
	time.Sleep(20 * time.Millisecond) // let the drain goroutine prune it

	assert.Empty(t, s.Query("test.metric", Window1h))
}

func TestAlertFiresOnceWithinCooldown(t *testing.T) {
	s := New()
	defer s.Close()
	s.SetRules([]AlertRule{
		{
			Kind: AlertHighFailureStreak, MetricName: "service.failure_streak",
			Window: Window5m, Threshold: 2, Cooldown: time.Hour,
			Comparator: func(v, t float64) bool { return v >= t },
		},
	})
	alerts := s.Alerts()

	now := time.Now().UnixMilli()
	s.Ingest(model.MetricSample{Name: "service.failure_streak", Value: 5, TimestampMs: now})
	var first Alert
	select {
	case first = <-alerts:
	case <-time.After(time.Second):
		t.Fatal("expected an alert to fire")
	}
	assert.Equal(t, AlertHighFailureStreak, first.Kind)

	s.Ingest(model.MetricSample{Name: "service.failure_streak", Value: 5, TimestampMs: now})
	select {
	case <-alerts:
		t.Fatal("alert should be deduped within cooldown")
	case <-time.After(100 * time.Millisecond):
	}
}
