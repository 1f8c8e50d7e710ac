package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_RecordsRegenerationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheus(reg, "test")

	c.RecordRegenerationAttempt()
	c.RecordRegenerationAttempt()
	c.RecordRegenerationOutcome("failed", "backup")
	c.RecordRegenerationOutcome("success", "")
	c.SetActiveRegenerations(3)
	c.RecordStaleSweep(2)
	c.ObserveRegenerationDuration(0.3)
	c.RecordBackup(1024)
	c.RecordNotification("error")
	c.RecordNotification("error")

	assert.InDelta(t, 2, testutil.ToFloat64(c.attempts), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(c.outcomes.WithLabelValues("failed", "backup")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(c.outcomes.WithLabelValues("success", "none")), 0.001)
	assert.InDelta(t, 3, testutil.ToFloat64(c.active), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(c.staleSweeps), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(c.notices.WithLabelValues("error")), 0.001)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_regeneration_duration_seconds")
	assert.Contains(t, names, "test_backup_size_bytes")
}

func TestNopMetrics_DoesNotPanic(t *testing.T) {
	var c Collector = NewNop()
	assert.NotPanics(t, func() {
		c.RecordRegenerationAttempt()
		c.RecordRegenerationOutcome("failed", "system")
		c.ObserveRegenerationDuration(1)
		c.SetActiveRegenerations(1)
		c.RecordStaleSweep(1)
		c.RecordBackup(1)
		c.RecordNotification("info")
	})
}
