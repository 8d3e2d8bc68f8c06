package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerCountsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("alerts:refresh").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("alerts:refresh").End(boom), boom)
	m.AddAffected("alerts:refresh", 3)
	m.AddAffected("alerts:refresh", 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("alerts:refresh", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("alerts:refresh", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("alerts:refresh")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.affected.WithLabelValues("alerts:refresh")))
}

func TestNilTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
}
