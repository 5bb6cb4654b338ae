package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("ledger:integrity").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:integrity").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:integrity")))
}

func TestAddDrift(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddDrift(4, 2)
	m.AddDrift(4, 0)
	m.AddDrift(0, 1)

	require.Equal(t, 2.0, testutil.ToFloat64(m.drift.WithLabelValues("4")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.drift.WithLabelValues("0")))
}

func TestNilMetricsTrack(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	m.AddDrift(1, 1)
}
