package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("inventory:low_stock_scan").End(nil))
	failure := errors.New("boom")
	assert.Same(t, failure, m.Track("inventory:low_stock_scan").End(failure))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("inventory:low_stock_scan", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("inventory:low_stock_scan", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("inventory:low_stock_scan")))
}

func TestCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddLowStockAlerts("bill", 2)
	m.AddLowStockAlerts("", 1)
	m.AddLowStockAlerts("scan", 0)
	m.AddCleanedKeys(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.lowStock.WithLabelValues("bill")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lowStock.WithLabelValues("unknown")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lowStock.WithLabelValues("scan")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.cleanedUp))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddLowStockAlerts("bill", 1)
		m.AddCleanedKeys(1)
		_ = m.Track("job").End(nil)
	})
}
