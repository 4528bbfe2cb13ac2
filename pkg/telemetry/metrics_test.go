package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestObserveAPIRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveAPIRequest("GET", "/api/reports", "200", 15*time.Millisecond)
	m.ObserveAPIRequest("GET", "", "404", time.Millisecond)

	mf := gather(t, reg, "shelterbill_api_requests_total")
	require.Len(t, mf.GetMetric(), 2)

	labels := map[string]string{}
	for _, metric := range mf.GetMetric() {
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "route" {
				labels[lp.GetValue()] = lp.GetValue()
			}
		}
		assert.Equal(t, float64(1), metric.GetCounter().GetValue())
	}
	assert.Contains(t, labels, "unknown")
	assert.Contains(t, labels, "/api/reports")
}

func TestObserveReportAndExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveReport("month", 42, time.Second)
	m.ObserveExport("csv", 2048)
	m.RecordBillingFailure("no_price")

	mf := gather(t, reg, "shelterbill_report_records")
	assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
	assert.Equal(t, float64(42), mf.GetMetric()[0].GetHistogram().GetSampleSum())

	mf = gather(t, reg, "shelterbill_billing_failures_total")
	assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAPIRequest("GET", "/", "200", time.Second)
		m.ObserveReport("day", 1, time.Second)
		m.ObserveExport("pdf", 1)
		m.RecordBillingFailure("x")
	})
}
