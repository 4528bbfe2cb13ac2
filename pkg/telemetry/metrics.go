package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus instruments scraped from /metrics.
type Metrics struct {
	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	reportRecords   *prometheus.HistogramVec
	reportDuration  *prometheus.HistogramVec
	exportBytes     *prometheus.HistogramVec
	billingFailures *prometheus.CounterVec
}

// NewMetrics registers the instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shelterbill_api_requests_total",
		Help: "Counts API requests by method, route and status.",
	}, []string{"method", "route", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelterbill_api_duration_seconds",
		Help:    "API request latency per method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	reportRecords := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelterbill_report_records",
		Help:    "Number of service records scanned per report.",
		Buckets: []float64{0, 10, 100, 1000, 10000, 100000},
	}, []string{"granularity"})

	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelterbill_report_duration_seconds",
		Help:    "Report aggregation latency by granularity.",
		Buckets: prometheus.DefBuckets,
	}, []string{"granularity"})

	exportBytes := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelterbill_export_bytes",
		Help:    "Size of rendered report exports by format.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	}, []string{"format"})

	billingFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shelterbill_billing_failures_total",
		Help: "Billing resolutions that did not produce a snapshot, by reason.",
	}, []string{"reason"})

	if reg != nil {
		reg.MustRegister(
			apiRequests,
			apiDuration,
			reportRecords,
			reportDuration,
			exportBytes,
			billingFailures,
		)
	}

	return &Metrics{
		apiRequests:     apiRequests,
		apiDuration:     apiDuration,
		reportRecords:   reportRecords,
		reportDuration:  reportDuration,
		exportBytes:     exportBytes,
		billingFailures: billingFailures,
	}
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := sanitizeLabel(method)
	routeLabel := sanitizeLabel(route)
	m.apiRequests.WithLabelValues(methodLabel, routeLabel, status).Inc()
	m.apiDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}

// ObserveReport records how many records a report scanned and how long it took.
func (m *Metrics) ObserveReport(granularity string, records int, duration time.Duration) {
	if m == nil {
		return
	}
	label := sanitizeLabel(granularity)
	m.reportRecords.WithLabelValues(label).Observe(float64(records))
	m.reportDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveExport records the rendered size of an export.
func (m *Metrics) ObserveExport(format string, size int) {
	if m == nil {
		return
	}
	m.exportBytes.WithLabelValues(sanitizeLabel(format)).Observe(float64(size))
}

// RecordBillingFailure counts a failed price resolution.
func (m *Metrics) RecordBillingFailure(reason string) {
	if m == nil {
		return
	}
	m.billingFailures.WithLabelValues(sanitizeLabel(reason)).Inc()
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
