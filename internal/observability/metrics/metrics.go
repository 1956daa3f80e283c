package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	metricPrefix = "splits_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	pipelineRuns    *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec
	mattersTotal    prometheus.Counter
	droppedRows     *prometheus.CounterVec
	malformedValues *prometheus.CounterVec
	policyWarnings  prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	inboundRequests *prometheus.CounterVec
	inboundRejected *prometheus.CounterVec

	deliveriesTotal *prometheus.CounterVec
	upstreamCalls   *prometheus.CounterVec
)

// Init registers metrics. A non-nil db adds store-backed gauges.
func Init(db *sql.DB, logger *logrus.Logger) {
	registerOnce.Do(func() {
		pipelineRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_runs_total",
				Help: "Total attribution pipeline runs by result",
			},
			[]string{"result"},
		)
		pipelineLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_latency_seconds",
				Help:    "Attribution pipeline latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		mattersTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "matters_total",
				Help: "Total matters attributed",
			},
		)
		droppedRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dropped_rows_total",
				Help: "Rows dropped for lacking a bill id, by source",
			},
			[]string{"source"},
		)
		malformedValues = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "malformed_amounts_total",
				Help: "Amount values coerced to zero, by source",
			},
			[]string{"source"},
		)
		policyWarnings = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "policy_warnings_total",
				Help: "Policy percentages outside [0,1] seen by runs",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report renders by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report render latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		inboundRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "inbound_requests_total",
				Help: "Inbound webhook requests by result",
			},
			[]string{"result"},
		)
		inboundRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "inbound_rejected_total",
				Help: "Inbound webhook rejections by reason",
			},
			[]string{"reason"},
		)

		deliveriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "deliveries_total",
				Help: "Report deliveries by channel and result",
			},
			[]string{"channel", "result"},
		)
		upstreamCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_requests_total",
				Help: "Billing API requests by status class",
			},
			[]string{"status"},
		)

		prometheus.MustRegister(
			pipelineRuns,
			pipelineLatency,
			mattersTotal,
			droppedRows,
			malformedValues,
			policyWarnings,
			exportTotal,
			exportLatency,
			inboundRequests,
			inboundRejected,
			deliveriesTotal,
			upstreamCalls,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObservePipelineRun records pipeline duration and result.
func ObservePipelineRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pipelineRuns != nil {
		pipelineRuns.WithLabelValues(result).Inc()
	}
	if pipelineLatency != nil {
		pipelineLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddMatters increments the attributed matters counter.
func AddMatters(count int) {
	if count <= 0 || mattersTotal == nil {
		return
	}
	mattersTotal.Add(float64(count))
}

// AddDroppedRows counts rows dropped for a source ("payments" or "fees").
func AddDroppedRows(source string, count int) {
	if count <= 0 {
		return
	}
	if source == "" {
		source = "unknown"
	}
	if droppedRows != nil {
		droppedRows.WithLabelValues(source).Add(float64(count))
	}
}

// AddMalformedAmounts counts amounts coerced to zero for a source.
func AddMalformedAmounts(source string, count int) {
	if count <= 0 {
		return
	}
	if source == "" {
		source = "unknown"
	}
	if malformedValues != nil {
		malformedValues.WithLabelValues(source).Add(float64(count))
	}
}

// AddPolicyWarnings counts out-of-range policy values.
func AddPolicyWarnings(count int) {
	if count <= 0 || policyWarnings == nil {
		return
	}
	policyWarnings.Add(float64(count))
}

// ObserveReportExport records render latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncInbound records an inbound webhook request result.
func IncInbound(result string) {
	if result == "" {
		result = resultSuccess
	}
	if inboundRequests != nil {
		inboundRequests.WithLabelValues(result).Inc()
	}
}

// IncInboundRejected records why an inbound request was rejected.
func IncInboundRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if inboundRejected != nil {
		inboundRejected.WithLabelValues(reason).Inc()
	}
}

// IncDelivery records an email or webhook delivery.
func IncDelivery(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if deliveriesTotal != nil {
		deliveriesTotal.WithLabelValues(channel, result).Inc()
	}
}

// IncUpstream records a billing API response status class ("2xx", "4xx", "error").
func IncUpstream(status string) {
	if status == "" {
		status = "unknown"
	}
	if upstreamCalls != nil {
		upstreamCalls.WithLabelValues(status).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
