// Package metrics provides Prometheus metrics for the import console.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// Parse metrics
	FilesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_files_parsed_total",
			Help: "Total number of parse attempts",
		},
		[]string{"target", "format", "outcome"},
	)

	RecordsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_records_parsed_total",
			Help: "Total number of records produced by successful parses",
		},
		[]string{"target", "format"},
	)

	// Upload metrics
	RecordsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_records_submitted_total",
			Help: "Total number of records sent to the master-data API",
		},
		[]string{"target", "outcome"},
	)

	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "import_upload_duration_seconds",
			Help:    "Duration of complete upload sequences",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		},
		[]string{"target", "outcome"},
	)

	// API client metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "masterdata_api_request_duration_seconds",
			Help:    "Duration of requests to the master-data API",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "import_sessions_active",
			Help: "Number of live import sessions",
		},
	)
)

// RecordParse records the outcome of one parse attempt.
func RecordParse(target, format string, records int, ok bool) {
	if !ok {
		FilesParsed.WithLabelValues(target, format, OutcomeFailure).Inc()
		return
	}
	FilesParsed.WithLabelValues(target, format, OutcomeSuccess).Inc()
	RecordsParsed.WithLabelValues(target, format).Add(float64(records))
}

// RecordUpload records a finished upload sequence. failed is the number of
// records whose request failed (0 or 1 for fail-fast uploads).
func RecordUpload(target string, submitted, failed int, duration time.Duration, ok bool) {
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	RecordsSubmitted.WithLabelValues(target, OutcomeSuccess).Add(float64(submitted))
	if failed > 0 {
		RecordsSubmitted.WithLabelValues(target, OutcomeFailure).Add(float64(failed))
	}
	UploadDuration.WithLabelValues(target, outcome).Observe(duration.Seconds())
}

// ObserveAPIRequest records one request to the master-data API.
// status 0 means the request failed before a response was received.
func ObserveAPIRequest(method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequestDuration.WithLabelValues(method, label).Observe(duration.Seconds())
}
