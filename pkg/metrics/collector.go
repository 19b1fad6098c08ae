// Package metrics exposes Prometheus instrumentation for the polling loops.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_polls_total",
			Help: "Total number of getUpdates requests issued per session",
		},
		[]string{"session"},
	)
	pollDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_poll_duration_seconds",
			Help:    "Duration of getUpdates requests in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 90},
		},
		[]string{"session"},
	)
	updatesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_updates_received_total",
			Help: "Total number of updates received from the API per session",
		},
		[]string{"session"},
	)
	updatesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_updates_dropped_total",
			Help: "Total number of updates dropped by the local kind filter",
		},
		[]string{"session"},
	)
	batchesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_batches_emitted_total",
			Help: "Total number of batches forwarded to the sink",
		},
		[]string{"session"},
	)
	recordsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_records_emitted_total",
			Help: "Total number of records forwarded to the sink",
		},
		[]string{"session"},
	)
	malformedResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_malformed_responses_total",
			Help: "Total number of getUpdates responses with ok=false or a missing result",
		},
		[]string{"session"},
	)
	pollErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_poll_errors_total",
			Help: "Total number of fatal poll errors split by kind",
		},
		[]string{"session", "kind"},
	)
	pollCursor = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_poll_cursor",
			Help: "Current acknowledge offset per session",
		},
		[]string{"session"},
	)
	sinkRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_sink_records_total",
			Help: "Total number of records written per sink backend",
		},
		[]string{"sink"},
	)
)

// ObservePoll counts one getUpdates round trip and records its duration.
func ObservePoll(session string, duration time.Duration) {
	pollsTotal.WithLabelValues(session).Inc()
	pollDurationSeconds.WithLabelValues(session).Observe(duration.Seconds())
}

// RecordUpdatesReceived counts updates delivered by the API.
func RecordUpdatesReceived(session string, n int) {
	updatesReceivedTotal.WithLabelValues(session).Add(float64(n))
}

// RecordUpdatesDropped counts updates removed by the local kind filter.
func RecordUpdatesDropped(session string, n int) {
	updatesDroppedTotal.WithLabelValues(session).Add(float64(n))
}

// RecordBatchEmitted counts one forwarded batch of n records.
func RecordBatchEmitted(session string, n int) {
	batchesEmittedTotal.WithLabelValues(session).Inc()
	recordsEmittedTotal.WithLabelValues(session).Add(float64(n))
}

// RecordMalformedResponse counts a response that was silently retried.
func RecordMalformedResponse(session string) {
	malformedResponsesTotal.WithLabelValues(session).Inc()
}

// RecordPollError counts a fatal poll error of the given kind
// ("conflict", "transport", "sink").
func RecordPollError(session, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	pollErrorsTotal.WithLabelValues(session, kind).Inc()
}

// SetCursor publishes the session's current acknowledge offset.
func SetCursor(session string, cursor int64) {
	pollCursor.WithLabelValues(session).Set(float64(cursor))
}

// RecordSinkRecords counts records written by a sink backend.
func RecordSinkRecords(sink string, n int) {
	sinkRecordsTotal.WithLabelValues(sink).Add(float64(n))
}
