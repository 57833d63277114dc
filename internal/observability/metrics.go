// Package observability holds the Prometheus collectors shared by the client and the tracker.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelhealth",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Requests issued to the Model Health service grouped by operation and status code.",
	}, []string{"op", "code"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "modelhealth",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Latency of requests to the Model Health service.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	fetchDroppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelhealth",
		Subsystem: "fetch",
		Name:      "dropped_items_total",
		Help:      "Batch download items dropped from results, grouped by kind and reason.",
	}, []string{"kind", "reason"})

	calibrationEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelhealth",
		Subsystem: "calibration",
		Name:      "events_total",
		Help:      "Calibration progress events grouped by outcome (delivered, malformed, out_of_order).",
	}, []string{"outcome"})

	trackerPollCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelhealth",
		Subsystem: "tracker",
		Name:      "polls_total",
		Help:      "Job status polls grouped by job kind and result.",
	}, []string{"kind", "result"})

	trackerTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelhealth",
		Subsystem: "tracker",
		Name:      "transitions_total",
		Help:      "Job state transitions observed by the tracker.",
	}, []string{"kind", "state"})

	trackerBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "modelhealth",
		Subsystem: "tracker",
		Name:      "batch_duration_seconds",
		Help:      "Time spent polling one batch of tracked jobs.",
		Buckets:   prometheus.DefBuckets,
	})

	trackerLastPollGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "modelhealth",
		Subsystem: "tracker",
		Name:      "last_poll_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed tracker batch.",
	})
)

func init() {
	prometheus.MustRegister(
		requestCounter,
		requestDuration,
		fetchDroppedCounter,
		calibrationEventCounter,
		trackerPollCounter,
		trackerTransitionCounter,
		trackerBatchDuration,
		trackerLastPollGauge,
	)
}

// RecordRequest counts one finished request. code is 0 when no response arrived.
func RecordRequest(op string, code int, elapsed time.Duration) {
	label := "none"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	requestCounter.WithLabelValues(op, label).Inc()
	requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordFetchDropped counts one batch item left out of a result.
func RecordFetchDropped(kind, reason string) {
	fetchDroppedCounter.WithLabelValues(kind, reason).Inc()
}

// RecordCalibrationEvent counts one calibration stream event by outcome.
func RecordCalibrationEvent(outcome string) {
	calibrationEventCounter.WithLabelValues(outcome).Inc()
}

// RecordTrackerPoll counts one status poll made by the tracker.
func RecordTrackerPoll(kind, result string) {
	trackerPollCounter.WithLabelValues(kind, result).Inc()
}

// RecordTrackerTransition counts one persisted job state change.
func RecordTrackerTransition(kind, state string) {
	trackerTransitionCounter.WithLabelValues(kind, state).Inc()
}

// RecordTrackerBatch observes the duration of a batch and moves the watermark.
func RecordTrackerBatch(elapsed time.Duration, finished time.Time) {
	trackerBatchDuration.Observe(elapsed.Seconds())
	if finished.IsZero() {
		return
	}
	trackerLastPollGauge.Set(float64(finished.Unix()))
}

// FetchDropped exposes the dropped-items counter to tests.
func FetchDropped(kind, reason string) prometheus.Counter {
	return fetchDroppedCounter.WithLabelValues(kind, reason)
}

// CalibrationEvents exposes the calibration event counter to tests.
func CalibrationEvents(outcome string) prometheus.Counter {
	return calibrationEventCounter.WithLabelValues(outcome)
}
