package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	// streamMessagesTotal tracks messages read from the event stream by
	// topic and payload format
	streamMessagesTotal *prometheus.CounterVec

	// eventsTotal tracks what the relay did with each message
	eventsTotal *prometheus.CounterVec

	// publishDuration tracks latency of status posts
	publishDuration prometheus.Histogram

	// timelineStatusesTotal tracks statuses received from the timeline
	timelineStatusesTotal *prometheus.CounterVec

	// identifiersDetectedTotal tracks identifiers extracted from statuses
	identifiersDetectedTotal prometheus.Counter

	// sightingsTotal tracks sighting submissions by result
	sightingsTotal *prometheus.CounterVec
)

// InitMetrics registers all Prometheus metrics. It is safe to call more than
// once.
func InitMetrics() {
	metricsOnce.Do(func() {
		streamMessagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedivuln_stream_messages_total",
				Help: "Total number of messages read from the event stream by topic and format",
			},
			[]string{"topic", "format"},
		)

		eventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedivuln_events_total",
				Help: "Total number of stream events by topic and outcome",
			},
			[]string{"topic", "outcome"},
		)

		publishDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fedivuln_publish_duration_seconds",
				Help:    "Duration of status publication in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		)

		timelineStatusesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedivuln_timeline_statuses_total",
				Help: "Total number of statuses received from the timeline by stream",
			},
			[]string{"stream"},
		)

		identifiersDetectedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fedivuln_identifiers_detected_total",
				Help: "Total number of vulnerability identifiers detected in statuses",
			},
		)

		sightingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedivuln_sightings_total",
				Help: "Total number of sighting submissions by result",
			},
			[]string{"result"},
		)
	})
}

// RecordMessage records a message read from the stream of topic.
func RecordMessage(topic string, text bool) {
	if streamMessagesTotal == nil {
		return
	}
	format := "json"
	if text {
		format = "text"
	}
	streamMessagesTotal.WithLabelValues(topic, format).Inc()
}

// RecordEvent records the outcome of relaying one event
// outcome: "published", "update", "ignored", "failed"
func RecordEvent(topic, outcome string) {
	if eventsTotal != nil {
		eventsTotal.WithLabelValues(topic, outcome).Inc()
	}
}

// RecordPublishDuration records how long handling a publishable event took.
func RecordPublishDuration(d time.Duration) {
	if publishDuration != nil {
		publishDuration.Observe(d.Seconds())
	}
}

// RecordStatus records a status received on stream.
func RecordStatus(stream string) {
	if timelineStatusesTotal != nil {
		timelineStatusesTotal.WithLabelValues(stream).Inc()
	}
}

// RecordSightings records the identifiers found in one status and how their
// submissions went.
func RecordSightings(detected, submitted, failed int) {
	if identifiersDetectedTotal != nil {
		identifiersDetectedTotal.Add(float64(detected))
	}
	if sightingsTotal != nil {
		sightingsTotal.WithLabelValues("submitted").Add(float64(submitted))
		sightingsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}
