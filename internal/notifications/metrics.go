package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sis-teknik/servicedesk/internal/pkg/metrics"
)

const (
	outcomeSent     = "sent"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
)

var (
	queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "sms_queue",
			Name:      "items",
			Help:      "Number of queued SMS by state",
		},
		[]string{"state"},
	)

	deliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "sms_queue",
			Name:      "attempts_total",
			Help:      "Delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	sendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "sms_queue",
			Name:      "send_duration_seconds",
			Help:      "Time spent in the SMS gateway per attempt",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	queueFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "sms_queue",
			Name:      "fetched_total",
			Help:      "Items claimed from the queue. Sum of attempts_total should match this.",
		},
	)

	projectionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "sms_queue",
			Name:      "projection_failures_total",
			Help:      "Delivered SMS whose intake flag could not be updated",
		},
	)
)

func recordAttempt(outcome string) {
	deliveryAttempts.WithLabelValues(outcome).Inc()
}

func recordSendDuration(d time.Duration) {
	sendDuration.Observe(d.Seconds())
}

func recordQueueFetched(count int) {
	queueFetched.Add(float64(count))
}

func recordProjectionFailure() {
	projectionFailures.Inc()
}

// RecordQueueStats updates queue size metrics.
func RecordQueueStats(stats *QueueStats) {
	queueSize.WithLabelValues("pending").Set(float64(stats.Pending))
	queueSize.WithLabelValues("due").Set(float64(stats.Due))
	queueSize.WithLabelValues("sent").Set(float64(stats.Sent))
	queueSize.WithLabelValues("failing").Set(float64(stats.Failing))
}
