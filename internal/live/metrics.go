package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sis-teknik/servicedesk/internal/pkg/metrics"
)

var (
	listeners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "live",
			Name:      "listeners",
			Help:      "Number of connected live-update listeners",
		},
	)

	pulses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "live",
			Name:      "pulses_total",
			Help:      "Pulses offered to listeners, by result",
		},
		[]string{"result"},
	)
)

func recordPublish(delivered, coalesced int) {
	pulses.WithLabelValues("delivered").Add(float64(delivered))
	pulses.WithLabelValues("coalesced").Add(float64(coalesced))
}
