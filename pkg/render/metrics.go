package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "colordial"
	metricsSubsystem = "render"

	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "messages_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of received messages by kind",
	}, []string{"kind"})

	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "frames_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of frames pushed to the screen",
	})

	metricDrawErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "draw_errors_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of frames the screen refused",
	})
)
