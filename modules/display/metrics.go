package display

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "colordial"
	metricsSubsystem = "display"

	metricConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "connect_attempts_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of connection attempts by outcome",
	}, []string{"outcome"})

	metricHandleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "handle_errors_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of notifications that failed to render",
	})
)
