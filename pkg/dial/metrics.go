package dial

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "colordial"
	metricsSubsystem = "dial"

	metricPosition = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "position_steps",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The believed absolute stepper position",
	})

	metricMoves = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "moves_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of dial move requests",
	})

	metricUnknownColors = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "unknown_colors_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of move requests for a color outside the reference table",
	})

	metricStepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "step_errors_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of stepper moves that failed",
	})
)
