package sensor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "colordial"
	metricsSubsystem = "sensor"

	metricPresses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "button_presses_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of button presses by what they triggered",
	}, []string{"action"})

	metricPressErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "press_errors_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of presses that failed by what they triggered",
	}, []string{"action"})
)
