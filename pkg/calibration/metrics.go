package calibration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "colordial"
	metricsSubsystem = "calibration"

	metricStage = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "stage",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The calibration stage ordinal, 0 waiting through 8 done",
	})

	metricProfileFrequency = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "profile_frequency",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The averaged channel frequency of a calibrated reference color",
	}, []string{"color", "channel"})

	metricSampleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "sample_errors_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of calibration presses that failed to sample",
	})
)
