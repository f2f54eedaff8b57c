package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "colordial"
	metricsSubsystem = "telemetry"

	metricLux = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "lux",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The most recent ambient light reading",
	})

	metricDetections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "detections_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of classifications per color",
	}, []string{"color"})

	metricSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "messages_sent_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of messages handed to the link",
	}, []string{"kind"})

	metricNotifyErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "notify_errors_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of messages the link refused",
	})

	metricReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "read_errors_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of failed sensor reads while publishing",
	}, []string{"sensor"})
)
