package link

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "colordial"
	metricsSubsystem = "link_transport"

	metricConnectRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "broker_connect_retries_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of failed broker connection attempts",
	})

	metricUnhealthy = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "unhealthy_checks_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of health checks that found a broker client disconnected",
	})
)
