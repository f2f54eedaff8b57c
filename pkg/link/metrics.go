package link

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "colordial"
	metricsSubsystem = "link"

	metricConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "connections_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of connections established per peer",
	}, []string{"role", "peer"})

	metricDisconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "disconnects_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of connections lost per peer",
	}, []string{"role", "peer"})

	metricConnectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "connect_failures_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of abandoned connection attempts by step",
	}, []string{"step"})

	metricNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "notifications_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of notifications by outcome",
	}, []string{"role", "outcome"})

	metricAdvertising = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "advertising",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "Whether the peripheral is advertising",
	})

	metricQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "queue_depth",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of notifications waiting to be rendered",
	})

	metricPeerPurges = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "peer_purges_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The number of peers purged from the tracker",
	})

	// PeerMetrics are the series labelled by peer.
	PeerMetrics = []Metric{metricConnections, metricDisconnects}
)
