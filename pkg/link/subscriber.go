package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	module = "link"

	roleSubscriber = "subscriber"

	// DefaultQueueSize bounds the notifications waiting to be handled.
	DefaultQueueSize = 16
)

type State int

const (
	StateIdle State = iota
	StateScanning
	StateConnecting
	StateConnected
)

var stateName = map[State]string{
	StateIdle:       "idle",
	StateScanning:   "scanning",
	StateConnecting: "connecting",
	StateConnected:  "connected",
}

func (s State) String() string {
	return stateName[s]
}

// SubscriberStatus is a snapshot for status pages.
type SubscriberStatus struct {
	State   State
	Peer    string
	Queued  int
	Dropped uint64
}

// Subscriber runs the display side.  Advertisements for the service turn
// into at most one pending connect request, which the owner's loop receives
// from Requests and hands back to Connect.  Notifications are queued in
// arrival order on a bounded channel; when it is full the newest payload is
// dropped.
type Subscriber struct {
	mtx sync.Mutex

	radio    CentralRadio
	identity Identity
	tracker  *PeerTracker

	state   State
	conn    Connection
	dropped bool
	lost    uint64

	requests      chan Advertisement
	notifications chan []byte

	logger *slog.Logger
	tracer trace.Tracer
}

func NewSubscriber(radio CentralRadio, identity Identity, queueSize int, tracker *PeerTracker, logger *slog.Logger) *Subscriber {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Subscriber{
		radio:         radio,
		identity:      identity,
		tracker:       tracker,
		requests:      make(chan Advertisement, 1),
		notifications: make(chan []byte, queueSize),
		logger:        logger.With("module", module, "role", roleSubscriber),
		tracer:        otel.Tracer(module),
	}
}

// Start validates the identity and begins scanning.
func (s *Subscriber) Start() error {
	if err := s.identity.Validate(); err != nil {
		return err
	}

	return s.scan()
}

// Requests yields one advertisement per scan that found the service.
func (s *Subscriber) Requests() <-chan Advertisement {
	return s.requests
}

// Notifications yields received payloads in order.
func (s *Subscriber) Notifications() <-chan []byte {
	return s.notifications
}

// Connect runs the connection sequence for a requested advertisement:
// connect, discover the service, discover the characteristic and enable
// notifications.  Any failure abandons the attempt, drops the connection and
// goes back to scanning.  No retry happens until another advertisement is
// seen.
func (s *Subscriber) Connect(ctx context.Context, adv Advertisement) error {
	ctx, span := s.tracer.Start(ctx, "Subscriber.Connect", trace.WithAttributes(
		attribute.String("peer", adv.Address),
	))
	defer span.End()

	s.logger.Info("connecting", "peer", adv.Address, "name", adv.LocalName, "rssi", adv.RSSI)

	conn, err := s.radio.Connect(ctx, adv, s.onDisconnect)
	if err != nil {
		span.RecordError(err)
		return s.abandon(nil, "connect", fmt.Errorf("failed to connect to %s: %w", adv.Address, err))
	}

	svc, err := conn.DiscoverService(ctx, s.identity.Service)
	if err != nil {
		span.RecordError(err)
		return s.abandon(conn, "service", fmt.Errorf("failed to discover service: %w", err))
	}

	char, err := svc.DiscoverCharacteristic(ctx, s.identity.Characteristic)
	if err != nil {
		span.RecordError(err)
		return s.abandon(conn, "characteristic", fmt.Errorf("failed to discover characteristic: %w", err))
	}

	if value, err := char.Read(ctx); err != nil {
		s.logger.Debug("failed to read characteristic", "err", err)
	} else {
		s.logger.Info("characteristic value", "value", string(value))
	}

	if err := char.EnableNotifications(s.enqueue); err != nil {
		span.RecordError(err)
		return s.abandon(conn, "notify", fmt.Errorf("failed to enable notifications: %w", err))
	}

	s.mtx.Lock()
	if s.dropped || s.state != StateConnecting {
		s.mtx.Unlock()
		return s.abandon(conn, "dropped", fmt.Errorf("connection to %s dropped: %w", adv.Address, ErrNotConnected))
	}
	s.state = StateConnected
	s.conn = conn
	s.mtx.Unlock()

	metricConnections.WithLabelValues(roleSubscriber, conn.Peer()).Inc()
	if s.tracker != nil {
		s.tracker.Seen(conn.Peer())
	}

	s.logger.Info("connected", "peer", conn.Peer())

	return nil
}

// Disconnect drops the connection and stops scanning.  It is used on
// shutdown.
func (s *Subscriber) Disconnect() error {
	s.mtx.Lock()
	conn := s.conn
	s.conn = nil
	s.state = StateIdle
	s.mtx.Unlock()

	if err := s.radio.StopScan(); err != nil {
		s.logger.Debug("failed to stop scan", "err", err)
	}

	if conn == nil {
		return nil
	}

	return conn.Disconnect()
}

func (s *Subscriber) Status() SubscriberStatus {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	st := SubscriberStatus{
		State:   s.state,
		Queued:  len(s.notifications),
		Dropped: s.lost,
	}

	if s.conn != nil {
		st.Peer = s.conn.Peer()
	}

	return st
}

func (s *Subscriber) scan() error {
	s.mtx.Lock()
	s.state = StateScanning
	s.conn = nil
	s.dropped = false
	s.mtx.Unlock()

	s.logger.Info("scanning", "service", s.identity.Service)

	if err := s.radio.StartScan(s.onAdvertisement); err != nil {
		s.mtx.Lock()
		s.state = StateIdle
		s.mtx.Unlock()
		return fmt.Errorf("failed to start scan: %w", err)
	}

	return nil
}

func (s *Subscriber) onAdvertisement(adv Advertisement) {
	if !adv.Advertises(s.identity.Service) {
		return
	}

	s.mtx.Lock()
	if s.state != StateScanning {
		s.mtx.Unlock()
		return
	}
	s.state = StateConnecting
	s.dropped = false
	s.mtx.Unlock()

	s.logger.Info("found service", "peer", adv.Address, "name", adv.LocalName)

	if err := s.radio.StopScan(); err != nil {
		s.logger.Debug("failed to stop scan", "err", err)
	}

	select {
	case s.requests <- adv:
	default:
		s.logger.Warn("connect request already pending", "peer", adv.Address)
	}
}

func (s *Subscriber) onDisconnect() {
	s.mtx.Lock()
	switch s.state {
	case StateConnecting:
		s.dropped = true
		s.mtx.Unlock()
		return
	case StateConnected:
	default:
		s.mtx.Unlock()
		return
	}

	peer := s.conn.Peer()
	s.mtx.Unlock()

	metricDisconnects.WithLabelValues(roleSubscriber, peer).Inc()
	s.logger.Info("disconnected", "peer", peer)

	if err := s.scan(); err != nil {
		s.logger.Error("failed to rearm scan", "err", err)
	}
}

func (s *Subscriber) abandon(conn Connection, step string, cause error) error {
	metricConnectFailures.WithLabelValues(step).Inc()
	s.logger.Error("abandoning connection", "step", step, "err", cause)

	s.mtx.Lock()
	s.state = StateIdle
	s.mtx.Unlock()

	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			s.logger.Debug("failed to disconnect", "err", err)
		}
	}

	if err := s.scan(); err != nil {
		s.logger.Error("failed to rearm scan", "err", err)
	}

	return cause
}

func (s *Subscriber) enqueue(payload []byte) {
	p := append([]byte(nil), payload...)

	select {
	case s.notifications <- p:
		metricNotifications.WithLabelValues(roleSubscriber, "queued").Inc()
	default:
		s.mtx.Lock()
		s.lost++
		s.mtx.Unlock()
		metricNotifications.WithLabelValues(roleSubscriber, "dropped").Inc()
	}

	metricQueueDepth.Set(float64(len(s.notifications)))
}
