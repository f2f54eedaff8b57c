package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"tinygo.org/x/bluetooth"

	"github.com/zachfi/colordial/pkg/link"
	"github.com/zachfi/colordial/pkg/link/ble"
	"github.com/zachfi/colordial/pkg/link/memory"
	"github.com/zachfi/colordial/pkg/link/mqtt"
)

const (
	module = "link"

	memorySensor  = "sensor"
	memoryDisplay = "display"

	healthInterval = 10 * time.Second
)

// Roles selects which sides of the link this process runs.
type Roles struct {
	Peripheral bool
	Central    bool
}

// Link owns the transport: the broker clients, the Bluetooth adapter or the
// in-memory hub.  The node services take their radios from it.
type Link struct {
	services.Service

	cfg   *Config
	roles Roles

	mtx        sync.Mutex
	peripheral link.PeripheralRadio
	central    link.CentralRadio
	clients    map[string]*mqtt.Client

	tracker *link.PeerTracker

	logger *slog.Logger
	tracer trace.Tracer
}

func New(cfg Config, roles Roles, logger *slog.Logger) (*Link, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Transport {
	case TransportMemory, TransportMQTT, TransportBLE:
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	l := &Link{
		cfg:     &cfg,
		roles:   roles,
		clients: make(map[string]*mqtt.Client),
		tracker: link.NewPeerTracker(link.PeerMetrics, cfg.PeerPurgeAfter),
		logger:  logger.With("module", module),
		tracer:  otel.Tracer(module),
	}

	l.Service = services.NewBasicService(l.starting, l.running, l.stopping)
	return l, nil
}

func (l *Link) Config() Config {
	return *l.cfg
}

func (l *Link) Tracker() *link.PeerTracker {
	return l.tracker
}

// Peripheral returns the sensor side radio.  It is nil until the service
// is running or when this process has no sensor role.
func (l *Link) Peripheral() link.PeripheralRadio {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.peripheral
}

// Central returns the display side radio.
func (l *Link) Central() link.CentralRadio {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.central
}

// CheckHealth reports whether the broker connections are up and their state
// was restored after the last reconnect.  The other transports are always
// healthy once started.
func (l *Link) CheckHealth() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	for role, c := range l.clients {
		if !c.IsConnected() {
			return fmt.Errorf("mqtt client for %s is not connected", role)
		}

		if err := c.Err(); err != nil {
			return fmt.Errorf("mqtt client for %s failed to resync: %w", role, err)
		}
	}

	return nil
}

func (l *Link) starting(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "Link.starting")
	defer span.End()

	var err error
	switch l.cfg.Transport {
	case TransportMemory:
		l.startMemory()
	case TransportMQTT:
		err = l.startMQTT(ctx)
	case TransportBLE:
		err = l.startBLE()
	}

	if err != nil {
		span.RecordError(err)
		return err
	}

	l.logger.Info("link ready", "transport", l.cfg.Transport, "peripheral", l.roles.Peripheral, "central", l.roles.Central)
	return nil
}

func (l *Link) running(ctx context.Context) error {
	go l.tracker.Run(ctx, time.Minute)

	t := time.NewTicker(healthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := l.CheckHealth(); err != nil {
				metricUnhealthy.Inc()
				l.logger.Warn("link unhealthy", "err", err)
			}
		}
	}
}

func (l *Link) stopping(_ error) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	for role, c := range l.clients {
		l.logger.Debug("disconnecting mqtt client", "role", role)
		c.Disconnect(250)
	}

	return nil
}

func (l *Link) startMemory() {
	hub := memory.NewHub()

	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.roles.Peripheral {
		l.peripheral = hub.Peripheral(memorySensor)
	}

	if l.roles.Central {
		l.central = hub.Central(memoryDisplay)
	}
}

func (l *Link) startMQTT(ctx context.Context) error {
	if l.roles.Peripheral {
		address := mqtt.ClientID("sensor")
		client, err := l.connect(ctx, address, mqtt.PeripheralWill(l.cfg.MQTT, l.cfg.Identity, address))
		if err != nil {
			return err
		}

		l.mtx.Lock()
		l.clients["peripheral"] = client
		l.peripheral = mqtt.NewPeripheral(client, l.cfg.MQTT, address, l.logger)
		l.mtx.Unlock()
	}

	if l.roles.Central {
		address := mqtt.ClientID("display")
		client, err := l.connect(ctx, address, mqtt.CentralWill(l.cfg.MQTT, l.cfg.Identity, address))
		if err != nil {
			return err
		}

		l.mtx.Lock()
		l.clients["central"] = client
		l.central = mqtt.NewCentral(client, l.cfg.MQTT, address, l.logger)
		l.mtx.Unlock()
	}

	return nil
}

// connect retries the broker connection with backoff until ctx ends or the
// retries run out.
func (l *Link) connect(ctx context.Context, clientID string, will *mqtt.Will) (*mqtt.Client, error) {
	b := backoff.New(ctx, l.cfg.MQTT.Backoff)

	var lastErr error
	for b.Ongoing() {
		client, err := mqtt.NewClient(l.cfg.MQTT, clientID, will, l.logger)
		if err == nil {
			return client, nil
		}

		lastErr = err
		metricConnectRetries.Inc()
		l.logger.Warn("failed to connect to broker", "url", l.cfg.MQTT.URL, "retries", b.NumRetries(), "err", err)
		b.Wait()
	}

	if lastErr == nil {
		lastErr = b.Err()
	}

	return nil, fmt.Errorf("failed to connect to %s: %w", l.cfg.MQTT.URL, lastErr)
}

func (l *Link) startBLE() error {
	radio, err := ble.Open(bluetooth.DefaultAdapter)
	if err != nil {
		return err
	}

	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.roles.Peripheral {
		l.peripheral = ble.NewPeripheral(radio, l.logger)
	}

	if l.roles.Central {
		c, err := ble.NewCentral(radio, []string{l.cfg.Identity.Service}, l.logger)
		if err != nil {
			return err
		}
		l.central = c
	}

	return nil
}
