package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zachfi/colordial/pkg/delay"
)

const (
	roleAdvertiser = "advertiser"

	// DefaultReadvertiseDelay is the pause between a disconnect and the next
	// advertisement.
	DefaultReadvertiseDelay = 500 * time.Millisecond

	readvertise = "readvertise"
)

// AdvertiserStatus is a snapshot for status pages.
type AdvertiserStatus struct {
	Advertising bool
	Connected   bool
	Peer        string
}

// Advertiser runs the sensor side.  It serves a single subscriber and goes
// back to advertising a short while after that subscriber leaves.
type Advertiser struct {
	mtx sync.Mutex

	radio    PeripheralRadio
	identity Identity
	wait     time.Duration
	delay    *delay.Delay
	tracker  *PeerTracker

	ctx         context.Context
	advertising bool
	peer        string

	logger *slog.Logger
}

func NewAdvertiser(radio PeripheralRadio, identity Identity, readvertiseDelay time.Duration, tracker *PeerTracker, logger *slog.Logger) *Advertiser {
	return &Advertiser{
		radio:    radio,
		identity: identity,
		wait:     readvertiseDelay,
		delay:    delay.New(),
		tracker:  tracker,
		ctx:      context.Background(),
		logger:   logger.With("module", module, "role", roleAdvertiser),
	}
}

// Start registers the service and begins advertising.  ctx bounds the
// delayed readvertising.
func (a *Advertiser) Start(ctx context.Context) error {
	if err := a.identity.Validate(); err != nil {
		return err
	}

	a.mtx.Lock()
	a.ctx = ctx
	a.mtx.Unlock()

	a.radio.SetConnectHandler(a.handleConnect)

	if err := a.radio.Register(a.identity); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	return a.advertise()
}

// Stop cancels a pending readvertise and stops advertising.
func (a *Advertiser) Stop() error {
	a.delay.Cancel(readvertise)

	a.mtx.Lock()
	a.advertising = false
	a.mtx.Unlock()
	metricAdvertising.Set(0)

	return a.radio.StopAdvertising()
}

// Notify pushes payload to the subscriber.  Without one it does nothing.
func (a *Advertiser) Notify(payload []byte) error {
	a.mtx.Lock()
	connected := a.peer != ""
	a.mtx.Unlock()

	if !connected {
		metricNotifications.WithLabelValues(roleAdvertiser, "no_subscriber").Inc()
		return nil
	}

	if err := a.radio.Notify(payload); err != nil {
		metricNotifications.WithLabelValues(roleAdvertiser, "error").Inc()
		return err
	}

	metricNotifications.WithLabelValues(roleAdvertiser, "sent").Inc()
	return nil
}

func (a *Advertiser) Status() AdvertiserStatus {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	return AdvertiserStatus{
		Advertising: a.advertising,
		Connected:   a.peer != "",
		Peer:        a.peer,
	}
}

func (a *Advertiser) handleConnect(peer string, connected bool) {
	if connected {
		a.connected(peer)
		return
	}

	a.disconnected(peer)
}

func (a *Advertiser) connected(peer string) {
	a.delay.Cancel(readvertise)

	a.mtx.Lock()
	if a.peer != "" && a.peer != peer {
		a.mtx.Unlock()
		a.logger.Warn("ignoring second subscriber", "peer", peer, "current", a.peer)
		return
	}
	a.peer = peer
	a.advertising = false
	a.mtx.Unlock()

	metricAdvertising.Set(0)
	metricConnections.WithLabelValues(roleAdvertiser, peer).Inc()
	if a.tracker != nil {
		a.tracker.Seen(peer)
	}

	a.logger.Info("device connected", "peer", peer)

	if err := a.radio.StopAdvertising(); err != nil {
		a.logger.Debug("failed to stop advertising", "err", err)
	}
}

func (a *Advertiser) disconnected(peer string) {
	a.mtx.Lock()
	if a.peer != peer {
		a.mtx.Unlock()
		return
	}
	a.peer = ""
	ctx := a.ctx
	a.mtx.Unlock()

	metricDisconnects.WithLabelValues(roleAdvertiser, peer).Inc()
	if a.tracker != nil {
		a.tracker.Seen(peer)
	}

	a.logger.Info("device disconnected", "peer", peer, "readvertise_in", a.wait)

	a.delay.After(ctx, readvertise, a.wait, func() {
		if err := a.advertise(); err != nil {
			a.logger.Error("failed to resume advertising", "err", err)
		}
	})
}

func (a *Advertiser) advertise() error {
	a.mtx.Lock()
	if a.peer != "" {
		a.mtx.Unlock()
		return nil
	}
	a.mtx.Unlock()

	if err := a.radio.StartAdvertising(); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}

	a.mtx.Lock()
	a.advertising = true
	a.mtx.Unlock()
	metricAdvertising.Set(1)

	a.logger.Info("advertising", "name", a.identity.LocalName, "service", a.identity.Service)

	return nil
}
