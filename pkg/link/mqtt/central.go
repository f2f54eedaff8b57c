package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/zachfi/colordial/pkg/link"
)

// CentralWill announces the subscriber gone when its client drops.
func CentralWill(cfg Config, id link.Identity, address string) *Will {
	t := topics{prefix: cfg.Topic}
	return &Will{
		Topic:   t.subscriber(id.Service),
		Payload: encode(presence{State: stateDisconnected, Address: address}),
	}
}

// Central scans for and connects to advertisers over the broker.
type Central struct {
	mtx sync.Mutex

	client   *Client
	topics   topics
	address  string
	timeout  time.Duration
	scanning bool
	onScan   paho.MessageHandler
	conns    map[*connection]struct{}

	logger *slog.Logger
}

var _ link.CentralRadio = (*Central)(nil)

func NewCentral(client *Client, cfg Config, address string, logger *slog.Logger) *Central {
	c := &Central{
		client:  client,
		topics:  topics{prefix: cfg.Topic},
		address: address,
		timeout: cfg.DiscoveryTimeout,
		conns:   make(map[*connection]struct{}),
		logger:  logger.With("transport", "mqtt", "address", address),
	}

	client.OnReconnect(c.resync)
	return c
}

// resync runs after a reconnect.  Open connections are reported lost, since
// their subscriptions are gone and the advertiser may have gone offline in
// the meantime.  A running scan is subscribed again.
func (c *Central) resync() error {
	c.mtx.Lock()
	scanning := c.scanning
	handler := c.onScan
	conns := make([]*connection, 0, len(c.conns))
	for conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mtx.Unlock()

	for _, conn := range conns {
		conn.lost()
	}

	if !scanning || handler == nil {
		return nil
	}

	return wait(c.client.Subscribe(c.topics.advertiseAll(), qosState, handler))
}

func (c *Central) forget(conn *connection) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	delete(c.conns, conn)
}

// StartScan subscribes to every advertise topic.  Retained advertisements
// arrive right away.
func (c *Central) StartScan(fn func(link.Advertisement)) error {
	handler := func(_ paho.Client, msg paho.Message) {
		service, ok := c.topics.serviceOf(msg.Topic())
		if !ok {
			return
		}

		var adv advertisement
		if err := json.Unmarshal(msg.Payload(), &adv); err != nil {
			c.logger.Debug("ignoring advertisement", "topic", msg.Topic(), "err", err)
			return
		}

		if adv.State != stateOnline {
			return
		}

		go fn(link.Advertisement{
			Address:   adv.Address,
			LocalName: adv.Name,
			Services:  []string{service},
		})
	}

	if err := wait(c.client.Subscribe(c.topics.advertiseAll(), qosState, handler)); err != nil {
		return err
	}

	c.mtx.Lock()
	c.scanning = true
	c.onScan = handler
	c.mtx.Unlock()

	return nil
}

func (c *Central) StopScan() error {
	c.mtx.Lock()
	scanning := c.scanning
	c.scanning = false
	c.onScan = nil
	c.mtx.Unlock()

	if !scanning {
		return nil
	}

	return wait(c.client.Unsubscribe(c.topics.advertiseAll()))
}

func (c *Central) Connect(ctx context.Context, adv link.Advertisement, onDisconnect func()) (link.Connection, error) {
	if len(adv.Services) == 0 {
		return nil, link.ErrServiceNotFound
	}
	service := adv.Services[0]

	raw, ok, err := c.retained(ctx, c.topics.advertise(service))
	if err != nil {
		return nil, err
	}

	var state advertisement
	if ok {
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, fmt.Errorf("invalid advertisement: %w", err)
		}
	}

	switch {
	case !ok || state.Address != adv.Address || state.State == stateOffline:
		return nil, fmt.Errorf("%s is not advertising: %w", adv.Address, link.ErrNotConnected)
	case state.State == stateBusy:
		return nil, link.ErrLinkBusy
	}

	conn := &connection{
		central:      c,
		peer:         adv.Address,
		service:      service,
		onDisconnect: onDisconnect,
	}

	if err := wait(c.client.Subscribe(c.topics.advertise(service), qosState, conn.watch)); err != nil {
		return nil, fmt.Errorf("failed to watch advertiser: %w", err)
	}

	p := presence{State: stateConnected, Address: c.address, Peripheral: adv.Address}
	if err := wait(c.client.Publish(c.topics.subscriber(service), qosState, false, encode(p))); err != nil {
		_ = wait(c.client.Unsubscribe(c.topics.advertise(service)))
		return nil, fmt.Errorf("failed to announce subscriber: %w", err)
	}

	c.mtx.Lock()
	c.conns[conn] = struct{}{}
	c.mtx.Unlock()

	return conn, nil
}

// retained waits for the retained message on topic.  ok is false when none
// arrived before the discovery timeout.
func (c *Central) retained(ctx context.Context, topic string) ([]byte, bool, error) {
	ch := make(chan []byte, 1)

	handler := func(_ paho.Client, msg paho.Message) {
		select {
		case ch <- msg.Payload():
		default:
		}
	}

	if err := wait(c.client.Subscribe(topic, qosState, handler)); err != nil {
		return nil, false, err
	}
	defer func() {
		_ = wait(c.client.Unsubscribe(topic))
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-timer.C:
		return nil, false, nil
	case b := <-ch:
		return b, true, nil
	}
}

type connection struct {
	central      *Central
	peer         string
	service      string
	onDisconnect func()

	mtx    sync.Mutex
	closed bool
	topics []string
	once   sync.Once
}

func (c *connection) Peer() string {
	return c.peer
}

// watch follows the advertiser state.  An offline advertiser means the link
// is gone.
func (c *connection) watch(_ paho.Client, msg paho.Message) {
	var adv advertisement
	if err := json.Unmarshal(msg.Payload(), &adv); err != nil {
		return
	}

	if adv.Address != c.peer || adv.State != stateOffline {
		return
	}

	c.mtx.Lock()
	closed := c.closed
	c.mtx.Unlock()

	if closed {
		return
	}

	c.central.forget(c)
	c.signal()
}

// lost closes a connection whose broker session went away.
func (c *connection) lost() {
	c.mtx.Lock()
	if c.closed {
		c.mtx.Unlock()
		return
	}
	c.closed = true
	c.mtx.Unlock()

	c.central.forget(c)

	p := presence{State: stateDisconnected, Address: c.central.address, Peripheral: c.peer}
	if err := wait(c.central.client.Publish(c.central.topics.subscriber(c.service), qosState, false, encode(p))); err != nil {
		c.central.logger.Debug("failed to announce lost subscriber", "peer", c.peer, "err", err)
	}

	c.signal()
}

func (c *connection) signal() {
	if c.onDisconnect == nil {
		return
	}

	c.once.Do(func() { go c.onDisconnect() })
}

func (c *connection) DiscoverService(ctx context.Context, service string) (link.RemoteService, error) {
	if !link.SameUUID(service, c.service) {
		return nil, fmt.Errorf("%w: %s", link.ErrServiceNotFound, service)
	}

	raw, ok, err := c.central.retained(ctx, c.central.topics.manifest(c.service))
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: no manifest for %s", link.ErrServiceNotFound, service)
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: invalid manifest: %w", link.ErrServiceNotFound, err)
	}

	return &remoteService{conn: c, characteristics: m.Characteristics}, nil
}

func (c *connection) Disconnect() error {
	c.mtx.Lock()
	if c.closed {
		c.mtx.Unlock()
		return nil
	}
	c.closed = true
	subscribed := append([]string{c.central.topics.advertise(c.service)}, c.topics...)
	c.mtx.Unlock()

	c.central.forget(c)

	client := c.central.client

	p := presence{State: stateDisconnected, Address: c.central.address, Peripheral: c.peer}
	err := wait(client.Publish(c.central.topics.subscriber(c.service), qosState, false, encode(p)))

	if uerr := wait(client.Unsubscribe(subscribed...)); uerr != nil && err == nil {
		err = uerr
	}

	return err
}

type remoteService struct {
	conn            *connection
	characteristics []string
}

func (s *remoteService) DiscoverCharacteristic(_ context.Context, characteristic string) (link.RemoteCharacteristic, error) {
	for _, ch := range s.characteristics {
		if link.SameUUID(ch, characteristic) {
			return &remoteCharacteristic{conn: s.conn, uuid: ch}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", link.ErrCharacteristicNotFound, characteristic)
}

type remoteCharacteristic struct {
	conn *connection
	uuid string
}

// Read returns the retained value, or nothing if none was published yet.
func (r *remoteCharacteristic) Read(ctx context.Context) ([]byte, error) {
	c := r.conn.central

	raw, _, err := c.retained(ctx, c.topics.value(r.conn.service, r.uuid))
	return raw, err
}

func (r *remoteCharacteristic) EnableNotifications(fn func([]byte)) error {
	c := r.conn.central
	topic := c.topics.notify(r.conn.service, r.uuid)

	handler := func(_ paho.Client, msg paho.Message) {
		fn(msg.Payload())
	}

	if err := wait(c.client.Subscribe(topic, qosNotify, handler)); err != nil {
		return err
	}

	r.conn.mtx.Lock()
	r.conn.topics = append(r.conn.topics, topic)
	r.conn.mtx.Unlock()

	return nil
}
