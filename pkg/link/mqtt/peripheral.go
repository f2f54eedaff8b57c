package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/zachfi/colordial/pkg/link"
)

// PeripheralWill marks the advertiser offline when its client drops.
func PeripheralWill(cfg Config, id link.Identity, address string) *Will {
	t := topics{prefix: cfg.Topic}
	return &Will{
		Topic:   t.advertise(id.Service),
		Payload: encode(advertisement{State: stateOffline, Address: address}),
		Retain:  true,
	}
}

// Peripheral advertises a service over the broker.
type Peripheral struct {
	mtx sync.Mutex

	client  *Client
	topics  topics
	address string

	identity   link.Identity
	registered bool
	state      string
	onConnect  func(peer string, connected bool)
	subscriber string

	events chan presence

	logger *slog.Logger
}

var _ link.PeripheralRadio = (*Peripheral)(nil)

func NewPeripheral(client *Client, cfg Config, address string, logger *slog.Logger) *Peripheral {
	p := &Peripheral{
		client:  client,
		topics:  topics{prefix: cfg.Topic},
		address: address,
		events:  make(chan presence, 8),
		logger:  logger.With("transport", "mqtt", "address", address),
	}

	client.OnReconnect(p.resync)
	return p
}

// Register publishes the characteristic manifest and starts listening for
// subscriber presence.
func (p *Peripheral) Register(id link.Identity) error {
	p.mtx.Lock()
	if p.registered {
		p.mtx.Unlock()
		return nil
	}
	p.identity = id
	p.registered = true
	p.mtx.Unlock()

	go p.dispatch()

	return p.announce(id)
}

// announce publishes the manifest and subscribes to subscriber presence.
func (p *Peripheral) announce(id link.Identity) error {
	m := manifest{Characteristics: []string{id.Characteristic}}
	if err := wait(p.client.Publish(p.topics.manifest(id.Service), qosState, true, encode(m))); err != nil {
		return fmt.Errorf("failed to publish manifest: %w", err)
	}

	if err := wait(p.client.Subscribe(p.topics.subscriber(id.Service), qosState, p.handlePresence)); err != nil {
		return fmt.Errorf("failed to subscribe to presence: %w", err)
	}

	return nil
}

// resync restores the broker side after a reconnect.  A subscriber attached
// before the drop is reported gone, which makes the advertiser readvertise.
// Otherwise the last advertise state is published again over whatever the
// last will left behind.
func (p *Peripheral) resync() error {
	p.mtx.Lock()
	id := p.identity
	registered := p.registered
	state := p.state
	peer := p.subscriber
	p.mtx.Unlock()

	if !registered {
		return nil
	}

	if err := p.announce(id); err != nil {
		return err
	}

	if peer != "" {
		p.events <- presence{State: stateDisconnected, Address: peer, Peripheral: p.address}
		return nil
	}

	if state == "" {
		return nil
	}

	return p.publishState(state)
}

func (p *Peripheral) StartAdvertising() error {
	return p.publishState(stateOnline)
}

func (p *Peripheral) StopAdvertising() error {
	p.mtx.Lock()
	state := stateOffline
	if p.subscriber != "" {
		state = stateBusy
	}
	p.mtx.Unlock()

	return p.publishState(state)
}

func (p *Peripheral) SetConnectHandler(fn func(peer string, connected bool)) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.onConnect = fn
}

// Notify publishes the value to the notify topic and keeps it retained for
// reads.  Nothing reaches the broker without a subscriber.
func (p *Peripheral) Notify(payload []byte) error {
	p.mtx.Lock()
	id := p.identity
	connected := p.subscriber != ""
	p.mtx.Unlock()

	if !connected {
		return link.ErrNotConnected
	}

	if err := wait(p.client.Publish(p.topics.value(id.Service, id.Characteristic), qosNotify, true, payload)); err != nil {
		p.logger.Debug("failed to retain value", "err", err)
	}

	return wait(p.client.Publish(p.topics.notify(id.Service, id.Characteristic), qosNotify, false, payload))
}

func (p *Peripheral) publishState(state string) error {
	p.mtx.Lock()
	id := p.identity
	registered := p.registered
	p.mtx.Unlock()

	if !registered {
		return fmt.Errorf("advertising before register: %w", link.ErrServiceNotFound)
	}

	adv := advertisement{State: state, Address: p.address, Name: id.LocalName}
	if err := wait(p.client.Publish(p.topics.advertise(id.Service), qosState, true, encode(adv))); err != nil {
		return err
	}

	p.mtx.Lock()
	p.state = state
	p.mtx.Unlock()

	return nil
}

// handlePresence runs on the paho router and must not block.
func (p *Peripheral) handlePresence(_ paho.Client, msg paho.Message) {
	var pr presence
	if err := json.Unmarshal(msg.Payload(), &pr); err != nil {
		p.logger.Debug("ignoring presence", "payload", string(msg.Payload()), "err", err)
		return
	}

	if pr.Peripheral != "" && pr.Peripheral != p.address {
		return
	}

	select {
	case p.events <- pr:
	default:
		p.logger.Warn("presence event dropped", "peer", pr.Address, "state", pr.State)
	}
}

func (p *Peripheral) dispatch() {
	for pr := range p.events {
		p.mtx.Lock()
		handler := p.onConnect

		var connected bool
		switch pr.State {
		case stateConnected:
			if p.subscriber != "" && p.subscriber != pr.Address {
				p.mtx.Unlock()
				p.logger.Warn("rejecting second subscriber", "peer", pr.Address, "current", p.subscriber)
				continue
			}
			p.subscriber = pr.Address
			connected = true
		case stateDisconnected:
			if p.subscriber != pr.Address {
				p.mtx.Unlock()
				continue
			}
			p.subscriber = ""
		default:
			p.mtx.Unlock()
			continue
		}
		p.mtx.Unlock()

		if handler != nil {
			handler(pr.Address, connected)
		}
	}
}
