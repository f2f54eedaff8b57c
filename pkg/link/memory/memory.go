// Package memory is an in-process link transport.  Peripherals and centrals
// attached to the same Hub see each other, and notifications are delivered
// synchronously on the notifying goroutine.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/zachfi/colordial/pkg/link"
)

type Hub struct {
	mtx sync.Mutex

	peripherals map[string]*Peripheral
	scanners    map[string]func(link.Advertisement)
}

func NewHub() *Hub {
	return &Hub{
		peripherals: make(map[string]*Peripheral),
		scanners:    make(map[string]func(link.Advertisement)),
	}
}

// Peripheral attaches a peripheral radio at address.
func (h *Hub) Peripheral(address string) *Peripheral {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	p := &Peripheral{hub: h, address: address}
	h.peripherals[address] = p
	return p
}

// Central attaches a central radio at address.
func (h *Hub) Central(address string) *Central {
	return &Central{hub: h, address: address}
}

// Drop severs the connection to the peripheral at address as if the radio
// link was lost.  Both sides are told.
func (h *Hub) Drop(address string) bool {
	h.mtx.Lock()
	p, ok := h.peripherals[address]
	if !ok || p.conn == nil {
		h.mtx.Unlock()
		return false
	}
	conn := p.conn
	p.conn = nil
	conn.closed = true
	handler := p.onConnect
	h.mtx.Unlock()

	if handler != nil {
		handler(conn.central, false)
	}

	if conn.onDisconnect != nil {
		conn.onDisconnect()
	}

	return true
}

// Scanning reports whether any central is scanning.
func (h *Hub) Scanning() bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.scanners) > 0
}

type Peripheral struct {
	hub     *Hub
	address string

	// guarded by hub.mtx
	identity     link.Identity
	registered   bool
	advertising  bool
	onConnect    func(peer string, connected bool)
	conn         *conn
	value        []byte
	discoveryErr error
}

var _ link.PeripheralRadio = (*Peripheral)(nil)

func (p *Peripheral) Register(id link.Identity) error {
	p.hub.mtx.Lock()
	defer p.hub.mtx.Unlock()

	p.identity = id
	p.registered = true
	return nil
}

func (p *Peripheral) StartAdvertising() error {
	p.hub.mtx.Lock()
	if !p.registered {
		p.hub.mtx.Unlock()
		return fmt.Errorf("advertising before register: %w", link.ErrServiceNotFound)
	}
	p.advertising = true
	adv := p.advertisement()
	scanners := p.hub.scannerFuncs()
	p.hub.mtx.Unlock()

	for _, fn := range scanners {
		fn(adv)
	}

	return nil
}

func (p *Peripheral) StopAdvertising() error {
	p.hub.mtx.Lock()
	defer p.hub.mtx.Unlock()

	p.advertising = false
	return nil
}

func (p *Peripheral) Advertising() bool {
	p.hub.mtx.Lock()
	defer p.hub.mtx.Unlock()
	return p.advertising
}

func (p *Peripheral) SetConnectHandler(fn func(peer string, connected bool)) {
	p.hub.mtx.Lock()
	defer p.hub.mtx.Unlock()
	p.onConnect = fn
}

// Notify stores the value and hands it to the subscribed central.
func (p *Peripheral) Notify(payload []byte) error {
	p.hub.mtx.Lock()
	p.value = append([]byte(nil), payload...)
	c := p.conn
	var fn func([]byte)
	if c != nil {
		fn = c.notify
	}
	p.hub.mtx.Unlock()

	if c == nil {
		return link.ErrNotConnected
	}

	if fn != nil {
		fn(payload)
	}

	return nil
}

// FailDiscovery makes service discovery on new connections fail with err.
// A nil err restores normal discovery.
func (p *Peripheral) FailDiscovery(err error) {
	p.hub.mtx.Lock()
	defer p.hub.mtx.Unlock()
	p.discoveryErr = err
}

func (p *Peripheral) advertisement() link.Advertisement {
	return link.Advertisement{
		Address:   p.address,
		LocalName: p.identity.LocalName,
		Services:  []string{p.identity.Service},
	}
}

func (h *Hub) scannerFuncs() []func(link.Advertisement) {
	fns := make([]func(link.Advertisement), 0, len(h.scanners))
	for _, fn := range h.scanners {
		fns = append(fns, fn)
	}
	return fns
}

type Central struct {
	hub     *Hub
	address string
}

var _ link.CentralRadio = (*Central)(nil)

// StartScan delivers the advertisements already on air and then every new
// one.
func (c *Central) StartScan(fn func(link.Advertisement)) error {
	c.hub.mtx.Lock()
	c.hub.scanners[c.address] = fn

	var current []link.Advertisement
	for _, p := range c.hub.peripherals {
		if p.advertising {
			current = append(current, p.advertisement())
		}
	}
	c.hub.mtx.Unlock()

	for _, adv := range current {
		fn(adv)
	}

	return nil
}

func (c *Central) StopScan() error {
	c.hub.mtx.Lock()
	defer c.hub.mtx.Unlock()

	delete(c.hub.scanners, c.address)
	return nil
}

func (c *Central) Connect(ctx context.Context, adv link.Advertisement, onDisconnect func()) (link.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.hub.mtx.Lock()
	p, ok := c.hub.peripherals[adv.Address]
	if !ok {
		c.hub.mtx.Unlock()
		return nil, fmt.Errorf("no peripheral at %s", adv.Address)
	}

	if p.conn != nil {
		c.hub.mtx.Unlock()
		return nil, link.ErrLinkBusy
	}

	cn := &conn{
		hub:          c.hub,
		peripheral:   p,
		central:      c.address,
		onDisconnect: onDisconnect,
		discoveryErr: p.discoveryErr,
	}
	p.conn = cn
	handler := p.onConnect
	c.hub.mtx.Unlock()

	if handler != nil {
		handler(c.address, true)
	}

	return cn, nil
}

type conn struct {
	hub          *Hub
	peripheral   *Peripheral
	central      string
	onDisconnect func()
	discoveryErr error

	// guarded by hub.mtx
	notify func([]byte)
	closed bool
}

func (c *conn) Peer() string {
	return c.peripheral.address
}

func (c *conn) DiscoverService(ctx context.Context, service string) (link.RemoteService, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.hub.mtx.Lock()
	defer c.hub.mtx.Unlock()

	if c.closed {
		return nil, link.ErrNotConnected
	}

	if c.discoveryErr != nil {
		return nil, c.discoveryErr
	}

	if !link.SameUUID(c.peripheral.identity.Service, service) {
		return nil, fmt.Errorf("%w: %s", link.ErrServiceNotFound, service)
	}

	return &remoteService{conn: c}, nil
}

// Disconnect is central initiated.  The peripheral's handler is told, the
// central's own disconnect callback is not.
func (c *conn) Disconnect() error {
	c.hub.mtx.Lock()
	if c.closed {
		c.hub.mtx.Unlock()
		return nil
	}
	c.closed = true
	if c.peripheral.conn == c {
		c.peripheral.conn = nil
	}
	handler := c.peripheral.onConnect
	c.hub.mtx.Unlock()

	if handler != nil {
		handler(c.central, false)
	}

	return nil
}

type remoteService struct {
	conn *conn
}

func (s *remoteService) DiscoverCharacteristic(ctx context.Context, characteristic string) (link.RemoteCharacteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.conn.hub.mtx.Lock()
	defer s.conn.hub.mtx.Unlock()

	if s.conn.closed {
		return nil, link.ErrNotConnected
	}

	if !link.SameUUID(s.conn.peripheral.identity.Characteristic, characteristic) {
		return nil, fmt.Errorf("%w: %s", link.ErrCharacteristicNotFound, characteristic)
	}

	return &remoteCharacteristic{conn: s.conn}, nil
}

type remoteCharacteristic struct {
	conn *conn
}

func (r *remoteCharacteristic) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.conn.hub.mtx.Lock()
	defer r.conn.hub.mtx.Unlock()

	if r.conn.closed {
		return nil, link.ErrNotConnected
	}

	return append([]byte(nil), r.conn.peripheral.value...), nil
}

func (r *remoteCharacteristic) EnableNotifications(fn func([]byte)) error {
	r.conn.hub.mtx.Lock()
	defer r.conn.hub.mtx.Unlock()

	if r.conn.closed {
		return link.ErrNotConnected
	}

	r.conn.notify = fn
	return nil
}
