// Package ble carries the link over a Bluetooth Low Energy adapter.  On Linux
// the adapter is driven through BlueZ.
package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/zachfi/colordial/pkg/link"
)

// Radio owns the adapter's single connect handler and routes its events.
// Connections the central dialed go to the central, every other connection
// is a subscriber of the peripheral.
type Radio struct {
	adapter *bluetooth.Adapter

	mtx        sync.Mutex
	peripheral func(addr string, connected bool)
	central    func(addr string, connected bool)
	outbound   map[string]struct{}
}

// Open powers the adapter and installs the connect handler.  The returned
// radio is shared by the peripheral and the central in one process.
func Open(adapter *bluetooth.Adapter) (*Radio, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable adapter: %w", err)
	}

	r := newRadio(adapter)
	adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		r.dispatch(device.Address.String(), connected)
	})

	return r, nil
}

func newRadio(adapter *bluetooth.Adapter) *Radio {
	return &Radio{
		adapter:  adapter,
		outbound: make(map[string]struct{}),
	}
}

func addrKey(addr string) string {
	return strings.ToUpper(addr)
}

// dial marks addr as a connection the central opened.
func (r *Radio) dial(addr string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.outbound[addrKey(addr)] = struct{}{}
}

func (r *Radio) hangup(addr string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	delete(r.outbound, addrKey(addr))
}

func (r *Radio) dispatch(addr string, connected bool) {
	key := addrKey(addr)

	r.mtx.Lock()
	_, outbound := r.outbound[key]
	if outbound && !connected {
		delete(r.outbound, key)
	}
	fn := r.peripheral
	if outbound {
		fn = r.central
	}
	r.mtx.Unlock()

	if fn != nil {
		fn(addr, connected)
	}
}

// Peripheral serves the telemetry characteristic.
type Peripheral struct {
	mtx sync.Mutex

	radio *Radio
	adv   *bluetooth.Advertisement
	char  bluetooth.Characteristic

	registered bool
	onConnect  func(peer string, connected bool)

	logger *slog.Logger
}

var _ link.PeripheralRadio = (*Peripheral)(nil)

func NewPeripheral(radio *Radio, logger *slog.Logger) *Peripheral {
	p := &Peripheral{
		radio:  radio,
		logger: logger.With("transport", "ble"),
	}

	radio.mtx.Lock()
	radio.peripheral = p.handleConnect
	radio.mtx.Unlock()

	return p
}

func (p *Peripheral) handleConnect(addr string, connected bool) {
	p.mtx.Lock()
	fn := p.onConnect
	p.mtx.Unlock()

	if fn != nil {
		fn(addr, connected)
	}
}

func (p *Peripheral) Register(id link.Identity) error {
	serviceUUID, err := bluetooth.ParseUUID(id.Service)
	if err != nil {
		return err
	}

	charUUID, err := bluetooth.ParseUUID(id.Characteristic)
	if err != nil {
		return err
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.registered {
		return nil
	}

	err = p.radio.adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &p.char,
				UUID:   charUUID,
				Value:  []byte{},
				Flags: bluetooth.CharacteristicReadPermission |
					bluetooth.CharacteristicWritePermission |
					bluetooth.CharacteristicNotifyPermission,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add service: %w", err)
	}

	p.adv = p.radio.adapter.DefaultAdvertisement()
	err = p.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    id.LocalName,
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	})
	if err != nil {
		return fmt.Errorf("failed to configure advertisement: %w", err)
	}

	p.registered = true
	return nil
}

func (p *Peripheral) StartAdvertising() error {
	p.mtx.Lock()
	adv := p.adv
	p.mtx.Unlock()

	if adv == nil {
		return fmt.Errorf("advertising before register: %w", link.ErrServiceNotFound)
	}

	return adv.Start()
}

func (p *Peripheral) StopAdvertising() error {
	p.mtx.Lock()
	adv := p.adv
	p.mtx.Unlock()

	if adv == nil {
		return nil
	}

	return adv.Stop()
}

func (p *Peripheral) SetConnectHandler(fn func(peer string, connected bool)) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.onConnect = fn
}

// Notify sets the characteristic value, which notifies subscribed centrals.
func (p *Peripheral) Notify(payload []byte) error {
	_, err := p.char.Write(payload)
	return err
}

// Central scans for and connects to the sensor node.
type Central struct {
	mtx sync.Mutex

	radio        *Radio
	services     []bluetooth.UUID
	onDisconnect map[string]func()

	logger *slog.Logger
}

var _ link.CentralRadio = (*Central)(nil)

// NewCentral returns a central that reports the listed services when an
// advertisement carries them.
func NewCentral(radio *Radio, services []string, logger *slog.Logger) (*Central, error) {
	c := &Central{
		radio:        radio,
		onDisconnect: make(map[string]func()),
		logger:       logger.With("transport", "ble"),
	}

	for _, s := range services {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return nil, err
		}
		c.services = append(c.services, u)
	}

	radio.mtx.Lock()
	radio.central = c.handleConnect
	radio.mtx.Unlock()

	return c, nil
}

func (c *Central) handleConnect(addr string, connected bool) {
	if connected {
		return
	}

	key := addrKey(addr)

	c.mtx.Lock()
	fn, ok := c.onDisconnect[key]
	delete(c.onDisconnect, key)
	c.mtx.Unlock()

	if ok && fn != nil {
		go fn()
	}
}

// StartScan runs the blocking adapter scan on its own goroutine.
func (c *Central) StartScan(fn func(link.Advertisement)) error {
	go func() {
		err := c.radio.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			adv := link.Advertisement{
				Address:   result.Address.String(),
				LocalName: result.LocalName(),
				RSSI:      result.RSSI,
			}

			for _, u := range c.services {
				if result.HasServiceUUID(u) {
					adv.Services = append(adv.Services, u.String())
				}
			}

			fn(adv)
		})
		if err != nil {
			c.logger.Error("scan failed", "err", err)
		}
	}()

	return nil
}

func (c *Central) StopScan() error {
	return c.radio.adapter.StopScan()
}

func (c *Central) Connect(ctx context.Context, adv link.Advertisement, onDisconnect func()) (link.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mac, err := bluetooth.ParseMAC(adv.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", adv.Address, err)
	}

	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	c.radio.dial(adv.Address)

	device, err := c.radio.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		c.radio.hangup(adv.Address)
		return nil, err
	}

	c.mtx.Lock()
	c.onDisconnect[addrKey(adv.Address)] = onDisconnect
	c.mtx.Unlock()

	return &connection{central: c, device: device, peer: adv.Address}, nil
}

type connection struct {
	central *Central
	device  bluetooth.Device
	peer    string
}

func (c *connection) Peer() string {
	return c.peer
}

func (c *connection) DiscoverService(ctx context.Context, service string) (link.RemoteService, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := bluetooth.ParseUUID(service)
	if err != nil {
		return nil, err
	}

	services, err := c.device.DiscoverServices([]bluetooth.UUID{u})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", link.ErrServiceNotFound, err)
	}

	if len(services) == 0 {
		return nil, link.ErrServiceNotFound
	}

	return &remoteService{svc: services[0]}, nil
}

// Disconnect is central initiated and does not call the disconnect callback.
func (c *connection) Disconnect() error {
	c.central.mtx.Lock()
	delete(c.central.onDisconnect, addrKey(c.peer))
	c.central.mtx.Unlock()

	return c.device.Disconnect()
}

type remoteService struct {
	svc bluetooth.DeviceService
}

func (s *remoteService) DiscoverCharacteristic(ctx context.Context, characteristic string) (link.RemoteCharacteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := bluetooth.ParseUUID(characteristic)
	if err != nil {
		return nil, err
	}

	chars, err := s.svc.DiscoverCharacteristics([]bluetooth.UUID{u})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", link.ErrCharacteristicNotFound, err)
	}

	if len(chars) == 0 {
		return nil, link.ErrCharacteristicNotFound
	}

	return &remoteCharacteristic{char: chars[0]}, nil
}

type remoteCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (r *remoteCharacteristic) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, 64)
	n, err := r.char.Read(buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

func (r *remoteCharacteristic) EnableNotifications(fn func([]byte)) error {
	return r.char.EnableNotifications(fn)
}
