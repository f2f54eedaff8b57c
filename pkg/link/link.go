// Package link carries telemetry from the sensor node to the display node.
//
// The sensor side is a peripheral that advertises one service with one
// notifying characteristic and accepts a single subscriber.  The display side
// is a central that scans for the service, connects, discovers the
// characteristic and enables notifications.  Transports implement the radio
// interfaces: memory for in-process use, mqtt over a broker and ble over a
// Bluetooth adapter.
package link

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zachfi/zkit/pkg/util"
)

var (
	ErrServiceNotFound        = errors.New("service not found")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	ErrLinkBusy               = errors.New("link already has a subscriber")
	ErrNotConnected           = errors.New("not connected")
)

const (
	DefaultService        = "db0e37aa-c7ff-4584-936d-e39622848d33"
	DefaultCharacteristic = "0fd8fa9f-34da-40bb-8cb7-afc7d0174389"
	DefaultLocalName      = "ESP32_Color_Detector"
)

// Identity names the service the two nodes agree on.
type Identity struct {
	Service        string `yaml:"service,omitempty"`
	Characteristic string `yaml:"characteristic,omitempty"`
	LocalName      string `yaml:"local_name,omitempty"`
}

func DefaultIdentity() Identity {
	return Identity{
		Service:        DefaultService,
		Characteristic: DefaultCharacteristic,
		LocalName:      DefaultLocalName,
	}
}

func (i *Identity) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&i.Service, util.PrefixConfig(prefix, "service"), DefaultService, "The service UUID advertised by the sensor node")
	f.StringVar(&i.Characteristic, util.PrefixConfig(prefix, "characteristic"), DefaultCharacteristic, "The characteristic UUID that carries telemetry")
	f.StringVar(&i.LocalName, util.PrefixConfig(prefix, "local-name"), DefaultLocalName, "The name the sensor node advertises")
}

func (i Identity) Validate() error {
	if _, err := uuid.Parse(i.Service); err != nil {
		return fmt.Errorf("invalid service uuid %q: %w", i.Service, err)
	}

	if _, err := uuid.Parse(i.Characteristic); err != nil {
		return fmt.Errorf("invalid characteristic uuid %q: %w", i.Characteristic, err)
	}

	return nil
}

// SameUUID compares two UUID strings independent of case and formatting.
func SameUUID(a, b string) bool {
	ua, err := uuid.Parse(a)
	if err != nil {
		return strings.EqualFold(a, b)
	}

	ub, err := uuid.Parse(b)
	if err != nil {
		return false
	}

	return ua == ub
}

// Advertisement is one observed advertising packet.
type Advertisement struct {
	Address   string
	LocalName string
	Services  []string
	RSSI      int16
}

// Advertises reports whether the advertisement lists service.
func (a Advertisement) Advertises(service string) bool {
	for _, s := range a.Services {
		if SameUUID(s, service) {
			return true
		}
	}
	return false
}

// PeripheralRadio is the sensor side of a transport.
type PeripheralRadio interface {
	// Register declares the service and its read, write and notify
	// characteristic.
	Register(id Identity) error
	StartAdvertising() error
	StopAdvertising() error
	// SetConnectHandler is called from the transport whenever a central
	// connects or disconnects.
	SetConnectHandler(fn func(peer string, connected bool))
	// Notify pushes a characteristic value to the connected central.
	Notify(payload []byte) error
}

// CentralRadio is the display side of a transport.
type CentralRadio interface {
	// StartScan delivers every advertisement to fn until StopScan.  fn may be
	// called from another goroutine.
	StartScan(fn func(Advertisement)) error
	StopScan() error
	// Connect opens a connection to the advertiser.  onDisconnect is called
	// once when the connection drops after Connect returned.
	Connect(ctx context.Context, adv Advertisement, onDisconnect func()) (Connection, error)
}

type Connection interface {
	Peer() string
	DiscoverService(ctx context.Context, service string) (RemoteService, error)
	Disconnect() error
}

type RemoteService interface {
	DiscoverCharacteristic(ctx context.Context, characteristic string) (RemoteCharacteristic, error)
}

type RemoteCharacteristic interface {
	Read(ctx context.Context) ([]byte, error)
	// EnableNotifications subscribes fn to value changes.  fn runs in the
	// transport's context and must not block.
	EnableNotifications(fn func(payload []byte)) error
}
