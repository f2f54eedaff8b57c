package app

import (
	"context"

	linkmodule "github.com/zachfi/colordial/modules/link"
	"github.com/zachfi/colordial/pkg/link"
)

// The node services are built before the link module has started, so their
// radios resolve the transport on first use.

type deferredPeripheral struct {
	link *linkmodule.Link
}

func (d *deferredPeripheral) radio() (link.PeripheralRadio, error) {
	r := d.link.Peripheral()
	if r == nil {
		return nil, link.ErrNotConnected
	}
	return r, nil
}

func (d *deferredPeripheral) Register(id link.Identity) error {
	r, err := d.radio()
	if err != nil {
		return err
	}
	return r.Register(id)
}

func (d *deferredPeripheral) StartAdvertising() error {
	r, err := d.radio()
	if err != nil {
		return err
	}
	return r.StartAdvertising()
}

func (d *deferredPeripheral) StopAdvertising() error {
	r, err := d.radio()
	if err != nil {
		return err
	}
	return r.StopAdvertising()
}

func (d *deferredPeripheral) SetConnectHandler(fn func(peer string, connected bool)) {
	if r, err := d.radio(); err == nil {
		r.SetConnectHandler(fn)
	}
}

func (d *deferredPeripheral) Notify(payload []byte) error {
	r, err := d.radio()
	if err != nil {
		return err
	}
	return r.Notify(payload)
}

type deferredCentral struct {
	link *linkmodule.Link
}

func (d *deferredCentral) radio() (link.CentralRadio, error) {
	r := d.link.Central()
	if r == nil {
		return nil, link.ErrNotConnected
	}
	return r, nil
}

func (d *deferredCentral) StartScan(fn func(link.Advertisement)) error {
	r, err := d.radio()
	if err != nil {
		return err
	}
	return r.StartScan(fn)
}

func (d *deferredCentral) StopScan() error {
	r, err := d.radio()
	if err != nil {
		return err
	}
	return r.StopScan()
}

func (d *deferredCentral) Connect(ctx context.Context, adv link.Advertisement, onDisconnect func()) (link.Connection, error) {
	r, err := d.radio()
	if err != nil {
		return nil, err
	}
	return r.Connect(ctx, adv, onDisconnect)
}
