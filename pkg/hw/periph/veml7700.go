package periph

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/zachfi/colordial/pkg/hw"
)

const (
	vemlRegConfig = 0x00
	vemlRegALS    = 0x04
	vemlRegID     = 0x07

	vemlDeviceID = 0x81

	// gain 1/8, 100ms integration, powered on
	vemlConfig = 0x02 << 11

	// lux per count at gain 1/8 and 100ms integration
	vemlResolution = 0.5376

	vemlSettle = 110 * time.Millisecond
)

// VEML7700 is an ambient light sensor.
type VEML7700 struct {
	dev *i2c.Dev
}

func NewVEML7700(bus i2c.Bus, addr uint16) *VEML7700 {
	return &VEML7700{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

func (v *VEML7700) Probe(ctx context.Context) error {
	id := make([]byte, 2)
	if err := v.dev.Tx([]byte{vemlRegID}, id); err != nil {
		return fmt.Errorf("%w: veml7700: %w", hw.ErrSensorNotFound, err)
	}

	if id[0] != vemlDeviceID {
		return fmt.Errorf("%w: veml7700: unexpected device id %#x", hw.ErrSensorNotFound, id[0])
	}

	if err := v.dev.Tx([]byte{vemlRegConfig, byte(vemlConfig & 0xff), byte(vemlConfig >> 8)}, nil); err != nil {
		return fmt.Errorf("failed to configure veml7700: %w", err)
	}

	t := time.NewTimer(vemlSettle)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	return nil
}

func (v *VEML7700) ReadLux(_ context.Context) (float64, error) {
	r := make([]byte, 2)
	if err := v.dev.Tx([]byte{vemlRegALS}, r); err != nil {
		return 0, fmt.Errorf("failed to read veml7700: %w", err)
	}

	raw := uint16(r[0]) | uint16(r[1])<<8
	return float64(raw) * vemlResolution, nil
}
