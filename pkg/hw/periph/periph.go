// Package periph drives the real sensor and display hardware through
// periph.io on a Linux single board computer.
package periph

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

var initOnce = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// Init loads the host drivers.  It is safe to call more than once.
func Init() error {
	if err := initOnce(); err != nil {
		return fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	return nil
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown gpio pin %q", name)
	}
	return p, nil
}

// OpenBus opens the named I2C bus, or the first one when name is empty.
func OpenBus(name string) (i2c.BusCloser, error) {
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", name, err)
	}
	return bus, nil
}

// OpenScreen opens an SSD1306 panel on the bus.
func OpenScreen(bus i2c.Bus) (*ssd1306.Dev, error) {
	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ssd1306: %w", err)
	}
	return dev, nil
}
