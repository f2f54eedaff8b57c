package periph

import (
	"context"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/zachfi/colordial/pkg/hw"
)

const edgePoll = 100 * time.Millisecond

// Button is an active low push button with the internal pull-up enabled.
type Button struct {
	pin       gpio.PinIO
	debouncer *hw.Debouncer
}

func NewButton(name string, debounce time.Duration) (*Button, error) {
	p, err := pin(name)
	if err != nil {
		return nil, err
	}

	return newButton(p, debounce)
}

func newButton(p gpio.PinIO, debounce time.Duration) (*Button, error) {
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, err
	}

	return &Button{pin: p, debouncer: hw.NewDebouncer(debounce)}, nil
}

func (b *Button) WaitForPress(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !b.pin.WaitForEdge(edgePoll) {
			continue
		}

		if b.pin.Read() != gpio.Low {
			continue
		}

		if b.debouncer.Accept(time.Now()) {
			return nil
		}
	}
}
