package periph

import (
	"context"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/zachfi/colordial/pkg/hw"
)

// TCS230 is a light-to-frequency color sensor.  S2/S3 select the photodiode
// filter, S0/S1 the output frequency scaling.
type TCS230 struct {
	s2, s3  gpio.PinIO
	out     gpio.PinIO
	timeout time.Duration
}

func NewTCS230(pins hw.ColorSensorPins, timeout time.Duration) (*TCS230, error) {
	s0, err := pin(pins.S0)
	if err != nil {
		return nil, err
	}
	s1, err := pin(pins.S1)
	if err != nil {
		return nil, err
	}
	s2, err := pin(pins.S2)
	if err != nil {
		return nil, err
	}
	s3, err := pin(pins.S3)
	if err != nil {
		return nil, err
	}
	out, err := pin(pins.Out)
	if err != nil {
		return nil, err
	}

	return newTCS230(s0, s1, s2, s3, out, timeout)
}

func newTCS230(s0, s1, s2, s3, out gpio.PinIO, timeout time.Duration) (*TCS230, error) {
	// 2% output scaling
	if err := s0.Out(gpio.Low); err != nil {
		return nil, err
	}
	if err := s1.Out(gpio.High); err != nil {
		return nil, err
	}

	if err := out.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return nil, err
	}

	return &TCS230{s2: s2, s3: s3, out: out, timeout: timeout}, nil
}

// filterLevels returns the S2 and S3 levels that select the channel filter.
func filterLevels(ch hw.Channel) (gpio.Level, gpio.Level) {
	switch ch {
	case hw.ChannelGreen:
		return gpio.High, gpio.High
	case hw.ChannelBlue:
		return gpio.Low, gpio.High
	default:
		return gpio.Low, gpio.Low
	}
}

// ReadFrequency returns the width of one low pulse in microseconds.  A pulse
// that does not complete within the timeout reads 0.
func (t *TCS230) ReadFrequency(ctx context.Context, ch hw.Channel) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s2, s3 := filterLevels(ch)
	if err := t.s2.Out(s2); err != nil {
		return 0, err
	}
	if err := t.s3.Out(s3); err != nil {
		return 0, err
	}

	return pulseLow(t.out, t.timeout), nil
}

func pulseLow(p gpio.PinIO, timeout time.Duration) uint32 {
	deadline := time.Now().Add(timeout)

	waitWhile := func(l gpio.Level) bool {
		for p.Read() == l {
			remaining := time.Until(deadline)
			if remaining <= 0 || !p.WaitForEdge(remaining) {
				return false
			}
		}
		return true
	}

	// let a pulse already in progress finish
	if !waitWhile(gpio.Low) {
		return 0
	}
	if !waitWhile(gpio.High) {
		return 0
	}
	start := time.Now()
	if !waitWhile(gpio.Low) {
		return 0
	}

	return uint32(time.Since(start).Microseconds())
}
