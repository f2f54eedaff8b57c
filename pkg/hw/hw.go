// Package hw describes the hardware capabilities the nodes depend on.  The
// calibration, classification and rendering code only ever sees these
// interfaces; drivers live in the sim and periph subpackages.
package hw

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	ErrSensorNotFound = errors.New("sensor not found")
	ErrUnknownDriver  = errors.New("unknown hardware driver")
)

// Channel is one filtered intensity channel of the color sensor.
type Channel int

const (
	ChannelRed Channel = iota
	ChannelGreen
	ChannelBlue
)

// Channels in measurement order.
var Channels = []Channel{ChannelRed, ChannelGreen, ChannelBlue}

var channelName = map[Channel]string{
	ChannelRed:   "red",
	ChannelGreen: "green",
	ChannelBlue:  "blue",
}

func (c Channel) String() string {
	if name, ok := channelName[c]; ok {
		return name
	}
	return "unknown"
}

// Reading is one instantaneous three channel sample.
type Reading struct {
	Red   uint32
	Green uint32
	Blue  uint32
}

func (r Reading) String() string {
	return fmt.Sprintf("r=%d g=%d b=%d", r.Red, r.Green, r.Blue)
}

// FrequencyReader measures one intensity channel.  The measurement is bounded
// by a timeout; a channel that produces no pulse in time reads 0.
type FrequencyReader interface {
	ReadFrequency(ctx context.Context, ch Channel) (uint32, error)
}

// LightSensor reports ambient light.
type LightSensor interface {
	// Probe checks that the device answers.  ErrSensorNotFound is returned
	// when it does not.
	Probe(ctx context.Context) error
	ReadLux(ctx context.Context) (float64, error)
}

// Button blocks until the next debounced press.
type Button interface {
	WaitForPress(ctx context.Context) error
}

// Screen accepts full frames.  The method set matches periph's display.Drawer
// so a periph device can be used directly.
type Screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Stepper moves a signed number of steps relative to its current position.
type Stepper interface {
	Step(ctx context.Context, steps int) error
}

// ReadRGB takes one sample through the red, green and blue filters in that
// order.
func ReadRGB(ctx context.Context, r FrequencyReader) (Reading, error) {
	var (
		reading Reading
		err     error
	)

	for _, ch := range Channels {
		var v uint32
		v, err = r.ReadFrequency(ctx, ch)
		if err != nil {
			return Reading{}, fmt.Errorf("failed to read %s channel: %w", ch, err)
		}

		switch ch {
		case ChannelRed:
			reading.Red = v
		case ChannelGreen:
			reading.Green = v
		case ChannelBlue:
			reading.Blue = v
		}
	}

	return reading, nil
}
