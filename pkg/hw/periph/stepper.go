package periph

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Stepper drives a four wire stepper with the full step sequence.
type Stepper struct {
	coils [4]gpio.PinIO
	delay time.Duration
	phase int
}

func NewStepper(names []string, stepsPerRevolution, rpm int) (*Stepper, error) {
	if len(names) != 4 {
		return nil, fmt.Errorf("stepper needs 4 pins, got %d", len(names))
	}

	var coils [4]gpio.PinIO
	for i, name := range names {
		p, err := pin(name)
		if err != nil {
			return nil, err
		}
		coils[i] = p
	}

	return newStepper(coils, stepsPerRevolution, rpm)
}

func newStepper(coils [4]gpio.PinIO, stepsPerRevolution, rpm int) (*Stepper, error) {
	if stepsPerRevolution <= 0 || rpm <= 0 {
		return nil, fmt.Errorf("invalid stepper speed: %d steps/rev at %d rpm", stepsPerRevolution, rpm)
	}

	for _, c := range coils {
		if err := c.Out(gpio.Low); err != nil {
			return nil, err
		}
	}

	return &Stepper{
		coils: coils,
		delay: time.Minute / time.Duration(stepsPerRevolution*rpm),
	}, nil
}

var coilSequence = [4][4]gpio.Level{
	{gpio.High, gpio.Low, gpio.High, gpio.Low},
	{gpio.Low, gpio.High, gpio.High, gpio.Low},
	{gpio.Low, gpio.High, gpio.Low, gpio.High},
	{gpio.High, gpio.Low, gpio.Low, gpio.High},
}

func (s *Stepper) Step(ctx context.Context, steps int) error {
	dir := 1
	if steps < 0 {
		dir = -1
		steps = -steps
	}

	t := time.NewTicker(s.delay)
	defer t.Stop()

	for i := 0; i < steps; i++ {
		s.phase = (s.phase + dir + 4) % 4
		for c, level := range coilSequence[s.phase] {
			if err := s.coils[c].Out(level); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	return nil
}
