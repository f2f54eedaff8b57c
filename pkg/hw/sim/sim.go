// Package sim provides in-memory hardware used by the all-in-one target and by
// tests.
package sim

import (
	"context"
	"image"
	"image/draw"
	"math/rand"
	"sync"
	"time"

	"github.com/zachfi/colordial/pkg/colors"
	"github.com/zachfi/colordial/pkg/hw"
)

// Swatches are representative TCS230 pulse widths for each reference color
// held close to the sensor.  Smaller is brighter.
var Swatches = map[colors.Reference]hw.Reading{
	colors.Red:       {Red: 24, Green: 82, Blue: 64},
	colors.Orange:    {Red: 21, Green: 52, Blue: 58},
	colors.Yellow:    {Red: 18, Green: 24, Blue: 47},
	colors.Green:     {Red: 56, Green: 33, Blue: 49},
	colors.LightBlue: {Red: 60, Green: 31, Blue: 20},
	colors.Blue:      {Red: 70, Green: 55, Blue: 27},
	colors.Purple:    {Red: 41, Green: 66, Blue: 35},
}

// ColorSensor returns the configured reading for each channel, optionally
// with uniform jitter.
type ColorSensor struct {
	mtx     sync.Mutex
	reading hw.Reading
	jitter  int
	rnd     *rand.Rand
}

func NewColorSensor(jitter int) *ColorSensor {
	return &ColorSensor{
		reading: Swatches[colors.Red],
		jitter:  jitter,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetSwatch places the named reference swatch in front of the sensor.
func (c *ColorSensor) SetSwatch(ref colors.Reference) {
	c.SetReading(Swatches[ref])
}

func (c *ColorSensor) SetReading(r hw.Reading) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.reading = r
}

func (c *ColorSensor) ReadFrequency(ctx context.Context, ch hw.Channel) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	var v uint32
	switch ch {
	case hw.ChannelRed:
		v = c.reading.Red
	case hw.ChannelGreen:
		v = c.reading.Green
	case hw.ChannelBlue:
		v = c.reading.Blue
	}

	if c.jitter > 0 {
		d := c.rnd.Intn(2*c.jitter+1) - c.jitter
		if int(v)+d < 0 {
			return 0, nil
		}
		v = uint32(int(v) + d)
	}

	return v, nil
}

// LightSensor reports a fixed lux value.
type LightSensor struct {
	mtx     sync.Mutex
	present bool
	lux     float64
}

func NewLightSensor(present bool, lux float64) *LightSensor {
	return &LightSensor{present: present, lux: lux}
}

func (l *LightSensor) SetLux(v float64) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.lux = v
}

func (l *LightSensor) Probe(_ context.Context) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.present {
		return hw.ErrSensorNotFound
	}
	return nil
}

func (l *LightSensor) ReadLux(_ context.Context) (float64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.present {
		return 0, hw.ErrSensorNotFound
	}
	return l.lux, nil
}

// Button is pressed programmatically.
type Button struct {
	presses   chan struct{}
	debouncer *hw.Debouncer
}

func NewButton(debounce time.Duration) *Button {
	return &Button{
		presses:   make(chan struct{}, 1),
		debouncer: hw.NewDebouncer(debounce),
	}
}

// Press injects a falling edge.  It returns false when the edge was swallowed
// by the debounce window or a press is already pending.
func (b *Button) Press() bool {
	if !b.debouncer.Accept(time.Now()) {
		return false
	}

	select {
	case b.presses <- struct{}{}:
		return true
	default:
		return false
	}
}

func (b *Button) WaitForPress(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.presses:
		return nil
	}
}

// Screen keeps the last frame in memory.
type Screen struct {
	mtx    sync.Mutex
	frame  *image.Gray
	frames int
}

func NewScreen(width, height int) *Screen {
	return &Screen{frame: image.NewGray(image.Rect(0, 0, width, height))}
}

func (s *Screen) Bounds() image.Rectangle {
	return s.frame.Bounds()
}

func (s *Screen) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	draw.Draw(s.frame, r, src, sp, draw.Src)
	s.frames++
	return nil
}

// Frames returns the number of frames drawn so far.
func (s *Screen) Frames() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.frames
}

// Frame returns a copy of the last frame.
func (s *Screen) Frame() *image.Gray {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	c := image.NewGray(s.frame.Bounds())
	copy(c.Pix, s.frame.Pix)
	return c
}

// Stepper records the moves it is asked to make.
type Stepper struct {
	mtx      sync.Mutex
	position int
	moves    []int
}

func NewStepper() *Stepper {
	return &Stepper{}
}

func (s *Stepper) Step(ctx context.Context, steps int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.position += steps
	s.moves = append(s.moves, steps)
	return nil
}

// Position is the physical position, the sum of every move.
func (s *Stepper) Position() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.position
}

func (s *Stepper) Moves() []int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]int(nil), s.moves...)
}
