// Package render shows received telemetry on the display node's screen and
// asks the dial to follow the detected color.
package render

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/zachfi/colordial/pkg/hw"
	"github.com/zachfi/colordial/pkg/telemetry"
)

const (
	module = "render"

	BootText    = "Connecting..."
	WaitingText = "Waiting..."

	luxLabel   = "Lux Detected: "
	colorLabel = "Color Detected: "
)

// Mover points the dial at a color by name.
type Mover interface {
	MoveTo(ctx context.Context, name string) (int, error)
}

// State is what the screen currently shows.
type State struct {
	Lux     string
	Color   string
	Frames  int
	Ignored int
}

type Renderer struct {
	mtx sync.Mutex

	screen hw.Screen
	dial   Mover
	state  State

	logger *slog.Logger
	tracer trace.Tracer
}

func New(screen hw.Screen, dial Mover, logger *slog.Logger) *Renderer {
	return &Renderer{
		screen: screen,
		dial:   dial,
		state: State{
			Lux:   WaitingText,
			Color: WaitingText,
		},
		logger: logger.With("module", module),
		tracer: otel.Tracer(module),
	}
}

// Boot clears the screen and shows the connecting banner.
func (r *Renderer) Boot() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.draw(BootText)
}

// Handle applies one notification payload.  Payloads without a known prefix
// change nothing.
func (r *Renderer) Handle(ctx context.Context, payload []byte) error {
	ctx, span := r.tracer.Start(ctx, "Renderer.Handle")
	defer span.End()

	msg := telemetry.Parse(payload)
	span.SetAttributes(attribute.String("kind", msg.Kind.String()))

	r.mtx.Lock()
	defer r.mtx.Unlock()

	switch msg.Kind {
	case telemetry.KindLux:
		r.state.Lux = msg.Value
	case telemetry.KindColor:
		r.state.Color = msg.Value
	default:
		r.state.Ignored++
		metricMessages.WithLabelValues(msg.Kind.String()).Inc()
		r.logger.Debug("ignoring message", "payload", msg.Value)
		return nil
	}

	metricMessages.WithLabelValues(msg.Kind.String()).Inc()

	if err := r.draw(luxLabel+r.state.Lux, colorLabel+r.state.Color); err != nil {
		span.RecordError(err)
		r.logger.Error("failed to repaint", "err", err)
	}

	if msg.Kind != telemetry.KindColor || r.dial == nil {
		return nil
	}

	move, err := r.dial.MoveTo(ctx, msg.Value)
	if err != nil {
		span.RecordError(err)
		return err
	}

	r.logger.Info("dial moved", "color", msg.Value, "steps", move)

	return nil
}

func (r *Renderer) State() State {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.state
}

func (r *Renderer) draw(lines ...string) error {
	img := Frame(r.screen.Bounds(), lines...)

	if err := r.screen.Draw(img.Bounds(), img, image.Point{}); err != nil {
		metricDrawErrors.Inc()
		return err
	}

	r.state.Frames++
	metricFrames.Inc()

	return nil
}

// Frame renders lines of text top down into a fresh frame of the given size.
func Frame(bounds image.Rectangle, lines ...string) *image.Gray {
	img := image.NewGray(bounds)

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
	}

	lineHeight := face.Metrics().Height.Ceil()
	for i, line := range lines {
		d.Dot = fixed.P(bounds.Min.X, bounds.Min.Y+face.Ascent+i*(lineHeight+2))
		d.DrawString(line)
	}

	return img
}
