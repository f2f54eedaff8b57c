package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/grafana/dskit/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/colordial/pkg/dial"
	"github.com/zachfi/colordial/pkg/hw"
	"github.com/zachfi/colordial/pkg/link"
	"github.com/zachfi/colordial/pkg/render"
)

const module = "display"

// Hardware is what the display node is wired to.
type Hardware struct {
	Screen  hw.Screen
	Stepper hw.Stepper
}

// Status is a snapshot for status pages.
type Status struct {
	Render   render.State
	Position int
	Link     link.SubscriberStatus
}

// Display is the display node.  One loop turns connect requests into
// connection attempts and notifications into screen repaints and dial moves.
type Display struct {
	services.Service

	cfg *Config

	subscriber *link.Subscriber
	dial       *dial.Actuator
	renderer   *render.Renderer

	logger *slog.Logger
	tracer trace.Tracer
}

func New(cfg Config, hardware Hardware, subscriber *link.Subscriber, logger *slog.Logger) (*Display, error) {
	if hardware.Screen == nil || hardware.Stepper == nil {
		return nil, errors.New("display hardware incomplete")
	}

	d, err := dial.New(cfg.Dial, hardware.Stepper, logger)
	if err != nil {
		return nil, err
	}

	disp := &Display{
		cfg:        &cfg,
		subscriber: subscriber,
		dial:       d,
		renderer:   render.New(hardware.Screen, d, logger),
		logger:     logger.With("module", module),
		tracer:     otel.Tracer(module),
	}

	disp.Service = services.NewBasicService(disp.starting, disp.running, disp.stopping)
	return disp, nil
}

func (d *Display) Status() Status {
	return Status{
		Render:   d.renderer.State(),
		Position: d.dial.Position(),
		Link:     d.subscriber.Status(),
	}
}

func (d *Display) starting(_ context.Context) error {
	if err := d.renderer.Boot(); err != nil {
		return fmt.Errorf("failed to draw boot screen: %w", err)
	}

	if err := d.subscriber.Start(); err != nil {
		return fmt.Errorf("failed to start scanning: %w", err)
	}

	return nil
}

func (d *Display) running(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case adv := <-d.subscriber.Requests():
			d.connect(ctx, adv)
		case payload := <-d.subscriber.Notifications():
			d.handle(ctx, payload)
		}
	}
}

func (d *Display) stopping(_ error) error {
	return d.subscriber.Disconnect()
}

func (d *Display) connect(ctx context.Context, adv link.Advertisement) {
	if err := d.subscriber.Connect(ctx, adv); err != nil {
		metricConnectAttempts.WithLabelValues("abandoned").Inc()
		d.logger.Warn("connection abandoned", "peer", adv.Address, "err", err)
		return
	}

	metricConnectAttempts.WithLabelValues("connected").Inc()
}

func (d *Display) handle(ctx context.Context, payload []byte) {
	ctx, span := d.tracer.Start(ctx, "Display.handle")
	defer span.End()

	if err := d.renderer.Handle(ctx, payload); err != nil {
		metricHandleErrors.Inc()
		span.RecordError(err)
		d.logger.Error("failed to handle notification", "payload", string(payload), "err", err)
	}
}
