package calibration

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/colordial/pkg/hw"
)

const (
	module = "calibration"

	// DefaultSamples is the number of readings averaged per swatch.
	DefaultSamples = 5
)

// Engine drives a Session through the calibration stages, one button press
// per reference color.
type Engine struct {
	session  *Session
	reader   hw.FrequencyReader
	prompter Prompter
	samples  int

	logger *slog.Logger
	tracer trace.Tracer
}

func NewEngine(session *Session, reader hw.FrequencyReader, prompter Prompter, samples int, logger *slog.Logger) *Engine {
	if samples <= 0 {
		samples = DefaultSamples
	}

	if prompter == nil {
		prompter = NopPrompter{}
	}

	return &Engine{
		session:  session,
		reader:   reader,
		prompter: prompter,
		samples:  samples,
		logger:   logger.With("module", module),
		tracer:   otel.Tracer(module),
	}
}

func (e *Engine) Session() *Session {
	return e.session
}

// Begin moves the session out of Waiting and asks for the first swatch.
func (e *Engine) Begin() {
	stage := e.session.begin()
	metricStage.Set(float64(Ordinal(stage)))
	e.prompter.Prompt(stage)
}

// Press samples the swatch for the active stage, stores its profile and
// advances.  A failed measurement records nothing and leaves the stage as it
// was.
func (e *Engine) Press(ctx context.Context) (Profile, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Press")
	defer span.End()

	stage := e.session.Stage()
	span.SetAttributes(attribute.String("stage", stage.String()))

	c, ok := stage.(Calibrating)
	if !ok {
		if _, done := stage.(Done); done {
			return Profile{}, ErrCalibrationComplete
		}
		return Profile{}, ErrNotCalibrating
	}

	e.logger.Info("starting calibration", "color", c.Color.String())

	reading, err := e.average(ctx)
	if err != nil {
		metricSampleErrors.Inc()
		span.RecordError(err)
		return Profile{}, fmt.Errorf("failed to sample %s: %w", c.Color, err)
	}

	p := Profile{Color: c.Color, Reading: reading}

	next, err := e.session.record(p)
	if err != nil {
		span.RecordError(err)
		return Profile{}, err
	}

	metricStage.Set(float64(Ordinal(next)))
	metricProfileFrequency.WithLabelValues(c.Color.String(), hw.ChannelRed.String()).Set(float64(reading.Red))
	metricProfileFrequency.WithLabelValues(c.Color.String(), hw.ChannelGreen.String()).Set(float64(reading.Green))
	metricProfileFrequency.WithLabelValues(c.Color.String(), hw.ChannelBlue.String()).Set(float64(reading.Blue))

	e.logger.Info("calibrated",
		"color", c.Color.String(),
		"red", reading.Red,
		"green", reading.Green,
		"blue", reading.Blue,
	)

	e.prompter.Report(p)
	e.prompter.Prompt(next)

	return p, nil
}

// average takes the configured number of samples and divides each channel
// sum by the sample count, truncating.
func (e *Engine) average(ctx context.Context) (hw.Reading, error) {
	var red, green, blue uint64

	for i := 0; i < e.samples; i++ {
		r, err := hw.ReadRGB(ctx, e.reader)
		if err != nil {
			return hw.Reading{}, err
		}

		red += uint64(r.Red)
		green += uint64(r.Green)
		blue += uint64(r.Blue)
	}

	n := uint64(e.samples)

	return hw.Reading{
		Red:   uint32(red / n),
		Green: uint32(green / n),
		Blue:  uint32(blue / n),
	}, nil
}
