package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/colordial/pkg/calibration"
	"github.com/zachfi/colordial/pkg/classifier"
	"github.com/zachfi/colordial/pkg/hw"
)

const module = "telemetry"

var ErrNotCalibrated = errors.New("calibration not done")

// Notifier pushes one payload to the subscriber, if any.  Without a
// subscriber it returns nil and sends nothing.
type Notifier interface {
	Notify(payload []byte) error
}

// Report is what one publish cycle measured and sent.
type Report struct {
	Lux     float64
	Reading hw.Reading
	Result  classifier.Result
	Sent    []Message
}

type Publisher struct {
	notifier Notifier
	light    hw.LightSensor
	reader   hw.FrequencyReader
	session  *calibration.Session

	logger *slog.Logger
	tracer trace.Tracer
}

func NewPublisher(notifier Notifier, light hw.LightSensor, reader hw.FrequencyReader, session *calibration.Session, logger *slog.Logger) *Publisher {
	return &Publisher{
		notifier: notifier,
		light:    light,
		reader:   reader,
		session:  session,
		logger:   logger.With("module", module),
		tracer:   otel.Tracer(module),
	}
}

// Publish sends the ambient light reading and then the classified color.
// Both sends are fire and forget.  A failed lux read still lets the color
// through.
func (p *Publisher) Publish(ctx context.Context) (Report, error) {
	ctx, span := p.tracer.Start(ctx, "Publisher.Publish")
	defer span.End()

	var report Report

	if !p.session.Done() {
		return report, ErrNotCalibrated
	}

	lux, err := p.light.ReadLux(ctx)
	if err != nil {
		metricReadErrors.WithLabelValues("lux").Inc()
		p.logger.Error("failed to read lux", "err", err)
	} else {
		report.Lux = lux
		metricLux.Set(lux)
		p.send(&report, Lux(lux))
	}

	reading, err := hw.ReadRGB(ctx, p.reader)
	if err != nil {
		metricReadErrors.WithLabelValues("color").Inc()
		span.RecordError(err)
		return report, fmt.Errorf("failed to read color: %w", err)
	}
	report.Reading = reading

	res := classifier.Classify(reading, p.session.Profiles())
	report.Result = res

	if !res.Clear {
		p.logger.Info("color unclear", "reading", reading.String())
		p.send(&report, Unclear())
		return report, nil
	}

	span.SetAttributes(
		attribute.String("color", res.Color.String()),
		attribute.Int64("distance", int64(res.Distance)),
	)
	metricDetections.WithLabelValues(res.Color.String()).Inc()

	p.logger.Info("color detected",
		"color", res.Color.String(),
		"distance", res.Distance,
		"reading", reading.String(),
	)

	p.send(&report, Color(res.Color.String()))

	return report, nil
}

func (p *Publisher) send(report *Report, m Message) {
	report.Sent = append(report.Sent, m)

	if err := p.notifier.Notify(m.Encode()); err != nil {
		metricNotifyErrors.Inc()
		p.logger.Error("failed to notify", "message", m.String(), "err", err)
		return
	}

	metricSent.WithLabelValues(m.Kind.String()).Inc()
}
