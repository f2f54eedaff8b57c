package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/grafana/dskit/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/colordial/pkg/calibration"
	"github.com/zachfi/colordial/pkg/hw"
	"github.com/zachfi/colordial/pkg/link"
	"github.com/zachfi/colordial/pkg/telemetry"
)

const (
	module = "sensor"

	actionCalibrate = "calibrate"
	actionPublish   = "publish"
)

// Hardware is what the sensor node is wired to.
type Hardware struct {
	Color  hw.FrequencyReader
	Light  hw.LightSensor
	Button hw.Button
}

// Status is a snapshot for status pages.
type Status struct {
	Stage    calibration.Stage
	Profiles []calibration.Profile
	Last     *telemetry.Report
	Presses  uint64
	Link     link.AdvertiserStatus
}

// Sensor is the sensor node.  One loop waits for the button: before
// calibration is done a press samples the next swatch, afterwards it
// classifies the sample and publishes the result.
type Sensor struct {
	services.Service

	cfg *Config

	hw         Hardware
	advertiser *link.Advertiser
	session    *calibration.Session
	engine     *calibration.Engine
	publisher  *telemetry.Publisher

	mtx     sync.Mutex
	last    *telemetry.Report
	presses uint64

	logger *slog.Logger
	tracer trace.Tracer
}

func New(cfg Config, hardware Hardware, advertiser *link.Advertiser, prompter calibration.Prompter, logger *slog.Logger) (*Sensor, error) {
	if hardware.Color == nil || hardware.Light == nil || hardware.Button == nil {
		return nil, errors.New("sensor hardware incomplete")
	}

	session := calibration.NewSession()

	s := &Sensor{
		cfg:        &cfg,
		hw:         hardware,
		advertiser: advertiser,
		session:    session,
		engine:     calibration.NewEngine(session, hardware.Color, prompter, cfg.Samples, logger),
		publisher:  telemetry.NewPublisher(advertiser, hardware.Light, hardware.Color, session, logger),
		logger:     logger.With("module", module),
		tracer:     otel.Tracer(module),
	}

	s.Service = services.NewBasicService(s.starting, s.running, s.stopping)
	return s, nil
}

func (s *Sensor) Session() *calibration.Session {
	return s.session
}

func (s *Sensor) Status() Status {
	s.mtx.Lock()
	last := s.last
	presses := s.presses
	s.mtx.Unlock()

	return Status{
		Stage:    s.session.Stage(),
		Profiles: s.session.Profiles(),
		Last:     last,
		Presses:  presses,
		Link:     s.advertiser.Status(),
	}
}

func (s *Sensor) starting(ctx context.Context) error {
	if err := s.hw.Light.Probe(ctx); err != nil {
		return fmt.Errorf("light sensor: %w", err)
	}
	s.logger.Info("light sensor found")

	if err := s.advertiser.Start(ctx); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}

	s.engine.Begin()

	return nil
}

func (s *Sensor) running(ctx context.Context) error {
	for {
		if err := s.hw.Button.WaitForPress(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("button: %w", err)
		}

		s.press(ctx)
	}
}

func (s *Sensor) stopping(_ error) error {
	return s.advertiser.Stop()
}

func (s *Sensor) press(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "Sensor.press")
	defer span.End()

	defer func() {
		s.mtx.Lock()
		s.presses++
		s.mtx.Unlock()
	}()

	if !s.session.Done() {
		metricPresses.WithLabelValues(actionCalibrate).Inc()

		if _, err := s.engine.Press(ctx); err != nil {
			metricPressErrors.WithLabelValues(actionCalibrate).Inc()
			span.RecordError(err)
			s.logger.Error("calibration failed", "stage", s.session.Stage().String(), "err", err)
		}
		return
	}

	metricPresses.WithLabelValues(actionPublish).Inc()

	report, err := s.publisher.Publish(ctx)
	if err != nil {
		metricPressErrors.WithLabelValues(actionPublish).Inc()
		span.RecordError(err)
		s.logger.Error("publish failed", "err", err)
	}

	s.mtx.Lock()
	s.last = &report
	s.mtx.Unlock()
}
