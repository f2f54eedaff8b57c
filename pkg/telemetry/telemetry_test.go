package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zachfi/colordial/pkg/calibration"
	"github.com/zachfi/colordial/pkg/colors"
	"github.com/zachfi/colordial/pkg/hw"
	"github.com/zachfi/colordial/pkg/hw/sim"
)

type captureNotifier struct {
	payloads [][]byte
	err      error
}

func (c *captureNotifier) Notify(payload []byte) error {
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captureNotifier) strings() []string {
	var out []string
	for _, p := range c.payloads {
		out = append(out, string(p))
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func calibrated(t *testing.T, sensor *sim.ColorSensor) *calibration.Session {
	t.Helper()

	session := calibration.NewSession()
	e := calibration.NewEngine(session, sensor, nil, 5, testLogger())
	e.Begin()

	for _, ref := range colors.References {
		sensor.SetSwatch(ref)
		_, err := e.Press(context.Background())
		require.NoError(t, err)
	}

	require.True(t, session.Done())
	return session
}

func TestParse(t *testing.T) {
	cases := []struct {
		name     string
		payload  []byte
		expected Message
	}{
		{name: "lux", payload: []byte("Lux: 123.45"), expected: Message{Kind: KindLux, Value: "123.45"}},
		{name: "color", payload: []byte("Color Detected: Light Blue"), expected: Message{Kind: KindColor, Value: "Light Blue"}},
		{name: "nul terminated", payload: []byte("Color Detected: Red\x00garbage"), expected: Message{Kind: KindColor, Value: "Red"}},
		{name: "unknown", payload: []byte("Foo: bar"), expected: Message{Kind: KindUnknown, Value: "Foo: bar"}},
		{name: "case sensitive", payload: []byte("lux: 1"), expected: Message{Kind: KindUnknown, Value: "lux: 1"}},
		{name: "unclear", payload: []byte(UnclearText), expected: Message{Kind: KindUnknown, Value: UnclearText}},
		{name: "empty", payload: nil, expected: Message{Kind: KindUnknown}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Parse(tc.payload))
		})
	}
}

func TestEncode(t *testing.T) {
	require.Equal(t, "Lux: 12.00", string(Lux(12).Encode()))
	require.Equal(t, "Lux: 0.13", string(Lux(0.125001).Encode()))
	require.Equal(t, "Color Detected: Purple", string(Color("Purple").Encode()))
	require.Equal(t, "Color unclear", string(Unclear().Encode()))
}

func TestPublish(t *testing.T) {
	sensor := sim.NewColorSensor(0)
	session := calibrated(t, sensor)

	sensor.SetSwatch(colors.Yellow)
	notifier := &captureNotifier{}
	p := NewPublisher(notifier, sim.NewLightSensor(true, 321.5), sensor, session, testLogger())

	report, err := p.Publish(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Lux: 321.50", "Color Detected: Yellow"}, notifier.strings())
	require.Equal(t, colors.Yellow, report.Result.Color)
	require.Equal(t, uint64(0), report.Result.Distance)
}

func TestPublishNotCalibrated(t *testing.T) {
	notifier := &captureNotifier{}
	p := NewPublisher(notifier, sim.NewLightSensor(true, 1), sim.NewColorSensor(0), calibration.NewSession(), testLogger())

	_, err := p.Publish(context.Background())
	require.ErrorIs(t, err, ErrNotCalibrated)
	require.Empty(t, notifier.payloads)
}

func TestPublishNotifyError(t *testing.T) {
	sensor := sim.NewColorSensor(0)
	session := calibrated(t, sensor)

	notifier := &captureNotifier{err: errors.New("link down")}
	p := NewPublisher(notifier, sim.NewLightSensor(true, 1), sensor, session, testLogger())

	report, err := p.Publish(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Sent, 2)
}

type failingReader struct{}

func (failingReader) ReadFrequency(context.Context, hw.Channel) (uint32, error) {
	return 0, errors.New("no pulse")
}

func TestPublishColorReadError(t *testing.T) {
	session := calibrated(t, sim.NewColorSensor(0))

	notifier := &captureNotifier{}
	p := NewPublisher(notifier, sim.NewLightSensor(true, 2), failingReader{}, session, testLogger())

	_, err := p.Publish(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"Lux: 2.00"}, notifier.strings())
}
