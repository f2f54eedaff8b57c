package dial

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zachfi/colordial/pkg/colors"
	"github.com/zachfi/colordial/pkg/hw/sim"
)

func newActuator(t *testing.T) (*Actuator, *sim.Stepper) {
	t.Helper()

	var cfg Config
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.ContinueOnError))

	stepper := sim.NewStepper()
	a, err := New(cfg, stepper, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return a, stepper
}

func TestTargetSteps(t *testing.T) {
	a, _ := newActuator(t)

	expected := map[colors.Reference]int{
		colors.Red:       43,
		colors.Orange:    87,
		colors.Yellow:    131,
		colors.Green:     175,
		colors.LightBlue: 219,
		colors.Blue:      262,
		colors.Purple:    306,
	}

	for ref, steps := range expected {
		t.Run(ref.String(), func(t *testing.T) {
			require.Equal(t, steps, a.TargetSteps(ref))
		})
	}
}

func TestMoveTo(t *testing.T) {
	ctx := context.Background()
	a, stepper := newActuator(t)

	move, err := a.MoveTo(ctx, "Green")
	require.NoError(t, err)
	require.Equal(t, 175, move)

	move, err = a.MoveTo(ctx, "Green")
	require.NoError(t, err)
	require.Equal(t, 0, move)

	move, err = a.MoveTo(ctx, "Red")
	require.NoError(t, err)
	require.Equal(t, 43-175, move)

	require.Equal(t, []int{175, 43 - 175}, stepper.Moves())
	require.Equal(t, 43, stepper.Position())
	require.Equal(t, 43, a.Position())
}

func TestMoveToUnknown(t *testing.T) {
	ctx := context.Background()
	a, stepper := newActuator(t)

	_, err := a.MoveTo(ctx, "Blue")
	require.NoError(t, err)

	move, err := a.MoveTo(ctx, "Magenta")
	require.NoError(t, err)
	require.Equal(t, -262, move)
	require.Equal(t, 0, a.Position())
	require.Equal(t, 0, stepper.Position())
	require.Equal(t, []int{262, -262}, stepper.Moves())

	// Already home, so another unknown name is a zero move.
	move, err = a.MoveTo(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 0, move)
	require.Len(t, stepper.Moves(), 2)
}

type brokenStepper struct{}

func (brokenStepper) Step(context.Context, int) error { return errors.New("stalled") }

func TestMoveToStepperError(t *testing.T) {
	a, err := New(Config{StepsPerRevolution: 600, SweepDegrees: 315}, brokenStepper{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = a.MoveTo(context.Background(), "Purple")
	require.Error(t, err)
	require.Equal(t, 306, a.Position())
}

func TestInvalidGeometry(t *testing.T) {
	_, err := New(Config{}, sim.NewStepper(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
