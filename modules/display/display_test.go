package display

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/colordial/pkg/hw/sim"
	"github.com/zachfi/colordial/pkg/link"
	"github.com/zachfi/colordial/pkg/link/memory"
	"github.com/zachfi/colordial/pkg/render"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDisplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := memory.NewHub()
	adv := link.NewAdvertiser(hub.Peripheral("sensor"), link.DefaultIdentity(), 20*time.Millisecond, nil, testLogger())
	require.NoError(t, adv.Start(ctx))

	var cfg Config
	cfg.RegisterFlagsAndApplyDefaults("display", flag.NewFlagSet("test", flag.ContinueOnError))

	screen := sim.NewScreen(128, 64)
	stepper := sim.NewStepper()
	sub := link.NewSubscriber(hub.Central("display"), link.DefaultIdentity(), 8, nil, testLogger())

	d, err := New(cfg, Hardware{Screen: screen, Stepper: stepper}, sub, testLogger())
	require.NoError(t, err)

	require.NoError(t, services.StartAndAwaitRunning(ctx, d))
	defer func() {
		require.NoError(t, services.StopAndAwaitTerminated(context.Background(), d))
	}()

	require.GreaterOrEqual(t, screen.Frames(), 1)

	require.Eventually(t, func() bool {
		return d.Status().Link.State == link.StateConnected
	}, time.Second, time.Millisecond)

	st := d.Status()
	require.Equal(t, render.WaitingText, st.Render.Lux)
	require.Equal(t, render.WaitingText, st.Render.Color)

	for _, m := range []string{"Lux: 10.00", "Foo: bar", "Color Detected: Light Blue"} {
		require.NoError(t, adv.Notify([]byte(m)))
	}

	require.Eventually(t, func() bool {
		return d.Status().Render.Color == "Light Blue"
	}, time.Second, time.Millisecond)

	st = d.Status()
	require.Equal(t, "10.00", st.Render.Lux)
	require.Equal(t, 1, st.Render.Ignored)
	require.Equal(t, 219, st.Position)
	require.Equal(t, 219, stepper.Position())

	// Same color again is a zero move.
	require.NoError(t, adv.Notify([]byte("Color Detected: Light Blue")))
	require.Eventually(t, func() bool {
		return d.Status().Render.Frames == 4
	}, time.Second, time.Millisecond)
	require.Equal(t, []int{219}, stepper.Moves())

	// The link drops and comes back after the sensor readvertises.
	require.True(t, hub.Drop("sensor"))
	require.Eventually(t, func() bool {
		return d.Status().Link.State == link.StateConnected && adv.Status().Connected
	}, time.Second, time.Millisecond)

	require.NoError(t, adv.Notify([]byte("Color Detected: Red")))
	require.Eventually(t, func() bool {
		return d.Status().Position == 43
	}, time.Second, time.Millisecond)
}
