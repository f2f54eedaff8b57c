package render

import (
	"context"
	"image"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zachfi/colordial/pkg/dial"
	"github.com/zachfi/colordial/pkg/hw/sim"
	"github.com/zachfi/colordial/pkg/link"
	"github.com/zachfi/colordial/pkg/link/memory"
)

type harness struct {
	renderer *Renderer
	screen   *sim.Screen
	stepper  *sim.Stepper
	dial     *dial.Actuator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stepper := sim.NewStepper()
	d, err := dial.New(dial.Config{StepsPerRevolution: 600, SweepDegrees: 315}, stepper, logger)
	require.NoError(t, err)

	screen := sim.NewScreen(128, 64)

	return &harness{
		renderer: New(screen, d, logger),
		screen:   screen,
		stepper:  stepper,
		dial:     d,
	}
}

func lit(img *image.Gray) int {
	var n int
	for _, p := range img.Pix {
		if p > 0 {
			n++
		}
	}
	return n
}

func TestBoot(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.renderer.Boot())
	require.Equal(t, 1, h.screen.Frames())
	require.Positive(t, lit(h.screen.Frame()))

	s := h.renderer.State()
	require.Equal(t, WaitingText, s.Lux)
	require.Equal(t, WaitingText, s.Color)
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		payloads []string
		lux      string
		color    string
		frames   int
		position int
	}{
		{
			name:     "lux only",
			payloads: []string{"Lux: 120.50"},
			lux:      "120.50",
			color:    WaitingText,
			frames:   1,
		},
		{
			name:     "lux then color",
			payloads: []string{"Lux: 3.00", "Color Detected: Green"},
			lux:      "3.00",
			color:    "Green",
			frames:   2,
			position: 175,
		},
		{
			name:     "unknown prefix",
			payloads: []string{"Foo: bar"},
			lux:      WaitingText,
			color:    WaitingText,
		},
		{
			name:     "unclear",
			payloads: []string{"Color Detected: Red", "Color unclear"},
			lux:      WaitingText,
			color:    "Red",
			frames:   1,
			position: 43,
		},
		{
			name:     "trailing bytes after nul",
			payloads: []string{"Color Detected: Purple\x00\x01\x02"},
			lux:      WaitingText,
			color:    "Purple",
			frames:   1,
			position: 306,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)

			for _, p := range tc.payloads {
				require.NoError(t, h.renderer.Handle(ctx, []byte(p)))
			}

			s := h.renderer.State()
			require.Equal(t, tc.lux, s.Lux)
			require.Equal(t, tc.color, s.Color)
			require.Equal(t, tc.frames, s.Frames)
			require.Equal(t, tc.frames, h.screen.Frames())
			require.Equal(t, tc.position, h.dial.Position())
			require.Equal(t, tc.position, h.stepper.Position())
		})
	}
}

func TestDroppedMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hub := memory.NewHub()
	adv := link.NewAdvertiser(hub.Peripheral("sensor"), link.DefaultIdentity(), time.Millisecond, nil, logger)
	require.NoError(t, adv.Start(ctx))

	sub := link.NewSubscriber(hub.Central("display"), link.DefaultIdentity(), 1, nil, logger)
	require.NoError(t, sub.Start())

	select {
	case a := <-sub.Requests():
		require.NoError(t, sub.Connect(ctx, a))
	case <-time.After(time.Second):
		t.Fatal("no connect request")
	}

	// The queue holds one payload, so Blue is dropped before the display
	// loop gets to it.
	require.NoError(t, adv.Notify([]byte("Color Detected: Yellow")))
	require.NoError(t, adv.Notify([]byte("Color Detected: Blue")))
	require.Equal(t, uint64(1), sub.Status().Dropped)

	require.NoError(t, h.renderer.Handle(ctx, <-sub.Notifications()))
	require.Empty(t, sub.Notifications())

	s := h.renderer.State()
	require.Equal(t, "Yellow", s.Color)
	require.Equal(t, 1, s.Frames)
	require.Equal(t, []int{131}, h.stepper.Moves())
	require.Equal(t, 131, h.dial.Position())
}

func TestUnknownColor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.renderer.Handle(ctx, []byte("Color Detected: Green")))
	require.NoError(t, h.renderer.Handle(ctx, []byte("Color Detected: Magenta")))

	s := h.renderer.State()
	require.Equal(t, "Magenta", s.Color)
	require.Equal(t, 2, s.Frames)
	require.Equal(t, 0, h.dial.Position())
	require.Equal(t, []int{175, -175}, h.stepper.Moves())
}

func TestFrame(t *testing.T) {
	b := image.Rect(0, 0, 128, 64)

	blank := Frame(b)
	require.Equal(t, 0, lit(blank))

	one := Frame(b, "Lux Detected: 1.00")
	two := Frame(b, "Lux Detected: 1.00", "Color Detected: Blue")
	require.Greater(t, lit(two), lit(one))
}
