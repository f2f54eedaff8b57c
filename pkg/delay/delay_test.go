package delay

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAfter(t *testing.T) {
	d := New()

	var ran atomic.Int32
	d.After(context.Background(), "advertise", 20*time.Millisecond, func() { ran.Add(1) })
	require.True(t, d.Pending("advertise"))
	require.Equal(t, int32(0), ran.Load())

	require.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !d.Pending("advertise") }, time.Second, 5*time.Millisecond)
}

func TestReschedule(t *testing.T) {
	d := New()

	var first, second atomic.Int32
	d.After(context.Background(), "x", 30*time.Millisecond, func() { first.Add(1) })
	d.After(context.Background(), "x", 60*time.Millisecond, func() { second.Add(1) })

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(0), first.Load())
}

func TestCancel(t *testing.T) {
	cases := map[string]struct {
		cancel func(t *testing.T, d *Delay, cancel context.CancelFunc)
	}{
		"by name": {
			cancel: func(t *testing.T, d *Delay, _ context.CancelFunc) { require.True(t, d.Cancel("x")) },
		},
		"by context": {
			cancel: func(_ *testing.T, _ *Delay, cancel context.CancelFunc) { cancel() },
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d := New()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var ran atomic.Int32
			d.After(ctx, "x", 20*time.Millisecond, func() { ran.Add(1) })
			tc.cancel(t, d, cancel)

			time.Sleep(60 * time.Millisecond)
			require.Equal(t, int32(0), ran.Load())
		})
	}

	require.False(t, New().Cancel("missing"))
}
