package sim

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zachfi/colordial/pkg/colors"
	"github.com/zachfi/colordial/pkg/hw"
)

func TestSwatchesCoverReferences(t *testing.T) {
	for _, ref := range colors.References {
		_, ok := Swatches[ref]
		require.True(t, ok, ref.String())
	}
}

func TestColorSensorWithoutJitter(t *testing.T) {
	c := NewColorSensor(0)
	c.SetSwatch(colors.Blue)

	reading, err := hw.ReadRGB(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, Swatches[colors.Blue], reading)
}

func TestColorSensorJitterBounds(t *testing.T) {
	c := NewColorSensor(3)
	c.SetReading(hw.Reading{Red: 1, Green: 50, Blue: 50})

	for i := 0; i < 100; i++ {
		v, err := c.ReadFrequency(context.Background(), hw.ChannelGreen)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, uint32(47))
		require.LessOrEqual(t, v, uint32(53))

		v, err = c.ReadFrequency(context.Background(), hw.ChannelRed)
		require.NoError(t, err)
		require.LessOrEqual(t, v, uint32(4))
	}
}

func TestLightSensor(t *testing.T) {
	absent := NewLightSensor(false, 0)
	require.ErrorIs(t, absent.Probe(context.Background()), hw.ErrSensorNotFound)

	present := NewLightSensor(true, 120.5)
	require.NoError(t, present.Probe(context.Background()))

	lux, err := present.ReadLux(context.Background())
	require.NoError(t, err)
	require.Equal(t, 120.5, lux)
}

func TestButtonDebounce(t *testing.T) {
	b := NewButton(time.Hour)

	require.True(t, b.Press())
	require.False(t, b.Press())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.WaitForPress(ctx))

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, b.WaitForPress(ctx), context.DeadlineExceeded)
}

func TestScreenAndStepper(t *testing.T) {
	s := NewScreen(16, 8)
	require.Equal(t, image.Rect(0, 0, 16, 8), s.Bounds())

	src := image.NewGray(s.Bounds())
	src.Pix[0] = 0xff
	require.NoError(t, s.Draw(s.Bounds(), src, image.Point{}))
	require.Equal(t, 1, s.Frames())
	require.Equal(t, uint8(0xff), s.Frame().Pix[0])

	st := NewStepper()
	require.NoError(t, st.Step(context.Background(), 43))
	require.NoError(t, st.Step(context.Background(), -10))
	require.Equal(t, 33, st.Position())
	require.Equal(t, []int{43, -10}, st.Moves())
}
