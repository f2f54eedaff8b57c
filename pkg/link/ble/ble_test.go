package ble

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type connectEvent struct {
	peer      string
	connected bool
}

func TestRadioRoutesConnectEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := newRadio(nil)

	p := NewPeripheral(r, logger)
	c, err := NewCentral(r, []string{"a1b2c3d4-0000-1000-8000-00805f9b34fb"}, logger)
	require.NoError(t, err)

	events := make(chan connectEvent, 4)
	p.SetConnectHandler(func(peer string, connected bool) {
		events <- connectEvent{peer, connected}
	})

	lost := make(chan struct{}, 1)
	r.dial("aa:bb:cc:dd:ee:01")
	c.mtx.Lock()
	c.onDisconnect[addrKey("aa:bb:cc:dd:ee:01")] = func() { lost <- struct{}{} }
	c.mtx.Unlock()

	// A subscriber attaching to the peripheral.
	r.dispatch("AA:BB:CC:DD:EE:02", true)
	require.Equal(t, connectEvent{"AA:BB:CC:DD:EE:02", true}, <-events)

	// The central's own connection is not a subscriber.
	r.dispatch("AA:BB:CC:DD:EE:01", true)
	r.dispatch("AA:BB:CC:DD:EE:01", false)
	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatal("central not told of its disconnect")
	}
	require.Empty(t, events)

	r.dispatch("AA:BB:CC:DD:EE:02", false)
	require.Equal(t, connectEvent{"AA:BB:CC:DD:EE:02", false}, <-events)

	// Once hung up the address belongs to the peripheral again.
	r.dispatch("AA:BB:CC:DD:EE:01", true)
	require.Equal(t, connectEvent{"AA:BB:CC:DD:EE:01", true}, <-events)
}
