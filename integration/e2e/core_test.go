package e2e

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/grafana/e2e"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/colordial/integration/e2e/util"
	"github.com/zachfi/colordial/pkg/link"
	"github.com/zachfi/colordial/pkg/link/mqtt"
)

func TestBrokerRoundTrip(t *testing.T) {
	s, err := e2e.NewScenario("colordial_e2e")
	require.NoError(t, err)
	defer s.Close()

	broker, err := util.NewMQTTServer(s, "mqtt")
	require.NoError(t, err)
	require.NoError(t, s.StartAndWaitReady(broker))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	identity := link.DefaultIdentity()

	var cfg mqtt.Config
	cfg.RegisterFlagsAndApplyDefaults("mqtt", flag.NewFlagSet("e2e", flag.ContinueOnError))
	cfg.URL = "tcp://" + broker.Endpoint(util.MQTTPort)

	sensorID := mqtt.ClientID("sensor")
	sensorClient, err := mqtt.NewClient(cfg, sensorID, mqtt.PeripheralWill(cfg, identity, sensorID), logger)
	require.NoError(t, err)
	defer sensorClient.Disconnect(250)

	displayID := mqtt.ClientID("display")
	displayClient, err := mqtt.NewClient(cfg, displayID, mqtt.CentralWill(cfg, identity, displayID), logger)
	require.NoError(t, err)
	defer displayClient.Disconnect(250)

	adv := link.NewAdvertiser(mqtt.NewPeripheral(sensorClient, cfg, sensorID, logger), identity, 100*time.Millisecond, nil, logger)
	require.NoError(t, adv.Start(ctx))
	defer func() { _ = adv.Stop() }()

	sub := link.NewSubscriber(mqtt.NewCentral(displayClient, cfg, displayID, logger), identity, link.DefaultQueueSize, nil, logger)
	require.NoError(t, sub.Start())
	defer func() { _ = sub.Disconnect() }()

	select {
	case a := <-sub.Requests():
		require.Equal(t, sensorID, a.Address)
		require.NoError(t, sub.Connect(ctx, a))
	case <-ctx.Done():
		t.Fatal("sensor never advertised")
	}

	require.Eventually(t, func() bool {
		return adv.Status().Connected
	}, 10*time.Second, 50*time.Millisecond)

	sent := []string{"Lux: 120.00", "Color Detected: Green", "Color unclear"}
	for _, m := range sent {
		require.NoError(t, adv.Notify([]byte(m)))
	}

	for _, want := range sent {
		select {
		case got := <-sub.Notifications():
			require.Equal(t, want, string(got))
		case <-ctx.Done():
			t.Fatalf("missing notification %q", want)
		}
	}
}
