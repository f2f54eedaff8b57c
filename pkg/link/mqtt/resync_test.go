package mqtt

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/colordial/pkg/link"
)

// broker is an in-memory MQTT broker with retained messages and wildcard
// subscriptions.  Delivery is synchronous.
type broker struct {
	mtx      sync.Mutex
	retained map[string][]byte
	subs     map[string]map[string]paho.MessageHandler
}

func newBroker() *broker {
	return &broker{
		retained: make(map[string][]byte),
		subs:     make(map[string]map[string]paho.MessageHandler),
	}
}

func match(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")

	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if part != "+" && part != t[i] {
			return false
		}
	}

	return len(f) == len(t)
}

func (b *broker) publish(topic string, payload []byte, retained bool) {
	b.mtx.Lock()
	if retained {
		b.retained[topic] = payload
	}

	var handlers []paho.MessageHandler
	for _, filters := range b.subs {
		for filter, h := range filters {
			if match(filter, topic) {
				handlers = append(handlers, h)
			}
		}
	}
	b.mtx.Unlock()

	for _, h := range handlers {
		h(nil, message{topic: topic, payload: payload})
	}
}

func (b *broker) subscribe(id, filter string, h paho.MessageHandler) {
	b.mtx.Lock()
	if b.subs[id] == nil {
		b.subs[id] = make(map[string]paho.MessageHandler)
	}
	b.subs[id][filter] = h

	var replay []message
	for topic, payload := range b.retained {
		if match(filter, topic) {
			replay = append(replay, message{topic: topic, payload: payload, retained: true})
		}
	}
	b.mtx.Unlock()

	for _, m := range replay {
		h(nil, m)
	}
}

func (b *broker) unsubscribe(id string, filters ...string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, f := range filters {
		delete(b.subs[id], f)
	}
}

// drop ends the session of id: its subscriptions go and its will fires.
func (b *broker) drop(id string, will *Will) {
	b.mtx.Lock()
	delete(b.subs, id)
	b.mtx.Unlock()

	if will != nil {
		b.publish(will.Topic, will.Payload, will.Retain)
	}
}

func (b *broker) subscribed(id, filter string) bool {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	_, ok := b.subs[id][filter]
	return ok
}

func (b *broker) retainedAdvertisement(t *testing.T, topic string) advertisement {
	t.Helper()

	b.mtx.Lock()
	raw := b.retained[topic]
	b.mtx.Unlock()

	var adv advertisement
	require.NoError(t, json.Unmarshal(raw, &adv))
	return adv
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 0 }
func (m message) Retained() bool    { return m.retained }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

type token struct{}

func (token) Wait() bool                     { return true }
func (token) WaitTimeout(time.Duration) bool { return true }
func (token) Error() error                   { return nil }

func (token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// session is one client's view of the broker.  Methods the transport does
// not use are left to the embedded nil interface.
type session struct {
	paho.Client

	id     string
	broker *broker
}

func (s *session) IsConnected() bool { return true }

func (s *session) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	s.broker.publish(topic, payload.([]byte), retained)
	return token{}
}

func (s *session) Subscribe(topic string, _ byte, h paho.MessageHandler) paho.Token {
	s.broker.subscribe(s.id, topic, h)
	return token{}
}

func (s *session) Unsubscribe(topics ...string) paho.Token {
	s.broker.unsubscribe(s.id, topics...)
	return token{}
}

func newTestClient(b *broker, id string) *Client {
	c := &Client{
		Client: &session{id: id, broker: b},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.handleConnect()
	return c
}

type connectEvent struct {
	peer      string
	connected bool
}

func TestPeripheralResync(t *testing.T) {
	cfg := Config{Topic: "colordial", DiscoveryTimeout: time.Second}
	id := link.DefaultIdentity()
	tp := topics{prefix: cfg.Topic}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("advertising", func(t *testing.T) {
		b := newBroker()
		client := newTestClient(b, "sensor")
		p := NewPeripheral(client, cfg, "sensor", logger)

		require.NoError(t, p.Register(id))
		require.NoError(t, p.StartAdvertising())

		b.drop("sensor", PeripheralWill(cfg, id, "sensor"))
		require.Equal(t, stateOffline, b.retainedAdvertisement(t, tp.advertise(id.Service)).State)
		require.False(t, b.subscribed("sensor", tp.subscriber(id.Service)))

		client.handleConnect()
		require.NoError(t, client.Err())

		require.Equal(t, stateOnline, b.retainedAdvertisement(t, tp.advertise(id.Service)).State)
		require.True(t, b.subscribed("sensor", tp.subscriber(id.Service)))
	})

	t.Run("subscribed", func(t *testing.T) {
		b := newBroker()
		client := newTestClient(b, "sensor")
		p := NewPeripheral(client, cfg, "sensor", logger)

		events := make(chan connectEvent, 4)
		p.SetConnectHandler(func(peer string, connected bool) {
			events <- connectEvent{peer, connected}
		})

		require.NoError(t, p.Register(id))
		require.NoError(t, p.StartAdvertising())

		attach := presence{State: stateConnected, Address: "display", Peripheral: "sensor"}
		b.publish(tp.subscriber(id.Service), encode(attach), false)
		require.Equal(t, connectEvent{"display", true}, <-events)
		require.NoError(t, p.StopAdvertising())

		b.drop("sensor", PeripheralWill(cfg, id, "sensor"))
		client.handleConnect()

		// The subscriber is reported gone so the advertiser readvertises.
		require.Equal(t, connectEvent{"display", false}, <-events)

		// Presence reaches the peripheral again.
		b.publish(tp.subscriber(id.Service), encode(attach), false)
		require.Equal(t, connectEvent{"display", true}, <-events)
	})
}

func TestCentralResync(t *testing.T) {
	cfg := Config{Topic: "colordial", DiscoveryTimeout: time.Second}
	id := link.DefaultIdentity()
	tp := topics{prefix: cfg.Topic}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	online := func(b *broker) {
		adv := advertisement{State: stateOnline, Address: "sensor", Name: id.LocalName}
		b.publish(tp.advertise(id.Service), encode(adv), true)
		b.publish(tp.manifest(id.Service), encode(manifest{Characteristics: []string{id.Characteristic}}), true)
	}

	t.Run("scanning", func(t *testing.T) {
		b := newBroker()
		client := newTestClient(b, "display")
		c := NewCentral(client, cfg, "display", logger)

		seen := make(chan link.Advertisement, 4)
		require.NoError(t, c.StartScan(func(a link.Advertisement) { seen <- a }))

		b.drop("display", CentralWill(cfg, id, "display"))
		client.handleConnect()
		require.NoError(t, client.Err())
		require.True(t, b.subscribed("display", tp.advertiseAll()))

		online(b)
		select {
		case a := <-seen:
			require.Equal(t, "sensor", a.Address)
		case <-time.After(time.Second):
			t.Fatal("no advertisement after reconnect")
		}
	})

	t.Run("connected", func(t *testing.T) {
		b := newBroker()
		online(b)

		client := newTestClient(b, "display")
		c := NewCentral(client, cfg, "display", logger)

		disconnected := make(chan struct{}, 2)
		adv := link.Advertisement{Address: "sensor", Services: []string{id.Service}}
		conn, err := c.Connect(context.Background(), adv, func() { disconnected <- struct{}{} })
		require.NoError(t, err)

		svc, err := conn.DiscoverService(context.Background(), id.Service)
		require.NoError(t, err)
		ch, err := svc.DiscoverCharacteristic(context.Background(), id.Characteristic)
		require.NoError(t, err)
		require.NoError(t, ch.EnableNotifications(func([]byte) {}))

		b.drop("display", nil)
		client.handleConnect()

		select {
		case <-disconnected:
		case <-time.After(time.Second):
			t.Fatal("connection not reported lost after reconnect")
		}

		// A later offline advertisement does not report it twice.
		b.publish(tp.advertise(id.Service), encode(advertisement{State: stateOffline, Address: "sensor"}), true)
		require.NoError(t, conn.Disconnect())
		require.Never(t, func() bool { return len(disconnected) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})
}

func TestNotifyWithoutSubscriberPublishesNothing(t *testing.T) {
	cfg := Config{Topic: "colordial"}
	id := link.DefaultIdentity()
	tp := topics{prefix: cfg.Topic}

	b := newBroker()
	p := NewPeripheral(newTestClient(b, "sensor"), cfg, "sensor", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, p.Register(id))

	require.ErrorIs(t, p.Notify([]byte("Lux: 1.00")), link.ErrNotConnected)

	b.mtx.Lock()
	_, ok := b.retained[tp.value(id.Service, id.Characteristic)]
	b.mtx.Unlock()
	require.False(t, ok)
}
