// Package mqtt carries the link over an MQTT broker.
//
// Under the configured topic prefix each service gets a small tree:
//
//	<prefix>/<service>/advertise         retained advertiser state, last will "offline"
//	<prefix>/<service>/subscriber        subscriber presence, last will "disconnected"
//	<prefix>/<service>/characteristics   retained characteristic manifest
//	<prefix>/<service>/<characteristic>  notifications, QoS 0, not retained
//	<prefix>/<service>/<characteristic>/value  retained last value for reads
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	clientPrefix = "colordial"

	qosNotify = 0
	qosState  = 1

	waitTimeout = 10 * time.Second
)

// Will is published by the broker when the client goes away uncleanly.
type Will struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// Client is a broker connection that replays transport state after paho
// reconnects it.  The session is clean, so the broker forgets every
// subscription and the last will may have replaced retained state.
type Client struct {
	paho.Client

	mtx       sync.Mutex
	seen      bool
	hooks     []func() error
	resyncErr error

	logger *slog.Logger
}

// OnReconnect registers fn to run after every reconnect.  The first
// connection does not run it.
func (c *Client) OnReconnect(fn func() error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Err returns the error of the last resync, if any.
func (c *Client) Err() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.resyncErr
}

// handleConnect runs on its own goroutine, started by paho.
func (c *Client) handleConnect() {
	c.mtx.Lock()
	first := !c.seen
	c.seen = true
	hooks := append([]func() error(nil), c.hooks...)
	c.mtx.Unlock()

	if first {
		c.logger.Info("mqtt connected")
		return
	}

	var errs []error
	for _, fn := range hooks {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)

	c.mtx.Lock()
	c.resyncErr = err
	c.mtx.Unlock()

	if err != nil {
		c.logger.Error("mqtt reconnected, resync failed", "err", err)
		return
	}

	c.logger.Info("mqtt reconnected", "hooks", len(hooks))
}

// NewClient connects to the broker.  The returned client reconnects on its
// own after the first connection succeeded.
func NewClient(cfg Config, clientID string, will *Will, logger *slog.Logger) (*Client, error) {
	c := &Client{logger: logger}

	onConnected := func(_ paho.Client) {
		c.handleConnect()
	}

	onLost := func(_ paho.Client, err error) {
		logger.Error("mqtt connection lost", "err", err)
	}

	onReconnect := func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Info("mqtt reconnecting")
	}

	onConnect := func(broker *url.URL, tlsCfg *tls.Config) *tls.Config {
		logger.Info("mqtt connecting", "broker", broker)
		return tlsCfg
	}

	opts := paho.NewClientOptions()

	opts.SetOnConnectHandler(onConnected)
	opts.SetConnectionLostHandler(onLost)
	opts.SetReconnectingHandler(onReconnect)
	opts.SetConnectionAttemptHandler(onConnect)

	opts.AddBroker(cfg.URL)
	opts.SetCleanSession(true)
	opts.SetClientID(clientID)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOrderMatters(true)
	opts.SetWriteTimeout(5 * time.Second)

	if will != nil {
		opts.SetBinaryWill(will.Topic, will.Payload, qosState, will.Retain)
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := paho.NewClient(opts)
	c.Client = client

	token := client.Connect()
	if !token.WaitTimeout(waitTimeout) {
		return nil, fmt.Errorf("timed out connecting to %s", cfg.URL)
	}

	if err := token.Error(); err != nil {
		return nil, err
	}

	logger.Debug("mqtt connected", "url", cfg.URL, "client_id", clientID)

	return c, nil
}

// ClientID returns a random client id with a readable prefix.
func ClientID(role string) string {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return fmt.Sprintf("%s-%s-%x", clientPrefix, role, rnd.Uint32())
}

func wait(t paho.Token) error {
	if !t.WaitTimeout(waitTimeout) {
		return fmt.Errorf("mqtt operation timed out")
	}
	return t.Error()
}

// topics builds the topic tree for one service.
type topics struct {
	prefix string
}

func (t topics) base(service string) string {
	return strings.Join([]string{t.prefix, strings.ToLower(service)}, "/")
}

func (t topics) advertise(service string) string {
	return t.base(service) + "/advertise"
}

func (t topics) advertiseAll() string {
	return t.prefix + "/+/advertise"
}

func (t topics) subscriber(service string) string {
	return t.base(service) + "/subscriber"
}

func (t topics) manifest(service string) string {
	return t.base(service) + "/characteristics"
}

func (t topics) notify(service, characteristic string) string {
	return t.base(service) + "/" + strings.ToLower(characteristic)
}

func (t topics) value(service, characteristic string) string {
	return t.notify(service, characteristic) + "/value"
}

// serviceOf extracts the service from an advertise topic.
func (t topics) serviceOf(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/")
	if !ok {
		return "", false
	}

	service, ok := strings.CutSuffix(rest, "/advertise")
	if !ok || strings.Contains(service, "/") {
		return "", false
	}

	return service, true
}
