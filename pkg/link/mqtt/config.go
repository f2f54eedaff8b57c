package mqtt

import (
	"flag"
	"time"

	"github.com/grafana/dskit/backoff"
	"github.com/zachfi/zkit/pkg/util"
)

type Config struct {
	URL              string         `yaml:"url,omitempty"`
	Topic            string         `yaml:"topic,omitempty"`
	Username         string         `yaml:"username,omitempty"`
	Password         string         `yaml:"password,omitempty"`
	DiscoveryTimeout time.Duration  `yaml:"discovery_timeout,omitempty"`
	Backoff          backoff.Config `yaml:"backoff,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), "tcp://localhost:1883", "The URL of the MQTT broker")
	f.StringVar(&cfg.Topic, util.PrefixConfig(prefix, "topic"), "colordial", "The topic prefix both nodes share")
	f.StringVar(&cfg.Username, util.PrefixConfig(prefix, "username"), "", "The username to authenticate with the MQTT broker")
	f.StringVar(&cfg.Password, util.PrefixConfig(prefix, "password"), "", "The password to authenticate with the MQTT broker")
	f.DurationVar(&cfg.DiscoveryTimeout, util.PrefixConfig(prefix, "discovery-timeout"), 5*time.Second, "How long to wait for retained discovery topics")
	cfg.Backoff.RegisterFlagsWithPrefix(util.PrefixConfig(prefix, "backoff"), f)
}
