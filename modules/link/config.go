package link

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/colordial/pkg/link"
	"github.com/zachfi/colordial/pkg/link/mqtt"
)

const (
	TransportMemory = "memory"
	TransportMQTT   = "mqtt"
	TransportBLE    = "ble"
)

type Config struct {
	Transport        string        `yaml:"transport,omitempty"`
	Identity         link.Identity `yaml:"identity,omitempty"`
	ReadvertiseDelay time.Duration `yaml:"readvertise_delay,omitempty"`
	QueueSize        int           `yaml:"queue_size,omitempty"`
	PeerPurgeAfter   time.Duration `yaml:"peer_purge_after,omitempty"`
	MQTT             mqtt.Config   `yaml:"mqtt,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Transport, util.PrefixConfig(prefix, "transport"), TransportMemory, "The link transport, one of memory, mqtt or ble")
	f.DurationVar(&cfg.ReadvertiseDelay, util.PrefixConfig(prefix, "readvertise-delay"), link.DefaultReadvertiseDelay, "The pause between a disconnect and the next advertisement")
	f.IntVar(&cfg.QueueSize, util.PrefixConfig(prefix, "queue-size"), link.DefaultQueueSize, "The number of notifications buffered on the display node")
	f.DurationVar(&cfg.PeerPurgeAfter, util.PrefixConfig(prefix, "peer-purge-after"), time.Hour, "The time after which per peer metrics of a quiet peer are dropped")

	cfg.Identity.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "identity"), f)
	cfg.MQTT.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "mqtt"), f)
}
