package display

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/colordial/pkg/dial"
)

type Config struct {
	Dial dial.Config `yaml:"dial,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.Dial.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "dial"), f)
}
