package sensor

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/colordial/pkg/calibration"
)

type Config struct {
	Samples int  `yaml:"samples,omitempty"`
	Prompts bool `yaml:"prompts,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.Samples, util.PrefixConfig(prefix, "samples"), calibration.DefaultSamples, "The number of readings averaged per calibration swatch")
	f.BoolVar(&cfg.Prompts, util.PrefixConfig(prefix, "prompts"), true, "Print operator prompts to the terminal during calibration")
}
