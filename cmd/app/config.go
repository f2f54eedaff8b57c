package app

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/server"
	"github.com/pkg/errors"
	ztrace "github.com/zachfi/zkit/pkg/tracing"
	"github.com/zachfi/zkit/pkg/util"
	"gopkg.in/yaml.v2"

	"github.com/zachfi/colordial/modules/display"
	"github.com/zachfi/colordial/modules/link"
	"github.com/zachfi/colordial/modules/sensor"
	"github.com/zachfi/colordial/pkg/hw"
)

type Config struct {
	Target string `yaml:"target"`

	Tracing ztrace.Config `yaml:"tracing,omitempty"`
	Server  server.Config `yaml:"server,omitempty"`
	Log     LogConfig     `yaml:"log,omitempty"`

	Hardware hw.Config      `yaml:"hardware,omitempty"`
	Link     link.Config    `yaml:"link,omitempty"`
	Sensor   sensor.Config  `yaml:"sensor,omitempty"`
	Display  display.Config `yaml:"display,omitempty"`
}

// LogConfig selects where the diagnostic log goes.  An empty file keeps it
// on stdout.
type LogConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

func (c *LogConfig) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.File, util.PrefixConfig(prefix, "file"), "", "Write the log to this file instead of stdout, rotating it")
	f.IntVar(&c.MaxSizeMB, util.PrefixConfig(prefix, "max-size-mb"), 10, "The size in megabytes at which the log file is rotated")
	f.IntVar(&c.MaxBackups, util.PrefixConfig(prefix, "max-backups"), 3, "The number of rotated log files to keep")
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.Target = All
	f.StringVar(&c.Target, "target", All, "target module, one of sensor, display or all")
	c.Tracing.RegisterFlagsAndApplyDefaults("tracing", f)

	flagext.DefaultValues(&c.Server)
	c.Server.LogLevel.RegisterFlags(f)

	f.IntVar(&c.Server.HTTPListenPort, "server.http-listen-port", 8080, "HTTP server listen port.")
	f.IntVar(&c.Server.GRPCListenPort, "server.grpc-listen-port", 9095, "gRPC server listen port.")

	c.Log.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "log"), f)
	c.Hardware.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "hardware"), f)
	c.Link.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "link"), f)
	c.Sensor.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "sensor"), f)
	c.Display.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "display"), f)
}

// NewDefaultConfig returns a config with every flag default applied.
func NewDefaultConfig() *Config {
	defaultConfig := &Config{}
	defaultFS := flag.NewFlagSet("", flag.PanicOnError)
	defaultConfig.RegisterFlagsAndApplyDefaults("", defaultFS)
	return defaultConfig
}

// LoadConfig receives a file path for a configuration to load.
func LoadConfig(file string) (Config, error) {
	filename, _ := filepath.Abs(file)

	config := *NewDefaultConfig()
	err := loadYamlFile(filename, &config)
	if err != nil {
		return config, errors.Wrap(err, "failed to load yaml file")
	}

	return config, nil
}

// loadYamlFile unmarshals a YAML file into the received interface{} or returns an error.
func loadYamlFile(filename string, d interface{}) error {
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.UnmarshalStrict(yamlFile, d)
}

// yamlMarshalUnmarshal round trips a value through YAML into a generic map so
// configs can be compared key by key.
func yamlMarshalUnmarshal(in interface{}) (map[interface{}]interface{}, error) {
	yamlBytes, err := yaml.Marshal(in)
	if err != nil {
		return nil, err
	}

	object := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(yamlBytes, object); err != nil {
		return nil, err
	}

	return object, nil
}

// diffConfig returns the keys of actual whose values differ from defaults.
func diffConfig(defaultConfig, actualConfig map[interface{}]interface{}) (map[interface{}]interface{}, error) {
	output := make(map[interface{}]interface{})

	keys := make([]string, 0, len(actualConfig))
	index := make(map[string]interface{}, len(actualConfig))
	for k := range actualConfig {
		s := fmt.Sprint(k)
		keys = append(keys, s)
		index[s] = k
	}
	sort.Strings(keys)

	for _, s := range keys {
		key := index[s]
		value := actualConfig[key]

		defaultValue, ok := defaultConfig[key]
		if !ok {
			output[key] = value
			continue
		}

		switch v := value.(type) {
		case map[interface{}]interface{}:
			defaultV, ok := defaultValue.(map[interface{}]interface{})
			if !ok {
				output[key] = value
				continue
			}

			diff, err := diffConfig(defaultV, v)
			if err != nil {
				return nil, err
			}

			if len(diff) > 0 {
				output[key] = diff
			}
		default:
			if !reflect.DeepEqual(defaultValue, value) {
				output[key] = value
			}
		}
	}

	return output, nil
}
