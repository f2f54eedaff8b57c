package hw

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"
)

const (
	DriverSim    = "sim"
	DriverPeriph = "periph"
)

type Config struct {
	Driver         string        `yaml:"driver,omitempty"`
	I2CBus         string        `yaml:"i2c_bus,omitempty"`
	ChannelTimeout time.Duration `yaml:"channel_timeout,omitempty"`
	Debounce       time.Duration `yaml:"debounce,omitempty"`

	ColorSensor ColorSensorPins `yaml:"color_sensor,omitempty"`
	ButtonPin   string          `yaml:"button_pin,omitempty"`

	StepperPins flagext.StringSliceCSV `yaml:"stepper_pins,omitempty"`
	StepperRPM  int                    `yaml:"stepper_rpm,omitempty"`

	LightAddress uint16 `yaml:"light_address,omitempty"`
}

// ColorSensorPins are the TCS230 control and output pins.
type ColorSensorPins struct {
	S0  string `yaml:"s0,omitempty"`
	S1  string `yaml:"s1,omitempty"`
	S2  string `yaml:"s2,omitempty"`
	S3  string `yaml:"s3,omitempty"`
	Out string `yaml:"out,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Driver, util.PrefixConfig(prefix, "driver"), DriverSim, "The hardware driver to use, one of sim or periph")
	f.StringVar(&cfg.I2CBus, util.PrefixConfig(prefix, "i2c-bus"), "", "The I2C bus name, empty selects the first bus")
	f.DurationVar(&cfg.ChannelTimeout, util.PrefixConfig(prefix, "channel-timeout"), time.Second, "The maximum time to wait for one color channel pulse")
	f.DurationVar(&cfg.Debounce, util.PrefixConfig(prefix, "debounce"), 300*time.Millisecond, "The button debounce window")

	f.StringVar(&cfg.ColorSensor.S0, util.PrefixConfig(prefix, "color-sensor.s0"), "GPIO5", "TCS230 S0 pin")
	f.StringVar(&cfg.ColorSensor.S1, util.PrefixConfig(prefix, "color-sensor.s1"), "GPIO6", "TCS230 S1 pin")
	f.StringVar(&cfg.ColorSensor.S2, util.PrefixConfig(prefix, "color-sensor.s2"), "GPIO13", "TCS230 S2 pin")
	f.StringVar(&cfg.ColorSensor.S3, util.PrefixConfig(prefix, "color-sensor.s3"), "GPIO19", "TCS230 S3 pin")
	f.StringVar(&cfg.ColorSensor.Out, util.PrefixConfig(prefix, "color-sensor.out"), "GPIO26", "TCS230 OUT pin")
	f.StringVar(&cfg.ButtonPin, util.PrefixConfig(prefix, "button-pin"), "GPIO17", "The push button pin")

	cfg.StepperPins = flagext.StringSliceCSV{"GPIO4", "GPIO18", "GPIO27", "GPIO22"}
	f.Var(&cfg.StepperPins, util.PrefixConfig(prefix, "stepper-pins"), "The four stepper coil pins, comma separated")
	f.IntVar(&cfg.StepperRPM, util.PrefixConfig(prefix, "stepper-rpm"), 60, "The stepper speed in revolutions per minute")

	cfg.LightAddress = 0x10
}
