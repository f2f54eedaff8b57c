package app

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zachfi/colordial/modules/display"
	"github.com/zachfi/colordial/modules/sensor"
	"github.com/zachfi/colordial/pkg/colors"
	"github.com/zachfi/colordial/pkg/hw"
	"github.com/zachfi/colordial/pkg/hw/periph"
	"github.com/zachfi/colordial/pkg/hw/sim"
)

const (
	simLux    = 250
	simJitter = 1

	screenWidth  = 128
	screenHeight = 64
)

// simHardware keeps the concrete simulated devices so the HTTP routes can
// drive them.
type simHardware struct {
	color  *sim.ColorSensor
	light  *sim.LightSensor
	button *sim.Button
	screen *sim.Screen
}

func (a *App) sensorHardware() (sensor.Hardware, error) {
	cfg := a.cfg.Hardware

	switch cfg.Driver {
	case hw.DriverSim:
		s := a.simulated()
		return sensor.Hardware{Color: s.color, Light: s.light, Button: s.button}, nil
	case hw.DriverPeriph:
		if err := periph.Init(); err != nil {
			return sensor.Hardware{}, errors.Wrap(err, "failed to init host drivers")
		}

		color, err := periph.NewTCS230(cfg.ColorSensor, cfg.ChannelTimeout)
		if err != nil {
			return sensor.Hardware{}, errors.Wrap(err, "failed to open color sensor")
		}

		bus, err := periph.OpenBus(cfg.I2CBus)
		if err != nil {
			return sensor.Hardware{}, errors.Wrap(err, "failed to open i2c bus")
		}

		button, err := periph.NewButton(cfg.ButtonPin, cfg.Debounce)
		if err != nil {
			return sensor.Hardware{}, errors.Wrap(err, "failed to open button")
		}

		return sensor.Hardware{
			Color:  color,
			Light:  periph.NewVEML7700(bus, cfg.LightAddress),
			Button: button,
		}, nil
	default:
		return sensor.Hardware{}, fmt.Errorf("%w: %q", hw.ErrUnknownDriver, cfg.Driver)
	}
}

func (a *App) displayHardware() (display.Hardware, error) {
	cfg := a.cfg.Hardware

	switch cfg.Driver {
	case hw.DriverSim:
		return display.Hardware{Screen: a.simulated().screen, Stepper: sim.NewStepper()}, nil
	case hw.DriverPeriph:
		if err := periph.Init(); err != nil {
			return display.Hardware{}, errors.Wrap(err, "failed to init host drivers")
		}

		bus, err := periph.OpenBus(cfg.I2CBus)
		if err != nil {
			return display.Hardware{}, errors.Wrap(err, "failed to open i2c bus")
		}

		screen, err := periph.OpenScreen(bus)
		if err != nil {
			return display.Hardware{}, errors.Wrap(err, "failed to open screen")
		}

		stepper, err := periph.NewStepper(cfg.StepperPins, a.cfg.Display.Dial.StepsPerRevolution, cfg.StepperRPM)
		if err != nil {
			return display.Hardware{}, errors.Wrap(err, "failed to open stepper")
		}

		return display.Hardware{Screen: screen, Stepper: stepper}, nil
	default:
		return display.Hardware{}, fmt.Errorf("%w: %q", hw.ErrUnknownDriver, cfg.Driver)
	}
}

func (a *App) simulated() *simHardware {
	if a.sim != nil {
		return a.sim
	}

	a.sim = &simHardware{
		color:  sim.NewColorSensor(simJitter),
		light:  sim.NewLightSensor(true, simLux),
		button: sim.NewButton(a.cfg.Hardware.Debounce),
		screen: sim.NewScreen(screenWidth, screenHeight),
	}

	return a.sim
}

// registerSimRoutes exposes the simulated sensor inputs.
func (a *App) registerSimRoutes(r *mux.Router) {
	routes := []struct {
		path    string
		handler http.HandlerFunc
	}{
		{"/sensor/press", a.simPress},
		{"/sensor/swatch/{color}", a.simSwatch},
		{"/sensor/lux/{value}", a.simLux},
	}

	for _, route := range routes {
		r.Path(route.path).Methods(http.MethodPost).Handler(otelhttp.NewHandler(route.handler, route.path))
	}
}

func (a *App) simPress(w http.ResponseWriter, _ *http.Request) {
	if !a.sim.button.Press() {
		http.Error(w, "press ignored", http.StatusTooManyRequests)
		return
	}
	http.Error(w, "pressed", http.StatusAccepted)
}

func (a *App) simSwatch(w http.ResponseWriter, r *http.Request) {
	ref, ok := colors.Parse(mux.Vars(r)["color"])
	if !ok {
		http.Error(w, "unknown color", http.StatusBadRequest)
		return
	}
	a.sim.color.SetSwatch(ref)
	http.Error(w, ref.String(), http.StatusOK)
}

func (a *App) simLux(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.ParseFloat(mux.Vars(r)["value"], 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.sim.light.SetLux(v)
	http.Error(w, "ok", http.StatusOK)
}
