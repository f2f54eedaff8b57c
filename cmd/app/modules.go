package app

import (
	"context"
	"fmt"
	"os"

	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/zachfi/colordial/modules/display"
	linkmodule "github.com/zachfi/colordial/modules/link"
	"github.com/zachfi/colordial/modules/sensor"
	"github.com/zachfi/colordial/pkg/calibration"
	"github.com/zachfi/colordial/pkg/hw"
	"github.com/zachfi/colordial/pkg/link"
)

const (
	Server string = "server"

	Link    string = "link"
	Sensor  string = "sensor"
	Display string = "display"

	All string = "all"
)

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(a.gokitLogger)
	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)
	mm.RegisterModule(Link, a.initLink, modules.UserInvisibleModule)
	mm.RegisterModule(Sensor, a.initSensor)
	mm.RegisterModule(Display, a.initDisplay)
	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		Link:    {Server},
		Sensor:  {Server, Link},
		Display: {Server, Link},

		All: {Sensor, Display},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm

	return nil
}

// roles maps the target onto the sides of the link this process runs.
func (a *App) roles() linkmodule.Roles {
	switch a.cfg.Target {
	case Sensor:
		return linkmodule.Roles{Peripheral: true}
	case Display:
		return linkmodule.Roles{Central: true}
	default:
		return linkmodule.Roles{Peripheral: true, Central: true}
	}
}

func (a *App) initLink() (services.Service, error) {
	l, err := linkmodule.New(a.cfg.Link, a.roles(), a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create link")
	}
	a.link = l

	return l, nil
}

func (a *App) initSensor() (services.Service, error) {
	hardware, err := a.sensorHardware()
	if err != nil {
		return nil, err
	}

	var prompter calibration.Prompter
	if a.cfg.Sensor.Prompts {
		prompter = calibration.NewConsolePrompter(os.Stdout)
	}

	radio := &deferredPeripheral{link: a.link}
	adv := link.NewAdvertiser(radio, a.cfg.Link.Identity, a.cfg.Link.ReadvertiseDelay, a.link.Tracker(), a.logger)

	s, err := sensor.New(a.cfg.Sensor, hardware, adv, prompter, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sensor")
	}
	a.sensor = s

	if a.cfg.Hardware.Driver == hw.DriverSim {
		a.registerSimRoutes(a.Server.HTTP)
	}

	return s, nil
}

func (a *App) initDisplay() (services.Service, error) {
	hardware, err := a.displayHardware()
	if err != nil {
		return nil, err
	}

	radio := &deferredCentral{link: a.link}
	sub := link.NewSubscriber(radio, a.cfg.Link.Identity, a.cfg.Link.QueueSize, a.link.Tracker(), a.logger)

	d, err := display.New(a.cfg.Display, hardware, sub, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create display")
	}
	a.display = d

	return d, nil
}

func (a *App) initServer() (services.Service, error) {
	a.cfg.Server.MetricsNamespace = metricsNamespace
	a.cfg.Server.ExcludeRequestInLog = true
	a.cfg.Server.RegisterInstrumentation = true
	a.cfg.Server.Log = a.gokitLogger
	a.cfg.Server.GRPCOptions = append(a.cfg.Server.GRPCOptions, grpc.StatsHandler(otelgrpc.NewServerHandler()))

	server, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create server")
	}

	servicesToWaitFor := func() []services.Service {
		svs := []services.Service(nil)
		for m, s := range a.serviceMap {
			// Server should not wait for itself.
			if m != Server {
				svs = append(svs, s)
			}
		}
		return svs
	}

	a.Server = server

	serverDone := make(chan error, 1)

	runFn := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- server.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}
			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stoppingFn := func(_ error) error {
		// wait until all modules are done, and then shutdown server.
		for _, s := range servicesToWaitFor() {
			_ = s.AwaitTerminated(context.Background())
		}

		// shutdown HTTP and gRPC servers (this also unblocks Run)
		server.Shutdown()

		// if not closed yet, wait until server stops.
		<-serverDone
		a.logger.Info("server stopped")
		return nil
	}

	return services.NewBasicService(nil, runFn, stoppingFn), nil
}
