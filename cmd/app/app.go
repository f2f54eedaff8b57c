package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/grafana/dskit/grpcutil"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/grafana/dskit/signals"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/prometheus/common/version"
	"google.golang.org/grpc/health/grpc_health_v1"
	"gopkg.in/yaml.v2"

	"github.com/zachfi/colordial/modules/display"
	linkmodule "github.com/zachfi/colordial/modules/link"
	"github.com/zachfi/colordial/modules/sensor"
)

const (
	appName          = "colordial"
	metricsNamespace = "colordial"
)

type App struct {
	cfg Config

	Server *server.Server

	logger      *slog.Logger
	gokitLogger log.Logger // dskit still logs through go-kit

	// Modules.
	link    *linkmodule.Link
	sensor  *sensor.Sensor
	display *display.Display

	sim *simHardware

	ModuleManager *modules.Manager
	serviceMap    map[string]services.Service
}

func New(cfg Config, logger *slog.Logger, gokitLogger log.Logger) (*App, error) {
	a := &App{
		cfg:         cfg,
		logger:      logger,
		gokitLogger: gokitLogger,
	}

	if a.cfg.Target == "" {
		a.cfg.Target = All
	}

	if err := a.setupModuleManager(); err != nil {
		return nil, errors.Wrap(err, "failed to setup module manager")
	}

	return a, nil
}

func (a *App) Run() error {
	serviceMap, err := a.ModuleManager.InitModuleServices(a.cfg.Target)
	if err != nil {
		return fmt.Errorf("failed to init module services %w", err)
	}
	a.serviceMap = serviceMap

	servs := []services.Service(nil)
	for _, s := range serviceMap {
		servs = append(servs, s)
	}

	sm, err := services.NewManager(servs...)
	if err != nil {
		return fmt.Errorf("failed to start service manager %w", err)
	}

	a.Server.HTTP.Path("/ready").Handler(a.readyHandler(sm)).Methods(http.MethodGet)
	a.Server.HTTP.Path("/status").Handler(a.statusHandler()).Methods(http.MethodGet)
	a.Server.HTTP.Path("/status/{endpoint}").Handler(a.statusHandler()).Methods(http.MethodGet)

	grpc_health_v1.RegisterHealthServer(a.Server.GRPC,
		grpcutil.NewHealthCheck(sm),
	)

	// Listen for events from this manager, and log them.
	healthy := func() { a.logger.Info("started", "app", appName, "target", a.cfg.Target) }
	stopped := func() { a.logger.Info("stopped", "app", appName) }
	serviceFailed := func(service services.Service) {
		// if any service fails, stop everything
		sm.StopAsync()

		// let's find out which module failed
		for m, s := range serviceMap {
			if s == service {
				if errors.Is(service.FailureCase(), modules.ErrStopProcess) {
					a.logger.Info("received stop signal via return error", "module", m, "err", service.FailureCase())
				} else {
					a.logger.Error("module failed", "module", m, "err", service.FailureCase())
				}
				return
			}
		}

		a.logger.Error("module failed", "module", "unknown", "err", service.FailureCase())
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	// Setup signal handler. If signal arrives, we stop the manager, which stops all the services.
	handler := signals.NewHandler(a.Server.Log)
	go func() {
		handler.Loop()
		sm.StopAsync()
	}()

	// Start all services. This can really only fail if some service is already
	// in other state than New, which should not be the case.
	err = sm.StartAsync(context.Background())
	if err != nil {
		return fmt.Errorf("failed to start service manager %w", err)
	}

	return sm.AwaitStopped(context.Background())
}

func (a *App) readyHandler(sm *services.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !sm.IsHealthy() {
			msg := bytes.Buffer{}
			msg.WriteString("Some services are not Running:\n")
			byState := sm.ServicesByState()
			for st, ls := range byState {
				msg.WriteString(fmt.Sprintf("%v: %d\n", st, len(ls)))
			}

			http.Error(w, msg.String(), http.StatusServiceUnavailable)
			return
		}

		if a.link != nil {
			if err := a.link.CheckHealth(); err != nil {
				http.Error(w, "Link not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}

		http.Error(w, "ready", http.StatusOK)
	}
}

func (a *App) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var errs []error
		msg := bytes.Buffer{}

		simpleEndpoints := map[string]func(io.Writer) error{
			"version":   a.writeStatusVersion,
			"endpoints": a.writeStatusEndpoints,
			"services":  a.writeStatusServices,
			"link":      a.writeStatusLink,
			"sensor":    a.writeStatusSensor,
			"display":   a.writeStatusDisplay,
		}

		wrapStatus := func(endpoint string) {
			msg.WriteString("GET /status/" + endpoint + "\n")
			switch endpoint {
			case "config":
				err := a.writeStatusConfig(&msg, r)
				if err != nil {
					errs = append(errs, err)
				}
			default:
				fn, ok := simpleEndpoints[endpoint]
				if !ok {
					errs = append(errs, fmt.Errorf("unknown status endpoint %q", endpoint))
					return
				}

				if err := fn(&msg); err != nil {
					errs = append(errs, err)
				}
			}
		}
		vars := mux.Vars(r)

		if endpoint, ok := vars["endpoint"]; ok {
			wrapStatus(endpoint)
		} else {
			sortedEndpoints := []string{"version", "endpoints", "services", "config"}

			if a.link != nil {
				sortedEndpoints = append(sortedEndpoints, "link")
			}

			if a.sensor != nil {
				sortedEndpoints = append(sortedEndpoints, "sensor")
			}

			if a.display != nil {
				sortedEndpoints = append(sortedEndpoints, "display")
			}

			for e := range sortedEndpoints {
				wrapStatus(sortedEndpoints[e])
			}
		}

		w.Header().Set("Content-Type", "text/plain")

		var err error
		for _, e := range errs {
			if err == nil {
				err = e
			} else {
				err = errors.Wrap(err, e.Error())
			}
		}

		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if _, err := w.Write(msg.Bytes()); err != nil {
			a.logger.Error("error writing response", "err", err)
		}
	}
}

func (a *App) writeStatusEndpoints(w io.Writer) error {
	type endpoint struct {
		name    string
		regex   string
		methods []string
	}

	endpoints := []endpoint{}

	err := a.Server.HTTP.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		e := endpoint{}

		pathTemplate, err := route.GetPathTemplate()
		if err == nil {
			e.name = pathTemplate
		}

		pathRegexp, err := route.GetPathRegexp()
		if err == nil {
			e.regex = pathRegexp
		}

		methods, err := route.GetMethods()
		if err == nil {
			e.methods = methods
		}

		endpoints = append(endpoints, e)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "err walking routes")
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].name < endpoints[j].name
	})

	x := table.NewWriter()
	x.SetOutputMirror(w)
	x.AppendHeader(table.Row{"name", "regex", "methods"})

	for _, e := range endpoints {
		x.AppendRow(table.Row{e.name, e.regex, e.methods})
	}

	x.AppendSeparator()
	x.Render()

	return nil
}

func (a *App) writeStatusServices(w io.Writer) error {
	svcNames := make([]string, 0, len(a.serviceMap))
	for name := range a.serviceMap {
		svcNames = append(svcNames, name)
	}

	sort.Strings(svcNames)

	x := table.NewWriter()
	x.SetOutputMirror(w)
	x.AppendHeader(table.Row{"service name", "status", "failure case"})

	for _, name := range svcNames {
		service := a.serviceMap[name]

		var e string

		if err := service.FailureCase(); err != nil {
			e = err.Error()
		}

		x.AppendRow(table.Row{name, service.State(), e})
	}

	x.AppendSeparator()
	x.Render()

	return nil
}

func (a *App) writeStatusLink(w io.Writer) error {
	if a.link == nil {
		return errors.New("link is not running")
	}

	cfg := a.link.Config()

	health := "ok"
	if err := a.link.CheckHealth(); err != nil {
		health = err.Error()
	}

	x := table.NewWriter()
	x.SetOutputMirror(w)
	x.AppendHeader(table.Row{"transport", "service", "characteristic", "health"})
	x.AppendRow(table.Row{cfg.Transport, cfg.Identity.Service, cfg.Identity.Characteristic, health})
	x.AppendSeparator()
	x.Render()

	peers := a.link.Tracker().Peers()
	names := make([]string, 0, len(peers))
	for p := range peers {
		names = append(names, p)
	}
	sort.Strings(names)

	p := table.NewWriter()
	p.SetOutputMirror(w)
	p.AppendHeader(table.Row{"peer", "last seen"})
	for _, name := range names {
		p.AppendRow(table.Row{name, peers[name].Format(time.RFC3339)})
	}
	p.AppendSeparator()
	p.Render()

	return nil
}

func (a *App) writeStatusSensor(w io.Writer) error {
	if a.sensor == nil {
		return errors.New("sensor is not running")
	}

	st := a.sensor.Status()

	x := table.NewWriter()
	x.SetOutputMirror(w)
	x.AppendHeader(table.Row{"stage", "presses", "advertising", "peer"})
	x.AppendRow(table.Row{st.Stage.String(), st.Presses, st.Link.Advertising, st.Link.Peer})
	x.AppendSeparator()
	x.Render()

	p := table.NewWriter()
	p.SetOutputMirror(w)
	p.AppendHeader(table.Row{"color", "red", "green", "blue"})
	for _, profile := range st.Profiles {
		p.AppendRow(table.Row{profile.Color, profile.Red, profile.Green, profile.Blue})
	}
	p.AppendSeparator()
	p.Render()

	if st.Last != nil {
		sent := make([]string, 0, len(st.Last.Sent))
		for _, m := range st.Last.Sent {
			sent = append(sent, m.String())
		}

		l := table.NewWriter()
		l.SetOutputMirror(w)
		l.AppendHeader(table.Row{"lux", "reading", "color", "distance", "sent"})
		l.AppendRow(table.Row{st.Last.Lux, st.Last.Reading, st.Last.Result.Color, st.Last.Result.Distance, strings.Join(sent, "; ")})
		l.AppendSeparator()
		l.Render()
	}

	return nil
}

func (a *App) writeStatusDisplay(w io.Writer) error {
	if a.display == nil {
		return errors.New("display is not running")
	}

	st := a.display.Status()

	x := table.NewWriter()
	x.SetOutputMirror(w)
	x.AppendHeader(table.Row{"lux", "color", "position", "frames", "ignored", "link", "peer", "queued", "dropped"})
	x.AppendRow(table.Row{
		st.Render.Lux, st.Render.Color, st.Position, st.Render.Frames, st.Render.Ignored,
		st.Link.State, st.Link.Peer, st.Link.Queued, st.Link.Dropped,
	})
	x.AppendSeparator()
	x.Render()

	return nil
}

func (a *App) writeStatusConfig(w io.Writer, r *http.Request) error {
	var output any

	mode := r.URL.Query().Get("mode")
	switch mode {
	case "diff":
		defaultCfg := NewDefaultConfig()

		defaultCfgYaml, err := yamlMarshalUnmarshal(defaultCfg)
		if err != nil {
			return err
		}

		cfgYaml, err := yamlMarshalUnmarshal(a.cfg)
		if err != nil {
			return err
		}

		output, err = diffConfig(defaultCfgYaml, cfgYaml)
		if err != nil {
			return err
		}
	case "defaults":
		output = NewDefaultConfig()
	case "":
		output = a.cfg
	default:
		return fmt.Errorf("unknown value for mode query parameter: %v", mode)
	}

	out, err := yaml.Marshal(output)
	if err != nil {
		return err
	}

	_, err = w.Write([]byte("---\n"))
	if err != nil {
		return err
	}

	_, err = w.Write(out)
	return err
}

func (a *App) writeStatusVersion(w io.Writer) error {
	_, err := w.Write([]byte(version.Print(appName) + "\n"))
	return err
}
