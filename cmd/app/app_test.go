package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	linkmodule "github.com/zachfi/colordial/modules/link"
	"github.com/zachfi/colordial/pkg/hw"
)

func TestDiffConfig(t *testing.T) {
	defaults := map[interface{}]interface{}{
		"target": "all",
		"link": map[interface{}]interface{}{
			"transport":  "memory",
			"queue_size": 16,
		},
	}

	actual := map[interface{}]interface{}{
		"target": "all",
		"link": map[interface{}]interface{}{
			"transport":  "mqtt",
			"queue_size": 16,
		},
		"extra": true,
	}

	diff, err := diffConfig(defaults, actual)
	require.NoError(t, err)
	require.Equal(t, map[interface{}]interface{}{
		"link":  map[interface{}]interface{}{"transport": "mqtt"},
		"extra": true,
	}, diff)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(file, []byte(`target: display
link:
  transport: mqtt
hardware:
  driver: sim
`), 0o600))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, Display, cfg.Target)
	require.Equal(t, linkmodule.TransportMQTT, cfg.Link.Transport)
	require.Equal(t, 600, cfg.Display.Dial.StepsPerRevolution)

	require.NoError(t, os.WriteFile(file, []byte("nope: 1\n"), 0o600))
	_, err = LoadConfig(file)
	require.Error(t, err)
}

func TestRoles(t *testing.T) {
	cases := []struct {
		target string
		want   linkmodule.Roles
	}{
		{Sensor, linkmodule.Roles{Peripheral: true}},
		{Display, linkmodule.Roles{Central: true}},
		{All, linkmodule.Roles{Peripheral: true, Central: true}},
	}

	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			a := &App{cfg: *NewDefaultConfig()}
			a.cfg.Target = tc.target
			require.Equal(t, tc.want, a.roles())
		})
	}
}

func TestHardwareDrivers(t *testing.T) {
	a := &App{cfg: *NewDefaultConfig()}

	s, err := a.sensorHardware()
	require.NoError(t, err)
	require.NotNil(t, s.Color)

	d, err := a.displayHardware()
	require.NoError(t, err)
	require.Equal(t, a.sim.screen, d.Screen)

	a.cfg.Hardware.Driver = "gpio"
	_, err = a.sensorHardware()
	require.ErrorIs(t, err, hw.ErrUnknownDriver)
	_, err = a.displayHardware()
	require.ErrorIs(t, err, hw.ErrUnknownDriver)
}

func TestSimRoutes(t *testing.T) {
	a := &App{cfg: *NewDefaultConfig()}
	a.simulated()

	r := mux.NewRouter()
	a.registerSimRoutes(r)

	post := func(path string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		return rec.Code
	}

	require.Equal(t, http.StatusOK, post("/sensor/swatch/Orange"))
	require.Equal(t, http.StatusBadRequest, post("/sensor/swatch/Teal"))
	require.Equal(t, http.StatusOK, post("/sensor/lux/12.5"))
	require.Equal(t, http.StatusBadRequest, post("/sensor/lux/bright"))
	require.Equal(t, http.StatusAccepted, post("/sensor/press"))

	lux, err := a.sim.light.ReadLux(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12.5, lux)

	require.NoError(t, a.sim.button.WaitForPress(context.Background()))
}
