package util

import (
	"github.com/grafana/e2e"
)

const (
	mqttImage = "eclipse-mosquitto:2"
	MQTTPort  = 1883

	mosquittoConfig = `listener 1883
allow_anonymous true
persistence false
`
)

// NewMQTTServer returns a mosquitto broker reading its config from the
// scenario's shared directory.
func NewMQTTServer(s *e2e.Scenario, name string) (*e2e.ConcreteService, error) {
	if _, err := writeFileToSharedDir(s, "mosquitto.conf", []byte(mosquittoConfig)); err != nil {
		return nil, err
	}

	return e2e.NewConcreteService(
		name,
		mqttImage,
		e2e.NewCommand("mosquitto", "-c", "/shared/mosquitto.conf"),
		e2e.NewTCPReadinessProbe(MQTTPort),
		MQTTPort,
	), nil
}
