package mqtt

import "encoding/json"

const (
	stateOnline       = "online"
	stateBusy         = "busy"
	stateOffline      = "offline"
	stateConnected    = "connected"
	stateDisconnected = "disconnected"
)

// advertisement is published retained on the advertise topic.
type advertisement struct {
	State   string `json:"state"`
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// presence is published by the subscriber on the subscriber topic.
type presence struct {
	State      string `json:"state"`
	Address    string `json:"address"`
	Peripheral string `json:"peripheral,omitempty"`
}

// manifest is published retained on the characteristics topic.
type manifest struct {
	Characteristics []string `json:"characteristics"`
}

func encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
