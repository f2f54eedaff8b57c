// Package telemetry holds the text wire format shared by both nodes and the
// publisher that produces it on the sensor node.
package telemetry

import (
	"bytes"
	"strconv"
	"strings"
)

const (
	LuxPrefix   = "Lux: "
	ColorPrefix = "Color Detected: "

	// UnclearText is sent when there were no profiles to classify against.
	// It carries no known prefix so the display ignores it.
	UnclearText = "Color unclear"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindLux
	KindColor
)

var kindName = map[Kind]string{
	KindUnknown: "unknown",
	KindLux:     "lux",
	KindColor:   "color",
}

func (k Kind) String() string {
	return kindName[k]
}

// Message is one decoded payload.  For KindUnknown, Value holds the raw text.
type Message struct {
	Kind  Kind
	Value string
}

func Lux(v float64) Message {
	return Message{Kind: KindLux, Value: strconv.FormatFloat(v, 'f', 2, 64)}
}

func Color(name string) Message {
	return Message{Kind: KindColor, Value: name}
}

func Unclear() Message {
	return Message{Kind: KindUnknown, Value: UnclearText}
}

func (m Message) String() string {
	switch m.Kind {
	case KindLux:
		return LuxPrefix + m.Value
	case KindColor:
		return ColorPrefix + m.Value
	default:
		return m.Value
	}
}

// Encode renders the message as UTF-8 without a terminator.
func (m Message) Encode() []byte {
	return []byte(m.String())
}

// Parse decodes a payload.  The payload is text terminated by the first NUL
// byte or by its end.  The prefix match is exact and case sensitive.
func Parse(payload []byte) Message {
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		payload = payload[:i]
	}

	text := string(payload)

	switch {
	case strings.HasPrefix(text, LuxPrefix):
		return Message{Kind: KindLux, Value: strings.TrimPrefix(text, LuxPrefix)}
	case strings.HasPrefix(text, ColorPrefix):
		return Message{Kind: KindColor, Value: strings.TrimPrefix(text, ColorPrefix)}
	default:
		return Message{Kind: KindUnknown, Value: text}
	}
}
