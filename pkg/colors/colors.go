// Package colors holds the fixed, ordered set of reference swatches the sensor
// calibrates against and the dial positions that represent them.
package colors

import "strings"

type Reference int

const (
	Red Reference = iota
	Orange
	Yellow
	Green
	LightBlue
	Blue
	Purple
)

// Count is the number of reference colors.
const Count = 7

// References lists every reference color in calibration order.
var References = []Reference{Red, Orange, Yellow, Green, LightBlue, Blue, Purple}

// Names as they appear on the wire.
var referenceName = map[Reference]string{
	Red:       "Red",
	Orange:    "Orange",
	Yellow:    "Yellow",
	Green:     "Green",
	LightBlue: "Light Blue",
	Blue:      "Blue",
	Purple:    "Purple",
}

// Dial angle in degrees.
var referenceAngle = map[Reference]float64{
	Red:       23,
	Orange:    46,
	Yellow:    69,
	Green:     92,
	LightBlue: 115,
	Blue:      138,
	Purple:    161,
}

func (r Reference) String() string {
	if name, ok := referenceName[r]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether r is one of the reference colors.
func (r Reference) Valid() bool {
	_, ok := referenceName[r]
	return ok
}

// Angle returns the dial angle in degrees for r.
func (r Reference) Angle() float64 {
	return referenceAngle[r]
}

// Next returns the reference that follows r in calibration order.  The
// boolean is false when r is the last reference.
func (r Reference) Next() (Reference, bool) {
	for i, ref := range References {
		if ref == r && i+1 < len(References) {
			return References[i+1], true
		}
	}
	return r, false
}

// Position returns the zero based calibration position of r, or -1.
func (r Reference) Position() int {
	for i, ref := range References {
		if ref == r {
			return i
		}
	}
	return -1
}

// Parse returns the reference color for a wire name.  Matching is exact, as
// the display firmware compares the strings verbatim.
func Parse(name string) (Reference, bool) {
	for _, r := range References {
		if referenceName[r] == name {
			return r, true
		}
	}
	return 0, false
}

// Prompt returns the operator facing name used in calibration prompts.
func (r Reference) Prompt() string {
	return strings.ToUpper(r.String())
}
