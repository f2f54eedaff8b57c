package calibration

import (
	"strings"

	"github.com/zachfi/colordial/pkg/colors"
)

// Stage is the current step of the calibration sequence.  It is one of
// Waiting, Calibrating or Done.
type Stage interface {
	String() string
	isStage()
}

// Waiting is the stage before the first swatch is requested.
type Waiting struct{}

// Calibrating is the stage that samples one reference swatch.
type Calibrating struct {
	Color colors.Reference
}

// Done is terminal.
type Done struct{}

func (Waiting) isStage()     {}
func (Calibrating) isStage() {}
func (Done) isStage()        {}

func (Waiting) String() string { return "waiting" }

func (c Calibrating) String() string {
	return "calibrating " + strings.ToLower(c.Color.String())
}

func (Done) String() string { return "done" }

// Next returns the stage that follows s.
func Next(s Stage) Stage {
	switch s := s.(type) {
	case Waiting:
		return Calibrating{Color: colors.References[0]}
	case Calibrating:
		if next, ok := s.Color.Next(); ok {
			return Calibrating{Color: next}
		}
		return Done{}
	default:
		return Done{}
	}
}

// Ordinal is the number of stages that precede s: 0 for Waiting, 1 for the
// first color and so on up to Done.
func Ordinal(s Stage) int {
	switch s := s.(type) {
	case Waiting:
		return 0
	case Calibrating:
		return s.Color.Position() + 1
	default:
		return colors.Count + 1
	}
}
