// Package classifier matches a live reading against calibrated profiles.
package classifier

import (
	"github.com/zachfi/colordial/pkg/calibration"
	"github.com/zachfi/colordial/pkg/colors"
	"github.com/zachfi/colordial/pkg/hw"
)

// Result is the outcome of one classification.  Clear is false when there
// was nothing to match against.
type Result struct {
	Color    colors.Reference
	Distance uint64
	Clear    bool
}

// Distance is the sum of the per channel absolute differences.
func Distance(a, b hw.Reading) uint64 {
	return absDiff(a.Red, b.Red) + absDiff(a.Green, b.Green) + absDiff(a.Blue, b.Blue)
}

// Classify returns the profile nearest to r.  On a tie the earlier profile
// wins.
func Classify(r hw.Reading, profiles []calibration.Profile) Result {
	var res Result

	for i, p := range profiles {
		d := Distance(r, p.Reading)
		if i == 0 || d < res.Distance {
			res = Result{Color: p.Color, Distance: d, Clear: true}
		}
	}

	return res
}

func absDiff(a, b uint32) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
