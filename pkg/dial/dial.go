// Package dial turns a color name into a pointer position on the display
// node's dial.
package dial

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/colordial/pkg/colors"
	"github.com/zachfi/colordial/pkg/hw"
)

const module = "dial"

type Config struct {
	StepsPerRevolution int     `yaml:"steps_per_revolution,omitempty"`
	SweepDegrees       float64 `yaml:"sweep_degrees,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.StepsPerRevolution, util.PrefixConfig(prefix, "steps-per-revolution"), 600, "Stepper steps for one revolution of the dial")
	f.Float64Var(&cfg.SweepDegrees, util.PrefixConfig(prefix, "sweep-degrees"), 315, "Degrees the dial sweeps over one revolution of the stepper")
}

// Actuator keeps the believed pointer position and moves the stepper
// relative to it.  The position is never read back from hardware.
type Actuator struct {
	mtx sync.Mutex

	stepper        hw.Stepper
	stepsPerDegree float64
	current        int

	logger *slog.Logger
}

func New(cfg Config, stepper hw.Stepper, logger *slog.Logger) (*Actuator, error) {
	if cfg.StepsPerRevolution <= 0 || cfg.SweepDegrees <= 0 {
		return nil, fmt.Errorf("invalid dial geometry: %d steps over %g degrees", cfg.StepsPerRevolution, cfg.SweepDegrees)
	}

	return &Actuator{
		stepper:        stepper,
		stepsPerDegree: float64(cfg.StepsPerRevolution) / cfg.SweepDegrees,
		logger:         logger.With("module", module),
	}, nil
}

// TargetSteps is the absolute step position for a reference color.
func (a *Actuator) TargetSteps(ref colors.Reference) int {
	return int(ref.Angle() * a.stepsPerDegree)
}

// MoveTo points the dial at the named color and returns the relative move
// made.  A name outside the reference table sends the dial home to step 0.
// The position is taken as reached even when the stepper reports an error.
func (a *Actuator) MoveTo(ctx context.Context, name string) (int, error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	var target int
	if ref, ok := colors.Parse(name); ok {
		target = a.TargetSteps(ref)
	} else {
		metricUnknownColors.Inc()
		a.logger.Warn("unknown color, returning dial home", "color", name)
	}

	move := target - a.current
	a.current = target

	metricPosition.Set(float64(target))
	metricMoves.Inc()

	a.logger.Debug("moving dial", "color", name, "target", target, "steps", move)

	if move == 0 {
		return 0, nil
	}

	if err := a.stepper.Step(ctx, move); err != nil {
		metricStepErrors.Inc()
		return move, fmt.Errorf("failed to step %d: %w", move, err)
	}

	return move, nil
}

// Position returns the believed absolute step position.
func (a *Actuator) Position() int {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.current
}
