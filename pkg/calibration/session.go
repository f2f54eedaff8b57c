// Package calibration samples the reference swatches and keeps the resulting
// color profiles.
package calibration

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zachfi/colordial/pkg/colors"
	"github.com/zachfi/colordial/pkg/hw"
)

var (
	ErrCalibrationComplete = errors.New("calibration complete")
	ErrNotCalibrating      = errors.New("not calibrating")
)

// Profile is the averaged three channel signature of one reference color.
type Profile struct {
	Color colors.Reference
	hw.Reading
}

// Session owns the calibration stage and the profiles recorded so far.  It
// lives for as long as the node and is never persisted.
type Session struct {
	mtx sync.Mutex

	stage    Stage
	profiles []Profile
}

func NewSession() *Session {
	return &Session{
		stage:    Waiting{},
		profiles: make([]Profile, 0, colors.Count),
	}
}

func (s *Session) Stage() Stage {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.stage
}

func (s *Session) Done() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.stage.(Done)
	return ok
}

// Profiles returns a copy of the finalized profiles in reference order.
func (s *Session) Profiles() []Profile {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]Profile(nil), s.profiles...)
}

// begin leaves the Waiting stage.  It is a no-op in any other stage.
func (s *Session) begin() Stage {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.stage.(Waiting); ok {
		s.stage = Next(s.stage)
	}

	return s.stage
}

// record stores the profile for the active stage and advances.  The profile
// must be for the color being calibrated, and it lands at that color's
// position, so stage and profile index stay in lockstep.
func (s *Session) record(p Profile) (Stage, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	c, ok := s.stage.(Calibrating)
	if !ok {
		return s.stage, ErrNotCalibrating
	}

	if p.Color != c.Color {
		return s.stage, fmt.Errorf("profile for %s recorded during %s", p.Color, s.stage)
	}

	if len(s.profiles) != c.Color.Position() {
		return s.stage, fmt.Errorf("have %d profiles while %s", len(s.profiles), s.stage)
	}

	s.profiles = append(s.profiles, p)
	s.stage = Next(s.stage)

	return s.stage, nil
}
