package mount

import (
	"math"

	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/guidererr"
)

// StepDriver is the hardware-facing contract a StepGuider issues
// step/center commands through.
type StepDriver interface {
	Connected() bool
	Step(dir Direction, n int) (limitReached bool, err error)
	Center() error
	MaxPosition(dir Direction) int
}

// StepGuider is the adaptive-optics Mount implementation: rates are
// pixels per step rather than per millisecond, and it exposes the
// travel/limit contract the bump coordinator needs.
type StepGuider struct {
	base
	driver StepDriver

	posNorthSouth int // +north, -south, in steps from center
	posEastWest int // +west, -east, in steps from center
}

// NewStepGuider constructs a StepGuider bound to driver.
func NewStepGuider(driver StepDriver) *StepGuider {
	return &StepGuider{base: newBase(), driver: driver}
}

func (s *StepGuider) IsConnected() bool { return s.driver != nil && s.driver.Connected() }

func (s *StepGuider) BeginCalibration(start geom.Point) error {
	if !start.Valid() {
		return guidererr.ErrCalibrationFailed
	}
	s.calibrating = true
	return nil
}

func (s *StepGuider) UpdateCalibrationState(current geom.Point) error {
	if !s.calibrating {
		return guidererr.ErrCalibrationFailed
	}
	return nil
}

// AO calibration never learns declination/binning/rotator, so the raw
// calibration is the effective one (those adjustments are Scope-only
// in practice; an AO's pixel/step rate does not depend on sky
// position).
func (s *StepGuider) TransformCameraToMount(v geom.Point) geom.Point {
	return transformCameraToMount(s.cal, v)
}

func (s *StepGuider) TransformMountToCamera(v geom.Point) geom.Point {
	return transformMountToCamera(s.cal, v)
}

// StepGuider calibration never determines pier side, so flipping is a
// no-op beyond angle normalization the mount package doesn't need to
// perform (an AO does not move with the pier).
func (s *StepGuider) FlipCalibration() error { return nil }

func (s *StepGuider) MaxPosition(dir Direction) int {
	if s.driver == nil {
		return 0
	}
	return s.driver.MaxPosition(dir)
}

func (s *StepGuider) CurrentPosition(dir Direction) int {
	switch dir {
	case North:
		return s.posNorthSouth
	case South:
		return -s.posNorthSouth
	case West:
		return s.posEastWest
	default: // East
		return -s.posEastWest
	}
}

func (s *StepGuider) WouldHitLimit(dir Direction, n int) bool {
	return s.CurrentPosition(dir)+n > s.MaxPosition(dir)
}

func (s *StepGuider) Step(dir Direction, n int) (StepResult, error) {
	if s.driver == nil {
		return StepResult{OK: true}, nil
	}
	limitReached, err := s.driver.Step(dir, n)
	if err != nil {
		s.recordError()
		return StepResult{}, err
	}
	s.resetErrorCount()
	if !limitReached {
		s.applyStep(dir, n)
	}
	return StepResult{OK: true, LimitReached: limitReached}, nil
}

func (s *StepGuider) applyStep(dir Direction, n int) {
	switch dir {
	case North:
		s.posNorthSouth += n
	case South:
		s.posNorthSouth -= n
	case West:
		s.posEastWest += n
	case East:
		s.posEastWest -= n
	}
}

func (s *StepGuider) Center() {
	if s.driver != nil {
		_ = s.driver.Center()
	}
	s.posNorthSouth, s.posEastWest = 0, 0
}

func (s *StepGuider) MoveOffset(cameraVec geom.Point, opts MoveOptions) MoveResult {
	if !s.cal.Valid {
		return MoveResult{Err: errNotCalibrated}
	}
	mountVec := s.TransformCameraToMount(cameraVec)
	if !mountVec.Valid() {
		return MoveResult{Err: guidererr.ErrStarNotFound}
	}

	xDistance, yDistance := mountVec.X, mountVec.Y
	if opts.Algorithm {
		if s.xAlgo != nil {
			xDistance = s.xAlgo.Result(xDistance)
		}
		if s.yAlgo != nil {
			yDistance = s.yAlgo.Result(yDistance)
		}
	}

	xDir := West
	if xDistance <= 0 {
		xDir = East
	}
	yDir := North
	if yDistance <= 0 {
		yDir = South
	}

	xSteps := int(math.Floor(math.Abs(xDistance/s.cal.XRate) + 0.5))
	res := s.moveAxisSteps(xDir, xSteps)
	if !res.OK {
		return res
	}
	ySteps := int(math.Floor(math.Abs(yDistance/s.cal.YRate) + 0.5))
	return s.moveAxisSteps(yDir, ySteps)
}

func (s *StepGuider) MoveAxis(dir Direction, amountSteps float64, opts MoveOptions) MoveResult {
	return s.moveAxisSteps(dir, int(amountSteps))
}

func (s *StepGuider) moveAxisSteps(dir Direction, n int) MoveResult {
	if n <= 0 {
		return MoveResult{OK: true}
	}
	res, err := s.Step(dir, n)
	if err != nil {
		return MoveResult{Err: err}
	}
	return MoveResult{OK: res.OK, AOLimitReached: res.LimitReached}
}
