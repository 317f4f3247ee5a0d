package mount

import (
	"math"

	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/guidererr"
)

// PulseDriver is the hardware-facing contract a Scope issues pulse
// guide commands through. The same interface covers both an ST4 port
// and a direct mount-control protocol that pulse-guides via camera
// commands.
type PulseDriver interface {
	Connected() bool
	Pulse(dir Direction, durationMs int) error
}

// Scope is the telescope-mount Mount implementation: X/Y rates are
// pixels per millisecond of pulse, and it supports declination/pier
// side/binning/rotator adjustments plus Dec backlash compensation.
type Scope struct {
	base
	driver PulseDriver
	backlash *BacklashComp

	decSafetyLimitRad float64
	pulseGuideCapable bool // direct-move vs pulse-guide mounts
}

// NewScope constructs a Scope bound to driver, with the Dec backlash
// compensator measured during calibration.
func NewScope(driver PulseDriver, backlashMs int, decSafetyLimitRad float64) *Scope {
	return &Scope{
		base: newBase(),
		driver: driver,
		backlash: NewBacklashComp(backlashMs),
		decSafetyLimitRad: decSafetyLimitRad,
		pulseGuideCapable: true,
	}
}

func (s *Scope) IsConnected() bool { return s.driver != nil && s.driver.Connected() }

func (s *Scope) BeginCalibration(start geom.Point) error {
	if !start.Valid() {
		return guidererr.ErrCalibrationFailed
	}
	s.calibrating = true
	return nil
}

func (s *Scope) UpdateCalibrationState(current geom.Point) error {
	if !s.calibrating {
		return guidererr.ErrCalibrationFailed
	}
	return nil
}

// effective returns the calibration adjusted for current declination,
// binning, and rotator position.
func (s *Scope) effective() geom.Calibration {
	return effectiveCalibration(
		s.cal,
		s.currentDeclination, s.currentDeclinationSet,
		s.currentBinning,
		s.currentRotatorAngle, s.currentRotatorSet,
		s.decSafetyLimitRad,
	)
}

func (s *Scope) TransformCameraToMount(v geom.Point) geom.Point {
	return transformCameraToMount(s.effective(), v)
}

func (s *Scope) TransformMountToCamera(v geom.Point) geom.Point {
	return transformMountToCamera(s.effective(), v)
}

func (s *Scope) FlipCalibration() error {
	if !s.cal.Valid {
		return guidererr.ErrCalibrationFailed
	}
	s.cal = flipCalibrationPierSide(s.cal, s.decFlipsOnPierFlip())
	return nil
}

// decFlipsOnPierFlip is a mount-declared property; Scope defaults to
// false since most ASCOM mounts report Dec sense unchanged across a
// pier flip and rely on the parity toggle instead.
func (s *Scope) decFlipsOnPierFlip() bool { return false }

func (s *Scope) SetCurrentDeclination(decRad float64) {
	s.currentDeclination = decRad
	s.currentDeclinationSet = true
}

func (s *Scope) SetCurrentBinning(b int) { s.currentBinning = b }
func (s *Scope) SetCurrentRotatorAngle(rad float64) { s.currentRotatorAngle = rad; s.currentRotatorSet = true }

func (s *Scope) MoveOffset(cameraVec geom.Point, opts MoveOptions) MoveResult {
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
			s.backlash.TrackBLCResults(yDistance, s.yAlgo.GetMinMove(), s.cal.YRate)
			yDistance = s.yAlgo.Result(yDistance)
		}
	} else {
		s.backlash.ResetBaseline()
	}

	xDir := West
	if xDistance <= 0 {
		xDir = East
	}
	yDir := North
	if yDistance <= 0 {
		yDir = South
	}

	xAmount := int(math.Floor(math.Abs(xDistance/s.cal.XRate) + 0.5))
	if res := s.pulse(xDir, xAmount); !res.OK {
		return res
	}

	yAmount := int(math.Floor(math.Abs(yDistance/s.cal.YRate) + 0.5))
	if yAmount > 0 && s.guidingEnabled {
		s.backlash.ApplyBacklashComp(yDir, yDistance, &yAmount)
	}
	return s.pulse(yDir, yAmount)
}

func (s *Scope) MoveAxis(dir Direction, amountMs float64, opts MoveOptions) MoveResult {
	return s.pulse(dir, int(amountMs))
}

func (s *Scope) pulse(dir Direction, amountMs int) MoveResult {
	if amountMs <= 0 {
		return MoveResult{OK: true}
	}
	if s.driver == nil {
		return MoveResult{OK: true}
	}
	if err := s.driver.Pulse(dir, amountMs); err != nil {
		s.recordError()
		return MoveResult{Err: err}
	}
	s.resetErrorCount()
	return MoveResult{OK: true}
}
