// Package mount implements the camera<->mount coordinate transform,
// pier-flip/declination/binning/rotator calibration adjustments, and
// the concrete Scope and StepGuider variants, flattening a
// Mount/Scope/StepGuider class hierarchy into one interface plus two
// structs sharing an embedded base.
package mount

import (
	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/guidererr"
)

// Direction is a guide-pulse direction along one mount axis.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// MoveOptions controls a single move_axis/move_offset call.
type MoveOptions struct {
	Algorithm bool // apply the configured guide algorithm before moving
	Silent bool // do not log/emit the move (used during calibration steps)
}

// MoveResult reports what happened to a requested move.
type MoveResult struct {
	OK bool
	Err error
	AOLimitReached bool
}

// Mount is the interface the guider core consumes. Both Scope and
// StepGuider implement it.
type Mount interface {
	IsConnected() bool
	IsCalibrated() bool
	IsBusy() bool

	BeginCalibration(start geom.Point) error
	UpdateCalibrationState(current geom.Point) error
	ClearCalibration()
	GetCalibration() geom.Calibration
	SetCalibration(c geom.Calibration)

	MoveOffset(cameraVec geom.Point, opts MoveOptions) MoveResult
	MoveAxis(dir Direction, amount float64, opts MoveOptions) MoveResult

	TransformCameraToMount(v geom.Point) geom.Point
	TransformMountToCamera(v geom.Point) geom.Point

	FlipCalibration() error
	SideOfPier() geom.PierSide
	Declination() (float64, bool)

	GuidingEnabled() bool
	SetGuidingEnabled(bool)
	DecCompensationEnabled() bool

	SetXAlgorithm(a Algorithm)
	SetYAlgorithm(a Algorithm)

	// GuidingPaused/GuidingResumed/GuidingDithered/
	// GuidingDitherSettleDone/GuidingStopped forward to whichever
	// per-axis algorithms are configured, so the guider can notify
	// algorithm state transitions without reaching past the Mount
	// abstraction to hold its own dither/pause bookkeeping.
	GuidingPaused()
	GuidingResumed()
	GuidingDithered(amount float64)
	GuidingDitherSettleDone(success bool)
	GuidingStopped()
}

// Algorithm is the slice of guidealgo.Algorithm the mount package
// forwards notifications to. Defined here (rather than imported)
// to avoid an import cycle between mount and guidealgo; guidealgo.Algorithm
// satisfies it structurally.
type Algorithm interface {
	Result(errorPixels float64) float64
	DeduceResult() float64
	GuidingPaused()
	GuidingResumed()
	GuidingDithered(amount float64)
	GuidingDitherSettleDone(success bool)
	GuidingStopped()
	ResetParams()
	GetMinMove() float64
	SetMinMove(m float64)
}

// StepGuiderMount additionally exposes the AO-specific travel/limit
// contract.
type StepGuiderMount interface {
	Mount
	MaxPosition(dir Direction) int
	CurrentPosition(dir Direction) int
	Step(dir Direction, n int) (StepResult, error)
	Center()
	WouldHitLimit(dir Direction, n int) bool
}

// StepResult is the outcome of a single AO Step call.
type StepResult struct {
	OK bool
	LimitReached bool
}

// base holds the state common to Scope and StepGuider.
type base struct {
	connected bool
	cal geom.Calibration
	calibrating bool

	guidingEnabled bool
	decCompEnabled bool

	xAlgo, yAlgo Algorithm

	currentDeclination float64
	currentDeclinationSet bool
	currentBinning int
	currentRotatorAngle float64
	currentRotatorSet bool

	requestCount int
	errorCount int
}

func newBase() base {
	return base{guidingEnabled: true, currentBinning: 1}
}

func (b *base) IsConnected() bool { return b.connected }
func (b *base) IsCalibrated() bool { return b.cal.Valid }
func (b *base) IsBusy() bool { return b.calibrating }
func (b *base) ClearCalibration() { b.cal = geom.Calibration{} }
func (b *base) GetCalibration() geom.Calibration { return b.cal }
func (b *base) SetCalibration(c geom.Calibration) { b.cal = c }

func (b *base) GuidingEnabled() bool { return b.guidingEnabled }
func (b *base) SetGuidingEnabled(v bool) { b.guidingEnabled = v }
func (b *base) DecCompensationEnabled() bool { return b.decCompEnabled }

func (b *base) SideOfPier() geom.PierSide { return b.cal.PierSide }
func (b *base) Declination() (float64, bool) {
	return b.currentDeclination, b.currentDeclinationSet
}

// SetXAlgorithm/SetYAlgorithm wire a per-axis guide algorithm into the
// mount so MoveOffset can apply it when requested.
func (b *base) SetXAlgorithm(a Algorithm) { b.xAlgo = a }
func (b *base) SetYAlgorithm(a Algorithm) { b.yAlgo = a }

// GuidingPaused/GuidingResumed/GuidingDithered/GuidingDitherSettleDone/
// GuidingStopped forward to both configured per-axis algorithms, so the
// guider's dither and pause logic never has to reach past the Mount
// interface to hold its own algorithm references.
func (b *base) GuidingPaused() {
	if b.xAlgo != nil {
		b.xAlgo.GuidingPaused()
	}
	if b.yAlgo != nil {
		b.yAlgo.GuidingPaused()
	}
}

func (b *base) GuidingResumed() {
	if b.xAlgo != nil {
		b.xAlgo.GuidingResumed()
	}
	if b.yAlgo != nil {
		b.yAlgo.GuidingResumed()
	}
}

func (b *base) GuidingDithered(amount float64) {
	if b.xAlgo != nil {
		b.xAlgo.GuidingDithered(amount)
	}
	if b.yAlgo != nil {
		b.yAlgo.GuidingDithered(amount)
	}
}

func (b *base) GuidingDitherSettleDone(success bool) {
	if b.xAlgo != nil {
		b.xAlgo.GuidingDitherSettleDone(success)
	}
	if b.yAlgo != nil {
		b.yAlgo.GuidingDitherSettleDone(success)
	}
}

func (b *base) GuidingStopped() {
	if b.xAlgo != nil {
		b.xAlgo.GuidingStopped()
	}
	if b.yAlgo != nil {
		b.yAlgo.GuidingStopped()
	}
}

// recordError increments the consecutive hardware-error counter that
// ErrorCount reports; a successful move resets it.
func (b *base) recordError() { b.errorCount++ }
func (b *base) ErrorCount() int { return b.errorCount }
func (b *base) resetErrorCount() { b.errorCount = 0 }

var errNotCalibrated = guidererr.ErrCalibrationFailed
