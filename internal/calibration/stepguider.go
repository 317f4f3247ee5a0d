package calibration

import (
	"math"

	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/mount"
)

// aoMover is the minimal StepGuider contract an AO calibration sweep
// needs.
type aoMover interface {
	Step(dir mount.Direction, n int) (mount.StepResult, error)
	Center()
	WouldHitLimit(dir mount.Direction, n int) bool
}

// RunStepGuider executes the AO calibration sequence: recenter, drive
// to a corner, sample a reference, drive to the opposite limit
// deriving x_angle/x_rate, recenter and repeat on the other axis for
// y_angle/y_rate. Pier side and declination are left unknown.
func RunStepGuider(a aoMover, measure Measurer, cfg Config, stepsPerIteration int, sampleFrames int, emit func(Step)) (geom.Calibration, error) {
	a.Center()

	// Drive to the lower-right corner (West + South) until both axes
	// hit their limit.
	for !a.WouldHitLimit(mount.West, stepsPerIteration) || !a.WouldHitLimit(mount.South, stepsPerIteration) {
		if !a.WouldHitLimit(mount.West, stepsPerIteration) {
			a.Step(mount.West, stepsPerIteration)
		}
		if !a.WouldHitLimit(mount.South, stepsPerIteration) {
			a.Step(mount.South, stepsPerIteration)
		}
	}

	startRef, err := averageSamples(measure, sampleFrames)
	if err != nil {
		return geom.Calibration{}, err
	}

	westSteps := 0
	for !a.WouldHitLimit(mount.East, stepsPerIteration) {
		a.Step(mount.East, stepsPerIteration)
		westSteps += stepsPerIteration
		emit(Step{Direction: mount.East, Message: "AO x-axis sweep"})
	}
	endRef, err := averageSamples(measure, sampleFrames)
	if err != nil {
		return geom.Calibration{}, err
	}

	dx, _ := endRef.DX(startRef)
	dy, _ := endRef.DY(startRef)
	xAngle := math.Atan2(dy, dx)
	xRate := 0.0
	if westSteps > 0 {
		xRate = math.Hypot(dx, dy) / float64(westSteps)
	}

	a.Center()
	startRefY, err := averageSamples(measure, sampleFrames)
	if err != nil {
		return geom.Calibration{}, err
	}
	northSteps := 0
	for !a.WouldHitLimit(mount.North, stepsPerIteration) {
		a.Step(mount.North, stepsPerIteration)
		northSteps += stepsPerIteration
		emit(Step{Direction: mount.North, Message: "AO y-axis sweep"})
	}
	endRefY, err := averageSamples(measure, sampleFrames)
	if err != nil {
		return geom.Calibration{}, err
	}

	dxY, _ := endRefY.DX(startRefY)
	dyY, _ := endRefY.DY(startRefY)
	yAngle := math.Atan2(dyY, dxY)
	yRate := 0.0
	if northSteps > 0 {
		yRate = math.Hypot(dxY, dyY) / float64(northSteps)
	}

	a.Center()

	return geom.Calibration{
		XAngle: xAngle,
		YAngle: yAngle,
		XRate: xRate,
		YRate: yRate,
		PierSide: geom.PierUnknown,
		Valid: true,
	}, nil
}

func averageSamples(measure Measurer, n int) (geom.Point, error) {
	if n < 1 {
		n = 1
	}
	var sumX, sumY float64
	count := 0
	for i := 0; i < n; i++ {
		p, ok := measure()
		if !ok {
			continue
		}
		sumX += p.X
		sumY += p.Y
		count++
	}
	if count == 0 {
		return geom.Point{}, errNoSamples
	}
	return geom.New(sumX/float64(count), sumY/float64(count)), nil
}

var errNoSamples = &noSamplesError{}

type noSamplesError struct{}

func (*noSamplesError) Error() string { return "calibration: no star samples available for averaging" }
