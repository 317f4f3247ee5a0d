// Package calibration implements the Scope and StepGuider calibration
// state machines: move-and-measure sweeps along each axis, line-fit
// angle/rate derivation, Dec backlash detection, orthogonality and
// rate sanity checks.
package calibration

import (
	"fmt"
	"math"

	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/guidererr"
	"github.com/lodestar-guide/autoguide/internal/mount"
	"gonum.org/v1/gonum/stat"
)

// Step reports one calibration iteration: iteration count,
// predicted direction, measured offset, and a message.
type Step struct {
	Iteration int
	Direction mount.Direction
	DX, DY float64
	Message string
}

// Details summarizes a completed calibration run for storage and
// diagnostics rendering.
type Details struct {
	FocalLengthMM float64
	ImageScale float64 // arcsec/px
	RASteps int
	DecSteps int
	OrthoErrorDeg float64
	LastIssue string
	OrigBinning int
	BacklashMs int

	// XTrace and YTrace hold the raw (cumulative pulse ms, measured
	// position) samples from each axis's outbound sweep, kept for
	// diagnostics rendering. The calibration's fitted angle/rate are derived
	// from a regression across these same samples (see fitAngleAndRate).
	XTrace, YTrace []CalibrationSample
}

// CalibrationSample is one (cumulative pulse, measured position) pair
// recorded during a calibration sweep.
type CalibrationSample struct {
	PulseMs float64
	Pos geom.Point
}

// Config bundles the tuning inputs a calibration run needs.
type Config struct {
	PulseStepMs int
	TotalTravelPx float64
	SafetyCapIterations int
	ReturnToleracePx float64
	DecSafetyLimitRad float64
	OrthoErrorLimitRad float64
	FocalLengthMM float64
	PixelSizeUm float64 // camera pixel pitch, for the ImageScale diagnostic field
	MountGuideSpeedPxMs float64 // expected rate implied by configured focal length/guide speed
	MaxStarLostRetries int
	Binning int
}

// DefaultConfig mirrors the calibration package's default tuning
// constants.
func DefaultConfig() Config {
	return Config{
		PulseStepMs: 500,
		TotalTravelPx: 25,
		SafetyCapIterations: 60,
		ReturnToleracePx: 3,
		DecSafetyLimitRad: 60 * math.Pi / 180,
		OrthoErrorLimitRad: 10 * math.Pi / 180,
		MaxStarLostRetries: 3,
		Binning: 1,
	}
}

// Measurer reports the current guide-star position, or ok=false if the
// star was lost this frame.
type Measurer func() (geom.Point, bool)

// axisMover is the minimal mount contract the sweep step needs.
type axisMover interface {
	MoveAxis(dir mount.Direction, amountMs float64, opts mount.MoveOptions) mount.MoveResult
}

// sweepOneWay drives m in dir in PulseStepMs increments, recording
// (cumulative pulse, position) samples, until either total distance
// traveled from the origin reaches cfg.TotalTravelPx or the safety cap
// is hit.
func sweepOneWay(m axisMover, measure Measurer, dir mount.Direction, cfg Config, emit func(Step)) ([]float64, []geom.Point, error) {
	origin, ok := measure()
	if !ok {
		return nil, nil, guidererr.ErrStarNotFound
	}

	var pulseSums []float64
	var positions []geom.Point
	cumulative := 0.0
	lostCount := 0

	for i := 0; i < cfg.SafetyCapIterations; i++ {
		res := m.MoveAxis(dir, float64(cfg.PulseStepMs), mount.MoveOptions{Silent: true})
		if !res.OK {
			return nil, nil, fmt.Errorf("calibration move failed: %w", res.Err)
		}
		cumulative += float64(cfg.PulseStepMs)

		pos, ok := measure()
		if !ok {
			lostCount++
			if lostCount > cfg.MaxStarLostRetries {
				return nil, nil, guidererr.ErrStarNotFound
			}
			continue
		}
		lostCount = 0

		pulseSums = append(pulseSums, cumulative)
		positions = append(positions, pos)

		dist, _ := pos.Distance(origin)
		emit(Step{Iteration: i, Direction: dir, DX: mustDX(pos, origin), DY: mustDY(pos, origin), Message: "calibration step"})
		if dist >= cfg.TotalTravelPx {
			break
		}
	}

	if len(positions) < 2 {
		return nil, nil, guidererr.ErrCalibrationFailed
	}
	return pulseSums, positions, nil
}

func mustDX(a, b geom.Point) float64 { d, _ := a.DX(b); return d }
func mustDY(a, b geom.Point) float64 { d, _ := a.DY(b); return d }

// fitAngleAndRate fits a line to the (pulseSum, position) samples and
// derives angle/rate. With more than two samples it regresses each
// axis against pulseSums independently via lineFitSlope and combines
// the two slopes; with exactly two samples (the minimum sweepOneWay
// can return) a regression is degenerate, so it falls back to the
// endpoint chord, which is exact in that case.
func fitAngleAndRate(pulseSums []float64, positions []geom.Point) (angle, rate float64) {
	if len(positions) > 2 {
		xs := make([]float64, len(positions))
		ys := make([]float64, len(positions))
		for i, p := range positions {
			xs[i] = p.X
			ys[i] = p.Y
		}
		dxdp := lineFitSlope(pulseSums, xs)
		dydp := lineFitSlope(pulseSums, ys)
		return math.Atan2(dydp, dxdp), math.Hypot(dxdp, dydp)
	}

	first, last := positions[0], positions[len(positions)-1]
	dx, _ := last.DX(first)
	dy, _ := last.DY(first)
	dist := math.Hypot(dx, dy)
	totalPulse := pulseSums[len(pulseSums)-1]
	if totalPulse == 0 {
		return 0, 0
	}
	return math.Atan2(dy, dx), dist / totalPulse
}

// detectDecBacklash looks for a run of near-zero motion samples at the
// start of the reversal sweep and returns the pulses spent before net
// motion resumes, in ms.
func detectDecBacklash(pulseStepMs int, positions []geom.Point, nearZeroPx float64) int {
	if len(positions) < 2 {
		return 0
	}
	stalled := 0
	for i := 1; i < len(positions); i++ {
		d, _ := positions[i].Distance(positions[i-1])
		if d < nearZeroPx {
			stalled++
			continue
		}
		break
	}
	return stalled * pulseStepMs
}

// orthoErrorRad computes ||normalize(x_angle - y_angle)| - pi/2|.
func orthoErrorRad(xAngle, yAngle float64) float64 {
	return math.Abs(math.Abs(geom.NormalizeAngle(xAngle-yAngle)) - math.Pi/2)
}

// rateSanityOK checks that rates fall within a factor of 2 of the
// rate implied by focal length/guide speed.
func rateSanityOK(measuredRate, expectedRate float64) bool {
	if expectedRate <= 0 || measuredRate <= 0 {
		return true
	}
	ratio := measuredRate / expectedRate
	return ratio >= 0.5 && ratio <= 2.0
}

// lineFitSlope returns the least-squares slope of ys against xs. Used
// by fitAngleAndRate once a sweep has recorded more than the minimum
// two samples, which is the common case.
func lineFitSlope(xs, ys []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}
