package calibration

import (
	"math"

	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/guidererr"
	"github.com/lodestar-guide/autoguide/internal/mount"
)

// nearZeroPx is the motion-sample threshold used to detect a stalled
// (backlash) reversal.
const nearZeroPx = 0.3

// RunScope executes the full Scope calibration sequence against m,
// using measure to sample the guide-star position and emit to publish
// CalibrationStep events. currentDecRad is the mount's current
// declination if known (used for the declination-safety-limit check).
func RunScope(m mount.Mount, measure Measurer, cfg Config, currentDecRad float64, haveDec bool, emit func(Step)) (geom.Calibration, Details, error) {
	m.ClearCalibration()

	wSums, wPos, err := sweepOneWay(m, measure, mount.West, cfg, emit)
	if err != nil {
		return geom.Calibration{}, Details{}, err
	}
	xAngle, xRate := fitAngleAndRate(wSums, wPos)

	origin := wPos[0]
	if err := returnSweep(m, measure, mount.East, wSums[len(wSums)-1], cfg, origin, emit); err != nil {
		emit(Step{Message: "star did not return after X sweep"})
	}

	var details Details
	details.OrigBinning = cfg.Binning
	details.RASteps = len(wPos)
	details.XTrace = traceOf(wSums, wPos)

	nSums, nPos, err := sweepOneWay(m, measure, mount.North, cfg, emit)
	if err != nil {
		return geom.Calibration{}, Details{}, err
	}
	yAngle, yRate := fitAngleAndRate(nSums, nPos)
	details.DecSteps = len(nPos)
	details.YTrace = traceOf(nSums, nPos)

	backlashMs := 0
	decSkipped := !haveDec || math.Abs(currentDecRad) > cfg.DecSafetyLimitRad
	if !decSkipped {
		sOrigin := nPos[len(nPos)-1]
		sSums, sPos, serr := sweepOneWay(m, measure, mount.South, cfg, emit)
		if serr == nil {
			backlashMs = detectDecBacklash(cfg.PulseStepMs, sPos, nearZeroPx)
			_ = sSums
		}
		if err := returnSweep(m, measure, mount.North, nSums[len(nSums)-1], cfg, sOrigin, emit); err != nil {
			emit(Step{Message: "star did not return after Y sweep"})
		}
	} else {
		details.LastIssue = "declination recovery skipped: outside safety limit"
	}
	details.BacklashMs = backlashMs
	if backlashMs > cfg.PulseStepMs*cfg.SafetyCapIterations/10 {
		details.LastIssue = "excessive declination backlash"
	}

	ortho := orthoErrorRad(xAngle, yAngle)
	details.OrthoErrorDeg = ortho * 180 / math.Pi
	if ortho > cfg.OrthoErrorLimitRad {
		details.LastIssue = "orthogonality error exceeds limit"
	}

	if cfg.MountGuideSpeedPxMs > 0 {
		if !rateSanityOK(xRate, cfg.MountGuideSpeedPxMs) || !rateSanityOK(yRate, cfg.MountGuideSpeedPxMs) {
			details.LastIssue = "guide rate differs from expected by more than 2x"
		}
	}
	details.FocalLengthMM = cfg.FocalLengthMM
	if cfg.FocalLengthMM > 0 {
		details.ImageScale = 206.265 * cfg.PixelSizeUm * float64(cfg.Binning) / cfg.FocalLengthMM
	}

	cal := geom.Calibration{
		XAngle: xAngle,
		YAngle: yAngle,
		XRate: xRate,
		YRate: yRate,
		Binning: cfg.Binning,
		Valid: true,
	}
	if haveDec {
		cal.Declination = currentDecRad
		cal.DeclinationSet = true
	}

	m.SetCalibration(cal)
	return cal, details, nil
}

// traceOf zips parallel pulse-sum/position slices into the sample
// pairs Details keeps for diagnostics rendering.
func traceOf(pulseSums []float64, positions []geom.Point) []CalibrationSample {
	trace := make([]CalibrationSample, len(positions))
	for i, pos := range positions {
		trace[i] = CalibrationSample{PulseMs: pulseSums[i], Pos: pos}
	}
	return trace
}

// returnSweep moves the reverse direction for the same cumulative
// pulse duration as the outbound sweep and checks the star returns
// within tolerance of origin.
func returnSweep(m axisMover, measure Measurer, dir mount.Direction, totalPulseMs float64, cfg Config, origin geom.Point, emit func(Step)) error {
	res := m.MoveAxis(dir, totalPulseMs, mount.MoveOptions{Silent: true})
	if !res.OK {
		return res.Err
	}
	pos, ok := measure()
	if !ok {
		return guidererr.ErrStarNotFound
	}
	dist, _ := pos.Distance(origin)
	emit(Step{Direction: dir, DX: mustDX(pos, origin), DY: mustDY(pos, origin), Message: "return sweep"})
	if dist > cfg.ReturnToleracePx {
		return guidererr.ErrCalibrationFailed
	}
	return nil
}
