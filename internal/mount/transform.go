package mount

import (
	"math"

	"github.com/lodestar-guide/autoguide/internal/geom"
)

// transformCameraToMount implements the forward camera->mount
// transform: hyp/theta decomposition of the camera vector, then
// re-projected through xAngle and the y-angle error.
func transformCameraToMount(cal geom.Calibration, v geom.Point) geom.Point {
	hyp, ok := v.DistanceFromOrigin()
	theta, hasAngle := v.Angle(geom.New(0, 0))
	if !ok || !hasAngle {
		return geom.Invalid()
	}

	yAngleError := cal.YAngleError()
	xAngle := theta - cal.XAngle
	yAngle := theta - (cal.XAngle + yAngleError)

	return geom.New(math.Cos(xAngle)*hyp, math.Sin(yAngle)*hyp)
}

// transformMountToCamera implements the reverse transform: inverts the
// pair, with a sign flip of theta when |y_angle_error| > pi/2 (a
// swapped-parity pier-flip detector).
func transformMountToCamera(cal geom.Calibration, v geom.Point) geom.Point {
	hyp, ok := v.DistanceFromOrigin()
	theta, hasAngle := v.Angle(geom.New(0, 0))
	if !ok || !hasAngle {
		return geom.Invalid()
	}

	if math.Abs(cal.YAngleError()) > math.Pi/2 {
		theta = -theta
	}

	xAngle := theta + cal.XAngle
	return geom.New(math.Cos(xAngle)*hyp, math.Sin(xAngle)*hyp)
}

// flipCalibrationPierSide applies the pier-flip adjustment.
// yAngleFlipsToo reflects a mount-declared property: some mounts'
// Dec axis also reverses sense on a pier flip, others don't.
func flipCalibrationPierSide(cal geom.Calibration, yAngleFlipsToo bool) geom.Calibration {
	out := cal
	out.XAngle = geom.NormalizeAngle(cal.XAngle + math.Pi)
	if yAngleFlipsToo {
		out.YAngle = geom.NormalizeAngle(cal.YAngle + math.Pi)
	}

	if cal.PierSide == geom.PierEast {
		out.PierSide = geom.PierWest
	} else if cal.PierSide == geom.PierWest {
		out.PierSide = geom.PierEast
	}

	// Toggle Dec parity unless the flip itself already inverts Dec
	// sense (yAngleFlipsToo means the Y-axis reversal absorbs the
	// parity change).
	if !yAngleFlipsToo {
		out.DecParity = toggleParity(cal.DecParity)
	}
	return out
}

func toggleParity(p geom.GuideParity) geom.GuideParity {
	switch p {
	case geom.ParityEven:
		return geom.ParityOdd
	case geom.ParityOdd:
		return geom.ParityEven
	default:
		return p
	}
}

// adjustForDeclination implements the declination adjustment: within
// decSafetyLimitRad and with a known current declination, x_rate
// scales by cos(current)/cos(cal). Outside the limit or with unknown
// declination, the rate is left unadjusted.
func adjustForDeclination(cal geom.Calibration, currentDecRad float64, haveCurrentDec bool, decSafetyLimitRad float64) (geom.Calibration, bool) {
	out := cal
	if !cal.DeclinationSet || !haveCurrentDec {
		return out, false
	}
	if math.Abs(cal.Declination) > decSafetyLimitRad {
		return out, false
	}
	denom := math.Cos(cal.Declination)
	if denom == 0 {
		return out, false
	}
	out.XRate = cal.XRate * math.Cos(currentDecRad) / denom
	return out, true
}

// adjustForBinning implements the binning adjustment: both rates scale
// by cal.binning / current_binning; ortho error (the angles) is
// unchanged.
func adjustForBinning(cal geom.Calibration, currentBinning int) geom.Calibration {
	if currentBinning == 0 || cal.Binning == 0 || currentBinning == cal.Binning {
		return cal
	}
	factor := float64(cal.Binning) / float64(currentBinning)
	out := cal
	out.XRate *= factor
	out.YRate *= factor
	return out
}

// adjustForRotator implements the rotator adjustment: subtract
// (current - calibration) rotator angle from both x_angle and y_angle
// before the transform.
func adjustForRotator(cal geom.Calibration, currentRotatorRad float64, haveCurrent bool) geom.Calibration {
	if !cal.RotatorSet || !haveCurrent {
		return cal
	}
	delta := currentRotatorRad - cal.RotatorAngle
	out := cal
	out.XAngle = geom.NormalizeAngle(cal.XAngle - delta)
	out.YAngle = geom.NormalizeAngle(cal.YAngle - delta)
	return out
}

// effectiveCalibration folds in every adjustment, in the order
// declination -> binning -> rotator (angles and rates compose
// independently so order between declination/binning does not matter;
// rotator must be applied to the resulting angles).
func effectiveCalibration(cal geom.Calibration, currentDecRad float64, haveCurrentDec bool, currentBinning int, currentRotatorRad float64, haveCurrentRotator bool, decSafetyLimitRad float64) geom.Calibration {
	out, _ := adjustForDeclination(cal, currentDecRad, haveCurrentDec, decSafetyLimitRad)
	out = adjustForBinning(out, currentBinning)
	out = adjustForRotator(out, currentRotatorRad, haveCurrentRotator)
	return out
}
