package mount

import (
	"math"
	"testing"

	"github.com/lodestar-guide/autoguide/internal/geom"
)

func approxEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// TestTransformRoundTrip checks a mount where WEST moves (-1.5, 0) and
// NORTH moves (0, -1.5) yields x_angle ~ pi, y_angle ~ -pi/2.
func TestTransformRoundTrip(t *testing.T) {
	cal := geom.Calibration{
		XAngle: math.Pi,
		YAngle: -math.Pi / 2,
		XRate: 0.015,
		YRate: 0.015,
		Valid: true,
	}

	cam := geom.New(3, 4)
	mnt := transformCameraToMount(cal, cam)
	if !mnt.Valid() {
		t.Fatal("forward transform should produce a valid point")
	}

	back := transformMountToCamera(cal, mnt)
	if !back.Valid() {
		t.Fatal("reverse transform should produce a valid point")
	}
	if !approxEqual(back.X, cam.X, 0.05) || !approxEqual(back.Y, cam.Y, 0.05) {
		t.Errorf("round trip mismatch: original=(%v,%v) recovered=(%v,%v)", cam.X, cam.Y, back.X, back.Y)
	}
}

func TestTransformInvalidInputPropagates(t *testing.T) {
	cal := geom.Calibration{XAngle: 0, YAngle: -math.Pi / 2, Valid: true}
	out := transformCameraToMount(cal, geom.Invalid())
	if out.Valid() {
		t.Fatal("transform of an invalid point should be invalid")
	}
}

func TestFlipCalibrationPierSide(t *testing.T) {
	cal := geom.Calibration{
		XAngle: 0,
		YAngle: -math.Pi / 2,
		PierSide: geom.PierEast,
		DecParity: geom.ParityEven,
		Valid: true,
	}
	flipped := flipCalibrationPierSide(cal, false)
	if !approxEqual(flipped.XAngle, math.Pi, 1e-9) {
		t.Errorf("flipped XAngle = %v, want pi", flipped.XAngle)
	}
	if flipped.PierSide != geom.PierWest {
		t.Errorf("pier side = %v, want west", flipped.PierSide)
	}
	if flipped.DecParity != geom.ParityOdd {
		t.Errorf("dec parity = %v, want toggled to odd", flipped.DecParity)
	}
}

func TestAdjustForBinningScalesRates(t *testing.T) {
	cal := geom.Calibration{XRate: 1.0, YRate: 2.0, Binning: 1, Valid: true}
	adjusted := adjustForBinning(cal, 2)
	if adjusted.XRate != 0.5 || adjusted.YRate != 1.0 {
		t.Errorf("rates = (%v, %v), want (0.5, 1.0)", adjusted.XRate, adjusted.YRate)
	}
}

func TestAdjustForDeclinationOutsideLimitIsNoop(t *testing.T) {
	cal := geom.Calibration{XRate: 1.0, Declination: 1.3, DeclinationSet: true, Valid: true}
	_, adjusted := adjustForDeclination(cal, 1.3, true, 1.0)
	if adjusted {
		t.Fatal("declination beyond the safety limit should not be adjusted")
	}
}

func TestAdjustForRotatorShiftsAngles(t *testing.T) {
	cal := geom.Calibration{XAngle: 0, YAngle: -math.Pi / 2, RotatorAngle: 0, RotatorSet: true, Valid: true}
	out := adjustForRotator(cal, math.Pi/4, true)
	if !approxEqual(out.XAngle, -math.Pi/4, 1e-9) {
		t.Errorf("XAngle = %v, want -pi/4", out.XAngle)
	}
}
