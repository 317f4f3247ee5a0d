package calibration

import (
	"math"
	"testing"

	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/mount"
)

// simMount is a synthetic mount whose MoveAxis call moves a tracked
// star position according to fixed per-axis vectors, e.g. moving WEST
// for 100ms shifts the star by a fixed per-axis offset.
type simMount struct {
	pos geom.Point
	perMsWest geom.Point
	perMsNorth geom.Point
}

func (s *simMount) MoveAxis(dir mount.Direction, amountMs float64, opts mount.MoveOptions) mount.MoveResult {
	s.move(dir, amountMs)
	return mount.MoveResult{OK: true}
}

func (s *simMount) move(dir mount.Direction, amountMs float64) {
	switch dir {
	case mount.West:
		s.pos = s.pos.Add(s.perMsWest.Scale(amountMs))
	case mount.East:
		s.pos = s.pos.Add(s.perMsWest.Scale(-amountMs))
	case mount.North:
		s.pos = s.pos.Add(s.perMsNorth.Scale(amountMs))
	case mount.South:
		s.pos = s.pos.Add(s.perMsNorth.Scale(-amountMs))
	}
}

func (s *simMount) measure() (geom.Point, bool) { return s.pos, true }

// Connected/Pulse let simMount double as a mount.PulseDriver so a real
// mount.Scope can be calibrated end to end in tests.
func (s *simMount) Connected() bool { return true }
func (s *simMount) Pulse(dir mount.Direction, durationMs int) error {
	s.move(dir, float64(durationMs))
	return nil
}

// TestScopeCalibrationDerivesAnglesAndRates checks a west/north sweep
// pair derives x_angle ~= pi, y_angle ~= -pi/2, x_rate ~= y_rate ~=
// 0.015 px/ms from the fixed per-axis motion vectors above.
func TestScopeCalibrationDerivesAnglesAndRates(t *testing.T) {
	sim := &simMount{
		pos: geom.New(0, 0),
		perMsWest: geom.New(-0.015, 0),
		perMsNorth: geom.New(0, -0.015),
	}

	cfg := DefaultConfig()
	cfg.PulseStepMs = 100
	cfg.TotalTravelPx = 6
	cfg.ReturnToleracePx = 1.0

	var steps []Step
	wSums, wPos, err := sweepOneWay(sim, sim.measure, mount.West, cfg, func(s Step) { steps = append(steps, s) })
	if err != nil {
		t.Fatalf("west sweep failed: %v", err)
	}
	xAngle, xRate := fitAngleAndRate(wSums, wPos)
	if math.Abs(xAngle-math.Pi) > 0.05 {
		t.Errorf("x_angle = %v, want ~pi", xAngle)
	}
	if math.Abs(xRate-0.015) > 0.002 {
		t.Errorf("x_rate = %v, want ~0.015", xRate)
	}

	sim.pos = geom.New(0, 0)
	nSums, nPos, err := sweepOneWay(sim, sim.measure, mount.North, cfg, func(s Step) { steps = append(steps, s) })
	if err != nil {
		t.Fatalf("north sweep failed: %v", err)
	}
	yAngle, yRate := fitAngleAndRate(nSums, nPos)
	if math.Abs(yAngle-(-math.Pi/2)) > 0.05 {
		t.Errorf("y_angle = %v, want ~-pi/2", yAngle)
	}
	if math.Abs(yRate-0.015) > 0.002 {
		t.Errorf("y_rate = %v, want ~0.015", yRate)
	}

	ortho := orthoErrorRad(xAngle, yAngle)
	if ortho*180/math.Pi > 0.1 {
		t.Errorf("ortho_error = %v deg, want <= ~0.1deg", ortho*180/math.Pi)
	}
}

func TestRunScopeCommitsCalibration(t *testing.T) {
	sim := &simMount{
		pos: geom.New(0, 0),
		perMsWest: geom.New(-0.015, 0),
		perMsNorth: geom.New(0, -0.015),
	}
	m := mount.NewScope(sim, 0, math.Pi/3)

	cfg := DefaultConfig()
	cfg.PulseStepMs = 100
	cfg.TotalTravelPx = 6
	cfg.ReturnToleracePx = 2.0
	cfg.DecSafetyLimitRad = math.Pi / 3

	cal, _, err := RunScope(m, sim.measure, cfg, 0, true, func(Step) {})
	if err != nil {
		t.Fatalf("RunScope failed: %v", err)
	}
	if !cal.Valid {
		t.Fatal("resulting calibration should be valid")
	}
	if !m.IsCalibrated() {
		t.Fatal("mount should be marked calibrated after RunScope")
	}
}

func TestDetectDecBacklash(t *testing.T) {
	positions := []geom.Point{
		geom.New(0, 0),
		geom.New(0, 0.05),
		geom.New(0, 0.05),
		geom.New(0, 1.5),
		geom.New(0, 3.0),
	}
	ms := detectDecBacklash(100, positions, 0.3)
	if ms != 200 {
		t.Errorf("backlash = %d ms, want 200", ms)
	}
}

func TestRateSanityOK(t *testing.T) {
	if !rateSanityOK(0.02, 0.015) {
		t.Error("rate within 2x should pass")
	}
	if rateSanityOK(0.1, 0.015) {
		t.Error("rate beyond 2x should fail")
	}
}
