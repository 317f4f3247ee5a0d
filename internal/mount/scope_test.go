package mount

import (
	"math"
	"testing"

	"github.com/lodestar-guide/autoguide/internal/geom"
)

type fakePulseDriver struct {
	connected bool
	pulses []struct {
		dir Direction
		ms int
	}
	err error
}

func (f *fakePulseDriver) Connected() bool { return f.connected }
func (f *fakePulseDriver) Pulse(dir Direction, ms int) error {
	if f.err != nil {
		return f.err
	}
	f.pulses = append(f.pulses, struct {
		dir Direction
		ms int
	}{dir, ms})
	return nil
}

func TestScopeMoveOffsetIssuesPulses(t *testing.T) {
	drv := &fakePulseDriver{connected: true}
	s := NewScope(drv, 0, math.Pi/3)
	s.SetCalibration(geom.Calibration{
		XAngle: math.Pi,
		YAngle: -math.Pi / 2,
		XRate: 0.015,
		YRate: 0.015,
		Valid: true,
	})

	res := s.MoveOffset(geom.New(3, 4), MoveOptions{})
	if !res.OK {
		t.Fatalf("MoveOffset failed: %+v", res)
	}
	if len(drv.pulses) != 2 {
		t.Fatalf("expected 2 pulses (X and Y), got %d", len(drv.pulses))
	}
}

func TestScopeMoveOffsetRequiresCalibration(t *testing.T) {
	drv := &fakePulseDriver{connected: true}
	s := NewScope(drv, 0, math.Pi/3)
	res := s.MoveOffset(geom.New(1, 1), MoveOptions{})
	if res.OK {
		t.Fatal("MoveOffset before calibration should fail")
	}
}

func TestScopePulseErrorIsReported(t *testing.T) {
	drv := &fakePulseDriver{connected: true, err: errTestPulseFailed}
	s := NewScope(drv, 0, math.Pi/3)
	s.SetCalibration(geom.Calibration{XAngle: 0, YAngle: -math.Pi / 2, XRate: 1, YRate: 1, Valid: true})

	res := s.MoveOffset(geom.New(5, 0), MoveOptions{})
	if res.OK || res.Err == nil {
		t.Fatal("expected a reported pulse error")
	}
}

var errTestPulseFailed = &pulseFailure{}

type pulseFailure struct{}

func (*pulseFailure) Error() string { return "simulated pulse failure" }
