package guidealgo

import (
	"math"
	"testing"
)

func TestIdentityPassesThrough(t *testing.T) {
	a := NewIdentity()
	if got := a.Result(3.5); got != 3.5 {
		t.Errorf("Result = %v, want 3.5", got)
	}
	if got := a.DeduceResult(); got != 3.5 {
		t.Errorf("DeduceResult = %v, want 3.5", got)
	}
}

func TestHysteresisDeadZone(t *testing.T) {
	a := NewHysteresis(0.5, 1.0)
	if got := a.Result(0.3); got != 0 {
		t.Errorf("Result below dead zone = %v, want 0", got)
	}
}

func TestHysteresisBlendsWithPrevious(t *testing.T) {
	a := NewHysteresis(0.5, 0)
	first := a.Result(10)
	if first != 5 {
		t.Fatalf("first result = %v, want 5", first)
	}
	second := a.Result(10)
	if second != 7.5 {
		t.Errorf("second result = %v, want 7.5", second)
	}
}

func TestHysteresisResetsOnDither(t *testing.T) {
	a := NewHysteresis(0.5, 0)
	a.Result(10)
	a.GuidingDithered(5)
	if a.DeduceResult() != 0 {
		t.Errorf("expected prevOut cleared after dither, got %v", a.DeduceResult())
	}
}

func TestLowPassConvergesTowardStep(t *testing.T) {
	a := NewLowPass(0.5, 0)
	var last float64
	for i := 0; i < 20; i++ {
		last = a.Result(10)
	}
	if math.Abs(last-5.0) > 0.01 {
		t.Errorf("low-pass should converge near beta*step = 5, got %v", last)
	}
}

func TestLowPass2DampsMoreThanLowPass(t *testing.T) {
	lp := NewLowPass(0.3, 0)
	lp2 := NewLowPass2(0.3, 0)
	var out1, out2 float64
	for i := 0; i < 3; i++ {
		out1 = lp.Result(10)
		out2 = lp2.Result(10)
	}
	if out2 >= out1 {
		t.Errorf("two-stage low-pass should lag the single-stage one: lp=%v lp2=%v", out1, out2)
	}
}

func TestResistSwitchResistsSingleFlip(t *testing.T) {
	a := NewResistSwitch(3, 0)
	a.Result(5) // latches positive
	if got := a.Result(-5); got != 0 {
		t.Errorf("single opposing frame should be resisted, got %v", got)
	}
}

func TestResistSwitchFlipsAfterAgreement(t *testing.T) {
	a := NewResistSwitch(2, 0)
	a.Result(5) // latches positive
	a.Result(-5)
	got := a.Result(-5)
	if got != -5 {
		t.Errorf("after required agreement the latch should flip, got %v", got)
	}
}

func TestFactoryConstructsByName(t *testing.T) {
	for _, name := range []string{"identity", "hysteresis", "low-pass", "low-pass-2", "resist-switch"} {
		if _, err := New(name, Params{MinMove: 0.1, Alpha: 0.2, Beta: 0.4, RequiredAgreement: 2}); err != nil {
			t.Errorf("New(%q) failed: %v", name, err)
		}
	}
}

func TestFactoryRejectsUnknownName(t *testing.T) {
	if _, err := New("nonexistent", Params{}); err == nil {
		t.Fatal("expected error for unknown algorithm name")
	}
}
