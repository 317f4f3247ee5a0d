package qualitygate

import (
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMassCheckerNeedsFiveSamples(t *testing.T) {
	mc := NewMassChecker()
	clk := &fakeClock{t: time.Now()}
	mc.now = clk.now

	for i := 0; i < 4; i++ {
		mc.AppendData(10000)
	}
	reject, _ := mc.CheckMass(10000, 0.5)
	if reject {
		t.Fatal("should never reject with fewer than 5 samples")
	}
}

func TestMassCheckerRejectsBigDrop(t *testing.T) {
	mc := NewMassChecker()
	clk := &fakeClock{t: time.Now()}
	mc.now = clk.now

	for i := 0; i < 30; i++ {
		mc.AppendData(10000)
		clk.advance(time.Second)
	}

	reject, limits := mc.CheckMass(3000, 0.5)
	if !reject {
		t.Fatalf("expected rejection for mass=3000 against median~%v", limits.Median)
	}
}

func TestMassCheckerAcceptsStableMass(t *testing.T) {
	mc := NewMassChecker()
	clk := &fakeClock{t: time.Now()}
	mc.now = clk.now

	for i := 0; i < 30; i++ {
		mc.AppendData(10000)
		clk.advance(time.Second)
	}

	reject, _ := mc.CheckMass(10200, 0.5)
	if reject {
		t.Fatal("small fluctuation around the median should not reject")
	}
}

func TestMassCheckerLowWatermarkRisesTowardMedian(t *testing.T) {
	mc := NewMassChecker()
	clk := &fakeClock{t: time.Now()}
	mc.now = clk.now

	// Depress mass for a while (simulating cloud), then recover.
	for i := 0; i < 10; i++ {
		mc.AppendData(4000)
		clk.advance(time.Second)
	}
	_, lowAfterDip := mc.CheckMass(4000, 0.5)

	for i := 0; i < 40; i++ {
		mc.AppendData(10000)
		clk.advance(time.Second)
	}
	_, lowAfterRecovery := mc.CheckMass(10000, 0.5)

	if lowAfterRecovery.LowWatermark <= lowAfterDip.LowWatermark {
		t.Fatalf("low watermark should drift upward after recovery: before=%v after=%v",
			lowAfterDip.LowWatermark, lowAfterRecovery.LowWatermark)
	}
}

func TestMassCheckerExposureChangeResets(t *testing.T) {
	mc := NewMassChecker()
	for i := 0; i < 10; i++ {
		mc.AppendData(10000)
	}
	mc.SetExposure(2*time.Second, true) // entering auto-exposure resets
	if len(mc.samples) != 0 {
		t.Fatal("entering auto-exposure should reset sample history")
	}
}
