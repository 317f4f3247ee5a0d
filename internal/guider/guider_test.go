package guider

import (
	"math"
	"testing"
	"time"

	"github.com/lodestar-guide/autoguide/internal/config"
	"github.com/lodestar-guide/autoguide/internal/eventbus"
	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/mount"
	"github.com/lodestar-guide/autoguide/internal/testsupport"
)

func newTestGuider(t *testing.T, cfg *config.TuningConfig) (*Guider, *mount.Scope, *[]eventbus.Event) {
	t.Helper()
	events := &[]eventbus.Event{}
	m := mount.NewScope(testsupport.NewFakePulseDriver(), 0, math.Pi/3)
	m.SetCalibration(geom.Calibration{XAngle: 0, YAngle: math.Pi / 2, XRate: 0.01, YRate: 0.01, Valid: true})
	g := New(cfg, m, nil, func(e eventbus.Event) { *events = append(*events, e) })
	return g, m, events
}

// TestMassRejectionEmitsStarLost checks that a frame whose mass has
// collapsed well below the running median is rejected by the mass
// checker and reported as StarLost rather than fed to the mount.
func TestMassRejectionEmitsStarLost(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	g, _, events := newTestGuider(t, cfg)

	_ = g.StartLooping()
	_ = g.SelectStar(geom.New(100, 100))
	_ = g.StartGuiding()

	// Feed several stable-mass frames so the running median is trusted.
	for i := 0; i < 6; i++ {
		img := testsupport.SyntheticFrame(200, 200, 100, 100, 20000, 2.2, 500)
		g.ProcessFrame(img, 100*time.Millisecond)
	}

	// A much dimmer star should trip the mass change threshold.
	dim := testsupport.SyntheticFrame(200, 200, 100, 100, 2000, 2.2, 500)
	info := g.ProcessFrame(dim, 100*time.Millisecond)

	if info.Err == nil {
		t.Fatalf("expected the dim frame to be rejected by the mass checker")
	}
	last := (*events)[len(*events)-1]
	if _, ok := last.(eventbus.StarLost); !ok {
		t.Fatalf("expected a StarLost event for the rejected frame, got %T", last)
	}
}

// TestDitherSettleConverges checks that after a dither, feeding frames
// whose offset decays exponentially toward zero (time constant ~2s)
// eventually reports a successful settle.
func TestDitherSettleConverges(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	g, _, _ := newTestGuider(t, cfg)

	_ = g.StartLooping()
	_ = g.SelectStar(geom.New(100, 100))
	_ = g.StartGuiding()

	tick := time.Now()
	g.now = func() time.Time { return tick }
	g.Dither(5.0, false, SettleParams{TolerancePx: 1.5, SettleTime: 2 * time.Second, Timeout: 30 * time.Second})

	settled := false
	initial := 6.0
	for i := 0; i < 60; i++ {
		tick = tick.Add(200 * time.Millisecond)
		dist := initial * math.Exp(-float64(i)*0.2/2.0)
		done, ok := g.SettleStatus(dist)
		if done {
			settled = ok
			break
		}
	}
	if !settled {
		t.Fatal("expected the dither settle wait to converge before its timeout")
	}
}

func TestDitherSettleTimesOut(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	g, _, _ := newTestGuider(t, cfg)

	tick := time.Now()
	g.now = func() time.Time { return tick }
	g.Dither(5.0, false, SettleParams{TolerancePx: 0.1, SettleTime: 2 * time.Second, Timeout: 1 * time.Second})

	tick = tick.Add(2 * time.Second)
	done, ok := g.SettleStatus(10.0)
	if !done || ok {
		t.Fatalf("done=%v ok=%v, want a timed-out settle", done, ok)
	}
}

func TestStateMachineRejectsIllegalTransition(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	g, _, _ := newTestGuider(t, cfg)

	if err := g.StartGuiding(); err == nil {
		t.Fatal("expected StartGuiding to fail before a star is selected")
	}
}
