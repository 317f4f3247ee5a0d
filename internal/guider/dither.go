package guider

import (
	"math"
	"time"

	"github.com/lodestar-guide/autoguide/internal/eventbus"
	"github.com/lodestar-guide/autoguide/internal/geom"
)

// settleTracker accumulates how long the guiding error has stayed
// below tolerance, for a dither's settle_time/timeout wait.
type settleTracker struct {
	params SettleParams
	belowSince time.Time
	haveBelow bool
	startedAt time.Time
	lastDistance float64
}

// Dither moves the lock position by a uniformly random 2-D vector
// within amplitudePx. If raOnly is set, only the X (RA) axis is
// perturbed. It arms the fast-recenter bypass and notifies the
// configured algorithms, but does not itself block for settle; call
// SettleStatus each frame to drive the wait.
func (g *Guider) Dither(amplitudePx float64, raOnly bool, settle SettleParams) {
	angle := g.rng.Float64() * 2 * math.Pi
	radius := g.rng.Float64() * amplitudePx
	dx, dy := radius*math.Cos(angle), radius*math.Sin(angle)
	if raOnly {
		dy = 0
	}

	g.lockPosition = g.lockPosition.Add(geom.New(dx, dy))
	g.fast.framesRemaining = ditherFastRecenterFrames

	if g.m != nil {
		g.m.GuidingDithered(amplitudePx)
	}
	if g.co != nil {
		g.co.Reset()
	}
	g.markLockPositionChanged()

	g.ditherSettle = &settleTracker{params: settle, startedAt: g.now()}
	g.emit(eventbus.GuidingDithered{DX: dx, DY: dy})
}

// SettleStatus reports the dither settle progress for the most recent
// camera-plane offset, emitting Settling/SettleDone as appropriate.
// done is true once the wait is over, either because the star
// remained within tolerance for the full settle time or because the
// timeout elapsed; ok distinguishes the two outcomes.
func (g *Guider) SettleStatus(currentOffsetMagnitude float64) (done, ok bool) {
	t := g.ditherSettle
	if t == nil {
		return true, true
	}
	now := g.now()
	elapsed := now.Sub(t.startedAt)

	if currentOffsetMagnitude <= t.params.TolerancePx {
		if !t.haveBelow {
			t.haveBelow = true
			t.belowSince = now
		}
		if now.Sub(t.belowSince) >= t.params.SettleTime {
			g.emit(eventbus.SettleDone{Status: "ok"})
			g.ditherSettle = nil
			if g.m != nil {
				g.m.GuidingDitherSettleDone(true)
			}
			return true, true
		}
	} else {
		t.haveBelow = false
	}

	if elapsed >= t.params.Timeout {
		g.emit(eventbus.SettleDone{Status: "timeout"})
		g.ditherSettle = nil
		if g.m != nil {
			g.m.GuidingDitherSettleDone(false)
		}
		return true, false
	}

	g.emit(eventbus.Settling{
		Distance: currentOffsetMagnitude,
		Elapsed: elapsed.Seconds(),
		SettleTime: t.params.SettleTime.Seconds(),
	})
	return false, false
}
