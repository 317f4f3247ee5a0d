package qualitygate

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// DistanceState is the distance gate's internal state,
type DistanceState int

const (
	StateGuiding DistanceState = iota
	StateWaiting
	StateRecovering
)

func (s DistanceState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRecovering:
		return "recovering"
	default:
		return "guiding"
	}
}

// minFramesForStats is how many accepted frames must accumulate before
// the gate trusts its own running average.
const minFramesForStats = 10

// waitInterval is the gate's time to wait for the star to come back
// before switching into recovering; empirically chosen.
const waitInterval = 5 * time.Second

// DistanceGate implements the frame-to-frame distance gate: three
// states (guiding/waiting/recovering), a forced-tolerance override
// while waiting, and a wall-clock timeout that promotes waiting to
// recovering so a genuine large excursion doesn't permanently stall
// guiding.
type DistanceGate struct {
	state DistanceState
	expires time.Time
	forceTolerance float64

	history []float64 // recent accepted distances, most recent last

	now func() time.Time
}

// NewDistanceGate creates a gate in the guiding state.
func NewDistanceGate() *DistanceGate {
	return &DistanceGate{now: time.Now}
}

// State returns the gate's current state.
func (g *DistanceGate) State() DistanceState { return g.state }

// Reset returns the gate to the guiding state and clears history.
// Called on dither, pause, and calibration events.
func (g *DistanceGate) Reset() {
	g.state = StateGuiding
	g.forceTolerance = 0
	g.history = nil
}

// runningAverage returns the running-average distance over recent
// history, using gonum/stat for the mean.
func (g *DistanceGate) runningAverage() float64 {
	if len(g.history) == 0 {
		return 0
	}
	return stat.Mean(g.history, nil)
}

// smallOffset reports whether distance is within tolerance*avgDistance,
// given at least minFramesForStats accepted frames of history.
func (g *DistanceGate) smallOffset(distance, tolerance float64) bool {
	if len(g.history) < minFramesForStats {
		return true
	}
	avg := g.runningAverage()
	threshold := tolerance * avg
	return distance <= threshold
}

// CheckDistance reports whether a frame with the given offset distance
// should be accepted. tolerance is the configured
// tolerate-jumps-threshold (a multiple of the running average distance).
// Accepted distances should be fed back via RecordAccepted.
func (g *DistanceGate) CheckDistance(distance, tolerance float64) bool {
	effectiveTolerance := tolerance
	if g.forceTolerance != 0 {
		effectiveTolerance = g.forceTolerance
	}

	small := g.smallOffset(distance, effectiveTolerance)

	switch g.state {
	case StateWaiting:
		if small {
			g.state = StateGuiding
			g.forceTolerance = 0
			return true
		}
		if g.now().Before(g.expires) {
			return false
		}
		g.state = StateRecovering
		return true

	case StateRecovering:
		if small {
			g.state = StateGuiding
		}
		return true

	default: // StateGuiding
		if small {
			return true
		}
		g.state = StateWaiting
		g.expires = g.now().Add(waitInterval)
		g.forceTolerance = 2.0
		return false
	}
}

// RecordAccepted adds an accepted frame's distance to the running
// history used by future CheckDistance calls, capping the window so
// history does not grow unbounded over a long guiding session.
func (g *DistanceGate) RecordAccepted(distance float64) {
	const maxHistory = 100
	g.history = append(g.history, distance)
	if len(g.history) > maxHistory {
		g.history = g.history[len(g.history)-maxHistory:]
	}
}
