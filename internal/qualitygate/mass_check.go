// Package qualitygate implements the frame-to-frame quality gates: a
// running-median mass tracker and a frame-to-frame distance gate, plus
// the exposure-aware mass normalizer that couples them to
// auto-exposure changes.
package qualitygate

import (
	"math"
	"sort"
	"time"
)

// defaultNominalWindow is the nominal mass-check window: a sliding
// window over roughly 45s (double the nominal 22.5s window).
// MassChecker stores TimeWindow = 2 * nominal so the running median lags
// abrupt changes by about half the effective window.
const defaultNominalWindow = 22500 * time.Millisecond

type massSample struct {
	at time.Time
	mass float64 // already exposure-adjusted
}

// MassLimits are the four comparison thresholds CheckMass computed for a
// given call, exposed so callers can log or display them.
type MassLimits struct {
	LowWatermark float64
	Median float64
	HighWatermark float64
	SpikeLimit float64 // median * (1 + 2*threshold)
}

// MassChecker tracks a sliding window of exposure-adjusted mass samples
// and flags frames whose mass has moved too far from the recent
// running median, using a drifting low watermark, a doubled window,
// and a four-limit rejection test.
type MassChecker struct {
	samples []massSample

	timeWindow time.Duration
	highMass float64
	lowMass float64

	exposure time.Duration
	isAutoExposure bool

	now func() time.Time
}

// NewMassChecker creates a MassChecker with the default ~45s window.
func NewMassChecker() *MassChecker {
	mc := &MassChecker{
		lowMass: math.MaxFloat64,
		now: time.Now,
	}
	mc.SetTimeWindow(defaultNominalWindow)
	return mc
}

// SetTimeWindow sets the nominal window; the effective stored window is
// always double the nominal.
func (m *MassChecker) SetTimeWindow(nominal time.Duration) {
	m.timeWindow = 2 * nominal
}

// SetExposure notifies the checker of the camera's current exposure
// duration. Switching into or out of auto-exposure mode resets the
// window; a changed exposure while already in auto-exposure mode does
// not reset, since AdjustedMass normalizes for it.
func (m *MassChecker) SetExposure(exposure time.Duration, isAutoExposure bool) {
	if isAutoExposure != m.isAutoExposure {
		m.isAutoExposure = isAutoExposure
		m.exposure = exposure
		m.Reset()
		return
	}
	if exposure != m.exposure {
		m.exposure = exposure
		if !m.isAutoExposure {
			m.Reset()
		}
	}
}

// AdjustedMass normalizes mass by exposure when in auto-exposure mode, so
// an exposure change does not read as a mass-change rejection.
func (m *MassChecker) AdjustedMass(mass float64) float64 {
	if m.isAutoExposure && m.exposure > 0 {
		return mass / m.exposure.Seconds()
	}
	return mass
}

// AppendData records a new mass sample, evicting anything older than the
// current window.
func (m *MassChecker) AppendData(mass float64) {
	now := m.now()
	oldest := now.Add(-m.timeWindow)

	i := 0
	for i < len(m.samples) && m.samples[i].at.Before(oldest) {
		i++
	}
	if i > 0 {
		m.samples = m.samples[i:]
	}

	m.samples = append(m.samples, massSample{at: now, mass: m.AdjustedMass(mass)})
}

// CheckMass reports whether mass should be rejected, along with the
// limits used for the decision. threshold is the configured
// mass-change-threshold fraction (e.g. 0.5 for "50%"). Fewer than 5
// samples in the window is treated as "not enough history yet" and never
// rejects, matching the original's early return.
func (m *MassChecker) CheckMass(mass, threshold float64) (reject bool, limits MassLimits) {
	if len(m.samples) < 5 {
		return false, MassLimits{}
	}

	vals := make([]float64, len(m.samples))
	for i, s := range m.samples {
		vals[i] = s.mass
	}
	sort.Float64s(vals)
	median := vals[len(vals)/2]

	if median > m.highMass {
		m.highMass = median
	}
	if median < m.lowMass {
		m.lowMass = median
	}
	// Let the low watermark drift up toward the median (5%-per-sample EMA)
	// so a transient cloud event does not permanently depress it.
	m.lowMass += 0.05 * (median - m.lowMass)

	limits.LowWatermark = m.lowMass * (1 - threshold)
	limits.Median = median
	limits.HighWatermark = m.highMass * (1 + threshold)
	limits.SpikeLimit = median * (1 + 2*threshold)

	adjusted := m.AdjustedMass(mass)
	reject = adjusted < limits.LowWatermark || adjusted > limits.HighWatermark || adjusted > limits.SpikeLimit

	if reject && m.isAutoExposure {
		// Convert the limits back to raw mass units for logging.
		sec := m.exposure.Seconds()
		limits.LowWatermark *= sec
		limits.Median *= sec
		limits.HighWatermark *= sec
		limits.SpikeLimit *= sec
	}

	return reject, limits
}

// Reset clears all history and watermarks.
func (m *MassChecker) Reset() {
	m.samples = nil
	m.highMass = 0
	m.lowMass = math.MaxFloat64
}
