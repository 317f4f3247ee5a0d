// Package testsupport collects the synthetic-frame builder, fake
// clock, and fake hardware doubles that scenario tests need
// across packages, mirroring the teacher's own per-package
// test_helpers.go convention but exported since several unrelated
// packages (guider, controller) independently needed the same
// fixtures.
package testsupport

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/mount"
	"github.com/lodestar-guide/autoguide/internal/star"
)

// SyntheticFrame renders a Gaussian-PSF star at (starX, starY) over a
// flat background, the fixture every detector/guider/calibration
// test builds its frames from. The PSF shape comes from gonum's
// distuv.Normal rather than a hand-rolled exp.
func SyntheticFrame(w, h int, starX, starY, peak, sigma, background float64) *star.Image {
	psf := distuv.Normal{Mu: 0, Sigma: sigma}
	peakDensity := psf.Prob(0)
	pixels := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-starX, float64(y)-starY
			r := math.Sqrt(dx*dx + dy*dy)
			v := background + peak*psf.Prob(r)/peakDensity
			if v > 65535 {
				v = 65535
			}
			pixels[y*w+x] = uint16(v)
		}
	}
	return &star.Image{Pixels: pixels, Width: w, Height: h}
}

// FakeClock is an injectable time source for deterministic settle/
// timeout assertions, advanced explicitly by tests instead of
// sleeping.
type FakeClock struct {
	now time.Time
}

// NewFakeClock returns a FakeClock starting at t.
func NewFakeClock(t time.Time) *FakeClock { return &FakeClock{now: t} }

// Now returns the clock's current time, suitable for assigning
// directly to a `now func() time.Time` field.
func (c *FakeClock) Now() time.Time { return c.now }

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// FakePulseDriver is a no-op mount.PulseDriver: Connected reports
// connected, and Pulse records nothing. Suitable wherever a test needs
// a mount.Scope but doesn't care about actual hardware motion.
type FakePulseDriver struct {
	connected bool
}

// NewFakePulseDriver returns a FakePulseDriver reporting connected.
func NewFakePulseDriver() *FakePulseDriver { return &FakePulseDriver{connected: true} }

func (f *FakePulseDriver) Connected() bool { return f.connected }
func (f *FakePulseDriver) Pulse(dir mount.Direction, durationMs int) error { return nil }

// SetConnected overrides the connected state, for hardware-fault
// scenario tests.
func (f *FakePulseDriver) SetConnected(connected bool) { f.connected = connected }

// MovingPulseDriver is a mount.PulseDriver that tracks a simulated
// star position, moving it by a fixed per-millisecond vector on each
// axis's pulse, through a real mount.Scope rather than a hand-wired
// sweep. Reused wherever a full calibration or guide loop needs to
// see real simulated motion.
type MovingPulseDriver struct {
	Pos geom.Point
	PerMsWest geom.Point
	PerMsNorth geom.Point
}

func (m *MovingPulseDriver) Connected() bool { return true }

func (m *MovingPulseDriver) Pulse(dir mount.Direction, durationMs int) error {
	ms := float64(durationMs)
	switch dir {
	case mount.West:
		m.Pos = m.Pos.Add(m.PerMsWest.Scale(ms))
	case mount.East:
		m.Pos = m.Pos.Add(m.PerMsWest.Scale(-ms))
	case mount.North:
		m.Pos = m.Pos.Add(m.PerMsNorth.Scale(ms))
	case mount.South:
		m.Pos = m.Pos.Add(m.PerMsNorth.Scale(-ms))
	}
	return nil
}
