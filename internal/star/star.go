package star

import (
	"math"

	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/guidererr"
)

// FindResult is the detector's outcome category for a frame. A Star
// whose Result is not FindOK has undefined Position.
type FindResult int

const (
	FindOK FindResult = iota
	FindSaturated
	FindLowSNR
	FindLowMass
	FindLowHFD
	FindHighHFD
	FindTooNearEdge
	FindMassChanged
	FindHotPixel
	FindError
)

func (r FindResult) String() string {
	switch r {
	case FindOK:
		return "ok"
	case FindSaturated:
		return "saturated"
	case FindLowSNR:
		return "low-snr"
	case FindLowMass:
		return "low-mass"
	case FindLowHFD:
		return "low-hfd"
	case FindHighHFD:
		return "high-hfd"
	case FindTooNearEdge:
		return "too-near-edge"
	case FindMassChanged:
		return "mass-changed"
	case FindHotPixel:
		return "hot-pixel"
	default:
		return "error"
	}
}

// ToError maps a non-OK FindResult to a guidererr sentinel, for callers
// that want to classify the failure via guidererr.Classify.
func (r FindResult) ToError() error {
	switch r {
	case FindOK:
		return nil
	case FindSaturated:
		return guidererr.ErrSaturated
	case FindLowSNR:
		return guidererr.ErrLowSNR
	case FindLowMass:
		return guidererr.ErrLowMass
	case FindLowHFD:
		return guidererr.ErrLowHFD
	case FindHighHFD:
		return guidererr.ErrHighHFD
	case FindTooNearEdge:
		return guidererr.ErrTooNearEdge
	case FindHotPixel:
		return guidererr.ErrHotPixel
	case FindMassChanged:
		return guidererr.ErrMassRejected
	default:
		return guidererr.ErrStarNotFound
	}
}

// Star is one detector result.
type Star struct {
	Position Point
	Mass float64
	SNR float64
	HFD float64
	Saturated bool
	Result FindResult

	// Profile is an optional peak-normalized radial intensity profile,
	// populated only when Params.WithProfile is set. Never built on the
	// per-frame hot path unless asked for.
	Profile []float64
}

// Point is a thin alias so callers in this package read naturally;
// identical to geom.Point.
type Point = geom.Point

// Params bundles Find's tuning inputs.
type Params struct {
	SearchRegionHalf int
	MinHFD float64
	MaxHFD float64
	SaturationLevel uint16
	MinMass float64
	MinSNR float64
	WithProfile bool
}

// DefaultParams returns the commonly-used detector tuning. Runtime
// defaults live in config; this is the library-level fallback used by
// tests and tools that construct a detector directly.
func DefaultParams() Params {
	return Params{
		SearchRegionHalf: 15,
		MinHFD: 1.5,
		MaxHFD: 10.0,
		SaturationLevel: 65535,
		MinMass: 100,
		MinSNR: 6.0,
	}
}

// neighborhoodHalf is the half-width of the centroid/mass/HFD
// neighborhood around the peak pixel: typically a 9x9 region.
const neighborhoodHalf = 4

// hotPixelEpsilon is the tolerance for the step 7 "exact integer
// centroid" rejection.
const hotPixelEpsilon = 1e-6

// Find locates and sub-pixel centroids a star near (seedX, seedY),
// classifying the result in order: saturated, then low-snr, then
// low-mass, then low/high-hfd, then ok.
func Find(img *Image, seedX, seedY int, p Params) Star {
	win := clipWindow(img, seedX, seedY, p.SearchRegionHalf)
	if win.width() < minWindowSpan(p.SearchRegionHalf) || win.height() < minWindowSpan(p.SearchRegionHalf) {
		return Star{Result: FindTooNearEdge}
	}

	bg, sigmaBg := estimateBackground(img, win)

	peakX, peakY, onBoundary := findPeak(img, win)
	if onBoundary {
		// Retry once with a window re-centered on the peak.
		win2 := clipWindow(img, peakX, peakY, p.SearchRegionHalf)
		if win2.width() < minWindowSpan(p.SearchRegionHalf) || win2.height() < minWindowSpan(p.SearchRegionHalf) {
			return Star{Result: FindTooNearEdge}
		}
		bg, sigmaBg = estimateBackground(img, win2)
		peakX, peakY, onBoundary = findPeak(img, win2)
		if onBoundary {
			return Star{Result: FindTooNearEdge}
		}
		win = win2
	}

	nb := rect{
		x0: maxInt(win.x0, peakX-neighborhoodHalf),
		y0: maxInt(win.y0, peakY-neighborhoodHalf),
		x1: minInt(win.x1, peakX+neighborhoodHalf),
		y1: minInt(win.y1, peakY+neighborhoodHalf),
	}

	cx, cy, mass := centroid(img, nb, bg)

	saturated := anySaturated(img, win, p.SaturationLevel)

	npix := nb.width() * nb.height()
	snr := 0.0
	if sigmaBg > 0 && npix > 0 {
		snr = mass / (sigmaBg * math.Sqrt(float64(npix)))
	}

	hfd := halfFluxDiameter(img, nb, bg, cx, cy, mass)

	var profile []float64
	if p.WithProfile {
		profile = radialProfile(img, nb, bg, cx, cy)
	}

	result := classify(saturated, snr, mass, hfd, p)
	if result == FindOK && isHotPixel(cx, cy) {
		result = FindHotPixel
	}

	s := Star{
		Mass: mass,
		SNR: snr,
		HFD: hfd,
		Saturated: saturated,
		Result: result,
		Profile: profile,
	}
	if result == FindOK {
		s.Position = geom.New(cx, cy)
	}
	return s
}

func classify(saturated bool, snr, mass, hfd float64, p Params) FindResult {
	switch {
	case saturated:
		return FindSaturated
	case snr < p.MinSNR:
		return FindLowSNR
	case mass < p.MinMass:
		return FindLowMass
	case hfd < p.MinHFD:
		return FindLowHFD
	case hfd > p.MaxHFD:
		return FindHighHFD
	default:
		return FindOK
	}
}

func isHotPixel(x, y float64) bool {
	return math.Abs(x-math.Round(x)) < hotPixelEpsilon && math.Abs(y-math.Round(y)) < hotPixelEpsilon
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
