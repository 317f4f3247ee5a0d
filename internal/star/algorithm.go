package star

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// estimateBackground computes a robust background level and noise sigma
// from the pixels in the outer ring of win, excluding a central core the
// size of the centroid neighborhood so the star itself never biases the
// estimate, and is insensitive to occasional hot pixels.
func estimateBackground(img *Image, win rect) (bg, sigma float64) {
	coreHalf := neighborhoodHalf
	cx, cy := (win.x0+win.x1)/2, (win.y0+win.y1)/2

	var ring []float64
	for y := win.y0; y <= win.y1; y++ {
		for x := win.x0; x <= win.x1; x++ {
			if abs(x-cx) <= coreHalf && abs(y-cy) <= coreHalf {
				continue
			}
			ring = append(ring, float64(img.At(x, y)))
		}
	}
	if len(ring) == 0 {
		return 0, 0
	}

	sort.Float64s(ring)
	bg = median(ring)

	// MAD-based sigma, insensitive to the occasional hot pixel in the
	// ring.
	deviations := make([]float64, len(ring))
	for i, v := range ring {
		deviations[i] = math.Abs(v - bg)
	}
	sort.Float64s(deviations)
	mad := median(deviations)
	sigma = mad * 1.4826
	if sigma <= 0 {
		sigma = stat.StdDev(ring, nil)
	}
	return bg, sigma
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// findPeak locates the brightest pixel in win and reports whether it
// lies on the window's boundary.
func findPeak(img *Image, win rect) (px, py int, onBoundary bool) {
	var best uint16
	px, py = win.x0, win.y0
	for y := win.y0; y <= win.y1; y++ {
		for x := win.x0; x <= win.x1; x++ {
			v := img.At(x, y)
			if v > best {
				best = v
				px, py = x, y
			}
		}
	}
	onBoundary = px == win.x0 || px == win.x1 || py == win.y0 || py == win.y1
	return px, py, onBoundary
}

// centroid computes the intensity-weighted centroid and total
// background-subtracted mass over nb.
func centroid(img *Image, nb rect, bg float64) (cx, cy, mass float64) {
	var sumX, sumY, sum float64
	for y := nb.y0; y <= nb.y1; y++ {
		for x := nb.x0; x <= nb.x1; x++ {
			v := float64(img.At(x, y)) - bg
			if v < 0 {
				v = 0
			}
			sumX += v * float64(x)
			sumY += v * float64(y)
			sum += v
		}
	}
	if sum <= 0 {
		cx, cy = float64((nb.x0+nb.x1))/2, float64((nb.y0+nb.y1))/2
		return cx, cy, 0
	}
	return sumX / sum, sumY / sum, sum
}

// anySaturated reports whether any pixel in win meets or exceeds level.
func anySaturated(img *Image, win rect, level uint16) bool {
	for y := win.y0; y <= win.y1; y++ {
		for x := win.x0; x <= win.x1; x++ {
			if img.At(x, y) >= level {
				return true
			}
		}
	}
	return false
}

// halfFluxDiameter computes the mass-weighted mean radius (doubled),
// the standard half-flux-diameter approximation used by guiding
// software: HFD = 2 * sum(I_i * r_i) / sum(I_i), over background
// subtracted pixel values in nb.
func halfFluxDiameter(img *Image, nb rect, bg, cx, cy, mass float64) float64 {
	if mass <= 0 {
		return 0
	}
	var weighted float64
	for y := nb.y0; y <= nb.y1; y++ {
		for x := nb.x0; x <= nb.x1; x++ {
			v := float64(img.At(x, y)) - bg
			if v < 0 {
				continue
			}
			dx, dy := float64(x)-cx, float64(y)-cy
			r := math.Hypot(dx, dy)
			weighted += v * r
		}
	}
	return 2 * weighted / mass
}

// radialProfile bins background-subtracted intensity by integer radius
// from (cx, cy) and normalizes by the brightest bin, giving a coarse
// peak-normalized profile suitable for diagnostics.
func radialProfile(img *Image, nb rect, bg, cx, cy float64) []float64 {
	maxR := int(math.Ceil(math.Hypot(float64(nb.width()), float64(nb.height()))))
	sums := make([]float64, maxR+1)
	counts := make([]int, maxR+1)

	for y := nb.y0; y <= nb.y1; y++ {
		for x := nb.x0; x <= nb.x1; x++ {
			v := float64(img.At(x, y)) - bg
			if v < 0 {
				v = 0
			}
			r := int(math.Round(math.Hypot(float64(x)-cx, float64(y)-cy)))
			if r > maxR {
				r = maxR
			}
			sums[r] += v
			counts[r]++
		}
	}

	profile := make([]float64, len(sums))
	peak := 0.0
	for i := range sums {
		if counts[i] > 0 {
			profile[i] = sums[i] / float64(counts[i])
		}
		if profile[i] > peak {
			peak = profile[i]
		}
	}
	if peak > 0 {
		for i := range profile {
			profile[i] /= peak
		}
	}
	return profile
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
