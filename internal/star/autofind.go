package star

import (
	"math"
	"sort"
)

// AutoFindParams bundles AutoFind's tuning inputs.
type AutoFindParams struct {
	Detect Params
	EdgeAllowance int
	SearchRegion int
	MaxCandidates int
	DownsampleStep int // pixel stride used to score the convolution; 1 scores every pixel
}

// DefaultAutoFindParams mirrors DefaultParams' fallback role for
// full-frame candidate search.
func DefaultAutoFindParams() AutoFindParams {
	return AutoFindParams{
		Detect: DefaultParams(),
		EdgeAllowance: 40,
		SearchRegion: 15,
		MaxCandidates: 4,
		DownsampleStep: 2,
	}
}

// candidate is an interior scoring result before the find/reject pass.
type candidate struct {
	x, y int
	score float64
}

// AutoFind scores the whole frame for star-shaped peaks, rejects
// candidates too close to the border or to a brighter neighbor, runs
// Find on each survivor, and returns the brightest as the seed plus up
// to MaxCandidates-1 secondaries sorted by SNR descending.
func AutoFind(img *Image, p AutoFindParams) (seed Star, secondaries []Star) {
	step := p.DownsampleStep
	if step < 1 {
		step = 1
	}

	raw := scorePSF(img, step)

	// Edge rejection.
	var cands []candidate
	for _, c := range raw {
		if c.x < p.EdgeAllowance || c.y < p.EdgeAllowance ||
			c.x >= img.Width-p.EdgeAllowance || c.y >= img.Height-p.EdgeAllowance {
			continue
		}
		cands = append(cands, c)
	}

	sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	minSeparation := float64(p.SearchRegion)*math.Sqrt2 + 2

	var kept []candidate
	for _, c := range cands {
		tooClose := false
		for _, k := range kept {
			dx, dy := float64(c.x-k.x), float64(c.y-k.y)
			if math.Hypot(dx, dy) < minSeparation {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, c)
		}
	}

	var found []Star
	for _, c := range kept {
		s := Find(img, c.x, c.y, p.Detect)
		switch s.Result {
		case FindSaturated, FindLowSNR, FindHotPixel:
			continue
		}
		found = append(found, s)
		if len(found) >= p.MaxCandidates*3 {
			// Bound the Find cost once we have plenty of candidates
			// to choose from; the corresponding scoring pass already
			// sorted by brightness so earlier entries are the best.
			break
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].SNR > found[j].SNR })

	if len(found) == 0 {
		return Star{Result: FindError}, nil
	}

	seed = found[0]
	max := p.MaxCandidates - 1
	if max < 0 {
		max = 0
	}
	if len(found)-1 < max {
		max = len(found) - 1
	}
	secondaries = append(secondaries, found[1:1+max]...)
	return seed, secondaries
}

// psfKernelHalf is the half-width of the Gaussian PSF template used to
// score candidate star locations.
const psfKernelHalf = 3

// psfSigma is the assumed PSF width (pixels) used to build the scoring
// template; it need only roughly match real stars since the scoring
// pass is a coarse pre-filter, not the final centroider.
const psfSigma = 1.2

// scorePSF convolves a small Gaussian template against the image on a
// step-pixel grid, returning one candidate per local maximum above the
// image's robust background.
func scorePSF(img *Image, step int) []candidate {
	scores := make(map[[2]int]float64)
	var order [][2]int

	for y := psfKernelHalf; y < img.Height-psfKernelHalf; y += step {
		for x := psfKernelHalf; x < img.Width-psfKernelHalf; x += step {
			score := convolveAt(img, x, y)
			scores[[2]int{x, y}] = score
			order = append(order, [2]int{x, y})
		}
	}

	var out []candidate
	for _, p := range order {
		v := scores[p]
		isLocalMax := true
		for dy := -step; dy <= step && isLocalMax; dy += step {
			for dx := -step; dx <= step; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if nv, ok := scores[[2]int{p[0] + dx, p[1] + dy}]; ok && nv > v {
					isLocalMax = false
					break
				}
			}
		}
		if isLocalMax && v > 0 {
			out = append(out, candidate{x: p[0], y: p[1], score: v})
		}
	}
	return out
}

func convolveAt(img *Image, cx, cy int) float64 {
	var sum, weight float64
	for dy := -psfKernelHalf; dy <= psfKernelHalf; dy++ {
		for dx := -psfKernelHalf; dx <= psfKernelHalf; dx++ {
			x, y := cx+dx, cy+dy
			if !img.InBounds(x, y) {
				continue
			}
			g := gaussian2D(float64(dx), float64(dy), psfSigma)
			sum += g * float64(img.At(x, y))
			weight += g
		}
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func gaussian2D(dx, dy, sigma float64) float64 {
	return math.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
}
