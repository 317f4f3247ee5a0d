package star

import (
	"math"
	"testing"
)

// syntheticGaussianFrame renders a single Gaussian PSF star of the given
// peak amplitude and sigma onto a flat-background frame.
func syntheticGaussianFrame(w, h int, starX, starY, peak, sigma, background float64) *Image {
	pixels := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-starX, float64(y)-starY
			v := background + peak*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
			if v > 65535 {
				v = 65535
			}
			pixels[y*w+x] = uint16(v)
		}
	}
	return &Image{Pixels: pixels, Width: w, Height: h}
}

func TestFindLocatesGaussianStar(t *testing.T) {
	img := syntheticGaussianFrame(200, 200, 100.3, 80.7, 20000, 2.2, 500)

	p := DefaultParams()
	p.MinMass = 1000
	p.MinSNR = 3
	p.MinHFD = 0.5
	p.MaxHFD = 15

	s := Find(img, 100, 81, p)
	if s.Result != FindOK {
		t.Fatalf("Find result = %v, want ok", s.Result)
	}
	if math.Abs(s.Position.X-100.3) > 0.3 {
		t.Errorf("centroid x = %v, want ~100.3", s.Position.X)
	}
	if math.Abs(s.Position.Y-80.7) > 0.3 {
		t.Errorf("centroid y = %v, want ~80.7", s.Position.Y)
	}
}

// TestFindIsIdempotent checks that re-running Find at the
// already-converged centroid reproduces the same position.
func TestFindIsIdempotent(t *testing.T) {
	img := syntheticGaussianFrame(200, 200, 100.3, 80.7, 20000, 2.2, 500)
	p := DefaultParams()
	p.MinMass = 1000
	p.MinSNR = 3
	p.MinHFD = 0.5
	p.MaxHFD = 15

	first := Find(img, 100, 81, p)
	if first.Result != FindOK {
		t.Fatalf("first find result = %v", first.Result)
	}
	second := Find(img, int(math.Round(first.Position.X)), int(math.Round(first.Position.Y)), p)
	if second.Result != FindOK {
		t.Fatalf("second find result = %v", second.Result)
	}
	if math.Abs(first.Position.X-second.Position.X) > 1e-9 {
		t.Errorf("x not idempotent: %v vs %v", first.Position.X, second.Position.X)
	}
	if math.Abs(first.Position.Y-second.Position.Y) > 1e-9 {
		t.Errorf("y not idempotent: %v vs %v", first.Position.Y, second.Position.Y)
	}
}

func TestFindDetectsSaturation(t *testing.T) {
	img := syntheticGaussianFrame(100, 100, 50, 50, 70000, 2.0, 500)
	p := DefaultParams()
	s := Find(img, 50, 50, p)
	if s.Result != FindSaturated {
		t.Fatalf("result = %v, want saturated", s.Result)
	}
}

func TestFindRejectsTooNearEdge(t *testing.T) {
	img := syntheticGaussianFrame(100, 100, 3, 3, 20000, 2.0, 500)
	p := DefaultParams()
	p.SearchRegionHalf = 15
	s := Find(img, 3, 3, p)
	if s.Result != FindTooNearEdge {
		t.Fatalf("result = %v, want too-near-edge", s.Result)
	}
}

func TestFindRejectsLowMass(t *testing.T) {
	img := syntheticGaussianFrame(100, 100, 50, 50, 600, 1.5, 500)
	p := DefaultParams()
	p.MinMass = 50000
	p.MinSNR = 0
	s := Find(img, 50, 50, p)
	if s.Result != FindLowMass {
		t.Fatalf("result = %v, want low-mass", s.Result)
	}
}

func TestAutoFindPicksBrightestAsSeed(t *testing.T) {
	img := syntheticGaussianFrame(300, 300, 150, 150, 30000, 2.0, 500)
	// Overlay a second, dimmer star far from the first.
	dim := syntheticGaussianFrame(300, 300, 60, 220, 8000, 2.0, 0)
	for i := range img.Pixels {
		v := int(img.Pixels[i]) + int(dim.Pixels[i])
		if v > 65535 {
			v = 65535
		}
		img.Pixels[i] = uint16(v)
	}

	p := DefaultAutoFindParams()
	p.Detect.MinMass = 500
	p.Detect.MinSNR = 3
	p.Detect.MinHFD = 0.3
	p.Detect.MaxHFD = 15

	seed, secondaries := AutoFind(img, p)
	if seed.Result != FindOK {
		t.Fatalf("seed result = %v, want ok", seed.Result)
	}
	if math.Abs(seed.Position.X-150) > 1.5 || math.Abs(seed.Position.Y-150) > 1.5 {
		t.Errorf("seed position = (%v, %v), want near (150, 150)", seed.Position.X, seed.Position.Y)
	}
	for _, sec := range secondaries {
		if sec.SNR > seed.SNR {
			t.Errorf("secondary SNR %v exceeds seed SNR %v", sec.SNR, seed.SNR)
		}
	}
}

func TestAutoFindRejectsNearEdge(t *testing.T) {
	img := syntheticGaussianFrame(150, 150, 5, 5, 30000, 2.0, 500)
	p := DefaultAutoFindParams()
	seed, _ := AutoFind(img, p)
	if seed.Result == FindOK {
		t.Fatal("star within edge_allowance should not be selected as seed")
	}
}
