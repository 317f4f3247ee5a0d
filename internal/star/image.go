// Package star implements the guide-star detector: sub-pixel
// centroiding of a single star given a seed pixel (Find), and
// full-frame guide-star candidate selection (AutoFind).
package star

// Image is a 16-bit monochrome frame. It borrows the pixel slice for the
// duration of a detection pass; callers own the backing array.
type Image struct {
	Pixels []uint16
	Width int
	Height int
}

// At returns the pixel value at (x, y). Callers must keep x, y in bounds;
// this package only ever indexes coordinates it has already clipped to
// the image rectangle.
func (img *Image) At(x, y int) uint16 {
	return img.Pixels[y*img.Width+x]
}

// InBounds reports whether (x, y) lies inside the image.
func (img *Image) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < img.Width && y < img.Height
}

// rect is an inclusive pixel rectangle, clipped to an Image.
type rect struct {
	x0, y0, x1, y1 int
}

func (r rect) width() int { return r.x1 - r.x0 + 1 }
func (r rect) height() int { return r.y1 - r.y0 + 1 }

// clipWindow returns the search window of half-width half around
// (seedX, seedY), clipped to the image bounds.
func clipWindow(img *Image, seedX, seedY, half int) rect {
	r := rect{x0: seedX - half, y0: seedY - half, x1: seedX + half, y1: seedY + half}
	if r.x0 < 0 {
		r.x0 = 0
	}
	if r.y0 < 0 {
		r.y0 = 0
	}
	if r.x1 > img.Width-1 {
		r.x1 = img.Width - 1
	}
	if r.y1 > img.Height-1 {
		r.y1 = img.Height - 1
	}
	return r
}

// minWindowSpan is the minimum width/height a clipped search window may
// have before the seed is considered too close to the frame edge:
// roughly 1 + half_region on each side.
func minWindowSpan(half int) int {
	return half + 1
}
