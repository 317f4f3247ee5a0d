// Package geom provides the 2-D point and angle primitives shared by the
// star detector, the mount coordinate transform, and the guider state
// machine. It has no dependency on anything else in the module.
package geom

import "math"

// Point is a 2-D coordinate in either camera or mount space. The zero
// value is invalid: callers must go through New or SetXY to get a usable
// Point, matching the "undefined until measured" nature of a star
// position that hasn't been found yet.
type Point struct {
	X, Y float64
	valid bool
}

// New returns a valid Point at (x, y).
func New(x, y float64) Point {
	return Point{X: x, Y: y, valid: true}
}

// Invalid returns an explicitly invalid Point.
func Invalid() Point {
	return Point{}
}

// Valid reports whether the point carries a meaningful position.
func (p Point) Valid() bool {
	return p.valid
}

// SetXY returns a valid point at the given coordinates. Used as `p =
// p.SetXY(x, y)` in places that mutate a stored Point field.
func (p Point) SetXY(x, y float64) Point {
	return Point{X: x, Y: y, valid: true}
}

// dX/dY/Distance/Angle/arithmetic on an invalid point always yield an
// invalid result, propagating instead of panicking: the guider treats
// an invalid offset as "skip this frame", not a fatal error.

func (p Point) DX(o Point) (float64, bool) {
	if !p.valid || !o.valid {
		return 0, false
	}
	return p.X - o.X, true
}

func (p Point) DY(o Point) (float64, bool) {
	if !p.valid || !o.valid {
		return 0, false
	}
	return p.Y - o.Y, true
}

// Distance returns the Euclidean distance between p and o. The second
// return value is false (and the distance meaningless) if either point
// is invalid.
func (p Point) Distance(o Point) (float64, bool) {
	dx, ok := p.DX(o)
	if !ok {
		return 0, false
	}
	dy, _ := p.DY(o)
	return math.Hypot(dx, dy), true
}

// DistanceFromOrigin returns p's distance from (0,0).
func (p Point) DistanceFromOrigin() (float64, bool) {
	return p.Distance(New(0, 0))
}

// Angle returns atan2(p.Y-o.Y, p.X-o.X) in radians, or false if either
// point is invalid. A point coincident with o has angle 0 rather than
// an undefined atan2(0,0), matching PHD_Point::Angle's explicit check.
func (p Point) Angle(o Point) (float64, bool) {
	dx, ok := p.DX(o)
	if !ok {
		return 0, false
	}
	dy, _ := p.DY(o)
	if dx == 0 && dy == 0 {
		return 0, true
	}
	return math.Atan2(dy, dx), true
}

// Add returns p+o, invalid if either operand is invalid.
func (p Point) Add(o Point) Point {
	if !p.valid || !o.valid {
		return Invalid()
	}
	return New(p.X+o.X, p.Y+o.Y)
}

// Sub returns p-o, invalid if either operand is invalid.
func (p Point) Sub(o Point) Point {
	if !p.valid || !o.valid {
		return Invalid()
	}
	return New(p.X-o.X, p.Y-o.Y)
}

// Scale returns p scaled by k, invalid if p is invalid.
func (p Point) Scale(k float64) Point {
	if !p.valid {
		return Invalid()
	}
	return New(p.X*k, p.Y*k)
}

// Magnitude returns hypot(X, Y), 0 if invalid.
func (p Point) Magnitude() float64 {
	if !p.valid {
		return 0
	}
	return math.Hypot(p.X, p.Y)
}

// NormalizeAngle wraps a radian angle into (-π, π].
func NormalizeAngle(a float64) float64 {
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
