package geom

import "math"

// GuideParity describes the sign relationship between a commanded axis
// direction and the resulting on-sensor motion.
type GuideParity int

const (
	ParityUnknown GuideParity = iota
	ParityEven
	ParityOdd
	ParityUnchanged
)

// PierSide is the side of the meridian the mount reports at calibration
// time. Unknown is legal for AO calibration, which never learns it.
type PierSide int

const (
	PierUnknown PierSide = iota
	PierEast
	PierWest
)

// Calibration is the learned mapping from mount/AO axis commands to
// sensor-plane motion. It is a plain value type: computing it is the
// job of the calibration package, applying it is the job of the mount
// package's transform.
type Calibration struct {
	XAngle float64 // radians, camera->mount X axis orientation
	YAngle float64 // radians, camera->mount Y axis orientation
	XRate float64 // pixels per millisecond of pulse (or per step for an AO)
	YRate float64

	Declination float64 // radians; meaningful only when DeclinationSet
	DeclinationSet bool
	PierSide PierSide
	RAParity GuideParity
	DecParity GuideParity
	RotatorAngle float64 // radians; meaningful only when RotatorSet
	RotatorSet bool
	Binning int

	Valid bool
}

// YAngleError is the effective Y-axis orthogonality error: how far
// YAngle is from the "perfectly orthogonal to XAngle" position. YAngle
// is always within ±π/2 of XAngle+π/2, and the effective error is
// normalize(XAngle - YAngle + π/2).
func (c Calibration) YAngleError() float64 {
	return NormalizeAngle(c.XAngle - c.YAngle + math.Pi/2)
}
