// Package guidererr implements the guider's error taxonomy: a small
// set of sentinel errors grouped into the categories the rest of the
// module branches on (transient-measurement, distance-recovery,
// hardware-move, ao-limit-reached, calibration-failed,
// persistent-hardware-error), plus a severity used by the alert rate
// limiter.
package guidererr

import "errors"

// Sentinel errors. Wrap these with fmt.Errorf("...: %w", ErrX) to add
// context; callers compare with errors.Is, never string matching.
var (
	ErrStarNotFound = errors.New("star not found")
	ErrLowSNR = errors.New("signal-to-noise ratio too low")
	ErrLowMass = errors.New("star mass too low")
	ErrLowHFD = errors.New("half-flux diameter too low (hot pixel)")
	ErrHighHFD = errors.New("half-flux diameter too high (noise clump)")
	ErrSaturated = errors.New("star saturated")
	ErrTooNearEdge = errors.New("search window too near image edge")
	ErrHotPixel = errors.New("centroid coincides with an integer pixel")
	ErrMassRejected = errors.New("frame rejected by mass check")
	ErrDistanceJump = errors.New("frame rejected by distance gate")
	ErrHardwareMove = errors.New("mount/AO move command failed")
	ErrAOLimitReached = errors.New("AO reached its mechanical travel limit")
	ErrCalibrationFailed = errors.New("calibration failed")
	ErrPersistentHardware = errors.New("persistent hardware error")
	ErrSettleTimeout = errors.New("settle wait timed out")
)

// Kind is one of the error categories Classify sorts a sentinel into.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransientMeasurement
	KindDistanceRecovery
	KindHardwareMove
	KindAOLimitReached
	KindCalibrationFailed
	KindPersistentHardware
)

func (k Kind) String() string {
	switch k {
	case KindTransientMeasurement:
		return "transient-measurement"
	case KindDistanceRecovery:
		return "distance-recovery"
	case KindHardwareMove:
		return "hardware-move"
	case KindAOLimitReached:
		return "ao-limit-reached"
	case KindCalibrationFailed:
		return "calibration-failed"
	case KindPersistentHardware:
		return "persistent-hardware-error"
	default:
		return "unknown"
	}
}

// Severity is how loudly a subscriber should surface the error.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityAlert
)

// Classify maps err onto one of the Kind categories. Unrecognized errors
// classify as KindUnknown/SeverityWarning rather than panicking, since a
// driver adapter may return its own errors the core has never seen.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrStarNotFound), errors.Is(err, ErrLowSNR),
		errors.Is(err, ErrLowMass), errors.Is(err, ErrLowHFD),
		errors.Is(err, ErrHighHFD), errors.Is(err, ErrSaturated),
		errors.Is(err, ErrTooNearEdge), errors.Is(err, ErrHotPixel),
		errors.Is(err, ErrMassRejected):
		return KindTransientMeasurement
	case errors.Is(err, ErrDistanceJump):
		return KindDistanceRecovery
	case errors.Is(err, ErrAOLimitReached):
		return KindAOLimitReached
	case errors.Is(err, ErrHardwareMove):
		return KindHardwareMove
	case errors.Is(err, ErrCalibrationFailed):
		return KindCalibrationFailed
	case errors.Is(err, ErrPersistentHardware):
		return KindPersistentHardware
	default:
		return KindUnknown
	}
}

// DefaultSeverity returns the severity a subscriber should default to for
// a given Kind, absent any rate-limiting or suppression decision.
func DefaultSeverity(k Kind) Severity {
	switch k {
	case KindTransientMeasurement:
		return SeverityInfo
	case KindDistanceRecovery:
		return SeverityWarning
	case KindAOLimitReached:
		return SeverityWarning
	case KindHardwareMove:
		return SeverityWarning
	case KindCalibrationFailed, KindPersistentHardware:
		return SeverityAlert
	default:
		return SeverityWarning
	}
}
