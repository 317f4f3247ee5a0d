// Package eventbus implements the one-way publish event bus: a fixed
// set of typed guider events, broadcast to any number of subscribers.
// Modeled on the driver/link.Link subscribe/unsubscribe pattern,
// generalized from broadcasting raw serial lines to broadcasting a
// typed Event sum.
package eventbus

import "github.com/lodestar-guide/autoguide/internal/geom"

// Event is implemented by every event kind below. The unexported
// method keeps the set closed to this package's types, mirroring a
// sum type.
type Event interface {
	isEvent()
}

type AppState struct{ State string }

type StarSelected struct{ Pos geom.Point }

type StartCalibration struct{ Mount string }

type CalibrationStep struct {
	SessionID string
	Iteration int
	Direction string
	DX, DY float64
	Message string
}

type CalibrationComplete struct{ Mount string }

type CalibrationFailed struct {
	Mount string
	Reason string
}

type StartGuiding struct{}

type GuidingStopped struct{}

type Paused struct{ Level string }

type Resumed struct{}

type LockPositionSet struct{ Pos geom.Point }

type LockPositionLost struct{}

// GuideStepInfo is the per-frame record published as GuideStep.
// SessionID ties every frame of one selecting->guiding run together
// for an external log, and is stamped once per StartGuiding call.
type GuideStepInfo struct {
	SessionID string
	FrameNumber int
	CameraOffset geom.Point
	MountOffset geom.Point
	XPulseMs float64
	YPulseMs float64
	SNR float64
	Mass float64
	HFD float64
	StarFound bool
	Err error
}

type GuideStep struct{ Info GuideStepInfo }

type StarLost struct {
	Info string
	Err error
}

type Settling struct {
	Distance, Elapsed, SettleTime float64
}

type SettleDone struct {
	Status string
	Err error
}

type GuidingDithered struct{ DX, DY float64 }

// Severity lets a subscriber treat an Alert differently depending on
// how serious it is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityAlert
)

type Alert struct {
	Message string
	Severity Severity
}

func (AppState) isEvent() {}
func (StarSelected) isEvent() {}
func (StartCalibration) isEvent() {}
func (CalibrationStep) isEvent() {}
func (CalibrationComplete) isEvent() {}
func (CalibrationFailed) isEvent() {}
func (StartGuiding) isEvent() {}
func (GuidingStopped) isEvent() {}
func (Paused) isEvent() {}
func (Resumed) isEvent() {}
func (LockPositionSet) isEvent() {}
func (LockPositionLost) isEvent() {}
func (GuideStep) isEvent() {}
func (StarLost) isEvent() {}
func (Settling) isEvent() {}
func (SettleDone) isEvent() {}
func (GuidingDithered) isEvent() {}
func (Alert) isEvent() {}
