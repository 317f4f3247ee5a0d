package guider

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/lodestar-guide/autoguide/internal/config"
	"github.com/lodestar-guide/autoguide/internal/coordinator"
	"github.com/lodestar-guide/autoguide/internal/eventbus"
	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/guidererr"
	"github.com/lodestar-guide/autoguide/internal/monitoring"
	"github.com/lodestar-guide/autoguide/internal/mount"
	"github.com/lodestar-guide/autoguide/internal/qualitygate"
	"github.com/lodestar-guide/autoguide/internal/star"
)

// ditherFastRecenterFrames bounds how many frames the fast-recenter
// bypass is allowed to run before falling back
// to normal algorithm-mediated guiding, even if the star never settles
// within 0.5px; a runaway recenter should not guide forever with
// algorithms disabled.
const ditherFastRecenterFrames = 8

// fastRecenterTolerancePx is the per-axis convergence target the fast
// recenter bypass disarms at.
const fastRecenterTolerancePx = 0.5

// secondaryMissSigma and secondaryDropFrames are the multi-star
// refinement thresholds.
const secondaryMissSigma = 2.5
const secondaryDropFrames = 5
const secondaryMissResetFrames = 10

// secondary tracks one multi-star reference star alongside the primary.
type secondary struct {
	offsetFromPrimary geom.Point // expected position minus primary's lock-relative position, set at selection/lock-change time
	lastKnown geom.Point
	lost bool
	zeroMotionStreak int
	missStreak int
}

// multiStarState holds the running statistics the refinement step
// needs for the primary's displacement.
type multiStarState struct {
	secondaries []secondary

	primaryMeanX, primaryMeanY float64
	primaryVarX, primaryVarY float64
	primarySamples int
	withinSigma bool
}

// SettleParams bundles a dither's settle criteria.
type SettleParams struct {
	TolerancePx float64
	SettleTime time.Duration
	Timeout time.Duration
}

// fastRecenterState tracks the armed bypass window of step 8.
type fastRecenterState struct {
	framesRemaining int
}

// Guider drives the per-frame guiding loop. It owns the top-level
// state machine, the lock position, the quality gates, and the
// mount/AO it issues corrections through.
type Guider struct {
	state State
	pause PauseLevel

	lockPosition geom.Point
	lockShiftEnabled bool
	lockShiftRate geom.Point // px/s

	prevPosition geom.Point

	m mount.Mount
	ao mount.StepGuiderMount
	co *coordinator.Coordinator

	massChecker *qualitygate.MassChecker
	distGate *qualitygate.DistanceGate

	cfg *config.TuningConfig
	detect star.Params

	multi multiStarState
	fast fastRecenterState

	frameNumber int

	ditherSettle *settleTracker

	sessionID string
	newSessionID func() string

	emit func(eventbus.Event)
	now func() time.Time
	rng *rand.Rand
}

// New constructs a Guider bound to the primary mount m, an optional AO
// ao (nil if none is configured), and cfg's tuning values. emit
// receives every event the guider publishes; pass a
// no-op func() if the caller does not need them.
func New(cfg *config.TuningConfig, m mount.Mount, ao mount.StepGuiderMount, emit func(eventbus.Event)) *Guider {
	g := &Guider{
		m: m,
		ao: ao,
		cfg: cfg,
		massChecker: qualitygate.NewMassChecker(),
		distGate: qualitygate.NewDistanceGate(),
		emit: emit,
		now: time.Now,
		newSessionID: func() string { return uuid.New().String() },
		rng: rand.New(rand.NewSource(1)),
		detect: star.Params{
			SearchRegionHalf: cfg.GetSearchRegionPx(),
			MinHFD: cfg.GetMinHFD(),
			MaxHFD: cfg.GetMaxHFD(),
			SaturationLevel: 65535,
			MinMass: 1,
			MinSNR: 3,
		},
	}
	if ao != nil {
		g.co = coordinator.New(coordinator.Config{
			SamplesToAverage: cfg.GetSamplesToAverage(),
			BumpThreshold1: cfg.GetBumpPercentage(),
			CenteringTolerance: 0.10,
			MaxStepsPerCycle: cfg.GetBumpMaxStepsPerCycle(),
			SearchRegionPx: float64(cfg.GetSearchRegionPx()),
			AOLimitCorrectionFrac: 0.70,
			SettleBoost: cfg.GetBumpSettlingBoost(),
			WarnAfter: 240 * time.Second,
		}, float64(ao.MaxPosition(mount.West)))
	}
	return g
}

// State returns the guider's current top-level state.
func (g *Guider) State() State { return g.state }

// LockPosition returns the current lock position, as set by SelectStar
// or shifted by SetLockShift. Used by the controller to seed the
// calibration sweep's star search.
func (g *Guider) LockPosition() geom.Point { return g.lockPosition }

func (g *Guider) transition(to State) error {
	if to == Stopped || canTransition(g.state, to) {
		from := g.state
		g.state = to
		monitoring.Logf("guider: %s -> %s", from, to)
		return nil
	}
	return fmt.Errorf("guider: illegal transition %s -> %s", g.state, to)
}

// StartLooping moves the guider from unconfigured to selecting.
func (g *Guider) StartLooping() error { return g.transition(Selecting) }

// SelectStar records a manually or automatically chosen guide star as
// the new lock position and moves to selected.
func (g *Guider) SelectStar(pos geom.Point) error {
	if err := g.transition(Selected); err != nil {
		return err
	}
	g.lockPosition = pos
	g.prevPosition = pos
	g.emit(eventbus.StarSelected{Pos: pos})
	g.emit(eventbus.LockPositionSet{Pos: pos})
	return nil
}

// BeginPrimaryCalibration transitions selected -> calibrating-primary.
func (g *Guider) BeginPrimaryCalibration() error {
	return g.transition(CalibratingPrimary)
}

// PrimaryCalibrated advances calibrating-primary to calibrating-
// secondary if an AO is present, or straight to calibrated otherwise.
func (g *Guider) PrimaryCalibrated() error {
	if g.ao != nil {
		return g.transition(CalibratingSecondary)
	}
	return g.transition(Calibrated)
}

// SecondaryCalibrated transitions calibrating-secondary -> calibrated.
func (g *Guider) SecondaryCalibrated() error { return g.transition(Calibrated) }

// StartGuiding transitions selected or calibrated into guiding.
func (g *Guider) StartGuiding() error {
	if err := g.transition(Guiding); err != nil {
		return err
	}
	g.sessionID = g.newSessionID()
	g.emit(eventbus.StartGuiding{})
	return nil
}

// Stop transitions to stopped from any state.
func (g *Guider) Stop() {
	_ = g.transition(Stopped)
	if g.m != nil {
		g.m.GuidingStopped()
	}
	g.emit(eventbus.GuidingStopped{})
}

// Resume re-enters selected or unconfigured from stop, per the origin
// the caller recorded.
func (g *Guider) Resume(origin State) error { return g.transition(origin) }

// SetLockShift configures the lock-position shift used by step 2 of
// the per-frame driver. A zero rate disables shifting.
func (g *Guider) SetLockShift(rate geom.Point) {
	g.lockShiftRate = rate
	g.lockShiftEnabled = rate.Valid() && rate.Magnitude() > 0
}

// AddSecondaryStar registers a multi-star reference star at seedPos,
// captured at the current lock position.
func (g *Guider) AddSecondaryStar(seedPos geom.Point) {
	g.multi.secondaries = append(g.multi.secondaries, secondary{
		offsetFromPrimary: seedPos.Sub(g.lockPosition),
		lastKnown: seedPos,
	})
}

// Pause enters one of the two pause levels.
func (g *Guider) Pause(level PauseLevel) {
	wasFull := g.pause == PausedFull
	g.pause = level
	if g.m != nil {
		g.m.GuidingPaused()
	}
	if wasFull && level != PausedFull {
		g.distGate.Reset()
		g.massChecker.Reset()
		if g.co != nil {
			g.co.Reset()
		}
	}
	g.emit(eventbus.Paused{Level: pauseLevelString(level)})
}

// ResumeGuiding clears any pause level.
func (g *Guider) ResumeGuiding() {
	g.pause = NotPaused
	if g.m != nil {
		g.m.GuidingResumed()
	}
	g.emit(eventbus.Resumed{})
}

func pauseLevelString(l PauseLevel) string {
	switch l {
	case PausedGuidingOnly:
		return "guiding-only"
	case PausedFull:
		return "full"
	default:
		return "none"
	}
}

// markLockPositionChanged resets the multi-star statistics so that
// refinement treats every secondary as lost until the primary's
// displacement returns within 2 sigma of the new lock position.
func (g *Guider) markLockPositionChanged() {
	g.multi.primarySamples = 0
	g.multi.primaryMeanX, g.multi.primaryMeanY = 0, 0
	g.multi.primaryVarX, g.multi.primaryVarY = 0, 0
	g.multi.withinSigma = false
	for i := range g.multi.secondaries {
		g.multi.secondaries[i].lost = true
	}
}

// ProcessFrame runs one iteration of the guiding-state per-frame
// driver. img may be nil to represent a dropped/absent frame; dt is
// the elapsed time since the previous frame, used by the
// lock-position shift.
func (g *Guider) ProcessFrame(img *star.Image, dt time.Duration) eventbus.GuideStepInfo {
	info := eventbus.GuideStepInfo{SessionID: g.sessionID, FrameNumber: g.frameNumber}
	g.frameNumber++

	if img == nil {
		return info
	}
	if g.pause == PausedFull {
		return info
	}

	if g.lockShiftEnabled {
		g.lockPosition = g.lockPosition.Add(g.lockShiftRate.Scale(dt.Seconds()))
		if !img.InBounds(int(g.lockPosition.X), int(g.lockPosition.Y)) {
			g.lockShiftEnabled = false
			g.emit(eventbus.LockPositionLost{})
		}
	}

	st := star.Find(img, int(g.prevPosition.X), int(g.prevPosition.Y), g.detect)
	info.SNR, info.Mass, info.HFD = st.SNR, st.Mass, st.HFD

	if st.Result != star.FindOK {
		info.Err = st.Result.ToError()
		monitoring.Logf("guider: frame %d: star lost: %s", info.FrameNumber, st.Result)
		g.emit(eventbus.StarLost{Info: st.Result.String(), Err: info.Err})
		return info
	}
	info.StarFound = true

	rawOffset := st.Position.Sub(g.lockPosition)
	distance := rawOffset.Magnitude()

	if g.cfg.GetTolerateJumpsEnabled() {
		if !g.distGate.CheckDistance(distance, g.cfg.GetTolerateJumpsThreshold()) {
			info.Err = guidererr.ErrDistanceJump
			g.emit(eventbus.StarLost{Info: "distance gate rejected frame", Err: info.Err})
			return info
		}
	}
	if g.cfg.GetMassChangeThresholdEnabled() {
		if reject, _ := g.massChecker.CheckMass(st.Mass, g.cfg.GetMassChangeThreshold()); reject {
			info.Err = guidererr.ErrMassRejected
			g.emit(eventbus.StarLost{Info: "mass check rejected frame", Err: info.Err})
			return info
		}
	}
	g.distGate.RecordAccepted(distance)
	g.massChecker.AppendData(st.Mass)
	g.prevPosition = st.Position

	g.updatePrimaryStats(rawOffset)

	offset := rawOffset
	if g.cfg.GetMultiStarEnabled() && len(g.multi.secondaries) > 0 {
		offset = g.refineMultiStar(img, rawOffset)
	}
	info.CameraOffset = offset

	if g.pause == PausedGuidingOnly {
		return info
	}

	opts := mount.MoveOptions{Algorithm: true}
	var result mount.MoveResult
	if g.fast.framesRemaining > 0 {
		result = g.applyFastRecenter(offset)
	} else {
		result = g.m.MoveOffset(offset, opts)
	}
	if result.Err != nil {
		info.Err = result.Err
	}

	if g.ao != nil && g.co != nil {
		aoSteps := geom.New(float64(g.ao.CurrentPosition(mount.West)), float64(g.ao.CurrentPosition(mount.North)))
		cal := g.ao.GetCalibration()
		settling := g.ditherSettle != nil
		decision := g.co.Update(aoSteps, result.AOLimitReached, offset, cal.XRate, cal.YRate, settling, g.ao.TransformMountToCamera)
		if decision.BumpInProgress && decision.MountMoveCamera.Valid() && decision.MountMoveCamera.Magnitude() > 0 {
			g.m.MoveOffset(decision.MountMoveCamera, mount.MoveOptions{Algorithm: false, Silent: true})
		}
		if decision.Warning {
			g.emit(eventbus.Alert{Message: "AO bump has not completed within the warning interval", Severity: eventbus.SeverityWarning})
		}
	}

	monitoring.Verbosef("guider: frame %d: offset=(%.2f,%.2f) snr=%.1f mass=%.0f hfd=%.2f",
		info.FrameNumber, info.CameraOffset.X, info.CameraOffset.Y, info.SNR, info.Mass, info.HFD)
	g.emit(eventbus.GuideStep{Info: info})
	return info
}

// applyFastRecenter issues a quantized full-offset move without the
// configured algorithm, counting down the armed window and
// disarming once both axes are within tolerance.
func (g *Guider) applyFastRecenter(offset geom.Point) mount.MoveResult {
	g.fast.framesRemaining--
	if math.Abs(offset.X) <= fastRecenterTolerancePx && math.Abs(offset.Y) <= fastRecenterTolerancePx {
		g.fast.framesRemaining = 0
	}
	return g.m.MoveOffset(offset, mount.MoveOptions{Algorithm: false})
}

// updatePrimaryStats folds the latest accepted offset into the running
// mean/variance used by the multi-star "within 2.5σ" test, via Welford's
// online algorithm.
func (g *Guider) updatePrimaryStats(offset geom.Point) {
	g.multi.primarySamples++
	n := float64(g.multi.primarySamples)
	dx := offset.X - g.multi.primaryMeanX
	g.multi.primaryMeanX += dx / n
	g.multi.primaryVarX += dx * (offset.X - g.multi.primaryMeanX)
	dy := offset.Y - g.multi.primaryMeanY
	g.multi.primaryMeanY += dy / n
	g.multi.primaryVarY += dy * (offset.Y - g.multi.primaryMeanY)

	if g.multi.primarySamples < 2 {
		return
	}
	sigmaX := math.Sqrt(g.multi.primaryVarX / n)
	if !g.multi.withinSigma && math.Abs(offset.X-g.multi.primaryMeanX) <= 2*sigmaX {
		g.multi.withinSigma = true
		for i := range g.multi.secondaries {
			g.multi.secondaries[i].lost = false
		}
	}
}
