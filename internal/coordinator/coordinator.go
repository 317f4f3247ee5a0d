// Package coordinator implements the AO/Mount bump coordinator: it
// watches the AO's centered offset and schedules gentle mount
// corrections to keep the AO away from its mechanical limits, with an
// override when the AO actually hits a limit.
package coordinator

import (
	"time"

	"github.com/lodestar-guide/autoguide/internal/geom"
)

// Config bundles the bump coordinator's tuning inputs ("ao.*" keys).
type Config struct {
	SamplesToAverage int
	BumpThreshold1 float64 // fraction of AO travel, default 0.8
	CenteringTolerance float64 // fraction of AO travel, default 0.10
	MaxStepsPerCycle int
	SearchRegionPx float64
	AOLimitCorrectionFrac float64 // 0.70 by default
	WarnAfter time.Duration
	SettleBoost float64 // bump weight floor while a dither settle is active, default 3.0
}

// DefaultConfig mirrors the coordinator's default tuning constants.
func DefaultConfig() Config {
	return Config{
		SamplesToAverage: 4,
		BumpThreshold1: 0.8,
		CenteringTolerance: 0.10,
		MaxStepsPerCycle: 10,
		AOLimitCorrectionFrac: 0.70,
		WarnAfter: 240 * time.Second,
		SettleBoost: 3.0,
	}
}

// Coordinator tracks the AO's running average offset and decides, once
// per guide cycle, whether the mount should absorb some of the AO's
// travel.
type Coordinator struct {
	cfg Config

	aoTravelSteps float64 // full one-directional travel, steps
	avgOffset geom.Point
	haveAvg bool

	bumpInProgress bool
	weight float64
	startedAt time.Time
	warnedOnce bool

	now func() time.Time
}

// New constructs a Coordinator for an AO with the given one-directional
// travel in steps.
func New(cfg Config, aoTravelSteps float64) *Coordinator {
	return &Coordinator{cfg: cfg, aoTravelSteps: aoTravelSteps, now: time.Now}
}

// BumpDecision is what the coordinator schedules for this guide cycle.
type BumpDecision struct {
	MountMoveCamera geom.Point // zero value if no move scheduled
	BumpInProgress bool
	Warning bool
}

// Update folds in this cycle's AO offset (in steps, centered on zero)
// and returns the coordinator's decision. aoLimitHit reports whether
// the AO's last move reported saturation, triggering the limit
// override. rawCameraOffset is the frame's raw measured offset in
// camera pixels, used for the AO-limit override's 70% correction, and
// xRate/yRate are the AO's per-axis pixels-per-step rates used to turn
// the averaged step offset into a mount-local move. settling reports
// whether a dither settle is currently in progress, which floors the
// bump weight at cfg.SettleBoost so the AO recenters quickly instead
// of riding the normal weight ramp. transformMountToCamera rotates a
// vector from the AO's own mount-local frame into camera coordinates
// (the AO's step axes are not generally aligned with the camera); a
// nil transform is treated as the identity.
func (c *Coordinator) Update(aoOffsetSteps geom.Point, aoLimitHit bool, rawCameraOffset geom.Point, xRate, yRate float64, settling bool, transformMountToCamera func(geom.Point) geom.Point) BumpDecision {
	c.updateAverage(aoOffsetSteps)

	if aoLimitHit {
		c.bumpInProgress = false
		c.weight = 1.0
		mag := rawCameraOffset.Magnitude()
		clamped := rawCameraOffset
		if mag > c.cfg.SearchRegionPx && mag > 0 {
			clamped = rawCameraOffset.Scale(c.cfg.SearchRegionPx / mag)
		}
		return BumpDecision{MountMoveCamera: clamped.Scale(c.cfg.AOLimitCorrectionFrac), BumpInProgress: true}
	}

	avgMag := c.avgOffset.Magnitude()
	threshold1 := c.cfg.BumpThreshold1 * c.aoTravelSteps
	threshold2 := (c.cfg.BumpThreshold1 + 1.0) / 2 * c.aoTravelSteps
	centeringBand := c.cfg.CenteringTolerance * c.aoTravelSteps

	if avgMag <= centeringBand {
		if c.bumpInProgress {
			c.weight *= 0.5
			if c.weight < 1.0 {
				c.weight = 1.0
				c.bumpInProgress = false
			}
		}
		return BumpDecision{BumpInProgress: c.bumpInProgress}
	}

	if avgMag > threshold1 {
		if !c.bumpInProgress {
			c.bumpInProgress = true
			c.startedAt = c.now()
			c.weight = 1.0
			c.warnedOnce = false
		}
		if avgMag > threshold2 {
			c.weight += 1.0
		} else {
			c.weight += 1.0 / 6.0
		}
	}

	if !c.bumpInProgress {
		return BumpDecision{}
	}

	weight := c.weight
	if settling && weight < c.cfg.SettleBoost {
		weight = c.cfg.SettleBoost
	}

	maxBump := c.cfg.SearchRegionPx / 2
	cameraMove := geom.Invalid()
	if avgMag > 0 {
		// Rate-scale and negate the averaged offset in the AO's own
		// mount-local frame, then rotate it into camera coordinates
		// before it is used as a mount correction.
		mountMove := geom.New(-c.avgOffset.X*xRate, -c.avgOffset.Y*yRate)
		camMove := mountMove
		if transformMountToCamera != nil {
			camMove = transformMountToCamera(mountMove)
		}
		if camMove.Valid() {
			mag := camMove.Magnitude()
			if mag > 0 {
				target := mag * weight
				if target > maxBump {
					target = maxBump
				}
				cameraMove = camMove.Scale(target / mag)
			}
		}
	}

	warn := false
	if c.now().Sub(c.startedAt) > c.cfg.WarnAfter && !c.warnedOnce {
		warn = true
		c.warnedOnce = true
	}

	return BumpDecision{MountMoveCamera: cameraMove, BumpInProgress: true, Warning: warn}
}

func (c *Coordinator) updateAverage(offset geom.Point) {
	const alpha = 0.33
	if !c.haveAvg {
		c.avgOffset = offset
		c.haveAvg = true
		return
	}
	c.avgOffset = geom.New(
		c.avgOffset.X+alpha*(offset.X-c.avgOffset.X),
		c.avgOffset.Y+alpha*(offset.Y-c.avgOffset.Y),
	)
}

// Reset clears the coordinator's running state, e.g. after a dither or
// recenter.
func (c *Coordinator) Reset() {
	c.haveAvg = false
	c.avgOffset = geom.Point{}
	c.bumpInProgress = false
	c.weight = 0
	c.warnedOnce = false
}
