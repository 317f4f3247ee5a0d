// Package controller implements the top-level synchronous operations
// of guide and dither. Both drive a guider.Guider
// via its ProcessFrame loop and the mount abstraction; neither touches
// the frame buffer directly, matching a single-image-thread scheduling
// model collapsed here into one synchronous call per operation (the
// mover/task split lives inside mount.Mount.MoveOffset, which already
// blocks in the driver for the pulse duration).
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/lodestar-guide/autoguide/internal/calibration"
	"github.com/lodestar-guide/autoguide/internal/config"
	"github.com/lodestar-guide/autoguide/internal/eventbus"
	"github.com/lodestar-guide/autoguide/internal/guider"
	"github.com/lodestar-guide/autoguide/internal/guidererr"
	"github.com/lodestar-guide/autoguide/internal/monitoring"
	"github.com/lodestar-guide/autoguide/internal/mount"
	"github.com/lodestar-guide/autoguide/internal/star"
)

// FrameSource is the blocking camera-capture suspension point: a
// frame acquisition blocks up to exposure time plus driver timeout.
// Implementations should respect ctx cancellation.
type FrameSource func(ctx context.Context) (*star.Image, error)

// Controller sequences guide and dither against a Guider and its
// primary mount, honoring a cancellation contract where stopping the
// guide raises a request flag checked at every suspension point.
type Controller struct {
	g *guider.Guider
	m mount.Mount
	ao mount.StepGuiderMount
	frames FrameSource
	frameInterval time.Duration
	cfg *config.TuningConfig
	detect star.Params
	emit func(eventbus.Event)

	lastCalibrationDetails calibration.Details

	now func() time.Time
}

// New constructs a Controller around an already-wired Guider and its
// primary mount. ao may be nil if no AO is configured; emit receives
// the calibration events Calibrate publishes (pass a no-op func() if the
// caller only cares about the guider's own events).
func New(g *guider.Guider, m mount.Mount, ao mount.StepGuiderMount, frames FrameSource, frameInterval time.Duration, cfg *config.TuningConfig, emit func(eventbus.Event)) *Controller {
	return &Controller{
		g: g, m: m, ao: ao, frames: frames, frameInterval: frameInterval, cfg: cfg, emit: emit,
		now: time.Now,
		detect: star.Params{
			SearchRegionHalf: cfg.GetSearchRegionPx(),
			MinHFD: cfg.GetMinHFD(),
			MaxHFD: cfg.GetMaxHFD(),
			SaturationLevel: 65535,
			MinMass: 1,
			MinSNR: 3,
		},
	}
}

// LastCalibrationDetails returns the CalibrationDetails record from the
// most recently completed primary-mount calibration, for diagnostics
// rendering; it is never consumed by the runtime loop itself.
func (c *Controller) LastCalibrationDetails() calibration.Details { return c.lastCalibrationDetails }

// Guide drives a guide(settle, recalibrate?) operation: it optionally
// clears calibration, starts guiding, and blocks until the measured
// offset has stayed within settle.TolerancePx for settle.SettleTime,
// or until settle.Timeout elapses.
func (c *Controller) Guide(ctx context.Context, settle guider.SettleParams, recalibrate bool) error {
	if recalibrate {
		if c.g.State() == guider.Guiding {
			c.g.Stop()
		}
		if c.g.State() != guider.Selected {
			if err := c.g.Resume(guider.Selected); err != nil {
				return fmt.Errorf("controller: recalibrate requires a previously selected star: %w", err)
			}
		}
		if err := c.Calibrate(ctx); err != nil {
			return err
		}
	}
	if !c.m.IsCalibrated() {
		return fmt.Errorf("controller: guide requires a calibrated mount: %w", guidererr.ErrCalibrationFailed)
	}
	if err := c.g.StartGuiding(); err != nil {
		return err
	}

	start := c.now()
	var belowSince time.Time
	haveBelow := false
	consecutiveHardwareErrors := 0
	threshold := c.cfg.GetHardwareMoveFailureThreshold()

	for {
		if err := ctx.Err(); err != nil {
			c.g.Stop()
			return err
		}

		img, err := c.frames(ctx)
		if err != nil {
			return fmt.Errorf("controller: frame acquisition failed: %w", err)
		}

		info := c.g.ProcessFrame(img, c.frameInterval)
		if guidererr.Classify(info.Err) == guidererr.KindHardwareMove {
			consecutiveHardwareErrors++
			if consecutiveHardwareErrors >= threshold {
				c.g.Stop()
				monitoring.Logf("controller: %d consecutive hardware-move errors, stopping", consecutiveHardwareErrors)
				return fmt.Errorf("controller: %w", guidererr.ErrPersistentHardware)
			}
		} else {
			consecutiveHardwareErrors = 0
		}

		now := c.now()
		if info.StarFound && info.CameraOffset.Magnitude() <= settle.TolerancePx {
			if !haveBelow {
				haveBelow = true
				belowSince = now
			}
			if now.Sub(belowSince) >= settle.SettleTime {
				return nil
			}
		} else {
			haveBelow = false
		}

		if now.Sub(start) >= settle.Timeout {
			return fmt.Errorf("controller: guide settle: %w", guidererr.ErrSettleTimeout)
		}
	}
}

// Dither drives a dither(amount, ra_only, settle) operation: it issues
// the dither and blocks until the guider reports settle is done.
func (c *Controller) Dither(ctx context.Context, amplitudePx float64, raOnly bool, settle guider.SettleParams) error {
	c.g.Dither(amplitudePx, raOnly, settle)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := c.frames(ctx)
		if err != nil {
			return fmt.Errorf("controller: frame acquisition failed: %w", err)
		}

		info := c.g.ProcessFrame(img, c.frameInterval)
		done, ok := c.g.SettleStatus(info.CameraOffset.Magnitude())
		if done {
			if ok {
				return nil
			}
			return fmt.Errorf("controller: dither: %w", guidererr.ErrSettleTimeout)
		}
	}
}
