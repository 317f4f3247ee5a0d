package controller

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lodestar-guide/autoguide/internal/calibration"
	"github.com/lodestar-guide/autoguide/internal/eventbus"
	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/star"
)

// calibrationConfig derives a calibration.Config from the tuning
// overrides, starting from calibration.DefaultConfig so an
// unconfigured TuningConfig falls back to the same defaults.
func calibrationConfig(cfg interface {
	GetCalibrationSafetyCapIterations() int
	GetCalibrationDecSafetyLimitDeg() float64
	GetCalibrationOrthoErrorLimitDeg() float64
}, binning int) calibration.Config {
	c := calibration.DefaultConfig()
	c.SafetyCapIterations = cfg.GetCalibrationSafetyCapIterations()
	c.DecSafetyLimitRad = cfg.GetCalibrationDecSafetyLimitDeg() * (3.141592653589793 / 180)
	c.OrthoErrorLimitRad = cfg.GetCalibrationOrthoErrorLimitDeg() * (3.141592653589793 / 180)
	c.Binning = binning
	return c
}

// measurer builds a calibration.Measurer that pulls a fresh frame
// through frames and locates the star nearest seed, tracking the
// last-seen position across calls the way the real guide loop does.
func (c *Controller) measurer(ctx context.Context, seed geom.Point) calibration.Measurer {
	last := seed
	return func() (geom.Point, bool) {
		img, err := c.frames(ctx)
		if err != nil {
			return geom.Point{}, false
		}
		st := star.Find(img, int(last.X), int(last.Y), c.detect)
		if st.Result != star.FindOK {
			return geom.Point{}, false
		}
		last = st.Position
		return st.Position, true
	}
}

// Calibrate runs full calibration sequence against the
// primary mount, and the AO's own sequence ("StepGuider
// (AO) calibration") if one is configured, publishing
// StartCalibration/CalibrationStep/CalibrationComplete/
// CalibrationFailed over the event bus as it goes.
func (c *Controller) Calibrate(ctx context.Context) error {
	seed := c.g.LockPosition()
	sessionID := uuid.New().String()

	c.emit(eventbus.StartCalibration{Mount: "primary"})
	if err := c.g.BeginPrimaryCalibration(); err != nil {
		return fmt.Errorf("controller: calibrate: %w", err)
	}

	ccfg := calibrationConfig(c.cfg, 1)
	dec, haveDec := c.m.Declination()
	measure := c.measurer(ctx, seed)

	emitStep := func(s calibration.Step) {
		c.emit(eventbus.CalibrationStep{
			SessionID: sessionID,
			Iteration: s.Iteration,
			Direction: s.Direction.String(),
			DX: s.DX,
			DY: s.DY,
			Message: s.Message,
		})
	}

	cal, details, err := calibration.RunScope(c.m, measure, ccfg, dec, haveDec, emitStep)
	if err != nil {
		c.emit(eventbus.CalibrationFailed{Mount: "primary", Reason: err.Error()})
		return fmt.Errorf("controller: primary calibration: %w", err)
	}
	c.m.SetCalibration(cal)
	c.lastCalibrationDetails = details
	c.emit(eventbus.CalibrationComplete{Mount: "primary"})

	if err := c.g.PrimaryCalibrated(); err != nil {
		return fmt.Errorf("controller: calibrate: %w", err)
	}

	if c.ao == nil {
		return nil
	}

	c.emit(eventbus.StartCalibration{Mount: "ao"})
	aoCal, err := calibration.RunStepGuider(c.ao, c.measurer(ctx, seed), ccfg, c.cfg.GetCalibrationStepsPerIteration(), 1, emitStep)
	if err != nil {
		c.emit(eventbus.CalibrationFailed{Mount: "ao", Reason: err.Error()})
		return fmt.Errorf("controller: ao calibration: %w", err)
	}
	c.ao.SetCalibration(aoCal)
	c.emit(eventbus.CalibrationComplete{Mount: "ao"})

	return c.g.SecondaryCalibrated()
}
