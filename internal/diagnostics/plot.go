// Package diagnostics renders the CalibrationDetails record and a
// running-guide numeric summary for human review after the fact. None
// of it is consumed by the runtime loop: the guider and controller
// packages never import this one.
package diagnostics

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/lodestar-guide/autoguide/internal/calibration"
	"github.com/lodestar-guide/autoguide/internal/geom"
)

// RenderCalibrationPNG draws the two axis sweep traces from a
// calibration run (measured position vs. cumulative pulse duration,
// one series per axis) plus a straight line from each axis's first to
// last sample, and saves it to path. Grounded on the teacher's gridplotter.go, which
// builds one gonum/plot per metric and layers a line per series.
func RenderCalibrationPNG(details calibration.Details, path string) error {
	p := plot.New()
	p.Title.Text = "Calibration sweep traces"
	p.X.Label.Text = "Cumulative pulse (ms)"
	p.Y.Label.Text = "Measured displacement (px)"

	if err := addTrace(p, "RA/X", details.XTrace); err != nil {
		return fmt.Errorf("diagnostics: plot RA trace: %w", err)
	}
	if err := addTrace(p, "Dec/Y", details.YTrace); err != nil {
		return fmt.Errorf("diagnostics: plot Dec trace: %w", err)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("diagnostics: save calibration plot: %w", err)
	}
	return nil
}

// addTrace plots displacement from the trace's first sample (so both
// axes start at the origin regardless of where the sweep began) as a
// scatter of measured points plus the line connecting first and last
// sample. calibration.fitAngleAndRate uses that chord only for a
// two-sample sweep; longer sweeps are fit by regression.
func addTrace(p *plot.Plot, label string, trace []calibration.CalibrationSample) error {
	if len(trace) == 0 {
		return nil
	}
	origin := trace[0].Pos

	pts := make(plotter.XYs, len(trace))
	for i, s := range trace {
		pts[i] = plotter.XY{X: s.PulseMs, Y: displacement(s.Pos, origin)}
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter)

	fit := plotter.XYs{
		{X: trace[0].PulseMs, Y: 0},
		{X: trace[len(trace)-1].PulseMs, Y: displacement(trace[len(trace)-1].Pos, origin)},
	}
	line, err := plotter.NewLine(fit)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, scatter, line)
	return nil
}

// displacement returns pos's unsigned distance from origin: the sweep
// always recedes monotonically from origin outbound, so plain distance
// is the magnitude the trace needs.
func displacement(pos, origin geom.Point) float64 {
	d, _ := pos.Distance(origin)
	return d
}
