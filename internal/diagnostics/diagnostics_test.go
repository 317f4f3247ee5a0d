package diagnostics

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lodestar-guide/autoguide/internal/calibration"
	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/mount"
	"github.com/lodestar-guide/autoguide/internal/testsupport"
)

func sampleDetails(t *testing.T) calibration.Details {
	t.Helper()
	sim := &testsupport.MovingPulseDriver{PerMsWest: geom.New(-0.015, 0), PerMsNorth: geom.New(0, -0.015)}
	m := mount.NewScope(sim, 0, 0)
	cfg := calibration.DefaultConfig()
	cfg.PulseStepMs = 100
	cfg.TotalTravelPx = 6
	cfg.ReturnToleracePx = 1.0

	measure := func() (geom.Point, bool) { return sim.Pos, true }
	_, details, err := calibration.RunScope(m, measure, cfg, 0, false, func(calibration.Step) {})
	if err != nil {
		t.Fatalf("RunScope: %v", err)
	}
	return details
}

func TestRenderCalibrationPNGWritesFile(t *testing.T) {
	details := sampleDetails(t)
	path := filepath.Join(t.TempDir(), "calibration.png")

	if err := RenderCalibrationPNG(details, path); err != nil {
		t.Fatalf("RenderCalibrationPNG: %v", err)
	}
}

func TestRenderCalibrationHTMLIncludesSummary(t *testing.T) {
	details := sampleDetails(t)
	samples := []Sample{
		{RAOffsetPx: 0.1, DecOffsetPx: -0.2, SNR: 12, Mass: 20000, Elapsed: 0},
		{RAOffsetPx: 0.3, DecOffsetPx: -0.1, SNR: 11, Mass: 19500, Elapsed: 5 * time.Second},
		{RAOffsetPx: -0.2, DecOffsetPx: 0.1, SNR: 13, Mass: 20200, Elapsed: 10 * time.Second},
	}
	assistant := ComputeAssistant(samples, 0, details.BacklashMs)

	var buf bytes.Buffer
	if err := RenderCalibrationHTML(details, assistant, &buf); err != nil {
		t.Fatalf("RenderCalibrationHTML: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Guiding Assistant summary") {
		t.Error("expected the rendered report to include the Assistant summary table")
	}
	if !strings.Contains(out, "RA RMS") {
		t.Error("expected the rendered report to include the RA RMS row")
	}
}

func TestComputeAssistantEmptySamples(t *testing.T) {
	a := ComputeAssistant(nil, time.Minute, 120)
	if a.Samples != 0 {
		t.Errorf("Samples = %d, want 0", a.Samples)
	}
	if a.BacklashMs != 120 {
		t.Errorf("BacklashMs = %d, want 120 (carried through even with no samples)", a.BacklashMs)
	}
}

func TestComputeAssistantRMSAndDrift(t *testing.T) {
	samples := []Sample{
		{RAOffsetPx: 0, DecOffsetPx: 0, SNR: 10, Mass: 1000, Elapsed: 0},
		{RAOffsetPx: 2, DecOffsetPx: 0, SNR: 10, Mass: 1000, Elapsed: 30 * time.Second},
		{RAOffsetPx: -2, DecOffsetPx: 0, SNR: 10, Mass: 1000, Elapsed: time.Minute},
	}
	a := ComputeAssistant(samples, 0, 0)

	if a.RAPeakToPeakPx != 4 {
		t.Errorf("RAPeakToPeakPx = %v, want 4", a.RAPeakToPeakPx)
	}
	if a.RARMSPx <= 0 {
		t.Errorf("RARMSPx = %v, want > 0", a.RARMSPx)
	}
	if a.DecRMSPx != 0 {
		t.Errorf("DecRMSPx = %v, want 0 (constant Dec offset)", a.DecRMSPx)
	}
}
