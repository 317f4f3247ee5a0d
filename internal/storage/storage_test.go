package storage

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/lodestar-guide/autoguide/internal/calibration"
	"github.com/lodestar-guide/autoguide/internal/config"
	"github.com/lodestar-guide/autoguide/internal/geom"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autoguide.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCalibrationRoundTrip(t *testing.T) {
	db := openTestDB(t)

	want := geom.Calibration{
		XAngle: 0.1, YAngle: math.Pi/2 + 0.1, XRate: 0.02, YRate: 0.021,
		Declination: 0.4, DeclinationSet: true,
		PierSide: geom.PierEast, RAParity: geom.ParityEven, DecParity: geom.ParityOdd,
		RotatorAngle: 1.1, RotatorSet: true, Binning: 2, Valid: true,
	}
	if err := db.SaveCalibration("scope", want, 1000); err != nil {
		t.Fatalf("SaveCalibration: %v", err)
	}

	got, ok, err := db.LoadCalibration("scope")
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if !ok {
		t.Fatal("expected a saved calibration")
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}

	if _, ok, err := db.LoadCalibration("missing"); err != nil || ok {
		t.Fatalf("expected no calibration for unknown mount, got ok=%v err=%v", ok, err)
	}
}

func TestCalibrationDetailsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	want := calibration.Details{
		FocalLengthMM: 560, ImageScale: 1.8, RASteps: 24, DecSteps: 24,
		OrthoErrorDeg: 0.7, LastIssue: "", OrigBinning: 1, BacklashMs: 300,
	}
	if err := db.SaveCalibrationDetails("scope", want, 2000); err != nil {
		t.Fatalf("SaveCalibrationDetails: %v", err)
	}

	got, ok, err := db.LoadCalibrationDetails("scope")
	if err != nil {
		t.Fatalf("LoadCalibrationDetails: %v", err)
	}
	if !ok || got != want {
		t.Fatalf("round trip mismatch: got %+v, ok=%v, want %+v", got, ok, want)
	}
}

func TestTuningConfigRoundTrip(t *testing.T) {
	db := openTestDB(t)

	written := config.EmptyTuningConfig()
	minMove := 0.15
	written.MinMovePx = &minMove

	if err := db.SaveTuningConfig("default", written, 3000); err != nil {
		t.Fatalf("SaveTuningConfig: %v", err)
	}

	read, ok, err := db.LoadTuningConfig("default")
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}
	if !ok {
		t.Fatal("expected a saved tuning config")
	}
	if read.GetMinMovePx() != minMove {
		t.Fatalf("got MinMovePx %v, want %v", read.GetMinMovePx(), minMove)
	}

	if _, ok, err := db.LoadTuningConfig("unknown"); err != nil || ok {
		t.Fatalf("expected no tuning config for unknown profile, got ok=%v err=%v", ok, err)
	}
}

func TestSaveCalibrationUpsertsExistingRow(t *testing.T) {
	db := openTestDB(t)

	first := geom.Calibration{XAngle: 0, YAngle: math.Pi / 2, XRate: 0.01, YRate: 0.01, Valid: true}
	second := geom.Calibration{XAngle: 0.2, YAngle: math.Pi/2 + 0.2, XRate: 0.02, YRate: 0.02, Valid: true}

	if err := db.SaveCalibration("scope", first, 1); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := db.SaveCalibration("scope", second, 2); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, ok, err := db.LoadCalibration("scope")
	if err != nil || !ok {
		t.Fatalf("LoadCalibration: ok=%v err=%v", ok, err)
	}
	if got.XAngle != second.XAngle {
		t.Fatalf("expected upsert to overwrite XAngle, got %v want %v", got.XAngle, second.XAngle)
	}
}
