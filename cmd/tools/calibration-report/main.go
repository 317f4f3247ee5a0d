// Command calibration-report renders the most recently persisted
// calibration run for a mount into a PNG trace plot and an HTML
// Guiding Assistant summary, a one-shot diagnostics pass an operator
// runs after a session rather than a long-running process.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/lodestar-guide/autoguide/internal/diagnostics"
	"github.com/lodestar-guide/autoguide/internal/storage"
)

var (
	dbPath = flag.String("db-path", "autoguide.db", "Path to the sqlite state database written by cmd/autoguide")
	mountName = flag.String("mount-name", "primary", "Mount name the calibration was persisted under")
	wormPeriod = flag.Duration("worm-period", 8*time.Minute, "RA worm mechanical period, for the periodic-error estimate")
	pngOut = flag.String("png-out", "calibration.png", "Output path for the trace plot")
	htmlOut = flag.String("html-out", "calibration.html", "Output path for the Guiding Assistant HTML report")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags)

	db, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *dbPath, err)
	}
	defer db.Close()

	details, ok, err := db.LoadCalibrationDetails(*mountName)
	if err != nil {
		log.Fatalf("failed to load calibration details for %s: %v", *mountName, err)
	}
	if !ok {
		log.Fatalf("no calibration details persisted for mount %q; run cmd/autoguide first", *mountName)
	}

	// No guide-step history is persisted yet, so the Assistant summary
	// carries only the figures derivable from the calibration itself
	// (declination backlash); RMS/drift/periodic-error fields are zero.
	assistant := diagnostics.ComputeAssistant(nil, *wormPeriod, details.BacklashMs)

	if err := diagnostics.RenderCalibrationPNG(details, *pngOut); err != nil {
		log.Fatalf("failed to render %s: %v", *pngOut, err)
	}
	log.Printf("wrote %s", *pngOut)

	f, err := os.Create(*htmlOut)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *htmlOut, err)
	}
	defer f.Close()
	if err := diagnostics.RenderCalibrationHTML(details, assistant, f); err != nil {
		log.Fatalf("failed to render %s: %v", *htmlOut, err)
	}
	log.Printf("wrote %s", *htmlOut)
}
