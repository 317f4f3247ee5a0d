package diagnostics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Sample is one guide step's contribution to a running Guiding
// Assistant summary: the mount-frame offset the step measured, plus
// the quality numbers the summary reports alongside it. Elapsed is the
// time since the first sample in the run.
type Sample struct {
	RAOffsetPx float64
	DecOffsetPx float64
	SNR float64
	Mass float64
	Elapsed time.Duration
}

// Assistant is the numeric summary computed after a guiding run: RMS
// displacement per axis, drift rate, a backlash figure carried over
// from the calibration that preceded the run, and a periodic-error
// amplitude estimate. It is a struct of numbers and strings, never a
// rendered chart; nothing here draws a polar-drift circle.
type Assistant struct {
	Samples int

	RARMSPx float64
	DecRMSPx float64
	CombinedRMSPx float64

	RAPeakToPeakPx float64
	RADriftPxPerMin float64
	DecDriftPxPerMin float64

	MeanSNR float64
	MeanMass float64

	RecommendedRAMinMovePx float64
	RecommendedDecMinMovePx float64

	BacklashMs int

	// PeriodicErrorPx is the peak-to-peak swing of the RA offset, after
	// removing its linear drift, over the samples within wormPeriod of
	// the first sample. Zero if wormPeriod is not positive or that
	// window holds fewer than 3 samples.
	PeriodicErrorPx float64
}

// ComputeAssistant derives an Assistant summary from a guiding run's
// samples. backlashMs carries over the declination backlash
// calibration.RunScope measured; wormPeriod is the RA worm's
// mechanical period, used to window the periodic-error estimate.
// If samples is empty, only BacklashMs is set.
func ComputeAssistant(samples []Sample, wormPeriod time.Duration, backlashMs int) Assistant {
	var a Assistant
	a.BacklashMs = backlashMs
	if len(samples) == 0 {
		return a
	}
	a.Samples = len(samples)

	ra := make([]float64, len(samples))
	dec := make([]float64, len(samples))
	var sumSNR, sumMass float64
	minRA, maxRA := samples[0].RAOffsetPx, samples[0].RAOffsetPx
	for i, s := range samples {
		ra[i] = s.RAOffsetPx
		dec[i] = s.DecOffsetPx
		sumSNR += s.SNR
		sumMass += s.Mass
		if s.RAOffsetPx < minRA {
			minRA = s.RAOffsetPx
		}
		if s.RAOffsetPx > maxRA {
			maxRA = s.RAOffsetPx
		}
	}
	a.MeanSNR = sumSNR / float64(a.Samples)
	a.MeanMass = sumMass / float64(a.Samples)
	a.RAPeakToPeakPx = maxRA - minRA

	_, raRMS := stat.MeanStdDev(ra, nil)
	_, decRMS := stat.MeanStdDev(dec, nil)
	a.RARMSPx = raRMS
	a.DecRMSPx = decRMS
	a.CombinedRMSPx = math.Hypot(raRMS, decRMS)

	elapsedMin := samples[len(samples)-1].Elapsed.Minutes()
	if elapsedMin > 0 {
		a.RADriftPxPerMin = (samples[len(samples)-1].RAOffsetPx - samples[0].RAOffsetPx) / elapsedMin
		a.DecDriftPxPerMin = (samples[len(samples)-1].DecOffsetPx - samples[0].DecOffsetPx) / elapsedMin
	}

	// Recommend a min-move of roughly one RMS noise floor per axis,
	// clamping RA to within 20% of Dec so the two algorithms don't
	// fight each other on correlated seeing noise.
	a.RecommendedRAMinMovePx = raRMS
	a.RecommendedDecMinMovePx = decRMS
	a.RecommendedRAMinMovePx = clamp(a.RecommendedRAMinMovePx, 0.8*decRMS, 1.2*decRMS)

	a.PeriodicErrorPx = detrendedPeakToPeak(samples, wormPeriod)

	return a
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// detrendedPeakToPeak takes the samples within wormPeriod of the first
// sample, fits a line to the RA offsets in that window, and
// returns the peak-to-peak spread of the residuals: an FFT-free
// stand-in for the periodic error's amplitude.
func detrendedPeakToPeak(samples []Sample, wormPeriod time.Duration) float64 {
	if wormPeriod <= 0 || len(samples) < 3 {
		return 0
	}
	start := samples[0].Elapsed
	end := start + wormPeriod
	var xs, ys []float64
	for _, s := range samples {
		if s.Elapsed > end {
			break
		}
		xs = append(xs, s.Elapsed.Seconds())
		ys = append(ys, s.RAOffsetPx)
	}
	if len(xs) < 3 {
		return 0
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	minResidual, maxResidual := 0.0, 0.0
	for i, x := range xs {
		residual := ys[i] - (alpha + beta*x)
		if i == 0 {
			minResidual, maxResidual = residual, residual
			continue
		}
		if residual < minResidual {
			minResidual = residual
		}
		if residual > maxResidual {
			maxResidual = residual
		}
	}
	return maxResidual - minResidual
}
