package guider

import (
	"math"

	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/star"
)

// secondaryDetectHalf narrows the search window for a secondary
// star: its expected location is already known to within a few pixels,
// so it does not need the primary's full search region.
const secondaryDetectHalf = 8

// refineMultiStar searches for each registered secondary near its
// expected position, weights each found secondary by
// snr_i/snr_primary, and accepts the resulting weighted mean only if
// it is strictly closer to the lock position than the primary-only
// offset.
func (g *Guider) refineMultiStar(img *star.Image, primaryOffset geom.Point) geom.Point {
	primarySt := star.Find(img, int(g.prevPosition.X), int(g.prevPosition.Y), g.detect)
	if primarySt.Result != star.FindOK || primarySt.SNR <= 0 {
		return primaryOffset
	}

	sigmaX := 0.0
	if g.multi.primarySamples >= 2 {
		sigmaX = math.Sqrt(g.multi.primaryVarX / float64(g.multi.primarySamples))
	}

	sumX, sumY, sumW := primaryOffset.X*primarySt.SNR, primaryOffset.Y*primarySt.SNR, primarySt.SNR

	for i := range g.multi.secondaries {
		s := &g.multi.secondaries[i]
		if s.lost {
			continue
		}

		expected := g.prevPosition.Add(s.offsetFromPrimary)
		seed := s.lastKnown
		found := star.Find(img, int(seed.X), int(seed.Y), star.Params{
			SearchRegionHalf: secondaryDetectHalf,
			MinHFD: g.detect.MinHFD,
			MaxHFD: g.detect.MaxHFD,
			SaturationLevel: g.detect.SaturationLevel,
			MinMass: g.detect.MinMass,
			MinSNR: g.detect.MinSNR,
		})
		if found.Result != star.FindOK {
			s.missStreak++
			if s.missStreak >= secondaryMissResetFrames {
				s.lastKnown = expected
				s.missStreak = 0
				s.zeroMotionStreak = 0
			}
			continue
		}

		motion, _ := found.Position.Distance(s.lastKnown)
		if motion == 0 {
			s.zeroMotionStreak++
			if s.zeroMotionStreak >= secondaryDropFrames {
				s.lost = true
				continue
			}
		} else {
			s.zeroMotionStreak = 0
		}

		if sigmaX > 0 && motion > secondaryMissSigma*sigmaX {
			s.missStreak++
			if s.missStreak >= secondaryMissResetFrames {
				s.lastKnown = found.Position
				s.missStreak = 0
			}
			continue
		}
		s.missStreak = 0
		s.lastKnown = found.Position

		secOffset := found.Position.Sub(expected).Add(primaryOffset)
		weight := found.SNR / primarySt.SNR
		sumX += secOffset.X * weight
		sumY += secOffset.Y * weight
		sumW += weight
	}

	if sumW <= 0 {
		return primaryOffset
	}
	refined := geom.New(sumX/sumW, sumY/sumW)
	if refined.Magnitude() < primaryOffset.Magnitude() {
		return refined
	}
	return primaryOffset
}
