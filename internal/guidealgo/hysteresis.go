package guidealgo

// Hysteresis blends the current error with the previous output, with a
// dead zone below MinMove:
//
//	output = (1 - alpha) * input + alpha * previous_output
type Hysteresis struct {
	Alpha float64

	minMove float64
	prevOut float64
}

// NewHysteresis constructs a Hysteresis algorithm with the given
// smoothing weight and dead zone.
func NewHysteresis(alpha, minMove float64) *Hysteresis {
	return &Hysteresis{Alpha: alpha, minMove: minMove}
}

func (a *Hysteresis) Result(errorPixels float64) float64 {
	gated := deadZone(errorPixels, a.minMove)
	out := (1-a.Alpha)*gated + a.Alpha*a.prevOut
	a.prevOut = out
	return out
}

func (a *Hysteresis) DeduceResult() float64 { return a.prevOut }

func (a *Hysteresis) GuidingPaused() {}
func (a *Hysteresis) GuidingResumed() {}
func (a *Hysteresis) GuidingDithered(amount float64) {
	a.prevOut = 0
}
func (a *Hysteresis) GuidingDitherSettleDone(bool) {}
func (a *Hysteresis) GuidingStopped() { a.ResetParams() }
func (a *Hysteresis) ResetParams() { a.prevOut = 0 }
func (a *Hysteresis) GetMinMove() float64 { return a.minMove }
func (a *Hysteresis) SetMinMove(m float64) { a.minMove = m }
