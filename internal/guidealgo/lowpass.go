package guidealgo

// LowPass is an exponential moving average of the measured error,
// output = beta * EMA.
type LowPass struct {
	Beta float64

	minMove float64
	ema float64
}

// NewLowPass constructs a LowPass algorithm with the given EMA gain.
func NewLowPass(beta, minMove float64) *LowPass {
	return &LowPass{Beta: beta, minMove: minMove}
}

func (a *LowPass) Result(errorPixels float64) float64 {
	a.ema += a.Beta * (errorPixels - a.ema)
	return deadZone(a.Beta*a.ema, a.minMove)
}

func (a *LowPass) DeduceResult() float64 { return a.Beta * a.ema }

func (a *LowPass) GuidingPaused() {}
func (a *LowPass) GuidingResumed() {}
func (a *LowPass) GuidingDithered(amount float64) {
	a.ema = 0
}
func (a *LowPass) GuidingDitherSettleDone(bool) {}
func (a *LowPass) GuidingStopped() { a.ResetParams() }
func (a *LowPass) ResetParams() { a.ema = 0 }
func (a *LowPass) GetMinMove() float64 { return a.minMove }
func (a *LowPass) SetMinMove(m float64) { a.minMove = m }

// LowPass2 is a two-stage low-pass: the output of one EMA stage feeds a
// second, and output = beta * second-stage EMA, giving heavier damping
// than LowPass.
type LowPass2 struct {
	Beta float64

	minMove float64
	stage1 float64
	stage2 float64
}

// NewLowPass2 constructs a LowPass2 algorithm with the given per-stage
// EMA gain.
func NewLowPass2(beta, minMove float64) *LowPass2 {
	return &LowPass2{Beta: beta, minMove: minMove}
}

func (a *LowPass2) Result(errorPixels float64) float64 {
	a.stage1 += a.Beta * (errorPixels - a.stage1)
	a.stage2 += a.Beta * (a.stage1 - a.stage2)
	return deadZone(a.Beta*a.stage2, a.minMove)
}

func (a *LowPass2) DeduceResult() float64 { return a.Beta * a.stage2 }

func (a *LowPass2) GuidingPaused() {}
func (a *LowPass2) GuidingResumed() {}
func (a *LowPass2) GuidingDithered(amount float64) {
	a.stage1, a.stage2 = 0, 0
}
func (a *LowPass2) GuidingDitherSettleDone(bool) {}
func (a *LowPass2) GuidingStopped() { a.ResetParams() }
func (a *LowPass2) ResetParams() { a.stage1, a.stage2 = 0, 0 }
func (a *LowPass2) GetMinMove() float64 { return a.minMove }
func (a *LowPass2) SetMinMove(m float64) { a.minMove = m }
