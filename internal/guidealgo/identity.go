package guidealgo

// Identity is the simplest variant: output = input, with no dead zone.
// Its only state is the last output, kept for DeduceResult.
type Identity struct {
	minMove float64
	lastOut float64
}

// NewIdentity constructs an Identity algorithm.
func NewIdentity() *Identity {
	return &Identity{}
}

func (a *Identity) Result(errorPixels float64) float64 {
	a.lastOut = errorPixels
	return errorPixels
}

func (a *Identity) DeduceResult() float64 { return a.lastOut }

func (a *Identity) GuidingPaused() {}
func (a *Identity) GuidingResumed() {}
func (a *Identity) GuidingDithered(amount float64) { a.lastOut = 0 }
func (a *Identity) GuidingDitherSettleDone(bool) {}
func (a *Identity) GuidingStopped() { a.ResetParams() }
func (a *Identity) ResetParams() { a.lastOut = 0 }
func (a *Identity) GetMinMove() float64 { return a.minMove }
func (a *Identity) SetMinMove(m float64) { a.minMove = m }
