package guidealgo

// ResistSwitch is a hysteretic sign latch: it resists flipping its
// output's sign until RequiredAgreement consecutive frames agree on
// the new sign, with the shared dead zone below MinMove.
type ResistSwitch struct {
	RequiredAgreement int

	minMove float64
	latchedSign float64
	streakSign float64
	streakLen int
	lastOut float64
}

// NewResistSwitch constructs a ResistSwitch algorithm requiring
// requiredAgreement consecutive same-sign frames before the latch
// flips.
func NewResistSwitch(requiredAgreement int, minMove float64) *ResistSwitch {
	if requiredAgreement < 1 {
		requiredAgreement = 1
	}
	return &ResistSwitch{RequiredAgreement: requiredAgreement, minMove: minMove}
}

func (a *ResistSwitch) Result(errorPixels float64) float64 {
	gated := deadZone(errorPixels, a.minMove)
	if gated == 0 {
		a.lastOut = 0
		return 0
	}

	s := sign(gated)
	if s == a.latchedSign || a.latchedSign == 0 {
		a.latchedSign = s
		a.streakSign = 0
		a.streakLen = 0
		a.lastOut = gated
		return gated
	}

	// Opposing sign: only flip after RequiredAgreement consecutive
	// frames agree on the new direction.
	if s == a.streakSign {
		a.streakLen++
	} else {
		a.streakSign = s
		a.streakLen = 1
	}

	if a.streakLen >= a.RequiredAgreement {
		a.latchedSign = s
		a.streakSign = 0
		a.streakLen = 0
		a.lastOut = gated
		return gated
	}

	// Resist: hold at zero while the streak builds.
	a.lastOut = 0
	return 0
}

func (a *ResistSwitch) DeduceResult() float64 { return a.lastOut }

func (a *ResistSwitch) GuidingPaused() {}
func (a *ResistSwitch) GuidingResumed() {}
func (a *ResistSwitch) GuidingDithered(amount float64) {
	a.ResetParams()
}
func (a *ResistSwitch) GuidingDitherSettleDone(bool) {}
func (a *ResistSwitch) GuidingStopped() { a.ResetParams() }
func (a *ResistSwitch) ResetParams() {
	a.latchedSign = 0
	a.streakSign = 0
	a.streakLen = 0
	a.lastOut = 0
}
func (a *ResistSwitch) GetMinMove() float64 { return a.minMove }
func (a *ResistSwitch) SetMinMove(m float64) { a.minMove = m }
