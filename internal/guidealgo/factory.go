package guidealgo

import "fmt"

// Params bundles the tuning values a New call needs, independent of
// which variant is selected; unused fields are ignored by variants
// that do not need them.
type Params struct {
	MinMove float64
	Alpha float64
	Beta float64
	RequiredAgreement int
}

// New constructs the named variant.
func New(name string, p Params) (Algorithm, error) {
	switch name {
	case "identity":
		a := NewIdentity()
		a.SetMinMove(p.MinMove)
		return a, nil
	case "hysteresis":
		return NewHysteresis(p.Alpha, p.MinMove), nil
	case "low-pass":
		return NewLowPass(p.Beta, p.MinMove), nil
	case "low-pass-2":
		return NewLowPass2(p.Beta, p.MinMove), nil
	case "resist-switch":
		return NewResistSwitch(p.RequiredAgreement, p.MinMove), nil
	default:
		return nil, fmt.Errorf("guidealgo: unknown algorithm %q", name)
	}
}
