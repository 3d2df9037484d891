package designmat

import "github.com/go-statespace/statespace"

// Adjustment is an additive, batch-varying contribution to a
// design-matrix cell, layered on top of the cell's base value.
// Adjustments form a closed set of variants rather than arbitrary
// callables: a raw batch input, a parameter-scaled batch input, or a
// plain parameter offset.
type Adjustment interface {
	// eval returns the contribution for group g at timestep t
	eval(b Batch, g, t int) (float64, error)
	// varies reports whether the contribution changes across
	// groups and across timesteps
	varies() (byGroup, byTime bool)
}

type dataAdjustment struct {
	key string
}

// FromData creates an adjustment that reads the named batch input
// directly: the contribution for group g at timestep t is
// Data[key][g][t].
func FromData(key string) Adjustment {
	return &dataAdjustment{key: key}
}

func (a *dataAdjustment) eval(b Batch, g, t int) (float64, error) {
	return b.DataAt(a.key, g, t)
}

func (a *dataAdjustment) varies() (bool, bool) { return true, true }

type scaledAdjustment struct {
	key  string
	coef statespace.Param
}

// Scaled creates an adjustment that multiplies the named batch input
// by a coefficient parameter: coef * Data[key][g][t]. This is the
// regression-style adjustment: the input is data, the coefficient is
// trainable.
func Scaled(key string, coef statespace.Param) Adjustment {
	return &scaledAdjustment{key: key, coef: coef}
}

func (a *scaledAdjustment) eval(b Batch, g, t int) (float64, error) {
	v, err := b.DataAt(a.key, g, t)
	if err != nil {
		return 0, err
	}

	return a.coef.Value() * v, nil
}

func (a *scaledAdjustment) varies() (bool, bool) { return true, true }

type valueAdjustment struct {
	p statespace.Param
}

// Value creates an adjustment that contributes a bare parameter,
// constant across groups and timesteps. A constant adjustment is
// normally better expressed as an assignment, so Adjust rejects it
// unless the slow-path check is disabled.
func Value(p statespace.Param) Adjustment {
	return &valueAdjustment{p: p}
}

func (a *valueAdjustment) eval(_ Batch, _, _ int) (float64, error) {
	return a.p.Value(), nil
}

func (a *valueAdjustment) varies() (bool, bool) { return false, false }
