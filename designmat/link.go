package designmat

import "math"

// Link is an inverse-link transform applied to a design-matrix cell
// after its base value and adjustments have been summed. Links form a
// small closed set so a materialized matrix stays analyzable: Identity,
// Exp, or a named custom transform.
type Link struct {
	name string
	fn   func(float64) float64
}

// Identity is the identity link.
var Identity = Link{name: "identity"}

// Exp is the exponential link. It maps an unconstrained value to a
// strictly positive one, which is what variance cells require.
var Exp = Link{name: "exp", fn: math.Exp}

// CustomLink creates new named link backed by fn. The name identifies
// the transform in validation messages; fn must be defined on all of
// the reals.
func CustomLink(name string, fn func(float64) float64) Link {
	return Link{name: name, fn: fn}
}

// Name returns the link name.
func (l Link) Name() string {
	if l.name == "" {
		return "identity"
	}

	return l.name
}

func (l Link) apply(v float64) float64 {
	if l.fn == nil {
		return v
	}

	return l.fn(v)
}
