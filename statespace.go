// Package statespace provides the shared contracts of a composable,
// batched state-space modelling toolkit: opaque trainable parameter
// handles, the batched time-series container consumed and produced by
// the filters, and the error kinds raised by model construction.
//
// The actual machinery lives in the subpackages: designmat builds
// named sparse design matrices, process defines reusable sub-models,
// design assembles them into one joint state-space model, belief
// implements the Gaussian filtering algebra and kalman drives the
// filtering, forecasting and simulation recursions.
package statespace

// Param is an opaque handle to a scalar model parameter.
//
// Parameters are owned by an external collaborator (an optimizer, a
// config layer, a hand-tuned constant); the core only ever reads them.
// A Param is read anew on every batch build, so an external update is
// picked up by the next ForBatch call.
type Param interface {
	// Value returns the current raw value of the parameter
	Value() float64
}

// Fixed is a constant Param.
type Fixed float64

// Value returns the constant value.
func (f Fixed) Value() float64 { return float64(f) }

// Var is a mutable Param. It is the minimal handle an external
// optimizer can drive: the core reads it via Value, the owner moves it
// via Set. Var is not safe for concurrent mutation while a batch is
// being built.
type Var struct {
	v float64
}

// NewVar creates new Var initialized to v and returns it.
func NewVar(v float64) *Var {
	return &Var{v: v}
}

// Value returns the current value.
func (p *Var) Value() float64 { return p.v }

// Set sets the current value.
func (p *Var) Set(v float64) { p.v = v }
