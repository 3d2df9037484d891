// Package process defines reusable state-space sub-models. A process
// contributes a block of named latent state elements, their transition
// dynamics, their mapping to observed measures and their process-noise
// structure. Processes are immutable templates once constructed; a
// batch build produces a Batched value holding the materialized
// matrices and never touches the template.
package process

import (
	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/designmat"
)

// Process is a sub-model template consumed by the joint design.
//
// Concrete processes embed Base for the bookkeeping and must implement
// AddMeasure, which registers the measure and at least one
// measurement-matrix assignment for it.
type Process interface {
	// ID returns the unique process id
	ID() string
	// StateElements returns the ordered state element names
	StateElements() []string
	// DynamicStateElements returns the elements with process variance
	DynamicStateElements() []string
	// FixedStateElements returns the elements held at their initial
	// mean: no process variance and no initial variance
	FixedStateElements() []string
	// Measures returns the measures registered so far, in
	// registration order
	Measures() []string
	// AddMeasure registers a named measure with the process
	AddMeasure(measure string) error
	// BatchKeys declares the batch-data keys the process consumes.
	// The joint design forwards only declared keys; a declared key
	// absent from the batch fails the build.
	BatchKeys() []string
	// ForBatch materializes the process for a batch shape
	ForBatch(b designmat.Batch) (*Batched, error)
	// InitialStateMeans returns the groups x elements matrix of
	// initial state means, given one mean parameter per element
	InitialStateMeans(means []statespace.Param, b designmat.Batch) (*mat.Dense, error)
	// Params returns the process's own trainable parameters keyed
	// by name
	Params() map[string]statespace.Param
}

// Batched is a process materialized for one batch shape. It owns only
// its matrices; the template it came from is never aliased.
type Batched struct {
	id            string
	stateElements []string
	dynamic       []string
	fixed         []string
	measures      []string
	transition    *designmat.BatchMat
	measure       *designmat.BatchMat
	varianceMulti *designmat.BatchMat
}

// ID returns the process id.
func (b *Batched) ID() string { return b.id }

// StateElements returns the ordered state element names.
func (b *Batched) StateElements() []string { return b.stateElements }

// DynamicStateElements returns the elements with process variance.
func (b *Batched) DynamicStateElements() []string { return b.dynamic }

// FixedStateElements returns the elements held at their initial mean.
func (b *Batched) FixedStateElements() []string { return b.fixed }

// Measures returns the registered measures in registration order.
func (b *Batched) Measures() []string { return b.measures }

// Transition returns the materialized transition matrix, indexed
// [to-element, from-element].
func (b *Batched) Transition() *designmat.BatchMat { return b.transition }

// Measure returns the materialized measurement matrix, indexed
// [measure, element] with measures in registration order.
func (b *Batched) Measure() *designmat.BatchMat { return b.measure }

// VarianceMulti returns the materialized variance-multiplier matrix
// over the dynamic elements, or nil if the process has none.
func (b *Batched) VarianceMulti() *designmat.BatchMat { return b.varianceMulti }
