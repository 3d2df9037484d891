package process

import (
	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/designmat"
)

// Base carries the shared structure of a process: the three design
// matrices over a named set of state elements, the dynamic/fixed
// partition and the declared batch keys. Concrete processes embed Base
// and declare their structure through its Set/Adjust methods.
type Base struct {
	id            string
	stateElements []string
	dynamic       []string
	fixed         []string
	batchKeys     []string
	transition    *designmat.DesignMatrix
	measure       *designmat.DesignMatrix
	variance      *designmat.DesignMatrix
	params        map[string]statespace.Param
}

// BaseOption configures Base construction.
type BaseOption func(*Base)

// WithDynamic restricts the elements carrying process variance.
// The default is all state elements.
func WithDynamic(elements ...string) BaseOption {
	return func(b *Base) { b.dynamic = elements }
}

// WithFixed marks elements held at their initial mean: they get
// neither process variance nor initial variance. The default is none.
func WithFixed(elements ...string) BaseOption {
	return func(b *Base) { b.fixed = elements }
}

// WithBatchKeys declares the batch-data keys the process consumes.
func WithBatchKeys(keys ...string) BaseOption {
	return func(b *Base) { b.batchKeys = keys }
}

// NewBase creates new Base for the given process id and ordered state
// elements.
// It returns error if the id is empty, the elements are empty or
// contain duplicates, the dynamic or fixed sets name unknown elements,
// or the fixed and dynamic sets overlap.
func NewBase(id string, elements []string, opts ...BaseOption) (*Base, error) {
	if id == "" {
		return nil, statespace.Structuralf("process id must not be empty")
	}
	if len(elements) == 0 {
		return nil, statespace.Structuralf("process %q has no state elements", id)
	}

	b := &Base{
		id:            id,
		stateElements: append([]string(nil), elements...),
		params:        make(map[string]statespace.Param),
	}
	b.dynamic = b.stateElements

	for _, opt := range opts {
		opt(b)
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	var err error
	if b.transition, err = designmat.New("transition", elements, elements); err != nil {
		return nil, err
	}
	// measures are registered by name after construction, so the
	// measurement matrix starts with no rows
	if b.measure, err = designmat.New("measure", nil, elements); err != nil {
		return nil, err
	}
	if len(b.dynamic) > 0 {
		if b.variance, err = designmat.New("variance", b.dynamic, b.dynamic); err != nil {
			return nil, err
		}
		// multiplier defaults to exp(0) = 1 on the diagonal
		for _, e := range b.dynamic {
			if err := b.variance.Assign(e, e, statespace.Fixed(0.0), designmat.Exp, false); err != nil {
				return nil, err
			}
		}
	}

	return b, nil
}

func (b *Base) validate() error {
	seen := make(map[string]bool, len(b.stateElements))
	for _, e := range b.stateElements {
		if seen[e] {
			return statespace.Structuralf("process %q has duplicate state element %q", b.id, e)
		}
		seen[e] = true
	}

	for _, e := range b.dynamic {
		if !seen[e] {
			return statespace.Structuralf("process %q marks unknown element %q dynamic", b.id, e)
		}
	}
	fixed := make(map[string]bool, len(b.fixed))
	for _, e := range b.fixed {
		if !seen[e] {
			return statespace.Structuralf("process %q marks unknown element %q fixed", b.id, e)
		}
		fixed[e] = true
	}
	for _, e := range b.dynamic {
		if fixed[e] {
			return statespace.Structuralf("process %q: element %q is both fixed and dynamic", b.id, e)
		}
	}

	return nil
}

// ID returns the process id.
func (b *Base) ID() string { return b.id }

// StateElements returns the ordered state element names.
func (b *Base) StateElements() []string {
	return append([]string(nil), b.stateElements...)
}

// DynamicStateElements returns the elements with process variance.
func (b *Base) DynamicStateElements() []string {
	return append([]string(nil), b.dynamic...)
}

// FixedStateElements returns the elements held at their initial mean.
func (b *Base) FixedStateElements() []string {
	return append([]string(nil), b.fixed...)
}

// Measures returns the measures registered so far, in registration order.
func (b *Base) Measures() []string {
	return b.measure.Rows()
}

// BatchKeys declares the batch-data keys the process consumes.
func (b *Base) BatchKeys() []string {
	return append([]string(nil), b.batchKeys...)
}

// Params returns the process's registered parameters keyed by name.
func (b *Base) Params() map[string]statespace.Param {
	out := make(map[string]statespace.Param, len(b.params))
	for k, v := range b.params {
		out[k] = v
	}

	return out
}

// RegisterParam records a trainable parameter under the given name so
// the joint design can expose it.
func (b *Base) RegisterParam(name string, p statespace.Param) {
	b.params[name] = p
}

// DeclareBatchKeys appends batch-data keys to the declared set. Use it
// when layering adjustments that read batch data onto an existing
// process.
func (b *Base) DeclareBatchKeys(keys ...string) {
	b.batchKeys = append(b.batchKeys, keys...)
}

// RegisterMeasure appends a measure row to the measurement matrix.
// Concrete AddMeasure implementations call this before assigning the
// measure's cells.
func (b *Base) RegisterMeasure(measure string) error {
	return b.measure.AddRow(measure)
}

// SetTransition assigns the transition cell from one element to
// another.
func (b *Base) SetTransition(from, to string, value statespace.Param, link designmat.Link, overwrite bool) error {
	return b.transition.Assign(to, from, value, link, overwrite)
}

// AdjustTransition appends a batch-varying adjustment to a transition
// cell.
func (b *Base) AdjustTransition(from, to string, adj designmat.Adjustment, checkSlow bool) error {
	return b.transition.Adjust(to, from, adj, checkSlow)
}

// SetMeasure assigns the measurement cell mapping a state element to a
// registered measure.
func (b *Base) SetMeasure(measure, element string, value statespace.Param, link designmat.Link, overwrite bool) error {
	return b.measure.Assign(measure, element, value, link, overwrite)
}

// AdjustMeasure appends a batch-varying adjustment to a measurement
// cell.
func (b *Base) AdjustMeasure(measure, element string, adj designmat.Adjustment, checkSlow bool) error {
	return b.measure.Adjust(measure, element, adj, checkSlow)
}

// AdjustVariance appends a batch-varying adjustment to a dynamic
// element's variance multiplier. The variance matrix is Exp-linked, so
// adjustments are in log space and the multiplier stays positive.
func (b *Base) AdjustVariance(element string, adj designmat.Adjustment, checkSlow bool) error {
	if b.variance == nil {
		return statespace.Structuralf("process %q has no dynamic state elements", b.id)
	}

	return b.variance.Adjust(element, element, adj, checkSlow)
}

// InitialStateMeans returns the groups x elements matrix of initial
// state means, broadcasting one mean parameter per element across
// groups. Processes whose initial state depends on the batch, such as
// a seasonal process aligning its phase to each group's start time,
// override this.
func (b *Base) InitialStateMeans(means []statespace.Param, batch designmat.Batch) (*mat.Dense, error) {
	if len(means) != len(b.stateElements) {
		return nil, statespace.Dimensionf("process %q: %d initial means for %d state elements", b.id, len(means), len(b.stateElements))
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	out := mat.NewDense(batch.Groups, len(means), nil)
	for g := 0; g < batch.Groups; g++ {
		for i, p := range means {
			out.Set(g, i, p.Value())
		}
	}

	return out, nil
}

// ForBatch materializes the process for the given batch shape. The
// template is not mutated; the returned Batched owns its matrices.
// It returns StructuralError if no measures have been registered, the
// transition matrix is empty, or a declared batch key is absent from
// the batch.
func (b *Base) ForBatch(batch designmat.Batch) (*Batched, error) {
	if len(b.Measures()) == 0 {
		return nil, statespace.Structuralf("process %q has no measures", b.id)
	}
	if b.transition.Empty() {
		return nil, statespace.Structuralf("process %q has no transitions", b.id)
	}
	for _, key := range b.batchKeys {
		if _, ok := batch.Data[key]; !ok {
			return nil, statespace.Structuralf("process %q requires batch data %q", b.id, key)
		}
	}

	// unknown keys are dropped; only declared data reaches the cells
	batch = batch.WithData(b.batchKeys)

	out := &Batched{
		id:            b.id,
		stateElements: b.StateElements(),
		dynamic:       b.DynamicStateElements(),
		fixed:         b.FixedStateElements(),
		measures:      b.Measures(),
	}

	var err error
	if out.transition, err = b.transition.ForBatch(batch); err != nil {
		return nil, err
	}
	if out.measure, err = b.measure.ForBatch(batch); err != nil {
		return nil, err
	}
	if b.variance != nil {
		if out.varianceMulti, err = b.variance.ForBatch(batch); err != nil {
			return nil, err
		}
	}

	return out, nil
}
