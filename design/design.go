// Package design assembles independent processes into one joint
// state-space model. The design owns the global measure ordering, the
// offset of every process's block in the joint state vector, and the
// variance parameters shared across the model; its ForBatch produces
// the batched transition, measurement and covariance matrices the
// filter consumes.
package design

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/process"
)

// default log-variances: diffuse initial state, modest process and
// measurement noise
const (
	defaultLogProcessVar = -2.3025850929940455 // log(0.1)
	defaultLogMeasureVar = 0.0                 // log(1.0)
	defaultLogInitVar    = 9.210340371976184   // log(1e4)
)

// Slice is a process's half-open offset range in the joint state
// vector.
type Slice struct {
	Start int
	End   int
}

// Design is the joint assembly of all processes' matrices into one
// state-space model. It is an immutable template: batch builds never
// mutate it and may run concurrently.
type Design struct {
	processes  []process.Process
	measures   []string
	measureIdx map[string]int
	slices     map[string]Slice
	stateSize  int

	procVar    map[string]statespace.Param
	initVar    map[string]statespace.Param
	initMean   map[string][]statespace.Param
	measureVar []statespace.Param
	measureCov func() *mat.SymDense
}

// Option configures a Design.
type Option func(*Design) error

func paramKey(processID, element string) string {
	return processID + "." + element
}

// WithProcessVar binds the log-variance parameter of a dynamic state
// element. The design reads it through the exponential link on every
// batch build.
func WithProcessVar(processID, element string, p statespace.Param) Option {
	return func(d *Design) error {
		k := paramKey(processID, element)
		if _, ok := d.procVar[k]; !ok {
			return statespace.Structuralf("no dynamic state element %q in process %q", element, processID)
		}
		d.procVar[k] = p

		return nil
	}
}

// WithInitialVar binds the log-variance parameter of a state element's
// initial distribution. Fixed elements have no initial variance and
// cannot be bound.
func WithInitialVar(processID, element string, p statespace.Param) Option {
	return func(d *Design) error {
		k := paramKey(processID, element)
		if _, ok := d.initVar[k]; !ok {
			return statespace.Structuralf("no initial variance for element %q in process %q", element, processID)
		}
		d.initVar[k] = p

		return nil
	}
}

// WithInitialMean binds the initial mean parameter of a state element.
func WithInitialMean(processID, element string, p statespace.Param) Option {
	return func(d *Design) error {
		for _, proc := range d.processes {
			if proc.ID() != processID {
				continue
			}
			for i, e := range proc.StateElements() {
				if e == element {
					d.initMean[processID][i] = p
					return nil
				}
			}
			return statespace.Structuralf("no state element %q in process %q", element, processID)
		}

		return statespace.Structuralf("no process %q in design", processID)
	}
}

// WithMeasureVar binds the log-variance parameter of a measure's
// observation noise.
func WithMeasureVar(measure string, p statespace.Param) Option {
	return func(d *Design) error {
		i, ok := d.measureIdx[measure]
		if !ok {
			return statespace.Structuralf("no measure %q in design", measure)
		}
		d.measureVar[i] = p

		return nil
	}
}

// WithMeasureCov replaces the default diagonal measurement covariance
// with a full covariance source. The source is read on every batch
// build and must return a matrix over the design's measures.
func WithMeasureCov(src func() *mat.SymDense) Option {
	return func(d *Design) error {
		if src == nil {
			return statespace.Structuralf("nil measurement covariance source")
		}
		d.measureCov = src

		return nil
	}
}

// New creates new Design from the given processes and global measures.
// Processes must already have their measures registered via
// AddMeasure.
// It returns error if process ids or measures are duplicated, a
// process declares a measure outside the design's measure list, or a
// design measure is claimed by no process.
func New(processes []process.Process, measures []string, opts ...Option) (*Design, error) {
	if len(processes) == 0 {
		return nil, statespace.Structuralf("design needs at least one process")
	}
	if len(measures) == 0 {
		return nil, statespace.Structuralf("design needs at least one measure")
	}

	d := &Design{
		processes:  append([]process.Process(nil), processes...),
		measures:   append([]string(nil), measures...),
		measureIdx: make(map[string]int, len(measures)),
		slices:     make(map[string]Slice, len(processes)),
		procVar:    make(map[string]statespace.Param),
		initVar:    make(map[string]statespace.Param),
		initMean:   make(map[string][]statespace.Param),
	}

	for i, m := range measures {
		if _, ok := d.measureIdx[m]; ok {
			return nil, statespace.Structuralf("duplicate measure %q", m)
		}
		d.measureIdx[m] = i
	}

	claimed := make(map[string]bool, len(measures))
	offset := 0
	for _, p := range processes {
		id := p.ID()
		if _, ok := d.slices[id]; ok {
			return nil, statespace.Structuralf("duplicate process id %q", id)
		}

		for _, m := range p.Measures() {
			if _, ok := d.measureIdx[m]; !ok {
				return nil, statespace.Structuralf("process %q measures %q which is not a design measure", id, m)
			}
			claimed[m] = true
		}

		elements := p.StateElements()
		d.slices[id] = Slice{Start: offset, End: offset + len(elements)}
		offset += len(elements)

		fixed := make(map[string]bool)
		for _, e := range p.FixedStateElements() {
			fixed[e] = true
		}
		for _, e := range p.DynamicStateElements() {
			d.procVar[paramKey(id, e)] = statespace.NewVar(defaultLogProcessVar)
		}
		means := make([]statespace.Param, len(elements))
		for i, e := range elements {
			means[i] = statespace.NewVar(0.0)
			if !fixed[e] {
				d.initVar[paramKey(id, e)] = statespace.NewVar(defaultLogInitVar)
			}
		}
		d.initMean[id] = means
	}
	d.stateSize = offset

	for _, m := range measures {
		if !claimed[m] {
			return nil, statespace.Structuralf("measure %q is not claimed by any process", m)
		}
	}

	d.measureVar = make([]statespace.Param, len(measures))
	for i := range d.measureVar {
		d.measureVar[i] = statespace.NewVar(defaultLogMeasureVar)
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// StateSize returns the joint state vector length.
func (d *Design) StateSize() int { return d.stateSize }

// MeasureSize returns the number of measures.
func (d *Design) MeasureSize() int { return len(d.measures) }

// Measures returns the global measure ordering.
func (d *Design) Measures() []string {
	return append([]string(nil), d.measures...)
}

// Processes returns the processes in registration order.
func (d *Design) Processes() []process.Process {
	return append([]process.Process(nil), d.processes...)
}

// SliceOf returns the joint state vector slice assigned to the given
// process.
func (d *Design) SliceOf(processID string) (Slice, bool) {
	s, ok := d.slices[processID]
	return s, ok
}

// Params returns every trainable parameter of the design keyed by a
// stable name: the design-owned variance and initial-state parameters
// plus each process's own parameters.
func (d *Design) Params() map[string]statespace.Param {
	out := make(map[string]statespace.Param)
	for k, p := range d.procVar {
		out["process_var:"+k] = p
	}
	for k, p := range d.initVar {
		out["init_var:"+k] = p
	}
	for id, means := range d.initMean {
		elements := d.elementsOf(id)
		for i, p := range means {
			out["init_mean:"+paramKey(id, elements[i])] = p
		}
	}
	for i, p := range d.measureVar {
		out["measure_var:"+d.measures[i]] = p
	}
	for _, proc := range d.processes {
		for name, p := range proc.Params() {
			out[fmt.Sprintf("process:%s:%s", proc.ID(), name)] = p
		}
	}

	return out
}

func (d *Design) elementsOf(processID string) []string {
	for _, p := range d.processes {
		if p.ID() == processID {
			return p.StateElements()
		}
	}

	return nil
}

func expVal(p statespace.Param) float64 {
	return math.Exp(p.Value())
}
