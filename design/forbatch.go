package design

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/designmat"
	"github.com/go-statespace/statespace/matrix"
	"github.com/go-statespace/statespace/process"
)

// ForBatch is the joint design materialized for one batch shape: the
// concatenated-over-time F, H, Q and R matrices plus the initial state
// distribution. A ForBatch is owned by exactly one filtering, forecast
// or simulation call and discarded after use.
type ForBatch struct {
	groups    int
	timesteps int
	stateSize int
	measures  []string

	f *designmat.BatchMat
	h *designmat.BatchMat
	q *designmat.BatchMat
	r *designmat.BatchMat

	initMeans []*mat.VecDense
	initCovs  []*mat.SymDense
}

// ForBatch materializes the joint design for the given batch. Each
// process receives only the batch data keys it declares; unknown keys
// are dropped per process.
func (d *Design) ForBatch(b designmat.Batch) (*ForBatch, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	batched := make([]*process.Batched, len(d.processes))
	for i, p := range d.processes {
		bp, err := p.ForBatch(b)
		if err != nil {
			return nil, err
		}
		batched[i] = bp
	}

	fb := &ForBatch{
		groups:    b.Groups,
		timesteps: b.Timesteps,
		stateSize: d.stateSize,
		measures:  d.Measures(),
	}

	var err error
	if fb.f, err = d.buildF(b, batched); err != nil {
		return nil, err
	}
	if fb.h, err = d.buildH(b, batched); err != nil {
		return nil, err
	}
	if fb.q, err = d.buildQ(b, batched); err != nil {
		return nil, err
	}
	if fb.r, err = d.buildR(b); err != nil {
		return nil, err
	}
	if err = d.buildInitialState(b, fb); err != nil {
		return nil, err
	}

	return fb, nil
}

func (d *Design) buildF(b designmat.Batch, batched []*process.Batched) (*designmat.BatchMat, error) {
	byGroup, byTime := false, false
	for _, bp := range batched {
		g, t := bp.Transition().Varies()
		byGroup, byTime = byGroup || g, byTime || t
	}

	build := func(g, t int) (*mat.Dense, error) {
		blocks := make([]*mat.Dense, len(batched))
		for i, bp := range batched {
			blocks[i] = bp.Transition().At(g, t)
		}

		return matrix.BlockDiag(blocks...), nil
	}

	return designmat.NewBatchMat(d.stateSize, d.stateSize, b, byGroup, byTime, build)
}

func (d *Design) buildH(b designmat.Batch, batched []*process.Batched) (*designmat.BatchMat, error) {
	byGroup, byTime := false, false
	for _, bp := range batched {
		g, t := bp.Measure().Varies()
		byGroup, byTime = byGroup || g, byTime || t
	}

	build := func(g, t int) (*mat.Dense, error) {
		out := mat.NewDense(len(d.measures), d.stateSize, nil)
		for _, bp := range batched {
			s := d.slices[bp.ID()]
			block := bp.Measure().At(g, t)
			for i, m := range bp.Measures() {
				row := d.measureIdx[m]
				for j := 0; j < s.End-s.Start; j++ {
					out.Set(row, s.Start+j, block.At(i, j))
				}
			}
		}

		return out, nil
	}

	return designmat.NewBatchMat(len(d.measures), d.stateSize, b, byGroup, byTime, build)
}

func (d *Design) buildQ(b designmat.Batch, batched []*process.Batched) (*designmat.BatchMat, error) {
	byGroup, byTime := false, false
	for _, bp := range batched {
		if v := bp.VarianceMulti(); v != nil {
			g, t := v.Varies()
			byGroup, byTime = byGroup || g, byTime || t
		}
	}

	build := func(g, t int) (*mat.Dense, error) {
		out := mat.NewDense(d.stateSize, d.stateSize, nil)
		for _, bp := range batched {
			v := bp.VarianceMulti()
			if v == nil {
				continue
			}
			s := d.slices[bp.ID()]
			elemIdx := make(map[string]int, len(bp.StateElements()))
			for i, e := range bp.StateElements() {
				elemIdx[e] = i
			}
			dyn := bp.DynamicStateElements()
			multi := v.At(g, t)
			for i, ei := range dyn {
				vi := expVal(d.procVar[paramKey(bp.ID(), ei)])
				for j, ej := range dyn {
					m := multi.At(i, j)
					if m == 0 {
						continue
					}
					vj := expVal(d.procVar[paramKey(bp.ID(), ej)])
					gi := s.Start + elemIdx[ei]
					gj := s.Start + elemIdx[ej]
					out.Set(gi, gj, sqrtProd(vi, vj)*m)
				}
			}
		}

		return out, nil
	}

	return designmat.NewBatchMat(d.stateSize, d.stateSize, b, byGroup, byTime, build)
}

func (d *Design) buildR(b designmat.Batch) (*designmat.BatchMat, error) {
	m := len(d.measures)

	build := func(_, _ int) (*mat.Dense, error) {
		out := mat.NewDense(m, m, nil)
		if d.measureCov != nil {
			cov := d.measureCov()
			if cov.SymmetricDim() != m {
				return nil, statespace.Dimensionf("measurement covariance is %d x %d, expected %d x %d",
					cov.SymmetricDim(), cov.SymmetricDim(), m, m)
			}
			for i := 0; i < m; i++ {
				for j := 0; j < m; j++ {
					out.Set(i, j, cov.At(i, j))
				}
			}
			return out, nil
		}
		for i := 0; i < m; i++ {
			out.Set(i, i, expVal(d.measureVar[i]))
		}

		return out, nil
	}

	return designmat.NewBatchMat(m, m, b, false, false, build)
}

func (d *Design) buildInitialState(b designmat.Batch, fb *ForBatch) error {
	means := make([]*mat.VecDense, b.Groups)
	for g := range means {
		means[g] = mat.NewVecDense(d.stateSize, nil)
	}

	cov := mat.NewSymDense(d.stateSize, nil)

	for _, p := range d.processes {
		s := d.slices[p.ID()]
		pm, err := p.InitialStateMeans(d.initMean[p.ID()], b)
		if err != nil {
			return err
		}
		for g := 0; g < b.Groups; g++ {
			for j := 0; j < s.End-s.Start; j++ {
				means[g].SetVec(s.Start+j, pm.At(g, j))
			}
		}

		for j, e := range p.StateElements() {
			// fixed elements keep exactly zero initial variance
			if iv, ok := d.initVar[paramKey(p.ID(), e)]; ok {
				cov.SetSym(s.Start+j, s.Start+j, expVal(iv))
			}
		}
	}

	fb.initMeans = means
	fb.initCovs = make([]*mat.SymDense, b.Groups)
	for g := range fb.initCovs {
		// initial covariance is shared across groups
		fb.initCovs[g] = cov
	}

	return nil
}

// Groups returns the batch group count.
func (fb *ForBatch) Groups() int { return fb.groups }

// Timesteps returns the batch timestep count.
func (fb *ForBatch) Timesteps() int { return fb.timesteps }

// StateSize returns the joint state vector length.
func (fb *ForBatch) StateSize() int { return fb.stateSize }

// MeasureSize returns the number of measures.
func (fb *ForBatch) MeasureSize() int { return len(fb.measures) }

// Measures returns the global measure ordering.
func (fb *ForBatch) Measures() []string {
	return append([]string(nil), fb.measures...)
}

// F returns the per-group transition matrices for the step from
// timestep t to t+1.
func (fb *ForBatch) F(t int) []*mat.Dense { return fb.f.Step(t) }

// FAt returns the transition matrix for group g at timestep t.
func (fb *ForBatch) FAt(g, t int) *mat.Dense { return fb.f.At(g, t) }

// HAt returns the measurement matrix for group g at timestep t.
func (fb *ForBatch) HAt(g, t int) *mat.Dense { return fb.h.At(g, t) }

// QAt returns the process covariance for group g at timestep t.
func (fb *ForBatch) QAt(g, t int) *mat.Dense { return fb.q.At(g, t) }

// RAt returns the measurement covariance for group g at timestep t.
func (fb *ForBatch) RAt(g, t int) *mat.Dense { return fb.r.At(g, t) }

// H returns the per-group measurement matrices at timestep t.
func (fb *ForBatch) H(t int) []*mat.Dense { return fb.h.Step(t) }

// Q returns the per-group process covariance matrices for the step
// from timestep t to t+1.
func (fb *ForBatch) Q(t int) []*mat.Dense { return fb.q.Step(t) }

// R returns the per-group measurement covariance matrices at timestep
// t.
func (fb *ForBatch) R(t int) []*mat.Dense { return fb.r.Step(t) }

// InitialMeans returns the per-group initial state means.
func (fb *ForBatch) InitialMeans() []*mat.VecDense { return fb.initMeans }

// InitialCovs returns the per-group initial state covariances.
func (fb *ForBatch) InitialCovs() []*mat.SymDense { return fb.initCovs }

func sqrtProd(a, b float64) float64 {
	if a == b {
		return a
	}

	return math.Sqrt(a) * math.Sqrt(b)
}
