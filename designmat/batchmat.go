package designmat

import (
	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
)

// BatchMat is a design matrix materialized for one batch shape,
// conceptually indexed [group, time, row, col]. Dimensions a matrix
// does not vary in are broadcast: a fully constant matrix is backed by
// a single shared dense matrix regardless of the batch size.
//
// Matrices returned by At are shared backing storage and must not be
// mutated by the caller.
type BatchMat struct {
	rows      int
	cols      int
	groups    int
	timesteps int
	byGroup   bool
	byTime    bool
	mats      []*mat.Dense
}

// NewBatchMat creates new BatchMat of the given cell dimensions for
// batch b, calling build for every (group, time) index the matrix
// actually varies in. The byGroup and byTime flags control
// broadcasting: a dimension the matrix does not vary in is built once
// at index 0 and shared.
func NewBatchMat(rows, cols int, b Batch, byGroup, byTime bool, build func(g, t int) (*mat.Dense, error)) (*BatchMat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, statespace.Dimensionf("invalid batch matrix dimensions: [%d x %d]", rows, cols)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	bm := &BatchMat{
		rows:      rows,
		cols:      cols,
		groups:    b.Groups,
		timesteps: b.Timesteps,
		byGroup:   byGroup,
		byTime:    byTime,
	}

	ng, nt := 1, 1
	if byGroup {
		ng = b.Groups
	}
	if byTime {
		nt = b.Timesteps
	}

	bm.mats = make([]*mat.Dense, ng*nt)
	for g := 0; g < ng; g++ {
		for t := 0; t < nt; t++ {
			m, err := build(g, t)
			if err != nil {
				return nil, err
			}
			r, c := m.Dims()
			if r != rows || c != cols {
				return nil, statespace.Dimensionf("batch matrix build returned [%d x %d], expected [%d x %d]", r, c, rows, cols)
			}
			bm.mats[g*nt+t] = m
		}
	}

	return bm, nil
}

// Dims returns the per-cell row and column counts.
func (m *BatchMat) Dims() (rows, cols int) {
	return m.rows, m.cols
}

// Batch returns the group and timestep counts the matrix was
// materialized for.
func (m *BatchMat) Batch() (groups, timesteps int) {
	return m.groups, m.timesteps
}

// Varies reports the dimensions the matrix actually varies in.
func (m *BatchMat) Varies() (byGroup, byTime bool) {
	return m.byGroup, m.byTime
}

// At returns the matrix for group g at timestep t. The result is
// shared storage; callers must not mutate it.
func (m *BatchMat) At(g, t int) *mat.Dense {
	if g < 0 || g >= m.groups || t < 0 || t >= m.timesteps {
		panic("designmat: batch matrix index out of range")
	}

	nt := 1
	if m.byTime {
		nt = m.timesteps
	}
	if !m.byGroup {
		g = 0
	}
	if !m.byTime {
		t = 0
	}

	return m.mats[g*nt+t]
}

// Step returns the per-group matrices for timestep t. Groups the
// matrix does not vary in share one backing matrix.
func (m *BatchMat) Step(t int) []*mat.Dense {
	out := make([]*mat.Dense, m.groups)
	for g := 0; g < m.groups; g++ {
		out[g] = m.At(g, t)
	}

	return out
}
