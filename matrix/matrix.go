// Package matrix provides small dense-matrix helpers shared by the
// design assembly and the filtering algebra.
package matrix

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RowSums returns a slice containing m row sums.
// It panics if m is nil.
func RowSums(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	sum := make([]float64, rows)

	for i := 0; i < rows; i++ {
		sum[i] = floats.Sum(m.RawRowView(i))
	}

	return sum
}

// ColSums returns a slice containing m column sums.
// It panics if m is nil.
func ColSums(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	sum := make([]float64, cols)

	for i := 0; i < cols; i++ {
		sum[i] = mat.Sum(m.ColView(i))
	}

	return sum
}

// BlockDiag places the given square blocks on the diagonal of a new
// dense matrix, zero elsewhere, in the order given. Blocks may have
// different sizes. It panics if any block is nil or non-square.
func BlockDiag(blocks ...*mat.Dense) *mat.Dense {
	size := 0
	for _, b := range blocks {
		r, c := b.Dims()
		if r != c {
			panic("matrix: BlockDiag block is not square")
		}
		size += r
	}

	out := mat.NewDense(size, size, nil)
	off := 0
	for _, b := range blocks {
		n, _ := b.Dims()
		if n > 0 {
			out.Slice(off, off+n, off, off+n).(*mat.Dense).Copy(b)
		}
		off += n
	}

	return out
}

// ToSym copies the upper triangle of m into a new symmetric matrix.
// Any asymmetry in m, for example from accumulated floating point
// error in an F*P*F' product, is discarded. It panics if m is not
// square.
func ToSym(m *mat.Dense) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic("matrix: ToSym matrix is not square")
	}

	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, m.At(i, j))
		}
	}

	return s
}
