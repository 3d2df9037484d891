// Package rnd provides random sampling helpers used by state
// simulation.
package rnd

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// WithCovN draws n random samples from a zero-mean Normal (aka Gaussian)
// distribution with covariance cov, using rng as the source of
// randomness. It returns a matrix which contains the generated samples
// stored in its columns.
// Unlike a Cholesky-based sampler it accepts singular covariance
// matrices: process covariances routinely have zero rows for fixed or
// static state elements.
// It fails with error if n is smaller than 1 or if SVD factorization of
// cov fails.
func WithCovN(cov mat.Symmetric, n int, rng *rand.Rand) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples requested: %d", n)
	}

	// Use SVD instead of Cholesky as Cholesky can be numerically unstable if cov is (almost) singular
	var svd mat.SVD
	ok := svd.Factorize(cov, mat.SVDFull)
	if !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	U := new(mat.Dense)
	svd.UTo(U)
	vals := svd.Values(nil)
	for i := range vals {
		// tiny negative singular values happen for rank-deficient cov
		if vals[i] < 0 {
			vals[i] = 0
		}
		vals[i] = math.Sqrt(vals[i])
	}
	diag := mat.NewDiagDense(len(vals), vals)
	U.Mul(U, diag)

	rows, _ := cov.Dims()
	data := make([]float64, rows*n)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	samples := mat.NewDense(rows, n, data)
	samples.Mul(U, samples)

	return samples, nil
}

// NewRand creates new seeded random source and returns it.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
