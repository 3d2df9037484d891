// Package noise provides noise sources for state-space simulation.
package noise

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is a zero-mean Gaussian noise source with a positive
// definite covariance. Measurement noise is the typical use: the
// measurement covariance R is strictly positive definite, so the
// faster Cholesky-backed sampler applies. For possibly-singular
// covariances use rnd.WithCovN instead.
type Gaussian struct {
	dist *distmv.Normal
	cov  *mat.SymDense
}

// NewGaussian creates new zero-mean Gaussian noise with covariance cov,
// drawing randomness from rng.
// It returns error if cov is not positive definite.
func NewGaussian(cov mat.Symmetric, rng *rand.Rand) (*Gaussian, error) {
	n := cov.SymmetricDim()
	c := mat.NewSymDense(n, nil)
	c.CopySym(cov)

	dist, ok := distmv.NewNormal(make([]float64, n), c, rng)
	if !ok {
		return nil, fmt.Errorf("covariance matrix is not positive definite")
	}

	return &Gaussian{
		dist: dist,
		cov:  c,
	}, nil
}

// Sample draws one sample and returns it.
func (g *Gaussian) Sample() *mat.VecDense {
	r := g.dist.Rand(nil)
	return mat.NewVecDense(len(r), r)
}

// Cov returns the noise covariance.
func (g *Gaussian) Cov() mat.Symmetric {
	cov := mat.NewSymDense(g.cov.SymmetricDim(), nil)
	cov.CopySym(g.cov)

	return cov
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nCov=%v\n}", mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
