package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/go-statespace/statespace/rnd"
)

func TestGaussian(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{1.0, 0.0, 0.0, 4.0})
	g, err := NewGaussian(cov, rnd.NewRand(1))
	assert.NoError(err)
	assert.NotNil(g)

	s := g.Sample()
	assert.Equal(2, s.Len())

	c := g.Cov()
	assert.Equal(2, c.SymmetricDim())
	assert.Equal(4.0, c.At(1, 1))

	n := 5000
	draws := make([]float64, n)
	for i := 0; i < n; i++ {
		draws[i] = g.Sample().AtVec(1)
	}
	assert.InDelta(4.0, stat.Variance(draws, nil), 0.5)

	// singular covariance is rejected
	g, err = NewGaussian(mat.NewSymDense(2, []float64{1, 0, 0, 0}), rnd.NewRand(1))
	assert.Nil(g)
	assert.Error(err)
}

func TestZero(t *testing.T) {
	assert := assert.New(t)

	z, err := NewZero(3)
	assert.NoError(err)

	s := z.Sample()
	assert.Equal(3, s.Len())
	assert.Equal(0.0, mat.Sum(s))
	assert.Equal(0.0, mat.Sum(z.Cov()))

	z, err = NewZero(0)
	assert.Nil(z)
	assert.Error(err)
}
