package statespace

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Series is a batch of multivariate time series stored as a dense
// [groups, timesteps, measures] block. Missing observations are
// represented as NaN and skipped by the filter update.
type Series struct {
	groups    int
	timesteps int
	measures  int
	data      []float64
}

// NewSeries creates new zero-filled Series with the given dimensions.
// It returns nil if any dimension is non-positive.
func NewSeries(groups, timesteps, measures int) *Series {
	if groups <= 0 || timesteps <= 0 || measures <= 0 {
		return nil
	}

	return &Series{
		groups:    groups,
		timesteps: timesteps,
		measures:  measures,
		data:      make([]float64, groups*timesteps*measures),
	}
}

// NewSeriesFrom creates new Series backed by a copy of data, which
// must have length groups*timesteps*measures, laid out group-major
// then time-major. It returns error if the length does not match.
func NewSeriesFrom(groups, timesteps, measures int, data []float64) (*Series, error) {
	s := NewSeries(groups, timesteps, measures)
	if s == nil {
		return nil, Dimensionf("invalid series dimensions: [%d x %d x %d]", groups, timesteps, measures)
	}

	if len(data) != len(s.data) {
		return nil, Dimensionf("invalid series data length: %d != %d", len(data), len(s.data))
	}
	copy(s.data, data)

	return s, nil
}

// Dims returns the group, timestep and measure counts.
func (s *Series) Dims() (groups, timesteps, measures int) {
	return s.groups, s.timesteps, s.measures
}

func (s *Series) index(g, t, m int) int {
	if g < 0 || g >= s.groups || t < 0 || t >= s.timesteps || m < 0 || m >= s.measures {
		panic("statespace: series index out of range")
	}

	return g*s.timesteps*s.measures + t*s.measures + m
}

// At returns the value for group g, timestep t and measure m.
func (s *Series) At(g, t, m int) float64 {
	return s.data[s.index(g, t, m)]
}

// Set sets the value for group g, timestep t and measure m.
func (s *Series) Set(g, t, m int, v float64) {
	s.data[s.index(g, t, m)] = v
}

// SetMissing marks the value for group g, timestep t and measure m as missing.
func (s *Series) SetMissing(g, t, m int) {
	s.data[s.index(g, t, m)] = math.NaN()
}

// IsMissing returns true if the value for group g, timestep t and measure m is missing.
func (s *Series) IsMissing(g, t, m int) bool {
	return math.IsNaN(s.data[s.index(g, t, m)])
}

// StepVec returns the observation vector of all measures for group g
// at timestep t. The returned vector is a copy.
func (s *Series) StepVec(g, t int) *mat.VecDense {
	i := s.index(g, t, 0)
	v := make([]float64, s.measures)
	copy(v, s.data[i:i+s.measures])

	return mat.NewVecDense(s.measures, v)
}

// GroupMatrix returns the timesteps x measures matrix of group g.
// The returned matrix is a copy.
func (s *Series) GroupMatrix(g int) *mat.Dense {
	i := s.index(g, 0, 0)
	v := make([]float64, s.timesteps*s.measures)
	copy(v, s.data[i:i+len(v)])

	return mat.NewDense(s.timesteps, s.measures, v)
}
