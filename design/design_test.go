package design

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/designmat"
	"github.com/go-statespace/statespace/matrix"
	"github.com/go-statespace/statespace/process"
)

func newTrend(t *testing.T, id string, measures ...string) *process.LocalTrend {
	p, err := process.NewLocalTrend(id, nil)
	assert.NoError(t, err)
	for _, m := range measures {
		assert.NoError(t, p.AddMeasure(m))
	}

	return p
}

func newLevel(t *testing.T, id string, measures ...string) *process.LocalLevel {
	p, err := process.NewLocalLevel(id)
	assert.NoError(t, err)
	for _, m := range measures {
		assert.NoError(t, p.AddMeasure(m))
	}

	return p
}

func newBatch(groups, timesteps int) designmat.Batch {
	return designmat.Batch{Groups: groups, Timesteps: timesteps}
}

func TestNewValidation(t *testing.T) {
	assert := assert.New(t)

	var structural *statespace.StructuralError

	d, err := New(nil, []string{"y"})
	assert.Nil(d)
	assert.True(errors.As(err, &structural))

	d, err = New([]process.Process{newLevel(t, "level", "y")}, nil)
	assert.Nil(d)
	assert.True(errors.As(err, &structural))

	// duplicate process ids
	d, err = New([]process.Process{newLevel(t, "p", "y"), newLevel(t, "p", "y")}, []string{"y"})
	assert.Nil(d)
	assert.True(errors.As(err, &structural))

	// duplicate measures
	d, err = New([]process.Process{newLevel(t, "p", "y")}, []string{"y", "y"})
	assert.Nil(d)
	assert.True(errors.As(err, &structural))

	// a process measure outside the design measures
	d, err = New([]process.Process{newLevel(t, "p", "z")}, []string{"y"})
	assert.Nil(d)
	assert.True(errors.As(err, &structural))

	// a design measure claimed by no process
	d, err = New([]process.Process{newLevel(t, "p", "y")}, []string{"y", "z"})
	assert.Nil(d)
	assert.True(errors.As(err, &structural))

	d, err = New([]process.Process{newLevel(t, "p", "y")}, []string{"y"})
	assert.NoError(err)
	assert.NotNil(d)
}

func TestOffsets(t *testing.T) {
	assert := assert.New(t)

	procs := []process.Process{
		newTrend(t, "trend", "y1"),
		newLevel(t, "level", "y2"),
	}
	d, err := New(procs, []string{"y1", "y2"})
	assert.NoError(err)

	// state size is the sum of per-process element counts
	assert.Equal(3, d.StateSize())
	assert.Equal(2, d.MeasureSize())

	// offsets partition [0, stateSize) in registration order
	s1, ok := d.SliceOf("trend")
	assert.True(ok)
	assert.Equal(Slice{Start: 0, End: 2}, s1)

	s2, ok := d.SliceOf("level")
	assert.True(ok)
	assert.Equal(Slice{Start: 2, End: 3}, s2)

	_, ok = d.SliceOf("nope")
	assert.False(ok)
}

func TestForBatchF(t *testing.T) {
	assert := assert.New(t)

	procs := []process.Process{
		newTrend(t, "trend", "y1"),
		newLevel(t, "level", "y2"),
	}
	d, err := New(procs, []string{"y1", "y2"})
	assert.NoError(err)

	fb, err := d.ForBatch(newBatch(2, 4))
	assert.NoError(err)
	assert.Equal(2, fb.Groups())
	assert.Equal(4, fb.Timesteps())

	f := fb.F(0)
	assert.Len(f, 2)

	want := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		0, 1, 0,
		0, 0, 1,
	})
	assert.True(mat.EqualApprox(want, f[0], 1e-12))
}

func TestForBatchH(t *testing.T) {
	assert := assert.New(t)

	procs := []process.Process{
		newTrend(t, "trend", "y1"),
		newLevel(t, "level", "y2"),
	}
	d, err := New(procs, []string{"y1", "y2"})
	assert.NoError(err)

	fb, err := d.ForBatch(newBatch(1, 1))
	assert.NoError(err)

	h := fb.H(0)[0]
	want := mat.NewDense(2, 3, []float64{
		1, 0, 0, // y1 observes trend position
		0, 0, 1, // y2 observes level
	})
	assert.True(mat.EqualApprox(want, h, 1e-12))
}

func TestForBatchQ(t *testing.T) {
	assert := assert.New(t)

	trend := newTrend(t, "trend", "y")
	lm, err := process.NewLinearModel("regression", []string{"x"})
	assert.NoError(err)
	assert.NoError(lm.AddMeasure("y"))

	procLogVar := math.Log(0.25)
	d, err := New(
		[]process.Process{trend, lm},
		[]string{"y"},
		WithProcessVar("trend", "position", statespace.Fixed(procLogVar)),
		WithProcessVar("trend", "velocity", statespace.Fixed(procLogVar)),
	)
	assert.NoError(err)

	b := designmat.Batch{
		Groups:    1,
		Timesteps: 1,
		Data:      map[string][][]float64{"x": {{2.0}}},
	}
	fb, err := d.ForBatch(b)
	assert.NoError(err)

	q := fb.Q(0)[0]
	assert.InDelta(0.25, q.At(0, 0), 1e-12)
	assert.InDelta(0.25, q.At(1, 1), 1e-12)

	// the static regression coefficient has zero process variance:
	// its entire row and column are zero
	rows := matrix.RowSums(q)
	cols := matrix.ColSums(q)
	assert.Equal(0.0, rows[2])
	assert.Equal(0.0, cols[2])
}

func TestForBatchR(t *testing.T) {
	assert := assert.New(t)

	d, err := New(
		[]process.Process{newLevel(t, "level", "y")},
		[]string{"y"},
		WithMeasureVar("y", statespace.Fixed(math.Log(0.5))),
	)
	assert.NoError(err)

	fb, err := d.ForBatch(newBatch(3, 2))
	assert.NoError(err)

	r := fb.R(1)[2]
	assert.InDelta(0.5, r.At(0, 0), 1e-12)
}

func TestForBatchFullMeasureCov(t *testing.T) {
	assert := assert.New(t)

	procs := []process.Process{
		newTrend(t, "trend", "y1"),
		newLevel(t, "level", "y2"),
	}

	full := mat.NewSymDense(2, []float64{1.0, 0.3, 0.3, 2.0})
	d, err := New(procs, []string{"y1", "y2"},
		WithMeasureCov(func() *mat.SymDense { return full }),
	)
	assert.NoError(err)

	fb, err := d.ForBatch(newBatch(1, 1))
	assert.NoError(err)

	r := fb.R(0)[0]
	assert.Equal(0.3, r.At(0, 1))
	assert.Equal(0.3, r.At(1, 0))

	// dimension mismatch surfaces at build time
	bad := mat.NewSymDense(3, nil)
	d, err = New(procs, []string{"y1", "y2"},
		WithMeasureCov(func() *mat.SymDense { return bad }),
	)
	assert.NoError(err)
	fb, err = d.ForBatch(newBatch(1, 1))
	assert.Nil(fb)
	var dim *statespace.DimensionError
	assert.True(errors.As(err, &dim))
}

func TestInitialState(t *testing.T) {
	assert := assert.New(t)

	lm, err := process.NewLinearModel("regression", []string{"x"})
	assert.NoError(err)
	assert.NoError(lm.AddMeasure("y"))

	d, err := New(
		[]process.Process{newLevel(t, "level", "y"), lm},
		[]string{"y"},
		WithInitialMean("level", "level", statespace.Fixed(7.0)),
		WithInitialVar("level", "level", statespace.Fixed(math.Log(9.0))),
	)
	assert.NoError(err)

	b := designmat.Batch{
		Groups:    2,
		Timesteps: 1,
		Data:      map[string][][]float64{"x": {{1.0}, {1.0}}},
	}
	fb, err := d.ForBatch(b)
	assert.NoError(err)

	means := fb.InitialMeans()
	assert.Len(means, 2)
	assert.Equal(7.0, means[0].AtVec(0))
	assert.Equal(7.0, means[1].AtVec(0))

	covs := fb.InitialCovs()
	assert.InDelta(9.0, covs[0].At(0, 0), 1e-12)
	// the regression coefficient starts diffuse
	assert.Greater(covs[0].At(1, 1), 100.0)
}

func TestOptionValidation(t *testing.T) {
	assert := assert.New(t)

	level := func() []process.Process { return []process.Process{newLevel(t, "level", "y")} }

	_, err := New(level(), []string{"y"}, WithProcessVar("level", "nope", statespace.Fixed(0)))
	assert.Error(err)

	_, err = New(level(), []string{"y"}, WithInitialVar("nope", "level", statespace.Fixed(0)))
	assert.Error(err)

	_, err = New(level(), []string{"y"}, WithInitialMean("level", "nope", statespace.Fixed(0)))
	assert.Error(err)

	_, err = New(level(), []string{"y"}, WithMeasureVar("nope", statespace.Fixed(0)))
	assert.Error(err)

	_, err = New(level(), []string{"y"}, WithMeasureCov(nil))
	assert.Error(err)
}

func TestParams(t *testing.T) {
	assert := assert.New(t)

	decay := statespace.NewVar(0.0)
	trend, err := process.NewLocalTrend("trend", decay)
	assert.NoError(err)
	assert.NoError(trend.AddMeasure("y"))

	d, err := New([]process.Process{trend}, []string{"y"})
	assert.NoError(err)

	params := d.Params()
	assert.Contains(params, "process_var:trend.position")
	assert.Contains(params, "process_var:trend.velocity")
	assert.Contains(params, "init_var:trend.position")
	assert.Contains(params, "init_mean:trend.velocity")
	assert.Contains(params, "measure_var:y")
	assert.Equal(statespace.Param(decay), params["process:trend:decay"])
}
