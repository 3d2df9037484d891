package kalman

import (
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/design"
	"github.com/go-statespace/statespace/designmat"
	"github.com/go-statespace/statespace/process"
	"github.com/go-statespace/statespace/rnd"
)

var (
	d   *design.Design
	obs *statespace.Series
)

func setup() {
	trend, err := process.NewLocalTrend("trend", nil)
	if err != nil {
		panic(err)
	}
	if err := trend.AddMeasure("temp"); err != nil {
		panic(err)
	}

	level, err := process.NewLocalLevel("level")
	if err != nil {
		panic(err)
	}
	if err := level.AddMeasure("load"); err != nil {
		panic(err)
	}

	d, err = design.New([]process.Process{trend, level}, []string{"temp", "load"})
	if err != nil {
		panic(err)
	}

	// 3 groups, 5 timesteps, 2 measures
	obs = fillSeries(3, 5, 2, func(g, t, m int) float64 {
		return float64(g) + 0.5*float64(t) + float64(m)
	})
}

func fillSeries(groups, timesteps, measures int, fn func(g, t, m int) float64) *statespace.Series {
	s := statespace.NewSeries(groups, timesteps, measures)
	for g := 0; g < groups; g++ {
		for t := 0; t < timesteps; t++ {
			for m := 0; m < measures; m++ {
				s.Set(g, t, m, fn(g, t, m))
			}
		}
	}

	return s
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(d)
	assert.NoError(err)
	assert.NotNil(f)
	assert.Equal(d, f.Design())

	f, err = New(nil)
	assert.Nil(f)
	assert.Error(err)
}

func TestForward(t *testing.T) {
	assert := assert.New(t)

	f, err := New(d)
	assert.NoError(err)

	out, err := f.Forward(obs)
	assert.NoError(err)
	assert.Equal(5, out.Len())
	assert.Equal(3, out.Groups())
	assert.Equal([]string{"temp", "load"}, out.Measures())

	// every belief carries a measurement-space prediction
	for i := 0; i < out.Len(); i++ {
		assert.True(out.At(i).HasMeasurement())
	}

	means, err := out.MeasurementMeans()
	assert.NoError(err)
	_, ts, ms := means.Dims()
	assert.Equal(5, ts)
	assert.Equal(2, ms)

	// predictive variance contracts as observations accumulate
	vars, err := out.MeasurementVars()
	assert.NoError(err)
	assert.Greater(vars.At(0, 0, 0), vars.At(0, 4, 0))
}

func TestForwardMeasureMismatch(t *testing.T) {
	assert := assert.New(t)

	f, err := New(d)
	assert.NoError(err)

	bad := statespace.NewSeries(3, 5, 3)

	var dim *statespace.DimensionError
	_, err = f.Forward(bad)
	assert.True(errors.As(err, &dim))
}

func TestForwardTracksObservations(t *testing.T) {
	assert := assert.New(t)

	f, err := New(d)
	assert.NoError(err)

	// a constant series: the one-step-ahead predictions should settle
	// near the constant once the filter has seen a few observations
	flat := fillSeries(1, 30, 2, func(g, t, m int) float64 {
		return 10.0
	})

	out, err := f.Forward(flat)
	assert.NoError(err)

	means, err := out.MeasurementMeans()
	assert.NoError(err)
	assert.InDelta(10.0, means.At(0, 29, 0), 0.5)
	assert.InDelta(10.0, means.At(0, 29, 1), 0.5)
}

func TestForwardMasksMissing(t *testing.T) {
	assert := assert.New(t)

	f, err := New(d)
	assert.NoError(err)

	masked := fillSeries(3, 5, 2, obs.At)
	masked.SetMissing(1, 2, 0)
	masked.SetMissing(1, 3, 1)

	full, err := f.Forward(obs)
	assert.NoError(err)
	got, err := f.Forward(masked)
	assert.NoError(err)

	// other groups never see group 1's gaps
	for _, g := range []int{0, 2} {
		for ts := 0; ts < 5; ts++ {
			assert.True(mat.EqualApprox(full.At(ts).Mean(g), got.At(ts).Mean(g), 1e-12))
			assert.True(mat.EqualApprox(full.At(ts).Cov(g), got.At(ts).Cov(g), 1e-12))
		}
	}

	// the masked group stays finite and its uncertainty grows
	// relative to the fully observed run
	fullCov := full.At(4).Cov(1)
	gotCov := got.At(4).Cov(1)
	assert.False(math.IsNaN(got.At(4).Mean(1).AtVec(0)))
	assert.GreaterOrEqual(gotCov.At(0, 0), fullCov.At(0, 0))
}

func TestForecast(t *testing.T) {
	assert := assert.New(t)

	f, err := New(d)
	assert.NoError(err)

	out, err := f.Forward(obs)
	assert.NoError(err)

	fc, err := f.Forecast(out.Last(), 4)
	assert.NoError(err)
	assert.Equal(4, fc.Len())
	assert.Equal(3, fc.Groups())

	// the first forecast belief is the pure one-step prediction of
	// the seed: same state as running Predict by hand
	fb, err := d.ForBatch(designmat.Batch{Groups: 3, Timesteps: 1})
	assert.NoError(err)
	want, err := out.Last().Predict(fb.F(0), fb.Q(0))
	assert.NoError(err)
	assert.True(mat.EqualApprox(want.Mean(0), fc.At(0).Mean(0), 1e-12))
	assert.True(mat.EqualApprox(want.Cov(0), fc.At(0).Cov(0), 1e-12))

	// uncertainty grows with the horizon
	v0, _ := fc.At(0).MeasurementCov(0)
	v3, _ := fc.At(3).MeasurementCov(0)
	assert.Greater(v3.At(0, 0), v0.At(0, 0))

	var dim *statespace.DimensionError
	_, err = f.Forecast(out.Last(), 0)
	assert.True(errors.As(err, &dim))
	_, err = f.Forecast(out.Last(), -2)
	assert.True(errors.As(err, &dim))
	_, err = f.Forecast(nil, 3)
	assert.Error(err)
}

func TestForecastByDt(t *testing.T) {
	assert := assert.New(t)

	f, err := New(d)
	assert.NoError(err)

	day := 24 * time.Hour
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	starts := []time.Time{start, start, start}

	out, err := f.Forward(obs, WithStartTimes(starts, day))
	assert.NoError(err)

	// seed from an interior timestep instead of the last one
	seed, err := out.SliceByDt([]time.Time{
		start.Add(2 * day), start.Add(2 * day), start.Add(2 * day),
	})
	assert.NoError(err)

	fc, err := f.Forecast(seed, 2)
	assert.NoError(err)
	assert.Equal(2, fc.Len())
}

func TestSimulate(t *testing.T) {
	assert := assert.New(t)

	f, err := New(d)
	assert.NoError(err)

	rng := rnd.NewRand(7)
	out, err := f.Simulate(nil, 2, 6, rng, false)
	assert.NoError(err)

	g, ts, ms := out.Dims()
	assert.Equal(2, g)
	assert.Equal(6, ts)
	assert.Equal(2, ms)

	_, err = f.Simulate(nil, 2, 0, rng, false)
	assert.Error(err)

	// an explicit seed is honoured
	fwd, err := f.Forward(obs)
	assert.NoError(err)
	out, err = f.Simulate(fwd.Last(), 3, 4, rng, true)
	assert.NoError(err)
	g, ts, _ = out.Dims()
	assert.Equal(3, g)
	assert.Equal(4, ts)
}

func TestSmooth(t *testing.T) {
	assert := assert.New(t)

	f, err := New(d)
	assert.NoError(err)

	_, err = f.Smooth(obs)
	assert.True(errors.Is(err, statespace.ErrUnsupported))
}
