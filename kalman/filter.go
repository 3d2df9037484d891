// Package kalman runs the filtering recursion for a batch of time
// series over a design: one-step-ahead prediction, correction with the
// observed data, forecasting past the data and trajectory simulation.
package kalman

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/belief"
	"github.com/go-statespace/statespace/design"
	"github.com/go-statespace/statespace/designmat"
)

// Family constructs the initial belief of a distribution family from
// per-group means and covariances. The default family is Gaussian.
type Family func(means []*mat.VecDense, covs []*mat.SymDense) (belief.State, error)

// Filter runs the discrete-time filtering recursion over a design.
type Filter struct {
	d      *design.Design
	family Family
}

// Option configures the filter.
type Option func(*Filter)

// WithFamily sets the belief family the filter propagates.
func WithFamily(f Family) Option {
	return func(kf *Filter) {
		kf.family = f
	}
}

// New creates new Filter for the given design.
func New(d *design.Design, opts ...Option) (*Filter, error) {
	if d == nil {
		return nil, statespace.Structuralf("filter requires a design")
	}

	kf := &Filter{
		d: d,
		family: func(means []*mat.VecDense, covs []*mat.SymDense) (belief.State, error) {
			return belief.NewGaussian(means, covs)
		},
	}
	for _, opt := range opts {
		opt(kf)
	}

	return kf, nil
}

// Design returns the filter's design.
func (kf *Filter) Design() *design.Design { return kf.d }

type runConfig struct {
	initial    belief.State
	data       map[string][][]float64
	startTimes []time.Time
	interval   time.Duration
	pw         progress.Writer
}

// RunOption configures a single Forward, Forecast or Simulate run.
type RunOption func(*runConfig)

// WithInitialState overrides the design's initial belief.
func WithInitialState(s belief.State) RunOption {
	return func(c *runConfig) {
		c.initial = s
	}
}

// WithData supplies per-group, per-timestep batch inputs keyed by the
// names the design's processes declare.
func WithData(data map[string][][]float64) RunOption {
	return func(c *runConfig) {
		c.data = data
	}
}

// WithStartTimes records each group's first timestep on an absolute
// time grid, enabling datetime indexing of the output and seasonal
// phase alignment.
func WithStartTimes(starts []time.Time, interval time.Duration) RunOption {
	return func(c *runConfig) {
		c.startTimes = starts
		c.interval = interval
	}
}

// WithProgress renders per-timestep progress on the given writer.
func WithProgress(pw progress.Writer) RunOption {
	return func(c *runConfig) {
		c.pw = pw
	}
}

func (kf *Filter) batch(groups, timesteps int, c *runConfig) (*design.ForBatch, error) {
	b := designmat.Batch{
		Groups:     groups,
		Timesteps:  timesteps,
		Data:       c.data,
		StartTimes: c.startTimes,
		Interval:   c.interval,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	return kf.d.ForBatch(b)
}

func (kf *Filter) initial(fb *design.ForBatch, c *runConfig) (belief.State, error) {
	if c.initial != nil {
		if c.initial.Groups() != fb.Groups() || c.initial.StateSize() != fb.StateSize() {
			return nil, statespace.Dimensionf("initial state is [%d groups x %d], design expects [%d groups x %d]",
				c.initial.Groups(), c.initial.StateSize(), fb.Groups(), fb.StateSize())
		}
		return c.initial, nil
	}

	return kf.family(fb.InitialMeans(), fb.InitialCovs())
}

func track(c *runConfig, message string, total int) *progress.Tracker {
	if c.pw == nil {
		return nil
	}
	t := &progress.Tracker{
		Message: message,
		Total:   int64(total),
		Units:   progress.UnitsDefault,
	}
	c.pw.AppendTracker(t)

	return t
}

// stepObs collects timestep t of the series into a [groups x measures]
// observation matrix. Missing values stay NaN.
func stepObs(obs *statespace.Series, t int) *mat.Dense {
	groups, _, measures := obs.Dims()
	out := mat.NewDense(groups, measures, nil)
	for g := 0; g < groups; g++ {
		out.SetRow(g, obs.StepVec(g, t).RawVector().Data)
	}

	return out
}

// Forward runs the filtering recursion over the observed series and
// returns the one-step-ahead predicted beliefs, one per timestep. The
// belief at timestep t is conditioned on observations up to t-1 only
// and carries the measurement-space prediction for timestep t.
// It returns error if the series measure count does not match the
// design or batch inputs fail validation.
func (kf *Filter) Forward(obs *statespace.Series, opts ...RunOption) (*belief.OverTime, error) {
	var c runConfig
	for _, opt := range opts {
		opt(&c)
	}

	groups, timesteps, measures := obs.Dims()
	if measures != kf.d.MeasureSize() {
		return nil, statespace.Dimensionf("series has %d measures, design has %d", measures, kf.d.MeasureSize())
	}

	fb, err := kf.batch(groups, timesteps, &c)
	if err != nil {
		return nil, err
	}

	state, err := kf.initial(fb, &c)
	if err != nil {
		return nil, err
	}

	tracker := track(&c, "filtering", timesteps)

	out := make([]belief.State, timesteps)
	for t := 0; t < timesteps; t++ {
		if t > 0 {
			state, err = state.Update(stepObs(obs, t-1))
			if err != nil {
				return nil, err
			}
			state, err = state.Predict(fb.F(t-1), fb.Q(t-1))
			if err != nil {
				return nil, err
			}
		}

		state, err = state.ComputeMeasurement(fb.H(t), fb.R(t))
		if err != nil {
			return nil, err
		}
		out[t] = state

		if tracker != nil {
			tracker.Increment(1)
		}
	}
	if tracker != nil {
		tracker.MarkAsDone()
	}

	return belief.ConcatenateOverTime(out, kf.d.Measures(), c.startTimes, c.interval)
}

// Forecast propagates the seed belief horizon steps past its
// conditioning data. Every step first predicts through the design and
// then attaches the measurement-space prediction, so the first
// forecast belief is the one-step-ahead prediction from the seed and
// no correction ever happens.
// It returns error if the horizon is not positive or the seed does not
// match the design.
func (kf *Filter) Forecast(seed belief.State, horizon int, opts ...RunOption) (*belief.OverTime, error) {
	var c runConfig
	for _, opt := range opts {
		opt(&c)
	}

	if horizon <= 0 {
		return nil, statespace.Dimensionf("invalid forecast horizon: %d", horizon)
	}
	if seed == nil {
		return nil, statespace.Structuralf("forecast requires a seed belief")
	}

	fb, err := kf.batch(seed.Groups(), horizon, &c)
	if err != nil {
		return nil, err
	}
	if seed.StateSize() != fb.StateSize() {
		return nil, statespace.Dimensionf("seed state size %d does not match design state size %d", seed.StateSize(), fb.StateSize())
	}

	tracker := track(&c, "forecasting", horizon)

	state := seed
	out := make([]belief.State, horizon)
	for t := 0; t < horizon; t++ {
		state, err = state.Predict(fb.F(t), fb.Q(t))
		if err != nil {
			return nil, err
		}
		state, err = state.ComputeMeasurement(fb.H(t), fb.R(t))
		if err != nil {
			return nil, err
		}
		out[t] = state

		if tracker != nil {
			tracker.Increment(1)
		}
	}
	if tracker != nil {
		tracker.MarkAsDone()
	}

	return belief.ConcatenateOverTime(out, kf.d.Measures(), c.startTimes, c.interval)
}

// Simulate draws a stochastic measurement-space trajectory of the
// given length from the seed belief. When seed is nil the design's
// initial belief is used. With point true the trajectory starts at the
// seed mean instead of a draw from it.
func (kf *Filter) Simulate(seed belief.State, groups, timesteps int, rng *rand.Rand, point bool, opts ...RunOption) (*statespace.Series, error) {
	var c runConfig
	for _, opt := range opts {
		opt(&c)
	}

	if timesteps <= 0 {
		return nil, statespace.Dimensionf("invalid simulation length: %d", timesteps)
	}

	fb, err := kf.batch(groups, timesteps, &c)
	if err != nil {
		return nil, err
	}

	if seed == nil {
		seed, err = kf.family(fb.InitialMeans(), fb.InitialCovs())
		if err != nil {
			return nil, err
		}
	}

	return seed.Simulate(fb, rng, point)
}

// Smooth is not implemented: the recursion only runs forward.
func (kf *Filter) Smooth(obs *statespace.Series, opts ...RunOption) (*belief.OverTime, error) {
	return nil, statespace.ErrUnsupported
}
