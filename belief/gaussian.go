package belief

import (
	"math"

	"github.com/milosgajdos/matrix"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/design"
	mx "github.com/go-statespace/statespace/matrix"
	"github.com/go-statespace/statespace/noise"
	"github.com/go-statespace/statespace/rnd"
)

// Gaussian is a Gaussian state belief: one mean vector and covariance
// matrix per group. It is immutable once constructed.
type Gaussian struct {
	means []*mat.VecDense
	covs  []*mat.SymDense

	// measurement-space prediction, attached by ComputeMeasurement
	h         []*mat.Dense
	r         []*mat.Dense
	measMeans []*mat.VecDense
	measCovs  []*mat.SymDense
}

// NewGaussian creates new Gaussian belief from per-group means and
// covariances. The inputs are copied.
// It returns error if the batch is empty or the dimensions disagree.
func NewGaussian(means []*mat.VecDense, covs []*mat.SymDense) (*Gaussian, error) {
	if len(means) == 0 || len(means) != len(covs) {
		return nil, statespace.Dimensionf("invalid belief batch: %d means, %d covariances", len(means), len(covs))
	}

	n := means[0].Len()
	g := &Gaussian{
		means: make([]*mat.VecDense, len(means)),
		covs:  make([]*mat.SymDense, len(covs)),
	}
	for i := range means {
		if means[i].Len() != n || covs[i].SymmetricDim() != n {
			return nil, statespace.Dimensionf("group %d belief dimensions do not match state size %d", i, n)
		}
		m := &mat.VecDense{}
		m.CloneFromVec(means[i])
		c := mat.NewSymDense(n, nil)
		c.CopySym(covs[i])
		g.means[i] = m
		g.covs[i] = c
	}

	return g, nil
}

// Groups returns the batch group count.
func (g *Gaussian) Groups() int { return len(g.means) }

// StateSize returns the joint state vector length.
func (g *Gaussian) StateSize() int { return g.means[0].Len() }

// Mean returns a copy of group i's state mean.
func (g *Gaussian) Mean(i int) *mat.VecDense {
	m := &mat.VecDense{}
	m.CloneFromVec(g.means[i])

	return m
}

// Cov returns a copy of group i's state covariance.
func (g *Gaussian) Cov(i int) *mat.SymDense {
	c := mat.NewSymDense(g.covs[i].SymmetricDim(), nil)
	c.CopySym(g.covs[i])

	return c
}

func (g *Gaussian) checkPerGroup(name string, ms []*mat.Dense, rows, cols int) error {
	if len(ms) != g.Groups() {
		return statespace.Dimensionf("%d %s matrices for %d groups", len(ms), name, g.Groups())
	}
	for i, m := range ms {
		r, c := m.Dims()
		if r != rows || c != cols {
			return statespace.Dimensionf("%s matrix for group %d is [%d x %d], expected [%d x %d]", name, i, r, c, rows, cols)
		}
	}

	return nil
}

// Predict propagates the belief one step: mean' = F*mean,
// cov' = F*cov*F' + Q. The input belief is not modified.
func (g *Gaussian) Predict(F, Q []*mat.Dense) (State, error) {
	n := g.StateSize()
	if err := g.checkPerGroup("transition", F, n, n); err != nil {
		return nil, err
	}
	if err := g.checkPerGroup("process covariance", Q, n, n); err != nil {
		return nil, err
	}

	out := &Gaussian{
		means: make([]*mat.VecDense, g.Groups()),
		covs:  make([]*mat.SymDense, g.Groups()),
	}
	for i := range g.means {
		m := mat.NewVecDense(n, nil)
		m.MulVec(F[i], g.means[i])

		cov := &mat.Dense{}
		cov.Mul(F[i], g.covs[i])
		cov.Mul(cov, F[i].T())
		cov.Add(cov, Q[i])

		out.means[i] = m
		out.covs[i] = mx.ToSym(cov)
	}

	return out, nil
}

// ComputeMeasurement attaches the measurement-space prediction
// H*mean, H*cov*H' + R and returns the annotated belief. The state
// distribution itself is unchanged.
func (g *Gaussian) ComputeMeasurement(H, R []*mat.Dense) (State, error) {
	n := g.StateSize()
	if len(H) == 0 {
		return nil, statespace.Dimensionf("no measurement matrices supplied")
	}
	ny, _ := H[0].Dims()
	if err := g.checkPerGroup("measurement", H, ny, n); err != nil {
		return nil, err
	}
	if err := g.checkPerGroup("measurement covariance", R, ny, ny); err != nil {
		return nil, err
	}

	out := &Gaussian{
		means:     g.means,
		covs:      g.covs,
		h:         H,
		r:         R,
		measMeans: make([]*mat.VecDense, g.Groups()),
		measCovs:  make([]*mat.SymDense, g.Groups()),
	}
	for i := range g.means {
		m := mat.NewVecDense(ny, nil)
		m.MulVec(H[i], g.means[i])

		// P*H'
		pht := &mat.Dense{}
		pht.Mul(g.covs[i], H[i].T())
		cov := &mat.Dense{}
		cov.Mul(H[i], pht)
		cov.Add(cov, R[i])

		out.measMeans[i] = m
		out.measCovs[i] = mx.ToSym(cov)
	}

	return out, nil
}

// HasMeasurement reports whether a measurement-space prediction has
// been attached.
func (g *Gaussian) HasMeasurement() bool { return g.measMeans != nil }

// MeasurementMean returns a copy of group i's measurement-space mean,
// if computed.
func (g *Gaussian) MeasurementMean(i int) (*mat.VecDense, bool) {
	if g.measMeans == nil {
		return nil, false
	}
	m := &mat.VecDense{}
	m.CloneFromVec(g.measMeans[i])

	return m, true
}

// MeasurementCov returns a copy of group i's measurement-space
// covariance, if computed.
func (g *Gaussian) MeasurementCov(i int) (*mat.SymDense, bool) {
	if g.measCovs == nil {
		return nil, false
	}
	c := mat.NewSymDense(g.measCovs[i].SymmetricDim(), nil)
	c.CopySym(g.measCovs[i])

	return c, true
}

// Update corrects the belief with the [groups x measures] observation
// matrix using the standard Kalman gain, with a Joseph-form covariance
// update. NaN observations are masked out per group: the masked
// measures' rows are excluded from the gain and innovation entirely,
// other measures and groups are corrected as usual. A group observing
// nothing keeps its prior belief.
// It returns error if ComputeMeasurement has not been called on this
// belief or the observation shape does not match.
func (g *Gaussian) Update(obs *mat.Dense) (State, error) {
	if !g.HasMeasurement() {
		return nil, statespace.Structuralf("update requires a measurement-space prediction; call ComputeMeasurement first")
	}

	n := g.StateSize()
	ny, _ := g.h[0].Dims()
	rows, cols := obs.Dims()
	if rows != g.Groups() || cols != ny {
		return nil, statespace.Dimensionf("invalid observation shape: [%d x %d], expected [%d x %d]", rows, cols, g.Groups(), ny)
	}

	out := &Gaussian{
		means: make([]*mat.VecDense, g.Groups()),
		covs:  make([]*mat.SymDense, g.Groups()),
	}

	for i := range g.means {
		observed := make([]int, 0, ny)
		for j := 0; j < ny; j++ {
			if !math.IsNaN(obs.At(i, j)) {
				observed = append(observed, j)
			}
		}

		// nothing measured: the prior carries over unchanged
		if len(observed) == 0 {
			out.means[i] = g.means[i]
			out.covs[i] = g.covs[i]
			continue
		}

		k := len(observed)
		ho := mat.NewDense(k, n, nil)
		ro := mat.NewDense(k, k, nil)
		inn := mat.NewVecDense(k, nil)
		for a, ja := range observed {
			for c := 0; c < n; c++ {
				ho.Set(a, c, g.h[i].At(ja, c))
			}
			for b, jb := range observed {
				ro.Set(a, b, g.r[i].At(ja, jb))
			}
			inn.SetVec(a, obs.At(i, ja)-g.measMeans[i].AtVec(ja))
		}

		// P*H'
		pht := &mat.Dense{}
		pht.Mul(g.covs[i], ho.T())

		// H*P*H' + R
		pyy := &mat.Dense{}
		pyy.Mul(ho, pht)
		pyy.Add(pyy, ro)

		pyyInv := &mat.Dense{}
		if err := pyyInv.Inverse(pyy); err != nil {
			return nil, statespace.Dimensionf("failed to invert the innovation covariance: %v", err)
		}

		gain := &mat.Dense{}
		gain.Mul(pht, pyyInv)

		// mean + K*innovation
		corr := mat.NewVecDense(n, nil)
		corr.MulVec(gain, inn)
		m := mat.NewVecDense(n, nil)
		m.AddVec(g.means[i], corr)

		// Joseph form update
		eye, err := matrix.NewDenseValIdentity(n, 1.0)
		if err != nil {
			return nil, err
		}
		a := &mat.Dense{}
		a.Mul(gain, ho)
		a.Sub(eye, a)

		ap := &mat.Dense{}
		ap.Mul(a, g.covs[i])
		apa := &mat.Dense{}
		apa.Mul(ap, a.T())

		// K*R*K'
		kr := &mat.Dense{}
		kr.Mul(gain, ro)
		krk := &mat.Dense{}
		krk.Mul(kr, gain.T())

		apa.Add(apa, krk)

		out.means[i] = m
		out.covs[i] = mx.ToSym(apa)
	}

	return out, nil
}

// Gather builds a Gaussian by taking each group g's distribution from
// sources[timeIdx[g]]. Measurement annotations are not carried over.
func (g *Gaussian) Gather(sources []State, timeIdx []int) (State, error) {
	if len(timeIdx) != g.Groups() {
		return nil, statespace.Dimensionf("%d time indices for %d groups", len(timeIdx), g.Groups())
	}

	means := make([]*mat.VecDense, g.Groups())
	covs := make([]*mat.SymDense, g.Groups())
	for i, t := range timeIdx {
		if t < 0 || t >= len(sources) {
			return nil, statespace.Dimensionf("time index %d out of range [0, %d)", t, len(sources))
		}
		means[i] = sources[t].Mean(i)
		covs[i] = sources[t].Cov(i)
	}

	return NewGaussian(means, covs)
}

// Simulate draws a stochastic measurement-space trajectory over the
// batch design, starting from this belief. Each step propagates the
// state through F, adds process noise drawn from N(0, Q) and emits
// H*state plus measurement noise drawn from N(0, R). With point true
// the state starts at the belief mean; otherwise it starts at a draw
// from the belief.
func (g *Gaussian) Simulate(fb *design.ForBatch, rng *rand.Rand, point bool) (*statespace.Series, error) {
	if fb.Groups() != g.Groups() {
		return nil, statespace.Dimensionf("design is for %d groups, belief has %d", fb.Groups(), g.Groups())
	}
	if fb.StateSize() != g.StateSize() {
		return nil, statespace.Dimensionf("design state size %d does not match belief state size %d", fb.StateSize(), g.StateSize())
	}

	n := g.StateSize()
	ny := fb.MeasureSize()
	out := statespace.NewSeries(g.Groups(), fb.Timesteps(), ny)

	// broadcast matrices share backing storage, so their derived
	// samplers can be shared too
	qSyms := make(map[*mat.Dense]*mat.SymDense)
	rNoise := make(map[*mat.Dense]*noise.Gaussian)

	for i := range g.means {
		x := mat.NewVecDense(n, nil)
		x.CopyVec(g.means[i])
		if !point {
			draw, err := rnd.WithCovN(g.covs[i], 1, rng)
			if err != nil {
				return nil, err
			}
			x.AddVec(x, draw.ColView(0))
		}

		for t := 0; t < fb.Timesteps(); t++ {
			f := fb.FAt(i, t)
			next := mat.NewVecDense(n, nil)
			next.MulVec(f, x)

			q := fb.QAt(i, t)
			qs, ok := qSyms[q]
			if !ok {
				qs = mx.ToSym(q)
				qSyms[q] = qs
			}
			w, err := rnd.WithCovN(qs, 1, rng)
			if err != nil {
				return nil, err
			}
			next.AddVec(next, w.ColView(0))
			x = next

			h := fb.HAt(i, t)
			y := mat.NewVecDense(ny, nil)
			y.MulVec(h, x)

			r := fb.RAt(i, t)
			rn, ok := rNoise[r]
			if !ok {
				rn, err = noise.NewGaussian(mx.ToSym(r), rng)
				if err != nil {
					return nil, err
				}
				rNoise[r] = rn
			}
			y.AddVec(y, rn.Sample())

			for m := 0; m < ny; m++ {
				out.Set(i, t, m, y.AtVec(m))
			}
		}
	}

	return out, nil
}
