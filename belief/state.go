// Package belief implements state beliefs: probability distributions
// over the joint latent state for a batch of groups at one timestep.
// Gaussian is the concrete family; the filtering recursion is written
// against the State interface so an alternative family can be plugged
// into the filter.
package belief

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/design"
)

// State is a distribution over the joint state for a batch of groups.
// A State is immutable: every operation returns a new belief.
//
// All per-group slices handed to Predict and ComputeMeasurement come
// from a design.ForBatch and must have one matrix per group; groups
// with no batch variation share backing storage.
type State interface {
	// Groups returns the batch group count
	Groups() int
	// StateSize returns the joint state vector length
	StateSize() int
	// Mean returns a copy of group g's state mean
	Mean(g int) *mat.VecDense
	// Cov returns a copy of group g's state covariance
	Cov(g int) *mat.SymDense
	// Predict propagates the belief one step through the per-group
	// transition matrices F and process covariances Q
	Predict(F, Q []*mat.Dense) (State, error)
	// ComputeMeasurement attaches the measurement-space prediction
	// H*mean, H*cov*H'+R to the belief
	ComputeMeasurement(H, R []*mat.Dense) (State, error)
	// HasMeasurement reports whether a measurement-space prediction
	// has been attached
	HasMeasurement() bool
	// MeasurementMean returns a copy of group g's measurement-space
	// mean, if computed
	MeasurementMean(g int) (*mat.VecDense, bool)
	// MeasurementCov returns a copy of group g's measurement-space
	// covariance, if computed
	MeasurementCov(g int) (*mat.SymDense, bool)
	// Update corrects the belief with the [groups x measures]
	// observation matrix. NaN entries are treated as missing and
	// masked out of that group's correction; a group with no
	// observed measures keeps its prior belief.
	Update(obs *mat.Dense) (State, error)
	// Gather builds a belief of the same family by taking each
	// group g's distribution from sources[timeIdx[g]]
	Gather(sources []State, timeIdx []int) (State, error)
	// Simulate draws a stochastic measurement-space trajectory over
	// the batch design, starting from this belief. With point true
	// the trajectory starts at the belief mean instead of a draw
	// from the belief.
	Simulate(fb *design.ForBatch, rng *rand.Rand, point bool) (*statespace.Series, error)
}
