package process

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/designmat"
)

// Season is a discrete seasonal process with k seasonal state
// elements. The state rotates by one element each timestep so that
// element 0 always holds the in-effect seasonal offset; only that
// element receives process noise. When the batch carries per-group
// start times the initial state is rotated per group so each group's
// phase matches its own calendar.
type Season struct {
	*Base
	k int
	// Epoch anchors season 0. A group starting n intervals after the
	// epoch starts n % k seasons into the cycle.
	epoch time.Time
}

// NewSeason creates new Season with the given id and k seasons.
// It returns error if k < 2.
func NewSeason(id string, k int) (*Season, error) {
	if k < 2 {
		return nil, statespace.Structuralf("process %q: a season needs at least 2 seasons, got %d", id, k)
	}

	elements := make([]string, k)
	for i := range elements {
		elements[i] = fmt.Sprintf("s%d", i)
	}

	base, err := NewBase(id, elements, WithDynamic("s0"))
	if err != nil {
		return nil, err
	}

	// cyclic rotation: each element takes the value of its successor,
	// the last wraps around to the current one
	for i := 0; i < k-1; i++ {
		if err := base.SetTransition(elements[i+1], elements[i], statespace.Fixed(1.0), designmat.Identity, false); err != nil {
			return nil, err
		}
	}
	if err := base.SetTransition(elements[0], elements[k-1], statespace.Fixed(1.0), designmat.Identity, false); err != nil {
		return nil, err
	}

	return &Season{Base: base, k: k, epoch: time.Unix(0, 0).UTC()}, nil
}

// SetEpoch anchors season 0 at the given instant.
func (p *Season) SetEpoch(epoch time.Time) {
	p.epoch = epoch
}

// AddMeasure registers a measure observing the in-effect seasonal
// element.
func (p *Season) AddMeasure(measure string) error {
	if err := p.RegisterMeasure(measure); err != nil {
		return err
	}

	return p.SetMeasure(measure, "s0", statespace.Fixed(1.0), designmat.Identity, false)
}

// InitialStateMeans rotates the per-season mean parameters so each
// group starts on the season its start time falls in. Without start
// times every group starts on season 0.
func (p *Season) InitialStateMeans(means []statespace.Param, batch designmat.Batch) (*mat.Dense, error) {
	if len(means) != p.k {
		return nil, statespace.Dimensionf("process %q: %d initial means for %d seasons", p.ID(), len(means), p.k)
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	out := mat.NewDense(batch.Groups, p.k, nil)
	for g := 0; g < batch.Groups; g++ {
		offset := 0
		if len(batch.StartTimes) > 0 {
			steps := int(batch.StartTimes[g].Sub(p.epoch) / batch.Interval)
			offset = ((steps % p.k) + p.k) % p.k
		}
		for i := 0; i < p.k; i++ {
			out.Set(g, i, means[(i+offset)%p.k].Value())
		}
	}

	return out, nil
}
