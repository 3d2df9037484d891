package process

import (
	"math"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/designmat"
)

// LocalLevel is a random-walk process: one state element which is both
// the level and the measured quantity.
type LocalLevel struct {
	*Base
}

// NewLocalLevel creates new LocalLevel with the given id.
func NewLocalLevel(id string) (*LocalLevel, error) {
	base, err := NewBase(id, []string{"level"})
	if err != nil {
		return nil, err
	}
	if err := base.SetTransition("level", "level", statespace.Fixed(1.0), designmat.Identity, false); err != nil {
		return nil, err
	}

	return &LocalLevel{Base: base}, nil
}

// AddMeasure registers a measure observing the level directly.
func (p *LocalLevel) AddMeasure(measure string) error {
	if err := p.RegisterMeasure(measure); err != nil {
		return err
	}

	return p.SetMeasure(measure, "level", statespace.Fixed(1.0), designmat.Identity, false)
}

// LocalTrend is a damped local linear trend: a position element driven
// by a velocity element. With no decay parameter the velocity is a
// random walk; a decay parameter shrinks it toward zero through an
// inverse-logit link, keeping the factor inside (0, 1).
type LocalTrend struct {
	*Base
}

// NewLocalTrend creates new LocalTrend with the given id. decay may be
// nil for an undamped trend.
func NewLocalTrend(id string, decay statespace.Param) (*LocalTrend, error) {
	base, err := NewBase(id, []string{"position", "velocity"})
	if err != nil {
		return nil, err
	}

	if err := base.SetTransition("position", "position", statespace.Fixed(1.0), designmat.Identity, false); err != nil {
		return nil, err
	}
	if err := base.SetTransition("velocity", "position", statespace.Fixed(1.0), designmat.Identity, false); err != nil {
		return nil, err
	}

	velSelf := statespace.Param(statespace.Fixed(1.0))
	link := designmat.Identity
	if decay != nil {
		velSelf = decay
		link = designmat.CustomLink("inv-logit", func(v float64) float64 {
			return 1.0 / (1.0 + math.Exp(-v))
		})
		base.RegisterParam("decay", decay)
	}
	if err := base.SetTransition("velocity", "velocity", velSelf, link, false); err != nil {
		return nil, err
	}

	return &LocalTrend{Base: base}, nil
}

// AddMeasure registers a measure observing the position.
func (p *LocalTrend) AddMeasure(measure string) error {
	if err := p.RegisterMeasure(measure); err != nil {
		return err
	}

	return p.SetMeasure(measure, "position", statespace.Fixed(1.0), designmat.Identity, false)
}
