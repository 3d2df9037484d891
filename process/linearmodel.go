package process

import (
	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/designmat"
)

// LinearModel is a regression process: one static state element per
// covariate holding that covariate's coefficient. The coefficients
// carry no process variance; they start diffuse and tighten as the
// filter sees data. The measurement matrix is driven entirely by the
// covariate values supplied as batch data, one key per covariate.
type LinearModel struct {
	*Base
	covariates []string
}

// NewLinearModel creates new LinearModel with the given id and
// covariate names. The covariate names double as the batch-data keys
// the process declares.
func NewLinearModel(id string, covariates []string) (*LinearModel, error) {
	base, err := NewBase(id, covariates,
		WithDynamic(),
		WithBatchKeys(covariates...),
	)
	if err != nil {
		return nil, err
	}

	// coefficients persist unchanged between timesteps
	for _, c := range covariates {
		if err := base.SetTransition(c, c, statespace.Fixed(1.0), designmat.Identity, false); err != nil {
			return nil, err
		}
	}

	return &LinearModel{Base: base, covariates: append([]string(nil), covariates...)}, nil
}

// AddMeasure registers a measure whose prediction is the sum of
// coefficient times covariate over all covariates.
func (p *LinearModel) AddMeasure(measure string) error {
	if err := p.RegisterMeasure(measure); err != nil {
		return err
	}

	for _, c := range p.covariates {
		if err := p.AdjustMeasure(measure, c, designmat.FromData(c), true); err != nil {
			return err
		}
	}

	return nil
}
