package viz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/design"
	"github.com/go-statespace/statespace/kalman"
	"github.com/go-statespace/statespace/process"
)

func TestNewPredictionPlot(t *testing.T) {
	assert := assert.New(t)

	p, err := process.NewLocalLevel("level")
	assert.NoError(err)
	assert.NoError(p.AddMeasure("y"))

	d, err := design.New([]process.Process{p}, []string{"y"})
	assert.NoError(err)

	f, err := kalman.New(d)
	assert.NoError(err)

	obs := statespace.NewSeries(2, 8, 1)
	for g := 0; g < 2; g++ {
		for ts := 0; ts < 8; ts++ {
			obs.Set(g, ts, 0, float64(ts))
		}
	}
	obs.SetMissing(0, 3, 0)

	out, err := f.Forward(obs)
	assert.NoError(err)

	plt, err := NewPredictionPlot(out, obs, 0, "y")
	assert.NoError(err)
	assert.NotNil(plt)

	// observations are optional
	plt, err = NewPredictionPlot(out, nil, 1, "y")
	assert.NoError(err)
	assert.NotNil(plt)

	_, err = NewPredictionPlot(out, obs, 5, "y")
	assert.Error(err)
	_, err = NewPredictionPlot(out, obs, 0, "nope")
	assert.Error(err)
	_, err = NewPredictionPlot(nil, obs, 0, "y")
	assert.Error(err)

	short := statespace.NewSeries(2, 3, 1)
	_, err = NewPredictionPlot(out, short, 0, "y")
	assert.Error(err)
}
