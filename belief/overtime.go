package belief

import (
	"time"

	"github.com/go-statespace/statespace"
)

// OverTime is the ordered sequence of per-timestep beliefs produced by
// one filtering or forecasting run: one belief per timestep, each
// batched over the same groups. When per-group start times were
// recorded it also supports indexing by absolute time.
type OverTime struct {
	beliefs    []State
	measures   []string
	startTimes []time.Time
	interval   time.Duration
}

// ConcatenateOverTime wraps the ordered per-timestep beliefs. measures
// is the design's measure ordering, used when exporting
// measurement-space predictions. startTimes may be nil; when given it
// must hold one start time per group and interval must be positive,
// enabling SliceByDt.
func ConcatenateOverTime(beliefs []State, measures []string, startTimes []time.Time, interval time.Duration) (*OverTime, error) {
	if len(beliefs) == 0 {
		return nil, statespace.Dimensionf("no beliefs to concatenate")
	}

	groups := beliefs[0].Groups()
	for t, b := range beliefs {
		if b.Groups() != groups {
			return nil, statespace.Dimensionf("belief at timestep %d is batched over %d groups, expected %d", t, b.Groups(), groups)
		}
	}

	if len(startTimes) > 0 {
		if len(startTimes) != groups {
			return nil, statespace.Dimensionf("%d start times for %d groups", len(startTimes), groups)
		}
		if interval <= 0 {
			return nil, statespace.Structuralf("start times require a positive interval")
		}
	}

	return &OverTime{
		beliefs:    append([]State(nil), beliefs...),
		measures:   append([]string(nil), measures...),
		startTimes: append([]time.Time(nil), startTimes...),
		interval:   interval,
	}, nil
}

// Len returns the number of timesteps.
func (ot *OverTime) Len() int { return len(ot.beliefs) }

// Groups returns the batch group count.
func (ot *OverTime) Groups() int { return ot.beliefs[0].Groups() }

// Measures returns the measure ordering.
func (ot *OverTime) Measures() []string {
	return append([]string(nil), ot.measures...)
}

// At returns the belief at timestep t.
func (ot *OverTime) At(t int) State { return ot.beliefs[t] }

// Last returns the belief at the final timestep.
func (ot *OverTime) Last() State { return ot.beliefs[len(ot.beliefs)-1] }

// StartTimes returns the per-group start times, if recorded.
func (ot *OverTime) StartTimes() []time.Time {
	return append([]time.Time(nil), ot.startTimes...)
}

// Interval returns the timestep duration, if recorded.
func (ot *OverTime) Interval() time.Duration { return ot.interval }

// MeasurementMeans exports the measurement-space predicted means as a
// [groups, timesteps, measures] series.
// It returns error if any belief has no measurement-space prediction.
func (ot *OverTime) MeasurementMeans() (*statespace.Series, error) {
	out := statespace.NewSeries(ot.Groups(), ot.Len(), len(ot.measures))
	for t, b := range ot.beliefs {
		if !b.HasMeasurement() {
			return nil, statespace.Structuralf("belief at timestep %d has no measurement-space prediction", t)
		}
		for g := 0; g < ot.Groups(); g++ {
			m, _ := b.MeasurementMean(g)
			for j := 0; j < len(ot.measures); j++ {
				out.Set(g, t, j, m.AtVec(j))
			}
		}
	}

	return out, nil
}

// MeasurementVars exports the measurement-space predictive variances
// (the diagonal of each measurement covariance) as a
// [groups, timesteps, measures] series.
// It returns error if any belief has no measurement-space prediction.
func (ot *OverTime) MeasurementVars() (*statespace.Series, error) {
	out := statespace.NewSeries(ot.Groups(), ot.Len(), len(ot.measures))
	for t, b := range ot.beliefs {
		if !b.HasMeasurement() {
			return nil, statespace.Structuralf("belief at timestep %d has no measurement-space prediction", t)
		}
		for g := 0; g < ot.Groups(); g++ {
			c, _ := b.MeasurementCov(g)
			for j := 0; j < len(ot.measures); j++ {
				out.Set(g, t, j, c.At(j, j))
			}
		}
	}

	return out, nil
}

// SliceByDt selects, per group, the belief at the timestep matching
// that group's absolute timestamp and returns the combined belief.
// It returns error if start times were not recorded, a timestamp
// precedes its group's start, is not on the timestep grid, or is past
// the end of the sequence.
func (ot *OverTime) SliceByDt(datetimes []time.Time) (State, error) {
	if len(ot.startTimes) == 0 {
		return nil, statespace.Structuralf("beliefs were recorded without start times; datetime indexing is unavailable")
	}
	if len(datetimes) != ot.Groups() {
		return nil, statespace.Dimensionf("%d datetimes for %d groups", len(datetimes), ot.Groups())
	}

	idx := make([]int, len(datetimes))
	for g, dt := range datetimes {
		offset := dt.Sub(ot.startTimes[g])
		if offset < 0 {
			return nil, statespace.Dimensionf("datetime %v precedes group %d start %v", dt, g, ot.startTimes[g])
		}
		if offset%ot.interval != 0 {
			return nil, statespace.Dimensionf("datetime %v is not on group %d timestep grid", dt, g)
		}
		step := int(offset / ot.interval)
		if step >= ot.Len() {
			return nil, statespace.Dimensionf("datetime %v is %d steps after group %d start, only %d recorded", dt, step, g, ot.Len())
		}
		idx[g] = step
	}

	return ot.beliefs[0].Gather(ot.beliefs, idx)
}
