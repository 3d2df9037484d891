package designmat

import (
	"time"

	"github.com/go-statespace/statespace"
)

// Batch describes the shape of one batch build: how many independent
// groups, how many timesteps, and any named batch-varying inputs the
// processes consume. A Batch is a value; builds never mutate it.
type Batch struct {
	// Groups is the number of independent series in the batch
	Groups int
	// Timesteps is the number of timesteps in the batch
	Timesteps int
	// Data holds named batch-varying inputs keyed by name, each a
	// [group][time] block, e.g. a per-timestep covariate
	Data map[string][][]float64
	// StartTimes holds the absolute start time per group, if known
	StartTimes []time.Time
	// Interval is the duration of one timestep, required whenever
	// StartTimes is set
	Interval time.Duration
}

// Validate checks the batch shape for consistency.
func (b Batch) Validate() error {
	if b.Groups <= 0 || b.Timesteps <= 0 {
		return statespace.Dimensionf("invalid batch shape: [%d groups x %d timesteps]", b.Groups, b.Timesteps)
	}

	for key, rows := range b.Data {
		if len(rows) != b.Groups {
			return statespace.Dimensionf("batch data %q has %d groups, expected %d", key, len(rows), b.Groups)
		}
		for g, row := range rows {
			if len(row) != b.Timesteps {
				return statespace.Dimensionf("batch data %q group %d has %d timesteps, expected %d", key, g, len(row), b.Timesteps)
			}
		}
	}

	if len(b.StartTimes) > 0 {
		if len(b.StartTimes) != b.Groups {
			return statespace.Dimensionf("batch has %d start times, expected %d", len(b.StartTimes), b.Groups)
		}
		if b.Interval <= 0 {
			return statespace.Structuralf("batch start times require a positive interval")
		}
	}

	return nil
}

// DataAt returns the named input value for group g at timestep t.
// It returns error if the key is not present in the batch.
func (b Batch) DataAt(key string, g, t int) (float64, error) {
	rows, ok := b.Data[key]
	if !ok {
		return 0, statespace.Structuralf("batch data %q is missing", key)
	}

	return rows[g][t], nil
}

// WithData returns a copy of the batch whose Data holds only the given
// keys. Keys absent from the batch are simply not carried over.
func (b Batch) WithData(keys []string) Batch {
	out := b
	out.Data = make(map[string][][]float64, len(keys))
	for _, key := range keys {
		if rows, ok := b.Data[key]; ok {
			out.Data[key] = rows
		}
	}

	return out
}
