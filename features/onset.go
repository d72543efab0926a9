package features

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Onset returns the earliest date whose value is at least threshold.  ok is false if no value reaches it.
// Missing values never qualify.
func Onset(dts []time.Time, vals []float64, threshold float64) (onset time.Time, ok bool) {
	for ind, v := range vals {
		if !(v >= threshold) {
			continue
		}

		if !ok || dts[ind].Before(onset) {
			onset, ok = dts[ind], true
		}
	}

	return onset, ok
}

// onsets finds the onset of every county of s, workers at a time.  Counties that never reach threshold are
// not in the map.
func onsets(ctx context.Context, s *seriesTable, threshold float64, workers int) (map[int]time.Time, error) {
	found := make([]bool, len(s.keys))
	dts := make([]time.Time, len(s.keys))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for r := range s.keys {
		r := r
		g.Go(func() error {
			if e := gctx.Err(); e != nil {
				return e
			}

			dts[r], found[r] = Onset(s.dates, s.vals[r], threshold)
			return nil
		})
	}

	if e := g.Wait(); e != nil {
		return nil, fmt.Errorf("onset detection: %w", e)
	}

	out := make(map[int]time.Time)
	for r, k := range s.keys {
		if found[r] {
			out[k] = dts[r]
		}
	}

	return out, nil
}
