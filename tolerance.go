package tabstego

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"
)

// ToleranceReport summarizes a deletion-tolerance experiment.
type ToleranceReport struct {
	Trials    int
	Step      int   // rows deleted per round
	Tolerated []int // per trial: the most deletions that still decoded
	Median    int
	Min       int
	Max       int
}

// MeasureDeletionTolerance repeatedly deletes random rows from an encoded
// table, step rows per round, until Decode stops returning want. Each
// trial starts again from the full table with its own deletion order.
// Deleted rows keep the relative order of the survivors.
func MeasureDeletionTolerance(ctx context.Context, encoded Table, want []byte, trials, step int, seed uint64, opts ...Option) (*ToleranceReport, error) {
	if trials <= 0 || step <= 0 {
		return nil, fmt.Errorf("tolerance: trials and step must be positive, got %d and %d", trials, step)
	}
	if _, err := newOptions(opts); err != nil {
		return nil, err
	}
	n := encoded.RowCount()
	rng := rand.New(rand.NewPCG(seed, seed^0xA5A5A5A5A5A5A5A5))
	r := &ToleranceReport{Trials: trials, Step: step, Tolerated: make([]int, 0, trials)}

	for trial := range trials {
		order := rng.Perm(n)
		tolerated := 0
		for k := step; k < n; k += step {
			ok, err := decodesAfterDeleting(ctx, encoded, order[:k], want, opts)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			tolerated = k
		}
		Logger().Debug("tolerance trial",
			zap.Int("trial", trial),
			zap.Int("tolerated", tolerated))
		r.Tolerated = append(r.Tolerated, tolerated)
	}

	sorted := slices.Sorted(slices.Values(r.Tolerated))
	r.Min, r.Max = sorted[0], sorted[len(sorted)-1]
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		r.Median = sorted[mid]
	} else {
		r.Median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return r, nil
}

func decodesAfterDeleting(ctx context.Context, t Table, deleted []int, want []byte, opts []Option) (bool, error) {
	drop := make([]bool, t.RowCount())
	for _, i := range deleted {
		drop[i] = true
	}
	keep := make([]int, 0, len(drop)-len(deleted))
	for i, d := range drop {
		if !d {
			keep = append(keep, i)
		}
	}
	rec, err := Decode(ctx, &subsetTable{base: t, rows: keep}, opts...)
	if err != nil {
		return false, err
	}
	return rec.Success && bytes.Equal(rec.Payload, want), nil
}
