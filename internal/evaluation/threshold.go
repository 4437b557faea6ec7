package evaluation

import (
	"context"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Threshold is a decision threshold and the F1 it achieves.
type Threshold struct {
	Value float64 `json:"value"`
	F1    float64 `json:"f1"`
}

// BestThreshold scans grid in ascending order and returns the first
// threshold with the highest F1. Pairs are predicted positive when their
// score is strictly greater than the threshold.
func BestThreshold(samples []Sample, grid Grid) (Threshold, error) {
	values, err := grid.Values()
	if err != nil {
		return Threshold{}, err
	}
	if len(samples) == 0 {
		return Threshold{}, apperrors.New(apperrors.ErrComputation, 0, "threshold search over zero pairs")
	}
	return bestOf(newScoreIndex(samples), values, nil)
}

// bestOf picks the best of values, optionally with one sample removed from
// the index.
func bestOf(ix scoreIndex, values []float64, exclude *Sample) (Threshold, error) {
	best := Threshold{Value: values[0]}
	for i, t := range values {
		c := ix.counts(t)
		if exclude != nil {
			c.Remove(exclude.Score > t, exclude.Label)
		}
		f1, err := c.F1()
		if err != nil {
			return Threshold{}, err
		}
		if i == 0 || f1 > best.F1 {
			best = Threshold{Value: t, F1: f1}
		}
	}
	return best, nil
}

// PairResult is the held-out outcome of one pair.
type PairResult struct {
	Sample
	Predicted bool `json:"predicted"`
	// Local is the best threshold over the local grid with this pair held
	// out. It is diagnostic; classification uses the global threshold.
	Local Threshold `json:"local"`
}

// LeaveOneOutResult aggregates the held-out classifications.
type LeaveOneOutResult struct {
	Counts Counts       `json:"counts"`
	F1     float64      `json:"f1"`
	Pairs  []PairResult `json:"pairs"`
}

// LeaveOneOut holds out every pair in turn, records the best local-grid
// threshold over the remaining pairs, and classifies the held-out pair
// against global.
func LeaveOneOut(ctx context.Context, samples []Sample, global float64, local Grid) (*LeaveOneOutResult, error) {
	values, err := local.Values()
	if err != nil {
		return nil, err
	}
	if len(samples) < 2 {
		return nil, apperrors.Newf(apperrors.ErrComputation, 0, "leave-one-out needs at least 2 pairs, got %d", len(samples))
	}
	ix := newScoreIndex(samples)
	res := &LeaveOneOutResult{Pairs: make([]PairResult, len(samples))}
	for i := range samples {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		s := samples[i]
		localBest, err := bestOf(ix, values, &s)
		if err != nil {
			return nil, err
		}
		predicted := s.Score > global
		res.Counts.Add(predicted, s.Label)
		res.Pairs[i] = PairResult{Sample: s, Predicted: predicted, Local: localBest}
	}
	if res.F1, err = res.Counts.F1(); err != nil {
		return nil, err
	}
	return res, nil
}
