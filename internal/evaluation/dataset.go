package evaluation

import (
	"math"
	"sort"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Pair identifies a (query, article) pair.
type Pair struct {
	QueryID   string `json:"query_id"`
	ArticleID string `json:"article_id"`
}

// Sample is a scored pair and its ground-truth label.
type Sample struct {
	Pair
	Score float64 `json:"score"`
	Label bool    `json:"label"`
}

// Dataset holds the scored, labelled pairs of one algorithm.
type Dataset struct {
	Algorithm string   `json:"algorithm"`
	Samples   []Sample `json:"samples"`
}

// NewDataset validates samples: at least one, finite scores, no repeated
// pair.
func NewDataset(algorithm string, samples []Sample) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, apperrors.Newf(apperrors.ErrComputation, 0, "algorithm %q has no labelled pairs", algorithm)
	}
	seen := make(map[Pair]struct{}, len(samples))
	for _, s := range samples {
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 0, "pair %s/%s has non-finite score", s.QueryID, s.ArticleID)
		}
		if _, dup := seen[s.Pair]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 0, "pair %s/%s appears twice", s.QueryID, s.ArticleID)
		}
		seen[s.Pair] = struct{}{}
	}
	return &Dataset{Algorithm: algorithm, Samples: samples}, nil
}

// ValidationRatio is the fraction of pairs labelled true.
func (d *Dataset) ValidationRatio() float64 {
	if len(d.Samples) == 0 {
		return 0
	}
	n := 0
	for _, s := range d.Samples {
		if s.Label {
			n++
		}
	}
	return float64(n) / float64(len(d.Samples))
}

// scoreIndex answers confusion counts at any threshold in O(log n).
type scoreIndex struct {
	pos []float64
	neg []float64
}

func newScoreIndex(samples []Sample) scoreIndex {
	var ix scoreIndex
	for _, s := range samples {
		if s.Label {
			ix.pos = append(ix.pos, s.Score)
		} else {
			ix.neg = append(ix.neg, s.Score)
		}
	}
	sort.Float64s(ix.pos)
	sort.Float64s(ix.neg)
	return ix
}

// above returns how many of sorted are strictly greater than t.
func above(sorted []float64, t float64) int {
	return len(sorted) - sort.Search(len(sorted), func(i int) bool { return sorted[i] > t })
}

// counts classifies every indexed sample as positive when score > t.
func (ix scoreIndex) counts(t float64) Counts {
	tp, fp := above(ix.pos, t), above(ix.neg, t)
	return Counts{
		TP: tp,
		FP: fp,
		FN: len(ix.pos) - tp,
		TN: len(ix.neg) - fp,
	}
}
