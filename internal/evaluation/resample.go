package evaluation

import (
	"context"
	"math/rand"
	"runtime"
	"sort"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Interval is a bootstrap percentile confidence interval on F1.
type Interval struct {
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Samples int     `json:"samples"`
}

// Hypothesis is the outcome of the label-permutation test.
type Hypothesis struct {
	Observed     float64 `json:"observed_f1"`
	PValue       float64 `json:"p_value"`
	Significance string  `json:"significance"`
	Permutations int     `json:"permutations"`
}

// Significance bands a p-value.
func Significance(p float64) string {
	switch {
	case p < 0.01:
		return "highly significant"
	case p < 0.05:
		return "significant"
	case p < 0.1:
		return "marginal"
	default:
		return "not significant"
	}
}

// resampleFunc fills out with one statistic per iteration using rng.
type resampleFunc func(rng *rand.Rand, out []float64)

// parallel splits n iterations across workers. Each worker gets its own
// generator seeded from rng in worker order, so results depend only on rng
// and workers.
func parallel(ctx context.Context, n, workers int, rng *rand.Rand, fn resampleFunc) ([]float64, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	out := make([]float64, n)
	seeds := make([]int64, workers)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	g, ctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, n)
		if lo >= hi {
			continue
		}
		seed := seeds[w]
		g.Go(func() error {
			local := rand.New(rand.NewSource(seed))
			const batch = 256
			for start := lo; start < hi; start += batch {
				if err := ctx.Err(); err != nil {
					return err
				}
				fn(local, out[start:min(start+batch, hi)])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func predictions(samples []Sample, threshold float64) []bool {
	pred := make([]bool, len(samples))
	for i, s := range samples {
		pred[i] = s.Score > threshold
	}
	return pred
}

// Bootstrap resamples pairs with replacement n times, computes F1 at the
// fixed threshold for each resample, and returns the 2.5 and 97.5
// percentiles.
func Bootstrap(ctx context.Context, samples []Sample, threshold float64, n, workers int, rng *rand.Rand) (*Interval, error) {
	if n <= 0 {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, 0, "bootstrap needs a positive resample count, got %d", n)
	}
	if len(samples) == 0 {
		return nil, apperrors.New(apperrors.ErrComputation, 0, "bootstrap over zero pairs")
	}
	pred := predictions(samples, threshold)
	f1s, err := parallel(ctx, n, workers, rng, func(rng *rand.Rand, out []float64) {
		for i := range out {
			var c Counts
			for range samples {
				j := rng.Intn(len(samples))
				c.Add(pred[j], samples[j].Label)
			}
			out[i] = CalculateF1(c.TP, c.FP, c.FN)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Float64s(f1s)
	return &Interval{
		Lower:   stat.Quantile(0.025, stat.Empirical, f1s, nil),
		Upper:   stat.Quantile(0.975, stat.Empirical, f1s, nil),
		Mean:    stat.Mean(f1s, nil),
		StdDev:  stdDev(f1s),
		Samples: n,
	}, nil
}

func stdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.StdDev(x, nil)
}

// PermutationTest shuffles the actual labels n times while holding the
// predictions fixed. The p-value is the fraction of shuffled F1 values at
// least as large as the observed F1.
func PermutationTest(ctx context.Context, samples []Sample, threshold float64, n, workers int, rng *rand.Rand) (*Hypothesis, error) {
	if n <= 0 {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, 0, "permutation test needs a positive permutation count, got %d", n)
	}
	if len(samples) == 0 {
		return nil, apperrors.New(apperrors.ErrComputation, 0, "permutation test over zero pairs")
	}
	pred := predictions(samples, threshold)
	var observed Counts
	labels := make([]bool, len(samples))
	for i, s := range samples {
		observed.Add(pred[i], s.Label)
		labels[i] = s.Label
	}
	obsF1 := CalculateF1(observed.TP, observed.FP, observed.FN)

	null, err := parallel(ctx, n, workers, rng, func(rng *rand.Rand, out []float64) {
		shuffled := make([]bool, len(labels))
		copy(shuffled, labels)
		for i := range out {
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
			var c Counts
			for j := range shuffled {
				c.Add(pred[j], shuffled[j])
			}
			out[i] = CalculateF1(c.TP, c.FP, c.FN)
		}
	})
	if err != nil {
		return nil, err
	}
	extreme := 0
	for _, f := range null {
		if f >= obsF1 {
			extreme++
		}
	}
	p := float64(extreme) / float64(n)
	return &Hypothesis{
		Observed:     obsF1,
		PValue:       p,
		Significance: Significance(p),
		Permutations: n,
	}, nil
}

// Baseline is the result of guessing labels at the dataset's positive rate.
type Baseline struct {
	Counts          Counts  `json:"counts"`
	F1              float64 `json:"f1"`
	ValidationRatio float64 `json:"validation_ratio"`
}

// RandomBaseline predicts each pair positive with probability equal to the
// fraction of true labels.
func RandomBaseline(samples []Sample, rng *rand.Rand) (*Baseline, error) {
	if len(samples) == 0 {
		return nil, apperrors.New(apperrors.ErrComputation, 0, "random baseline over zero pairs")
	}
	ratio := (&Dataset{Samples: samples}).ValidationRatio()
	var c Counts
	for _, s := range samples {
		c.Add(rng.Float64() < ratio, s.Label)
	}
	f1, err := c.F1()
	if err != nil {
		return nil, err
	}
	return &Baseline{Counts: c, F1: f1, ValidationRatio: ratio}, nil
}
