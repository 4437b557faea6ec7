package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/eventdetection/event-detection/internal/evaluation"
	"github.com/eventdetection/event-detection/internal/keywords"
	"github.com/eventdetection/event-detection/internal/matcher"
	"github.com/eventdetection/event-detection/internal/query"
)

func randomSamples(n int) []evaluation.Sample {
	rng := rand.New(rand.NewSource(1))
	samples := make([]evaluation.Sample, n)
	for i := range samples {
		score := rng.Float64()
		samples[i] = evaluation.Sample{
			Pair:  evaluation.Pair{QueryID: fmt.Sprintf("q%d", i%50), ArticleID: fmt.Sprintf("a%d", i)},
			Score: score,
			Label: score+rng.NormFloat64()*0.2 > 0.5,
		}
	}
	return samples
}

// BenchmarkScore measures matching one expansion against keyword sets of
// increasing size.
func BenchmarkScore(b *testing.B) {
	exp := query.Expansion{}
	exp.Add("NN", "storm", []string{"tempest", "hurricane"})
	exp.Add("VB", "hit", []string{"strike"})
	exp.Add("NN", "coast", []string{"shore"})

	for _, n := range []int{10, 1000} {
		kw := keywords.NewKeywordSet()
		for i := 0; i < n; i++ {
			kw.Add("NN", fmt.Sprintf("word%d", i), 1)
		}
		kw.Add("NN", "hurricane", 1)
		b.Run(fmt.Sprintf("keywords_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := matcher.Score(exp, kw); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkBestThreshold measures the global grid search.
func BenchmarkBestThreshold(b *testing.B) {
	grid := evaluation.Grid{Start: 0.1, Stop: 0.4, Step: 0.0001}
	for _, n := range []int{100, 10000} {
		samples := randomSamples(n)
		b.Run(fmt.Sprintf("pairs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := evaluation.BestThreshold(samples, grid); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLeaveOneOut measures held-out threshold selection.
func BenchmarkLeaveOneOut(b *testing.B) {
	samples := randomSamples(500)
	local := evaluation.Grid{Start: 0.1, Stop: 0.4, Step: 0.005}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := evaluation.LeaveOneOut(context.Background(), samples, 0.25, local); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBootstrap measures resampling throughput by worker count.
func BenchmarkBootstrap(b *testing.B) {
	samples := randomSamples(1000)
	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				rng := rand.New(rand.NewSource(42))
				if _, err := evaluation.Bootstrap(context.Background(), samples, 0.25, 1000, workers, rng); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
