// Package benchmark contains Go benchmarks for keyword extraction, query
// matching, and threshold evaluation, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/eventdetection/event-detection/internal/article"
	"github.com/eventdetection/event-detection/internal/keywords"
	"github.com/eventdetection/event-detection/internal/lexical"
	"github.com/eventdetection/event-detection/internal/postag"
	"github.com/eventdetection/event-detection/pkg/config"
)

const taggedSentence = "A_DT severe_JJ storm_NN hit_VBD the_DT northern_JJ coast_NN on_IN Monday_NNP ,_, " +
	"flooding_VBG coastal_JJ towns_NNS and_CC cutting_VBG power_NN to_TO thousands_NNS ._."

func taggedBody(sentences int) string {
	parts := make([]string, sentences)
	for i := range parts {
		parts[i] = taggedSentence
	}
	return strings.Join(parts, " ")
}

func newExtractor(b *testing.B) *keywords.Extractor {
	b.Helper()
	norm := lexical.NewNormalizer(nil)
	stop := lexical.DefaultStoplist()
	e, err := keywords.NewExtractor(norm, stop, config.Default().Keywords)
	if err != nil {
		b.Fatalf("NewExtractor: %v", err)
	}
	return e
}

// BenchmarkParseSentences measures tagged-text parsing for bodies of
// increasing length.
func BenchmarkParseSentences(b *testing.B) {
	for _, n := range []int{1, 10, 100} {
		text := taggedBody(n)
		b.Run(fmt.Sprintf("sentences_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				if _, err := postag.ParseSentences(text); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRake measures phrase scoring over normalized text.
func BenchmarkRake(b *testing.B) {
	norm := lexical.NewNormalizer(nil)
	stop := lexical.DefaultStoplist()
	r, err := keywords.NewRake(stop, keywords.Options{MaxWords: 3, MinChars: 4, MinOccurrences: 1})
	if err != nil {
		b.Fatalf("NewRake: %v", err)
	}
	sentences, err := postag.ParseSentences(taggedBody(50))
	if err != nil {
		b.Fatal(err)
	}
	text, _ := keywords.BuildCandidates(sentences, norm, stop)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Run(text)
	}
}

// BenchmarkExtract measures full article extraction from pre-tagged text.
func BenchmarkExtract(b *testing.B) {
	e := newExtractor(b)
	for _, n := range []int{10, 100} {
		a := article.Article{
			ID:          "bench",
			TitleTagged: "Storm_NN floods_VBZ northern_JJ coast_NN",
			BodyTagged:  taggedBody(n),
		}
		b.Run(fmt.Sprintf("sentences_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := e.Extract(a); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkExtractParallel measures concurrent extraction with a shared
// extractor.
func BenchmarkExtractParallel(b *testing.B) {
	e := newExtractor(b)
	a := article.Article{
		ID:          "bench",
		TitleTagged: "Storm_NN floods_VBZ northern_JJ coast_NN",
		BodyTagged:  taggedBody(20),
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := e.Extract(a); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
