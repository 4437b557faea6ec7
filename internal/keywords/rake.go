package keywords

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/eventdetection/event-detection/internal/lexical"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Options filters RAKE candidate phrases.
type Options struct {
	// MaxWords is the largest number of words a phrase may have.
	MaxWords int
	// MinChars rejects phrases shorter than this many characters.
	MinChars int
	// MinOccurrences rejects phrases seen fewer times in the text.
	MinOccurrences int
}

// Phrase is a RAKE keyword phrase and its score.
type Phrase struct {
	Text  string
	Score float64
}

// Rake scores keyword phrases by word degree over frequency.
type Rake struct {
	stop *lexical.Stoplist
	opts Options
}

// NewRake returns a Rake that breaks phrases at words in stop.
func NewRake(stop *lexical.Stoplist, opts Options) (*Rake, error) {
	if stop == nil {
		return nil, apperrors.New(apperrors.ErrConfiguration, 0, "rake: stoplist is required")
	}
	if opts.MaxWords < 1 {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, 0, "rake: max words must be at least 1, got %d", opts.MaxWords)
	}
	if opts.MinChars < 0 {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, 0, "rake: min chars must not be negative, got %d", opts.MinChars)
	}
	if opts.MinOccurrences < 1 {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, 0, "rake: min occurrences must be at least 1, got %d", opts.MinOccurrences)
	}
	return &Rake{stop: stop, opts: opts}, nil
}

// isPhraseDelimiter reports whether r ends a candidate phrase.
func isPhraseDelimiter(r rune) bool {
	switch r {
	case '[', ']', '\n', '.', '!', '?', ',', ';', ':', '\t', '-', '"', '(', ')', '\'', '’', '–':
		return true
	}
	return false
}

// Run extracts phrases from text, ordered by score descending then text.
func (r *Rake) Run(text string) []Phrase {
	var candidates []string
	for _, chunk := range strings.FieldsFunc(strings.ToLower(text), isPhraseDelimiter) {
		candidates = append(candidates, r.splitAtStopwords(chunk)...)
	}

	var accepted []string
	counts := make(map[string]int)
	for _, c := range candidates {
		if !r.acceptable(c) {
			continue
		}
		if counts[c] == 0 {
			accepted = append(accepted, c)
		}
		counts[c]++
	}

	scores := wordScores(candidates, r.acceptable)

	out := make([]Phrase, 0, len(accepted))
	for _, c := range accepted {
		if counts[c] < r.opts.MinOccurrences {
			continue
		}
		var score float64
		for _, w := range separateWords(c) {
			score += scores[w]
		}
		out = append(out, Phrase{Text: c, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Text < out[j].Text
	})
	return out
}

func (r *Rake) splitAtStopwords(chunk string) []string {
	var (
		phrases []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			phrases = append(phrases, strings.Join(current, " "))
			current = nil
		}
	}
	for _, w := range strings.Fields(chunk) {
		if r.stop.Contains(w) {
			flush()
			continue
		}
		current = append(current, w)
	}
	flush()
	return phrases
}

func (r *Rake) acceptable(phrase string) bool {
	if len([]rune(phrase)) < r.opts.MinChars {
		return false
	}
	if len(strings.Fields(phrase)) > r.opts.MaxWords {
		return false
	}
	var letters, digits int
	for _, c := range phrase {
		switch {
		case unicode.IsLetter(c):
			letters++
		case unicode.IsDigit(c):
			digits++
		}
	}
	return letters > 0 && digits <= letters
}

// wordScores computes degree/frequency for every word in the accepted
// phrases. Degree counts co-occurring words including the word itself.
func wordScores(phrases []string, accept func(string) bool) map[string]float64 {
	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, p := range phrases {
		if !accept(p) {
			continue
		}
		words := separateWords(p)
		for _, w := range words {
			freq[w]++
			degree[w] += len(words) - 1
		}
	}
	scores := make(map[string]float64, len(freq))
	for w, f := range freq {
		scores[w] = float64(degree[w]+f) / float64(f)
	}
	return scores
}

// separateWords splits a phrase into scoring words, dropping numbers.
func separateWords(phrase string) []string {
	fields := strings.FieldsFunc(phrase, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '+' || r == '-' || r == '/')
	})
	out := fields[:0]
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f, 64); err == nil {
			continue
		}
		out = append(out, f)
	}
	return out
}
