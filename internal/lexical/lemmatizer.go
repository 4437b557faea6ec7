package lexical

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

//go:embed data/lemmas.csv
var defaultLemmas string

// Lemmatizer maps inflected forms to their dictionary headword. Unknown
// words map to themselves.
type Lemmatizer struct {
	lemmas map[string]string
}

// NewLemmatizer builds a Lemmatizer from an inflected-form to lemma map.
// Keys are lowercased.
func NewLemmatizer(lemmas map[string]string) *Lemmatizer {
	m := make(map[string]string, len(lemmas))
	for k, v := range lemmas {
		m[strings.ToLower(k)] = strings.ToLower(v)
	}
	return &Lemmatizer{lemmas: m}
}

// LoadLemmatizer reads "inflected,lemma" lines. Blank lines and lines
// starting with # are ignored.
func LoadLemmatizer(r io.Reader) (*Lemmatizer, error) {
	lemmas := make(map[string]string)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		inflected, lemma, ok := strings.Cut(line, ",")
		inflected, lemma = strings.TrimSpace(inflected), strings.TrimSpace(lemma)
		if !ok || inflected == "" || lemma == "" {
			return nil, apperrors.Newf(apperrors.ErrConfiguration, 0, "lemma file line %d: expected inflected,lemma", lineNo)
		}
		lemmas[inflected] = lemma
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading lemma file: %w", err)
	}
	return NewLemmatizer(lemmas), nil
}

var (
	defaultLemmatizerOnce sync.Once
	defaultLemmatizer     *Lemmatizer
)

// DefaultLemmatizer returns the built-in irregular-noun lemmatizer.
func DefaultLemmatizer() *Lemmatizer {
	defaultLemmatizerOnce.Do(func() {
		l, err := LoadLemmatizer(strings.NewReader(defaultLemmas))
		if err != nil {
			panic(fmt.Sprintf("embedded lemma file: %v", err))
		}
		defaultLemmatizer = l
	})
	return defaultLemmatizer
}

// Lemma returns the headword for word, or word itself when unknown.
func (l *Lemmatizer) Lemma(word string) string {
	if l == nil {
		return word
	}
	if lemma, ok := l.lemmas[word]; ok {
		return lemma
	}
	return word
}

// Len returns the number of known inflected forms.
func (l *Lemmatizer) Len() int {
	return len(l.lemmas)
}
