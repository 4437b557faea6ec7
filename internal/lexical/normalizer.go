// Package lexical turns surface words into the canonical stems used for every
// keyword comparison, and holds the stoplist that breaks RAKE candidates.
//
// A single Normalizer value must be shared by every stage that derives stems;
// phrase candidates and tag recovery compare stems produced independently and
// silently miss if the two derivations differ.
package lexical

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer lowercases, folds diacritics, lemmatizes and stems words. It
// holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	lemmatizer *Lemmatizer
}

// NewNormalizer returns a Normalizer using l. A nil l uses DefaultLemmatizer.
func NewNormalizer(l *Lemmatizer) *Normalizer {
	if l == nil {
		l = DefaultLemmatizer()
	}
	return &Normalizer{lemmatizer: l}
}

// Normalize returns the stem of a single word.
func (n *Normalizer) Normalize(word string) string {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return ""
	}
	w = foldDiacritics(w)
	w = n.lemmatizer.Lemma(w)
	return english.Stem(w, true)
}

// NormalizePhrase normalizes each space-separated word and rejoins them with
// single spaces.
func (n *Normalizer) NormalizePhrase(phrase string) string {
	fields := strings.Fields(phrase)
	for i, f := range fields {
		fields[i] = n.Normalize(f)
	}
	return strings.Join(fields, " ")
}

func foldDiacritics(s string) string {
	if isASCII(s) {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
