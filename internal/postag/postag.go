// Package postag holds part-of-speech tagged text: the {word}_{TAG} codec
// stored alongside every article, and a Tagger backed by prose for text that
// arrives untagged.
package postag

import (
	"regexp"
	"strings"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// TaggedToken is a surface word with its Penn Treebank tag.
type TaggedToken struct {
	Word string `json:"word"`
	Tag  string `json:"tag"`
}

// Sentence is one tagged sentence.
type Sentence []TaggedToken

// Words returns the surface words of s.
func (s Sentence) Words() []string {
	out := make([]string, len(s))
	for i, tok := range s {
		out[i] = tok.Word
	}
	return out
}

var (
	urlPattern = regexp.MustCompile(`https?://\S+\s?`)

	sentenceEnds = map[string]bool{
		"._.": true,
		"!_.": true,
		"?_.": true,
	}
)

// StripURLs removes http(s) URLs and the whitespace that follows them.
func StripURLs(text string) string {
	return urlPattern.ReplaceAllString(text, "")
}

// ParseSentences splits {word}_{TAG} text into sentences. Sentences end at a
// tagged terminal punctuation token or a newline; the terminal token is
// dropped. Tokens without an underscore are skipped. A token whose word or
// tag is empty is an input error.
func ParseSentences(tagged string) ([]Sentence, error) {
	var (
		sentences []Sentence
		current   Sentence
	)
	flush := func() {
		if len(current) > 0 {
			sentences = append(sentences, current)
			current = nil
		}
	}
	for _, line := range strings.Split(StripURLs(tagged), "\n") {
		for _, field := range strings.Fields(line) {
			if sentenceEnds[field] {
				flush()
				continue
			}
			idx := strings.LastIndexByte(field, '_')
			if idx < 0 {
				continue
			}
			word, tag := field[:idx], field[idx+1:]
			if word == "" || tag == "" {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput, 0, "malformed tagged token %q", field)
			}
			current = append(current, TaggedToken{Word: word, Tag: tag})
		}
		flush()
	}
	return sentences, nil
}

// FormatTagged renders sentences as {word}_{TAG} tokens, one sentence per
// line.
func FormatTagged(sentences []Sentence) string {
	var b strings.Builder
	for i, s := range sentences {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, tok := range s {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(tok.Word)
			b.WriteByte('_')
			b.WriteString(tok.Tag)
		}
	}
	return b.String()
}
