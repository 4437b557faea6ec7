package postag

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Tagger assigns Penn Treebank tags to raw text.
type Tagger interface {
	Tag(text string) ([]Sentence, error)
}

// ProseTagger tags text with prose's averaged perceptron model. It is safe
// for concurrent use.
type ProseTagger struct{}

// NewProseTagger returns a ProseTagger.
func NewProseTagger() *ProseTagger {
	return &ProseTagger{}
}

// Tag segments text into sentences and tags each one. Whitespace-only
// punctuation tokens are dropped.
func (p *ProseTagger) Tag(text string) ([]Sentence, error) {
	text = strings.TrimSpace(StripURLs(text))
	if text == "" {
		return nil, nil
	}
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false),
		prose.WithTokenization(false),
	)
	if err != nil {
		return nil, fmt.Errorf("segmenting text: %w", err)
	}

	var out []Sentence
	for _, sent := range doc.Sentences() {
		sdoc, err := prose.NewDocument(sent.Text,
			prose.WithSegmentation(false),
			prose.WithExtraction(false),
		)
		if err != nil {
			return nil, fmt.Errorf("tagging sentence: %w", err)
		}
		var s Sentence
		for _, tok := range sdoc.Tokens() {
			word := strings.TrimSpace(tok.Text)
			if word == "" || tok.Tag == "" {
				continue
			}
			if sentenceEnds[word+"_"+tok.Tag] {
				continue
			}
			s = append(s, TaggedToken{Word: word, Tag: tok.Tag})
		}
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out, nil
}
