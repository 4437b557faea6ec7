// Package keywords extracts POS-bucketed keyword sets from articles: phrase
// candidates around every tagged token, RAKE scoring over the stemmed text,
// and tag recovery that maps stemmed phrases back to surface keywords.
package keywords

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/eventdetection/event-detection/internal/article"
	"github.com/eventdetection/event-detection/internal/lexical"
	"github.com/eventdetection/event-detection/internal/postag"
	"github.com/eventdetection/event-detection/pkg/config"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Extractor runs candidate building, RAKE and tag recovery over an article's
// title and body. It is safe for concurrent use.
type Extractor struct {
	norm   *lexical.Normalizer
	stop   *lexical.Stoplist
	cfg    config.KeywordsConfig
	tagger postag.Tagger
	tags   *Tagger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTagger sets the POS tagger used for articles without tagged text.
func WithTagger(t postag.Tagger) Option {
	return func(e *Extractor) {
		e.tagger = t
	}
}

// NewExtractor validates cfg and returns an Extractor. Phrases break at
// tokens whose surface word is in stop.
func NewExtractor(norm *lexical.Normalizer, stop *lexical.Stoplist, cfg config.KeywordsConfig, opts ...Option) (*Extractor, error) {
	if norm == nil || stop == nil {
		return nil, apperrors.New(apperrors.ErrConfiguration, 0, "extractor: normalizer and stoplist are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Extractor{
		norm: norm,
		stop: stop,
		cfg:  cfg,
		tags: NewTagger(norm),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// BodyMinOccurrences returns how often a phrase must appear in a body of
// bodyChars characters: one per charsPerOccurrence, between 1 and max.
func BodyMinOccurrences(bodyChars int, cfg config.KeywordsConfig) int {
	n := int(math.Ceil(float64(bodyChars) / float64(cfg.BodyCharsPerOccurrence)))
	if n > cfg.MaxOccurrencesBody {
		n = cfg.MaxOccurrencesBody
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Extract returns the merged title and body keyword set for a. When some
// phrases could not be tagged the partial set is returned together with an
// error wrapping ErrUnobservedSubword.
func (e *Extractor) Extract(a article.Article) (KeywordSet, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	title, err := e.sentences(a.TitleTagged, a.Title)
	if err != nil {
		return nil, fmt.Errorf("article %s title: %w", a.ID, err)
	}
	body, err := e.sentences(a.BodyTagged, a.Body)
	if err != nil {
		return nil, fmt.Errorf("article %s body: %w", a.ID, err)
	}

	bodyChars := utf8.RuneCountInString(a.Body)
	if a.Body == "" {
		bodyChars = plainLength(body)
	}

	set, titleErr := e.ExtractSentences(title, e.cfg.MinOccurrencesTitle)
	if titleErr != nil && !errors.Is(titleErr, apperrors.ErrUnobservedSubword) {
		return nil, fmt.Errorf("article %s title: %w", a.ID, titleErr)
	}
	bodySet, bodyErr := e.ExtractSentences(body, BodyMinOccurrences(bodyChars, e.cfg))
	if bodyErr != nil && !errors.Is(bodyErr, apperrors.ErrUnobservedSubword) {
		return nil, fmt.Errorf("article %s body: %w", a.ID, bodyErr)
	}
	bodySet.Merge(set)

	if titleErr != nil || bodyErr != nil {
		return bodySet, fmt.Errorf("article %s: %w", a.ID, errors.Join(titleErr, bodyErr))
	}
	return bodySet, nil
}

// ExtractSentences runs one RAKE pass over tagged sentences.
func (e *Extractor) ExtractSentences(sentences []postag.Sentence, minOccurrences int) (KeywordSet, error) {
	rake, err := NewRake(e.stop, Options{
		MaxWords:       e.cfg.MaxWordsInKeyword,
		MinChars:       e.cfg.MinLettersInWord,
		MinOccurrences: minOccurrences,
	})
	if err != nil {
		return nil, err
	}
	text, cands := BuildCandidates(sentences, e.norm, e.stop)
	return e.tags.Tag(rake.Run(text), cands)
}

// Normalizer returns the normalizer shared by every extraction stage.
func (e *Extractor) Normalizer() *lexical.Normalizer {
	return e.norm
}

func (e *Extractor) sentences(tagged, plain string) ([]postag.Sentence, error) {
	if tagged != "" {
		return postag.ParseSentences(tagged)
	}
	if strings.TrimSpace(plain) == "" {
		return nil, nil
	}
	if e.tagger == nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 0, "text is not POS-tagged and no tagger is configured")
	}
	return e.tagger.Tag(plain)
}

func plainLength(sentences []postag.Sentence) int {
	n := 0
	for _, s := range sentences {
		for _, tok := range s {
			n += utf8.RuneCountInString(tok.Word) + 1
		}
	}
	return n
}
