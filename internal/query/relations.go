package query

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"gopkg.in/yaml.v3"
)

// WordClass is the coarse part of speech lexical relations are keyed by.
type WordClass string

const (
	Noun      WordClass = "noun"
	Verb      WordClass = "verb"
	Adjective WordClass = "adjective"
	Adverb    WordClass = "adverb"
)

// ClassOf maps a Penn Treebank tag to its word class.
func ClassOf(tag string) (WordClass, bool) {
	switch {
	case strings.HasPrefix(tag, "NN"):
		return Noun, true
	case strings.HasPrefix(tag, "VB"):
		return Verb, true
	case strings.HasPrefix(tag, "JJ"):
		return Adjective, true
	case strings.HasPrefix(tag, "RB"):
		return Adverb, true
	}
	return "", false
}

// Relations looks up lexically related words.
type Relations interface {
	Synonyms(ctx context.Context, word string, class WordClass) ([]string, error)
	Hypernyms(ctx context.Context, word string, class WordClass) ([]string, error)
	Hyponyms(ctx context.Context, word string, class WordClass) ([]string, error)
}

// Entry is one thesaurus headword.
type Entry struct {
	Synonyms  []string `yaml:"synonyms"`
	Hypernyms []string `yaml:"hypernyms"`
	Hyponyms  []string `yaml:"hyponyms"`
}

// Thesaurus is a file-backed Relations keyed by word class and lowercase
// headword. Multi-word names use "_" between words.
type Thesaurus struct {
	entries map[WordClass]map[string]Entry
}

// NewThesaurus builds a Thesaurus from entries.
func NewThesaurus(entries map[WordClass]map[string]Entry) *Thesaurus {
	t := &Thesaurus{entries: make(map[WordClass]map[string]Entry, len(entries))}
	for class, words := range entries {
		m := make(map[string]Entry, len(words))
		for w, e := range words {
			m[strings.ToLower(w)] = e
		}
		t.entries[class] = m
	}
	return t
}

// LoadThesaurus decodes a YAML thesaurus:
//
//	noun:
//	  car:
//	    synonyms: [automobile, motor_car]
//	    hypernyms: [motor_vehicle]
func LoadThesaurus(r io.Reader) (*Thesaurus, error) {
	var raw map[WordClass]map[string]Entry
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, 0, "decoding thesaurus: %v", err)
	}
	for class := range raw {
		switch class {
		case Noun, Verb, Adjective, Adverb:
		default:
			return nil, apperrors.Newf(apperrors.ErrConfiguration, 0, "thesaurus: unknown word class %q", class)
		}
	}
	return NewThesaurus(raw), nil
}

// LoadThesaurusFile reads a thesaurus from path.
func LoadThesaurusFile(path string) (*Thesaurus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening thesaurus %s: %w", path, err)
	}
	defer f.Close()
	return LoadThesaurus(f)
}

func (t *Thesaurus) lookup(word string, class WordClass) Entry {
	return t.entries[class][strings.ToLower(word)]
}

func (t *Thesaurus) Synonyms(_ context.Context, word string, class WordClass) ([]string, error) {
	return t.lookup(word, class).Synonyms, nil
}

func (t *Thesaurus) Hypernyms(_ context.Context, word string, class WordClass) ([]string, error) {
	return t.lookup(word, class).Hypernyms, nil
}

func (t *Thesaurus) Hyponyms(_ context.Context, word string, class WordClass) ([]string, error) {
	return t.lookup(word, class).Hyponyms, nil
}
