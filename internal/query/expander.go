package query

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/eventdetection/event-detection/internal/lexical"
	"github.com/eventdetection/event-detection/internal/postag"
	"github.com/eventdetection/event-detection/pkg/config"
)

// Expander tags query text and expands each content word through Relations.
type Expander struct {
	tagger postag.Tagger
	stop   *lexical.Stoplist
	rel    Relations
	cfg    config.ExpansionConfig
}

// NewExpander returns an Expander. Synonyms are always looked up; hypernyms
// and hyponyms follow cfg.
func NewExpander(tagger postag.Tagger, stop *lexical.Stoplist, rel Relations, cfg config.ExpansionConfig) *Expander {
	return &Expander{tagger: tagger, stop: stop, rel: rel, cfg: cfg}
}

// Expand tags text and returns tag -> lowercase term -> expansion terms.
// Stopwords and tokens with non-alphanumeric characters are dropped. Terms
// whose tag has no word class get an empty expansion list.
func (x *Expander) Expand(ctx context.Context, text string) (Expansion, error) {
	sentences, err := x.tagger.Tag(text)
	if err != nil {
		return nil, fmt.Errorf("tagging query text: %w", err)
	}
	exp := make(Expansion)
	for _, s := range sentences {
		for _, tok := range s {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			term := strings.ToLower(tok.Word)
			if x.stop.Contains(term) || !isAlphanumeric(term) {
				continue
			}
			if _, done := exp[tok.Tag][term]; done {
				continue
			}
			related, err := x.related(ctx, term, tok.Tag)
			if err != nil {
				return nil, err
			}
			exp.Add(tok.Tag, term, related)
		}
	}
	return exp, nil
}

// ExpandQuery fills q.Expansion unless it is already set.
func (x *Expander) ExpandQuery(ctx context.Context, q *Query) error {
	if q.Expanded() {
		return nil
	}
	exp, err := x.Expand(ctx, q.Text())
	if err != nil {
		return fmt.Errorf("expanding query %s: %w", q.ID, err)
	}
	q.Expansion = exp
	return nil
}

func (x *Expander) related(ctx context.Context, term, tag string) ([]string, error) {
	class, ok := ClassOf(tag)
	if !ok {
		return []string{}, nil
	}
	lookups := []func(context.Context, string, WordClass) ([]string, error){x.rel.Synonyms}
	if x.cfg.Hypernyms {
		lookups = append(lookups, x.rel.Hypernyms)
	}
	if x.cfg.Hyponyms {
		lookups = append(lookups, x.rel.Hyponyms)
	}

	seen := map[string]bool{term: true}
	out := []string{}
	for _, lookup := range lookups {
		words, err := lookup(ctx, term, class)
		if err != nil {
			return nil, fmt.Errorf("looking up relations for %q: %w", term, err)
		}
		for _, w := range words {
			w = strings.ToLower(strings.ReplaceAll(w, "_", " "))
			if w == "" || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out, nil
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
