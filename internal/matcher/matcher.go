// Package matcher scores how well an article's keywords cover a query's
// expanded terms.
package matcher

import (
	"context"
	"fmt"

	"github.com/eventdetection/event-detection/internal/keywords"
	"github.com/eventdetection/event-detection/internal/query"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Algorithm is the name validation results are stored under.
const Algorithm = "keyword"

const (
	exactPoints   = 2
	synonymPoints = 1
)

// Score returns matched points over available points. Every (tag, term)
// pair is worth 2: 2 when the term is in the article's same-tag bucket,
// otherwise 1 when any of its expansions is. An expansion with no terms is
// an ErrEmptyQuery error.
func Score(exp query.Expansion, kw keywords.KeywordSet) (float64, error) {
	var matched, total int
	for tag, terms := range exp {
		bucket := kw[tag]
		for term, expansions := range terms {
			total += exactPoints
			if _, ok := bucket[term]; ok {
				matched += exactPoints
				continue
			}
			for _, e := range expansions {
				if _, ok := bucket[e]; ok {
					matched += synonymPoints
					break
				}
			}
		}
	}
	if total == 0 {
		return 0, apperrors.New(apperrors.ErrEmptyQuery, 0, "query has no terms to match")
	}
	return float64(matched) / float64(total), nil
}

// KeywordSource returns an article's keyword set.
type KeywordSource interface {
	Keywords(ctx context.Context, articleID string) (keywords.KeywordSet, error)
}

// Validator scores queries against stored article keywords.
type Validator struct {
	keywords KeywordSource
}

// NewValidator returns a Validator reading keyword sets from src.
func NewValidator(src KeywordSource) *Validator {
	return &Validator{keywords: src}
}

// Validate scores an expanded query against one article.
func (v *Validator) Validate(ctx context.Context, q *query.Query, articleID string) (float64, error) {
	if !q.Expanded() {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, 0, "query %s has not been expanded", q.ID)
	}
	kw, err := v.keywords.Keywords(ctx, articleID)
	if err != nil {
		return 0, fmt.Errorf("loading keywords for article %s: %w", articleID, err)
	}
	score, err := Score(q.Expansion, kw)
	if err != nil {
		return 0, fmt.Errorf("scoring query %s against article %s: %w", q.ID, articleID, err)
	}
	return score, nil
}
