// Package query holds event queries and expands their terms through lexical
// relations before matching.
package query

import (
	"strings"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Parts are the free-text elements of an event query.
type Parts struct {
	Subject        string `json:"subject"`
	Verb           string `json:"verb"`
	DirectObject   string `json:"direct_obj,omitempty"`
	IndirectObject string `json:"indirect_obj,omitempty"`
	Location       string `json:"location,omitempty"`
}

// Text joins the non-empty parts with single spaces.
func (p Parts) Text() string {
	elems := make([]string, 0, 5)
	for _, e := range []string{p.Subject, p.Verb, p.DirectObject, p.IndirectObject, p.Location} {
		if e = strings.TrimSpace(e); e != "" {
			elems = append(elems, e)
		}
	}
	return strings.Join(elems, " ")
}

// Expansion maps a POS tag to query terms and their expansion terms.
type Expansion map[string]map[string][]string

// Add records term under tag with its expansions.
func (e Expansion) Add(tag, term string, expansions []string) {
	bucket, ok := e[tag]
	if !ok {
		bucket = make(map[string][]string)
		e[tag] = bucket
	}
	if expansions == nil {
		expansions = []string{}
	}
	bucket[term] = expansions
}

// Terms returns the number of (tag, term) pairs.
func (e Expansion) Terms() int {
	n := 0
	for _, bucket := range e {
		n += len(bucket)
	}
	return n
}

// Query is an event query. Expansion is nil until the query is expanded and
// is not recomputed afterwards.
type Query struct {
	ID        string    `json:"id"`
	Parts     Parts     `json:"parts"`
	Expansion Expansion `json:"expansion,omitempty"`
}

// New validates and returns a query.
func New(id string, parts Parts) (*Query, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 0, "query id is required")
	}
	if parts.Text() == "" {
		return nil, apperrors.Newf(apperrors.ErrEmptyQuery, 0, "query %s has no text", id)
	}
	return &Query{ID: id, Parts: parts}, nil
}

// Text returns the text that is tagged and expanded.
func (q *Query) Text() string {
	return q.Parts.Text()
}

// Expanded reports whether the expansion has been computed.
func (q *Query) Expanded() bool {
	return q.Expansion != nil
}
