package keywords

import (
	"sort"
	"strings"

	"github.com/eventdetection/event-detection/internal/lexical"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Tag is a recovered POS tag, or unknown when no context matched.
type Tag struct {
	value string
	known bool
}

// UnknownTag is the tag of a phrase with no matching context.
var UnknownTag = Tag{}

// KnownTag wraps a POS tag.
func KnownTag(tag string) Tag {
	return Tag{value: tag, known: true}
}

// Value returns the tag and whether it is known.
func (t Tag) Value() (string, bool) {
	return t.value, t.known
}

func (t Tag) String() string {
	if !t.known {
		return "unknown"
	}
	return t.value
}

func (t Tag) isVerbHead() bool {
	return t.known && strings.HasPrefix(t.value, "V") && t.value != "VBG"
}

func (t Tag) isNounTail() bool {
	return t.known && (strings.HasPrefix(t.value, "N") || t.value == "VBG")
}

// Tagger recovers POS tags and surface forms for stemmed RAKE phrases.
type Tagger struct {
	norm *lexical.Normalizer
}

// NewTagger returns a Tagger that re-derives stems with norm. norm must be
// the Normalizer that built the candidates.
func NewTagger(norm *lexical.Normalizer) *Tagger {
	return &Tagger{norm: norm}
}

// Tag files every phrase under its recovered tags. A single-word phrase is
// filed once per occurrence under that occurrence's tag. A multi-word phrase
// is filed under its first word's tag when that is a non-gerund verb, and
// under its last word's tag when that is a noun or gerund. Both buckets get
// the same surface text, taken from the first word's match when there is one.
//
// Phrases referencing a stem with no recorded occurrence are skipped; the
// returned set then comes with an error wrapping ErrUnobservedSubword.
func (t *Tagger) Tag(phrases []Phrase, cands Candidates) (KeywordSet, error) {
	set := NewKeywordSet()
	var unobserved []string
	for _, p := range phrases {
		words := strings.Fields(p.Text)
		if len(words) == 0 {
			continue
		}
		if len(words) == 1 {
			occs, ok := cands[words[0]]
			if !ok {
				unobserved = append(unobserved, p.Text)
				continue
			}
			for _, occ := range occs {
				set.Add(occ.Tag, occ.Word, p.Score)
			}
			continue
		}

		firstOccs, okFirst := cands[words[0]]
		lastOccs, okLast := cands[words[len(words)-1]]
		if !okFirst || !okLast {
			unobserved = append(unobserved, p.Text)
			continue
		}
		firstTag, surface := t.recover(p.Text, firstOccs)
		lastTag, lastSurface := t.recover(p.Text, lastOccs)
		if surface == "" {
			surface = lastSurface
		}
		if firstTag.isVerbHead() {
			set.Add(firstTag.value, surface, p.Score)
		}
		if lastTag.isNounTail() {
			set.Add(lastTag.value, surface, p.Score)
		}
	}
	if len(unobserved) > 0 {
		sort.Strings(unobserved)
		return set, apperrors.Newf(apperrors.ErrUnobservedSubword, 0, "%d phrase(s): %s", len(unobserved), strings.Join(unobserved, ", "))
	}
	return set, nil
}

// recover scans occurrences and their contexts in order and returns the tag
// and surface context of the first context that normalizes to stemmed.
func (t *Tagger) recover(stemmed string, occs []Candidate) (Tag, string) {
	for _, occ := range occs {
		for _, ctx := range occ.Contexts {
			if t.norm.NormalizePhrase(ctx) == stemmed {
				return KnownTag(occ.Tag), ctx
			}
		}
	}
	return UnknownTag, ""
}
