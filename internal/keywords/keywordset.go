package keywords

import (
	"encoding/json"
	"fmt"
	"sort"
)

// KeywordSet maps a POS tag to its keywords and their RAKE weights. A keyword
// appears at most once per tag. Matching only looks at membership.
type KeywordSet map[string]map[string]float64

// Keyword is a surface keyword and its weight.
type Keyword struct {
	Text   string
	Weight float64
}

// NewKeywordSet returns an empty set.
func NewKeywordSet() KeywordSet {
	return make(KeywordSet)
}

// Add files word under tag, keeping the larger weight on duplicates.
func (k KeywordSet) Add(tag, word string, weight float64) {
	bucket, ok := k[tag]
	if !ok {
		bucket = make(map[string]float64)
		k[tag] = bucket
	}
	if cur, ok := bucket[word]; !ok || weight > cur {
		bucket[word] = weight
	}
}

// Contains reports whether word is filed under tag.
func (k KeywordSet) Contains(tag, word string) bool {
	_, ok := k[tag][word]
	return ok
}

// Merge unions other into k bucket by bucket.
func (k KeywordSet) Merge(other KeywordSet) {
	for tag, bucket := range other {
		for word, weight := range bucket {
			k.Add(tag, word, weight)
		}
	}
}

// Tags returns the tags in sorted order.
func (k KeywordSet) Tags() []string {
	tags := make([]string, 0, len(k))
	for tag := range k {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Keywords returns the keywords under tag by weight descending, then text.
func (k KeywordSet) Keywords(tag string) []Keyword {
	bucket := k[tag]
	out := make([]Keyword, 0, len(bucket))
	for word, weight := range bucket {
		out = append(out, Keyword{Text: word, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Text < out[j].Text
	})
	return out
}

// Len returns the number of (tag, keyword) entries.
func (k KeywordSet) Len() int {
	n := 0
	for _, bucket := range k {
		n += len(bucket)
	}
	return n
}

// Distinct returns the number of distinct surface keywords across tags.
func (k KeywordSet) Distinct() int {
	seen := make(map[string]struct{})
	for _, bucket := range k {
		for word := range bucket {
			seen[word] = struct{}{}
		}
	}
	return len(seen)
}

// Equal reports whether k and other hold the same (tag, keyword) entries,
// ignoring weights and empty buckets.
func (k KeywordSet) Equal(other KeywordSet) bool {
	if k.Len() != other.Len() {
		return false
	}
	for tag, bucket := range k {
		for word := range bucket {
			if !other.Contains(tag, word) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes the set as {"TAG": [["surface", weight], ...]}.
func (k KeywordSet) MarshalJSON() ([]byte, error) {
	out := make(map[string][][2]any, len(k))
	for tag := range k {
		kws := k.Keywords(tag)
		pairs := make([][2]any, len(kws))
		for i, kw := range kws {
			pairs[i] = [2]any{kw.Text, kw.Weight}
		}
		out[tag] = pairs
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes {"TAG": [["surface", weight], ...]} and the legacy
// {"TAG": ["surface", ...]} shape, which gets weight 0.
func (k *KeywordSet) UnmarshalJSON(data []byte) error {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding keyword set: %w", err)
	}
	set := make(KeywordSet, len(raw))
	for tag, entries := range raw {
		if _, ok := set[tag]; !ok {
			set[tag] = make(map[string]float64, len(entries))
		}
		for _, entry := range entries {
			var word string
			if err := json.Unmarshal(entry, &word); err == nil {
				set.Add(tag, word, 0)
				continue
			}
			var pair []json.RawMessage
			if err := json.Unmarshal(entry, &pair); err != nil || len(pair) != 2 {
				return fmt.Errorf("decoding keyword set: tag %s: entry %s is neither a string nor a [surface, weight] pair", tag, entry)
			}
			var weight float64
			if err := json.Unmarshal(pair[0], &word); err != nil {
				return fmt.Errorf("decoding keyword set: tag %s: surface: %w", tag, err)
			}
			if err := json.Unmarshal(pair[1], &weight); err != nil {
				return fmt.Errorf("decoding keyword set: tag %s: weight: %w", tag, err)
			}
			set.Add(tag, word, weight)
		}
	}
	*k = set
	return nil
}
