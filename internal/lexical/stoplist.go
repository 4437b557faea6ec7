package lexical

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
)

//go:embed data/smart_stoplist.txt
var smartStoplist string

// Stoplist is a set of lowercase stopwords.
type Stoplist struct {
	words map[string]struct{}
}

// NewStoplist builds a Stoplist from words, lowercasing each.
func NewStoplist(words []string) *Stoplist {
	s := &Stoplist{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			s.words[w] = struct{}{}
		}
	}
	return s
}

// LoadStoplist reads one stopword per line; # starts a comment line.
func LoadStoplist(r io.Reader) (*Stoplist, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stoplist: %w", err)
	}
	return NewStoplist(words), nil
}

// DefaultStoplist returns the built-in SMART stoplist.
func DefaultStoplist() *Stoplist {
	s, err := LoadStoplist(strings.NewReader(smartStoplist))
	if err != nil {
		panic(fmt.Sprintf("embedded stoplist: %v", err))
	}
	return s
}

// Contains reports whether word (case-insensitively) is a stopword.
func (s *Stoplist) Contains(word string) bool {
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

// Words returns the stopwords in sorted order.
func (s *Stoplist) Words() []string {
	out := make([]string, 0, len(s.words))
	for w := range s.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of stopwords.
func (s *Stoplist) Len() int {
	return len(s.words)
}
