package lexical

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

func TestNormalizeCaseInsensitive(t *testing.T) {
	n := NewNormalizer(nil)
	tests := []struct {
		a, b string
	}{
		{"running", "Running"},
		{"CATS", "cats"},
		{"Elections", "election"},
		{"café", "cafe"},
	}
	for _, tt := range tests {
		if got, want := n.Normalize(tt.a), n.Normalize(tt.b); got != want {
			t.Errorf("Normalize(%q) = %q, Normalize(%q) = %q; want equal", tt.a, got, tt.b, want)
		}
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := NewNormalizer(nil)
	for _, w := range []string{"protesters", "marched", "capital", "running"} {
		first := n.Normalize(w)
		for i := 0; i < 5; i++ {
			if got := n.Normalize(w); got != first {
				t.Fatalf("Normalize(%q) changed from %q to %q", w, first, got)
			}
		}
	}
}

func TestNormalizeKnownStems(t *testing.T) {
	n := NewNormalizer(nil)
	tests := []struct {
		word string
		want string
	}{
		{"cats", "cat"},
		{"running", "run"},
		{"children", "child"},
		{"women", "woman"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := n.Normalize(tt.word); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.word, got, tt.want)
		}
	}
}

func TestNormalizeIdempotentOnStems(t *testing.T) {
	n := NewNormalizer(nil)
	for _, w := range []string{"cat", "run", "child", "protest"} {
		s := n.Normalize(w)
		if again := n.Normalize(s); again != s {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", w, again, s)
		}
	}
}

func TestNormalizePhrase(t *testing.T) {
	n := NewNormalizer(nil)
	if got, want := n.NormalizePhrase("  Fluffy   Cats "), n.Normalize("fluffy")+" cat"; got != want {
		t.Errorf("NormalizePhrase = %q, want %q", got, want)
	}
}

func TestLoadLemmatizer(t *testing.T) {
	l, err := LoadLemmatizer(strings.NewReader("# comment\nMice,Mouse\n\ngeese,goose\n"))
	if err != nil {
		t.Fatalf("LoadLemmatizer: %v", err)
	}
	if got := l.Lemma("mice"); got != "mouse" {
		t.Errorf("Lemma(mice) = %q, want mouse", got)
	}
	if got := l.Lemma("dogs"); got != "dogs" {
		t.Errorf("Lemma(dogs) = %q, want identity", got)
	}

	_, err = LoadLemmatizer(strings.NewReader("broken-line\n"))
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestStoplist(t *testing.T) {
	s := DefaultStoplist()
	if s.Len() < 500 {
		t.Fatalf("default stoplist has %d words, want the SMART list", s.Len())
	}
	for _, w := range []string{"the", "The", "are", "however"} {
		if !s.Contains(w) {
			t.Errorf("Contains(%q) = false", w)
		}
	}
	if s.Contains("election") {
		t.Error("Contains(election) = true")
	}

	custom, err := LoadStoplist(strings.NewReader("# words\nfoo\n  Bar \n"))
	if err != nil {
		t.Fatalf("LoadStoplist: %v", err)
	}
	if got := custom.Words(); len(got) != 2 || got[0] != "bar" || got[1] != "foo" {
		t.Errorf("Words() = %v, want [bar foo]", got)
	}
}

func TestStoplistMatchesExactWords(t *testing.T) {
	s := DefaultStoplist()
	n := NewNormalizer(nil)
	for _, w := range []string{"changes", "placed", "according"} {
		if !s.Contains(w) {
			t.Fatalf("stoplist lacks %q", w)
		}
	}
	for _, w := range []string{"change", "place", "accord", n.Normalize("changes")} {
		if s.Contains(w) {
			t.Errorf("stoplist contains content word %q", w)
		}
	}
}
