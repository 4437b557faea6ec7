package keywords

import (
	"strings"

	"github.com/eventdetection/event-detection/internal/lexical"
	"github.com/eventdetection/event-detection/internal/postag"
)

// sentenceBreak separates sentences in the text handed to RAKE.
const sentenceBreak = "! "

// phraseBreak stands in for a stopword in the text handed to RAKE.
const phraseBreak = ","

// Candidate is one occurrence of a stem: the lowercased surface word, its
// tag, and the 2- and 3-word windows around it.
type Candidate struct {
	Word     string
	Tag      string
	Contexts []string
}

// Candidates maps a stem to its occurrences in text order.
type Candidates map[string][]Candidate

// Neighbors returns the windows around words[i] in the order left 2-word,
// left 3-word, right 2-word, right 3-word. Windows that would run past
// either end of the sentence are omitted.
func Neighbors(i int, words []string) []string {
	if i < 0 || i >= len(words) {
		return nil
	}
	out := make([]string, 0, 4)
	if i >= 1 {
		out = append(out, join(words[i-1:i+1]))
	}
	if i >= 2 {
		out = append(out, join(words[i-2:i+1]))
	}
	if i+1 < len(words) {
		out = append(out, join(words[i:i+2]))
	}
	if i+2 < len(words) {
		out = append(out, join(words[i:i+3]))
	}
	return out
}

func join(words []string) string {
	return strings.ToLower(strings.Join(words, " "))
}

// BuildCandidates lowercases and normalizes every token, records each
// occurrence under its stem, and returns the stemmed text for RAKE with
// sentences separated by "! ". A token whose lowercased surface word is in
// stop is written as a phrase break and gets no occurrence. stop may be nil.
func BuildCandidates(sentences []postag.Sentence, norm *lexical.Normalizer, stop *lexical.Stoplist) (string, Candidates) {
	cands := make(Candidates)
	stemmed := make([]string, 0, len(sentences))
	for _, sentence := range sentences {
		tokens := splitTokens(sentence)
		if len(tokens) == 0 {
			continue
		}
		words := make([]string, len(tokens))
		for i, tok := range tokens {
			words[i] = strings.ToLower(tok.Word)
		}
		stems := make([]string, len(tokens))
		for i, tok := range tokens {
			if stop != nil && stop.Contains(words[i]) {
				stems[i] = phraseBreak
				continue
			}
			stem := norm.Normalize(words[i])
			stems[i] = stem
			cands[stem] = append(cands[stem], Candidate{
				Word:     words[i],
				Tag:      tok.Tag,
				Contexts: Neighbors(i, words),
			})
		}
		stemmed = append(stemmed, strings.Join(stems, " "))
	}
	return strings.Join(stemmed, sentenceBreak), cands
}

// splitTokens breaks words that contain phrase delimiters (hyphens,
// apostrophes, inner periods) into parts sharing the token's tag, so every
// word RAKE can see has a recorded occurrence. Tokens made only of
// delimiters are kept whole.
func splitTokens(sentence postag.Sentence) postag.Sentence {
	out := make(postag.Sentence, 0, len(sentence))
	for _, tok := range sentence {
		if !strings.ContainsFunc(tok.Word, isPhraseDelimiter) {
			out = append(out, tok)
			continue
		}
		parts := strings.FieldsFunc(tok.Word, isPhraseDelimiter)
		if len(parts) == 0 {
			out = append(out, tok)
			continue
		}
		for _, p := range parts {
			out = append(out, postag.TaggedToken{Word: p, Tag: tok.Tag})
		}
	}
	return out
}
