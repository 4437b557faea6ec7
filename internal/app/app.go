// Package app holds the start-up wiring shared by the binaries: config and
// .env loading, logging, and construction of the core text components from
// configuration.
package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/eventdetection/event-detection/internal/keywords"
	"github.com/eventdetection/event-detection/internal/lexical"
	"github.com/eventdetection/event-detection/internal/postag"
	"github.com/eventdetection/event-detection/internal/query"
	"github.com/eventdetection/event-detection/pkg/config"
	"github.com/eventdetection/event-detection/pkg/logger"
	"github.com/joho/godotenv"
)

// Bootstrap loads .env (when present) and the config file, then installs the
// default logger.
func Bootstrap(configPath string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// Lexicon is the normalizer and stoplist shared by extraction and expansion.
type Lexicon struct {
	Normalizer *lexical.Normalizer
	Stoplist   *lexical.Stoplist
}

// NewLexicon builds the lexicon from the configured files, falling back to
// the embedded stoplist and lemma dictionary.
func NewLexicon(cfg config.KeywordsConfig) (*Lexicon, error) {
	lemmas := lexical.DefaultLemmatizer()
	if cfg.LemmaFile != "" {
		f, err := os.Open(cfg.LemmaFile)
		if err != nil {
			return nil, fmt.Errorf("opening lemma file: %w", err)
		}
		defer f.Close()
		if lemmas, err = lexical.LoadLemmatizer(f); err != nil {
			return nil, err
		}
	}
	stop := lexical.DefaultStoplist()
	if cfg.StoplistFile != "" {
		f, err := os.Open(cfg.StoplistFile)
		if err != nil {
			return nil, fmt.Errorf("opening stoplist: %w", err)
		}
		defer f.Close()
		if stop, err = lexical.LoadStoplist(f); err != nil {
			return nil, err
		}
	}
	slog.Debug("lexicon loaded", "lemmas", lemmas.Len(), "stopwords", stop.Len())
	return &Lexicon{Normalizer: lexical.NewNormalizer(lemmas), Stoplist: stop}, nil
}

// NewExtractor builds the keyword extractor, tagging untagged text with the
// prose tagger.
func NewExtractor(cfg *config.Config, lex *Lexicon, tagger postag.Tagger) (*keywords.Extractor, error) {
	return keywords.NewExtractor(lex.Normalizer, lex.Stoplist, cfg.Keywords, keywords.WithTagger(tagger))
}

// NewExpander builds the query expander over the configured thesaurus.
func NewExpander(cfg *config.Config, lex *Lexicon, tagger postag.Tagger) (*query.Expander, error) {
	th, err := query.LoadThesaurusFile(cfg.Expansion.ThesaurusFile)
	if err != nil {
		return nil, err
	}
	return query.NewExpander(tagger, lex.Stoplist, th, cfg.Expansion), nil
}
