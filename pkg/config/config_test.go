package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keywords.MaxWordsInKeyword != 3 || cfg.Keywords.MinLettersInWord != 4 {
		t.Errorf("unexpected keyword defaults: %+v", cfg.Keywords)
	}
	if cfg.Evaluation.GlobalStep != 0.0001 || cfg.Evaluation.LocalStep != 0.005 {
		t.Errorf("unexpected grid steps: %+v", cfg.Evaluation)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
keywords:
  maxWordsInKeyword: 2
evaluation:
  seed: 1
  workers: 2
`)
	t.Setenv("ED_EVALUATION_SEED", "99")
	t.Setenv("ED_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keywords.MaxWordsInKeyword != 2 {
		t.Errorf("maxWordsInKeyword = %d, want 2", cfg.Keywords.MaxWordsInKeyword)
	}
	if cfg.Keywords.MinLettersInWord != 4 {
		t.Errorf("unset field lost its default: minLettersInWord = %d", cfg.Keywords.MinLettersInWord)
	}
	if cfg.Evaluation.Seed != 99 {
		t.Errorf("seed = %d, want env override 99", cfg.Evaluation.Seed)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"descending global grid", "evaluation:\n  globalStart: 0.5\n  globalStop: 0.1\n"},
		{"zero local step", "evaluation:\n  localStep: 0\n"},
		{"no bootstrap samples", "evaluation:\n  bootstrapSamples: 0\n"},
		{"no permutations", "evaluation:\n  permutations: -1\n"},
		{"zero phrase length", "keywords:\n  maxWordsInKeyword: 0\n"},
		{"zero chars per occurrence", "keywords:\n  bodyCharsPerOccurrence: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, apperrors.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
