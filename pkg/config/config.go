// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Bodies, Keywords, Expansion,
// Evaluation, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Bodies     BodiesConfig     `yaml:"bodies"`
	Keywords   KeywordsConfig   `yaml:"keywords"`
	Expansion  ExpansionConfig  `yaml:"expansion"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ArticleIngest      string `yaml:"articleIngest"`
	QueryIngest        string `yaml:"queryIngest"`
	KeywordsExtracted  string `yaml:"keywordsExtracted"`
	ValidationRequests string `yaml:"validationRequests"`
}

// RedisConfig holds Redis connection and keyword-cache parameters. A zero
// KeywordTTL keeps cached keyword sets until they are invalidated.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	PoolSize   int           `yaml:"poolSize"`
	KeywordTTL time.Duration `yaml:"keywordTTL"`
}

// BodiesConfig selects where article bodies are read from.
type BodiesConfig struct {
	Backend      string `yaml:"backend"`
	Dir          string `yaml:"dir"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

// KeywordsConfig controls RAKE filtering for titles and bodies.
type KeywordsConfig struct {
	StoplistFile           string `yaml:"stoplistFile"`
	LemmaFile              string `yaml:"lemmaFile"`
	MaxWordsInKeyword      int    `yaml:"maxWordsInKeyword"`
	MinLettersInWord       int    `yaml:"minLettersInWord"`
	MinOccurrencesTitle    int    `yaml:"minOccurrencesTitle"`
	MaxOccurrencesBody     int    `yaml:"maxOccurrencesBody"`
	BodyCharsPerOccurrence int    `yaml:"bodyCharsPerOccurrence"`
}

// Validate reports settings that would make RAKE filter everything out.
func (k KeywordsConfig) Validate() error {
	switch {
	case k.MaxWordsInKeyword < 1:
		return apperrors.Newf(apperrors.ErrConfiguration, 0, "maxWordsInKeyword must be at least 1, got %d", k.MaxWordsInKeyword)
	case k.MinLettersInWord < 0:
		return apperrors.Newf(apperrors.ErrConfiguration, 0, "minLettersInWord must not be negative, got %d", k.MinLettersInWord)
	case k.MinOccurrencesTitle < 1:
		return apperrors.Newf(apperrors.ErrConfiguration, 0, "minOccurrencesTitle must be at least 1, got %d", k.MinOccurrencesTitle)
	case k.MaxOccurrencesBody < 1:
		return apperrors.Newf(apperrors.ErrConfiguration, 0, "maxOccurrencesBody must be at least 1, got %d", k.MaxOccurrencesBody)
	case k.BodyCharsPerOccurrence < 1:
		return apperrors.Newf(apperrors.ErrConfiguration, 0, "bodyCharsPerOccurrence must be at least 1, got %d", k.BodyCharsPerOccurrence)
	}
	return nil
}

// ExpansionConfig controls which lexical relations expand query terms.
type ExpansionConfig struct {
	ThesaurusFile string `yaml:"thesaurusFile"`
	Hypernyms     bool   `yaml:"hypernyms"`
	Hyponyms      bool   `yaml:"hyponyms"`
}

// EvaluationConfig holds the threshold grids and resampling parameters for
// the calibrator.
type EvaluationConfig struct {
	GlobalStart      float64 `yaml:"globalStart"`
	GlobalStop       float64 `yaml:"globalStop"`
	GlobalStep       float64 `yaml:"globalStep"`
	LocalStart       float64 `yaml:"localStart"`
	LocalStop        float64 `yaml:"localStop"`
	LocalStep        float64 `yaml:"localStep"`
	BootstrapSamples int     `yaml:"bootstrapSamples"`
	Permutations     int     `yaml:"permutations"`
	Seed             int64   `yaml:"seed"`
	Workers          int     `yaml:"workers"`
}

// Validate checks the grids and resample counts.
func (e EvaluationConfig) Validate() error {
	if e.GlobalStep <= 0 || e.GlobalStop <= e.GlobalStart {
		return apperrors.Newf(apperrors.ErrConfiguration, 0, "invalid global threshold range [%g, %g) step %g", e.GlobalStart, e.GlobalStop, e.GlobalStep)
	}
	if e.LocalStep <= 0 || e.LocalStop <= e.LocalStart {
		return apperrors.Newf(apperrors.ErrConfiguration, 0, "invalid local threshold range [%g, %g) step %g", e.LocalStart, e.LocalStop, e.LocalStep)
	}
	if e.BootstrapSamples <= 0 {
		return apperrors.Newf(apperrors.ErrConfiguration, 0, "bootstrapSamples must be positive, got %d", e.BootstrapSamples)
	}
	if e.Permutations <= 0 {
		return apperrors.Newf(apperrors.ErrConfiguration, 0, "permutations must be positive, got %d", e.Permutations)
	}
	return nil
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Keywords.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Evaluation.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "event_detection",
			User:            "event_detection",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "event-detection",
			Topics: KafkaTopics{
				ArticleIngest:      "article-ingest",
				QueryIngest:        "query-ingest",
				KeywordsExtracted:  "keywords-extracted",
				ValidationRequests: "validation-requests",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
		Bodies: BodiesConfig{
			Backend: "fs",
			Dir:     "articles",
		},
		Keywords: KeywordsConfig{
			MaxWordsInKeyword:      3,
			MinLettersInWord:       4,
			MinOccurrencesTitle:    1,
			MaxOccurrencesBody:     3,
			BodyCharsPerOccurrence: 2000,
		},
		Expansion: ExpansionConfig{
			ThesaurusFile: "data/thesaurus.yaml",
		},
		Evaluation: EvaluationConfig{
			GlobalStart:      0.1,
			GlobalStop:       0.4,
			GlobalStep:       0.0001,
			LocalStart:       0.1,
			LocalStop:        0.4,
			LocalStep:        0.005,
			BootstrapSamples: 10000,
			Permutations:     10000,
			Seed:             42,
			Workers:          4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads ED_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ED_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ED_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("ED_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("ED_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("ED_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("ED_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("ED_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("ED_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("ED_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ED_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ED_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ED_BODIES_BACKEND"); v != "" {
		cfg.Bodies.Backend = v
	}
	if v := os.Getenv("ED_BODIES_DIR"); v != "" {
		cfg.Bodies.Dir = v
	}
	if v := os.Getenv("ED_BODIES_BUCKET"); v != "" {
		cfg.Bodies.Bucket = v
	}
	if v := os.Getenv("ED_BODIES_REGION"); v != "" {
		cfg.Bodies.Region = v
	}
	if v := os.Getenv("ED_KEYWORDS_STOPLIST_FILE"); v != "" {
		cfg.Keywords.StoplistFile = v
	}
	if v := os.Getenv("ED_EXPANSION_THESAURUS_FILE"); v != "" {
		cfg.Expansion.ThesaurusFile = v
	}
	if v := os.Getenv("ED_EVALUATION_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Evaluation.Seed = seed
		}
	}
	if v := os.Getenv("ED_EVALUATION_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Evaluation.Workers = n
		}
	}
	if v := os.Getenv("ED_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ED_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
