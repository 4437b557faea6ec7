package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eventdetection/event-detection/internal/evaluation"
	"github.com/eventdetection/event-detection/internal/matcher"
	"github.com/eventdetection/event-detection/internal/query"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/kafka"
	"github.com/eventdetection/event-detection/pkg/metrics"
)

// PairRepository is the storage the validation stage needs.
type PairRepository interface {
	GetQuery(ctx context.Context, id string) (*query.Query, error)
	UnprocessedPairs(ctx context.Context, limit int) ([]evaluation.Pair, error)
	EnsureAlgorithm(ctx context.Context, name string) error
	SaveValidationResult(ctx context.Context, p evaluation.Pair, algorithm string, score float64) error
}

// ValidationRunner scores (query, article) pairs with the keyword matcher
// and stores the scores for the evaluator.
type ValidationRunner struct {
	repo      PairRepository
	validator *matcher.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewValidationRunner wires the validation stage. m may be nil.
func NewValidationRunner(repo PairRepository, validator *matcher.Validator, m *metrics.Metrics) *ValidationRunner {
	return &ValidationRunner{
		repo:      repo,
		validator: validator,
		metrics:   m,
		logger:    slog.Default().With("component", "validator"),
	}
}

// Register records the keyword algorithm so its results can be stored.
func (r *ValidationRunner) Register(ctx context.Context) error {
	return r.repo.EnsureAlgorithm(ctx, matcher.Algorithm)
}

// ScorePair scores and stores one pair.
func (r *ValidationRunner) ScorePair(ctx context.Context, p evaluation.Pair) (float64, error) {
	q, err := r.repo.GetQuery(ctx, p.QueryID)
	if err != nil {
		r.observe("not_found")
		return 0, err
	}
	return r.score(ctx, q, p)
}

func (r *ValidationRunner) score(ctx context.Context, q *query.Query, p evaluation.Pair) (float64, error) {
	score, err := r.validator.Validate(ctx, q, p.ArticleID)
	if err != nil {
		r.observe("failed")
		return 0, err
	}
	if err := r.repo.SaveValidationResult(ctx, p, matcher.Algorithm, score); err != nil {
		r.observe("failed")
		return 0, fmt.Errorf("storing result: %w", err)
	}
	r.observe("ok")
	if r.metrics != nil {
		r.metrics.MatchScore.WithLabelValues(matcher.Algorithm).Observe(score)
	}
	r.logger.Debug("pair validated", "query_id", p.QueryID, "article_id", p.ArticleID, "score", score)
	return score, nil
}

// RunPending scores every unprocessed pair. limit caps the batch; zero means
// all. Each query is loaded once per run.
func (r *ValidationRunner) RunPending(ctx context.Context, limit int) (Summary, error) {
	if err := r.Register(ctx); err != nil {
		return Summary{}, err
	}
	pairs, err := r.repo.UnprocessedPairs(ctx, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("listing unprocessed pairs: %w", err)
	}
	var (
		sum     Summary
		queries = make(map[string]*query.Query)
	)
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		q, ok := queries[p.QueryID]
		if !ok {
			if q, err = r.repo.GetQuery(ctx, p.QueryID); err != nil {
				sum.Skipped++
				r.logger.Warn("skipping pair", "query_id", p.QueryID, "article_id", p.ArticleID, "error", err)
				continue
			}
			queries[p.QueryID] = q
		}
		if _, err := r.score(ctx, q, p); err != nil {
			sum.Skipped++
			r.logger.Warn("skipping pair", "query_id", p.QueryID, "article_id", p.ArticleID, "error", err)
			continue
		}
		sum.Processed++
	}
	r.logger.Info("validation run complete", "processed", sum.Processed, "skipped", sum.Skipped)
	return sum, nil
}

// HandleMessage returns a Kafka handler for ValidationRequest messages.
func (r *ValidationRunner) HandleMessage() kafka.MessageHandler {
	return kafka.HandleJSON(func(ctx context.Context, req kafka.ValidationRequest) error {
		if req.QueryID == "" || req.ArticleID == "" {
			return apperrors.New(apperrors.ErrInvalidInput, 0, "validation request needs query_id and article_id")
		}
		_, err := r.ScorePair(ctx, evaluation.Pair{QueryID: req.QueryID, ArticleID: req.ArticleID})
		if skippable(err) {
			r.logger.Warn("skipping pair", "query_id", req.QueryID, "article_id", req.ArticleID, "error", err)
			return nil
		}
		return err
	})
}

func (r *ValidationRunner) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.ValidationsTotal.WithLabelValues(matcher.Algorithm, outcome).Inc()
	}
}
