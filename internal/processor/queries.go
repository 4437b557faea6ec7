package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventdetection/event-detection/internal/query"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/kafka"
	"github.com/eventdetection/event-detection/pkg/metrics"
)

// QueryRepository is the storage the query processor needs.
type QueryRepository interface {
	GetQuery(ctx context.Context, id string) (*query.Query, error)
	UnprocessedQueries(ctx context.Context) ([]*query.Query, error)
	SaveExpansion(ctx context.Context, q *query.Query) error
	ArticleIDs(ctx context.Context) ([]string, error)
}

// QueryProcessor expands query terms, stores them and requests validation of
// the new (query, article) pairs.
type QueryProcessor struct {
	repo      QueryRepository
	expander  *query.Expander
	publisher kafka.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewQueryProcessor wires the query stage. publisher and m may be nil.
func NewQueryProcessor(repo QueryRepository, expander *query.Expander, publisher kafka.Publisher, m *metrics.Metrics) *QueryProcessor {
	return &QueryProcessor{
		repo:      repo,
		expander:  expander,
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "query-processor"),
	}
}

// ProcessQuery expands and stores one query.
func (p *QueryProcessor) ProcessQuery(ctx context.Context, id string) (*query.Query, error) {
	q, err := p.repo.GetQuery(ctx, id)
	if err != nil {
		p.observe("not_found")
		return nil, err
	}
	if err := p.process(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *QueryProcessor) process(ctx context.Context, q *query.Query) error {
	if err := p.expander.ExpandQuery(ctx, q); err != nil {
		p.observe("failed")
		return err
	}
	if err := p.repo.SaveExpansion(ctx, q); err != nil {
		p.observe("failed")
		return fmt.Errorf("storing expansion: %w", err)
	}
	p.observe("ok")
	p.logger.Info("query expanded", "query_id", q.ID, "terms", q.Expansion.Terms())
	p.requestValidation(ctx, q.ID)
	return nil
}

func (p *QueryProcessor) requestValidation(ctx context.Context, queryID string) {
	if p.publisher == nil {
		return
	}
	ids, err := p.repo.ArticleIDs(ctx)
	if err != nil {
		p.logger.Error("failed to list articles for validation", "query_id", queryID, "error", err)
		return
	}
	now := time.Now().UTC()
	events := make([]kafka.Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, kafka.Event{
			Key:   queryID,
			Value: kafka.ValidationRequest{QueryID: queryID, ArticleID: id, Timestamp: now},
		})
	}
	if err := p.publisher.PublishBatch(ctx, events); err != nil {
		p.logger.Error("failed to publish validation requests", "query_id", queryID, "error", err)
	}
}

// Backfill expands every unprocessed query.
func (p *QueryProcessor) Backfill(ctx context.Context) (Summary, error) {
	queries, err := p.repo.UnprocessedQueries(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("listing unprocessed queries: %w", err)
	}
	var sum Summary
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := p.process(ctx, q); err != nil {
			sum.Skipped++
			p.logger.Warn("skipping query", "query_id", q.ID, "error", err)
			continue
		}
		sum.Processed++
	}
	p.logger.Info("query backfill complete", "processed", sum.Processed, "skipped", sum.Skipped)
	return sum, nil
}

// HandleMessage returns a Kafka handler for QueryEvent messages.
func (p *QueryProcessor) HandleMessage() kafka.MessageHandler {
	return kafka.HandleJSON(func(ctx context.Context, ev kafka.QueryEvent) error {
		if ev.QueryID == "" {
			return apperrors.New(apperrors.ErrInvalidInput, 0, "query event without query_id")
		}
		_, err := p.ProcessQuery(ctx, ev.QueryID)
		if skippable(err) {
			p.logger.Warn("skipping query", "query_id", ev.QueryID, "error", err)
			return nil
		}
		return err
	})
}

func (p *QueryProcessor) observe(outcome string) {
	if p.metrics != nil {
		p.metrics.QueriesExpandedTotal.WithLabelValues(outcome).Inc()
	}
}
