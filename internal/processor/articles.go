// Package processor runs the pipeline stages: keyword extraction for
// articles, term expansion for queries and keyword-match validation of
// (query, article) pairs. Each stage can be driven by Kafka events or run as
// a backfill over unprocessed rows; a failing article, query or pair is
// logged and skipped without stopping the batch.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventdetection/event-detection/internal/article"
	"github.com/eventdetection/event-detection/internal/bodystore"
	"github.com/eventdetection/event-detection/internal/keywords"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/kafka"
	"github.com/eventdetection/event-detection/pkg/metrics"
	"github.com/eventdetection/event-detection/pkg/tracing"
)

// ArticleRepository is the storage the article processor needs.
type ArticleRepository interface {
	GetArticle(ctx context.Context, id string) (*article.Article, error)
	UnprocessedArticles(ctx context.Context, limit int) ([]article.Article, error)
	SaveKeywords(ctx context.Context, id string, kw keywords.KeywordSet) error
}

// KeywordCache receives freshly extracted keyword sets.
type KeywordCache interface {
	Set(ctx context.Context, articleID string, kw keywords.KeywordSet)
}

// ArticleProcessor extracts and stores article keyword sets.
type ArticleProcessor struct {
	repo      ArticleRepository
	bodies    bodystore.Store
	extractor *keywords.Extractor
	cache     KeywordCache
	publisher kafka.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewArticleProcessor wires the article stage. cache, publisher and m may be
// nil.
func NewArticleProcessor(
	repo ArticleRepository,
	bodies bodystore.Store,
	extractor *keywords.Extractor,
	cache KeywordCache,
	publisher kafka.Publisher,
	m *metrics.Metrics,
) *ArticleProcessor {
	return &ArticleProcessor{
		repo:      repo,
		bodies:    bodies,
		extractor: extractor,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "article-processor"),
	}
}

// ProcessArticle extracts and stores the keywords of one article.
func (p *ArticleProcessor) ProcessArticle(ctx context.Context, id string) (keywords.KeywordSet, error) {
	a, err := p.repo.GetArticle(ctx, id)
	if err != nil {
		p.observe("not_found")
		return nil, err
	}
	return p.process(ctx, *a)
}

func (p *ArticleProcessor) process(ctx context.Context, a article.Article) (kw keywords.KeywordSet, err error) {
	ctx, span := tracing.Start(ctx, "process_article", a.ID)
	defer func() {
		span.End(err)
		span.Log(p.logger)
	}()

	if a.Body == "" && a.BodyTagged == "" && a.Filename != "" {
		err := tracing.Step(ctx, "read_body", func(ctx context.Context) error {
			body, err := p.bodies.Body(ctx, a.Filename)
			a.Body = body
			return err
		})
		if err != nil {
			p.observe("body_missing")
			return nil, fmt.Errorf("article %s: %w", a.ID, err)
		}
	}

	start := time.Now()
	err = tracing.Step(ctx, "extract", func(context.Context) error {
		var err error
		kw, err = p.extractor.Extract(a)
		return err
	})
	if p.metrics != nil {
		p.metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if kw == nil || !errors.Is(err, apperrors.ErrUnobservedSubword) {
			p.observe("failed")
			return nil, err
		}
		p.logger.Warn("some phrases could not be tagged", "article_id", a.ID, "error", err)
	}
	span.SetAttr("keywords", kw.Len())

	err = tracing.Step(ctx, "save_keywords", func(ctx context.Context) error {
		return p.repo.SaveKeywords(ctx, a.ID, kw)
	})
	if err != nil {
		p.observe("failed")
		return nil, fmt.Errorf("storing keywords: %w", err)
	}
	if p.cache != nil {
		p.cache.Set(ctx, a.ID, kw)
	}
	if p.publisher != nil {
		event := kafka.Event{
			Key:   a.ID,
			Value: kafka.KeywordsExtractedEvent{ArticleID: a.ID, Keywords: kw.Len(), Timestamp: time.Now().UTC()},
		}
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.logger.Error("failed to publish keywords event", "article_id", a.ID, "error", err)
		}
	}
	if p.metrics != nil {
		p.metrics.KeywordsPerArticle.Observe(float64(kw.Len()))
	}
	p.observe("ok")
	p.logger.Info("keywords extracted", "article_id", a.ID, "keywords", kw.Len())
	return kw, nil
}

// Backfill processes every article without a keyword set. limit caps the
// batch; zero means all.
func (p *ArticleProcessor) Backfill(ctx context.Context, limit int) (Summary, error) {
	articles, err := p.repo.UnprocessedArticles(ctx, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("listing unprocessed articles: %w", err)
	}
	var sum Summary
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if _, err := p.process(ctx, a); err != nil {
			sum.Skipped++
			p.logger.Warn("skipping article", "article_id", a.ID, "error", err)
			continue
		}
		sum.Processed++
	}
	p.logger.Info("article backfill complete", "processed", sum.Processed, "skipped", sum.Skipped)
	return sum, nil
}

// HandleMessage returns a Kafka handler for ArticleEvent messages. Articles
// that are missing or whose body cannot be found are logged and skipped.
func (p *ArticleProcessor) HandleMessage() kafka.MessageHandler {
	return kafka.HandleJSON(func(ctx context.Context, ev kafka.ArticleEvent) error {
		if ev.ArticleID == "" {
			return apperrors.New(apperrors.ErrInvalidInput, 0, "article event without article_id")
		}
		_, err := p.ProcessArticle(ctx, ev.ArticleID)
		if skippable(err) {
			p.logger.Warn("skipping article", "article_id", ev.ArticleID, "error", err)
			return nil
		}
		return err
	})
}

func (p *ArticleProcessor) observe(outcome string) {
	if p.metrics != nil {
		p.metrics.ArticlesProcessedTotal.WithLabelValues(outcome).Inc()
	}
}
