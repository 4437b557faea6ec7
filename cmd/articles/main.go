package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventdetection/event-detection/internal/app"
	"github.com/eventdetection/event-detection/internal/bodystore"
	"github.com/eventdetection/event-detection/internal/postag"
	"github.com/eventdetection/event-detection/internal/processor"
	"github.com/eventdetection/event-detection/pkg/health"
	"github.com/eventdetection/event-detection/pkg/kafka"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	backfill := flag.Bool("backfill", false, "process every article without keywords, then exit")
	reprocess := flag.Bool("reprocess", false, "clear all stored keywords before the backfill")
	limit := flag.Int("limit", 0, "maximum articles per backfill (0 = all)")
	flag.Parse()

	cfg, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	slog.Info("starting article processor", "backfill", *backfill)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker("articles")
	m, shutdownMetrics := app.StartMetrics(cfg, checker)
	defer shutdownMetrics(context.Background())

	st, db, err := app.OpenStore(ctx, cfg, checker)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	kc, closeCache := app.OpenCache(cfg, st, m, checker)
	defer closeCache()
	var cache processor.KeywordCache
	if kc != nil {
		cache = kc
	}

	bodies, err := bodystore.New(ctx, cfg.Bodies, m)
	if err != nil {
		slog.Error("failed to open body store", "error", err)
		os.Exit(1)
	}

	lex, err := app.NewLexicon(cfg.Keywords)
	if err != nil {
		slog.Error("failed to load lexicon", "error", err)
		os.Exit(1)
	}
	extractor, err := app.NewExtractor(cfg, lex, postag.NewProseTagger())
	if err != nil {
		slog.Error("failed to create extractor", "error", err)
		os.Exit(1)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.KeywordsExtracted)
	defer producer.Close()

	proc := processor.NewArticleProcessor(st, bodies, extractor, cache, producer, m)

	if *reprocess {
		n, err := st.ClearKeywords(ctx)
		if err != nil {
			slog.Error("failed to clear keywords", "error", err)
			os.Exit(1)
		}
		if kc != nil {
			if err := kc.InvalidateAll(ctx); err != nil {
				slog.Warn("failed to invalidate keyword cache", "error", err)
			}
		}
		slog.Info("keywords cleared", "articles", n)
	}

	if *backfill || *reprocess {
		sum, err := proc.Backfill(ctx, *limit)
		if err != nil {
			slog.Error("backfill failed", "error", err)
			os.Exit(1)
		}
		slog.Info("article processor finished", "processed", sum.Processed, "skipped", sum.Skipped)
		return
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ArticleIngest, proc.HandleMessage())
	slog.Info("article processor ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.ArticleIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("article processor stopped")
}
