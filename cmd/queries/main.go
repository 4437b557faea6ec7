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
	"github.com/eventdetection/event-detection/internal/postag"
	"github.com/eventdetection/event-detection/internal/processor"
	"github.com/eventdetection/event-detection/pkg/health"
	"github.com/eventdetection/event-detection/pkg/kafka"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	backfill := flag.Bool("backfill", false, "expand every unprocessed query, then exit")
	flag.Parse()

	cfg, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	slog.Info("starting query processor", "backfill", *backfill, "thesaurus", cfg.Expansion.ThesaurusFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker("queries")
	m, shutdownMetrics := app.StartMetrics(cfg, checker)
	defer shutdownMetrics(context.Background())

	st, db, err := app.OpenStore(ctx, cfg, checker)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	lex, err := app.NewLexicon(cfg.Keywords)
	if err != nil {
		slog.Error("failed to load lexicon", "error", err)
		os.Exit(1)
	}
	expander, err := app.NewExpander(cfg, lex, postag.NewProseTagger())
	if err != nil {
		slog.Error("failed to create expander", "error", err)
		os.Exit(1)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ValidationRequests)
	defer producer.Close()

	proc := processor.NewQueryProcessor(st, expander, producer, m)

	if *backfill {
		sum, err := proc.Backfill(ctx)
		if err != nil {
			slog.Error("backfill failed", "error", err)
			os.Exit(1)
		}
		slog.Info("query processor finished", "processed", sum.Processed, "skipped", sum.Skipped)
		return
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryIngest, proc.HandleMessage())
	slog.Info("query processor ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.QueryIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("query processor stopped")
}
