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
	"github.com/eventdetection/event-detection/internal/matcher"
	"github.com/eventdetection/event-detection/internal/processor"
	"github.com/eventdetection/event-detection/pkg/health"
	"github.com/eventdetection/event-detection/pkg/kafka"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	once := flag.Bool("once", false, "score every unprocessed pair, then exit")
	limit := flag.Int("limit", 0, "maximum pairs per run (0 = all)")
	flag.Parse()

	cfg, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	slog.Info("starting validator", "algorithm", matcher.Algorithm, "once", *once)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker("validator")
	m, shutdownMetrics := app.StartMetrics(cfg, checker)
	defer shutdownMetrics(context.Background())

	st, db, err := app.OpenStore(ctx, cfg, checker)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var source matcher.KeywordSource = st
	kc, closeCache := app.OpenCache(cfg, st, m, checker)
	defer closeCache()
	if kc != nil {
		source = kc
	}

	runner := processor.NewValidationRunner(st, matcher.NewValidator(source), m)

	// Pairs created while the validator was down have no pending request.
	sum, err := runner.RunPending(ctx, *limit)
	if err != nil {
		slog.Error("validation run failed", "error", err)
		os.Exit(1)
	}
	if *once {
		slog.Info("validator finished", "processed", sum.Processed, "skipped", sum.Skipped)
		return
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ValidationRequests, runner.HandleMessage())
	slog.Info("validator ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.ValidationRequests,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("validator stopped")
}
