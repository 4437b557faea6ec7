package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventdetection/event-detection/internal/api"
	"github.com/eventdetection/event-detection/internal/app"
	"github.com/eventdetection/event-detection/internal/evaluation"
	"github.com/eventdetection/event-detection/internal/postag"
	"github.com/eventdetection/event-detection/internal/processor"
	"github.com/eventdetection/event-detection/pkg/health"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	slog.Info("starting api service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker("api")
	m, shutdownMetrics := app.StartMetrics(cfg, nil)
	defer shutdownMetrics(context.Background())

	lex, err := app.NewLexicon(cfg.Keywords)
	if err != nil {
		slog.Error("failed to load lexicon", "error", err)
		os.Exit(1)
	}
	tagger := postag.NewProseTagger()
	extractor, err := app.NewExtractor(cfg, lex, tagger)
	if err != nil {
		slog.Error("failed to create extractor", "error", err)
		os.Exit(1)
	}
	expander, err := app.NewExpander(cfg, lex, tagger)
	if err != nil {
		slog.Error("failed to create expander", "error", err)
		os.Exit(1)
	}
	evaluator, err := evaluation.NewEvaluator(cfg.Evaluation, processor.NewMetricsObserver(m))
	if err != nil {
		slog.Error("invalid evaluation config", "error", err)
		os.Exit(1)
	}

	st, db, err := app.OpenStore(ctx, cfg, checker)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var cache api.KeywordCache
	kc, closeCache := app.OpenCache(cfg, st, m, checker)
	defer closeCache()
	if kc != nil {
		cache = kc
	}

	h := api.New(extractor, expander, evaluator, cache)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(h, checker, m, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("api service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("api service stopped")
}
