package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/eventdetection/event-detection/internal/app"
	"github.com/eventdetection/event-detection/internal/evaluation"
	"github.com/eventdetection/event-detection/internal/processor"
	"github.com/eventdetection/event-detection/pkg/health"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: evaluator [flags] thresholds|test|bootstrap|hypothesis|all\n\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	algorithms := flag.String("algorithm", "", "comma-separated algorithms to evaluate (default: all enabled)")
	flag.Usage = usage
	flag.Parse()

	stage := evaluation.StageAll
	if flag.NArg() > 1 {
		usage()
		os.Exit(2)
	}
	if flag.NArg() == 1 {
		s, err := evaluation.ParseStage(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			usage()
			os.Exit(2)
		}
		stage = s
	}

	cfg, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	slog.Info("starting evaluation", "stage", stage, "seed", cfg.Evaluation.Seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker("evaluator")
	m, shutdownMetrics := app.StartMetrics(cfg, checker)
	defer shutdownMetrics(context.Background())

	st, db, err := app.OpenStore(ctx, cfg, checker)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	evaluator, err := evaluation.NewEvaluator(cfg.Evaluation, processor.NewMetricsObserver(m))
	if err != nil {
		slog.Error("invalid evaluation config", "error", err)
		os.Exit(1)
	}

	var names []string
	for _, a := range strings.Split(*algorithms, ",") {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}

	reports, err := processor.NewEvaluationRunner(st, evaluator).Run(ctx, names, stage)
	if err != nil {
		slog.Error("evaluation failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		slog.Error("failed to write report", "error", err)
		os.Exit(1)
	}
}
