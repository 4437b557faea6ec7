package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventdetection/event-detection/internal/evaluation"
	"github.com/eventdetection/event-detection/pkg/metrics"
	"github.com/eventdetection/event-detection/pkg/tracing"
)

// DatasetRepository is the storage the evaluation run needs.
type DatasetRepository interface {
	Algorithms(ctx context.Context) ([]string, error)
	LoadDataset(ctx context.Context, algorithm string) (*evaluation.Dataset, error)
}

// MetricsObserver records evaluation stage timings and outcomes.
type MetricsObserver struct {
	m *metrics.Metrics
}

// NewMetricsObserver returns an observer writing to m. m may be nil.
func NewMetricsObserver(m *metrics.Metrics) *MetricsObserver {
	return &MetricsObserver{m: m}
}

// ObserveStage counts the stage run by outcome and records its duration.
func (o *MetricsObserver) ObserveStage(stage evaluation.Stage, d time.Duration, err error) {
	if o == nil || o.m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	o.m.EvaluationRunsTotal.WithLabelValues(string(stage), outcome).Inc()
	o.m.EvaluationDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// EvaluationRunner evaluates every enabled algorithm.
type EvaluationRunner struct {
	repo      DatasetRepository
	evaluator *evaluation.Evaluator
	logger    *slog.Logger
}

func NewEvaluationRunner(repo DatasetRepository, evaluator *evaluation.Evaluator) *EvaluationRunner {
	return &EvaluationRunner{
		repo:      repo,
		evaluator: evaluator,
		logger:    slog.Default().With("component", "evaluator"),
	}
}

// Run evaluates each enabled algorithm, or only the named ones. Any
// statistical error aborts the run.
func (r *EvaluationRunner) Run(ctx context.Context, algorithms []string, stages ...evaluation.Stage) ([]*evaluation.Report, error) {
	if len(algorithms) == 0 {
		var err error
		if algorithms, err = r.repo.Algorithms(ctx); err != nil {
			return nil, fmt.Errorf("listing algorithms: %w", err)
		}
	}
	reports := make([]*evaluation.Report, 0, len(algorithms))
	for _, alg := range algorithms {
		start := time.Now()
		report, err := r.evaluate(ctx, alg, stages)
		if err != nil {
			return nil, fmt.Errorf("algorithm %s: %w", alg, err)
		}
		r.logger.Info("algorithm evaluated",
			"algorithm", alg,
			"pairs", report.Pairs,
			"best_threshold", report.BestThreshold,
			"global_f1", report.GlobalF1,
			"duration", time.Since(start),
		)
		reports = append(reports, report)
	}
	return reports, nil
}

func (r *EvaluationRunner) evaluate(ctx context.Context, algorithm string, stages []evaluation.Stage) (report *evaluation.Report, err error) {
	ctx, span := tracing.Start(ctx, "evaluate", algorithm)
	defer func() {
		span.End(err)
		span.Log(r.logger)
	}()

	var ds *evaluation.Dataset
	err = tracing.Step(ctx, "load_dataset", func(ctx context.Context) error {
		ds, err = r.repo.LoadDataset(ctx, algorithm)
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttr("pairs", len(ds.Samples))
	err = tracing.Step(ctx, "run_stages", func(ctx context.Context) error {
		report, err = r.evaluator.Run(ctx, ds, stages...)
		return err
	})
	return report, err
}
