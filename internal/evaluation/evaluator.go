package evaluation

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/eventdetection/event-detection/pkg/config"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Stage selects which parts of an evaluation run.
type Stage string

const (
	StageThresholds Stage = "thresholds"
	StageTest       Stage = "test"
	StageBootstrap  Stage = "bootstrap"
	StageHypothesis Stage = "hypothesis"
	StageAll        Stage = "all"
)

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StageThresholds, StageTest, StageBootstrap, StageHypothesis, StageAll:
		return st, nil
	}
	return "", apperrors.Newf(apperrors.ErrInvalidInput, 0, "unknown evaluation stage %q", s)
}

// Report is the threshold model of one algorithm and its statistics.
type Report struct {
	Algorithm       string             `json:"algorithm"`
	Pairs           int                `json:"pairs"`
	ValidationRatio float64            `json:"validation_ratio"`
	BestThreshold   float64            `json:"best_threshold"`
	GlobalF1        float64            `json:"global_f1"`
	LeaveOneOut     *LeaveOneOutResult `json:"leave_one_out,omitempty"`
	Confidence      *Interval          `json:"confidence_interval,omitempty"`
	Hypothesis      *Hypothesis        `json:"hypothesis,omitempty"`
	RandomBaseline  *Baseline          `json:"random_baseline,omitempty"`
}

// Observer receives stage timings. Nil observers are ignored.
type Observer interface {
	ObserveStage(stage Stage, d time.Duration, err error)
}

// Evaluator runs evaluation stages with a fixed configuration.
type Evaluator struct {
	cfg      config.EvaluationConfig
	global   Grid
	local    Grid
	observer Observer
}

// NewEvaluator validates cfg and returns an Evaluator.
func NewEvaluator(cfg config.EvaluationConfig, observer Observer) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Evaluator{
		cfg:      cfg,
		global:   Grid{Start: cfg.GlobalStart, Stop: cfg.GlobalStop, Step: cfg.GlobalStep},
		local:    Grid{Start: cfg.LocalStart, Stop: cfg.LocalStop, Step: cfg.LocalStep},
		observer: observer,
	}
	if err := e.global.Validate(); err != nil {
		return nil, err
	}
	if err := e.local.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Run evaluates ds. The global threshold search always runs; other stages
// run when requested or when stages includes StageAll. Each random stage
// draws from its own generator seeded from the configured seed, so a
// stage's result does not depend on which other stages ran.
func (e *Evaluator) Run(ctx context.Context, ds *Dataset, stages ...Stage) (*Report, error) {
	want := make(map[Stage]bool, len(stages))
	for _, s := range stages {
		want[s] = true
	}
	all := want[StageAll]

	report := &Report{
		Algorithm:       ds.Algorithm,
		Pairs:           len(ds.Samples),
		ValidationRatio: ds.ValidationRatio(),
	}

	err := e.stage(StageThresholds, func() error {
		best, err := BestThreshold(ds.Samples, e.global)
		if err != nil {
			return err
		}
		report.BestThreshold, report.GlobalF1 = best.Value, best.F1
		return nil
	})
	if err != nil {
		return nil, err
	}

	if all || want[StageTest] {
		err := e.stage(StageTest, func() error {
			loo, err := LeaveOneOut(ctx, ds.Samples, report.BestThreshold, e.local)
			if err != nil {
				return err
			}
			report.LeaveOneOut = loo
			report.RandomBaseline, err = RandomBaseline(ds.Samples, e.rand(StageTest))
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	if all || want[StageBootstrap] {
		err := e.stage(StageBootstrap, func() error {
			ci, err := Bootstrap(ctx, ds.Samples, report.BestThreshold, e.cfg.BootstrapSamples, e.cfg.Workers, e.rand(StageBootstrap))
			report.Confidence = ci
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	if all || want[StageHypothesis] {
		err := e.stage(StageHypothesis, func() error {
			h, err := PermutationTest(ctx, ds.Samples, report.BestThreshold, e.cfg.Permutations, e.cfg.Workers, e.rand(StageHypothesis))
			report.Hypothesis = h
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return report, nil
}

// rand returns a generator for stage s seeded from the configured seed and
// the stage name.
func (e *Evaluator) rand(s Stage) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(s))
	return rand.New(rand.NewSource(e.cfg.Seed ^ int64(h.Sum64())))
}

func (e *Evaluator) stage(s Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	if e.observer != nil {
		e.observer.ObserveStage(s, time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("evaluation stage %s: %w", s, err)
	}
	return nil
}
