// Package pipeline orchestrates one scoring run: validate, detect
// anomalies, score, and optionally persist. Each dataset is owned by
// exactly one in-flight run; independent datasets may run in parallel.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaptrust/internal/config"
	"github.com/leapstack-labs/leaptrust/internal/store"
	"github.com/leapstack-labs/leaptrust/pkg/anomaly"
	"github.com/leapstack-labs/leaptrust/pkg/dataset"
	"github.com/leapstack-labs/leaptrust/pkg/trust"
	"github.com/leapstack-labs/leaptrust/pkg/validate"
)

// Result bundles the artifacts of one run.
type Result struct {
	RunID       string
	DatasetName string
	Validation  *validate.Result
	Anomalies   *anomaly.Report
	Trust       *trust.Report
}

// Runner wires the pipeline stages from one configuration. The store is
// optional; without one, reports are computed but not persisted.
type Runner struct {
	cfg    *config.Config
	store  store.Store
	logger *slog.Logger
}

// NewRunner builds a Runner. The calculator's weight invariant is checked
// here, before any data is touched.
func NewRunner(cfg *config.Config, st store.Store, logger *slog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{cfg: cfg, store: st, logger: logger}, nil
}

func (r *Runner) validatorOptions() (validate.Options, error) {
	opts := validate.Options{
		NullThresholdPct:       r.cfg.Validation.NullThresholdPct,
		UniquenessThresholdPct: r.cfg.Validation.UniquenessThresholdPct,
		MixedTypeTolerancePct:  r.cfg.Validation.MixedTypeTolerancePct,
	}
	if r.cfg.Validation.RulesFile != "" {
		var err error
		opts, err = validate.LoadRules(r.cfg.Validation.RulesFile, opts)
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func (r *Runner) detectorConfig() anomaly.Config {
	return anomaly.Config{
		IQRMultiplier:   r.cfg.Anomaly.IQRMultiplier,
		ZScoreThreshold: r.cfg.Anomaly.ZScoreThreshold,
		Contamination:   r.cfg.Anomaly.Contamination,
		TreeCount:       r.cfg.Anomaly.TreeCount,
		Seed:            r.cfg.Anomaly.Seed,
		VotePolicy:      anomaly.VotePolicy(r.cfg.Anomaly.VotePolicy),
	}
}

// Run scores one dataset and persists the report when a store is
// configured. Data problems land in the result artifacts; only
// configuration and storage problems return errors.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset) (*Result, error) {
	runID := uuid.New().String()
	vopts, err := r.validatorOptions()
	if err != nil {
		return nil, err
	}
	vres, err := validate.New(vopts, r.logger).Validate(ds)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", ds.Name, err)
	}

	det, err := anomaly.NewDetector(anomaly.Method(r.cfg.Anomaly.Method), r.detectorConfig(), r.logger)
	if err != nil {
		return nil, err
	}
	arep, err := det.Detect(ds)
	if err != nil {
		return nil, fmt.Errorf("detect anomalies in %s: %w", ds.Name, err)
	}

	calc, err := trust.New(trust.Options{
		Weights:                r.cfg.Trust.Weights,
		FreshnessThresholdDays: r.cfg.Trust.FreshnessThresholdDays,
		ExcludeFields:          r.cfg.Trust.ExcludeFields,
	}, r.logger)
	if err != nil {
		return nil, err
	}
	dateColumn := r.cfg.Trust.DateColumn
	if dateColumn != "" && !ds.HasColumn(dateColumn) {
		// A configured date column may not apply to every dataset.
		r.logger.Warn("date column not in dataset, skipping freshness",
			"dataset", ds.Name, "column", dateColumn)
		dateColumn = ""
	}
	trep, err := calc.Calculate(ds, trust.Input{
		Validation: vres,
		Anomalies:  arep,
		DateColumn: dateColumn,
	})
	if err != nil {
		return nil, fmt.Errorf("score %s: %w", ds.Name, err)
	}

	if r.store != nil {
		if err := r.store.Save(ctx, trep); err != nil {
			return nil, err
		}
	}

	r.logger.Info("scoring run complete",
		"run_id", runID,
		"dataset", ds.Name,
		"overall", trep.Overall,
		"passed_validation", vres.Passed,
		"anomalous_rows", arep.AnomalousRows)
	return &Result{
		RunID:       runID,
		DatasetName: ds.Name,
		Validation:  vres,
		Anomalies:   arep,
		Trust:       trep,
	}, nil
}

// RunAll scores independent datasets in parallel, one goroutine each.
// The first failure cancels the rest. Results keep input order.
func (r *Runner) RunAll(ctx context.Context, datasets []*dataset.Dataset) ([]*Result, error) {
	results := make([]*Result, len(datasets))
	g, ctx := errgroup.WithContext(ctx)
	for i, ds := range datasets {
		g.Go(func() error {
			res, err := r.Run(ctx, ds)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
