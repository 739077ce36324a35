// Package experiment runs the squared-exponential vs. convolutional kernel
// comparison on the rectangles task.
package experiment

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"

	"github.com/thalesfsp/rectgp"
	"github.com/thalesfsp/rectgp/internal/config"
)

// Model names used in reports.
const (
	ModelSquaredExponential = "squared-exponential"
	ModelConvolutional      = "convolutional"
)

// Split is one generated dataset plus its tensors.
type Split struct {
	Data *rectgp.Dataset
	X    *tensor.Dense
	Y    *tensor.Dense
}

type modelDef struct {
	name   string
	kernel rectgp.Kernel
	bounds rectgp.ParameterRange[float64]
}

// GenerateSplits builds the training and test sets. The test set uses
// Dataset.Seed+1 so the two never share a random stream. A nil logger
// discards output.
func GenerateSplits(cfg *config.Config, logger *zap.Logger) (train, test Split, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy, ok := rectgp.ParseExhaustionPolicy(cfg.Dataset.Exhaustion)
	if !ok {
		return train, test, fmt.Errorf("unknown exhaustion policy %q", cfg.Dataset.Exhaustion)
	}

	build := func(name string, n int, seed int64) (Split, error) {
		gen, err := rectgp.NewGenerator(rectgp.GeneratorConfig{
			Width:       cfg.Dataset.Width,
			Height:      cfg.Dataset.Height,
			MaxAttempts: cfg.Dataset.MaxAttempts,
			Exhaustion:  policy,
			Seed:        seed,
			Logger:      logger.With(zap.String("split", name)),
		})
		if err != nil {
			return Split{}, fmt.Errorf("%s split: %w", name, err)
		}

		ds, err := gen.GenerateDataset(n)
		if err != nil {
			return Split{}, fmt.Errorf("%s split: %w", name, err)
		}

		X, Y, err := ds.Tensors()
		if err != nil {
			return Split{}, fmt.Errorf("%s split: %w", name, err)
		}

		return Split{Data: ds, X: X, Y: Y}, nil
	}

	if train, err = build("train", cfg.Dataset.TrainCount, cfg.Dataset.Seed); err != nil {
		return train, test, err
	}

	if test, err = build("test", cfg.Dataset.TestCount, cfg.Dataset.Seed+1); err != nil {
		return train, test, err
	}

	return train, test, nil
}

// Run generates the data, fits every enabled model concurrently and
// evaluates them on both splits.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	report := &Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Config:    cfg,
	}

	logger = logger.With(zap.String("run_id", report.ID))

	train, test, err := GenerateSplits(cfg, logger)
	if err != nil {
		return nil, err
	}

	report.Dataset = summarize(cfg, train.Data, test.Data)

	logger.Info("datasets generated",
		zap.Stringer("train", train.Data),
		zap.Stringer("test", test.Data),
	)

	defs, err := enabledModels(cfg)
	if err != nil {
		return nil, err
	}

	results := make([]ModelResult, len(defs))

	eg, egCtx := errgroup.WithContext(ctx)

	for i, def := range defs {
		i, def := i, def
		eg.Go(func() error {
			res, err := runModel(egCtx, cfg, def, int64(i), train, test, logger.Named(def.name))
			if err != nil {
				return fmt.Errorf("%s: %w", def.name, err)
			}

			results[i] = res

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report.Models = results
	report.Duration = time.Since(report.StartedAt)

	logger.Info("experiment finished", zap.Duration("duration", report.Duration))

	return report, nil
}

func enabledModels(cfg *config.Config) ([]modelDef, error) {
	var defs []modelDef

	if se := cfg.Models.SquaredExponential; se.Enabled {
		defs = append(defs, modelDef{
			name:   ModelSquaredExponential,
			kernel: rectgp.NewSquaredExponential(se.Variance, se.Lengthscale),
			bounds: rectgp.ParameterRange[float64]{Min: se.MinLengthscale, Max: se.MaxLengthscale},
		})
	}

	if conv := cfg.Models.Convolutional; conv.Enabled {
		k, err := rectgp.NewConvolutional(
			rectgp.NewSquaredExponential(conv.Variance, conv.Lengthscale),
			cfg.Dataset.Width, cfg.Dataset.Height,
			conv.PatchWidth, conv.PatchHeight,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ModelConvolutional, err)
		}

		defs = append(defs, modelDef{
			name:   ModelConvolutional,
			kernel: k,
			bounds: rectgp.ParameterRange[float64]{Min: conv.MinLengthscale, Max: conv.MaxLengthscale},
		})
	}

	return defs, nil
}

func runModel(ctx context.Context, cfg *config.Config, def modelDef, index int64, train, test Split, logger *zap.Logger) (ModelResult, error) {
	start := time.Now()

	clf := rectgp.NewKernelClassifier(def.kernel,
		rectgp.WithPrior(cfg.Models.Prior),
		rectgp.WithWorkers(cfg.Models.Workers),
		rectgp.WithLogger(logger),
	)

	if err := clf.Fit(ctx, train.X, train.Y); err != nil {
		return ModelResult{}, err
	}

	res := ModelResult{Name: def.name}

	if cfg.Optimizer.MaxIterations > 0 {
		tuned, err := tune(ctx, cfg, clf, def, index, logger)
		if err != nil {
			return ModelResult{}, err
		}

		res.Tuned = true
		res.Evaluations = tuned.Evaluations
		res.LeaveOneOutNLL = tuned.Score
	}

	res.Lengthscale = clf.Lengthscale()
	res.FitDuration = time.Since(start)

	var err error

	if res.Train, err = evaluate(ctx, clf, train); err != nil {
		return ModelResult{}, fmt.Errorf("train split: %w", err)
	}

	if res.Test, err = evaluate(ctx, clf, test); err != nil {
		return ModelResult{}, fmt.Errorf("test split: %w", err)
	}

	logger.Info("model evaluated",
		zap.Float64("lengthscale", res.Lengthscale),
		zap.Float64("train_accuracy", res.Train.Accuracy),
		zap.Float64("test_accuracy", res.Test.Accuracy),
		zap.Float64("test_log_likelihood", res.Test.LogLikelihood),
	)

	return res, nil
}

func tune(ctx context.Context, cfg *config.Config, clf *rectgp.KernelClassifier, def modelDef, index int64, logger *zap.Logger) (rectgp.Result[float64], error) {
	acq, ok := rectgp.AcquisitionByName(cfg.Optimizer.Acquisition)
	if !ok {
		return rectgp.Result[float64]{}, fmt.Errorf("unknown acquisition %q", cfg.Optimizer.Acquisition)
	}

	progress := make(chan rectgp.ProgressUpdate, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)

		for update := range progress {
			logger.Debug("tuning progress",
				zap.String("phase", update.Phase),
				zap.Int("iteration", update.CurrentIteration),
				zap.Int("total", update.TotalIterations),
				zap.Float64s("params", update.CurrentParams),
				zap.Float64("score", update.LastScore),
				zap.Float64("best", update.CurrentBestScore),
			)
		}
	}()

	tc := rectgp.TuneConfig{
		Optimization: rectgp.OptimizationConfig{
			Iterations:      cfg.Optimizer.MaxIterations,
			InitialSamples:  cfg.Optimizer.InitialSamples,
			NumCandidates:   cfg.Optimizer.NumCandidates,
			AcquisitionFunc: acq,
			SurrogateWidth:  cfg.Optimizer.SurrogateWidth,
			AcqParams: rectgp.AcquisitionParams{
				Beta:        cfg.Optimizer.Beta,
				Xi:          cfg.Optimizer.Xi,
				BestSoFar:   math.MaxFloat64,
				RandomState: rand.New(rand.NewSource(cfg.Optimizer.Seed + index)),
			},
			ProgressChan: progress,
		},
		Lengthscale: def.bounds,
	}

	res, err := clf.Tune(ctx, tc)

	close(progress)
	<-done

	return res, err
}

func evaluate(ctx context.Context, clf rectgp.Classifier, split Split) (rectgp.Metrics, error) {
	probs, err := clf.Predict(ctx, split.X)
	if err != nil {
		return rectgp.Metrics{}, err
	}

	return rectgp.Evaluate(probs, split.Data.Labels())
}

func summarize(cfg *config.Config, train, test *rectgp.Dataset) DatasetSummary {
	return DatasetSummary{
		Width:             cfg.Dataset.Width,
		Height:            cfg.Dataset.Height,
		TrainCount:        train.Len(),
		TestCount:         test.Len(),
		TrainTallFraction: train.Balance(),
		TestTallFraction:  test.Balance(),
		Attempts:          train.Attempts + test.Attempts,
		Exhausted:         len(train.Exhausted) + len(test.Exhausted),
	}
}
