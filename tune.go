package rectgp

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// TuneConfig controls KernelClassifier.Tune.
type TuneConfig struct {
	// Optimization drives the Bayesian optimizer. Its Iterations field is
	// the iteration budget of the tuning run.
	Optimization OptimizationConfig

	// Lengthscale is the search range.
	Lengthscale ParameterRange[float64]
}

// DefaultTuneConfig searches lengthscales in [0.1, 10] with the default
// optimizer settings and iterations steps.
func DefaultTuneConfig(iterations int) TuneConfig {
	opt := DefaultConfig()
	opt.Iterations = iterations

	return TuneConfig{
		Optimization: opt,
		Lengthscale:  ParameterRange[float64]{Min: 0.1, Max: 10},
	}
}

// Tune searches for the lengthscale minimizing the leave-one-out negative
// log-likelihood of the training set, then keeps the best one.
//
// Parameters:
// - ctx: Cancels the search between evaluations and inside each one
// - cfg: Optimizer settings and the lengthscale search range
//
// Returns:
// - Result[float64]: Best lengthscale (Params[0]), its LOO NLL and counts
// - error: ErrNotFitted with fewer than 2 rows, a range or context error
//   from the optimizer, or an error when every evaluation failed
//
// Usage example:
//
//	cfg := DefaultTuneConfig(100)
//	cfg.Lengthscale = ParameterRange[float64]{Min: 0.5, Max: 4}
//
//	res, err := clf.Tune(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Params[0], clf.Lengthscale())
//
// Important notes:
// - The kernel is left unchanged when no evaluation succeeded
// - Training rows are prepared once and reused for every candidate
// - Each evaluation costs O(n^2) kernel comparisons
//
// Thread safety:
// - Holds the write lock for the whole search
// - Blocks Predict, Update and Fit while running.
func (c *KernelClassifier) Tune(ctx context.Context, cfg TuneConfig) (Result[float64], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.rows) < 2 {
		return Result[float64]{}, fmt.Errorf("tune: %w: need at least 2 rows", ErrNotFitted)
	}

	objective := func(params ...float64) (float64, error) {
		return c.looNLL(ctx, c.kernel.WithLengthscale(params[0]))
	}

	res, err := OptimizeHyperparameters(ctx, cfg.Optimization, objective, cfg.Lengthscale)
	if err != nil {
		return res, fmt.Errorf("tune: %w", err)
	}

	if res.Params == nil {
		return res, fmt.Errorf("tune: all %d evaluations failed", res.Evaluations)
	}

	c.kernel = c.kernel.WithLengthscale(res.Params[0])

	c.logger.Debug("lengthscale tuned",
		zap.String("kernel", c.kernel.Name()),
		zap.Float64("lengthscale", res.Params[0]),
		zap.Float64("loo_nll", res.Score),
		zap.Int("evaluations", res.Evaluations),
		zap.Int("failures", res.Failures),
	)

	return res, nil
}
