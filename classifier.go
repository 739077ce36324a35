package rectgp

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"
)

//////
// Const, vars, types.
//////

const (
	// minProbability bounds predicted probabilities away from 0 and 1.
	minProbability = 1e-9

	// DefaultPrior is the pseudo-weight pulling predictions towards 0.5 when
	// a point is far from every training row.
	DefaultPrior = 1.0
)

// Classifier is the boundary between the dataset and a model. X has shape
// (N, features); Y has shape (N, 1) or (N,) with values in {0, 1}.
type Classifier interface {
	// Fit trains the model on X and Y.
	Fit(ctx context.Context, X, Y *tensor.Dense) error

	// Predict returns P(label = 1) for every row of X.
	Predict(ctx context.Context, X *tensor.Dense) ([]float64, error)
}

// Metrics summarises predictions against known labels.
type Metrics struct {
	// Accuracy is the fraction of rows where the 0.5-thresholded prediction
	// matches the label.
	Accuracy float64 `yaml:"accuracy" json:"accuracy"`

	// LogLikelihood is the mean Bernoulli log probability of the labels.
	LogLikelihood float64 `yaml:"log_likelihood" json:"log_likelihood"`
}

// KernelClassifier is a kernel-weighted vote over the training rows. For a
// query x with training targets t_i in {-1, +1}:
//
//	s(x) = sum_i k(x, x_i) t_i / (sum_i k(x, x_i) + prior)
//	P(label = 1 | x) = (1 + s(x)) / 2
//
// Far from the data the prior dominates and the probability tends to 0.5.
//
// Thread safety:
// - All fields are protected by the RWMutex
// - Predict and LeaveOneOutNLL take the read lock
// - Fit, Update, SetLengthscale and Tune take the write lock.
type KernelClassifier struct {
	mu sync.RWMutex

	kernel  Kernel
	prior   float64
	workers int
	logger  *zap.Logger

	features int
	rows     []any
	targets  []float64
}

// ClassifierOption configures a KernelClassifier.
type ClassifierOption func(*KernelClassifier)

//////
// Factory.
//////

// WithPrior sets the prior pseudo-weight. Values <= 0 are ignored.
func WithPrior(prior float64) ClassifierOption {
	return func(c *KernelClassifier) {
		if prior > 0 {
			c.prior = prior
		}
	}
}

// WithWorkers bounds the goroutines used for kernel evaluations. Values < 1
// are ignored.
func WithWorkers(n int) ClassifierOption {
	return func(c *KernelClassifier) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClassifierOption {
	return func(c *KernelClassifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewKernelClassifier returns an unfitted classifier using kernel.
func NewKernelClassifier(kernel Kernel, opts ...ClassifierOption) *KernelClassifier {
	c := &KernelClassifier{
		kernel:  kernel,
		prior:   DefaultPrior,
		workers: runtime.GOMAXPROCS(0),
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

//////
// Methods.
//////

// Fit implements Classifier. It replaces any previous training data.
//
// Parameters:
// - ctx: Cancels row preparation
// - X: Float64 tensor of shape (N, features)
// - Y: Float64 tensor of shape (N, 1) or (N,) holding 0 or 1
//
// Returns:
// - error: ErrShapeMismatch (wrapped) when X or Y is malformed or the
//   kernel does not accept rows of this width, or the context error
//
// Important notes:
// - Rows are copied and prepared once (patch extraction for the
//   convolutional kernel); predictions reuse the prepared form
// - Preparation runs on up to the configured number of workers
// - On error the previous training data is kept
//
// Thread safety:
// - Protected by the write mutex
// - Blocks Predict, Update and Tune while running.
func (c *KernelClassifier) Fit(ctx context.Context, X, Y *tensor.Dense) error {
	rows, features, err := rowsOf(X)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	labels, err := labelsOf(Y, len(rows))
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kernel.Accepts(features); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	prepared := make([]any, len(rows))

	err = parallelFor(ctx, len(rows), c.workers, func(i int) error {
		prepared[i] = c.kernel.Prepare(rows[i])

		return nil
	})
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	targets := make([]float64, len(labels))
	for i, y := range labels {
		targets[i] = target(y)
	}

	c.features = features
	c.rows = prepared
	c.targets = targets

	c.logger.Debug("classifier fitted",
		zap.String("kernel", c.kernel.Name()),
		zap.Int("rows", len(rows)),
		zap.Int("features", features),
		zap.Float64("lengthscale", c.kernel.Lengthscale()),
	)

	return nil
}

// Predict implements Classifier. It returns P(label = 1) for every row of X.
//
// Parameters:
// - ctx: Cancels the remaining rows
// - X: Float64 tensor of shape (M, features) with the width used by Fit
//
// Returns:
// - []float64: One probability per row, clamped to [1e-9, 1-1e-9]
// - error: ErrNotFitted before Fit, ErrShapeMismatch (wrapped) for a
//   malformed X or a different width, or the context error
//
// Usage example:
//
//	probs, err := clf.Predict(ctx, Xtest)
//	if err != nil {
//	    return err
//	}
//	metrics, err := Evaluate(probs, ytest)
//
// Important notes:
// - O(M * N) kernel comparisons, N being the number of training rows
// - Rows far from every training row get probabilities close to 0.5
//
// Thread safety:
// - Uses the read lock; concurrent Predict calls proceed in parallel.
func (c *KernelClassifier) Predict(ctx context.Context, X *tensor.Dense) ([]float64, error) {
	rows, features, err := rowsOf(X)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.rows) == 0 {
		return nil, ErrNotFitted
	}

	if features != c.features {
		return nil, fmt.Errorf("predict: %w: got %d features, fitted on %d", ErrShapeMismatch, features, c.features)
	}

	probs := make([]float64, len(rows))

	err = parallelFor(ctx, len(rows), c.workers, func(i int) error {
		mean, _ := c.score(c.kernel, c.kernel.Prepare(rows[i]), -1)
		probs[i] = probability(mean)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	return probs, nil
}

// PredictRow returns the vote mean s(x) in [-1, 1] and its uncertainty for a
// single row. The variance is prior / (sum_i k(x, x_i) + prior): 0 next to
// dense data, 1 far from every training row.
func (c *KernelClassifier) PredictRow(x []float64) (mean, variance float64, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.rows) == 0 {
		return 0, 1, ErrNotFitted
	}

	if len(x) != c.features {
		return 0, 1, fmt.Errorf("%w: got %d features, fitted on %d", ErrShapeMismatch, len(x), c.features)
	}

	mean, variance = c.score(c.kernel, c.kernel.Prepare(x), -1)

	return mean, variance, nil
}

// Update adds one training observation without refitting. label is 0 or 1.
func (c *KernelClassifier) Update(x []float64, label float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.rows) > 0 && len(x) != c.features {
		return fmt.Errorf("update: %w: got %d features, fitted on %d", ErrShapeMismatch, len(x), c.features)
	}

	if err := c.kernel.Accepts(len(x)); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	row := make([]float64, len(x))
	copy(row, x)

	c.features = len(x)
	c.rows = append(c.rows, c.kernel.Prepare(row))
	c.targets = append(c.targets, target(label))

	return nil
}

// Len returns the number of training rows.
func (c *KernelClassifier) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.rows)
}

// Kernel returns the current kernel.
func (c *KernelClassifier) Kernel() Kernel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.kernel
}

// SetLengthscale swaps the kernel lengthscale. Training rows are kept.
func (c *KernelClassifier) SetLengthscale(l float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.kernel = c.kernel.WithLengthscale(l)
}

// Lengthscale returns the current kernel lengthscale.
func (c *KernelClassifier) Lengthscale() float64 {
	return c.Kernel().Lengthscale()
}

// LeaveOneOutNLL returns the mean negative log-likelihood of every training
// label predicted from all the other training rows.
func (c *KernelClassifier) LeaveOneOutNLL(ctx context.Context) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.looNLL(ctx, c.kernel)
}

// looNLL computes the leave-one-out NLL under kernel k. Caller must hold the
// lock.
func (c *KernelClassifier) looNLL(ctx context.Context, k Kernel) (float64, error) {
	if len(c.rows) < 2 {
		return 0, fmt.Errorf("%w: leave-one-out needs at least 2 rows", ErrNotFitted)
	}

	logLik := make([]float64, len(c.rows))

	err := parallelFor(ctx, len(c.rows), c.workers, func(i int) error {
		mean, _ := c.score(k, c.rows[i], i)
		logLik[i] = bernoulliLogLikelihood(labelOf(c.targets[i]), probability(mean))

		return nil
	})
	if err != nil {
		return 0, err
	}

	return -meanOf(logLik), nil
}

// score returns the vote mean and variance of a prepared row, skipping the
// training row at index exclude (-1 skips nothing). Caller must hold the
// lock.
func (c *KernelClassifier) score(k Kernel, x any, exclude int) (mean, variance float64) {
	var sumK, sumKT float64

	for i, row := range c.rows {
		if i == exclude {
			continue
		}

		w := k.Compare(x, row)

		sumK += w
		sumKT += w * c.targets[i]
	}

	denominator := sumK + c.prior

	return sumKT / denominator, c.prior / denominator
}

//////
// Exported functionalities.
//////

// Evaluate compares predicted probabilities with labels in {0, 1}.
func Evaluate(probs, labels []float64) (Metrics, error) {
	if len(probs) != len(labels) {
		return Metrics{}, fmt.Errorf("%w: %d predictions for %d labels", ErrShapeMismatch, len(probs), len(labels))
	}

	if len(probs) == 0 {
		return Metrics{}, ErrEmptyDataset
	}

	var correct, logLik float64

	for i, p := range probs {
		predicted := 0.0
		if p > 0.5 {
			predicted = 1
		}

		if predicted == labels[i] {
			correct++
		}

		logLik += bernoulliLogLikelihood(labels[i], p)
	}

	n := float64(len(probs))

	return Metrics{Accuracy: correct / n, LogLikelihood: logLik / n}, nil
}

//////
// Helpers.
//////

func target(label float64) float64 {
	if label >= 0.5 {
		return 1
	}

	return -1
}

func labelOf(target float64) float64 {
	if target > 0 {
		return 1
	}

	return 0
}

func probability(mean float64) float64 {
	return clampProbability((1 + mean) / 2)
}

// rowsOf splits a 2-D float64 tensor into copied rows.
func rowsOf(X *tensor.Dense) (rows [][]float64, features int, err error) {
	if X == nil {
		return nil, 0, fmt.Errorf("%w: nil tensor", ErrShapeMismatch)
	}

	shape := X.Shape()
	if len(shape) != 2 {
		return nil, 0, fmt.Errorf("%w: X must be 2-D, got shape %v", ErrShapeMismatch, shape)
	}

	data, ok := X.Data().([]float64)
	if !ok {
		return nil, 0, fmt.Errorf("%w: X must hold float64, got %v", ErrShapeMismatch, X.Dtype())
	}

	n, features := shape[0], shape[1]
	if len(data) != n*features {
		return nil, 0, fmt.Errorf("%w: X backing has %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}

	rows = make([][]float64, n)
	for i := range rows {
		rows[i] = append([]float64(nil), data[i*features:(i+1)*features]...)
	}

	return rows, features, nil
}

// labelsOf reads an (N, 1) or (N,) float64 tensor.
func labelsOf(Y *tensor.Dense, n int) ([]float64, error) {
	if Y == nil {
		return nil, fmt.Errorf("%w: nil tensor", ErrShapeMismatch)
	}

	data, ok := Y.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("%w: Y must hold float64, got %v", ErrShapeMismatch, Y.Dtype())
	}

	if len(data) != n || Y.Shape().TotalSize() != n {
		return nil, fmt.Errorf("%w: Y has shape %v for %d rows", ErrShapeMismatch, Y.Shape(), n)
	}

	out := make([]float64, n)
	for i, v := range data {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("%w: label %d is %v, want 0 or 1", ErrShapeMismatch, i, v)
		}

		out[i] = v
	}

	return out, nil
}

// parallelFor runs fn(i) for i in [0, n) on at most workers goroutines.
func parallelFor(ctx context.Context, n, workers int, fn func(i int) error) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(workers, 1))

	for i := 0; i < n; i++ {
		i := i
		if egCtx.Err() != nil {
			break
		}

		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			return fn(i)
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

var _ Classifier = (*KernelClassifier)(nil)
