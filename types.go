package rectgp

import (
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/exp/constraints"
)

//////
// Const, vars, types.
//////

const (
	// MinCanvasSize is the smallest width and height a canvas may have.
	MinCanvasSize = 5

	// DefaultMaxAttempts is the number of draws allowed per sample slot
	// before the exhaustion policy applies.
	DefaultMaxAttempts = 1000

	// DefaultSurrogateWidth is the optimizer's surrogate kernel width in the
	// unit cube.
	DefaultSurrogateWidth = 0.2
)

// ExhaustionPolicy decides what happens to a sample slot when every attempt
// produced a square rectangle.
type ExhaustionPolicy int

const (
	// AcceptDegenerate keeps an all-zero canvas with label 0 for the slot and
	// logs a warning. The slot index is recorded in Dataset.Exhausted.
	AcceptDegenerate ExhaustionPolicy = iota

	// FailOnExhaustion aborts generation with ErrRetriesExhausted.
	FailOnExhaustion
)

// String implements fmt.Stringer.
func (p ExhaustionPolicy) String() string {
	switch p {
	case AcceptDegenerate:
		return "accept-degenerate"
	case FailOnExhaustion:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseExhaustionPolicy maps a configuration string to a policy. Unknown
// values fall back to AcceptDegenerate and ok is false.
func ParseExhaustionPolicy(s string) (policy ExhaustionPolicy, ok bool) {
	switch s {
	case "", "accept-degenerate", "accept":
		return AcceptDegenerate, true
	case "fail":
		return FailOnExhaustion, true
	default:
		return AcceptDegenerate, false
	}
}

// Rectangle is an axis-aligned box given by its top-left (X0, Y0) and
// bottom-right (X1, Y1) corners, in pixel coordinates.
type Rectangle struct {
	X0, Y0 int
	X1, Y1 int
}

// Width returns X1-X0.
func (r Rectangle) Width() int { return r.X1 - r.X0 }

// Height returns Y1-Y0.
func (r Rectangle) Height() int { return r.Y1 - r.Y0 }

// IsSquare reports whether width and height are equal.
func (r Rectangle) IsSquare() bool { return r.Width() == r.Height() }

// Label returns 1 for a tall rectangle and 0 otherwise.
func (r Rectangle) Label() float64 {
	if r.Height() > r.Width() {
		return 1
	}

	return 0
}

// Interior reports whether the rectangle lies strictly inside a canvas of the
// given size: it never touches row 0, row height-1, column 0 or column
// width-1.
func (r Rectangle) Interior(width, height int) bool {
	return r.X0 >= 1 && r.X0 < r.X1 && r.X1 <= width-2 &&
		r.Y0 >= 1 && r.Y0 < r.Y1 && r.Y1 <= height-2
}

// Sample is one flattened canvas paired with its label.
type Sample struct {
	// Pixels is the row-major flattened canvas.
	Pixels []float64

	// Label is 1 for tall, 0 for wide (or for a degenerate slot).
	Label float64

	// Rectangle is the box that was drawn. It is the zero value for a
	// degenerate slot.
	Rectangle Rectangle
}

// GeneratorConfig holds the parameters for a Generator.
//
// Usage example:
//
//	cfg := DefaultGeneratorConfig()
//	cfg.Width, cfg.Height = 28, 28
//	cfg.Seed = 42
//	gen, err := NewGenerator(cfg)
type GeneratorConfig struct {
	// Width of every canvas in pixels. Must be >= MinCanvasSize.
	Width int

	// Height of every canvas in pixels. Must be >= MinCanvasSize.
	Height int

	// MaxAttempts bounds the reject-and-resample loop per sample slot.
	MaxAttempts int

	// Exhaustion decides what happens when MaxAttempts squares were drawn.
	Exhaustion ExhaustionPolicy

	// Seed initialises the generator's private random source. The same seed
	// always yields the same dataset.
	Seed int64

	// Logger receives the exhaustion warning. Nil means no logging.
	Logger *zap.Logger
}

// ProgressUpdate represents the current state of the optimization process.
type ProgressUpdate struct {
	// Phase indicates whether we're in initial sampling or optimization phase
	Phase string

	// CurrentIteration is the current iteration number
	CurrentIteration int

	// TotalIterations is the total number of iterations to run
	TotalIterations int

	// CurrentParams holds the parameter values being tested
	CurrentParams []float64

	// CurrentBestParams holds the best parameters found so far
	CurrentBestParams []float64

	// CurrentBestScore holds the lowest objective value found so far
	CurrentBestScore float64

	// LastScore holds the objective value of the last evaluation
	LastScore float64
}

// ParameterRange defines the valid range for a hyperparameter in the optimization process.
// Each hyperparameter must have a minimum and maximum value to define its search space.
//
// Type Parameter:
//   - T: The numeric type for this parameter range (int64 or float64)
//
// Usage:
//
//	// Kernel lengthscale between 0.1 and 10
//	lengthscale := ParameterRange[float64]{
//	    Min: 0.1,
//	    Max: 10,
//	}
//
// Validation:
// - Min must be less than or equal to Max
// - The range is inclusive of both Min and Max values
type ParameterRange[T constraints.Integer | constraints.Float] struct {
	// Min defines the minimum allowed value (inclusive) for this hyperparameter.
	Min T

	// Max defines the maximum allowed value (inclusive) for this hyperparameter.
	Max T
}

// ObjectiveFunc is the function being minimized. It receives one value per
// ParameterRange, in order, and returns a score where lower is better.
//
// Returning an error or a non-finite score marks the point as failed: it is
// counted in Result.Failures and never fed to the surrogate model.
//
// Usage example:
//
//	objective := ObjectiveFunc[float64](func(params ...float64) (float64, error) {
//	    clf.SetLengthscale(params[0])
//	    return clf.LeaveOneOutNLL(ctx)
//	})
type ObjectiveFunc[T constraints.Integer | constraints.Float] func(params ...T) (float64, error)

// AcquisitionFunc defines the signature for acquisition functions used in the
// Bayesian optimization process. These functions help decide which points in the
// parameter space should be evaluated next.
//
// Parameters:
// - mean: The predicted mean objective at a point (lower is better)
// - variance: The predicted variance/uncertainty at that point
// - params: Additional parameters needed by specific acquisition functions
//
// Returns:
// - float64: Acquisition value (lower values indicate more promising points)
//
// Implementation notes for custom acquisition functions:
// - Should handle edge cases (zero variance, extreme means)
// - Must be thread-safe
// - Should return lower values for more promising points.
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds parameters used by different acquisition functions to make decisions
// about which points to sample next in the optimization process.
type AcquisitionParams struct {
	// Beta controls the exploration-exploitation trade-off in the Upper Confidence Bound (UCB)
	// acquisition function. Typical values range from 0.1 to 5.0, with 2.0 being a good default.
	Beta float64

	// Xi is the minimum improvement over BestSoFar asked for by Probability of
	// Improvement (PI) and Expected Improvement (EI). Typical values range
	// from 0.01 to 0.1.
	Xi float64

	// BestSoFar keeps track of the lowest objective value seen so far.
	// It is updated by the optimizer; start it at math.MaxFloat64.
	BestSoFar float64

	// RandomState is the random number generator used by Thompson Sampling
	// and by candidate generation. Each optimization run needs its own.
	RandomState *rand.Rand
}

// OptimizationConfig holds all configuration parameters for the Bayesian optimization process.
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Iterations = 100  // maxOptimizerIterations
//	config.AcquisitionFunc = ExpectedImprovement
//
// Note:
// - Create separate configs for parallel optimizations.
type OptimizationConfig struct {
	// Iterations determines how many optimization steps to perform after the
	// initial sampling phase. It is the iteration budget of a tuning run.
	Iterations int

	// InitialSamples determines how many random points to evaluate before
	// starting the optimization process.
	InitialSamples int

	// NumCandidates determines how many random candidates to consider in each
	// iteration before selecting the best one to evaluate.
	NumCandidates int

	// AcquisitionFunc determines the strategy for selecting the next point to
	// evaluate.
	AcquisitionFunc AcquisitionFunc

	// AcqParams holds the parameters for the acquisition function.
	AcqParams AcquisitionParams

	// SurrogateWidth is the kernel width of the surrogate model, measured in
	// the unit cube the parameters are mapped to. Smaller values trust each
	// observation more locally. Values <= 0 mean DefaultSurrogateWidth.
	SurrogateWidth float64

	// ProgressChan is used to send progress updates during optimization.
	// If nil, no updates will be sent. Updates are dropped when it is full.
	ProgressChan chan<- ProgressUpdate
}
