package rectgp

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/exp/constraints"
)

//////
// Const, vars, types.
//////

// Phases reported in ProgressUpdate.Phase.
const (
	PhaseInitialSampling = "InitialSampling"
	PhaseOptimization    = "Optimization"
)

// Result is the outcome of OptimizeHyperparameters.
type Result[T constraints.Integer | constraints.Float] struct {
	// Params is the best parameter combination found, in the order of the
	// ranges passed in. It is nil when every evaluation failed.
	Params []T

	// Score is the objective value at Params (math.Inf(1) when every
	// evaluation failed).
	Score float64

	// Evaluations counts objective calls.
	Evaluations int

	// Failures counts objective calls that returned an error or a
	// non-finite score.
	Failures int
}

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration.
func DefaultConfig() OptimizationConfig {
	return OptimizationConfig{
		Iterations:      50,
		InitialSamples:  10,
		NumCandidates:   50,
		AcquisitionFunc: UCB,
		SurrogateWidth:  DefaultSurrogateWidth,
		AcqParams: AcquisitionParams{
			BestSoFar:   math.MaxFloat64,
			Beta:        2.0,
			RandomState: rand.New(rand.NewSource(time.Now().UnixNano())),
			Xi:          0.01,
		},
		ProgressChan: nil, // Default to no progress updates.
	}
}

// OptimizeHyperparameters uses Bayesian optimization to find the parameters
// minimizing objective over the box given by hypers.
//
// How it works:
// 1. Takes InitialSamples random samples to build the surrogate model
// 2. For each of Iterations:
//   - Generates NumCandidates random candidate points
//   - Uses the surrogate to predict the objective at each point
//   - Uses AcquisitionFunc to select the most promising point
//   - Evaluates the selected point and updates the surrogate
//
// 3. Returns the best parameters found
//
// Failed evaluations (error or non-finite score) are counted but never
// become the best point and are not fed to the surrogate.
//
// Candidates are drawn from config.AcqParams.RandomState when set, which
// makes a run reproducible for a deterministic objective.
//
// The context is checked before every evaluation; on cancellation the best
// result so far is returned together with ctx.Err().
func OptimizeHyperparameters[T constraints.Integer | constraints.Float](
	ctx context.Context,
	config OptimizationConfig,
	objective ObjectiveFunc[T],
	hypers ...ParameterRange[T],
) (Result[T], error) {
	if len(hypers) == 0 {
		return Result[T]{Score: math.Inf(1)}, fmt.Errorf("optimize: at least one parameter range is required")
	}

	for i, h := range hypers {
		if h.Min > h.Max {
			return Result[T]{Score: math.Inf(1)}, fmt.Errorf("optimize: range %d has min %v > max %v", i, h.Min, h.Max)
		}
	}

	if config.AcquisitionFunc == nil {
		config.AcquisitionFunc = UCB
	}

	rng := config.AcqParams.RandomState
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		config.AcqParams.RandomState = rng
	}

	var rngMu sync.Mutex

	// safeRandomParams generates a set of random parameters within the
	// ranges. Integer parameters are drawn uniformly from [Min, Max].
	safeRandomParams := func() []T {
		rngMu.Lock()
		defer rngMu.Unlock()

		params := make([]T, len(hypers))
		for i, hyper := range hypers {
			if isIntegerType[T]() {
				lo := int64(hyper.Min)
				hi := int64(hyper.Max)
				params[i] = T(lo + rng.Int63n(hi-lo+1))

				continue
			}

			lo := float64(hyper.Min)
			hi := float64(hyper.Max)
			params[i] = T(lo + rng.Float64()*(hi-lo))
		}

		return params
	}

	// toUnit maps parameters into the unit cube for the surrogate.
	toUnit := func(params []T) []float64 {
		unit := make([]float64, len(params))
		for i, v := range params {
			span := float64(hypers[i].Max) - float64(hypers[i].Min)
			if span == 0 {
				continue
			}

			unit[i] = (float64(v) - float64(hypers[i].Min)) / span
		}

		return unit
	}

	toFloats := func(params []T) []float64 {
		floats := make([]float64, len(params))
		for i, v := range params {
			floats[i] = float64(v)
		}

		return floats
	}

	model := newSurrogate()
	if config.SurrogateWidth > 0 {
		model.SetSigma(config.SurrogateWidth)
	}

	result := Result[T]{Score: math.Inf(1)}

	// bestMu protects access to result.
	var bestMu sync.Mutex

	sendProgress := func(phase string, iteration, total int, current []T, score float64) {
		if config.ProgressChan == nil {
			return
		}

		bestMu.Lock()
		update := ProgressUpdate{
			Phase:             phase,
			CurrentIteration:  iteration,
			TotalIterations:   total,
			CurrentParams:     toFloats(current),
			CurrentBestParams: toFloats(result.Params),
			CurrentBestScore:  result.Score,
			LastScore:         score,
		}
		bestMu.Unlock()

		select {
		case config.ProgressChan <- update:
		default:
			// Skip update if channel is full.
		}
	}

	// evaluate runs the objective once and records the outcome.
	evaluate := func(params []T) float64 {
		score, err := objective(params...)

		bestMu.Lock()
		defer bestMu.Unlock()

		result.Evaluations++

		if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
			result.Failures++

			return math.Inf(1)
		}

		model.Update(toUnit(params), score)

		if score < result.Score {
			result.Score = score
			result.Params = append(result.Params[:0:0], params...)
		}

		return score
	}

	// Phase 1: Initial random sampling.
	for i := 0; i < config.InitialSamples; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		params := safeRandomParams()
		score := evaluate(params)

		sendProgress(PhaseInitialSampling, i+1, config.InitialSamples, params, score)
	}

	// Phase 2: Bayesian optimization loop.
	for i := 0; i < config.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		bestMu.Lock()
		config.AcqParams.BestSoFar = result.Score
		bestMu.Unlock()

		if math.IsInf(config.AcqParams.BestSoFar, 1) {
			config.AcqParams.BestSoFar = math.MaxFloat64
		}

		var nextParams []T
		bestAcquisition := math.Inf(1)

		for j := 0; j < max(config.NumCandidates, 1); j++ {
			candidate := safeRandomParams()

			mean, variance := model.Predict(toUnit(candidate))

			rngMu.Lock()
			acquisition := config.AcquisitionFunc(mean, variance, config.AcqParams)
			rngMu.Unlock()

			if nextParams == nil || acquisition < bestAcquisition {
				bestAcquisition = acquisition
				nextParams = candidate
			}
		}

		score := evaluate(nextParams)

		sendProgress(PhaseOptimization, i+1, config.Iterations, nextParams, score)
	}

	return result, nil
}

// isIntegerType reports whether T is one of the integer kinds.
func isIntegerType[T constraints.Integer | constraints.Float]() bool {
	switch any(T(0)).(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return true
	default:
		return false
	}
}
