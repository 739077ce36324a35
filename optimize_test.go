package rectgp

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Sample objective to be minimized.
func quadratic(params ...float64) (float64, error) {
	d := params[0] - 3

	return d * d, nil
}

func seededConfig(seed int64) OptimizationConfig {
	config := DefaultConfig()
	config.AcqParams.RandomState = rand.New(rand.NewSource(seed))

	return config
}

func TestOptimizeQuadratic(t *testing.T) {
	config := seededConfig(1)
	config.InitialSamples = 5
	config.Iterations = 30

	res, err := OptimizeHyperparameters(context.Background(), config, quadratic,
		ParameterRange[float64]{Min: 0, Max: 10},
	)
	require.NoError(t, err)

	assert.Equal(t, 35, res.Evaluations)
	assert.Zero(t, res.Failures)
	require.Len(t, res.Params, 1)
	assert.GreaterOrEqual(t, res.Params[0], 0.0)
	assert.LessOrEqual(t, res.Params[0], 10.0)
	assert.Less(t, res.Score, 4.0)
	assert.InDelta(t, res.Score, (res.Params[0]-3)*(res.Params[0]-3), 1e-12)
}

func TestOptimizeIsReproducible(t *testing.T) {
	run := func() Result[float64] {
		config := seededConfig(7)
		config.InitialSamples = 3
		config.Iterations = 5
		config.AcquisitionFunc = ExpectedImprovement

		res, err := OptimizeHyperparameters(context.Background(), config, quadratic,
			ParameterRange[float64]{Min: 0, Max: 10},
		)
		require.NoError(t, err)

		return res
	}

	assert.Equal(t, run(), run())
}

func TestOptimizeIntegerParameters(t *testing.T) {
	config := seededConfig(2)
	config.InitialSamples = 3
	config.Iterations = 5

	var mu sync.Mutex
	var seen [][]int

	objective := func(params ...int) (float64, error) {
		mu.Lock()
		seen = append(seen, append([]int(nil), params...))
		mu.Unlock()

		return float64(params[0] * params[1]), nil
	}

	res, err := OptimizeHyperparameters(context.Background(), config, objective,
		ParameterRange[int]{Min: 1, Max: 100},
		ParameterRange[int]{Min: 1, Max: 3},
	)
	require.NoError(t, err)

	assert.Len(t, res.Params, 2)
	assert.Len(t, seen, 8)

	for _, p := range seen {
		assert.True(t, p[0] >= 1 && p[0] <= 100, "param 0 out of range: %d", p[0])
		assert.True(t, p[1] >= 1 && p[1] <= 3, "param 1 out of range: %d", p[1])
	}
}

func TestOptimizeFailures(t *testing.T) {
	config := seededConfig(3)
	config.InitialSamples = 10
	config.Iterations = 10

	objective := func(params ...float64) (float64, error) {
		if params[0] < 5 {
			return 0, errors.New("unstable")
		}

		return params[0], nil
	}

	res, err := OptimizeHyperparameters(context.Background(), config, objective,
		ParameterRange[float64]{Min: 0, Max: 10},
	)
	require.NoError(t, err)

	assert.Equal(t, 20, res.Evaluations)
	assert.Positive(t, res.Failures)
	require.Len(t, res.Params, 1)
	assert.GreaterOrEqual(t, res.Params[0], 5.0)

	nan := func(params ...float64) (float64, error) { return math.NaN(), nil }

	res, err = OptimizeHyperparameters(context.Background(), config, nan,
		ParameterRange[float64]{Min: 0, Max: 10},
	)
	require.NoError(t, err)

	assert.Nil(t, res.Params)
	assert.True(t, math.IsInf(res.Score, 1))
	assert.Equal(t, res.Evaluations, res.Failures)
}

func TestOptimizeValidation(t *testing.T) {
	ctx := context.Background()

	_, err := OptimizeHyperparameters[float64](ctx, seededConfig(1), quadratic)
	assert.Error(t, err)

	_, err = OptimizeHyperparameters(ctx, seededConfig(1), quadratic, ParameterRange[float64]{Min: 2, Max: 1})
	assert.Error(t, err)
}

func TestOptimizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := OptimizeHyperparameters(ctx, seededConfig(1), quadratic, ParameterRange[float64]{Min: 0, Max: 10})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Evaluations)
}

func TestOptimizeProgressChannel(t *testing.T) {
	// Create a configuration
	config := seededConfig(4)
	config.InitialSamples = 3
	config.Iterations = 5

	// Create a bidirectional channel for progress updates
	progressChan := make(chan ProgressUpdate, config.InitialSamples+config.Iterations)
	config.ProgressChan = progressChan

	var counter int32
	var phases sync.Map
	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for update := range progressChan {
			atomic.AddInt32(&counter, 1)
			phases.Store(update.Phase, true)
		}
	}()

	res, err := OptimizeHyperparameters(context.Background(), config, quadratic,
		ParameterRange[float64]{Min: 0, Max: 10},
	)
	require.NoError(t, err)

	close(progressChan)
	wg.Wait()

	// Buffer holds every update, none are dropped.
	assert.Equal(t, int32(8), atomic.LoadInt32(&counter))

	_, ok := phases.Load(PhaseInitialSampling)
	assert.True(t, ok)

	_, ok = phases.Load(PhaseOptimization)
	assert.True(t, ok)

	assert.Len(t, res.Params, 1)
}

func TestAcquisitionFunctions(t *testing.T) {
	params := AcquisitionParams{Beta: 2, BestSoFar: 1, Xi: 0}

	assert.InDelta(t, 0.1, UCB(0.5, 0.04, params), 1e-12)

	// A point predicted far below the best is almost surely an improvement.
	assert.Less(t, ProbabilityOfImprovement(-10, 1, params), 1e-6)
	assert.Greater(t, ProbabilityOfImprovement(10, 1, params), 1-1e-6)
	assert.Equal(t, 0.0, ProbabilityOfImprovement(0.5, 0, params))
	assert.Equal(t, 1.0, ProbabilityOfImprovement(1.5, 0, params))

	// Negated expected improvement: lower is better.
	assert.Less(t, ExpectedImprovement(0, 1, params), ExpectedImprovement(2, 1, params))
	assert.InDelta(t, -0.5, ExpectedImprovement(0.5, 0, params), 1e-12)
	assert.Equal(t, 0.0, ExpectedImprovement(1.5, 0, params))

	params.RandomState = rand.New(rand.NewSource(1))
	assert.Equal(t, 0.5, ThompsonSampling(0.5, 0, params))

	for _, name := range []string{"ucb", "pi", "ei", "thompson", ""} {
		_, ok := AcquisitionByName(name)
		assert.True(t, ok, name)
	}

	_, ok := AcquisitionByName("random")
	assert.False(t, ok)
}

func TestSurrogate(t *testing.T) {
	s := newSurrogate()

	mean, variance := s.Predict([]float64{0.5})
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 1.0, variance)

	s.Update([]float64{0.5}, 2)
	assert.Len(t, s.X, 1)

	mean, variance = s.Predict([]float64{0.5})
	assert.InDelta(t, 2, mean, 1e-12)
	assert.InDelta(t, 0, variance, 1e-12)

	mean, variance = s.Predict([]float64{100})
	assert.Equal(t, 2.0, mean)
	assert.Equal(t, 1.0, variance)

	s.Update([]float64{0.6}, 4)

	mean, _ = s.Predict([]float64{0.55})
	assert.InDelta(t, 3, mean, 1e-12)

	// A wider kernel lets the far observation pull the mean.
	mean, _ = s.Predict([]float64{0.5})
	narrow := mean

	s.SetSigma(0.5)
	assert.Equal(t, 0.5, s.kernel.Length)

	mean, _ = s.Predict([]float64{0.5})
	assert.Greater(t, mean, narrow)
}

func TestOptimizeSurrogateWidth(t *testing.T) {
	trace := func(width float64) []float64 {
		config := seededConfig(5)
		config.InitialSamples = 3
		config.Iterations = 10
		config.SurrogateWidth = width

		var seen []float64

		objective := func(params ...float64) (float64, error) {
			seen = append(seen, params[0])

			return quadratic(params...)
		}

		_, err := OptimizeHyperparameters(context.Background(), config, objective,
			ParameterRange[float64]{Min: 0, Max: 10},
		)
		require.NoError(t, err)

		return seen
	}

	assert.Equal(t, trace(DefaultSurrogateWidth), trace(0), "zero width falls back to the default")
	assert.NotEqual(t, trace(DefaultSurrogateWidth), trace(0.01))
}
