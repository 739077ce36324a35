package rectgp

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func toyTensors() (X, Y *tensor.Dense) {
	X = tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float64{0, 0.1, 1, 1.1}))
	Y = tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]float64{0, 0, 1, 1}))

	return X, Y
}

func TestKernelClassifierFitPredict(t *testing.T) {
	ctx := context.Background()
	X, Y := toyTensors()

	clf := NewKernelClassifier(NewSquaredExponential(1, 0.2), WithWorkers(2))
	require.NoError(t, clf.Fit(ctx, X, Y))
	assert.Equal(t, 4, clf.Len())

	query := tensor.New(tensor.WithShape(3, 1), tensor.WithBacking([]float64{0.05, 1.05, 10}))

	probs, err := clf.Predict(ctx, query)
	require.NoError(t, err)
	require.Len(t, probs, 3)

	assert.Less(t, probs[0], 0.25)
	assert.Greater(t, probs[1], 0.75)
	assert.InDelta(t, 0.5, probs[2], 1e-6, "far from the data the prior dominates")

	mean, variance, err := clf.PredictRow([]float64{10})
	require.NoError(t, err)
	assert.InDelta(t, 0, mean, 1e-6)
	assert.InDelta(t, 1, variance, 1e-6)
}

func TestKernelClassifierErrors(t *testing.T) {
	ctx := context.Background()
	X, Y := toyTensors()

	clf := NewKernelClassifier(NewSquaredExponential(1, 1))

	_, err := clf.Predict(ctx, X)
	assert.ErrorIs(t, err, ErrNotFitted)

	_, _, err = clf.PredictRow([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)

	badY := tensor.New(tensor.WithShape(3, 1), tensor.WithBacking([]float64{0, 1, 1}))
	assert.ErrorIs(t, clf.Fit(ctx, X, badY), ErrShapeMismatch)

	badLabels := tensor.New(tensor.WithShape(4), tensor.WithBacking([]float64{0, 2, 1, 1}))
	assert.ErrorIs(t, clf.Fit(ctx, X, badLabels), ErrShapeMismatch)

	vector := tensor.New(tensor.WithShape(4), tensor.WithBacking([]float64{0, 0.1, 1, 1.1}))
	assert.ErrorIs(t, clf.Fit(ctx, vector, Y), ErrShapeMismatch)

	ints := tensor.New(tensor.WithShape(4, 1), tensor.WithBacking([]int{0, 0, 1, 1}))
	assert.ErrorIs(t, clf.Fit(ctx, ints, Y), ErrShapeMismatch)

	require.NoError(t, clf.Fit(ctx, X, Y))

	wide := tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float64{0, 0}))
	_, err = clf.Predict(ctx, wide)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	assert.ErrorIs(t, clf.Update([]float64{1, 2}, 1), ErrShapeMismatch)
}

func TestKernelClassifierRejectsWrongImageSize(t *testing.T) {
	ctx := context.Background()

	conv, err := NewConvolutional(NewSquaredExponential(1, 1), 10, 10, 3, 3)
	require.NoError(t, err)

	clf := NewKernelClassifier(conv, WithWorkers(2))

	X := tensor.New(tensor.WithShape(2, 64), tensor.WithBacking(make([]float64, 128)))
	Y := tensor.New(tensor.WithShape(2, 1), tensor.WithBacking([]float64{0, 1}))

	assert.ErrorIs(t, clf.Fit(ctx, X, Y), ErrShapeMismatch)
	assert.Zero(t, clf.Len())

	assert.ErrorIs(t, clf.Update(make([]float64, 64), 1), ErrShapeMismatch)
	assert.Zero(t, clf.Len())

	require.NoError(t, clf.Update(make([]float64, 100), 1))
	assert.Equal(t, 1, clf.Len())
}

func TestKernelClassifierFlatLabels(t *testing.T) {
	X, _ := toyTensors()
	Y := tensor.New(tensor.WithShape(4), tensor.WithBacking([]float64{0, 0, 1, 1}))

	clf := NewKernelClassifier(NewSquaredExponential(1, 0.2))
	assert.NoError(t, clf.Fit(context.Background(), X, Y))
}

func TestKernelClassifierUpdate(t *testing.T) {
	clf := NewKernelClassifier(NewSquaredExponential(1, 0.5))

	require.NoError(t, clf.Update([]float64{0}, 0))
	require.NoError(t, clf.Update([]float64{3}, 1))

	mean, _, err := clf.PredictRow([]float64{3})
	require.NoError(t, err)
	assert.Greater(t, mean, 0.0)

	mean, _, err = clf.PredictRow([]float64{0})
	require.NoError(t, err)
	assert.Less(t, mean, 0.0)
}

func TestKernelClassifierPredictCanceled(t *testing.T) {
	X, Y := toyTensors()

	clf := NewKernelClassifier(NewSquaredExponential(1, 0.2))
	require.NoError(t, clf.Fit(context.Background(), X, Y))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := clf.Predict(ctx, X)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLeaveOneOutNLL(t *testing.T) {
	ctx := context.Background()
	X, Y := toyTensors()

	clf := NewKernelClassifier(NewSquaredExponential(1, 0.2))

	_, err := clf.LeaveOneOutNLL(ctx)
	assert.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, clf.Fit(ctx, X, Y))

	nll, err := clf.LeaveOneOutNLL(ctx)
	require.NoError(t, err)
	assert.Greater(t, nll, 0.0)
	assert.Less(t, nll, math.Log(2), "each row's neighbour shares its label")

	again, err := clf.LeaveOneOutNLL(ctx)
	require.NoError(t, err)
	assert.Equal(t, nll, again)
}

func TestTune(t *testing.T) {
	ctx := context.Background()

	ds, err := GenerateDataset(20, 8, 8, 9)
	require.NoError(t, err)

	X, Y, err := ds.Tensors()
	require.NoError(t, err)

	clf := NewKernelClassifier(NewSquaredExponential(1, 5))
	require.NoError(t, clf.Fit(ctx, X, Y))

	cfg := DefaultTuneConfig(5)
	cfg.Optimization.InitialSamples = 3
	cfg.Optimization.NumCandidates = 10
	cfg.Optimization.AcqParams.RandomState = rand.New(rand.NewSource(1))
	cfg.Lengthscale = ParameterRange[float64]{Min: 0.5, Max: 4}

	res, err := clf.Tune(ctx, cfg)
	require.NoError(t, err)

	assert.Equal(t, 8, res.Evaluations)
	require.Len(t, res.Params, 1)
	assert.Equal(t, res.Params[0], clf.Lengthscale())
	assert.GreaterOrEqual(t, clf.Lengthscale(), 0.5)
	assert.LessOrEqual(t, clf.Lengthscale(), 4.0)

	nll, err := clf.LeaveOneOutNLL(ctx)
	require.NoError(t, err)
	assert.InDelta(t, res.Score, nll, 1e-12)
}

func TestTuneRequiresData(t *testing.T) {
	clf := NewKernelClassifier(NewSquaredExponential(1, 1))

	_, err := clf.Tune(context.Background(), DefaultTuneConfig(1))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestEvaluate(t *testing.T) {
	m, err := Evaluate([]float64{0.9, 0.2, 0.6, 0.4}, []float64{1, 0, 0, 1})
	require.NoError(t, err)

	assert.Equal(t, 0.5, m.Accuracy)
	assert.InDelta(t, (math.Log(0.9)+math.Log(0.8)+2*math.Log(0.4))/4, m.LogLikelihood, 1e-12)

	m, err = Evaluate([]float64{0, 1}, []float64{1, 0})
	require.NoError(t, err)
	assert.False(t, math.IsInf(m.LogLikelihood, 0), "probabilities are clamped")

	_, err = Evaluate([]float64{0.5}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Evaluate(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestKernelClassifierLearnsRectangles(t *testing.T) {
	ctx := context.Background()

	train, err := GenerateDataset(60, 8, 8, 1)
	require.NoError(t, err)

	Xtr, Ytr, err := train.Tensors()
	require.NoError(t, err)

	clf := NewKernelClassifier(NewSquaredExponential(1, 1))
	require.NoError(t, clf.Fit(ctx, Xtr, Ytr))

	// Training rows are their own nearest neighbours.
	probs, err := clf.Predict(ctx, Xtr)
	require.NoError(t, err)

	m, err := Evaluate(probs, train.Labels())
	require.NoError(t, err)
	assert.Greater(t, m.Accuracy, 0.9)
}
