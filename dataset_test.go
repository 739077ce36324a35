package rectgp

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestDatasetTensors(t *testing.T) {
	ds, err := GenerateDataset(12, 10, 8, 5)
	require.NoError(t, err)

	X, Y, err := ds.Tensors()
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{12, 80}, X.Shape())
	assert.Equal(t, tensor.Shape{12, 1}, Y.Shape())
	assert.Equal(t, tensor.Float64, X.Dtype())
	assert.Equal(t, tensor.Float64, Y.Dtype())
	assert.Equal(t, ds.X, X.Data())
	assert.Equal(t, ds.Y, Y.Data())

	// Tensors own their data.
	X.Data().([]float64)[0] = 42
	assert.NotEqual(t, 42.0, ds.X[0])
}

func TestDatasetTensorsEmpty(t *testing.T) {
	ds, err := GenerateDataset(0, 10, 10, 5)
	require.NoError(t, err)

	_, _, err = ds.Tensors()
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestDatasetSampleIsCopy(t *testing.T) {
	ds, err := GenerateDataset(3, 10, 10, 5)
	require.NoError(t, err)

	s := ds.Sample(1)
	assert.Equal(t, ds.Row(1), s.Pixels)
	assert.Equal(t, ds.Y[1], s.Label)

	s.Pixels[0] = 9
	assert.NotEqual(t, 9.0, ds.Row(1)[0])
}

func TestDatasetBalance(t *testing.T) {
	ds := &Dataset{Y: []float64{1, 0, 1, 1}}
	assert.Equal(t, 0.75, ds.Balance())

	assert.Zero(t, (&Dataset{}).Balance())
}

func TestWritePreview(t *testing.T) {
	ds, err := GenerateDataset(7, 10, 8, 5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ds.WritePreview(&buf, 3, 2))

	img, err := png.Decode(&buf)
	require.NoError(t, err)

	// 3 columns and 3 rows of (canvas + 1px separator), plus the outer
	// separator, scaled by 2.
	assert.Equal(t, (3*11+1)*2, img.Bounds().Dx())
	assert.Equal(t, (3*9+1)*2, img.Bounds().Dy())

	assert.Error(t, ds.WritePreview(&buf, 0, 2))

	empty, err := GenerateDataset(0, 10, 10, 5)
	require.NoError(t, err)
	assert.ErrorIs(t, empty.WritePreview(&buf, 3, 2), ErrEmptyDataset)
}
