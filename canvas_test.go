package rectgp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawRectangle(t *testing.T) {
	c := NewCanvas(10, 10)
	r := Rectangle{X0: 2, Y0: 2, X1: 6, Y1: 4}

	require.NoError(t, DrawRectangle(c, r))

	// 4 wide, 2 tall.
	assert.Equal(t, 0.0, r.Label())

	want := [][2]int{
		{2, 2}, {3, 2}, {4, 2}, {5, 2}, {6, 2},
		{2, 3}, {6, 3},
		{2, 4}, {3, 4}, {4, 4}, {5, 4}, {6, 4},
	}

	if diff := cmp.Diff(want, c.Foreground()); diff != "" {
		t.Errorf("foreground mismatch (-want +got):\n%s", diff)
	}
}

func TestDrawRectangleLeavesInteriorEmpty(t *testing.T) {
	c := NewCanvas(12, 12)
	r := Rectangle{X0: 1, Y0: 2, X1: 8, Y1: 9}

	require.NoError(t, DrawRectangle(c, r))

	for y := r.Y0 + 1; y < r.Y1; y++ {
		for x := r.X0 + 1; x < r.X1; x++ {
			assert.Zero(t, c.At(x, y), "interior pixel (%d, %d)", x, y)
		}
	}

	// Perimeter of a w x h box drawn with both corners closed.
	assert.Len(t, c.Foreground(), 2*(r.Width()+r.Height()))
}

func TestDrawRectangleOutOfBounds(t *testing.T) {
	tests := []struct {
		name string
		r    Rectangle
	}{
		{"negative x0", Rectangle{X0: -1, Y0: 1, X1: 3, Y1: 3}},
		{"x1 on width", Rectangle{X0: 1, Y0: 1, X1: 10, Y1: 3}},
		{"y1 on height", Rectangle{X0: 1, Y0: 1, X1: 3, Y1: 10}},
		{"x0 not before x1", Rectangle{X0: 3, Y0: 1, X1: 3, Y1: 3}},
		{"y0 after y1", Rectangle{X0: 1, Y0: 4, X1: 3, Y1: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCanvas(10, 10)

			err := DrawRectangle(c, tt.r)

			assert.ErrorIs(t, err, ErrRectangleOutOfBounds)
			assert.Empty(t, c.Foreground())
		})
	}
}

func TestCanvasFlattenIsRowMajorCopy(t *testing.T) {
	c := NewCanvas(3, 2)
	c.Set(2, 0, 1)
	c.Set(0, 1, 1)

	flat := c.Flatten()
	assert.Equal(t, []float64{0, 0, 1, 1, 0, 0}, flat)

	flat[0] = 7
	assert.Zero(t, c.At(0, 0))

	c.Reset()
	assert.Empty(t, c.Foreground())
}

func TestRectangleLabel(t *testing.T) {
	assert.Equal(t, 1.0, Rectangle{X0: 1, Y0: 1, X1: 3, Y1: 6}.Label())
	assert.Equal(t, 0.0, Rectangle{X0: 1, Y0: 1, X1: 6, Y1: 3}.Label())
	assert.True(t, Rectangle{X0: 1, Y0: 1, X1: 4, Y1: 4}.IsSquare())
	assert.True(t, Rectangle{X0: 1, Y0: 1, X1: 3, Y1: 3}.Interior(5, 5))
	assert.False(t, Rectangle{X0: 0, Y0: 1, X1: 3, Y1: 3}.Interior(5, 5))
	assert.False(t, Rectangle{X0: 1, Y0: 1, X1: 4, Y1: 3}.Interior(5, 5))
}
