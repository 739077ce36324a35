package rectgp

import "fmt"

// Canvas is a grayscale image stored row-major: pixel (x, y) lives at
// Pix[y*Width+x].
type Canvas struct {
	Width  int
	Height int
	Pix    []float64
}

// NewCanvas returns an all-zero canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// Reset sets every pixel back to zero.
func (c *Canvas) Reset() {
	clear(c.Pix)
}

// At returns the pixel at column x, row y.
func (c *Canvas) At(x, y int) float64 {
	return c.Pix[y*c.Width+x]
}

// Set writes the pixel at column x, row y.
func (c *Canvas) Set(x, y int, v float64) {
	c.Pix[y*c.Width+x] = v
}

// Flatten returns a copy of the pixels, row by row.
func (c *Canvas) Flatten() []float64 {
	out := make([]float64, len(c.Pix))
	copy(out, c.Pix)

	return out
}

// Foreground returns the coordinates of every non-zero pixel, scanning row by
// row.
func (c *Canvas) Foreground() [][2]int {
	var pts [][2]int

	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			if c.At(x, y) != 0 {
				pts = append(pts, [2]int{x, y})
			}
		}
	}

	return pts
}

// DrawRectangle sets the outline of r to 1:
//   - left column x=X0 for rows [Y0, Y1)
//   - right column x=X1 for rows [Y0, Y1)
//   - top row y=Y0 for columns [X0, X1)
//   - bottom row y=Y1 for columns [X0, X1]
//
// The bottom row is the only inclusive edge; it closes the corner at
// (X1, Y1). The interior is left untouched.
func DrawRectangle(c *Canvas, r Rectangle) error {
	if r.X0 < 0 || r.X0 >= r.X1 || r.X1 >= c.Width ||
		r.Y0 < 0 || r.Y0 >= r.Y1 || r.Y1 >= c.Height {
		return fmt.Errorf("%w: %+v on %dx%d", ErrRectangleOutOfBounds, r, c.Width, c.Height)
	}

	for y := r.Y0; y < r.Y1; y++ {
		c.Set(r.X0, y, 1)
		c.Set(r.X1, y, 1)
	}

	for x := r.X0; x < r.X1; x++ {
		c.Set(x, r.Y0, 1)
	}

	for x := r.X0; x <= r.X1; x++ {
		c.Set(x, r.Y1, 1)
	}

	return nil
}
