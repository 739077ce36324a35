package rectgp

import (
	"fmt"
	"math"

	"gorgonia.org/tensor"
)

// Dataset is an immutable set of samples produced by a Generator. Row i of X
// is the flattened canvas of sample i; Y[i] is its label.
type Dataset struct {
	// Width and Height of every canvas.
	Width  int
	Height int

	// X holds Len()*Width*Height pixels, row-major per sample.
	X []float64

	// Y holds one label per sample, 1 (tall) or 0 (wide or degenerate).
	Y []float64

	// Rectangles holds the box drawn for each sample. Degenerate slots hold
	// the zero Rectangle.
	Rectangles []Rectangle

	// Attempts is the total number of draws consumed across all slots.
	Attempts int

	// Exhausted lists the slots that ran out of attempts and were kept as
	// all-zero, label-0 samples.
	Exhausted []int
}

// maxPixels bounds the length of Dataset.X. It stays below the largest
// []float64 the runtime can allocate on both 32 and 64-bit platforms.
var maxPixels = func() uint64 {
	limit := uint64(math.MaxInt >> 3)
	if limit > 1<<45 {
		limit = 1 << 45
	}

	return limit
}()

// fitsInMemory reports whether n canvases of width x height fit in one
// Dataset.X slice.
func fitsInMemory(n, width, height int) bool {
	w, h := uint64(width), uint64(height)
	if w > maxPixels/h {
		return false
	}

	return uint64(n) <= maxPixels/(w*h)
}

func newDataset(n, width, height int) *Dataset {
	return &Dataset{
		Width:      width,
		Height:     height,
		X:          make([]float64, n*width*height),
		Y:          make([]float64, n),
		Rectangles: make([]Rectangle, n),
	}
}

func (d *Dataset) set(i int, pix []float64, label float64, r Rectangle) {
	copy(d.Row(i), pix)
	d.Y[i] = label
	d.Rectangles[i] = r
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Y)
}

// Features returns the number of pixels per sample.
func (d *Dataset) Features() int {
	return d.Width * d.Height
}

// Shape returns the (rows, cols) shape of the feature matrix.
func (d *Dataset) Shape() (rows, cols int) {
	return d.Len(), d.Features()
}

// Row returns sample i's pixels. The slice aliases the dataset and must not
// be modified.
func (d *Dataset) Row(i int) []float64 {
	f := d.Features()

	return d.X[i*f : (i+1)*f]
}

// Sample returns a copy of sample i.
func (d *Dataset) Sample(i int) Sample {
	pix := make([]float64, d.Features())
	copy(pix, d.Row(i))

	return Sample{Pixels: pix, Label: d.Y[i], Rectangle: d.Rectangles[i]}
}

// Canvas rebuilds sample i as a Canvas.
func (d *Dataset) Canvas(i int) *Canvas {
	c := NewCanvas(d.Width, d.Height)
	copy(c.Pix, d.Row(i))

	return c
}

// Labels returns a copy of the label vector, shape (N,).
func (d *Dataset) Labels() []float64 {
	out := make([]float64, len(d.Y))
	copy(out, d.Y)

	return out
}

// Balance returns the fraction of samples labeled 1.
func (d *Dataset) Balance() float64 {
	if d.Len() == 0 {
		return 0
	}

	var tall float64
	for _, y := range d.Y {
		tall += y
	}

	return tall / float64(d.Len())
}

// Tensors returns the dataset as float64 tensors: X with shape
// (N, Width*Height) and Y with shape (N, 1). Both are backed by copies, so
// consumers may modify them freely.
func (d *Dataset) Tensors() (X, Y *tensor.Dense, err error) {
	if d.Len() == 0 {
		return nil, nil, ErrEmptyDataset
	}

	xs := make([]float64, len(d.X))
	copy(xs, d.X)

	X = tensor.New(tensor.WithShape(d.Len(), d.Features()), tensor.WithBacking(xs))
	Y = tensor.New(tensor.WithShape(d.Len(), 1), tensor.WithBacking(d.Labels()))

	return X, Y, nil
}

// String implements fmt.Stringer.
func (d *Dataset) String() string {
	rows, cols := d.Shape()

	return fmt.Sprintf("Dataset(%dx%d canvases, X=(%d, %d), tall=%.2f, attempts=%d, exhausted=%d)",
		d.Width, d.Height, rows, cols, d.Balance(), d.Attempts, len(d.Exhausted))
}
