package rectgp

import (
	"encoding/binary"
	"fmt"
	"math"
)

//////
// Const, vars, types.
//////

// Kernel measures the similarity of two flattened images.
//
// Rows go through Prepare once and every pairwise comparison uses the
// prepared form, so expensive per-row work (patch extraction) is not repeated
// for each pair. The prepared form never depends on the lengthscale: a row
// prepared by one kernel can be compared by any kernel returned from
// WithLengthscale.
type Kernel interface {
	// Name identifies the kernel in reports.
	Name() string

	// Lengthscale returns the current lengthscale.
	Lengthscale() float64

	// WithLengthscale returns a copy of the kernel with a new lengthscale.
	WithLengthscale(l float64) Kernel

	// Accepts returns an error wrapping ErrShapeMismatch when rows of the
	// given width cannot be compared by this kernel.
	Accepts(features int) error

	// Prepare converts a row into the form consumed by Compare. The row must
	// have passed Accepts.
	Prepare(x []float64) any

	// Compare returns k(a, b) for two prepared rows.
	Compare(a, b any) float64
}

// SquaredExponential is the RBF kernel
//
//	k(x1, x2) = variance * exp(-sum((x1 - x2)^2) / (2 * length^2))
type SquaredExponential struct {
	Variance float64
	Length   float64
}

// Convolutional averages a base SquaredExponential kernel over every pair of
// PatchWidth x PatchHeight patches taken at stride 1 from two
// ImageWidth x ImageHeight images:
//
//	k(x1, x2) = 1/P^2 * sum_p sum_q base(x1[p], x2[q])
//
// Identical patches are grouped before comparison, which keeps sparse binary
// images such as rectangle outlines cheap.
type Convolutional struct {
	Base        SquaredExponential
	ImageWidth  int
	ImageHeight int
	PatchWidth  int
	PatchHeight int
}

// patchSet is the prepared form of a row for the Convolutional kernel.
type patchSet struct {
	patches [][]float64
	counts  []float64
	total   float64
}

//////
// Factory.
//////

// NewSquaredExponential returns an RBF kernel.
func NewSquaredExponential(variance, length float64) SquaredExponential {
	return SquaredExponential{Variance: variance, Length: length}
}

// NewConvolutional returns a convolutional kernel over image-shaped rows.
func NewConvolutional(base SquaredExponential, imageWidth, imageHeight, patchWidth, patchHeight int) (Convolutional, error) {
	if patchWidth < 1 || patchHeight < 1 || patchWidth > imageWidth || patchHeight > imageHeight {
		return Convolutional{}, fmt.Errorf("patch %dx%d does not fit image %dx%d",
			patchWidth, patchHeight, imageWidth, imageHeight)
	}

	return Convolutional{
		Base:        base,
		ImageWidth:  imageWidth,
		ImageHeight: imageHeight,
		PatchWidth:  patchWidth,
		PatchHeight: patchHeight,
	}, nil
}

//////
// Methods.
//////

// Name implements Kernel.
func (k SquaredExponential) Name() string { return "squared-exponential" }

// Lengthscale implements Kernel.
func (k SquaredExponential) Lengthscale() float64 { return k.Length }

// WithLengthscale implements Kernel.
func (k SquaredExponential) WithLengthscale(l float64) Kernel {
	k.Length = l

	return k
}

// Accepts implements Kernel. Any non-empty row is accepted.
func (k SquaredExponential) Accepts(features int) error {
	if features < 1 {
		return fmt.Errorf("%w: rows must have at least one feature", ErrShapeMismatch)
	}

	return nil
}

// Prepare implements Kernel. The row is used as is.
func (k SquaredExponential) Prepare(x []float64) any { return x }

// Compare implements Kernel.
func (k SquaredExponential) Compare(a, b any) float64 {
	return k.Eval(a.([]float64), b.([]float64))
}

// Eval returns k(x1, x2). It panics if the inputs have different lengths.
func (k SquaredExponential) Eval(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range x1 {
		diff := x1[i] - x2[i]

		sum += diff * diff
	}

	return k.Variance * math.Exp(-sum/(2*k.Length*k.Length))
}

// Name implements Kernel.
func (k Convolutional) Name() string { return "convolutional" }

// Lengthscale implements Kernel.
func (k Convolutional) Lengthscale() float64 { return k.Base.Length }

// WithLengthscale implements Kernel.
func (k Convolutional) WithLengthscale(l float64) Kernel {
	k.Base.Length = l

	return k
}

// NumPatches returns the number of patches per image.
func (k Convolutional) NumPatches() int {
	return (k.ImageWidth - k.PatchWidth + 1) * (k.ImageHeight - k.PatchHeight + 1)
}

// Accepts implements Kernel. Rows must hold exactly one
// ImageWidth x ImageHeight image.
func (k Convolutional) Accepts(features int) error {
	if features != k.ImageWidth*k.ImageHeight {
		return fmt.Errorf("%w: row has %d pixels, kernel expects %dx%d",
			ErrShapeMismatch, features, k.ImageWidth, k.ImageHeight)
	}

	return nil
}

// Prepare implements Kernel. It extracts every patch and groups identical
// ones. It panics on a row rejected by Accepts.
func (k Convolutional) Prepare(x []float64) any {
	if len(x) != k.ImageWidth*k.ImageHeight {
		panic(fmt.Sprintf("row has %d pixels, kernel expects %dx%d", len(x), k.ImageWidth, k.ImageHeight))
	}

	set := &patchSet{}
	index := make(map[string]int)
	key := make([]byte, 0, 8*k.PatchWidth*k.PatchHeight)

	for py := 0; py+k.PatchHeight <= k.ImageHeight; py++ {
		for px := 0; px+k.PatchWidth <= k.ImageWidth; px++ {
			patch := make([]float64, 0, k.PatchWidth*k.PatchHeight)
			key = key[:0]

			for row := py; row < py+k.PatchHeight; row++ {
				for col := px; col < px+k.PatchWidth; col++ {
					v := x[row*k.ImageWidth+col]
					patch = append(patch, v)
					key = binary.LittleEndian.AppendUint64(key, math.Float64bits(v))
				}
			}

			set.total++

			if i, ok := index[string(key)]; ok {
				set.counts[i]++

				continue
			}

			index[string(key)] = len(set.patches)
			set.patches = append(set.patches, patch)
			set.counts = append(set.counts, 1)
		}
	}

	return set
}

// Compare implements Kernel.
func (k Convolutional) Compare(a, b any) float64 {
	pa, pb := a.(*patchSet), b.(*patchSet)

	var sum float64

	for i, p := range pa.patches {
		for j, q := range pb.patches {
			sum += pa.counts[i] * pb.counts[j] * k.Base.Eval(p, q)
		}
	}

	return sum / (pa.total * pb.total)
}

// Eval returns k(x1, x2) for two raw rows.
func (k Convolutional) Eval(x1, x2 []float64) float64 {
	return k.Compare(k.Prepare(x1), k.Prepare(x2))
}
