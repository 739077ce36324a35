package rectgp

import (
	"math"
	"sync"
)

//////
// Const, vars, types.
//////

// surrogate is a thread-safe kernel regression model used by the optimizer
// to predict the objective at untested points. Inputs are expected in the
// unit cube (see toUnit), so a single kernel width works for every search
// space.
//
// Thread safety:
// - All fields are protected by the RWMutex
// - Uses RLock for Predict
// - Uses Lock for Update and SetSigma.
type surrogate struct {
	// mu protects access to all fields
	mu sync.RWMutex

	// X stores the observed input points, one slice per observation.
	X [][]float64

	// Y stores the objective values at each point in X.
	Y []float64

	// kernel measures similarity between points. Its Length is the kernel
	// width: larger values give smoother interpolation.
	kernel SquaredExponential
}

//////
// Methods.
//////

// Predict estimates the objective and its uncertainty at x.
//
// The mean is the kernel-weighted average of the observations. The variance
// is the spread of the observations scaled by how far x is from the nearest
// one: it is 0 on an observed point and approaches the observed variance far
// away from every observation.
//
// Returns (0, 1) if no observations exist.
func (s *surrogate) Predict(x []float64) (mean, variance float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.X) == 0 {
		return 0, 1
	}

	var sumK, sumKY, maxK float64

	for i := range s.X {
		k := s.kernel.Eval(x, s.X[i])

		sumK += k
		sumKY += k * s.Y[i]
		maxK = math.Max(maxK, k)
	}

	spread := s.spread()

	if sumK < 1e-12 {
		return meanOf(s.Y), spread
	}

	return sumKY / sumK, math.Max(0, 1-maxK) * spread
}

// spread returns the sample variance of Y, or 1 with fewer than two
// observations. Caller must hold the lock.
func (s *surrogate) spread() float64 {
	if len(s.Y) < 2 {
		return 1
	}

	m := meanOf(s.Y)

	var ss float64
	for _, y := range s.Y {
		ss += (y - m) * (y - m)
	}

	v := ss / float64(len(s.Y)-1)
	if v == 0 {
		return 1
	}

	return v
}

// Update adds a new observation. x is copied.
func (s *surrogate) Update(x []float64, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newX := make([]float64, len(x))
	copy(newX, x)

	s.X = append(s.X, newX)
	s.Y = append(s.Y, y)
}

// SetSigma updates the kernel width. No validation of sigma value (caller's
// responsibility). OptimizeHyperparameters only passes positive widths.
func (s *surrogate) SetSigma(sigma float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kernel.Length = sigma
}

//////
// Factory.
//////

// newSurrogate returns an empty model with kernel width
// DefaultSurrogateWidth, suited to inputs in the unit cube.
func newSurrogate() *surrogate {
	return &surrogate{
		kernel: NewSquaredExponential(1, DefaultSurrogateWidth),
	}
}
