package rectgp

import "errors"

//////
// Errors.
//////

var (
	// ErrCanvasTooSmall is returned when a canvas is narrower or shorter than
	// MinCanvasSize. Below that size the corner ranges used to sample a
	// rectangle are empty.
	ErrCanvasTooSmall = errors.New("canvas must be at least 5x5")

	// ErrNegativeCount is returned when a negative number of samples is
	// requested.
	ErrNegativeCount = errors.New("sample count must not be negative")

	// ErrDatasetTooLarge is returned when the requested samples would hold
	// more pixels than a single slice can address.
	ErrDatasetTooLarge = errors.New("dataset too large")

	// ErrInvalidAttempts is returned when MaxAttempts is lower than 1.
	ErrInvalidAttempts = errors.New("max attempts must be at least 1")

	// ErrRetriesExhausted is returned under FailOnExhaustion when every
	// attempt for a slot produced a square.
	ErrRetriesExhausted = errors.New("retries exhausted: every attempt produced a square")

	// ErrRectangleOutOfBounds is returned when a rectangle does not satisfy
	// 0 <= x0 < x1 < W and 0 <= y0 < y1 < H.
	ErrRectangleOutOfBounds = errors.New("rectangle out of canvas bounds")

	// ErrShapeMismatch is returned when tensors handed to a classifier do not
	// have compatible shapes.
	ErrShapeMismatch = errors.New("tensor shape mismatch")

	// ErrEmptyDataset is returned when tensors are requested from a dataset
	// without samples.
	ErrEmptyDataset = errors.New("dataset has no samples")

	// ErrNotFitted is returned by Predict before Fit succeeded.
	ErrNotFitted = errors.New("classifier has not been fitted")
)
