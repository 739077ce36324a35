package rectgp

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

//////
// Const, vars, types.
//////

// Generator produces labeled canvases of hollow rectangles for the tall vs.
// wide task. It owns its random source, so a Generator must not be shared
// between goroutines; create one per goroutine instead.
type Generator struct {
	cfg    GeneratorConfig
	rng    *rand.Rand
	logger *zap.Logger
}

//////
// Factory.
//////

// DefaultGeneratorConfig returns a 28x28 configuration with the standard
// retry budget and the accept-degenerate exhaustion policy.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Width:       28,
		Height:      28,
		MaxAttempts: DefaultMaxAttempts,
		Exhaustion:  AcceptDegenerate,
		Seed:        1,
	}
}

// NewGenerator validates cfg and returns a Generator seeded with cfg.Seed.
//
// Parameters:
// - cfg: Canvas size, retry budget, exhaustion policy, seed and logger
//
// Returns:
// - *Generator: Ready to produce datasets
// - error: ErrCanvasTooSmall if Width or Height is below MinCanvasSize,
//   ErrInvalidAttempts if MaxAttempts is below 1
//
// Usage example:
//
//	cfg := DefaultGeneratorConfig()
//	cfg.Width, cfg.Height, cfg.Seed = 14, 14, 7
//	cfg.Exhaustion = FailOnExhaustion
//
//	gen, err := NewGenerator(cfg)
//	if err != nil {
//	    return err
//	}
//
// Important notes:
// - A nil Logger discards the exhaustion warning
// - Two generators built from the same cfg produce identical datasets
//
// Thread safety:
// - The returned Generator owns its random source and is not safe for
//   concurrent use.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Width < MinCanvasSize || cfg.Height < MinCanvasSize {
		return nil, fmt.Errorf("%w: got %dx%d", ErrCanvasTooSmall, cfg.Width, cfg.Height)
	}

	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAttempts, cfg.MaxAttempts)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger,
	}, nil
}

//////
// Methods.
//////

// Config returns the configuration the generator was built with.
func (g *Generator) Config() GeneratorConfig {
	return g.cfg
}

// SampleRandomRectangle draws a random rectangle onto c and returns it.
//
// Corners are drawn uniformly with inclusive bounds:
//
//	x0 in [1, W-4]    x1 in [x0+2, W-2]
//	y0 in [1, H-4]    y1 in [y0+2, H-2]
//
// so the outline never reaches row 0, row H-1, column 0 or column W-1, and
// both sides are at least 2 pixels long. c must be at least MinCanvasSize in
// each dimension.
func (g *Generator) SampleRandomRectangle(c *Canvas) (Rectangle, error) {
	if c.Width < MinCanvasSize || c.Height < MinCanvasSize {
		return Rectangle{}, fmt.Errorf("%w: got %dx%d", ErrCanvasTooSmall, c.Width, c.Height)
	}

	x0 := 1 + g.rng.Intn(c.Width-4)
	y0 := 1 + g.rng.Intn(c.Height-4)
	x1 := x0 + 2 + g.rng.Intn(c.Width-3-x0)
	y1 := y0 + 2 + g.rng.Intn(c.Height-3-y0)

	r := Rectangle{X0: x0, Y0: y0, X1: x1, Y1: y1}

	if err := DrawRectangle(c, r); err != nil {
		return Rectangle{}, err
	}

	return r, nil
}

// GenerateDataset produces n samples.
//
// Each slot runs a reject-and-resample loop of at most MaxAttempts draws:
// a square is discarded (the canvas is zeroed) and redrawn, anything else is
// kept with label 1 when taller than wide and 0 otherwise. When every attempt
// is a square the configured ExhaustionPolicy decides between keeping an
// all-zero, label-0 slot and failing with ErrRetriesExhausted.
//
// The result always has n rows of Width*Height pixels, whatever the number of
// attempts consumed.
func (g *Generator) GenerateDataset(n int) (*Dataset, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeCount, n)
	}

	w, h := g.cfg.Width, g.cfg.Height
	if !fitsInMemory(n, w, h) {
		return nil, fmt.Errorf("%w: %d samples of %dx%d", ErrDatasetTooLarge, n, w, h)
	}

	ds := newDataset(n, w, h)
	canvas := NewCanvas(w, h)

	for i := 0; i < n; i++ {
		canvas.Reset()

		r, accepted, attempts, err := g.sampleSlot(canvas)
		ds.Attempts += attempts

		if err != nil {
			return nil, err
		}

		if !accepted {
			if g.cfg.Exhaustion == FailOnExhaustion {
				return nil, fmt.Errorf("slot %d: %w after %d attempts", i, ErrRetriesExhausted, attempts)
			}

			g.logger.Warn("retries exhausted, keeping degenerate sample",
				zap.Int("slot", i),
				zap.Int("attempts", attempts),
				zap.Int("width", w),
				zap.Int("height", h),
			)

			ds.Exhausted = append(ds.Exhausted, i)
			ds.set(i, canvas.Pix, 0, Rectangle{})

			continue
		}

		ds.set(i, canvas.Pix, r.Label(), r)
	}

	g.logger.Debug("dataset generated",
		zap.Int("samples", n),
		zap.Int("attempts", ds.Attempts),
		zap.Int("exhausted", len(ds.Exhausted)),
	)

	return ds, nil
}

// sampleSlot runs the bounded retry loop for one slot. On exhaustion the
// canvas is left all-zero and accepted is false.
func (g *Generator) sampleSlot(canvas *Canvas) (r Rectangle, accepted bool, attempts int, err error) {
	for attempts < g.cfg.MaxAttempts {
		attempts++

		r, err = g.SampleRandomRectangle(canvas)
		if err != nil {
			return Rectangle{}, false, attempts, err
		}

		if !r.IsSquare() {
			return r, true, attempts, nil
		}

		canvas.Reset()
	}

	return Rectangle{}, false, attempts, nil
}

//////
// Exported functionalities.
//////

// GenerateDataset builds a Generator with the default retry budget and the
// accept-degenerate policy, then produces n samples of width x height.
//
// Usage example:
//
//	ds, err := GenerateDataset(100, 28, 28, 42)
//	X, Y, err := ds.Tensors() // (100, 784) and (100, 1)
func GenerateDataset(n, width, height int, seed int64) (*Dataset, error) {
	cfg := DefaultGeneratorConfig()
	cfg.Width = width
	cfg.Height = height
	cfg.Seed = seed

	g, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	return g.GenerateDataset(n)
}
