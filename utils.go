package rectgp

import "math"

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

// meanOf returns the arithmetic mean of xs, or 0 for an empty slice.
func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	var sum float64
	for _, x := range xs {
		sum += x
	}

	return sum / float64(len(xs))
}

// clampProbability keeps p inside [minProbability, 1-minProbability] so its
// logarithm stays finite.
func clampProbability(p float64) float64 {
	return math.Min(math.Max(p, minProbability), 1-minProbability)
}

// bernoulliLogLikelihood returns log p(y | p) for y in {0, 1}.
func bernoulliLogLikelihood(y, p float64) float64 {
	p = clampProbability(p)

	if y >= 0.5 {
		return math.Log(p)
	}

	return math.Log(1 - p)
}
