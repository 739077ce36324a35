package rectgp

import "math"

//////
// Available acquisition functions for Bayesian optimization.
// Each one scores a candidate from the surrogate's prediction; the optimizer
// evaluates the candidate with the LOWEST score next.
//////

// UCB implements the (lower) confidence bound acquisition function.
//
// How it works:
// - Subtracts a multiple of the predicted standard deviation from the mean
// - Lower values are better (the objective is minimized)
// - The Beta parameter controls the trade-off between exploration and exploitation
//
// Example:
//
//	value := UCB(0.5, 0.2, AcquisitionParams{Beta: 2.0})
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean - params.Beta*math.Sqrt(math.Max(variance, 0))
}

// ProbabilityOfImprovement scores a point by the probability that it does NOT
// improve on BestSoFar by at least Xi, so that lower is better.
//
// When to use:
// - When you want to be conservative in exploring new points
// - In problems where being "probably better" is more important than "how much better"
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(math.Max(variance, 0))
	gap := params.BestSoFar - params.Xi - mean

	if sigma < 1e-12 {
		if gap > 0 {
			return 0
		}

		return 1
	}

	return 1 - normalCDF(gap/sigma)
}

// ExpectedImprovement returns the negated expected improvement over
// BestSoFar - Xi, so that lower is better.
//
// When to use:
// - Most commonly used acquisition function
// - In problems where the magnitude of improvement matters
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(math.Max(variance, 0))
	gap := params.BestSoFar - params.Xi - mean

	if sigma < 1e-12 {
		return -math.Max(gap, 0)
	}

	z := gap / sigma

	return -(gap*normalCDF(z) + sigma*normalPDF(z))
}

// ThompsonSampling draws one sample from the predicted distribution.
//
// Warning:
// - params.RandomState must not be nil
// - Don't share RandomState between different optimization runs.
func ThompsonSampling(mean, variance float64, params AcquisitionParams) float64 {
	return mean + math.Sqrt(math.Max(variance, 0))*params.RandomState.NormFloat64()
}

// AcquisitionByName maps a configuration string to an acquisition function.
// Known names are "ucb", "pi", "ei" and "thompson".
func AcquisitionByName(name string) (AcquisitionFunc, bool) {
	switch name {
	case "", "ucb":
		return UCB, true
	case "pi":
		return ProbabilityOfImprovement, true
	case "ei":
		return ExpectedImprovement, true
	case "thompson":
		return ThompsonSampling, true
	default:
		return nil, false
	}
}
