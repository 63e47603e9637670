package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// TailIndex returns the index into the ascending-sorted return series that
// marks the VaR observation for the given confidence level:
// floor((1-confidence) * n).
func TailIndex(n int, confidence float64) int {
	idx := int(math.Floor((1.0 - confidence) * float64(n)))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// HistoricalVaR returns the magnitude of the return at the VaR index of the
// ascending-sorted series, as a positive fraction. The caller scales by
// portfolio value and horizon.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := sortedCopy(returns)
	return math.Abs(sorted[TailIndex(len(sorted), confidence)])
}

// HistoricalShortfall returns the magnitude of the mean tail loss at the
// given confidence level, as a positive fraction. The tail slice includes
// the VaR observation itself, so the shortfall magnitude is never below the
// VaR magnitude for the same inputs.
func HistoricalShortfall(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := sortedCopy(returns)
	idx := TailIndex(len(sorted), confidence)

	tail := sorted[:idx+1]
	sum := 0.0
	for _, r := range tail {
		sum += r
	}
	return math.Abs(sum / float64(len(tail)))
}

// HorizonScale converts a one-day risk figure to a multi-day horizon using
// the square-root-of-time rule.
func HorizonScale(horizonDays int) float64 {
	if horizonDays <= 1 {
		return 1
	}
	return math.Sqrt(float64(horizonDays))
}

// MonteCarloShortfall estimates expected shortfall by sampling portfolio
// returns from a normal distribution with the given mean and standard
// deviation. Used as a diagnostic cross-check next to the historical figure.
func MonteCarloShortfall(mu, sigma float64, numSimulations int, confidence float64, seed uint64) float64 {
	if numSimulations <= 0 || sigma <= 0 {
		return math.Abs(math.Min(mu, 0))
	}

	normal := distuv.Normal{
		Mu:    mu,
		Sigma: sigma,
		Src:   newSource(seed),
	}

	simulated := make([]float64, numSimulations)
	for i := range simulated {
		simulated[i] = normal.Rand()
	}

	return HistoricalShortfall(simulated, confidence)
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
