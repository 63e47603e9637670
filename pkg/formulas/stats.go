// Package formulas provides the reusable statistical primitives of the
// risk engine. All functions are pure and operate on plain float slices.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization base for daily return series.
const TradingDaysPerYear = 252.0

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns x sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// Correlation calculates the Pearson correlation coefficient between two
// datasets of equal length. Returns false when the correlation is undefined:
// fewer than 2 observations, mismatched lengths, or zero variance on either side.
func Correlation(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	if Variance(x) == 0 || Variance(y) == 0 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// Covariance calculates the sample covariance between two datasets of equal
// length. Returns false with fewer than 2 overlapping observations.
func Covariance(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	c := stat.Covariance(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, false
	}
	return c, true
}

// AnnualizedReturn calculates the compound annual growth rate from a series
// of daily returns: ((1+r1)*(1+r2)*...*(1+rN))^(252/N) - 1.
// Very short series (< 3 observations) return the simple cumulative return
// to avoid extreme annualization.
func AnnualizedReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	cumulative := 1.0
	for _, r := range returns {
		cumulative *= (1 + r)
	}

	numPeriods := float64(len(returns))
	if numPeriods < 3 {
		return cumulative - 1
	}

	years := numPeriods / TradingDaysPerYear
	return math.Pow(cumulative, 1.0/years) - 1
}

// PortfolioVariance computes w' * Sigma * w for a weight vector and a
// covariance matrix in the same symbol order.
func PortfolioVariance(weights []float64, cov [][]float64) float64 {
	var variance float64
	for i := range weights {
		for j := range weights {
			variance += weights[i] * weights[j] * cov[i][j]
		}
	}
	return variance
}

// PortfolioReturn computes w' * mu.
func PortfolioReturn(weights, mu []float64) float64 {
	var r float64
	for i := range weights {
		r += weights[i] * mu[i]
	}
	return r
}
