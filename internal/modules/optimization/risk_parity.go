package optimization

import (
	"context"
	"fmt"
	"math"

	"github.com/aristath/risk-engine/internal/domain"
)

// RiskParity solves for weights where every asset contributes equally to
// portfolio risk. The iteration rescales each weight inversely to its
// marginal risk contribution and renormalizes, which converges for
// positive-definite covariance matrices. A non-convergent solve returns
// the last iterate with Converged=false rather than an error; the caller
// decides whether an approximate parity allocation is acceptable.
//
// The context is checked between iterations so long solves can be
// cancelled cooperatively.
func (o *Optimizer) RiskParity(
	ctx context.Context,
	cov [][]float64,
	symbols []string,
	c domain.Constraints,
) (domain.RiskParityResult, error) {
	n := len(symbols)
	if err := ValidateConstraints(n, c); err != nil {
		return domain.RiskParityResult{}, err
	}
	if len(cov) != n {
		return domain.RiskParityResult{}, fmt.Errorf(
			"covariance matrix is %dx%d, want %dx%d", len(cov), len(cov), n, n)
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}

	converged := false
	iterations := 0

	for iter := 0; iter < o.solver.RiskParityMaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return domain.RiskParityResult{}, err
		}
		iterations = iter + 1

		contributions := riskContributions(weights, cov)

		totalRisk := 0.0
		for _, rc := range contributions {
			totalRisk += rc
		}
		if totalRisk <= 0 {
			// Degenerate covariance: every contribution is zero, so equal
			// weights already satisfy parity trivially.
			converged = true
			break
		}

		target := totalRisk / float64(n)
		maxDeviation := 0.0
		for _, rc := range contributions {
			if dev := math.Abs(rc-target) / totalRisk; dev > maxDeviation {
				maxDeviation = dev
			}
		}
		if maxDeviation < o.solver.RiskParityTolerance {
			converged = true
			break
		}

		// Shift weight away from assets contributing above target.
		next := make([]float64, n)
		sum := 0.0
		for i := range weights {
			if contributions[i] > 0 {
				next[i] = weights[i] * math.Sqrt(target/contributions[i])
			} else {
				next[i] = weights[i]
			}
			sum += next[i]
		}
		for i := range next {
			next[i] /= sum
		}
		weights = next
	}

	weights = normalizeWithBounds(weights, c.MinWeight, c.MaxWeight)

	contributions := riskContributions(weights, cov)
	weightMap := make(map[string]float64, n)
	contribMap := make(map[string]float64, n)
	totalRisk := 0.0
	for _, rc := range contributions {
		totalRisk += rc
	}
	for i, sym := range symbols {
		weightMap[sym] = weights[i]
		if totalRisk > 0 {
			contribMap[sym] = contributions[i] / totalRisk
		} else {
			contribMap[sym] = 1.0 / float64(n)
		}
	}

	o.log.Debug().
		Int("iterations", iterations).
		Bool("converged", converged).
		Int("num_assets", n).
		Msg("Risk parity solve finished")

	return domain.RiskParityResult{
		Weights:           weightMap,
		RiskContributions: contribMap,
		Converged:         converged,
		Iterations:        iterations,
	}, nil
}

// riskContributions computes each asset's contribution w_i * (Sigma*w)_i
// to portfolio variance. Contributions sum to the portfolio variance.
func riskContributions(weights []float64, cov [][]float64) []float64 {
	n := len(weights)
	contributions := make([]float64, n)
	for i := 0; i < n; i++ {
		var marginal float64
		for j := 0; j < n; j++ {
			marginal += cov[i][j] * weights[j]
		}
		contributions[i] = weights[i] * marginal
	}
	return contributions
}
