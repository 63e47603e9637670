// Package optimization implements the objective-driven allocation solvers:
// equal weight, max return, min risk, max Sharpe, risk parity, and the
// efficient-frontier sampler. Quadratic objectives are solved with gonum's
// optimize package using a penalty formulation for the equality constraints
// and projection for the box constraints.
package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/risk-engine/internal/config"
	"github.com/aristath/risk-engine/internal/domain"
	"github.com/aristath/risk-engine/pkg/formulas"
)

// Optimizer solves allocation problems. It holds no state between calls;
// concurrent solves are safe.
type Optimizer struct {
	solver config.SolverDefaults
	log    zerolog.Logger
}

// NewOptimizer creates a new allocation optimizer.
func NewOptimizer(solver config.SolverDefaults, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		solver: solver,
		log:    log.With().Str("component", "optimizer").Logger(),
	}
}

// ValidateConstraints checks box-constraint feasibility before any solve:
// minWeight*n <= 1 <= maxWeight*n must hold or no weight vector can sum to 1.
func ValidateConstraints(n int, c domain.Constraints) error {
	if n == 0 {
		return fmt.Errorf("%w: no assets to allocate", domain.ErrInfeasibleConstraints)
	}
	if c.MinWeight < 0 || c.MaxWeight <= 0 || c.MinWeight > c.MaxWeight {
		return fmt.Errorf("%w: invalid weight bounds [%v, %v]",
			domain.ErrInfeasibleConstraints, c.MinWeight, c.MaxWeight)
	}
	nf := float64(n)
	if c.MinWeight*nf > 1.0+weightEpsilon {
		return fmt.Errorf("%w: minWeight %v with %d assets requires total %v > 1",
			domain.ErrInfeasibleConstraints, c.MinWeight, n, c.MinWeight*nf)
	}
	if c.MaxWeight*nf < 1.0-weightEpsilon {
		return fmt.Errorf("%w: maxWeight %v with %d assets caps total at %v < 1",
			domain.ErrInfeasibleConstraints, c.MaxWeight, n, c.MaxWeight*nf)
	}
	return nil
}

// Optimize dispatches on the objective type and returns an optimized
// portfolio honoring the box constraints. Risk tolerance and time horizon
// are recorded on the result; they shape the inputs upstream (lookback,
// candidate set), not the solve itself.
func (o *Optimizer) Optimize(
	ctx context.Context,
	in Input,
	objective domain.OptimizationObjective,
	c domain.Constraints,
) (domain.OptimizedPortfolio, error) {
	n := len(in.Symbols)
	if err := ValidateConstraints(n, c); err != nil {
		return domain.OptimizedPortfolio{}, err
	}

	started := time.Now()

	var weights []float64
	var converged, partial bool
	var err error

	switch objective.Type {
	case domain.ObjectiveEqualWeight:
		weights = equalWeights(n, c)
		converged = true
	case domain.ObjectiveMaxReturn:
		weights = o.maxReturnWeights(in, c)
		converged = true
	case domain.ObjectiveMinRisk:
		weights, converged, err = o.solvePenalty(in, c, minVarianceObjective(in, c))
	case domain.ObjectiveMaxSharpe:
		weights, converged, err = o.solvePenalty(in, c, maxSharpeObjective(in, c))
	case domain.ObjectiveRiskParity:
		var rp domain.RiskParityResult
		rp, err = o.RiskParity(ctx, in.Cov, in.Symbols, c)
		if err != nil {
			return domain.OptimizedPortfolio{}, err
		}
		weights = make([]float64, n)
		for i, sym := range in.Symbols {
			weights[i] = rp.Weights[sym]
		}
		converged = rp.Converged
		partial = !rp.Converged
	default:
		return domain.OptimizedPortfolio{}, fmt.Errorf("unknown objective type: %s", objective.Type)
	}
	if err != nil {
		return domain.OptimizedPortfolio{}, err
	}

	result := o.buildResult(in, objective, c, weights)
	result.Converged = converged
	result.Partial = partial

	o.log.Info().
		Str("objective", string(objective.Type)).
		Int("num_assets", n).
		Bool("converged", converged).
		Dur("elapsed", time.Since(started)).
		Float64("expected_return", result.ExpectedReturn).
		Float64("expected_risk", result.ExpectedRisk).
		Msg("Solved allocation")

	if !converged && objective.Type != domain.ObjectiveRiskParity {
		// Best iterate is attached; the caller decides whether to use it.
		return result, fmt.Errorf("%w: objective %s", domain.ErrDidNotConverge, objective.Type)
	}
	return result, nil
}

// buildResult assembles the portfolio from a solved weight vector.
func (o *Optimizer) buildResult(
	in Input,
	objective domain.OptimizationObjective,
	c domain.Constraints,
	weights []float64,
) domain.OptimizedPortfolio {
	allocations := make([]domain.Allocation, len(in.Symbols))
	for i, sym := range in.Symbols {
		allocations[i] = domain.Allocation{Symbol: sym, Weight: weights[i]}
	}

	expReturn := formulas.PortfolioReturn(weights, in.Mu)
	expRisk := math.Sqrt(math.Max(formulas.PortfolioVariance(weights, in.Cov), 0))

	sharpe := 0.0
	if expRisk > 0 {
		sharpe = (expReturn - c.RiskFreeRate) / expRisk
	}

	return domain.OptimizedPortfolio{
		Objective:      objective,
		Allocations:    allocations,
		ExpectedReturn: expReturn,
		ExpectedRisk:   expRisk,
		SharpeRatio:    sharpe,
		CreatedAt:      time.Now().UTC(),
	}
}

// equalWeights assigns 1/n, clips into the box, and renormalizes.
func equalWeights(n int, c domain.Constraints) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}
	return normalizeWithBounds(weights, c.MinWeight, c.MaxWeight)
}

// maxReturnWeights fills weight onto the highest expected-return assets up
// to maxWeight each, after giving every asset its minWeight floor. Ties
// break by symbol order for determinism. Sector caps bound the cumulative
// weight a sector may absorb.
func (o *Optimizer) maxReturnWeights(in Input, c domain.Constraints) []float64 {
	n := len(in.Symbols)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if in.Mu[order[a]] != in.Mu[order[b]] {
			return in.Mu[order[a]] > in.Mu[order[b]]
		}
		return in.Symbols[order[a]] < in.Symbols[order[b]]
	})

	weights := make([]float64, n)
	sectorUsed := make(map[string]float64)
	remaining := 1.0
	for i := range weights {
		weights[i] = c.MinWeight
		remaining -= c.MinWeight
		if sector := in.Sectors[in.Symbols[i]]; sector != "" {
			sectorUsed[sector] += c.MinWeight
		}
	}

	for _, idx := range order {
		if remaining <= weightEpsilon {
			break
		}
		add := math.Min(c.MaxWeight-weights[idx], remaining)

		if len(c.SectorCaps) > 0 {
			if sector := in.Sectors[in.Symbols[idx]]; sector != "" {
				if cap, ok := c.SectorCaps[sector]; ok {
					add = math.Min(add, cap-sectorUsed[sector])
				}
			}
		}
		if add <= 0 {
			continue
		}

		weights[idx] += add
		remaining -= add
		if sector := in.Sectors[in.Symbols[idx]]; sector != "" {
			sectorUsed[sector] += add
		}
	}

	return normalizeWithBounds(weights, c.MinWeight, c.MaxWeight)
}

// problemSpec is a penalty-form objective with an analytic gradient.
type problemSpec struct {
	fn   func(x []float64) float64
	grad func(grad, x []float64)
}

// solvePenalty runs a bounded numerical solve: BFGS from the equal-weight
// start, falling back to Nelder-Mead when BFGS fails to converge. The
// returned weights always satisfy the box and sum constraints; converged
// reports whether the solver reached an accepted status.
func (o *Optimizer) solvePenalty(in Input, c domain.Constraints, spec problemSpec) ([]float64, bool, error) {
	n := len(in.Symbols)

	problem := optimize.Problem{Func: spec.fn, Grad: spec.grad}
	settings := &optimize.Settings{MajorIterations: 1000}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	accepted := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	best := initial
	converged := false

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err == nil && accepted[result.Status] {
		best = result.X
		converged = true
	} else {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		if err != nil {
			return normalizeWithBounds(clipToBounds(best, c), c.MinWeight, c.MaxWeight), false,
				fmt.Errorf("%w: %v", domain.ErrDidNotConverge, err)
		}
		best = result.X
		converged = accepted[result.Status]
	}

	weights := normalizeWithBounds(clipToBounds(best, c), c.MinWeight, c.MaxWeight)
	return weights, converged, nil
}

// minVarianceObjective minimizes w'Sigma*w with penalties on the sum
// constraint and any sector caps.
func minVarianceObjective(in Input, c domain.Constraints) problemSpec {
	n := len(in.Symbols)
	return problemSpec{
		fn: func(x []float64) float64 {
			xp := clipToBounds(x, c)
			obj := formulas.PortfolioVariance(xp, in.Cov)
			obj += sumPenalty(xp)
			obj += sectorPenalty(xp, in, c)
			return obj
		},
		grad: func(grad, x []float64) {
			xp := clipToBounds(x, c)
			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * in.Cov[i][j] * xp[j]
				}
			}
			addSumPenaltyGradient(grad, xp)
		},
	}
}

// maxSharpeObjective minimizes the negative Sharpe ratio. The ratio is not
// globally concave under box constraints, so the solve is a constrained
// numerical search rather than a closed-form tangency portfolio.
func maxSharpeObjective(in Input, c domain.Constraints) problemSpec {
	n := len(in.Symbols)
	return problemSpec{
		fn: func(x []float64) float64 {
			xp := clipToBounds(x, c)
			excess := formulas.PortfolioReturn(xp, in.Mu) - c.RiskFreeRate
			stdDev := math.Sqrt(math.Max(formulas.PortfolioVariance(xp, in.Cov), 1e-10))

			obj := -excess / stdDev
			obj += sumPenalty(xp)
			obj += sectorPenalty(xp, in, c)
			obj += maxRiskPenalty(xp, in, c)
			return obj
		},
		grad: func(grad, x []float64) {
			xp := clipToBounds(x, c)
			excess := formulas.PortfolioReturn(xp, in.Mu) - c.RiskFreeRate
			variance := math.Max(formulas.PortfolioVariance(xp, in.Cov), 1e-10)
			stdDev := math.Sqrt(variance)

			for i := 0; i < n; i++ {
				var dVar float64
				for j := 0; j < n; j++ {
					dVar += 2 * in.Cov[i][j] * xp[j]
				}
				grad[i] = -in.Mu[i]/stdDev + excess*dVar/(2*stdDev*variance)
			}
			addSumPenaltyGradient(grad, xp)
		},
	}
}

// targetReturnObjective minimizes variance subject to hitting a target
// return, used by the efficient-frontier sampler.
func targetReturnObjective(in Input, c domain.Constraints, targetReturn float64) problemSpec {
	n := len(in.Symbols)
	return problemSpec{
		fn: func(x []float64) float64 {
			xp := clipToBounds(x, c)
			obj := formulas.PortfolioVariance(xp, in.Cov)
			obj += sumPenalty(xp)
			obj += sectorPenalty(xp, in, c)

			ret := formulas.PortfolioReturn(xp, in.Mu)
			obj += penaltyWeight * (ret - targetReturn) * (ret - targetReturn)
			return obj
		},
		grad: func(grad, x []float64) {
			xp := clipToBounds(x, c)
			ret := formulas.PortfolioReturn(xp, in.Mu)
			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * in.Cov[i][j] * xp[j]
				}
				grad[i] += 2 * penaltyWeight * (ret - targetReturn) * in.Mu[i]
			}
			addSumPenaltyGradient(grad, xp)
		},
	}
}

// sumPenalty is the soft constraint (sum(w) - 1)^2.
func sumPenalty(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return penaltyWeight * (sum - 1.0) * (sum - 1.0)
}

func addSumPenaltyGradient(grad, x []float64) {
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	for i := range grad {
		grad[i] += 2 * penaltyWeight * (sum - 1.0)
	}
}

// sectorPenalty penalizes cumulative sector weight above its cap.
func sectorPenalty(x []float64, in Input, c domain.Constraints) float64 {
	if len(c.SectorCaps) == 0 || len(in.Sectors) == 0 {
		return 0
	}
	sectorWeights := make(map[string]float64)
	for i, sym := range in.Symbols {
		if sector := in.Sectors[sym]; sector != "" {
			sectorWeights[sector] += x[i]
		}
	}
	var penalty float64
	for sector, cap := range c.SectorCaps {
		if w := sectorWeights[sector]; w > cap {
			penalty += penaltyWeight * (w - cap) * (w - cap)
		}
	}
	return penalty
}

// maxRiskPenalty penalizes portfolio variance above the optional risk cap.
func maxRiskPenalty(x []float64, in Input, c domain.Constraints) float64 {
	if c.MaxRisk == nil {
		return 0
	}
	maxVar := (*c.MaxRisk) * (*c.MaxRisk)
	if v := formulas.PortfolioVariance(x, in.Cov); v > maxVar {
		return penaltyWeight * (v - maxVar) * (v - maxVar)
	}
	return 0
}

// clipToBounds projects a candidate onto the box constraints.
func clipToBounds(x []float64, c domain.Constraints) []float64 {
	proj := make([]float64, len(x))
	for i, v := range x {
		proj[i] = math.Max(c.MinWeight, math.Min(c.MaxWeight, v))
	}
	return proj
}

// normalizeWithBounds scales weights to sum to exactly 1 while keeping each
// inside [min, max]. The slack from clipped coordinates is redistributed
// across the unsaturated ones; with feasible bounds this terminates with
// both invariants satisfied.
func normalizeWithBounds(weights []float64, min, max float64) []float64 {
	n := len(weights)
	out := make([]float64, n)
	for i, w := range weights {
		out[i] = math.Max(min, math.Min(max, w))
	}

	for iter := 0; iter < 100; iter++ {
		sum := 0.0
		for _, w := range out {
			sum += w
		}
		deficit := 1.0 - sum
		if math.Abs(deficit) <= weightEpsilon/10 {
			break
		}

		// Coordinates that can still move in the deficit's direction.
		movable := 0
		for _, w := range out {
			if (deficit > 0 && w < max-1e-15) || (deficit < 0 && w > min+1e-15) {
				movable++
			}
		}
		if movable == 0 {
			break
		}

		share := deficit / float64(movable)
		for i, w := range out {
			if deficit > 0 && w < max {
				out[i] = math.Min(max, w+share)
			} else if deficit < 0 && w > min {
				out[i] = math.Max(min, w+share)
			}
		}
	}

	return out
}
