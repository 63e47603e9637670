package optimization

import (
	"context"
	"math"

	"github.com/aristath/risk-engine/internal/domain"
	"github.com/aristath/risk-engine/pkg/formulas"
)

// Frontier holds the sampled efficient frontier. Partial is set when the
// context expired before all requested points were solved; the points
// solved so far are still returned.
type Frontier struct {
	Points  []domain.FrontierPoint
	Partial bool
}

// EfficientFrontier samples numPoints portfolios between the minimum-risk
// portfolio and the maximum-return portfolio by solving a variance-
// minimization problem at linearly spaced target returns. Infeasible
// targets are skipped; the resulting curve is made monotonic (risk never
// decreases as return increases) by dropping dominated points.
func (o *Optimizer) EfficientFrontier(
	ctx context.Context,
	in Input,
	c domain.Constraints,
	numPoints int,
) (Frontier, error) {
	if err := ValidateConstraints(len(in.Symbols), c); err != nil {
		return Frontier{}, err
	}
	if numPoints < 2 {
		numPoints = 2
	}
	if numPoints > o.solver.MaxFrontierPoints {
		numPoints = o.solver.MaxFrontierPoints
	}

	// Anchor the return range at the two extreme portfolios.
	minRiskWeights, _, err := o.solvePenalty(in, c, minVarianceObjective(in, c))
	if err != nil {
		return Frontier{}, err
	}
	maxRetWeights := o.maxReturnWeights(in, c)

	lowReturn := formulas.PortfolioReturn(minRiskWeights, in.Mu)
	highReturn := formulas.PortfolioReturn(maxRetWeights, in.Mu)
	if highReturn < lowReturn {
		lowReturn, highReturn = highReturn, lowReturn
	}

	points := make([]domain.FrontierPoint, 0, numPoints)
	partial := false

	step := (highReturn - lowReturn) / float64(numPoints-1)
	for i := 0; i < numPoints; i++ {
		if err := ctx.Err(); err != nil {
			partial = true
			break
		}

		target := lowReturn + float64(i)*step

		weights, converged, solveErr := o.solvePenalty(in, c, targetReturnObjective(in, c, target))
		if solveErr != nil || !converged {
			// Target unreachable within the box constraints; skip it.
			continue
		}

		achieved := formulas.PortfolioReturn(weights, in.Mu)
		if math.Abs(achieved-target) > frontierTargetTolerance(lowReturn, highReturn) {
			continue
		}

		risk := math.Sqrt(math.Max(formulas.PortfolioVariance(weights, in.Cov), 0))
		sharpe := 0.0
		if risk > 0 {
			sharpe = (achieved - c.RiskFreeRate) / risk
		}

		allocations := make([]domain.Allocation, len(in.Symbols))
		for j, sym := range in.Symbols {
			allocations[j] = domain.Allocation{Symbol: sym, Weight: weights[j]}
		}

		points = append(points, domain.FrontierPoint{
			Risk:        risk,
			Return:      achieved,
			SharpeRatio: sharpe,
			Allocations: allocations,
		})
	}

	points = pruneDominated(points)

	o.log.Info().
		Int("requested_points", numPoints).
		Int("solved_points", len(points)).
		Bool("partial", partial).
		Msg("Sampled efficient frontier")

	return Frontier{Points: points, Partial: partial}, nil
}

// frontierTargetTolerance is the acceptable miss between a target return
// and the solved portfolio's return, scaled to the frontier's range.
func frontierTargetTolerance(low, high float64) float64 {
	span := high - low
	if span <= 0 {
		return 1e-4
	}
	return math.Max(span*0.05, 1e-4)
}

// pruneDominated enforces frontier monotonicity: points are sorted by
// return ascending (they already are, from the target sweep) and any point
// with lower return but higher risk than a later point is dropped.
func pruneDominated(points []domain.FrontierPoint) []domain.FrontierPoint {
	if len(points) <= 1 {
		return points
	}
	kept := make([]domain.FrontierPoint, 0, len(points))
	for _, p := range points {
		for len(kept) > 0 {
			last := kept[len(kept)-1]
			if last.Risk >= p.Risk && last.Return <= p.Return {
				kept = kept[:len(kept)-1]
				continue
			}
			break
		}
		if len(kept) > 0 && p.Risk < kept[len(kept)-1].Risk {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
