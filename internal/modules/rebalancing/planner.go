// Package rebalancing turns a target allocation into an ordered list of
// trade actions against the current portfolio weights.
package rebalancing

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/config"
	"github.com/aristath/risk-engine/internal/domain"
)

// Planner builds rebalancing proposals. It is stateless; a single instance
// serves concurrent requests.
type Planner struct {
	defaults config.RebalanceDefaults
	log      zerolog.Logger
}

// NewPlanner creates a rebalancing planner.
func NewPlanner(defaults config.RebalanceDefaults, log zerolog.Logger) *Planner {
	return &Planner{
		defaults: defaults,
		log:      log.With().Str("component", "rebalancing").Logger(),
	}
}

// Input is the snapshot a proposal is planned against. Prices map symbols
// to their current price; symbols missing a price get a zero quantity
// delta but still receive a weight-level action.
type Input struct {
	Holdings   []domain.Holding
	TotalValue float64
	Targets    map[string]float64
	Prices     map[string]float64
	Cost       CostModel
}

// Plan validates the target allocation and produces one action per symbol
// present in either the current holdings or the targets, ordered by
// absolute weight delta descending. Ties order by symbol so output is
// deterministic.
func (p *Planner) Plan(in Input) ([]domain.RebalancingAction, error) {
	if err := p.validateTargets(in.Targets); err != nil {
		return nil, err
	}

	current := currentWeights(in.Holdings, in.TotalValue)

	symbols := make(map[string]struct{}, len(current)+len(in.Targets))
	for sym := range current {
		symbols[sym] = struct{}{}
	}
	for sym := range in.Targets {
		symbols[sym] = struct{}{}
	}

	cost := in.Cost
	if cost == nil {
		cost = FlatPlusProportional{Fixed: p.defaults.CostFixed, Percent: p.defaults.CostPercent}
	}

	minTrade := 0.0
	if p.defaults.MaxCostRatio > 0 {
		minTrade = MinTradeAmount(p.defaults.CostFixed, p.defaults.CostPercent, p.defaults.MaxCostRatio)
	}

	actions := make([]domain.RebalancingAction, 0, len(symbols))
	for sym := range symbols {
		cw := current[sym]
		tw := in.Targets[sym]
		delta := tw - cw

		action := domain.ActionHold
		switch {
		case delta > p.defaults.WeightTolerance:
			action = domain.ActionBuy
		case delta < -p.defaults.WeightTolerance:
			action = domain.ActionSell
		}

		var quantityDelta, estimatedCost float64
		if action != domain.ActionHold {
			tradeValue := math.Abs(delta) * in.TotalValue
			if tradeValue < minTrade {
				// Fees would eat too much of a trade this small.
				action = domain.ActionHold
			} else {
				if price := in.Prices[sym]; price > 0 {
					quantityDelta = delta * in.TotalValue / price
				}
				estimatedCost = cost.EstimateCost(tradeValue)
			}
		}

		actions = append(actions, domain.RebalancingAction{
			Symbol:        sym,
			Action:        action,
			CurrentWeight: cw,
			TargetWeight:  tw,
			QuantityDelta: quantityDelta,
			EstimatedCost: estimatedCost,
		})
	}

	sort.Slice(actions, func(i, j int) bool {
		di := math.Abs(actions[i].TargetWeight - actions[i].CurrentWeight)
		dj := math.Abs(actions[j].TargetWeight - actions[j].CurrentWeight)
		if di != dj {
			return di > dj
		}
		return actions[i].Symbol < actions[j].Symbol
	})

	p.log.Debug().
		Int("num_actions", len(actions)).
		Float64("total_value", in.TotalValue).
		Msg("Planned rebalancing proposal")

	return actions, nil
}

// validateTargets rejects allocations that do not sum to 1 within the
// configured tolerance or contain negative weights.
func (p *Planner) validateTargets(targets map[string]float64) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: no target allocations given", domain.ErrInvalidTargetAllocation)
	}
	sum := 0.0
	for sym, w := range targets {
		if w < 0 {
			return fmt.Errorf("%w: negative weight %v for %s",
				domain.ErrInvalidTargetAllocation, w, sym)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > p.defaults.TargetSumTolerance {
		return fmt.Errorf("%w: target weights sum to %v, want 1 within %v",
			domain.ErrInvalidTargetAllocation, sum, p.defaults.TargetSumTolerance)
	}
	return nil
}

func currentWeights(holdings []domain.Holding, totalValue float64) map[string]float64 {
	weights := make(map[string]float64, len(holdings))
	if totalValue <= 0 {
		return weights
	}
	for _, h := range holdings {
		weights[h.Symbol] = h.MarketValue / totalValue
	}
	return weights
}
