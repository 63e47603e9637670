package rebalancing

// CostModel estimates the transaction cost of a trade of the given value.
// Callers may supply their own broker-specific model.
type CostModel interface {
	EstimateCost(tradeValue float64) float64
}

// FlatPlusProportional charges a fixed fee plus a fraction of trade value,
// the common discount-broker structure.
type FlatPlusProportional struct {
	Fixed   float64
	Percent float64
}

func (m FlatPlusProportional) EstimateCost(tradeValue float64) float64 {
	if tradeValue <= 0 {
		return 0
	}
	return m.Fixed + tradeValue*m.Percent
}

// MinTradeAmount solves for the trade size at which the cost-to-trade
// ratio falls to maxCostRatio:
//
//	(fixed + trade*percent) / trade = maxCostRatio
//	trade = fixed / (maxCostRatio - percent)
//
// Proposals below this size are not worth executing. When the
// proportional fee alone exceeds the acceptable ratio no trade size
// qualifies, so a high floor is returned.
func MinTradeAmount(fixed, percent, maxCostRatio float64) float64 {
	denominator := maxCostRatio - percent
	if denominator <= 0 {
		return 1000.0
	}
	return fixed / denominator
}
