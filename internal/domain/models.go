// Package domain holds the shared models of the risk and optimization engine.
// All values are plain snapshots: computations never mutate them in place.
package domain

import (
	"sort"
	"time"
)

// Holding is an immutable position snapshot supplied by the portfolio store.
type Holding struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AverageCost float64 `json:"average_cost"`
	MarketValue float64 `json:"market_value"` // quantity * current price
}

// ReturnPoint is a single observation of a daily return series.
type ReturnPoint struct {
	Date        string  `json:"date"` // YYYY-MM-DD
	DailyReturn float64 `json:"daily_return"`
}

// ReturnSeries is an ordered daily return history for one symbol or benchmark.
// Invariants: sorted ascending by date, no duplicate dates. Gaps are allowed;
// series are combined by aligning on date, never by index.
type ReturnSeries struct {
	Symbol string        `json:"symbol"`
	Points []ReturnPoint `json:"points"`
}

// Sort orders the points ascending by date and drops duplicate dates,
// keeping the last observation for a date.
func (s *ReturnSeries) Sort() {
	sort.SliceStable(s.Points, func(i, j int) bool {
		return s.Points[i].Date < s.Points[j].Date
	})
	deduped := s.Points[:0]
	for i, p := range s.Points {
		if i+1 < len(s.Points) && s.Points[i+1].Date == p.Date {
			continue
		}
		deduped = append(deduped, p)
	}
	s.Points = deduped
}

// Values returns the return observations in date order.
func (s ReturnSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.DailyReturn
	}
	return out
}

// RiskMetrics is a portfolio-level risk snapshot, persisted keyed by
// (portfolio_id, date). A later computation for the same key replaces the row.
type RiskMetrics struct {
	PortfolioID         string                        `json:"portfolio_id"`
	Date                string                        `json:"date"`
	VaR95               float64                       `json:"var_95"`
	VaR99               float64                       `json:"var_99"`
	ExpectedShortfall   float64                       `json:"expected_shortfall"`
	// MonteCarloShortfall is a parametric cross-check of ExpectedShortfall
	// sampled from the portfolio's fitted normal; diagnostic only.
	MonteCarloShortfall float64                       `json:"monte_carlo_shortfall,omitempty"`
	Beta                float64                       `json:"beta"`
	Alpha               float64                       `json:"alpha"`
	CorrelationMatrix   map[string]map[string]float64 `json:"correlation_matrix"`
	SectorAllocation    map[string]float64            `json:"sector_allocation"`  // percent of total value
	ConcentrationRisk   float64                       `json:"concentration_risk"` // HHI scaled to [0,100]
	LiquidityRisk       float64                       `json:"liquidity_risk"`     // [0,100]
	Recommendations     []string                      `json:"recommendations"`
	CreatedAt           time.Time                     `json:"created_at"`
}

// StressScenario describes a uniform negative return shock, optionally
// modulated per sector through a sensitivity weight.
type StressScenario struct {
	Name              string             `json:"name"`
	ShockFactor       float64            `json:"shock_factor"` // e.g. -0.30 for a 30% drawdown
	SectorSensitivity map[string]float64 `json:"sector_sensitivity,omitempty"`
}

// StressImpact is the contribution of one holding to a stress scenario.
type StressImpact struct {
	Symbol        string  `json:"symbol"`
	Impact        float64 `json:"impact"`
	ImpactPercent float64 `json:"impact_percent"`
}

// StressTestResult is the portfolio-level outcome of one scenario.
type StressTestResult struct {
	Scenario         string       `json:"scenario"`
	PortfolioImpact  float64      `json:"portfolio_impact"`
	ImpactPercent    float64      `json:"impact_percent"`
	WorstHolding     StressImpact `json:"worst_holding"`
	RecoveryTimeDays int          `json:"recovery_time_days"`
}

// ObjectiveType selects the allocation optimizer's objective.
type ObjectiveType string

const (
	ObjectiveMaxReturn   ObjectiveType = "MAX_RETURN"
	ObjectiveMinRisk     ObjectiveType = "MIN_RISK"
	ObjectiveMaxSharpe   ObjectiveType = "MAX_SHARPE"
	ObjectiveRiskParity  ObjectiveType = "RISK_PARITY"
	ObjectiveEqualWeight ObjectiveType = "EQUAL_WEIGHT"
)

// RiskTolerance expresses the caller's risk appetite.
type RiskTolerance string

const (
	ToleranceConservative RiskTolerance = "CONSERVATIVE"
	ToleranceModerate     RiskTolerance = "MODERATE"
	ToleranceAggressive   RiskTolerance = "AGGRESSIVE"
)

// TimeHorizon expresses the investment horizon.
type TimeHorizon string

const (
	HorizonShort  TimeHorizon = "SHORT"
	HorizonMedium TimeHorizon = "MEDIUM"
	HorizonLong   TimeHorizon = "LONG"
)

// OptimizationObjective bundles the optimizer request parameters.
type OptimizationObjective struct {
	Type          ObjectiveType `json:"type"`
	RiskTolerance RiskTolerance `json:"risk_tolerance"`
	TimeHorizon   TimeHorizon   `json:"time_horizon"`
}

// Constraints are box and risk constraints for the optimizer.
// Feasibility requires minWeight*n <= 1 <= maxWeight*n.
type Constraints struct {
	MinWeight    float64            `json:"min_weight"`
	MaxWeight    float64            `json:"max_weight"`
	MaxRisk      *float64           `json:"max_risk,omitempty"`
	RiskFreeRate float64            `json:"risk_free_rate"`
	SectorCaps   map[string]float64 `json:"sector_caps,omitempty"`
}

// Allocation is one symbol's target weight.
type Allocation struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// OptimizedPortfolio is the optimizer output.
// Weights sum to 1 within 1e-6 and respect the box constraints.
type OptimizedPortfolio struct {
	PortfolioID    string                `json:"portfolio_id"`
	Objective      OptimizationObjective `json:"objective"`
	Allocations    []Allocation          `json:"allocations"`
	ExpectedReturn float64               `json:"expected_return"`
	ExpectedRisk   float64               `json:"expected_risk"`
	SharpeRatio    float64               `json:"sharpe_ratio"`
	Converged      bool                  `json:"converged"`
	Partial        bool                  `json:"partial"`
	CreatedAt      time.Time             `json:"created_at"`
}

// FrontierPoint is one solved portfolio on the efficient frontier.
type FrontierPoint struct {
	Risk        float64      `json:"risk"`
	Return      float64      `json:"return"`
	SharpeRatio float64      `json:"sharpe_ratio"`
	Allocations []Allocation `json:"allocations"`
}

// TradeAction classifies a rebalancing action.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
	ActionHold TradeAction = "HOLD"
)

// RebalancingAction is one step of a rebalancing proposal, ordered by
// absolute weight delta descending.
type RebalancingAction struct {
	Symbol        string      `json:"symbol"`
	Action        TradeAction `json:"action"`
	CurrentWeight float64     `json:"current_weight"`
	TargetWeight  float64     `json:"target_weight"`
	QuantityDelta float64     `json:"quantity_delta"`
	EstimatedCost float64     `json:"estimated_cost"`
}

// VaRResult pairs a Value-at-Risk figure with its expected shortfall.
type VaRResult struct {
	VaR               float64 `json:"var"`
	ExpectedShortfall float64 `json:"expected_shortfall"`
	Confidence        float64 `json:"confidence"`
	HorizonDays       int     `json:"horizon_days"`
	Observations      int     `json:"observations"`
}

// RiskParityResult is the outcome of a risk-parity solve.
type RiskParityResult struct {
	Weights           map[string]float64 `json:"weights"`
	RiskContributions map[string]float64 `json:"risk_contributions"`
	Converged         bool               `json:"converged"`
	Iterations        int                `json:"iterations"`
}
