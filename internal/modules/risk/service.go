// Package risk composes the statistics layer into portfolio-level risk
// reports and stress-test scenarios.
package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/config"
	"github.com/aristath/risk-engine/internal/domain"
	"github.com/aristath/risk-engine/internal/modules/statistics"
	"github.com/aristath/risk-engine/pkg/formulas"
)

// Service produces RiskMetrics snapshots and stress-test results.
// It is stateless: every computation is a pure function of the supplied
// holdings and return-series snapshot.
type Service struct {
	stats    *statistics.Calculator
	defaults config.RiskDefaults
	log      zerolog.Logger
}

// NewService creates a new risk metrics calculator.
func NewService(stats *statistics.Calculator, defaults config.RiskDefaults, log zerolog.Logger) *Service {
	return &Service{
		stats:    stats,
		defaults: defaults,
		log:      log.With().Str("component", "risk").Logger(),
	}
}

// SnapshotInput bundles everything a risk snapshot is computed from.
type SnapshotInput struct {
	PortfolioID      string
	Holdings         []domain.Holding
	TotalValue       float64
	PortfolioReturns domain.ReturnSeries
	BenchmarkReturns domain.ReturnSeries
	SymbolReturns    []domain.ReturnSeries
	Sectors          map[string]string  // symbol -> sector
	LiquidityScores  map[string]float64 // symbol -> [0,100]
}

// Snapshot computes a full RiskMetrics report.
//
// Zero holdings is a defined neutral state, not an error: the snapshot is
// returned fully populated with zero values (liquidity at the configured
// neutral midpoint). Insufficient return history, by contrast, surfaces as
// ErrInsufficientData.
func (s *Service) Snapshot(in SnapshotInput) (domain.RiskMetrics, error) {
	now := time.Now().UTC()
	metrics := domain.RiskMetrics{
		PortfolioID:       in.PortfolioID,
		Date:              now.Format("2006-01-02"),
		CorrelationMatrix: map[string]map[string]float64{},
		SectorAllocation:  map[string]float64{},
		CreatedAt:         now,
	}

	if len(in.Holdings) == 0 {
		metrics.Recommendations = []string{healthyMessage}
		// With no positions there is nothing to score; liquidity sits at the
		// configured neutral midpoint rather than implying perfect liquidity.
		metrics.LiquidityRisk = 100.0 - s.defaults.NeutralLiquidityScore
		s.log.Debug().Str("portfolio_id", in.PortfolioID).Msg("No holdings, returning neutral risk metrics")
		return metrics, nil
	}

	weights := Weights(in.Holdings, in.TotalValue)

	returns := in.PortfolioReturns.Values()
	var95, err := s.stats.VaR(returns, 0.95, 1, in.TotalValue)
	if err != nil {
		return domain.RiskMetrics{}, fmt.Errorf("var95: %w", err)
	}
	var99, err := s.stats.VaR(returns, 0.99, 1, in.TotalValue)
	if err != nil {
		return domain.RiskMetrics{}, fmt.Errorf("var99: %w", err)
	}

	metrics.VaR95 = var95.VaR
	metrics.VaR99 = var99.VaR
	metrics.ExpectedShortfall = var95.ExpectedShortfall
	metrics.MonteCarloShortfall = formulas.MonteCarloShortfall(
		formulas.Mean(returns),
		formulas.StdDev(returns),
		s.defaults.MonteCarloSims,
		0.95,
		0,
	) * in.TotalValue

	metrics.Beta, metrics.Alpha = s.stats.BetaAlpha(in.PortfolioReturns, in.BenchmarkReturns)

	if len(in.SymbolReturns) > 1 {
		corr, err := s.stats.CorrelationMatrix(in.SymbolReturns)
		if err != nil {
			return domain.RiskMetrics{}, fmt.Errorf("correlation matrix: %w", err)
		}
		metrics.CorrelationMatrix = corr
	}

	annualizedVol := formulas.AnnualizedVolatility(returns)

	metrics.ConcentrationRisk = ConcentrationRisk(weights)
	metrics.LiquidityRisk = s.LiquidityRisk(weights, in.LiquidityScores)
	metrics.SectorAllocation = SectorAllocation(in.Holdings, in.TotalValue, in.Sectors)
	metrics.Recommendations = Recommendations(snapshotInputs{
		Concentration: metrics.ConcentrationRisk,
		Liquidity:     metrics.LiquidityRisk,
		Beta:          metrics.Beta,
		Volatility:    annualizedVol,
	})

	s.log.Info().
		Str("portfolio_id", in.PortfolioID).
		Float64("var_95", metrics.VaR95).
		Float64("concentration", metrics.ConcentrationRisk).
		Float64("beta", metrics.Beta).
		Float64("annualized_volatility", annualizedVol).
		Float64("annualized_return", formulas.AnnualizedReturn(returns)).
		Msg("Computed risk metrics snapshot")

	return metrics, nil
}

// Weights derives position weights from holdings and total portfolio value.
func Weights(holdings []domain.Holding, totalValue float64) map[string]float64 {
	weights := make(map[string]float64, len(holdings))
	if totalValue <= 0 {
		return weights
	}
	for _, h := range holdings {
		weights[h.Symbol] = h.MarketValue / totalValue
	}
	return weights
}

// ConcentrationRisk is the Herfindahl-Hirschman Index of position weights,
// scaled into [0,100]. A single-asset portfolio scores 100; empty holdings
// score 0.
func ConcentrationRisk(weights map[string]float64) float64 {
	hhi := 0.0
	for _, w := range weights {
		hhi += w * w
	}
	score := hhi * 100.0
	return math.Max(0, math.Min(100, score))
}

// LiquidityRisk is the inverted weighted average of per-symbol liquidity
// scores. Symbols with no supplied score assume the configured neutral
// midpoint; an empty portfolio returns zero risk handled by Snapshot.
func (s *Service) LiquidityRisk(weights map[string]float64, scores map[string]float64) float64 {
	if len(weights) == 0 {
		return 100.0 - s.defaults.NeutralLiquidityScore
	}

	weighted := 0.0
	totalWeight := 0.0
	for symbol, w := range weights {
		score, ok := scores[symbol]
		if !ok {
			score = s.defaults.NeutralLiquidityScore
		}
		weighted += w * score
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 100.0 - s.defaults.NeutralLiquidityScore
	}

	risk := 100.0 - weighted/totalWeight
	return math.Max(0, math.Min(100, risk))
}

// SectorAllocation groups holding market values by sector and expresses each
// group as a percent of total value. Unmapped symbols fall under "Unknown".
func SectorAllocation(holdings []domain.Holding, totalValue float64, sectors map[string]string) map[string]float64 {
	allocation := make(map[string]float64)
	if totalValue <= 0 {
		return allocation
	}
	for _, h := range holdings {
		sector, ok := sectors[h.Symbol]
		if !ok || sector == "" {
			sector = "Unknown"
		}
		allocation[sector] += h.MarketValue / totalValue * 100.0
	}
	return allocation
}

// Recommendations evaluates the ordered rule table and returns every
// matching message, or the healthy message when none fire.
func Recommendations(in snapshotInputs) []string {
	var out []string
	for _, r := range recommendationRules {
		if r.matches(in) {
			out = append(out, r.message)
		}
	}
	if len(out) == 0 {
		out = append(out, healthyMessage)
	}
	return out
}

// StressTest applies each scenario's shock to the holdings and reports the
// portfolio impact, the worst-hit holding, and a recovery-time estimate.
//
// The recovery heuristic is linear in the shock magnitude
// (|shock| * RecoveryDaysPerShock); it is a tunable constant, not a
// calibrated model. Zero holdings yields an empty result set.
func (s *Service) StressTest(
	holdings []domain.Holding,
	totalValue float64,
	scenarios []domain.StressScenario,
	sectors map[string]string,
) []domain.StressTestResult {
	results := make([]domain.StressTestResult, 0, len(scenarios))
	if len(holdings) == 0 {
		return results
	}

	for _, scenario := range scenarios {
		var portfolioImpact float64
		worst := domain.StressImpact{}
		worstAbs := -1.0

		for _, h := range holdings {
			sensitivity := 1.0
			if len(scenario.SectorSensitivity) > 0 {
				sector := sectors[h.Symbol]
				if v, ok := scenario.SectorSensitivity[sector]; ok {
					sensitivity = v
				}
			}

			impact := h.MarketValue * scenario.ShockFactor * sensitivity
			portfolioImpact += impact

			abs := math.Abs(impact)
			if abs > worstAbs || (abs == worstAbs && h.Symbol < worst.Symbol) {
				worstAbs = abs
				worst = domain.StressImpact{
					Symbol: h.Symbol,
					Impact: impact,
				}
				if h.MarketValue > 0 {
					worst.ImpactPercent = impact / h.MarketValue * 100.0
				}
			}
		}

		result := domain.StressTestResult{
			Scenario:         scenario.Name,
			PortfolioImpact:  portfolioImpact,
			WorstHolding:     worst,
			RecoveryTimeDays: int(math.Round(math.Abs(scenario.ShockFactor) * s.defaults.RecoveryDaysPerShock)),
		}
		if totalValue > 0 {
			result.ImpactPercent = portfolioImpact / totalValue * 100.0
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Scenario < results[j].Scenario
	})

	s.log.Info().
		Int("scenarios", len(scenarios)).
		Int("holdings", len(holdings)).
		Msg("Completed stress test")

	return results
}
