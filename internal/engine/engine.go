// Package engine is the facade over the computation modules. It pulls
// portfolio snapshots from the store, delegates to the statistics, risk,
// optimization, and rebalancing modules, persists the resulting reports,
// and propagates typed errors unchanged to the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/config"
	"github.com/aristath/risk-engine/internal/domain"
	"github.com/aristath/risk-engine/internal/modules/optimization"
	"github.com/aristath/risk-engine/internal/modules/rebalancing"
	"github.com/aristath/risk-engine/internal/modules/risk"
	"github.com/aristath/risk-engine/internal/modules/statistics"
	"github.com/aristath/risk-engine/pkg/formulas"
)

// defaultLookbackDays bounds how much return history a computation pulls:
// one trading year.
const defaultLookbackDays = 252

// Store is the portfolio state the engine reads.
type Store interface {
	GetHoldings(ctx context.Context, portfolioID string) ([]domain.Holding, error)
	GetTotalValue(ctx context.Context, portfolioID string) (float64, error)
	GetHistoricalReturns(ctx context.Context, portfolioID string, days int) (domain.ReturnSeries, error)
	GetSymbolReturns(ctx context.Context, symbol string, days int) (domain.ReturnSeries, error)
	GetBenchmarkReturns(ctx context.Context, benchmarkID string, days int) (domain.ReturnSeries, error)
}

// MetadataSource serves per-symbol sector, liquidity, and price lookups.
type MetadataSource interface {
	GetSector(ctx context.Context, symbol string) (string, error)
	GetLiquidityScore(ctx context.Context, symbol string) (float64, error)
	GetLastPrice(ctx context.Context, symbol string) (float64, error)
}

// ReportSink persists computed reports with idempotent per-day upserts.
type ReportSink interface {
	SaveRiskMetrics(ctx context.Context, m domain.RiskMetrics) error
	SaveOptimizationResult(ctx context.Context, date string, p domain.OptimizedPortfolio) error
}

// Engine wires the computation modules to their collaborators. It is
// stateless between requests; concurrent calls are safe.
type Engine struct {
	store     Store
	metadata  MetadataSource
	reports   ReportSink
	stats     *statistics.Calculator
	risk      *risk.Service
	optimizer *optimization.Optimizer
	planner   *rebalancing.Planner
	cfg       config.Config
	log       zerolog.Logger
}

// New creates the engine facade.
func New(
	store Store,
	metadata MetadataSource,
	reports ReportSink,
	cfg config.Config,
	log zerolog.Logger,
) *Engine {
	stats := statistics.NewCalculator(cfg.Risk.MinVaRObservations, log)
	return &Engine{
		store:     store,
		metadata:  metadata,
		reports:   reports,
		stats:     stats,
		risk:      risk.NewService(stats, cfg.Risk, log),
		optimizer: optimization.NewOptimizer(cfg.Solver, log),
		planner:   rebalancing.NewPlanner(cfg.Rebalance, log),
		cfg:       cfg,
		log:       log.With().Str("component", "engine").Logger(),
	}
}

// AnalyzePortfolioRisk computes and persists a full risk snapshot for the
// portfolio. A portfolio with zero holdings yields the defined neutral
// metrics rather than an error.
func (e *Engine) AnalyzePortfolioRisk(ctx context.Context, portfolioID string) (domain.RiskMetrics, error) {
	snapshot, err := e.loadRiskInput(ctx, portfolioID)
	if err != nil {
		return domain.RiskMetrics{}, err
	}

	metrics, err := e.risk.Snapshot(snapshot)
	if err != nil {
		return domain.RiskMetrics{}, err
	}

	if err := e.reports.SaveRiskMetrics(ctx, metrics); err != nil {
		return domain.RiskMetrics{}, fmt.Errorf("failed to persist risk metrics: %w", err)
	}
	return metrics, nil
}

// RunStressTest applies the given scenarios to the portfolio's current
// holdings. Empty holdings yield an empty result list.
func (e *Engine) RunStressTest(ctx context.Context, portfolioID string, scenarios []domain.StressScenario) ([]domain.StressTestResult, error) {
	holdings, err := e.store.GetHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	totalValue, err := e.store.GetTotalValue(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	sectors, err := e.sectors(ctx, holdings)
	if err != nil {
		return nil, err
	}
	return e.risk.StressTest(holdings, totalValue, scenarios, sectors), nil
}

// CalculateVaR computes historical VaR and expected shortfall at the given
// confidence over the given horizon. Fails with ErrInsufficientData when
// the portfolio's return history is too short.
func (e *Engine) CalculateVaR(ctx context.Context, portfolioID string, confidence float64, horizonDays int) (domain.VaRResult, error) {
	totalValue, err := e.store.GetTotalValue(ctx, portfolioID)
	if err != nil {
		return domain.VaRResult{}, err
	}
	returns, err := e.store.GetHistoricalReturns(ctx, portfolioID, defaultLookbackDays)
	if err != nil {
		return domain.VaRResult{}, err
	}
	return e.stats.VaR(returns.Values(), confidence, horizonDays, totalValue)
}

// OptimizePortfolio solves the requested allocation objective over the
// portfolio's current holdings and persists the result. A non-convergent
// solve still returns the best iterate found, flagged partial, alongside
// ErrDidNotConverge.
func (e *Engine) OptimizePortfolio(
	ctx context.Context,
	portfolioID string,
	objective domain.OptimizationObjective,
	constraints domain.Constraints,
) (domain.OptimizedPortfolio, error) {
	in, err := e.loadOptimizationInput(ctx, portfolioID)
	if err != nil {
		return domain.OptimizedPortfolio{}, err
	}

	result, err := e.optimizer.Optimize(ctx, in, objective, constraints)
	if err != nil && !errors.Is(err, domain.ErrDidNotConverge) {
		return domain.OptimizedPortfolio{}, err
	}
	result.PortfolioID = portfolioID
	if errors.Is(err, domain.ErrDidNotConverge) {
		result.Partial = true
	}

	if saveErr := e.reports.SaveOptimizationResult(ctx, today(), result); saveErr != nil {
		return domain.OptimizedPortfolio{}, fmt.Errorf("failed to persist optimization result: %w", saveErr)
	}
	return result, err
}

// CalculateEfficientFrontier samples the efficient frontier over the
// portfolio's holdings. The boolean reports whether the sweep was cut
// short by the context deadline.
func (e *Engine) CalculateEfficientFrontier(
	ctx context.Context,
	portfolioID string,
	constraints domain.Constraints,
	pointCount int,
) ([]domain.FrontierPoint, bool, error) {
	in, err := e.loadOptimizationInput(ctx, portfolioID)
	if err != nil {
		return nil, false, err
	}
	if pointCount <= 0 {
		pointCount = e.cfg.Solver.DefaultFrontierPoints
	}

	frontier, err := e.optimizer.EfficientFrontier(ctx, in, constraints, pointCount)
	if err != nil {
		return nil, false, err
	}
	return frontier.Points, frontier.Partial, nil
}

// CalculateRiskParity solves equal risk contributions for a caller-supplied
// covariance matrix. It does not touch the store.
func (e *Engine) CalculateRiskParity(
	ctx context.Context,
	symbols []string,
	covariance [][]float64,
	constraints domain.Constraints,
) (domain.RiskParityResult, error) {
	return e.optimizer.RiskParity(ctx, covariance, symbols, constraints)
}

// GenerateRebalancingProposal plans the trades that move the portfolio to
// the target allocation.
func (e *Engine) GenerateRebalancingProposal(
	ctx context.Context,
	portfolioID string,
	targets map[string]float64,
) ([]domain.RebalancingAction, error) {
	holdings, err := e.store.GetHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	totalValue, err := e.store.GetTotalValue(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64)
	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		seen[h.Symbol] = true
		if h.Quantity > 0 {
			prices[h.Symbol] = h.MarketValue / h.Quantity
			continue
		}
		price, err := e.metadata.GetLastPrice(ctx, h.Symbol)
		if err != nil {
			return nil, err
		}
		prices[h.Symbol] = price
	}
	for sym := range targets {
		if seen[sym] {
			continue
		}
		price, err := e.metadata.GetLastPrice(ctx, sym)
		if err != nil {
			return nil, err
		}
		prices[sym] = price
	}

	return e.planner.Plan(rebalancing.Input{
		Holdings:   holdings,
		TotalValue: totalValue,
		Targets:    targets,
		Prices:     prices,
	})
}

// loadRiskInput assembles everything the risk snapshot needs from the
// store and metadata collaborators.
func (e *Engine) loadRiskInput(ctx context.Context, portfolioID string) (risk.SnapshotInput, error) {
	holdings, err := e.store.GetHoldings(ctx, portfolioID)
	if err != nil {
		return risk.SnapshotInput{}, err
	}
	totalValue, err := e.store.GetTotalValue(ctx, portfolioID)
	if err != nil {
		return risk.SnapshotInput{}, err
	}

	in := risk.SnapshotInput{
		PortfolioID: portfolioID,
		Holdings:    holdings,
		TotalValue:  totalValue,
	}
	if len(holdings) == 0 {
		return in, nil
	}

	in.PortfolioReturns, err = e.store.GetHistoricalReturns(ctx, portfolioID, defaultLookbackDays)
	if err != nil {
		return risk.SnapshotInput{}, err
	}
	in.BenchmarkReturns, err = e.store.GetBenchmarkReturns(ctx, e.cfg.BenchmarkID, defaultLookbackDays)
	if err != nil {
		return risk.SnapshotInput{}, err
	}

	in.Sectors, err = e.sectors(ctx, holdings)
	if err != nil {
		return risk.SnapshotInput{}, err
	}

	in.LiquidityScores = make(map[string]float64, len(holdings))
	in.SymbolReturns = make([]domain.ReturnSeries, 0, len(holdings))
	for _, h := range holdings {
		score, err := e.metadata.GetLiquidityScore(ctx, h.Symbol)
		if err != nil {
			return risk.SnapshotInput{}, err
		}
		in.LiquidityScores[h.Symbol] = score

		series, err := e.store.GetSymbolReturns(ctx, h.Symbol, defaultLookbackDays)
		if err != nil {
			return risk.SnapshotInput{}, err
		}
		if len(series.Points) > 0 {
			in.SymbolReturns = append(in.SymbolReturns, series)
		}
	}

	return in, nil
}

// loadOptimizationInput builds annualized expected returns and covariance
// from the holdings' daily return histories.
func (e *Engine) loadOptimizationInput(ctx context.Context, portfolioID string) (optimization.Input, error) {
	holdings, err := e.store.GetHoldings(ctx, portfolioID)
	if err != nil {
		return optimization.Input{}, err
	}
	if len(holdings) == 0 {
		return optimization.Input{}, fmt.Errorf("%w: portfolio %s has no holdings to optimize",
			domain.ErrInsufficientData, portfolioID)
	}

	series := make([]domain.ReturnSeries, 0, len(holdings))
	for _, h := range holdings {
		s, err := e.store.GetSymbolReturns(ctx, h.Symbol, defaultLookbackDays)
		if err != nil {
			return optimization.Input{}, err
		}
		if len(s.Points) == 0 {
			return optimization.Input{}, fmt.Errorf("%w: no return history for %s",
				domain.ErrInsufficientData, h.Symbol)
		}
		series = append(series, s)
	}

	cov, symbols, err := e.stats.CovarianceMatrix(series)
	if err != nil {
		return optimization.Input{}, err
	}

	bySymbol := make(map[string]domain.ReturnSeries, len(series))
	for _, s := range series {
		bySymbol[s.Symbol] = s
	}

	// Annualize: daily means and covariances scale linearly with the
	// trading-day count.
	mu := make([]float64, len(symbols))
	for i, sym := range symbols {
		mu[i] = formulas.Mean(bySymbol[sym].Values()) * formulas.TradingDaysPerYear
	}
	for i := range cov {
		for j := range cov[i] {
			cov[i][j] *= formulas.TradingDaysPerYear
		}
	}

	sectors, err := e.sectors(ctx, holdings)
	if err != nil {
		return optimization.Input{}, err
	}

	return optimization.Input{
		Symbols: symbols,
		Mu:      mu,
		Cov:     cov,
		Sectors: sectors,
	}, nil
}

func (e *Engine) sectors(ctx context.Context, holdings []domain.Holding) (map[string]string, error) {
	sectors := make(map[string]string, len(holdings))
	for _, h := range holdings {
		sector, err := e.metadata.GetSector(ctx, h.Symbol)
		if err != nil {
			return nil, err
		}
		sectors[h.Symbol] = sector
	}
	return sectors, nil
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
