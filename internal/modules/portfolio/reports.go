package portfolio

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/database"
	"github.com/aristath/risk-engine/internal/domain"
)

// ReportRepository persists computed risk and optimization reports. Writes
// are idempotent upserts keyed by (portfolio_id, date): a recomputation for
// the same day replaces the earlier row, so concurrent writers cannot
// produce duplicates. JSON serialization of the nested maps happens here
// and only here.
type ReportRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewReportRepository creates a report repository over the reports database.
func NewReportRepository(db *database.DB, log zerolog.Logger) *ReportRepository {
	return &ReportRepository{
		db:  db.Conn(),
		log: log.With().Str("component", "report_repo").Logger(),
	}
}

// SaveRiskMetrics upserts a risk snapshot for its (portfolio, date) key.
func (r *ReportRepository) SaveRiskMetrics(ctx context.Context, m domain.RiskMetrics) error {
	correlationJSON, err := json.Marshal(m.CorrelationMatrix)
	if err != nil {
		return fmt.Errorf("failed to encode correlation matrix: %w", err)
	}
	sectorJSON, err := json.Marshal(m.SectorAllocation)
	if err != nil {
		return fmt.Errorf("failed to encode sector allocation: %w", err)
	}
	recommendationsJSON, err := json.Marshal(m.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO risk_metrics (
			id, portfolio_id, date, var_95, var_99, expected_shortfall,
			monte_carlo_shortfall, beta, alpha, correlation_json,
			sector_allocation_json, concentration_risk, liquidity_risk,
			recommendations_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, date) DO UPDATE SET
			var_95 = excluded.var_95,
			var_99 = excluded.var_99,
			expected_shortfall = excluded.expected_shortfall,
			monte_carlo_shortfall = excluded.monte_carlo_shortfall,
			beta = excluded.beta,
			alpha = excluded.alpha,
			correlation_json = excluded.correlation_json,
			sector_allocation_json = excluded.sector_allocation_json,
			concentration_risk = excluded.concentration_risk,
			liquidity_risk = excluded.liquidity_risk,
			recommendations_json = excluded.recommendations_json,
			created_at = excluded.created_at
	`, uuid.NewString(), m.PortfolioID, m.Date, m.VaR95, m.VaR99,
		m.ExpectedShortfall, m.MonteCarloShortfall, m.Beta, m.Alpha,
		string(correlationJSON), string(sectorJSON), m.ConcentrationRisk,
		m.LiquidityRisk, string(recommendationsJSON),
		createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save risk metrics: %w", err)
	}

	r.log.Debug().
		Str("portfolio_id", m.PortfolioID).
		Str("date", m.Date).
		Msg("Saved risk metrics")
	return nil
}

// GetRiskMetrics loads the persisted snapshot for a (portfolio, date) key.
func (r *ReportRepository) GetRiskMetrics(ctx context.Context, portfolioID, date string) (domain.RiskMetrics, error) {
	var m domain.RiskMetrics
	var correlationJSON, sectorJSON, recommendationsJSON, createdAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT portfolio_id, date, var_95, var_99, expected_shortfall,
		       monte_carlo_shortfall, beta, alpha, correlation_json,
		       sector_allocation_json, concentration_risk, liquidity_risk,
		       recommendations_json, created_at
		FROM risk_metrics
		WHERE portfolio_id = ? AND date = ?
	`, portfolioID, date).Scan(
		&m.PortfolioID, &m.Date, &m.VaR95, &m.VaR99, &m.ExpectedShortfall,
		&m.MonteCarloShortfall, &m.Beta, &m.Alpha, &correlationJSON,
		&sectorJSON, &m.ConcentrationRisk, &m.LiquidityRisk,
		&recommendationsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return domain.RiskMetrics{}, fmt.Errorf("%w: no risk metrics for %s on %s",
			domain.ErrPortfolioNotFound, portfolioID, date)
	}
	if err != nil {
		return domain.RiskMetrics{}, fmt.Errorf("failed to load risk metrics: %w", err)
	}

	if err := json.Unmarshal([]byte(correlationJSON), &m.CorrelationMatrix); err != nil {
		return domain.RiskMetrics{}, fmt.Errorf("failed to decode correlation matrix: %w", err)
	}
	if err := json.Unmarshal([]byte(sectorJSON), &m.SectorAllocation); err != nil {
		return domain.RiskMetrics{}, fmt.Errorf("failed to decode sector allocation: %w", err)
	}
	if err := json.Unmarshal([]byte(recommendationsJSON), &m.Recommendations); err != nil {
		return domain.RiskMetrics{}, fmt.Errorf("failed to decode recommendations: %w", err)
	}
	if ts, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		m.CreatedAt = ts
	}
	return m, nil
}

// SaveOptimizationResult upserts an optimizer run for its
// (portfolio, date) key.
func (r *ReportRepository) SaveOptimizationResult(ctx context.Context, date string, p domain.OptimizedPortfolio) error {
	allocationsJSON, err := json.Marshal(p.Allocations)
	if err != nil {
		return fmt.Errorf("failed to encode allocations: %w", err)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO optimization_results (
			id, portfolio_id, date, objective, allocations_json,
			expected_return, expected_risk, sharpe_ratio, converged,
			partial, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, date) DO UPDATE SET
			objective = excluded.objective,
			allocations_json = excluded.allocations_json,
			expected_return = excluded.expected_return,
			expected_risk = excluded.expected_risk,
			sharpe_ratio = excluded.sharpe_ratio,
			converged = excluded.converged,
			partial = excluded.partial,
			created_at = excluded.created_at
	`, uuid.NewString(), p.PortfolioID, date, string(p.Objective.Type),
		string(allocationsJSON), p.ExpectedReturn, p.ExpectedRisk,
		p.SharpeRatio, boolToInt(p.Converged), boolToInt(p.Partial),
		createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save optimization result: %w", err)
	}

	r.log.Debug().
		Str("portfolio_id", p.PortfolioID).
		Str("date", date).
		Str("objective", string(p.Objective.Type)).
		Msg("Saved optimization result")
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
