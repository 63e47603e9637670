package portfolio

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/database"
	"github.com/aristath/risk-engine/internal/domain"
)

// Store reads portfolio state: holdings, valuation, and return history.
// Unknown portfolios surface as domain.ErrPortfolioNotFound.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a portfolio store over the market database.
func NewStore(db *database.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db.Conn(),
		log: log.With().Str("component", "portfolio_store").Logger(),
	}
}

// GetHoldings returns the current holdings snapshot ordered by symbol.
// A portfolio with a valuation row but no holdings returns an empty slice;
// a portfolio with neither is not found.
func (s *Store) GetHoldings(ctx context.Context, portfolioID string) ([]domain.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, quantity, average_cost, market_value
		FROM holdings
		WHERE portfolio_id = ?
		ORDER BY symbol ASC
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.AverageCost, &h.MarketValue); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}

	if len(holdings) == 0 {
		known, err := s.portfolioExists(ctx, portfolioID)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, portfolioID)
		}
		return []domain.Holding{}, nil
	}
	return holdings, nil
}

// GetTotalValue returns the portfolio's current total value.
func (s *Store) GetTotalValue(ctx context.Context, portfolioID string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT total_value FROM portfolio_values WHERE portfolio_id = ?
	`, portfolioID).Scan(&total)
	if err == sql.ErrNoRows {
		// Holdings imply a valuation even without an explicit row.
		var sum sql.NullFloat64
		sumErr := s.db.QueryRowContext(ctx, `
			SELECT SUM(market_value) FROM holdings WHERE portfolio_id = ?
		`, portfolioID).Scan(&sum)
		if sumErr != nil {
			return 0, fmt.Errorf("failed to sum holdings: %w", sumErr)
		}
		if !sum.Valid {
			return 0, fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, portfolioID)
		}
		return sum.Float64, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query total value: %w", err)
	}
	return total, nil
}

// GetHistoricalReturns returns the portfolio's most recent daily returns,
// oldest first, limited to the requested number of days.
func (s *Store) GetHistoricalReturns(ctx context.Context, portfolioID string, days int) (domain.ReturnSeries, error) {
	return s.returnSeries(ctx, portfolioID, `
		SELECT date, daily_return FROM (
			SELECT date, daily_return
			FROM daily_returns
			WHERE portfolio_id = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`, portfolioID, days)
}

// GetSymbolReturns returns one instrument's most recent daily returns,
// oldest first. Symbols with no history yield an empty series.
func (s *Store) GetSymbolReturns(ctx context.Context, symbol string, days int) (domain.ReturnSeries, error) {
	return s.returnSeries(ctx, symbol, `
		SELECT date, daily_return FROM (
			SELECT date, daily_return
			FROM symbol_returns
			WHERE symbol = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`, symbol, days)
}

// GetBenchmarkReturns returns the benchmark's most recent daily returns,
// oldest first.
func (s *Store) GetBenchmarkReturns(ctx context.Context, benchmarkID string, days int) (domain.ReturnSeries, error) {
	return s.returnSeries(ctx, benchmarkID, `
		SELECT date, daily_return FROM (
			SELECT date, daily_return
			FROM benchmark_returns
			WHERE benchmark_id = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`, benchmarkID, days)
}

func (s *Store) returnSeries(ctx context.Context, label, query, id string, days int) (domain.ReturnSeries, error) {
	rows, err := s.db.QueryContext(ctx, query, id, days)
	if err != nil {
		return domain.ReturnSeries{}, fmt.Errorf("failed to query returns: %w", err)
	}
	defer rows.Close()

	series := domain.ReturnSeries{Symbol: label}
	for rows.Next() {
		var p domain.ReturnPoint
		if err := rows.Scan(&p.Date, &p.DailyReturn); err != nil {
			return domain.ReturnSeries{}, fmt.Errorf("failed to scan return point: %w", err)
		}
		series.Points = append(series.Points, p)
	}
	if err := rows.Err(); err != nil {
		return domain.ReturnSeries{}, fmt.Errorf("failed to iterate returns: %w", err)
	}
	return series, nil
}

// SaveHolding upserts one holding row.
func (s *Store) SaveHolding(ctx context.Context, portfolioID string, h domain.Holding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (portfolio_id, symbol, quantity, average_cost, market_value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			average_cost = excluded.average_cost,
			market_value = excluded.market_value
	`, portfolioID, h.Symbol, h.Quantity, h.AverageCost, h.MarketValue)
	if err != nil {
		return fmt.Errorf("failed to save holding %s: %w", h.Symbol, err)
	}
	return nil
}

// SaveTotalValue upserts the portfolio valuation.
func (s *Store) SaveTotalValue(ctx context.Context, portfolioID string, totalValue float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolio_values (portfolio_id, total_value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(portfolio_id) DO UPDATE SET
			total_value = excluded.total_value,
			updated_at = excluded.updated_at
	`, portfolioID, totalValue)
	if err != nil {
		return fmt.Errorf("failed to save total value: %w", err)
	}
	return nil
}

// SaveDailyReturn upserts one daily return observation.
func (s *Store) SaveDailyReturn(ctx context.Context, portfolioID string, p domain.ReturnPoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_returns (portfolio_id, date, daily_return)
		VALUES (?, ?, ?)
		ON CONFLICT(portfolio_id, date) DO UPDATE SET
			daily_return = excluded.daily_return
	`, portfolioID, p.Date, p.DailyReturn)
	if err != nil {
		return fmt.Errorf("failed to save daily return: %w", err)
	}
	return nil
}

// SaveSymbolReturn upserts one instrument return observation.
func (s *Store) SaveSymbolReturn(ctx context.Context, symbol string, p domain.ReturnPoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO symbol_returns (symbol, date, daily_return)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			daily_return = excluded.daily_return
	`, symbol, p.Date, p.DailyReturn)
	if err != nil {
		return fmt.Errorf("failed to save symbol return: %w", err)
	}
	return nil
}

// SaveBenchmarkReturn upserts one benchmark return observation.
func (s *Store) SaveBenchmarkReturn(ctx context.Context, benchmarkID string, p domain.ReturnPoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO benchmark_returns (benchmark_id, date, daily_return)
		VALUES (?, ?, ?)
		ON CONFLICT(benchmark_id, date) DO UPDATE SET
			daily_return = excluded.daily_return
	`, benchmarkID, p.Date, p.DailyReturn)
	if err != nil {
		return fmt.Errorf("failed to save benchmark return: %w", err)
	}
	return nil
}

func (s *Store) portfolioExists(ctx context.Context, portfolioID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM portfolio_values WHERE portfolio_id = ?
	`, portfolioID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check portfolio: %w", err)
	}
	return true, nil
}
