// Package portfolio is the SQLite-backed portfolio store: holdings
// snapshots, valuation, return history, symbol metadata, and the upsert
// sinks for computed risk and optimization reports.
package portfolio

// MarketSchema holds the read-side tables: what the portfolio owns and how
// it and its benchmark have moved.
const MarketSchema = `
CREATE TABLE IF NOT EXISTS holdings (
    portfolio_id TEXT NOT NULL,
    symbol       TEXT NOT NULL,
    quantity     REAL NOT NULL,
    average_cost REAL NOT NULL DEFAULT 0,
    market_value REAL NOT NULL,
    PRIMARY KEY (portfolio_id, symbol)
);

CREATE TABLE IF NOT EXISTS portfolio_values (
    portfolio_id TEXT PRIMARY KEY,
    total_value  REAL NOT NULL,
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS daily_returns (
    portfolio_id TEXT NOT NULL,
    date         TEXT NOT NULL,
    daily_return REAL NOT NULL,
    PRIMARY KEY (portfolio_id, date)
);

CREATE TABLE IF NOT EXISTS symbol_returns (
    symbol       TEXT NOT NULL,
    date         TEXT NOT NULL,
    daily_return REAL NOT NULL,
    PRIMARY KEY (symbol, date)
);

CREATE TABLE IF NOT EXISTS benchmark_returns (
    benchmark_id TEXT NOT NULL,
    date         TEXT NOT NULL,
    daily_return REAL NOT NULL,
    PRIMARY KEY (benchmark_id, date)
);

CREATE TABLE IF NOT EXISTS symbol_metadata (
    symbol          TEXT PRIMARY KEY,
    sector          TEXT NOT NULL DEFAULT '',
    liquidity_score REAL NOT NULL DEFAULT 50,
    last_price      REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_daily_returns_portfolio
    ON daily_returns(portfolio_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_symbol_returns_symbol
    ON symbol_returns(symbol, date DESC);
CREATE INDEX IF NOT EXISTS idx_benchmark_returns_benchmark
    ON benchmark_returns(benchmark_id, date DESC);
`

// ReportsSchema holds the write-side tables. The (portfolio_id, date)
// uniqueness plus ON CONFLICT upserts are the only synchronization needed
// for concurrent recomputation of the same day.
const ReportsSchema = `
CREATE TABLE IF NOT EXISTS risk_metrics (
    id                     TEXT NOT NULL,
    portfolio_id           TEXT NOT NULL,
    date                   TEXT NOT NULL,
    var_95                 REAL NOT NULL,
    var_99                 REAL NOT NULL,
    expected_shortfall     REAL NOT NULL,
    monte_carlo_shortfall  REAL NOT NULL DEFAULT 0,
    beta                   REAL NOT NULL,
    alpha                  REAL NOT NULL,
    correlation_json       TEXT NOT NULL DEFAULT '{}',
    sector_allocation_json TEXT NOT NULL DEFAULT '{}',
    concentration_risk     REAL NOT NULL,
    liquidity_risk         REAL NOT NULL,
    recommendations_json   TEXT NOT NULL DEFAULT '[]',
    created_at             TEXT NOT NULL,
    PRIMARY KEY (portfolio_id, date)
);

CREATE TABLE IF NOT EXISTS optimization_results (
    id               TEXT NOT NULL,
    portfolio_id     TEXT NOT NULL,
    date             TEXT NOT NULL,
    objective        TEXT NOT NULL,
    allocations_json TEXT NOT NULL DEFAULT '[]',
    expected_return  REAL NOT NULL,
    expected_risk    REAL NOT NULL,
    sharpe_ratio     REAL NOT NULL,
    converged        INTEGER NOT NULL DEFAULT 1,
    partial          INTEGER NOT NULL DEFAULT 0,
    created_at       TEXT NOT NULL,
    PRIMARY KEY (portfolio_id, date)
);
`
