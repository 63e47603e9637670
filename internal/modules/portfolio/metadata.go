package portfolio

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/database"
)

// MetadataRepository serves per-symbol sector, liquidity, and price data.
// Symbols without a row fall back to sensible neutral values rather than
// erroring; missing metadata is expected for new instruments.
type MetadataRepository struct {
	db               *sql.DB
	neutralLiquidity float64
	log              zerolog.Logger
}

// NewMetadataRepository creates a symbol metadata repository. Symbols
// without a stored liquidity score report neutralLiquidity.
func NewMetadataRepository(db *database.DB, neutralLiquidity float64, log zerolog.Logger) *MetadataRepository {
	return &MetadataRepository{
		db:               db.Conn(),
		neutralLiquidity: neutralLiquidity,
		log:              log.With().Str("component", "symbol_metadata").Logger(),
	}
}

// GetSector returns the symbol's sector, or "" when unknown.
func (r *MetadataRepository) GetSector(ctx context.Context, symbol string) (string, error) {
	var sector string
	err := r.db.QueryRowContext(ctx, `
		SELECT sector FROM symbol_metadata WHERE symbol = ?
	`, symbol).Scan(&sector)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query sector for %s: %w", symbol, err)
	}
	return sector, nil
}

// GetLiquidityScore returns the symbol's liquidity score in [0,100].
// Unknown symbols score the configured neutral value.
func (r *MetadataRepository) GetLiquidityScore(ctx context.Context, symbol string) (float64, error) {
	var score float64
	err := r.db.QueryRowContext(ctx, `
		SELECT liquidity_score FROM symbol_metadata WHERE symbol = ?
	`, symbol).Scan(&score)
	if err == sql.ErrNoRows {
		return r.neutralLiquidity, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query liquidity for %s: %w", symbol, err)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}

// GetLastPrice returns the symbol's last known price, or 0 when unknown.
func (r *MetadataRepository) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := r.db.QueryRowContext(ctx, `
		SELECT last_price FROM symbol_metadata WHERE symbol = ?
	`, symbol).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query price for %s: %w", symbol, err)
	}
	return price, nil
}

// Save upserts a symbol's metadata row.
func (r *MetadataRepository) Save(ctx context.Context, symbol, sector string, liquidityScore, lastPrice float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO symbol_metadata (symbol, sector, liquidity_score, last_price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			sector = excluded.sector,
			liquidity_score = excluded.liquidity_score,
			last_price = excluded.last_price
	`, symbol, sector, liquidityScore, lastPrice)
	if err != nil {
		return fmt.Errorf("failed to save metadata for %s: %w", symbol, err)
	}
	return nil
}
