package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailIndex(t *testing.T) {
	assert.Equal(t, 5, TailIndex(100, 0.95))
	assert.Equal(t, 1, TailIndex(100, 0.99))
	assert.Equal(t, 0, TailIndex(10, 0.99))
	// Clamped to valid range.
	assert.Equal(t, 0, TailIndex(1, 0.99))
}

func TestHistoricalVaR(t *testing.T) {
	// 100 observations: -0.50, -0.49, ..., 0.49 after sorting.
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i-50) / 100.0
	}

	// 95% confidence: index 5 of the sorted series is -0.45.
	v := HistoricalVaR(returns, 0.95)
	assert.InDelta(t, 0.45, v, 1e-12)

	assert.Equal(t, 0.0, HistoricalVaR(nil, 0.95))
}

func TestHistoricalShortfallDominatesVaR(t *testing.T) {
	returns := []float64{-0.10, -0.08, -0.05, -0.02, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06}

	for _, confidence := range []float64{0.90, 0.95, 0.99} {
		v := HistoricalVaR(returns, confidence)
		es := HistoricalShortfall(returns, confidence)
		assert.GreaterOrEqual(t, es, v, "ES must dominate VaR at confidence %v", confidence)
	}
}

func TestHorizonScale(t *testing.T) {
	assert.Equal(t, 1.0, HorizonScale(1))
	assert.Equal(t, 1.0, HorizonScale(0))
	assert.InDelta(t, 3.1622776601, HorizonScale(10), 1e-9)
}

func TestMonteCarloShortfall(t *testing.T) {
	// A wide normal distribution should produce a tail loss well beyond
	// one standard deviation at 95% confidence.
	es := MonteCarloShortfall(0.0, 0.02, 10000, 0.95, 1)
	assert.Greater(t, es, 0.02)
	assert.Less(t, es, 0.10)

	// Deterministic for the same seed.
	es2 := MonteCarloShortfall(0.0, 0.02, 10000, 0.95, 1)
	assert.Equal(t, es, es2)

	// Degenerate sigma falls back to the mean loss.
	require.Equal(t, 0.01, MonteCarloShortfall(-0.01, 0, 1000, 0.95, 1))
}
