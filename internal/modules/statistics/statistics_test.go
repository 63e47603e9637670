package statistics

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/risk-engine/internal/domain"
)

func series(symbol string, points ...domain.ReturnPoint) domain.ReturnSeries {
	return domain.ReturnSeries{Symbol: symbol, Points: points}
}

func pt(date string, r float64) domain.ReturnPoint {
	return domain.ReturnPoint{Date: date, DailyReturn: r}
}

func testCalculator() *Calculator {
	return NewCalculator(30, zerolog.Nop())
}

func TestAlignPair_IntersectsByDate(t *testing.T) {
	a := series("A",
		pt("2026-01-01", 0.01),
		pt("2026-01-02", 0.02),
		pt("2026-01-04", 0.03),
	)
	b := series("B",
		pt("2026-01-02", 0.05),
		pt("2026-01-03", 0.06),
		pt("2026-01-04", 0.07),
	)

	x, y := AlignPair(a, b)

	// Only 01-02 and 01-04 overlap; 01-03 in B must not pair with 01-03-less A.
	require.Len(t, x, 2)
	assert.Equal(t, []float64{0.02, 0.03}, x)
	assert.Equal(t, []float64{0.05, 0.07}, y)
}

func TestAlignAll_CommonDates(t *testing.T) {
	dates, aligned := AlignAll([]domain.ReturnSeries{
		series("A", pt("2026-01-01", 0.01), pt("2026-01-02", 0.02), pt("2026-01-03", 0.01)),
		series("B", pt("2026-01-02", 0.04), pt("2026-01-03", 0.05)),
		series("C", pt("2026-01-01", 0.00), pt("2026-01-02", -0.01), pt("2026-01-03", 0.02)),
	})

	assert.Equal(t, []string{"2026-01-02", "2026-01-03"}, dates)
	assert.Equal(t, []float64{0.02, 0.01}, aligned["A"])
	assert.Equal(t, []float64{0.04, 0.05}, aligned["B"])
	assert.Equal(t, []float64{-0.01, 0.02}, aligned["C"])
}

func TestCorrelationMatrix(t *testing.T) {
	matrix, err := testCalculator().CorrelationMatrix([]domain.ReturnSeries{
		series("A", pt("2026-01-01", 0.01), pt("2026-01-02", 0.02), pt("2026-01-03", -0.01)),
		series("B", pt("2026-01-01", 0.02), pt("2026-01-02", 0.04), pt("2026-01-03", -0.02)),
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, matrix["A"]["A"])
	assert.Equal(t, 1.0, matrix["B"]["B"])
	// B is exactly 2x A, so the pair is perfectly correlated.
	assert.InDelta(t, 1.0, matrix["A"]["B"], 1e-9)
	assert.InDelta(t, matrix["A"]["B"], matrix["B"]["A"], 1e-12)
}

func TestCorrelationMatrix_InsufficientOverlap(t *testing.T) {
	_, err := testCalculator().CorrelationMatrix([]domain.ReturnSeries{
		series("A", pt("2026-01-01", 0.01), pt("2026-01-02", 0.02)),
		series("B", pt("2026-01-02", 0.02), pt("2026-01-03", 0.03)),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestCorrelationMatrix_ZeroVariancePair(t *testing.T) {
	_, err := testCalculator().CorrelationMatrix([]domain.ReturnSeries{
		series("A", pt("2026-01-01", 0.01), pt("2026-01-02", 0.01), pt("2026-01-03", 0.01)),
		series("B", pt("2026-01-01", 0.02), pt("2026-01-02", 0.04), pt("2026-01-03", -0.02)),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestCovarianceMatrix_SymmetricSortedOrder(t *testing.T) {
	cov, symbols, err := testCalculator().CovarianceMatrix([]domain.ReturnSeries{
		series("B", pt("2026-01-01", 0.02), pt("2026-01-02", 0.04), pt("2026-01-03", -0.02)),
		series("A", pt("2026-01-01", 0.01), pt("2026-01-02", 0.02), pt("2026-01-03", -0.01)),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, symbols)
	assert.InDelta(t, cov[0][1], cov[1][0], 1e-12)
	assert.GreaterOrEqual(t, cov[0][0], 0.0)
	assert.GreaterOrEqual(t, cov[1][1], 0.0)
}

func TestVaR_InsufficientData(t *testing.T) {
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = 0.01
	}

	_, err := testCalculator().VaR(returns, 0.95, 1, 100000)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestVaR_PropertiesAcrossConfidences(t *testing.T) {
	// 100 observations spread from -5% to +4.9%.
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i-50) / 1000.0
	}

	calc := testCalculator()
	portfolioValue := 100000.0

	var95, err := calc.VaR(returns, 0.95, 1, portfolioValue)
	require.NoError(t, err)
	var99, err := calc.VaR(returns, 0.99, 1, portfolioValue)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, var99.VaR, var95.VaR, "VaR99 must be at least VaR95")
	assert.GreaterOrEqual(t, var95.ExpectedShortfall, var95.VaR, "ES must dominate VaR")
	assert.GreaterOrEqual(t, var99.ExpectedShortfall, var99.VaR, "ES must dominate VaR")
}

func TestVaR_HorizonScaling(t *testing.T) {
	returns := make([]float64, 60)
	for i := range returns {
		returns[i] = float64(i-30) / 1000.0
	}

	calc := testCalculator()

	oneDay, err := calc.VaR(returns, 0.95, 1, 100000)
	require.NoError(t, err)
	tenDay, err := calc.VaR(returns, 0.95, 10, 100000)
	require.NoError(t, err)

	assert.InDelta(t, oneDay.VaR*3.1622776601, tenDay.VaR, 1e-6)
}

func TestBetaAlpha_KnownRegression(t *testing.T) {
	// Portfolio returns are exactly 2 * benchmark + 0.001.
	var p, m domain.ReturnSeries
	p.Symbol = "portfolio"
	m.Symbol = "benchmark"
	dates := []string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04", "2026-01-05"}
	bench := []float64{0.01, -0.02, 0.015, 0.005, -0.01}
	for i, d := range dates {
		m.Points = append(m.Points, pt(d, bench[i]))
		p.Points = append(p.Points, pt(d, 2*bench[i]+0.001))
	}

	beta, alpha := testCalculator().BetaAlpha(p, m)

	assert.InDelta(t, 2.0, beta, 1e-9)
	assert.InDelta(t, 0.001, alpha, 1e-9)
}

func TestBetaAlpha_NeutralFallbacks(t *testing.T) {
	calc := testCalculator()

	// No overlap at all.
	beta, alpha := calc.BetaAlpha(
		series("p", pt("2026-01-01", 0.01)),
		series("m", pt("2026-02-01", 0.02)),
	)
	assert.Equal(t, 1.0, beta)
	assert.Equal(t, 0.0, alpha)

	// Flat benchmark: zero variance.
	beta, alpha = calc.BetaAlpha(
		series("p", pt("2026-01-01", 0.01), pt("2026-01-02", 0.02), pt("2026-01-03", -0.01)),
		series("m", pt("2026-01-01", 0.01), pt("2026-01-02", 0.01), pt("2026-01-03", 0.01)),
	)
	assert.Equal(t, 1.0, beta)
	assert.Equal(t, 0.0, alpha)
}

func TestReturnSeries_SortDeduplicates(t *testing.T) {
	s := series("A",
		pt("2026-01-03", 0.03),
		pt("2026-01-01", 0.01),
		pt("2026-01-01", 0.02),
	)

	s.Sort()

	require.Len(t, s.Points, 2)
	assert.Equal(t, "2026-01-01", s.Points[0].Date)
	// Last observation for a duplicated date wins.
	assert.Equal(t, 0.02, s.Points[0].DailyReturn)
	assert.Equal(t, "2026-01-03", s.Points[1].Date)
}
