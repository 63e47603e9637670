package optimization

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/risk-engine/internal/config"
	"github.com/aristath/risk-engine/internal/domain"
)

func testOptimizer() *Optimizer {
	return NewOptimizer(config.SolverDefaults{
		RiskParityMaxIterations: 200,
		RiskParityTolerance:     1e-4,
		DefaultFrontierPoints:   20,
		MaxFrontierPoints:       50,
	}, zerolog.Nop())
}

func unconstrained() domain.Constraints {
	return domain.Constraints{MinWeight: 0.0, MaxWeight: 1.0}
}

func weightSum(allocations []domain.Allocation) float64 {
	sum := 0.0
	for _, a := range allocations {
		sum += a.Weight
	}
	return sum
}

func assertValidWeights(t *testing.T, allocations []domain.Allocation, c domain.Constraints) {
	t.Helper()
	assert.InDelta(t, 1.0, weightSum(allocations), 1e-6, "weights must sum to 1")
	for _, a := range allocations {
		assert.GreaterOrEqual(t, a.Weight, c.MinWeight-1e-9, "weight below minimum for %s", a.Symbol)
		assert.LessOrEqual(t, a.Weight, c.MaxWeight+1e-9, "weight above maximum for %s", a.Symbol)
	}
}

func TestValidateConstraints(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		c       domain.Constraints
		wantErr bool
	}{
		{"valid bounds", 3, domain.Constraints{MinWeight: 0.1, MaxWeight: 0.6}, false},
		{"min weight too high", 3, domain.Constraints{MinWeight: 0.4, MaxWeight: 1.0}, true},
		{"max weight too low", 3, domain.Constraints{MinWeight: 0.0, MaxWeight: 0.2}, true},
		{"inverted bounds", 3, domain.Constraints{MinWeight: 0.5, MaxWeight: 0.3}, true},
		{"no assets", 0, domain.Constraints{MinWeight: 0.0, MaxWeight: 1.0}, true},
		{"exact feasibility", 4, domain.Constraints{MinWeight: 0.25, MaxWeight: 0.25}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConstraints(tt.n, tt.c)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInfeasibleConstraints)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptimizeEqualWeight(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"AAPL", "GOOGL", "MSFT", "XOM"},
		Mu:      []float64{0.10, 0.12, 0.08, 0.06},
		Cov: [][]float64{
			{0.04, 0, 0, 0},
			{0, 0.05, 0, 0},
			{0, 0, 0.03, 0},
			{0, 0, 0, 0.02},
		},
	}
	c := unconstrained()

	result, err := opt.Optimize(context.Background(), in, domain.OptimizationObjective{
		Type: domain.ObjectiveEqualWeight,
	}, c)
	require.NoError(t, err)

	assertValidWeights(t, result.Allocations, c)
	for _, a := range result.Allocations {
		assert.InDelta(t, 0.25, a.Weight, 1e-9)
	}
	assert.True(t, result.Converged)
}

func TestOptimizeMaxReturn(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"AAPL", "GOOGL", "MSFT"},
		Mu:      []float64{0.05, 0.10, 0.07},
		Cov: [][]float64{
			{0.04, 0, 0},
			{0, 0.05, 0},
			{0, 0, 0.03},
		},
	}
	c := domain.Constraints{MinWeight: 0.0, MaxWeight: 0.6}

	result, err := opt.Optimize(context.Background(), in, domain.OptimizationObjective{
		Type: domain.ObjectiveMaxReturn,
	}, c)
	require.NoError(t, err)
	assertValidWeights(t, result.Allocations, c)

	bySymbol := make(map[string]float64)
	for _, a := range result.Allocations {
		bySymbol[a.Symbol] = a.Weight
	}
	// Highest expected return fills to the cap, next best takes the rest.
	assert.InDelta(t, 0.6, bySymbol["GOOGL"], 1e-6)
	assert.InDelta(t, 0.4, bySymbol["MSFT"], 1e-6)
	assert.InDelta(t, 0.0, bySymbol["AAPL"], 1e-6)
	assert.InDelta(t, 0.088, result.ExpectedReturn, 1e-6)
}

func TestOptimizeMaxReturnTieBreaksBySymbol(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"AAA", "BBB", "CCC"},
		Mu:      []float64{0.08, 0.08, 0.08},
		Cov: [][]float64{
			{0.04, 0, 0},
			{0, 0.04, 0},
			{0, 0, 0.04},
		},
	}
	c := domain.Constraints{MinWeight: 0.0, MaxWeight: 0.7}

	result, err := opt.Optimize(context.Background(), in, domain.OptimizationObjective{
		Type: domain.ObjectiveMaxReturn,
	}, c)
	require.NoError(t, err)

	bySymbol := make(map[string]float64)
	for _, a := range result.Allocations {
		bySymbol[a.Symbol] = a.Weight
	}
	assert.InDelta(t, 0.7, bySymbol["AAA"], 1e-6)
	assert.InDelta(t, 0.3, bySymbol["BBB"], 1e-6)
	assert.InDelta(t, 0.0, bySymbol["CCC"], 1e-6)
}

func TestOptimizeMaxReturnSectorCaps(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"AAPL", "MSFT", "XOM"},
		Mu:      []float64{0.12, 0.11, 0.05},
		Cov: [][]float64{
			{0.04, 0, 0},
			{0, 0.04, 0},
			{0, 0, 0.02},
		},
		Sectors: map[string]string{
			"AAPL": "Technology",
			"MSFT": "Technology",
			"XOM":  "Energy",
		},
	}
	c := domain.Constraints{
		MinWeight:  0.0,
		MaxWeight:  1.0,
		SectorCaps: map[string]float64{"Technology": 0.5},
	}

	result, err := opt.Optimize(context.Background(), in, domain.OptimizationObjective{
		Type: domain.ObjectiveMaxReturn,
	}, c)
	require.NoError(t, err)
	assertValidWeights(t, result.Allocations, c)

	techWeight := 0.0
	for _, a := range result.Allocations {
		if in.Sectors[a.Symbol] == "Technology" {
			techWeight += a.Weight
		}
	}
	assert.LessOrEqual(t, techWeight, 0.5+1e-6)
}

func TestOptimizeMinRisk(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"HIGH", "LOW"},
		Mu:      []float64{0.10, 0.06},
		Cov: [][]float64{
			{0.04, 0},
			{0, 0.01},
		},
	}
	c := unconstrained()

	result, err := opt.Optimize(context.Background(), in, domain.OptimizationObjective{
		Type: domain.ObjectiveMinRisk,
	}, c)
	require.NoError(t, err)
	assertValidWeights(t, result.Allocations, c)

	bySymbol := make(map[string]float64)
	for _, a := range result.Allocations {
		bySymbol[a.Symbol] = a.Weight
	}
	// Analytic minimum-variance split for uncorrelated assets is
	// inversely proportional to variance: 0.2 / 0.8.
	assert.InDelta(t, 0.2, bySymbol["HIGH"], 0.03)
	assert.InDelta(t, 0.8, bySymbol["LOW"], 0.03)

	// Min-risk portfolio must not be riskier than equal weight.
	equalRisk := 0.5 * 0.5 * (0.04 + 0.01)
	assert.LessOrEqual(t, result.ExpectedRisk*result.ExpectedRisk, equalRisk+1e-4)
}

func TestOptimizeMaxSharpe(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"GROWTH", "VALUE"},
		Mu:      []float64{0.10, 0.05},
		Cov: [][]float64{
			{0.04, 0},
			{0, 0.04},
		},
	}
	c := domain.Constraints{MinWeight: 0.0, MaxWeight: 1.0, RiskFreeRate: 0.02}

	result, err := opt.Optimize(context.Background(), in, domain.OptimizationObjective{
		Type: domain.ObjectiveMaxSharpe,
	}, c)
	require.NoError(t, err)
	assertValidWeights(t, result.Allocations, c)

	bySymbol := make(map[string]float64)
	for _, a := range result.Allocations {
		bySymbol[a.Symbol] = a.Weight
	}
	// With equal variances the tangency portfolio tilts toward the asset
	// with the larger excess return.
	assert.Greater(t, bySymbol["GROWTH"], bySymbol["VALUE"])
	assert.Greater(t, result.SharpeRatio, 0.0)
}

func TestOptimizeUnknownObjective(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"AAPL"},
		Mu:      []float64{0.1},
		Cov:     [][]float64{{0.04}},
	}

	_, err := opt.Optimize(context.Background(), in, domain.OptimizationObjective{
		Type: domain.ObjectiveType("BOGUS"),
	}, unconstrained())
	require.Error(t, err)
}

func TestRiskParity(t *testing.T) {
	opt := testOptimizer()
	symbols := []string{"HIGH", "LOW"}
	cov := [][]float64{
		{0.04, 0},
		{0, 0.01},
	}

	result, err := opt.RiskParity(context.Background(), cov, symbols, unconstrained())
	require.NoError(t, err)
	assert.True(t, result.Converged)
	assert.Greater(t, result.Iterations, 0)

	sum := 0.0
	for _, w := range result.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	// Parity for uncorrelated assets weights inversely to volatility:
	// sigma 0.2 vs 0.1 gives 1/3 vs 2/3.
	assert.InDelta(t, 1.0/3.0, result.Weights["HIGH"], 0.01)
	assert.InDelta(t, 2.0/3.0, result.Weights["LOW"], 0.01)

	// Each asset contributes half the total risk.
	assert.InDelta(t, 0.5, result.RiskContributions["HIGH"], 0.01)
	assert.InDelta(t, 0.5, result.RiskContributions["LOW"], 0.01)
}

func TestRiskParityIdenticalAssets(t *testing.T) {
	opt := testOptimizer()
	symbols := []string{"A", "B", "C"}
	cov := [][]float64{
		{0.04, 0, 0},
		{0, 0.04, 0},
		{0, 0, 0.04},
	}

	result, err := opt.RiskParity(context.Background(), cov, symbols, unconstrained())
	require.NoError(t, err)
	assert.True(t, result.Converged)
	for _, sym := range symbols {
		assert.InDelta(t, 1.0/3.0, result.Weights[sym], 1e-4)
	}
}

func TestRiskParityCancelledContext(t *testing.T) {
	opt := testOptimizer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opt.RiskParity(ctx, [][]float64{{0.04, 0}, {0, 0.01}}, []string{"A", "B"}, unconstrained())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRiskParityInfeasibleConstraints(t *testing.T) {
	opt := testOptimizer()

	_, err := opt.RiskParity(context.Background(),
		[][]float64{{0.04, 0}, {0, 0.01}},
		[]string{"A", "B"},
		domain.Constraints{MinWeight: 0.6, MaxWeight: 1.0})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInfeasibleConstraints)
}

func TestEfficientFrontier(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"BOND", "BLEND", "STOCK"},
		Mu:      []float64{0.04, 0.07, 0.11},
		Cov: [][]float64{
			{0.01, 0, 0},
			{0, 0.03, 0},
			{0, 0, 0.06},
		},
	}
	c := unconstrained()

	frontier, err := opt.EfficientFrontier(context.Background(), in, c, 10)
	require.NoError(t, err)
	assert.False(t, frontier.Partial)
	require.GreaterOrEqual(t, len(frontier.Points), 2)

	for i, p := range frontier.Points {
		assertValidWeights(t, p.Allocations, c)
		if i > 0 {
			prev := frontier.Points[i-1]
			assert.GreaterOrEqual(t, p.Return, prev.Return-1e-9,
				"frontier returns must be non-decreasing")
			assert.GreaterOrEqual(t, p.Risk, prev.Risk-1e-9,
				"frontier risk must be non-decreasing")
		}
	}
}

func TestEfficientFrontierInfeasible(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"A", "B"},
		Mu:      []float64{0.05, 0.08},
		Cov:     [][]float64{{0.02, 0}, {0, 0.03}},
	}

	_, err := opt.EfficientFrontier(context.Background(), in,
		domain.Constraints{MinWeight: 0.6, MaxWeight: 1.0}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInfeasibleConstraints)
}

func TestEfficientFrontierCancelledContext(t *testing.T) {
	opt := testOptimizer()
	in := Input{
		Symbols: []string{"A", "B"},
		Mu:      []float64{0.05, 0.08},
		Cov:     [][]float64{{0.02, 0}, {0, 0.03}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frontier, err := opt.EfficientFrontier(ctx, in, unconstrained(), 10)
	require.NoError(t, err)
	assert.True(t, frontier.Partial)
	assert.Empty(t, frontier.Points)
}

func TestNormalizeWithBounds(t *testing.T) {
	tests := []struct {
		name     string
		weights  []float64
		min, max float64
		want     []float64
	}{
		{
			name:    "redistribute clipped excess",
			weights: []float64{0.7, 0.2, 0.1},
			min:     0.0, max: 0.5,
			want: []float64{0.5, 0.3, 0.2},
		},
		{
			name:    "already normalized",
			weights: []float64{0.4, 0.6},
			min:     0.0, max: 1.0,
			want: []float64{0.4, 0.6},
		},
		{
			name:    "lift to floor",
			weights: []float64{0.9, 0.1, 0.0},
			min:     0.1, max: 0.8,
			want: []float64{0.8, 0.1, 0.1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeWithBounds(tt.weights, tt.min, tt.max)

			sum := 0.0
			for i, w := range got {
				sum += w
				assert.InDelta(t, tt.want[i], w, 1e-6)
			}
			assert.InDelta(t, 1.0, sum, 1e-6)
		})
	}
}
