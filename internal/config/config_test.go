package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 50.0, cfg.Risk.NeutralLiquidityScore)
	assert.Equal(t, 200.0, cfg.Risk.RecoveryDaysPerShock)
	assert.Equal(t, 30, cfg.Risk.MinVaRObservations)
	assert.Equal(t, 200, cfg.Solver.RiskParityMaxIterations)
	assert.InDelta(t, 1e-4, cfg.Solver.RiskParityTolerance, 1e-12)
	assert.Equal(t, 0.01, cfg.Rebalance.TargetSumTolerance)
	assert.Equal(t, 0.01, cfg.Rebalance.MaxCostRatio)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("RISK_NEUTRAL_LIQUIDITY", "40")
	t.Setenv("SOLVER_FRONTIER_POINTS", "10")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 40.0, cfg.Risk.NeutralLiquidityScore)
	assert.Equal(t, 10, cfg.Solver.DefaultFrontierPoints)
	assert.True(t, cfg.DevMode)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_FrontierBoundsValidated(t *testing.T) {
	t.Setenv("SOLVER_FRONTIER_POINTS", "60")
	t.Setenv("SOLVER_FRONTIER_POINTS_MAX", "50")

	_, err := Load()
	assert.Error(t, err)
}
