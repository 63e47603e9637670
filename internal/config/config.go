// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// RiskDefaults holds the named risk-model constants the engine treats as
// tunable configuration rather than magic numbers. The liquidity midpoint and
// the recovery-time factor are heuristics, not calibrated models.
type RiskDefaults struct {
	NeutralLiquidityScore float64 // liquidity score assumed when no holdings exist
	RecoveryDaysPerShock  float64 // recovery days per absolute unit of shock factor
	MinVaRObservations    int     // minimum return observations for VaR/ES
	MonteCarloSims        int     // simulations for the diagnostic shortfall estimate
}

// SolverDefaults bounds the iterative solvers.
type SolverDefaults struct {
	RiskParityMaxIterations int
	RiskParityTolerance     float64
	DefaultFrontierPoints   int
	MaxFrontierPoints       int
}

// RebalanceDefaults controls the rebalancing planner.
type RebalanceDefaults struct {
	WeightTolerance    float64 // |delta| below this classifies as HOLD
	TargetSumTolerance float64 // target weights must sum to 1 within this
	CostFixed          float64 // flat fee per trade
	CostPercent        float64 // proportional fee as a fraction
	MaxCostRatio       float64 // trades whose cost exceeds this fraction of value become HOLD; 0 disables
}

// Config holds application configuration
type Config struct {
	DataDir     string
	Port        int
	LogLevel    string
	DevMode     bool
	BenchmarkID string

	Risk      RiskDefaults
	Solver    SolverDefaults
	Rebalance RebalanceDefaults
}

// Load reads configuration from .env (when present) and the environment.
func Load() (*Config, error) {
	// Missing .env is fine; env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:     getEnv("DATA_DIR", "./data"),
		Port:        getEnvInt("PORT", 8090),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DevMode:     getEnvBool("DEV_MODE", false),
		BenchmarkID: getEnv("BENCHMARK_ID", "SPX"),
		Risk: RiskDefaults{
			NeutralLiquidityScore: getEnvFloat("RISK_NEUTRAL_LIQUIDITY", 50.0),
			RecoveryDaysPerShock:  getEnvFloat("RISK_RECOVERY_DAYS_PER_SHOCK", 200.0),
			MinVaRObservations:    getEnvInt("RISK_MIN_VAR_OBSERVATIONS", 30),
			MonteCarloSims:        getEnvInt("RISK_MONTE_CARLO_SIMS", 10000),
		},
		Solver: SolverDefaults{
			RiskParityMaxIterations: getEnvInt("SOLVER_RISK_PARITY_MAX_ITER", 200),
			RiskParityTolerance:     getEnvFloat("SOLVER_RISK_PARITY_TOLERANCE", 1e-4),
			DefaultFrontierPoints:   getEnvInt("SOLVER_FRONTIER_POINTS", 20),
			MaxFrontierPoints:       getEnvInt("SOLVER_FRONTIER_POINTS_MAX", 50),
		},
		Rebalance: RebalanceDefaults{
			WeightTolerance:    getEnvFloat("REBALANCE_WEIGHT_TOLERANCE", 0.005),
			TargetSumTolerance: getEnvFloat("REBALANCE_TARGET_SUM_TOLERANCE", 0.01),
			CostFixed:          getEnvFloat("REBALANCE_COST_FIXED", 2.0),
			CostPercent:        getEnvFloat("REBALANCE_COST_PERCENT", 0.002),
			MaxCostRatio:       getEnvFloat("REBALANCE_MAX_COST_RATIO", 0.01),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Risk.MinVaRObservations < 2 {
		return fmt.Errorf("RISK_MIN_VAR_OBSERVATIONS must be >= 2, got %d", c.Risk.MinVaRObservations)
	}
	if c.Solver.RiskParityMaxIterations <= 0 {
		return fmt.Errorf("SOLVER_RISK_PARITY_MAX_ITER must be positive")
	}
	if c.Solver.MaxFrontierPoints < c.Solver.DefaultFrontierPoints {
		return fmt.Errorf("SOLVER_FRONTIER_POINTS_MAX (%d) below SOLVER_FRONTIER_POINTS (%d)",
			c.Solver.MaxFrontierPoints, c.Solver.DefaultFrontierPoints)
	}
	if c.Rebalance.TargetSumTolerance <= 0 {
		return fmt.Errorf("REBALANCE_TARGET_SUM_TOLERANCE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
