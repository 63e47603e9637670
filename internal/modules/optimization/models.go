package optimization

// Input is the numerical problem handed to the optimizer: expected returns
// and covariance in a shared, deterministic symbol order (sorted ascending).
// Mu and Cov are annualized so that Sharpe ratios use the caller's annual
// risk-free rate directly.
type Input struct {
	Symbols []string
	Mu      []float64
	Cov     [][]float64
	Sectors map[string]string // optional symbol -> sector, for sector caps
}

// weightEpsilon is the tolerance on the sum-to-one invariant.
const weightEpsilon = 1e-6

// penaltyWeight scales the soft-constraint terms of the numerical solvers.
const penaltyWeight = 1000.0
