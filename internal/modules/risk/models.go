package risk

// Recommendation rule thresholds. The rule table is ordered and every
// matching rule is emitted, not just the first.
const (
	ConcentrationAdvisory = 25.0 // HHI score above this suggests diversifying
	LiquidityAdvisory     = 30.0 // liquidity risk above this favors liquid instruments
	BetaAdvisory          = 1.5  // beta above this suggests defensive positions
	VolatilityAdvisory    = 0.25 // annualized volatility above this suggests trimming exposure
)

// rule is one entry of the recommendation table.
type rule struct {
	matches func(snapshotInputs) bool
	message string
}

// snapshotInputs carries the computed metrics the rule table evaluates.
type snapshotInputs struct {
	Concentration float64
	Liquidity     float64
	Beta          float64
	Volatility    float64 // annualized, as a fraction
}

// recommendationRules is evaluated top to bottom; order is part of the
// output contract.
var recommendationRules = []rule{
	{
		matches: func(in snapshotInputs) bool { return in.Concentration > ConcentrationAdvisory },
		message: "High concentration risk: consider diversifying across more positions",
	},
	{
		matches: func(in snapshotInputs) bool { return in.Liquidity > LiquidityAdvisory },
		message: "Elevated liquidity risk: favor more liquid instruments",
	},
	{
		matches: func(in snapshotInputs) bool { return in.Beta > BetaAdvisory },
		message: "High market sensitivity: consider adding defensive positions",
	},
	{
		matches: func(in snapshotInputs) bool { return in.Volatility > VolatilityAdvisory },
		message: "High portfolio volatility: consider trimming the riskiest positions",
	},
}

// healthyMessage is emitted when no rule fires.
const healthyMessage = "Risk profile is healthy"
