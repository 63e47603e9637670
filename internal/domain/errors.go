package domain

import "errors"

// Engine error taxonomy. Callers match with errors.Is; everything else that
// bubbles out of the engine is an internal failure wrapped with context.
var (
	// ErrInsufficientData means the return history is too short for the
	// requested estimate. Retrying later with more history recovers it;
	// it is never masked with zeros.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInfeasibleConstraints means the box constraints cannot produce
	// weights that sum to 1. The caller must adjust the request.
	ErrInfeasibleConstraints = errors.New("infeasible constraints")

	// ErrDidNotConverge means an iterative solver hit its iteration cap.
	// The best-known iterate is still attached to the returned result.
	ErrDidNotConverge = errors.New("optimization did not converge")

	// ErrInvalidTargetAllocation means user-supplied target weights failed
	// validation (e.g. do not sum to 1 within tolerance).
	ErrInvalidTargetAllocation = errors.New("invalid target allocation")

	// ErrPortfolioNotFound is reported by the portfolio store and
	// propagated unchanged.
	ErrPortfolioNotFound = errors.New("portfolio not found")
)
