// Package statistics implements the pairwise estimation layer of the risk
// engine: correlation/covariance over date-aligned return series, historical
// VaR and expected shortfall, and benchmark beta/alpha regression.
//
// All numerical edge cases (NaN, zero variance, too-few overlapping
// observations) are converted into typed domain errors at this boundary;
// raw floating-point artifacts never escape upward.
package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/domain"
	"github.com/aristath/risk-engine/pkg/formulas"
)

// MinPairObservations is the minimum date overlap for a defined correlation.
const MinPairObservations = 2

// Calculator performs statistical estimation over return series.
type Calculator struct {
	minVaRObservations int
	log                zerolog.Logger
}

// NewCalculator creates a new statistics calculator. minVaRObservations is
// the sample floor below which VaR/ES fail with ErrInsufficientData.
func NewCalculator(minVaRObservations int, log zerolog.Logger) *Calculator {
	if minVaRObservations < MinPairObservations {
		minVaRObservations = MinPairObservations
	}
	return &Calculator{
		minVaRObservations: minVaRObservations,
		log:                log.With().Str("component", "statistics").Logger(),
	}
}

// AlignPair intersects two series on their date axis and returns the paired
// observation vectors in ascending date order. Gaps are dropped, never
// matched by index.
func AlignPair(a, b domain.ReturnSeries) (x, y []float64) {
	byDate := make(map[string]float64, len(b.Points))
	for _, p := range b.Points {
		byDate[p.Date] = p.DailyReturn
	}

	for _, p := range a.Points {
		if v, ok := byDate[p.Date]; ok {
			x = append(x, p.DailyReturn)
			y = append(y, v)
		}
	}
	return x, y
}

// AlignAll intersects any number of series on their common date axis.
// Returns the shared dates in ascending order and one observation vector per
// symbol, all of equal length.
func AlignAll(series []domain.ReturnSeries) ([]string, map[string][]float64) {
	if len(series) == 0 {
		return nil, map[string][]float64{}
	}

	counts := make(map[string]int)
	for _, s := range series {
		seen := make(map[string]bool, len(s.Points))
		for _, p := range s.Points {
			if !seen[p.Date] {
				seen[p.Date] = true
				counts[p.Date]++
			}
		}
	}

	dates := make([]string, 0)
	for date, n := range counts {
		if n == len(series) {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	aligned := make(map[string][]float64, len(series))
	for _, s := range series {
		byDate := make(map[string]float64, len(s.Points))
		for _, p := range s.Points {
			byDate[p.Date] = p.DailyReturn
		}
		values := make([]float64, len(dates))
		for i, date := range dates {
			values[i] = byDate[date]
		}
		aligned[s.Symbol] = values
	}

	return dates, aligned
}

// CorrelationMatrix computes the full pairwise Pearson correlation matrix
// over the common date axis of the given series. A pair with fewer than two
// overlapping observations, or with zero variance on either side, makes the
// correlation undefined and surfaces as ErrInsufficientData rather than a
// silent default.
func (c *Calculator) CorrelationMatrix(series []domain.ReturnSeries) (map[string]map[string]float64, error) {
	dates, aligned := AlignAll(series)
	if len(series) > 0 && len(dates) < MinPairObservations {
		return nil, fmt.Errorf("%w: only %d overlapping observations across %d series",
			domain.ErrInsufficientData, len(dates), len(series))
	}

	matrix := make(map[string]map[string]float64, len(series))
	for _, a := range series {
		row := make(map[string]float64, len(series))
		for _, b := range series {
			if a.Symbol == b.Symbol {
				row[b.Symbol] = 1.0
				continue
			}
			r, ok := formulas.Correlation(aligned[a.Symbol], aligned[b.Symbol])
			if !ok {
				return nil, fmt.Errorf("%w: correlation undefined for pair %s/%s",
					domain.ErrInsufficientData, a.Symbol, b.Symbol)
			}
			row[b.Symbol] = r
		}
		matrix[a.Symbol] = row
	}

	c.log.Debug().
		Int("num_series", len(series)).
		Int("overlapping_dates", len(dates)).
		Msg("Computed correlation matrix")

	return matrix, nil
}

// CovarianceMatrix computes the sample covariance matrix over the common
// date axis. Returns the matrix and the symbol order of its rows/columns
// (symbols sorted ascending for determinism).
func (c *Calculator) CovarianceMatrix(series []domain.ReturnSeries) ([][]float64, []string, error) {
	dates, aligned := AlignAll(series)
	if len(dates) < MinPairObservations {
		return nil, nil, fmt.Errorf("%w: only %d overlapping observations",
			domain.ErrInsufficientData, len(dates))
	}

	symbols := make([]string, 0, len(series))
	for _, s := range series {
		symbols = append(symbols, s.Symbol)
	}
	sort.Strings(symbols)

	n := len(symbols)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v, ok := formulas.Covariance(aligned[symbols[i]], aligned[symbols[j]])
			if !ok {
				return nil, nil, fmt.Errorf("%w: covariance undefined for pair %s/%s",
					domain.ErrInsufficientData, symbols[i], symbols[j])
			}
			cov[i][j] = v
			cov[j][i] = v
		}
	}

	return cov, symbols, nil
}

// VaR computes historical Value-at-Risk and expected shortfall from realized
// portfolio returns, scaled by portfolio value and the square root of the
// horizon. Fails with ErrInsufficientData below the configured sample floor;
// it never silently returns zero.
func (c *Calculator) VaR(
	returns []float64,
	confidence float64,
	horizonDays int,
	portfolioValue float64,
) (domain.VaRResult, error) {
	if len(returns) < c.minVaRObservations {
		return domain.VaRResult{}, fmt.Errorf("%w: VaR needs at least %d observations, got %d",
			domain.ErrInsufficientData, c.minVaRObservations, len(returns))
	}
	if confidence <= 0 || confidence >= 1 {
		return domain.VaRResult{}, fmt.Errorf("confidence must be in (0,1), got %v", confidence)
	}
	if horizonDays < 1 {
		horizonDays = 1
	}

	scale := portfolioValue * formulas.HorizonScale(horizonDays)
	v := formulas.HistoricalVaR(returns, confidence) * scale
	es := formulas.HistoricalShortfall(returns, confidence) * scale

	if math.IsNaN(v) || math.IsNaN(es) {
		return domain.VaRResult{}, fmt.Errorf("%w: VaR computation produced NaN", domain.ErrInsufficientData)
	}

	return domain.VaRResult{
		VaR:               v,
		ExpectedShortfall: es,
		Confidence:        confidence,
		HorizonDays:       horizonDays,
		Observations:      len(returns),
	}, nil
}

// BetaAlpha regresses portfolio daily returns on benchmark daily returns:
// beta = cov(p,m)/var(m), alpha = mean(p) - beta*mean(m).
//
// With zero benchmark variance or fewer than two aligned observations the
// regression is undefined and the neutral fallback (beta=1, alpha=0) is
// returned. This fallback is deliberate and differs from the VaR policy:
// a neutral beta keeps downstream reports usable while a masked VaR would
// understate risk.
func (c *Calculator) BetaAlpha(portfolio, benchmark domain.ReturnSeries) (beta, alpha float64) {
	p, m := AlignPair(portfolio, benchmark)
	if len(p) < MinPairObservations {
		c.log.Debug().
			Int("aligned_observations", len(p)).
			Msg("Insufficient aligned data for beta regression, using neutral fallback")
		return 1.0, 0.0
	}

	varM := formulas.Variance(m)
	covPM, ok := formulas.Covariance(p, m)
	if !ok || varM == 0 || math.IsNaN(varM) {
		c.log.Debug().Msg("Benchmark variance undefined or zero, using neutral fallback")
		return 1.0, 0.0
	}

	beta = covPM / varM
	alpha = formulas.Mean(p) - beta*formulas.Mean(m)

	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 1.0, 0.0
	}
	return beta, alpha
}
