package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/risk-engine/internal/domain"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "risk-engine",
	})
}

func (s *Server) handleAnalyzeRisk(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	metrics, err := s.engine.AnalyzePortfolioRisk(r.Context(), portfolioID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleCalculateVaR(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	confidence := 0.95
	if v := r.URL.Query().Get("confidence"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody("invalid confidence"))
			return
		}
		confidence = parsed
	}

	horizonDays := 1
	if v := r.URL.Query().Get("horizon_days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody("invalid horizon_days"))
			return
		}
		horizonDays = parsed
	}

	result, err := s.engine.CalculateVaR(r.Context(), portfolioID, confidence, horizonDays)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStressTest(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	var body struct {
		Scenarios []domain.StressScenario `json:"scenarios"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	results, err := s.engine.RunStressTest(r.Context(), portfolioID, body.Scenarios)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	var body struct {
		Objective   domain.OptimizationObjective `json:"objective"`
		Constraints domain.Constraints           `json:"constraints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	applyConstraintDefaults(&body.Constraints)

	result, err := s.engine.OptimizePortfolio(r.Context(), portfolioID, body.Objective, body.Constraints)
	if errors.Is(err, domain.ErrDidNotConverge) {
		// The best iterate is still useful; flag it rather than fail.
		s.writeJSON(w, http.StatusOK, result)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	var body struct {
		Constraints domain.Constraints `json:"constraints"`
		PointCount  int                `json:"point_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	applyConstraintDefaults(&body.Constraints)

	points, partial, err := s.engine.CalculateEfficientFrontier(
		r.Context(), portfolioID, body.Constraints, body.PointCount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"points":  points,
		"partial": partial,
	})
}

func (s *Server) handleRiskParity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbols     []string           `json:"symbols"`
		Covariance  [][]float64        `json:"covariance"`
		Constraints domain.Constraints `json:"constraints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	applyConstraintDefaults(&body.Constraints)

	result, err := s.engine.CalculateRiskParity(r.Context(), body.Symbols, body.Covariance, body.Constraints)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	var body struct {
		Targets map[string]float64 `json:"targets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	actions, err := s.engine.GenerateRebalancingProposal(r.Context(), portfolioID, body.Targets)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"actions": actions})
}

// applyConstraintDefaults fills the zero value with the widest valid box.
func applyConstraintDefaults(c *domain.Constraints) {
	if c.MaxWeight == 0 {
		c.MaxWeight = 1.0
	}
}

// writeError maps the domain error taxonomy to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPortfolioNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTargetAllocation),
		errors.Is(err, domain.ErrInfeasibleConstraints):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientData):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, status, errorBody(err.Error()))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
