package http

import (
	"fmt"
	"net/http"
	"strconv"

	"finpilot/internal/advisor"
	"finpilot/internal/chart"
	"finpilot/internal/log"
)

const defaultProjectionYears = 30

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request, uid string) {
	fc, err := s.builder.Build(r.Context(), uid)
	if err != nil {
		writeError(w, r, log.OpBuild, err)
		return
	}
	NewJSONResponse().Body(fc).Write(w)
}

func (s *Server) projection(r *http.Request, uid string) (advisor.SavingsProjection, error) {
	years, err := queryInt(r, "years", defaultProjectionYears)
	if err != nil {
		return advisor.SavingsProjection{}, err
	}
	if years < 0 || years > advisor.MaxProjectionYears {
		return advisor.SavingsProjection{}, badRequest(fmt.Sprintf("years must be between 0 and %d", advisor.MaxProjectionYears))
	}
	return s.builder.Projection(r.Context(), uid, years)
}

func (s *Server) handleProjections(w http.ResponseWriter, r *http.Request, uid string) {
	p, err := s.projection(r, uid)
	if err != nil {
		writeError(w, r, "projection", err)
		return
	}
	NewJSONResponse().Body(p).Write(w)
}

func (s *Server) handleProjectionChart(w http.ResponseWriter, r *http.Request, uid string) {
	p, err := s.projection(r, uid)
	if err != nil {
		writeError(w, r, "projection_chart", err)
		return
	}
	title := fmt.Sprintf("Savings projection at %s%%", strconv.FormatFloat(p.GrowthRate, 'f', -1, 64))
	img, err := chart.ProjectionPNG(p.Points, title)
	if err != nil {
		writeError(w, r, "projection_chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

type goalSuccessResponse struct {
	GoalID         int64   `json:"goalId"`
	Name           string  `json:"name"`
	TargetAmount   float64 `json:"targetAmount"`
	TargetDate     string  `json:"targetDate"`
	SuccessPercent float64 `json:"successPercent"`
}

func (s *Server) handleGoalSuccess(w http.ResponseWriter, r *http.Request, uid string) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "goal_success", err)
		return
	}
	g, err := s.store.GetGoal(r.Context(), uid, id)
	if err != nil {
		writeError(w, r, "goal_success", err)
		return
	}
	assets, err := s.store.ListAssets(r.Context(), uid)
	if err != nil {
		writeError(w, r, "goal_success", err)
		return
	}
	NewJSONResponse().Body(goalSuccessResponse{
		GoalID:         g.ID,
		Name:           g.Name,
		TargetAmount:   g.TargetAmount,
		TargetDate:     g.TargetDate.Format("2006-01-02"),
		SuccessPercent: advisor.GoalSuccess(g, assets, s.builder.Now()),
	}).Write(w)
}
