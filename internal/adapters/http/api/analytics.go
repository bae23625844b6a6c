package api

import (
	"context"
	"net/http"

	service "github.com/okian/oratora/internal/app"
	"github.com/okian/oratora/internal/domain/analytics"
	"github.com/okian/oratora/pkg/logger"
)

// AnalyticsDependencies defines the progress reports over stored history.
type AnalyticsDependencies interface {
	Analytics(ctx context.Context, userID, timeframe string) (*service.AnalyticsReport, error)
	SkillAnalytics(ctx context.Context, userID, skill, game string) (*analytics.SkillAnalysis, error)
	Achievements(ctx context.Context, userID string) (*service.AchievementsReport, error)
	UserStats(ctx context.Context, userID string) (*service.UserStatsReport, error)
}

// AnalyticsHandler serves per-user progress reports.
type AnalyticsHandler struct {
	deps   AnalyticsDependencies
	logger logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies, cfg config) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps, logger: cfg.logger}
}

// HandleReport handles GET /api/v1/analytics/{userId}?timeframe=.
func (h *AnalyticsHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Analytics(r.Context(), r.PathValue("userId"), r.URL.Query().Get("timeframe"))
	if err != nil {
		fail(r.Context(), h.logger, w, "api.analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSkill handles GET /api/v1/analytics/{userId}/skills?skill=&gameType=.
func (h *AnalyticsHandler) HandleSkill(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.deps.SkillAnalytics(r.Context(), r.PathValue("userId"), q.Get("skill"), q.Get("gameType"))
	if err != nil {
		fail(r.Context(), h.logger, w, "api.analytics_skills", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleAchievements handles GET /api/v1/analytics/{userId}/achievements.
func (h *AnalyticsHandler) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Achievements(r.Context(), r.PathValue("userId"))
	if err != nil {
		fail(r.Context(), h.logger, w, "api.analytics_achievements", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleUserStats handles GET /api/v1/analytics/{userId}/stats.
func (h *AnalyticsHandler) HandleUserStats(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.UserStats(r.Context(), r.PathValue("userId"))
	if err != nil {
		fail(r.Context(), h.logger, w, "api.analytics_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
