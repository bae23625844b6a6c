package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/okian/oratora/internal/adapters/blob"
	"github.com/okian/oratora/internal/domain/analytics"
	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/internal/domain/status"
)

// Status returns the polling view of a session. A session that exists
// under another game is reported as not found.
func (s *Service) Status(_ context.Context, game model.GameType, id string) (status.View, error) {
	if err := requireSessionID(id); err != nil {
		return status.View{}, err
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return status.View{}, err
	}
	if sess.GameType != game {
		return status.View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return status.Project(sess, s.queueInfo()), nil
}

// Debug dumps every session and the waiting jobs.
func (s *Service) Debug(context.Context) status.DebugState {
	return status.Debug(s.sessions.Snapshot(), s.queue.Snapshot(), s.queue.Draining())
}

// PromptAudio returns the stored recording of one rapid-fire prompt and
// its content type.
func (s *Service) PromptAudio(ctx context.Context, id string, promptIndex int) ([]byte, string, error) {
	if err := requireSessionID(id); err != nil {
		return nil, "", err
	}
	if promptIndex < 1 {
		return nil, "", fmt.Errorf("%w: promptIndex must be positive", ErrBadRequest)
	}
	return s.audio(ctx, blob.PromptKey(id, promptIndex))
}

// RecordingAudio returns the single recording of a conductor or
// triple-step session.
func (s *Service) RecordingAudio(ctx context.Context, game model.GameType, id string) ([]byte, string, error) {
	if err := requireSessionID(id); err != nil {
		return nil, "", err
	}
	if game == model.GameRapidFire {
		return nil, "", fmt.Errorf("%w: rapid-fire audio is addressed by prompt", ErrBadRequest)
	}
	return s.audio(ctx, blob.RecordingKey(id, game))
}

func (s *Service) audio(ctx context.Context, key string) ([]byte, string, error) {
	data, err := s.blobs.Read(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return data, blob.ContentType(key), nil
}

// AnalyticsReport is the full progress report of one user.
type AnalyticsReport struct {
	Analytics analytics.Report    `json:"analytics"`
	Timeframe analytics.Timeframe `json:"timeframe"`
}

// AchievementsReport lists every achievement, locked or not.
type AchievementsReport struct {
	Achievements map[string]analytics.Achievement `json:"achievements"`
}

// UserStatsReport is the per-game rollup of one user.
type UserStatsReport struct {
	UserID string                `json:"userId"`
	Stats  []model.UserGameStats `json:"stats"`
}

// Analytics aggregates the user's history within timeframe. An empty
// timeframe means the default window.
func (s *Service) Analytics(ctx context.Context, userID, timeframe string) (*AnalyticsReport, error) {
	tf, err := analytics.ParseTimeframe(timeframe)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	records, err := s.history(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	return &AnalyticsReport{
		Analytics: analytics.Analyze(records, tf, s.now()),
		Timeframe: tf,
	}, nil
}

// SkillAnalytics analyses one skill, optionally within one game.
func (s *Service) SkillAnalytics(ctx context.Context, userID, skill, game string) (*analytics.SkillAnalysis, error) {
	if skill == "" {
		return nil, fmt.Errorf("%w: skill is required", ErrBadRequest)
	}
	if !slices.Contains(analytics.TrackedSkills, skill) {
		return nil, fmt.Errorf("%w: unknown skill %q", ErrBadRequest, skill)
	}
	var gt model.GameType
	if game != "" {
		parsed, err := model.ParseGameType(game)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		gt = parsed
	}
	records, err := s.history(ctx, userID, gt)
	if err != nil {
		return nil, err
	}
	res := analytics.SkillPerformance(records, skill, gt)
	return &res, nil
}

// Achievements evaluates every achievement over the user's whole history.
func (s *Service) Achievements(ctx context.Context, userID string) (*AchievementsReport, error) {
	records, err := s.history(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	return &AchievementsReport{Achievements: analytics.Achievements(records)}, nil
}

// UserStats returns the user's per-game rollup rows.
func (s *Service) UserStats(ctx context.Context, userID string) (*UserStatsReport, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrBadRequest)
	}
	rows, err := s.store.ListUserGameStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: list user stats: %w", err)
	}
	if rows == nil {
		rows = []model.UserGameStats{}
	}
	return &UserStatsReport{UserID: userID, Stats: rows}, nil
}

func (s *Service) history(ctx context.Context, userID string, game model.GameType) ([]model.HistoryRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrBadRequest)
	}
	records, err := s.store.ListUserSessions(ctx, userID, game)
	if err != nil {
		return nil, fmt.Errorf("service: list user sessions: %w", err)
	}
	return records, nil
}
