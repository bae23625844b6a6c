// Package repository holds the long-lived session store: per-session history
// records and per-user game stats. The evaluation pipeline mirrors into it on
// a best-effort basis; the in-memory registry stays authoritative for polling.
package repository

import (
	"context"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// Store provides read/write access to history records and user stats.
type Store interface {
	// CreateSession inserts rec. An empty ID is replaced by a generated one.
	// The stored record is returned.
	CreateSession(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error)
	// UpdateSession replaces every field of the record with rec.ID except
	// CreatedAt. Returns ErrNotFound if no such record exists.
	UpdateSession(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error)
	// GetSession returns ErrNotFound if the record is unknown.
	GetSession(ctx context.Context, id string) (*model.HistoryRecord, error)
	// ListUserSessions returns the user's records newest first. An empty
	// game returns every game.
	ListUserSessions(ctx context.Context, userID string, game model.GameType) ([]model.HistoryRecord, error)

	// RecordGamePlayed adds one finished session to the user's stats for game.
	// The average energy level is replaced by the mean of delta.EnergyLevels
	// when there are any, and kept otherwise.
	RecordGamePlayed(ctx context.Context, userID string, game model.GameType, delta model.StatsDelta, at time.Time) (*model.UserGameStats, error)
	// ListUserGameStats returns one row per game the user has played.
	ListUserGameStats(ctx context.Context, userID string) ([]model.UserGameStats, error)
}

func meanEnergy(levels []float64) *float64 {
	if len(levels) == 0 {
		return nil
	}
	var sum float64
	for _, l := range levels {
		sum += l
	}
	avg := sum / float64(len(levels))
	return &avg
}
