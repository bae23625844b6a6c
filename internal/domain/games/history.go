package games

import (
	"slices"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// HistoryRecord renders s as the long-lived record mirrored to the session
// store. Completed is set once s has reached g's terminal status.
func HistoryRecord(s *model.Session, g Game, now time.Time) model.HistoryRecord {
	delta := g.StatsDelta(s)
	return model.HistoryRecord{
		ID:           s.StoreID,
		UserID:       s.UserID,
		GameType:     s.GameType,
		Topic:        s.Payload.Topic,
		Duration:     delta.Duration,
		EnergyLevels: delta.EnergyLevels,
		Completed:    g.Terminal(s.Status),
		SessionData: model.SessionData{
			SessionID:     s.ID,
			Status:        s.Status,
			Error:         s.Error,
			Payload:       s.Payload,
			AverageScores: g.AverageScores(s),
		},
		AudioFiles: slices.Clone(s.AudioKeys),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  now,
	}
}
