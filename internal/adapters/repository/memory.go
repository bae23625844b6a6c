package repository

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

type statsKey struct {
	userID string
	game   model.GameType
}

// MemoryStore is a process-local Store used when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.HistoryRecord
	stats    map[statsKey]model.UserGameStats

	now   func() time.Time
	newID func() string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]model.HistoryRecord),
		stats:    make(map[statsKey]model.UserGameStats),
		now:      time.Now,
		newID:    newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CreateSession(_ context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	if rec.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if _, exists := s.sessions[rec.ID]; exists {
		return nil, fmt.Errorf("%w: record %q already exists", ErrInvalidInput, rec.ID)
	}
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec = cloneRecord(rec)
	s.sessions[rec.ID] = rec
	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[rec.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	rec.CreatedAt = cur.CreatedAt
	rec.UpdatedAt = s.now()
	rec = cloneRecord(rec)
	s.sessions[rec.ID] = rec
	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*model.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemoryStore) ListUserSessions(_ context.Context, userID string, game model.GameType) ([]model.HistoryRecord, error) {
	s.mu.RLock()
	var out []model.HistoryRecord
	for _, rec := range s.sessions {
		if rec.UserID != userID || (game != "" && rec.GameType != game) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.HistoryRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) RecordGamePlayed(_ context.Context, userID string, game model.GameType, delta model.StatsDelta, at time.Time) (*model.UserGameStats, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statsKey{userID: userID, game: game}
	st, ok := s.stats[key]
	if !ok {
		st = model.UserGameStats{UserID: userID, GameType: game, CreatedAt: at}
	}
	st.TotalSessions++
	st.TotalDuration += delta.Duration
	if avg := meanEnergy(delta.EnergyLevels); avg != nil {
		st.AverageEnergyLevel = avg
	}
	st.LastPlayed = at
	st.UpdatedAt = at
	s.stats[key] = st

	out := st
	out.AverageEnergyLevel = cloneFloat(st.AverageEnergyLevel)
	return &out, nil
}

func (s *MemoryStore) ListUserGameStats(_ context.Context, userID string) ([]model.UserGameStats, error) {
	s.mu.RLock()
	var out []model.UserGameStats
	for k, st := range s.stats {
		if k.userID != userID {
			continue
		}
		st.AverageEnergyLevel = cloneFloat(st.AverageEnergyLevel)
		out = append(out, st)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.UserGameStats) int { return cmp.Compare(a.GameType, b.GameType) })
	return out, nil
}

func cloneRecord(rec model.HistoryRecord) model.HistoryRecord {
	rec.EnergyLevels = slices.Clone(rec.EnergyLevels)
	rec.AudioFiles = slices.Clone(rec.AudioFiles)
	rec.SessionData.Payload.WordList = slices.Clone(rec.SessionData.Payload.WordList)
	rec.SessionData.AverageScores = maps.Clone(rec.SessionData.AverageScores)
	return rec
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
