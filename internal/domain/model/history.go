package model

import "time"

// SessionData is the game-specific part of a persisted history record.
type SessionData struct {
	SessionID     string             `json:"sessionId"`
	Status        Status             `json:"status,omitempty"`
	Error         bool               `json:"error,omitempty"`
	Payload       Payload            `json:"payload"`
	AverageScores map[string]float64 `json:"averageScores,omitempty"`
}

// HistoryRecord is a long-lived session record kept in the session store.
// Duration is in seconds.
type HistoryRecord struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	GameType     GameType    `json:"game_type"`
	Topic        string      `json:"topic,omitempty"`
	Duration     float64     `json:"duration"`
	EnergyLevels []float64   `json:"energy_levels,omitempty"`
	Completed    bool        `json:"completed"`
	SessionData  SessionData `json:"session_data"`
	AudioFiles   []string    `json:"audio_files,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// UserGameStats is the per-user, per-game rollup.
type UserGameStats struct {
	UserID             string    `json:"user_id"`
	GameType           GameType  `json:"game_type"`
	TotalSessions      int       `json:"total_sessions"`
	TotalDuration      float64   `json:"total_duration"`
	AverageEnergyLevel *float64  `json:"average_energy_level,omitempty"`
	LastPlayed         time.Time `json:"last_played"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// StatsDelta is what one finished session contributes to UserGameStats.
type StatsDelta struct {
	Duration     float64
	EnergyLevels []float64
}
