package model

import "time"

// Audio is a recorded clip and where it was persisted.
type Audio struct {
	Data     []byte
	MIMEType string
	Key      string
}

// PromptContext carries the game-specific input the scoring prompt is built from.
type PromptContext struct {
	// rapid-fire
	Prompt       string
	PromptIndex  int
	TotalPrompts int
	Difficulty   string
	Seconds      int
	ResponseTime float64
	TotalTime    float64

	// conductor
	Topic           string
	DurationMinutes int
	ActualDuration  time.Duration
	EnergyChanges   []EnergyChange
	BreathMoments   []BreathMoment

	// triple-step
	WordList        []string
	IntegratedWords []string
	MissedWords     []string
	Transcription   string
	ActualTime      float64
	CompletedEarly  bool
}

// NoSlot marks a job for a single-evaluation game.
const NoSlot = -1

// Job is one unit of scoring work. It is immutable once enqueued.
type Job struct {
	SessionID  string
	Game       GameType
	Slot       int
	Audio      Audio
	Context    PromptContext
	EnqueuedAt time.Time
}
