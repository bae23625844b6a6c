// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"slices"
	"time"
)

// GameType identifies one of the speaking exercises.
type GameType string

const (
	GameRapidFire  GameType = "rapid-fire"
	GameConductor  GameType = "conductor"
	GameTripleStep GameType = "triple-step"
)

// GameTypes lists every game in display order.
var GameTypes = []GameType{GameRapidFire, GameConductor, GameTripleStep}

// ParseGameType validates s as a GameType.
func ParseGameType(s string) (GameType, error) {
	g := GameType(s)
	if !slices.Contains(GameTypes, g) {
		return "", fmt.Errorf("unknown game type %q", s)
	}
	return g, nil
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusInProgress       Status = "in-progress"
	StatusCompleted        Status = "completed"
	StatusEvaluated        Status = "evaluated"
	StatusEvaluationFailed Status = "evaluation_failed"
)

// Payload is the immutable game input captured when the session is created.
type Payload struct {
	Difficulty      string   `json:"difficulty,omitempty"`
	TotalPrompts    int      `json:"totalPrompts,omitempty"`
	Seconds         int      `json:"seconds,omitempty"`
	Topic           string   `json:"topic,omitempty"`
	DurationMinutes int      `json:"duration,omitempty"`
	WordList        []string `json:"wordList,omitempty"`
}

// EnergyChange is a conductor cue recorded while the user speaks.
type EnergyChange struct {
	EnergyLevel int       `json:"energyLevel"`
	OffsetMS    int64     `json:"timestamp"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// BreathMoment is a conductor pause cue.
type BreathMoment struct {
	OffsetMS   int64     `json:"timestamp"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Timeline holds the conductor cues and wall-clock bounds of the recording.
type Timeline struct {
	EnergyChanges []EnergyChange `json:"energyChanges"`
	BreathMoments []BreathMoment `json:"breathMoments"`
	StartedAt     time.Time      `json:"startedAt"`
	EndedAt       *time.Time     `json:"endedAt,omitempty"`
}

// ActualDuration is the time between start and end, or zero while recording.
func (t *Timeline) ActualDuration() time.Duration {
	if t == nil || t.EndedAt == nil {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

// Attempt is the triple-step submission metadata reported by the client.
type Attempt struct {
	IntegratedWords []string `json:"integratedWords"`
	MissedWords     []string `json:"missedWords"`
	Transcription   string   `json:"transcription,omitempty"`
	TotalTime       float64  `json:"totalTime"`
	ActualTime      float64  `json:"actualTime"`
	CompletedEarly  bool     `json:"completedEarly"`
}

// Slot is one independently evaluated rapid-fire prompt.
type Slot struct {
	Prompt       string     `json:"prompt"`
	PromptIndex  int        `json:"promptIndex"`
	Evaluation   Evaluation `json:"evaluation"`
	Timestamp    time.Time  `json:"timestamp"`
	ResponseTime float64    `json:"responseTime"`
	TotalTime    float64    `json:"totalTime"`
	AudioKey     string     `json:"audioFile,omitempty"`
	Error        bool       `json:"error,omitempty"`
}

// Session is the ephemeral state of one game attempt.
//
// Rapid-fire sessions use Slots (pre-sized to Expected, nil meaning empty)
// and Claimed to reject a second submission for the same prompt. Conductor
// and triple-step sessions have Expected == 1 and use Evaluation.
type Session struct {
	ID          string     `json:"sessionId"`
	GameType    GameType   `json:"gameType"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	EvaluatedAt *time.Time `json:"evaluatedAt,omitempty"`

	UserID  string `json:"userId,omitempty"`
	StoreID string `json:"storeId,omitempty"`

	Payload Payload `json:"payload"`

	Slots    []*Slot `json:"slots,omitempty"`
	Claimed  []bool  `json:"-"`
	Expected int     `json:"expected"`
	Filled   int     `json:"filled"`

	Evaluation Evaluation `json:"evaluation,omitempty"`
	Error      bool       `json:"error"`

	Timeline  *Timeline `json:"timeline,omitempty"`
	Attempt   *Attempt  `json:"attempt,omitempty"`
	AudioKeys []string  `json:"audioFiles,omitempty"`
}

// Clone returns a copy that shares no mutable state with s. Evaluations
// are never mutated after they are stored, so they are shared.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.EvaluatedAt = cloneTime(s.EvaluatedAt)
	c.Payload.WordList = slices.Clone(s.Payload.WordList)
	if s.Slots != nil {
		c.Slots = make([]*Slot, len(s.Slots))
		for i, sl := range s.Slots {
			if sl != nil {
				cp := *sl
				c.Slots[i] = &cp
			}
		}
	}
	c.Claimed = slices.Clone(s.Claimed)
	if s.Timeline != nil {
		t := *s.Timeline
		t.EnergyChanges = slices.Clone(s.Timeline.EnergyChanges)
		t.BreathMoments = slices.Clone(s.Timeline.BreathMoments)
		t.EndedAt = cloneTime(s.Timeline.EndedAt)
		c.Timeline = &t
	}
	if s.Attempt != nil {
		a := *s.Attempt
		a.IntegratedWords = slices.Clone(s.Attempt.IntegratedWords)
		a.MissedWords = slices.Clone(s.Attempt.MissedWords)
		c.Attempt = &a
	}
	c.AudioKeys = slices.Clone(s.AudioKeys)
	return &c
}

// Age reports how long ago the session was created.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
