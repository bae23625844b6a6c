// Package status renders the client-facing views of sessions and of the
// evaluation pipeline. Everything here is a pure function of its inputs.
package status

import (
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// QueueInfo is the queue state reported next to every session.
type QueueInfo struct {
	Length     int
	Processing bool
}

// View is the polling response for one session. Game-specific blocks are
// embedded by pointer so only the session's own game renders.
type View struct {
	SessionID    string           `json:"sessionId"`
	GameType     model.GameType   `json:"gameType"`
	Status       model.Status     `json:"status"`
	Topic        string           `json:"topic,omitempty"`
	Completed    int              `json:"completed"`
	Expected     int              `json:"expected"`
	Error        bool             `json:"error"`
	Evaluation   model.Evaluation `json:"evaluation"`
	CreatedAt    time.Time        `json:"createdAt"`
	CompletedAt  *time.Time       `json:"completedAt"`
	EvaluatedAt  *time.Time       `json:"evaluatedAt"`
	QueueLength  int              `json:"queueLength"`
	IsProcessing bool             `json:"isProcessing"`

	*RapidFireView
	*ConductorView
	*TripleStepView
}

// ResponseTime is the client-measured timing of one prompt.
type ResponseTime struct {
	ResponseTime float64 `json:"responseTime"`
	TotalTime    float64 `json:"totalTime"`
}

// RapidFireView lists one entry per prompt; unevaluated prompts are null.
type RapidFireView struct {
	TotalPrompts  int             `json:"totalPrompts"`
	Difficulty    string          `json:"difficulty"`
	Evaluations   []*model.Slot   `json:"evaluations"`
	ResponseTimes []*ResponseTime `json:"responseTimes"`
	AudioFiles    []*string       `json:"audioFiles"`
}

// ConductorView carries the cue timeline. ActualDuration is in milliseconds.
type ConductorView struct {
	Duration       int                  `json:"duration"`
	EnergyChanges  []model.EnergyChange `json:"energyChanges"`
	BreathMoments  []model.BreathMoment `json:"breathMoments"`
	StartedAt      *time.Time           `json:"startedAt"`
	EndedAt        *time.Time           `json:"endedAt"`
	ActualDuration int64                `json:"actualDuration"`
}

// TripleStepView carries the client-reported attempt.
type TripleStepView struct {
	WordList        []string `json:"wordList"`
	IntegratedWords []string `json:"integratedWords"`
	MissedWords     []string `json:"missedWords"`
	Transcription   string   `json:"transcription"`
	TotalTime       float64  `json:"totalTime"`
	ActualTime      float64  `json:"actualTime"`
	CompletedEarly  bool     `json:"completedEarly"`
	AudioFile       *string  `json:"audioFile"`
}

// Project renders s with the current queue state. Absent optional parts
// render as null or empty, never as an error.
func Project(s *model.Session, q QueueInfo) View {
	v := View{QueueLength: q.Length, IsProcessing: q.Processing}
	if s == nil {
		return v
	}
	v.SessionID = s.ID
	v.GameType = s.GameType
	v.Status = s.Status
	v.Topic = s.Payload.Topic
	v.Completed = s.Filled
	v.Expected = s.Expected
	v.Error = s.Error
	v.Evaluation = s.Evaluation
	v.CreatedAt = s.CreatedAt
	v.CompletedAt = s.CompletedAt
	v.EvaluatedAt = s.EvaluatedAt

	switch s.GameType {
	case model.GameRapidFire:
		v.RapidFireView = rapidFire(s)
	case model.GameConductor:
		v.ConductorView = conductor(s)
	case model.GameTripleStep:
		v.TripleStepView = tripleStep(s)
	}
	return v
}

func rapidFire(s *model.Session) *RapidFireView {
	rv := &RapidFireView{
		TotalPrompts:  s.Payload.TotalPrompts,
		Difficulty:    s.Payload.Difficulty,
		Evaluations:   make([]*model.Slot, len(s.Slots)),
		ResponseTimes: make([]*ResponseTime, len(s.Slots)),
		AudioFiles:    make([]*string, len(s.Slots)),
	}
	for i, sl := range s.Slots {
		if sl == nil {
			continue
		}
		rv.Evaluations[i] = sl
		rv.ResponseTimes[i] = &ResponseTime{ResponseTime: sl.ResponseTime, TotalTime: sl.TotalTime}
		if sl.AudioKey != "" {
			key := sl.AudioKey
			rv.AudioFiles[i] = &key
		}
	}
	return rv
}

func conductor(s *model.Session) *ConductorView {
	cv := &ConductorView{
		Duration:      s.Payload.DurationMinutes,
		EnergyChanges: []model.EnergyChange{},
		BreathMoments: []model.BreathMoment{},
	}
	if t := s.Timeline; t != nil {
		if len(t.EnergyChanges) > 0 {
			cv.EnergyChanges = t.EnergyChanges
		}
		if len(t.BreathMoments) > 0 {
			cv.BreathMoments = t.BreathMoments
		}
		started := t.StartedAt
		cv.StartedAt = &started
		cv.EndedAt = t.EndedAt
		cv.ActualDuration = t.ActualDuration().Milliseconds()
	}
	return cv
}

func tripleStep(s *model.Session) *TripleStepView {
	tv := &TripleStepView{
		WordList:        orEmpty(s.Payload.WordList),
		IntegratedWords: []string{},
		MissedWords:     []string{},
	}
	if a := s.Attempt; a != nil {
		tv.IntegratedWords = orEmpty(a.IntegratedWords)
		tv.MissedWords = orEmpty(a.MissedWords)
		tv.Transcription = a.Transcription
		tv.TotalTime = a.TotalTime
		tv.ActualTime = a.ActualTime
		tv.CompletedEarly = a.CompletedEarly
	}
	if len(s.AudioKeys) > 0 {
		key := s.AudioKeys[len(s.AudioKeys)-1]
		tv.AudioFile = &key
	}
	return tv
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
