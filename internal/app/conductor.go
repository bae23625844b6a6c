package service

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/oratora/internal/adapters/blob"
	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
)

// Energy levels accepted from the conductor UI.
const (
	MinEnergyLevel = 1
	MaxEnergyLevel = 10
)

// ConductorStart opens a conductor recording. DurationMinutes is the
// intended length.
type ConductorStart struct {
	SessionID       string
	UserID          string
	Topic           string
	DurationMinutes int
}

type ConductorStarted struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Topic     string `json:"topic"`
	Duration  int    `json:"duration"`
}

type EnergyRecorded struct {
	Message      string `json:"message"`
	SessionID    string `json:"sessionId"`
	EnergyLevel  int    `json:"energyLevel"`
	TotalChanges int    `json:"totalChanges"`
}

type BreathRecorded struct {
	Message      string `json:"message"`
	SessionID    string `json:"sessionId"`
	TotalMoments int    `json:"totalMoments"`
}

// ConductorEnd closes a recording with its audio.
type ConductorEnd struct {
	SessionID string
	Audio     []byte
	MIMEType  string
}

// ConductorEnded acknowledges the end of a recording. Duration is in seconds.
type ConductorEnded struct {
	Message       string `json:"message"`
	SessionID     string `json:"sessionId"`
	QueuePosition int    `json:"queuePosition"`
	EnergyChanges int    `json:"energyChanges"`
	BreathMoments int    `json:"breathMoments"`
	Duration      int    `json:"duration"`
}

// StartConductor creates the session. Starting an existing session again
// leaves it untouched.
func (s *Service) StartConductor(ctx context.Context, req ConductorStart) (*ConductorStarted, error) {
	switch {
	case req.Topic == "":
		return nil, fmt.Errorf("%w: topic is required", ErrBadRequest)
	case req.DurationMinutes <= 0:
		return nil, fmt.Errorf("%w: duration must be a positive number of minutes", ErrBadRequest)
	}
	id, err := s.sessionID(req.SessionID)
	if err != nil {
		return nil, err
	}
	payload := model.Payload{Topic: req.Topic, DurationMinutes: req.DurationMinutes}
	started := s.now()
	sess, err := s.open(ctx, id, model.GameConductor, func() *model.Session {
		return games.NewConductorSession(id, req.UserID, payload, started)
	})
	if err != nil {
		return nil, err
	}
	return &ConductorStarted{
		Message:   "Conductor session started successfully",
		SessionID: id,
		Topic:     sess.Payload.Topic,
		Duration:  sess.Payload.DurationMinutes,
	}, nil
}

// RecordEnergyChange appends an energy cue. offsetMS is the client's
// timestamp relative to the recording start.
func (s *Service) RecordEnergyChange(_ context.Context, id string, level int, offsetMS int64) (*EnergyRecorded, error) {
	if err := requireSessionID(id); err != nil {
		return nil, err
	}
	if level < MinEnergyLevel || level > MaxEnergyLevel {
		return nil, fmt.Errorf("%w: energyLevel must be between %d and %d", ErrBadRequest, MinEnergyLevel, MaxEnergyLevel)
	}
	if offsetMS < 0 {
		return nil, fmt.Errorf("%w: timestamp must not be negative", ErrBadRequest)
	}
	now := s.now()
	sess, err := s.sessions.Mutate(id, func(m *model.Session) error {
		if err := recording(m); err != nil {
			return err
		}
		m.Timeline.EnergyChanges = append(m.Timeline.EnergyChanges, model.EnergyChange{
			EnergyLevel: level,
			OffsetMS:    offsetMS,
			RecordedAt:  now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &EnergyRecorded{
		Message:      "Energy change recorded successfully",
		SessionID:    id,
		EnergyLevel:  level,
		TotalChanges: len(sess.Timeline.EnergyChanges),
	}, nil
}

// RecordBreathMoment appends a breath cue.
func (s *Service) RecordBreathMoment(_ context.Context, id string, offsetMS int64) (*BreathRecorded, error) {
	if err := requireSessionID(id); err != nil {
		return nil, err
	}
	if offsetMS < 0 {
		return nil, fmt.Errorf("%w: timestamp must not be negative", ErrBadRequest)
	}
	now := s.now()
	sess, err := s.sessions.Mutate(id, func(m *model.Session) error {
		if err := recording(m); err != nil {
			return err
		}
		m.Timeline.BreathMoments = append(m.Timeline.BreathMoments, model.BreathMoment{
			OffsetMS:   offsetMS,
			RecordedAt: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BreathRecorded{
		Message:      "Breath moment recorded successfully",
		SessionID:    id,
		TotalMoments: len(sess.Timeline.BreathMoments),
	}, nil
}

// EndConductor marks the recording completed and queues its single
// evaluation with a snapshot of the timeline.
func (s *Service) EndConductor(ctx context.Context, req ConductorEnd) (*ConductorEnded, error) {
	if err := requireSessionID(req.SessionID); err != nil {
		return nil, err
	}
	if err := s.checkAudio(req.Audio); err != nil {
		return nil, err
	}
	id := req.SessionID
	key := blob.RecordingKey(id, model.GameConductor)
	now := s.now()
	sess, err := s.sessions.Mutate(id, func(m *model.Session) error {
		if err := recording(m); err != nil {
			return err
		}
		ended, completed := now, now
		m.Timeline.EndedAt = &ended
		m.CompletedAt = &completed
		m.Status = model.StatusCompleted
		m.AudioKeys = append(m.AudioKeys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	tl := sess.Timeline
	job := model.Job{
		SessionID: id,
		Game:      model.GameConductor,
		Slot:      model.NoSlot,
		Audio:     model.Audio{Data: req.Audio, MIMEType: req.MIMEType, Key: key},
		Context: model.PromptContext{
			Topic:           sess.Payload.Topic,
			DurationMinutes: sess.Payload.DurationMinutes,
			ActualDuration:  tl.ActualDuration(),
			EnergyChanges:   tl.EnergyChanges,
			BreathMoments:   tl.BreathMoments,
		},
	}
	pos, err := s.enqueue(ctx, job, func(m *model.Session) {
		m.Status = model.StatusInProgress
		m.CompletedAt = nil
		if m.Timeline != nil {
			m.Timeline.EndedAt = nil
		}
	})
	if err != nil {
		return nil, err
	}
	return &ConductorEnded{
		Message:       "Conductor session ended and evaluation queued",
		SessionID:     id,
		QueuePosition: pos,
		EnergyChanges: len(tl.EnergyChanges),
		BreathMoments: len(tl.BreathMoments),
		Duration:      int(math.Round(tl.ActualDuration().Seconds())),
	}, nil
}

// recording checks that m is a conductor session still accepting cues. A
// session of another game is reported as not found.
func recording(m *model.Session) error {
	if m.GameType != model.GameConductor || m.Timeline == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, m.ID)
	}
	if m.Status != model.StatusInProgress {
		return fmt.Errorf("%w: conductor session %s is %s", ErrInvalidState, m.ID, m.Status)
	}
	return nil
}
