package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/oratora/internal/adapters/blob"
	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/pkg/metrics"
)

// RapidFireSubmission is the recorded answer to one rapid-fire prompt.
// PromptIndex is 1-based.
type RapidFireSubmission struct {
	SessionID    string
	UserID       string
	Prompt       string
	PromptIndex  int
	TotalPrompts int
	Difficulty   string
	Seconds      int
	ResponseTime float64
	TotalTime    float64
	Audio        []byte
	MIMEType     string
}

// Queued acknowledges a rapid-fire submission before it is evaluated.
type Queued struct {
	Message       string       `json:"message"`
	SessionID     string       `json:"sessionId"`
	QueuePosition int          `json:"queuePosition"`
	SessionStatus model.Status `json:"sessionStatus"`
	Completed     int          `json:"completed"`
	TotalPrompts  int          `json:"totalPrompts"`
}

// SubmitRapidFire claims the prompt's slot, stores the audio and queues the
// evaluation. The first submission for a session id creates the session;
// a second submission for the same prompt is rejected with ErrSlotTaken.
func (s *Service) SubmitRapidFire(ctx context.Context, sub RapidFireSubmission) (*Queued, error) {
	if err := s.checkAudio(sub.Audio); err != nil {
		return nil, err
	}
	switch {
	case sub.TotalPrompts < 1 || sub.TotalPrompts > s.maxPrompts:
		metrics.RecordAdmissionRejected("too_many_prompts")
		return nil, fmt.Errorf("%w: totalPrompts must be between 1 and %d", ErrBadRequest, s.maxPrompts)
	case sub.PromptIndex < 1 || sub.PromptIndex > sub.TotalPrompts:
		return nil, fmt.Errorf("%w: promptIndex must be between 1 and totalPrompts", ErrBadRequest)
	}
	id, err := s.sessionID(sub.SessionID)
	if err != nil {
		return nil, err
	}

	payload := model.Payload{
		Difficulty:   sub.Difficulty,
		TotalPrompts: sub.TotalPrompts,
		Seconds:      sub.Seconds,
	}
	created := s.now()
	sess, err := s.open(ctx, id, model.GameRapidFire, func() *model.Session {
		return games.NewRapidFireSession(id, sub.UserID, payload, created)
	})
	if err != nil {
		return nil, err
	}

	slot := sub.PromptIndex - 1
	key := blob.PromptKey(id, sub.PromptIndex)
	sess, err = s.sessions.Mutate(id, func(m *model.Session) error {
		if slot >= len(m.Claimed) {
			return fmt.Errorf("%w: promptIndex %d exceeds the session's %d prompts", ErrBadRequest, sub.PromptIndex, m.Expected)
		}
		if m.Claimed[slot] {
			return fmt.Errorf("%w: prompt %d of session %s", ErrSlotTaken, sub.PromptIndex, id)
		}
		m.Claimed[slot] = true
		m.AudioKeys = append(m.AudioKeys, key)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			metrics.RecordAdmissionRejected("slot_taken")
		}
		return nil, err
	}

	job := model.Job{
		SessionID: id,
		Game:      model.GameRapidFire,
		Slot:      slot,
		Audio:     model.Audio{Data: sub.Audio, MIMEType: sub.MIMEType, Key: key},
		Context: model.PromptContext{
			Prompt:       sub.Prompt,
			PromptIndex:  sub.PromptIndex,
			TotalPrompts: sess.Expected,
			Difficulty:   sess.Payload.Difficulty,
			Seconds:      sess.Payload.Seconds,
			ResponseTime: sub.ResponseTime,
			TotalTime:    sub.TotalTime,
		},
	}
	pos, err := s.enqueue(ctx, job, func(m *model.Session) {
		if slot < len(m.Claimed) {
			m.Claimed[slot] = false
		}
	})
	if err != nil {
		return nil, err
	}

	// The slot may already be evaluated; report whatever the registry holds now.
	if cur, err := s.sessions.Get(id); err == nil {
		sess = cur
	}
	return &Queued{
		Message:       "Evaluation queued successfully",
		SessionID:     id,
		QueuePosition: pos,
		SessionStatus: sess.Status,
		Completed:     sess.Filled,
		TotalPrompts:  sess.Expected,
	}, nil
}
