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

// TripleStepSubmission is a finished triple-step speech. The word lists are
// as reported by the client's speech recognition.
type TripleStepSubmission struct {
	SessionID       string
	UserID          string
	Topic           string
	WordList        []string
	IntegratedWords []string
	MissedWords     []string
	Transcription   string
	TotalTime       float64
	ActualTime      float64
	CompletedEarly  bool
	Audio           []byte
	MIMEType        string
}

type TripleStepQueued struct {
	Message       string       `json:"message"`
	SessionID     string       `json:"sessionId"`
	QueuePosition int          `json:"queuePosition"`
	SessionStatus model.Status `json:"sessionStatus"`
}

// SubmitTripleStep creates the session, records the attempt and queues its
// single evaluation. A session accepts one attempt.
func (s *Service) SubmitTripleStep(ctx context.Context, sub TripleStepSubmission) (*TripleStepQueued, error) {
	if err := s.checkAudio(sub.Audio); err != nil {
		return nil, err
	}
	if len(sub.WordList) == 0 {
		return nil, fmt.Errorf("%w: wordList must not be empty", ErrBadRequest)
	}
	id, err := s.sessionID(sub.SessionID)
	if err != nil {
		return nil, err
	}

	payload := model.Payload{Topic: sub.Topic, WordList: sub.WordList}
	created := s.now()
	if _, err := s.open(ctx, id, model.GameTripleStep, func() *model.Session {
		return games.NewTripleStepSession(id, sub.UserID, payload, created)
	}); err != nil {
		return nil, err
	}

	key := blob.RecordingKey(id, model.GameTripleStep)
	now := s.now()
	sess, err := s.sessions.Mutate(id, func(m *model.Session) error {
		if m.Attempt != nil {
			return fmt.Errorf("%w: triple-step session %s was already submitted", ErrSlotTaken, id)
		}
		m.Attempt = &model.Attempt{
			IntegratedWords: sub.IntegratedWords,
			MissedWords:     sub.MissedWords,
			Transcription:   sub.Transcription,
			TotalTime:       sub.TotalTime,
			ActualTime:      sub.ActualTime,
			CompletedEarly:  sub.CompletedEarly,
		}
		completed := now
		m.CompletedAt = &completed
		m.Status = model.StatusCompleted
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
		Game:      model.GameTripleStep,
		Slot:      model.NoSlot,
		Audio:     model.Audio{Data: sub.Audio, MIMEType: sub.MIMEType, Key: key},
		Context: model.PromptContext{
			Topic:           sess.Payload.Topic,
			WordList:        sess.Payload.WordList,
			IntegratedWords: sess.Attempt.IntegratedWords,
			MissedWords:     sess.Attempt.MissedWords,
			Transcription:   sess.Attempt.Transcription,
			TotalTime:       sess.Attempt.TotalTime,
			ActualTime:      sess.Attempt.ActualTime,
			CompletedEarly:  sess.Attempt.CompletedEarly,
		},
	}
	pos, err := s.enqueue(ctx, job, func(m *model.Session) {
		m.Attempt = nil
		m.CompletedAt = nil
		m.Status = model.StatusInProgress
	})
	if err != nil {
		return nil, err
	}
	return &TripleStepQueued{
		Message:       "Triple Step evaluation queued",
		SessionID:     id,
		QueuePosition: pos,
		SessionStatus: sess.Status,
	}, nil
}
