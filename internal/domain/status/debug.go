package status

import (
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// DebugSession is the summary of one registry entry.
type DebugSession struct {
	SessionID   string         `json:"sessionId"`
	GameType    model.GameType `json:"gameType"`
	Status      model.Status   `json:"status"`
	Completed   int            `json:"completed"`
	Expected    int            `json:"expected"`
	Error       bool           `json:"error"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt"`
	EvaluatedAt *time.Time     `json:"evaluatedAt"`
}

// DebugJob is the summary of one waiting job. Audio bytes are never included.
type DebugJob struct {
	SessionID    string         `json:"sessionId"`
	GameType     model.GameType `json:"gameType"`
	PromptIndex  int            `json:"promptIndex,omitempty"`
	TotalPrompts int            `json:"totalPrompts,omitempty"`
	AudioBytes   int            `json:"audioBytes"`
	EnqueuedAt   time.Time      `json:"enqueuedAt"`
}

// DebugState is the diagnostic dump of the registry and the queue. Its
// shape is not a stable contract.
type DebugState struct {
	TotalSessions int            `json:"totalSessions"`
	Sessions      []DebugSession `json:"sessions"`
	QueueLength   int            `json:"queueLength"`
	IsProcessing  bool           `json:"isProcessing"`
	QueueItems    []DebugJob     `json:"queueItems"`
}

// Debug summarises sessions and the waiting jobs.
func Debug(sessions []*model.Session, jobs []model.Job, processing bool) DebugState {
	st := DebugState{
		TotalSessions: len(sessions),
		Sessions:      make([]DebugSession, 0, len(sessions)),
		QueueLength:   len(jobs),
		IsProcessing:  processing,
		QueueItems:    make([]DebugJob, 0, len(jobs)),
	}
	for _, s := range sessions {
		st.Sessions = append(st.Sessions, DebugSession{
			SessionID:   s.ID,
			GameType:    s.GameType,
			Status:      s.Status,
			Completed:   s.Filled,
			Expected:    s.Expected,
			Error:       s.Error,
			CreatedAt:   s.CreatedAt,
			CompletedAt: s.CompletedAt,
			EvaluatedAt: s.EvaluatedAt,
		})
	}
	for _, j := range jobs {
		st.QueueItems = append(st.QueueItems, DebugJob{
			SessionID:    j.SessionID,
			GameType:     j.Game,
			PromptIndex:  j.Context.PromptIndex,
			TotalPrompts: j.Context.TotalPrompts,
			AudioBytes:   len(j.Audio.Data),
			EnqueuedAt:   j.EnqueuedAt,
		})
	}
	return st
}
