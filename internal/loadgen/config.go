// Package loadgen drives a running server with synthetic game sessions and
// reports how long evaluations took to land.
package loadgen

import (
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Sessions     int           // Number of sessions to play
	Prompts      int           // Prompts per rapid-fire session
	Workers      int           // Sessions played concurrently
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between status polls
	PollTimeout  time.Duration // Give up on a session after this long
	UserID       string        // Attached to every session when set
	Verbose      bool          // Log every session outcome
}

// Outcome is the result of playing one session.
type Outcome struct {
	SessionID string
	Game      model.GameType
	Status    model.Status
	Submitted int
	Rejected  int
	// Latency runs from the first submission to the terminal status.
	Latency time.Duration
	Err     error
}

// Stats aggregates the outcomes of a run.
type Stats struct {
	Sessions    int
	Completed   int
	Failed      int
	TimedOut    int
	Submissions int
	Rejected    int
	PerGame     map[model.GameType]int
	MeanLatency time.Duration
	MaxLatency  time.Duration
	Duration    time.Duration
}

func (s *Stats) add(o Outcome) {
	s.Sessions++
	s.Submissions += o.Submitted
	s.Rejected += o.Rejected
	s.PerGame[o.Game]++
	switch {
	case o.Err != nil:
		s.Failed++
		return
	case o.Status == "":
		s.TimedOut++
		return
	}
	s.Completed++
	// Running mean over completed sessions.
	s.MeanLatency += (o.Latency - s.MeanLatency) / time.Duration(s.Completed)
	if o.Latency > s.MaxLatency {
		s.MaxLatency = o.Latency
	}
}
