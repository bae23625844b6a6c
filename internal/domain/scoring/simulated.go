package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

const (
	defaultMinLatency = 300 * time.Millisecond
	defaultMaxLatency = 1200 * time.Millisecond
	defaultRandomSeed = 42
	simulatedMinScore = 4
	simulatedMaxScore = 9
)

// Option applies a configuration option to the SimulatedScorer.
type Option func(*SimulatedScorer)

// WithLatencyRange sets the simulated latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *SimulatedScorer) {
		if minLatency >= 0 && maxLatency >= minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithFailureRate makes the given fraction of calls fail.
func WithFailureRate(rate float64) Option {
	return func(s *SimulatedScorer) {
		if rate >= 0 && rate <= 1 {
			s.failureRate = rate
		}
	}
}

// WithSeed fixes the random source.
func WithSeed(seed int64) Option {
	return func(s *SimulatedScorer) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // simulation only
	}
}

// SimulatedScorer is a Client that fabricates well-formed evaluations after
// a random delay. It stands in for the remote model in development and load tests.
type SimulatedScorer struct {
	minLatency  time.Duration
	maxLatency  time.Duration
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedScorer creates a simulated scorer.
func NewSimulatedScorer(opts ...Option) *SimulatedScorer {
	s := &SimulatedScorer{
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic seed for reproducible runs
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score waits a simulated latency, then either fails or returns JSON in the
// shape the real model is asked for. Empty audio is scored as silence.
func (s *SimulatedScorer) Score(ctx context.Context, req Request) ([]byte, error) {
	s.mu.Lock()
	latency := s.minLatency
	if span := s.maxLatency - s.minLatency; span > 0 {
		latency += time.Duration(s.rng.Int63n(int64(span)))
	}
	fail := s.rng.Float64() < s.failureRate
	s.mu.Unlock()

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrScoringFailed, ctx.Err())
	case <-timer.C:
	}
	if fail {
		return nil, fmt.Errorf("%w: simulated upstream error", ErrScoringFailed)
	}

	silent := len(req.Audio) == 0
	var eval model.Evaluation
	switch req.Game {
	case model.GameRapidFire:
		eval = &model.RapidFireEvaluation{
			ResponseRate: s.criterion(silent, "Respond a beat sooner after the prompt appears."),
			Pace:         s.criterion(silent, "Keep an even rhythm through the analogy."),
			Energy:       s.criterion(silent, "Project with a little more confidence."),
		}
	case model.GameConductor:
		e := &model.ConductorEvaluation{
			ResponseSpeed:     s.criterion(silent, "Shift energy as soon as the cue changes."),
			EnergyRange:       s.criterion(silent, "Contrast the low and high levels more."),
			ContentContinuity: s.criterion(silent, "Stay with the topic through transitions."),
			BreathRecovery:    s.criterion(silent, "Use the breath cue to reset your pace."),
		}
		overall := s.criterion(silent, "")
		e.OverallPerformance = model.PerformanceSummary{Score: overall.Score, Summary: "Simulated evaluation."}
		if silent {
			e.OverallPerformance.Summary = overall.Feedback
		}
		eval = e
	case model.GameTripleStep:
		e := &model.TripleStepEvaluation{}
		e.Primary.Criterion = s.criterion(silent, "Work the words in before they expire.")
		e.Primary.WordsIntegrated = model.WordCount(len(req.Context.IntegratedWords))
		e.Primary.WordsMissed = model.WordCount(len(req.Context.MissedWords))
		e.Secondary.Criterion = s.criterion(silent, "Bridge into each word with a short clause.")
		e.Secondary.SmoothIntegrations = nonNil(req.Context.IntegratedWords)
		e.Secondary.AwkwardIntegrations = []string{}
		e.Tertiary.Criterion = s.criterion(silent, "Return to the main point after each word.")
		e.Tertiary.CoherenceLevel = "Good"
		e.Recovery.Criterion = s.criterion(silent, "Acknowledge a hard word and move on.")
		e.Recovery.RecoveryStrategies = []string{}
		e.OverallScore.Criterion = s.criterion(silent, "Simulated evaluation.")
		e.OverallScore.Strengths = []string{}
		e.OverallScore.AreasForImprovement = []string{}
		eval = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, req.Game)
	}
	return json.Marshal(eval)
}

func (s *SimulatedScorer) criterion(silent bool, feedback string) model.Criterion {
	if silent {
		return model.Criterion{Score: 0, Feedback: "No speech was detected."}
	}
	s.mu.Lock()
	score := simulatedMinScore + s.rng.Intn(simulatedMaxScore-simulatedMinScore+1)
	s.mu.Unlock()
	return model.Criterion{Score: float64(score), Feedback: feedback}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
