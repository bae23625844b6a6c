// Package games holds the per-game rules plugged into the shared evaluation
// pipeline: prompt text, result decoding, placeholder results, and how a
// result is merged into a session.
package games

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// PlaceholderScore is the neutral sub-score written when scoring fails.
const PlaceholderScore = 5.0

// PlaceholderFeedback is the feedback text of a placeholder result.
const PlaceholderFeedback = "Evaluation failed"

// Score bounds accepted from the scoring model. Zero is used for silent audio.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// ErrInvalidEvaluation is returned when scoring output cannot be decoded into
// the expected shape.
var ErrInvalidEvaluation = errors.New("invalid evaluation")

// ErrUnknownGame is returned by For for an unregistered game type.
var ErrUnknownGame = errors.New("unknown game")

// Outcome reports what Apply did to a session.
type Outcome struct {
	// Applied is false when the slot was already evaluated or out of range.
	Applied bool
	// Terminal is true when this application moved the session to a terminal status.
	Terminal bool
}

// Game is the behaviour one exercise contributes to the pipeline.
type Game interface {
	Type() model.GameType
	// Prompt renders the instruction sent to the scoring model with the audio.
	Prompt(pc model.PromptContext) string
	// Decode parses raw model output. Any malformed or incomplete output
	// yields an error wrapping ErrInvalidEvaluation.
	Decode(raw []byte) (model.Evaluation, error)
	// Placeholder is the deterministic neutral result used on scoring failure.
	Placeholder(pc model.PromptContext) model.Evaluation
	// Apply merges a result into s. failed marks a placeholder.
	Apply(s *model.Session, job model.Job, eval model.Evaluation, failed bool, now time.Time) Outcome
	// Terminal reports whether st ends the session's lifecycle.
	Terminal(st model.Status) bool
	// AverageScores summarises the successful evaluations of s. Placeholder
	// results are excluded; nil means nothing was measured.
	AverageScores(s *model.Session) map[string]float64
	// StatsDelta is what s contributes to the user's per-game stats.
	StatsDelta(s *model.Session) model.StatsDelta
}

var registry = map[model.GameType]Game{
	model.GameRapidFire:  RapidFire{},
	model.GameConductor:  Conductor{},
	model.GameTripleStep: TripleStep{},
}

// For returns the rules for t.
func For(t model.GameType) (Game, error) {
	g, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, t)
	}
	return g, nil
}

// MustFor is For for callers that already validated t.
func MustFor(t model.GameType) Game {
	g, err := For(t)
	if err != nil {
		panic(err)
	}
	return g
}

// section describes a required top-level object and its required keys.
type section struct {
	name   string
	fields []string
}

// decodeStrict checks that raw is a JSON object containing every required
// section and field before unmarshalling it into v. Models sometimes wrap
// JSON in markdown fences; those are stripped first.
func decodeStrict(raw []byte, required []section, v model.Evaluation) error {
	raw = stripFences(raw)
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvaluation, err)
	}
	for _, sec := range required {
		body, ok := top[sec.name]
		if !ok {
			return fmt.Errorf("%w: missing %q", ErrInvalidEvaluation, sec.name)
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return fmt.Errorf("%w: %q is not an object", ErrInvalidEvaluation, sec.name)
		}
		for _, f := range sec.fields {
			if _, ok := obj[f]; !ok {
				return fmt.Errorf("%w: missing %s.%s", ErrInvalidEvaluation, sec.name, f)
			}
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvaluation, err)
	}
	for skill, score := range v.Scores() {
		if score < MinScore || score > MaxScore {
			return fmt.Errorf("%w: %s score %.2f out of range", ErrInvalidEvaluation, skill, score)
		}
	}
	return nil
}

func stripFences(raw []byte) []byte {
	raw = bytes.TrimSpace(raw)
	if !bytes.HasPrefix(raw, []byte("```")) {
		return raw
	}
	raw = bytes.TrimPrefix(raw, []byte("```"))
	if nl := bytes.IndexByte(raw, '\n'); nl >= 0 {
		raw = raw[nl+1:]
	}
	raw = bytes.TrimSuffix(bytes.TrimSpace(raw), []byte("```"))
	return bytes.TrimSpace(raw)
}

func failedCriterion() model.Criterion {
	return model.Criterion{Score: PlaceholderScore, Feedback: PlaceholderFeedback}
}

// completeSingle merges the one evaluation of a conductor or triple-step
// session. Only a completed session, whose recording was accepted, takes it.
func completeSingle(s *model.Session, eval model.Evaluation, failed bool, now time.Time) Outcome {
	if s.Status != model.StatusCompleted || s.Filled >= s.Expected {
		return Outcome{}
	}
	s.Evaluation = eval
	s.Filled++
	s.Error = failed
	t := now
	s.EvaluatedAt = &t
	if s.CompletedAt == nil {
		c := now
		s.CompletedAt = &c
	}
	if failed {
		s.Status = model.StatusEvaluationFailed
	} else {
		s.Status = model.StatusEvaluated
	}
	return Outcome{Applied: true, Terminal: true}
}

func singleTerminal(st model.Status) bool {
	return st == model.StatusEvaluated || st == model.StatusEvaluationFailed
}

func singleAverages(s *model.Session) map[string]float64 {
	if s.Evaluation == nil || s.Error {
		return nil
	}
	out := s.Evaluation.Scores()
	out[model.SkillOverall] = s.Evaluation.Overall()
	return out
}
