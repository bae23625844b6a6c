package games

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// TripleStep is the word-integration game: one recording, one evaluation.
type TripleStep struct{}

// NewTripleStepSession materializes a session for a single submission.
func NewTripleStepSession(id, userID string, p model.Payload, now time.Time) *model.Session {
	return &model.Session{
		ID:        id,
		GameType:  model.GameTripleStep,
		Status:    model.StatusInProgress,
		CreatedAt: now,
		UserID:    userID,
		Payload:   p,
		Expected:  1,
	}
}

func (TripleStep) Type() model.GameType { return model.GameTripleStep }

func (TripleStep) Prompt(pc model.PromptContext) string {
	var b strings.Builder
	b.WriteString("You are an expert public speaking coach evaluating a \"Triple Step\" speech.\n")
	b.WriteString("The speaker talks about a main topic while random words appear that must be woven in naturally.\n\n")
	b.WriteString("If the audio is silent or contains no discernible speech, set every score to 0 and say that no speech was detected.\n\n")
	fmt.Fprintf(&b, "Main topic: %q\n", pc.Topic)
	fmt.Fprintf(&b, "Words presented: %s\n", strings.Join(pc.WordList, ", "))
	fmt.Fprintf(&b, "Words the client detected as integrated: %s\n", strings.Join(pc.IntegratedWords, ", "))
	fmt.Fprintf(&b, "Words the client marked as missed: %s\n", strings.Join(pc.MissedWords, ", "))
	fmt.Fprintf(&b, "Planned time: %.0fs, actual time: %.0fs, finished early: %t\n", pc.TotalTime, pc.ActualTime, pc.CompletedEarly)
	if pc.Transcription != "" {
		fmt.Fprintf(&b, "Browser transcription (may be imperfect): %q\n", pc.Transcription)
	}
	b.WriteString("\nScore 1-10 with detailed feedback:\n")
	b.WriteString("1. primary: were the words spoken within the time limit (count integrated and missed words).\n")
	b.WriteString("2. secondary: smooth versus awkward integrations, listing each.\n")
	b.WriteString("3. tertiary: coherence of the main topic (Excellent, Good, Fair or Poor).\n")
	b.WriteString("4. recovery: strategies used for difficult words.\n")
	b.WriteString("5. overall: overall score, strengths and areas for improvement.\n")
	b.WriteString("Also verify each presented word against the audio and transcription in wordVerification.\n")
	return b.String()
}

var tripleStepSections = []section{
	{name: model.SkillPrimary, fields: []string{"score", "feedback", "wordsIntegrated", "wordsMissed"}},
	{name: model.SkillSecondary, fields: []string{"score", "feedback", "smoothIntegrations", "awkwardIntegrations"}},
	{name: model.SkillTertiary, fields: []string{"score", "feedback", "coherenceLevel"}},
	{name: model.SkillRecovery, fields: []string{"score", "feedback", "recoveryStrategies"}},
	{name: model.SkillOverall, fields: []string{"score", "feedback", "strengths", "areasForImprovement"}},
}

func (TripleStep) Decode(raw []byte) (model.Evaluation, error) {
	var e model.TripleStepEvaluation
	if err := decodeStrict(raw, tripleStepSections, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Placeholder keeps the client-reported word counts so a failed evaluation
// still reflects what the browser observed.
func (TripleStep) Placeholder(pc model.PromptContext) model.Evaluation {
	e := &model.TripleStepEvaluation{}
	e.Primary.Criterion = failedCriterion()
	e.Primary.WordsIntegrated = model.WordCount(len(pc.IntegratedWords))
	e.Primary.WordsMissed = model.WordCount(len(pc.MissedWords))
	e.Secondary.Criterion = failedCriterion()
	e.Secondary.SmoothIntegrations = []string{}
	e.Secondary.AwkwardIntegrations = []string{}
	e.Tertiary.Criterion = failedCriterion()
	e.Tertiary.CoherenceLevel = "Unknown"
	e.Recovery.Criterion = failedCriterion()
	e.Recovery.RecoveryStrategies = []string{}
	e.OverallScore.Criterion = failedCriterion()
	e.OverallScore.Strengths = []string{}
	e.OverallScore.AreasForImprovement = []string{}
	return e
}

func (TripleStep) Apply(s *model.Session, _ model.Job, eval model.Evaluation, failed bool, now time.Time) Outcome {
	return completeSingle(s, eval, failed, now)
}

func (TripleStep) Terminal(st model.Status) bool { return singleTerminal(st) }

func (TripleStep) AverageScores(s *model.Session) map[string]float64 { return singleAverages(s) }

func (TripleStep) StatsDelta(s *model.Session) model.StatsDelta {
	if s.Attempt == nil {
		return model.StatsDelta{}
	}
	return model.StatsDelta{Duration: s.Attempt.ActualTime}
}
