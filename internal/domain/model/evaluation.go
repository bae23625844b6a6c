package model

import (
	"encoding/json"
	"math"
)

// Evaluation is a structured scoring result for one slot or session.
// Implementations are immutable once stored on a session.
type Evaluation interface {
	// Scores returns the numeric sub-scores keyed by skill name.
	Scores() map[string]float64
	// Overall is the single headline score for the evaluation.
	Overall() float64
}

// Criterion is a scored dimension with coaching feedback.
type Criterion struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Skill names used in score maps and persisted averages.
const (
	SkillResponseRate       = "responseRate"
	SkillPace               = "pace"
	SkillEnergy             = "energy"
	SkillResponseSpeed      = "responseSpeed"
	SkillEnergyRange        = "energyRange"
	SkillContentContinuity  = "contentContinuity"
	SkillBreathRecovery     = "breathRecovery"
	SkillOverallPerformance = "overallPerformance"
	SkillPrimary            = "primary"
	SkillSecondary          = "secondary"
	SkillTertiary           = "tertiary"
	SkillRecovery           = "recovery"
	SkillOverall            = "overall"
)

// RapidFireEvaluation scores one analogy response.
type RapidFireEvaluation struct {
	ResponseRate Criterion `json:"responseRate"`
	Pace         Criterion `json:"pace"`
	Energy       Criterion `json:"energy"`
}

func (e *RapidFireEvaluation) Scores() map[string]float64 {
	return map[string]float64{
		SkillResponseRate: e.ResponseRate.Score,
		SkillPace:         e.Pace.Score,
		SkillEnergy:       e.Energy.Score,
	}
}

func (e *RapidFireEvaluation) Overall() float64 {
	return (e.ResponseRate.Score + e.Pace.Score + e.Energy.Score) / 3
}

// PerformanceSummary is the conductor's headline score.
type PerformanceSummary struct {
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}

// ConductorEvaluation scores an energy-modulation session.
type ConductorEvaluation struct {
	ResponseSpeed      Criterion          `json:"responseSpeed"`
	EnergyRange        Criterion          `json:"energyRange"`
	ContentContinuity  Criterion          `json:"contentContinuity"`
	BreathRecovery     Criterion          `json:"breathRecovery"`
	OverallPerformance PerformanceSummary `json:"overallPerformance"`
}

func (e *ConductorEvaluation) Scores() map[string]float64 {
	return map[string]float64{
		SkillResponseSpeed:      e.ResponseSpeed.Score,
		SkillEnergyRange:        e.EnergyRange.Score,
		SkillContentContinuity:  e.ContentContinuity.Score,
		SkillBreathRecovery:     e.BreathRecovery.Score,
		SkillOverallPerformance: e.OverallPerformance.Score,
	}
}

func (e *ConductorEvaluation) Overall() float64 { return e.OverallPerformance.Score }

// WordIntegration is the primary triple-step dimension.
type WordIntegration struct {
	Criterion
	WordsIntegrated WordCount `json:"wordsIntegrated"`
	WordsMissed     WordCount `json:"wordsMissed"`
}

// WordCount is a whole number of words. Models sometimes send counts as
// floats (3.0), so decoding accepts any JSON number and rounds it.
type WordCount int

func (c *WordCount) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*c = WordCount(max(0, math.Round(f)))
	return nil
}

// IntegrationQuality is the secondary triple-step dimension.
type IntegrationQuality struct {
	Criterion
	SmoothIntegrations  []string `json:"smoothIntegrations"`
	AwkwardIntegrations []string `json:"awkwardIntegrations"`
}

// Coherence is the tertiary triple-step dimension.
type Coherence struct {
	Criterion
	CoherenceLevel string `json:"coherenceLevel"`
}

// Recovery scores how difficult words were handled.
type Recovery struct {
	Criterion
	RecoveryStrategies []string `json:"recoveryStrategies"`
}

// OverallAssessment is the triple-step headline.
type OverallAssessment struct {
	Criterion
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areasForImprovement"`
}

// WordCheck reports whether one target word was heard.
type WordCheck struct {
	Word                 string  `json:"word"`
	PresentInTranscript  bool    `json:"presentInTranscript"`
	PresentInAudioLikely bool    `json:"presentInAudioLikely"`
	MatchConfidence      float64 `json:"matchConfidence"`
	ExampleSentence      string  `json:"exampleSentence,omitempty"`
}

// WordVerification is the optional per-word audit.
type WordVerification struct {
	PerWord                 []WordCheck `json:"perWord,omitempty"`
	IntegratedWordsDetected []string    `json:"integratedWordsDetected,omitempty"`
	MissedWordsDetected     []string    `json:"missedWordsDetected,omitempty"`
}

// TripleStepEvaluation scores a word-integration speech.
type TripleStepEvaluation struct {
	Primary          WordIntegration    `json:"primary"`
	Secondary        IntegrationQuality `json:"secondary"`
	Tertiary         Coherence          `json:"tertiary"`
	Recovery         Recovery           `json:"recovery"`
	OverallScore     OverallAssessment  `json:"overall"`
	WordVerification *WordVerification  `json:"wordVerification,omitempty"`
}

func (e *TripleStepEvaluation) Scores() map[string]float64 {
	return map[string]float64{
		SkillPrimary:   e.Primary.Score,
		SkillSecondary: e.Secondary.Score,
		SkillTertiary:  e.Tertiary.Score,
		SkillRecovery:  e.Recovery.Score,
		SkillOverall:   e.OverallScore.Score,
	}
}

func (e *TripleStepEvaluation) Overall() float64 { return e.OverallScore.Score }

var (
	_ Evaluation = (*RapidFireEvaluation)(nil)
	_ Evaluation = (*ConductorEvaluation)(nil)
	_ Evaluation = (*TripleStepEvaluation)(nil)
)
