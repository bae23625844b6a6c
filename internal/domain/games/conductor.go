package games

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// Conductor is the energy-modulation game: one recording, one evaluation.
type Conductor struct{}

// NewConductorSession materializes a session that is recording from now.
func NewConductorSession(id, userID string, p model.Payload, now time.Time) *model.Session {
	return &model.Session{
		ID:        id,
		GameType:  model.GameConductor,
		Status:    model.StatusInProgress,
		CreatedAt: now,
		UserID:    userID,
		Payload:   p,
		Expected:  1,
		Timeline:  &model.Timeline{StartedAt: now},
	}
}

func (Conductor) Type() model.GameType { return model.GameConductor }

func (Conductor) Prompt(pc model.PromptContext) string {
	var b strings.Builder
	b.WriteString("You are an expert public speaking coach evaluating a \"Conductor\" energy modulation session.\n")
	b.WriteString("Analyze the provided audio against the session timeline.\n\n")
	b.WriteString("If the audio is silent or contains no discernible speech, set every score to 0 and say that no speech was detected.\n\n")
	fmt.Fprintf(&b, "Topic: %q\n", pc.Topic)
	fmt.Fprintf(&b, "Intended duration: %d minutes\n", pc.DurationMinutes)
	fmt.Fprintf(&b, "Actual duration: %d seconds\n", int(pc.ActualDuration.Round(time.Second)/time.Second))
	fmt.Fprintf(&b, "Energy changes: %d, breath moments: %d\n\n", len(pc.EnergyChanges), len(pc.BreathMoments))
	b.WriteString("Energy changes timeline:\n")
	for i, c := range pc.EnergyChanges {
		fmt.Fprintf(&b, "%d. Energy level %d at %ds\n", i+1, c.EnergyLevel, c.OffsetMS/1000)
	}
	b.WriteString("\nBreath moments timeline:\n")
	for i, m := range pc.BreathMoments {
		fmt.Fprintf(&b, "%d. Breath moment at %ds\n", i+1, m.OffsetMS/1000)
	}
	b.WriteString("\nScore 1-10 with specific feedback:\n")
	b.WriteString("1. responseSpeed: how quickly the voice adapted when the energy level changed.\n")
	b.WriteString("2. energyRange: the range of energy actually demonstrated.\n")
	b.WriteString("3. contentContinuity: whether the speaker stayed on topic through transitions.\n")
	b.WriteString("4. breathRecovery: how well the breath moments were used to reset.\n")
	b.WriteString("5. overallPerformance: an overall score with a summary.\n")
	return b.String()
}

var conductorSections = []section{
	{name: model.SkillResponseSpeed, fields: []string{"score", "feedback"}},
	{name: model.SkillEnergyRange, fields: []string{"score", "feedback"}},
	{name: model.SkillContentContinuity, fields: []string{"score", "feedback"}},
	{name: model.SkillBreathRecovery, fields: []string{"score", "feedback"}},
	{name: model.SkillOverallPerformance, fields: []string{"score", "summary"}},
}

func (Conductor) Decode(raw []byte) (model.Evaluation, error) {
	var e model.ConductorEvaluation
	if err := decodeStrict(raw, conductorSections, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (Conductor) Placeholder(model.PromptContext) model.Evaluation {
	return &model.ConductorEvaluation{
		ResponseSpeed:      failedCriterion(),
		EnergyRange:        failedCriterion(),
		ContentContinuity:  failedCriterion(),
		BreathRecovery:     failedCriterion(),
		OverallPerformance: model.PerformanceSummary{Score: PlaceholderScore, Summary: PlaceholderFeedback},
	}
}

func (Conductor) Apply(s *model.Session, _ model.Job, eval model.Evaluation, failed bool, now time.Time) Outcome {
	return completeSingle(s, eval, failed, now)
}

func (Conductor) Terminal(st model.Status) bool { return singleTerminal(st) }

func (Conductor) AverageScores(s *model.Session) map[string]float64 { return singleAverages(s) }

func (Conductor) StatsDelta(s *model.Session) model.StatsDelta {
	var d model.StatsDelta
	if s.Timeline != nil {
		d.Duration = s.Timeline.ActualDuration().Seconds()
		for _, c := range s.Timeline.EnergyChanges {
			d.EnergyLevels = append(d.EnergyLevels, float64(c.EnergyLevel))
		}
	}
	return d
}
