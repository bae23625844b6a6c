package games

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// RapidFire is the multi-prompt analogy game. Each prompt is its own slot.
type RapidFire struct{}

// NewRapidFireSession materializes an in-progress session with totalPrompts empty slots.
func NewRapidFireSession(id, userID string, p model.Payload, now time.Time) *model.Session {
	return &model.Session{
		ID:        id,
		GameType:  model.GameRapidFire,
		Status:    model.StatusInProgress,
		CreatedAt: now,
		UserID:    userID,
		Payload:   p,
		Slots:     make([]*model.Slot, p.TotalPrompts),
		Claimed:   make([]bool, p.TotalPrompts),
		Expected:  p.TotalPrompts,
	}
}

func (RapidFire) Type() model.GameType { return model.GameRapidFire }

func (RapidFire) Prompt(pc model.PromptContext) string {
	var b strings.Builder
	b.WriteString("You are an expert public speaking coach evaluating a rapid-fire analogy game response.\n")
	b.WriteString("Analyze the provided audio and evaluate the delivery.\n\n")
	b.WriteString("If the audio is silent or contains no discernible speech, set every score to 0 and say that no speech was detected.\n\n")
	fmt.Fprintf(&b, "Difficulty: %s\n", pc.Difficulty)
	fmt.Fprintf(&b, "Prompt given: %q\n", pc.Prompt)
	fmt.Fprintf(&b, "Time limit: %d seconds\n", pc.Seconds)
	fmt.Fprintf(&b, "This is prompt %d of %d.\n\n", pc.PromptIndex, pc.TotalPrompts)
	b.WriteString("Score 1-10 with brief, specific advice for each of:\n")
	b.WriteString("1. responseRate: how quickly and consistently the user engaged with the prompt.\n")
	b.WriteString("2. pace: speaking speed and rhythm, smooth or choppy.\n")
	b.WriteString("3. energy: energy and confidence.\n")
	b.WriteString("Do not judge the logic or cleverness of the analogy, only the audible delivery.\n")
	return b.String()
}

var rapidFireSections = []section{
	{name: model.SkillResponseRate, fields: []string{"score", "feedback"}},
	{name: model.SkillPace, fields: []string{"score", "feedback"}},
	{name: model.SkillEnergy, fields: []string{"score", "feedback"}},
}

func (RapidFire) Decode(raw []byte) (model.Evaluation, error) {
	var e model.RapidFireEvaluation
	if err := decodeStrict(raw, rapidFireSections, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (RapidFire) Placeholder(model.PromptContext) model.Evaluation {
	return &model.RapidFireEvaluation{
		ResponseRate: failedCriterion(),
		Pace:         failedCriterion(),
		Energy:       failedCriterion(),
	}
}

// Apply fills job.Slot. Only a claimed slot is filled and never twice; the
// session completes when the filled count reaches the expected count,
// whatever the fill order.
func (RapidFire) Apply(s *model.Session, job model.Job, eval model.Evaluation, failed bool, now time.Time) Outcome {
	if job.Slot < 0 || job.Slot >= len(s.Slots) || job.Slot >= len(s.Claimed) || !s.Claimed[job.Slot] || s.Slots[job.Slot] != nil {
		return Outcome{}
	}
	s.Slots[job.Slot] = &model.Slot{
		Prompt:       job.Context.Prompt,
		PromptIndex:  job.Context.PromptIndex,
		Evaluation:   eval,
		Timestamp:    job.EnqueuedAt,
		ResponseTime: job.Context.ResponseTime,
		TotalTime:    job.Context.TotalTime,
		AudioKey:     job.Audio.Key,
		Error:        failed,
	}
	s.Filled++
	if failed {
		s.Error = true
	}
	if s.Filled < s.Expected || s.Status == model.StatusCompleted {
		return Outcome{Applied: true}
	}
	s.Status = model.StatusCompleted
	c, e := now, now
	s.CompletedAt = &c
	s.EvaluatedAt = &e
	return Outcome{Applied: true, Terminal: true}
}

func (RapidFire) Terminal(st model.Status) bool { return st == model.StatusCompleted }

func (RapidFire) AverageScores(s *model.Session) map[string]float64 {
	sums := map[string]float64{}
	n := 0
	var overall float64
	for _, sl := range s.Slots {
		if sl == nil || sl.Error || sl.Evaluation == nil {
			continue
		}
		for k, v := range sl.Evaluation.Scores() {
			sums[k] += v
		}
		overall += sl.Evaluation.Overall()
		n++
	}
	if n == 0 {
		return nil
	}
	for k := range sums {
		sums[k] /= float64(n)
	}
	sums[model.SkillOverall] = overall / float64(n)
	return sums
}

func (RapidFire) StatsDelta(s *model.Session) model.StatsDelta {
	var d model.StatsDelta
	for _, sl := range s.Slots {
		if sl == nil {
			continue
		}
		d.Duration += sl.TotalTime
		if !sl.Error && sl.Evaluation != nil {
			d.EnergyLevels = append(d.EnergyLevels, sl.Evaluation.Scores()[model.SkillEnergy])
		}
	}
	return d
}
