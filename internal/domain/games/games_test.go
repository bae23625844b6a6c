package games_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const rapidFireJSON = `{
  "responseRate": {"score": 8, "feedback": "quick"},
  "pace": {"score": 6, "feedback": "steady"},
  "energy": {"score": 7, "feedback": "bright"}
}`

const conductorJSON = `{
  "responseSpeed": {"score": 7, "feedback": "a"},
  "energyRange": {"score": 6, "feedback": "b"},
  "contentContinuity": {"score": 8, "feedback": "c"},
  "breathRecovery": {"score": 5, "feedback": "d"},
  "overallPerformance": {"score": 7, "summary": "good"}
}`

const tripleStepJSON = `{
  "primary": {"score": 6, "feedback": "a", "wordsIntegrated": 3, "wordsMissed": 1},
  "secondary": {"score": 7, "feedback": "b", "smoothIntegrations": ["cat"], "awkwardIntegrations": []},
  "tertiary": {"score": 8, "feedback": "c", "coherenceLevel": "Good"},
  "recovery": {"score": 6, "feedback": "d", "recoveryStrategies": ["pause"]},
  "overall": {"score": 7, "feedback": "e", "strengths": ["calm"], "areasForImprovement": []}
}`

func rfJob(slot int) model.Job {
	return model.Job{
		SessionID: "S",
		Game:      model.GameRapidFire,
		Slot:      slot,
		Context:   model.PromptContext{Prompt: "p", PromptIndex: slot + 1, TotalTime: 10},
	}
}

func TestFor(t *testing.T) {
	Convey("Every game type has rules", t, func() {
		for _, gt := range model.GameTypes {
			g, err := games.For(gt)
			So(err, ShouldBeNil)
			So(g.Type(), ShouldEqual, gt)
			So(g.Prompt(model.PromptContext{Topic: "t"}), ShouldNotBeBlank)
		}
		_, err := games.For("charades")
		So(errors.Is(err, games.ErrUnknownGame), ShouldBeTrue)
		So(func() { games.MustFor("charades") }, ShouldPanic)
	})
}

func TestDecode(t *testing.T) {
	Convey("Given raw model output", t, func() {
		Convey("valid output decodes for every game", func() {
			e, err := games.RapidFire{}.Decode([]byte(rapidFireJSON))
			So(err, ShouldBeNil)
			So(e.Scores()[model.SkillResponseRate], ShouldEqual, 8)

			c, err := games.Conductor{}.Decode([]byte(conductorJSON))
			So(err, ShouldBeNil)
			So(c.Overall(), ShouldEqual, 7)

			ts, err := games.TripleStep{}.Decode([]byte(tripleStepJSON))
			So(err, ShouldBeNil)
			So(ts.(*model.TripleStepEvaluation).Primary.WordsIntegrated, ShouldEqual, model.WordCount(3))
		})

		Convey("word counts sent as floats decode as whole numbers", func() {
			raw := strings.Replace(tripleStepJSON, `"wordsIntegrated": 3, "wordsMissed": 1`, `"wordsIntegrated": 3.0, "wordsMissed": 0.6`, 1)
			ts, err := games.TripleStep{}.Decode([]byte(raw))
			So(err, ShouldBeNil)
			p := ts.(*model.TripleStepEvaluation).Primary
			So(p.WordsIntegrated, ShouldEqual, model.WordCount(3))
			So(p.WordsMissed, ShouldEqual, model.WordCount(1))
		})

		Convey("markdown fences are tolerated", func() {
			_, err := games.RapidFire{}.Decode([]byte("```json\n" + rapidFireJSON + "\n```"))
			So(err, ShouldBeNil)
		})

		Convey("non-JSON is rejected", func() {
			_, err := games.RapidFire{}.Decode([]byte("I cannot evaluate this"))
			So(errors.Is(err, games.ErrInvalidEvaluation), ShouldBeTrue)
		})

		Convey("a missing section is rejected", func() {
			_, err := games.RapidFire{}.Decode([]byte(`{"responseRate":{"score":1,"feedback":""},"pace":{"score":1,"feedback":""}}`))
			So(errors.Is(err, games.ErrInvalidEvaluation), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "energy")
		})

		Convey("a missing field is rejected", func() {
			_, err := games.Conductor{}.Decode([]byte(`{
				"responseSpeed": {"score": 7, "feedback": "a"},
				"energyRange": {"score": 6, "feedback": "b"},
				"contentContinuity": {"score": 8, "feedback": "c"},
				"breathRecovery": {"score": 5, "feedback": "d"},
				"overallPerformance": {"score": 7}
			}`))
			So(errors.Is(err, games.ErrInvalidEvaluation), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "overallPerformance.summary")
		})

		Convey("an out-of-range score is rejected", func() {
			_, err := games.RapidFire{}.Decode([]byte(`{
				"responseRate": {"score": 11, "feedback": ""},
				"pace": {"score": 6, "feedback": ""},
				"energy": {"score": 7, "feedback": ""}
			}`))
			So(errors.Is(err, games.ErrInvalidEvaluation), ShouldBeTrue)
		})
	})
}

func TestRapidFireApply(t *testing.T) {
	Convey("Given a rapid-fire session with three prompts", t, func() {
		now := time.Now()
		g := games.RapidFire{}
		s := games.NewRapidFireSession("S", "", model.Payload{TotalPrompts: 3}, now)
		for i := range s.Claimed {
			s.Claimed[i] = true
		}
		good, _ := g.Decode([]byte(rapidFireJSON))

		Convey("slots filled out of order with one failure still complete", func() {
			So(g.Apply(s, rfJob(2), good, false, now), ShouldResemble, games.Outcome{Applied: true})
			So(s.Filled, ShouldEqual, 1)
			So(g.Apply(s, rfJob(1), g.Placeholder(model.PromptContext{}), true, now), ShouldResemble, games.Outcome{Applied: true})
			So(s.Status, ShouldEqual, model.StatusInProgress)
			out := g.Apply(s, rfJob(0), good, false, now)
			So(out, ShouldResemble, games.Outcome{Applied: true, Terminal: true})

			So(s.Status, ShouldEqual, model.StatusCompleted)
			So(g.Terminal(s.Status), ShouldBeTrue)
			So(s.Filled, ShouldEqual, 3)
			So(s.Slots[1].Error, ShouldBeTrue)
			So(s.Slots[1].Evaluation.Scores()[model.SkillPace], ShouldEqual, games.PlaceholderScore)
			So(s.Slots[0].Error, ShouldBeFalse)
			So(s.Slots[2].Error, ShouldBeFalse)
			So(s.Error, ShouldBeTrue)
			So(s.CompletedAt, ShouldNotBeNil)

			Convey("and averages exclude the placeholder slot", func() {
				avg := g.AverageScores(s)
				So(avg[model.SkillResponseRate], ShouldEqual, 8)
				So(avg[model.SkillOverall], ShouldEqual, 7)
				d := g.StatsDelta(s)
				So(d.Duration, ShouldEqual, 30)
				So(d.EnergyLevels, ShouldResemble, []float64{7, 7})
			})
		})

		Convey("a slot is never evaluated twice", func() {
			So(g.Apply(s, rfJob(0), good, false, now).Applied, ShouldBeTrue)
			So(g.Apply(s, rfJob(0), good, false, now).Applied, ShouldBeFalse)
			So(s.Filled, ShouldEqual, 1)
		})

		Convey("an out-of-range slot is ignored", func() {
			So(g.Apply(s, rfJob(3), good, false, now).Applied, ShouldBeFalse)
			So(g.Apply(s, rfJob(-1), good, false, now).Applied, ShouldBeFalse)
		})

		Convey("a session with no successful slot has no averages", func() {
			So(g.AverageScores(s), ShouldBeNil)
		})

		Convey("an unclaimed slot is not filled", func() {
			s.Claimed[2] = false
			So(g.Apply(s, rfJob(2), good, false, now).Applied, ShouldBeFalse)
			So(s.Slots[2], ShouldBeNil)
			So(s.Filled, ShouldEqual, 0)
		})
	})
}

func TestSingleEvaluationApply(t *testing.T) {
	Convey("Given a conductor session", t, func() {
		now := time.Now()
		g := games.Conductor{}
		s := games.NewConductorSession("C", "u", model.Payload{Topic: "t"}, now)
		s.Timeline.EnergyChanges = []model.EnergyChange{{EnergyLevel: 3}, {EnergyLevel: 8}}
		end := now.Add(2 * time.Minute)
		s.Timeline.EndedAt = &end
		s.Status = model.StatusCompleted

		Convey("a successful result marks it evaluated", func() {
			e, _ := g.Decode([]byte(conductorJSON))
			out := g.Apply(s, model.Job{Slot: model.NoSlot}, e, false, now)
			So(out, ShouldResemble, games.Outcome{Applied: true, Terminal: true})
			So(s.Status, ShouldEqual, model.StatusEvaluated)
			So(s.Error, ShouldBeFalse)
			So(s.EvaluatedAt, ShouldNotBeNil)
			So(g.AverageScores(s)[model.SkillOverall], ShouldEqual, 7)
			So(g.StatsDelta(s), ShouldResemble, model.StatsDelta{Duration: 120, EnergyLevels: []float64{3, 8}})

			Convey("and a second result is ignored", func() {
				So(g.Apply(s, model.Job{}, g.Placeholder(model.PromptContext{}), true, now).Applied, ShouldBeFalse)
				So(s.Status, ShouldEqual, model.StatusEvaluated)
			})
		})

		Convey("a placeholder marks it evaluation_failed with the error flag", func() {
			g.Apply(s, model.Job{}, g.Placeholder(model.PromptContext{}), true, now)
			So(s.Status, ShouldEqual, model.StatusEvaluationFailed)
			So(g.Terminal(s.Status), ShouldBeTrue)
			So(s.Error, ShouldBeTrue)
			So(g.AverageScores(s), ShouldBeNil)
		})

		Convey("a session still recording does not take a result", func() {
			s.Status = model.StatusInProgress
			e, _ := g.Decode([]byte(conductorJSON))
			So(g.Apply(s, model.Job{Slot: model.NoSlot}, e, false, now).Applied, ShouldBeFalse)
			So(s.Status, ShouldEqual, model.StatusInProgress)
			So(s.Filled, ShouldEqual, 0)
			So(s.Evaluation, ShouldBeNil)
		})

		Convey("stats tolerate a missing timeline", func() {
			s.Timeline = nil
			var d model.StatsDelta
			So(func() { d = g.StatsDelta(s) }, ShouldNotPanic)
			So(d.Duration, ShouldEqual, 0)
			So(d.EnergyLevels, ShouldBeEmpty)
		})
	})

	Convey("Given a triple-step placeholder", t, func() {
		pc := model.PromptContext{IntegratedWords: []string{"a", "b"}, MissedWords: []string{"c"}}
		e := games.TripleStep{}.Placeholder(pc).(*model.TripleStepEvaluation)
		So(e.Primary.WordsIntegrated, ShouldEqual, model.WordCount(2))
		So(e.Primary.WordsMissed, ShouldEqual, model.WordCount(1))
		So(e.Overall(), ShouldEqual, games.PlaceholderScore)
		So(e.OverallScore.Feedback, ShouldEqual, games.PlaceholderFeedback)
	})
}

func TestHistoryRecord(t *testing.T) {
	Convey("Given a finished rapid-fire session with a store id", t, func() {
		now := time.Now()
		g := games.RapidFire{}
		s := games.NewRapidFireSession("S", "user-1", model.Payload{TotalPrompts: 2, Difficulty: "easy"}, now.Add(-time.Minute))
		s.StoreID = "rec-1"
		s.AudioKeys = []string{"S_prompt_1.wav", "S_prompt_2.wav"}
		s.Claimed[0], s.Claimed[1] = true, true
		good, _ := g.Decode([]byte(rapidFireJSON))

		Convey("an in-progress session is not completed", func() {
			rec := games.HistoryRecord(s, g, now)
			So(rec.ID, ShouldEqual, "rec-1")
			So(rec.Completed, ShouldBeFalse)
			So(rec.SessionData.AverageScores, ShouldBeNil)
		})

		Convey("a terminal session carries averages, duration and audio", func() {
			g.Apply(s, rfJob(0), good, false, now)
			g.Apply(s, rfJob(1), good, false, now)
			rec := games.HistoryRecord(s, g, now)
			So(rec.Completed, ShouldBeTrue)
			So(rec.UserID, ShouldEqual, "user-1")
			So(rec.GameType, ShouldEqual, model.GameRapidFire)
			So(rec.Duration, ShouldEqual, 20)
			So(rec.EnergyLevels, ShouldResemble, []float64{7, 7})
			So(rec.SessionData.SessionID, ShouldEqual, "S")
			So(rec.SessionData.AverageScores[model.SkillOverall], ShouldEqual, 7)
			So(rec.AudioFiles, ShouldResemble, s.AudioKeys)
			So(rec.CreatedAt, ShouldEqual, s.CreatedAt)
			So(rec.UpdatedAt, ShouldEqual, now)
		})
	})
}
