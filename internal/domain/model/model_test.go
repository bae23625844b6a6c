package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/oratora/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseGameType(t *testing.T) {
	convey.Convey("Given game type strings", t, func() {
		for _, g := range model.GameTypes {
			parsed, err := model.ParseGameType(string(g))
			convey.So(err, convey.ShouldBeNil)
			convey.So(parsed, convey.ShouldEqual, g)
		}
		_, err := model.ParseGameType("charades")
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestSessionClone(t *testing.T) {
	convey.Convey("Given a populated rapid-fire session", t, func() {
		now := time.Now()
		s := &model.Session{
			ID:          "s-1",
			GameType:    model.GameRapidFire,
			Status:      model.StatusInProgress,
			CreatedAt:   now,
			CompletedAt: &now,
			Payload:     model.Payload{WordList: []string{"a"}},
			Slots:       []*model.Slot{{Prompt: "p1"}, nil},
			Claimed:     []bool{true, false},
			Expected:    2,
			Filled:      1,
			Timeline:    &model.Timeline{EnergyChanges: []model.EnergyChange{{EnergyLevel: 3}}},
			Attempt:     &model.Attempt{MissedWords: []string{"x"}},
			AudioKeys:   []string{"k1"},
		}

		convey.Convey("When the clone is mutated", func() {
			c := s.Clone()
			c.Slots[0].Prompt = "changed"
			c.Slots[1] = &model.Slot{}
			c.Claimed[1] = true
			*c.CompletedAt = now.Add(time.Hour)
			c.Payload.WordList[0] = "b"
			c.Timeline.EnergyChanges[0].EnergyLevel = 9
			c.Attempt.MissedWords[0] = "y"
			c.AudioKeys[0] = "k2"

			convey.Convey("Then the original is untouched", func() {
				convey.So(s.Slots[0].Prompt, convey.ShouldEqual, "p1")
				convey.So(s.Slots[1], convey.ShouldBeNil)
				convey.So(s.Claimed[1], convey.ShouldBeFalse)
				convey.So(s.CompletedAt.Equal(now), convey.ShouldBeTrue)
				convey.So(s.Payload.WordList[0], convey.ShouldEqual, "a")
				convey.So(s.Timeline.EnergyChanges[0].EnergyLevel, convey.ShouldEqual, 3)
				convey.So(s.Attempt.MissedWords[0], convey.ShouldEqual, "x")
				convey.So(s.AudioKeys[0], convey.ShouldEqual, "k1")
			})
		})

		convey.Convey("Clone of nil is nil", func() {
			var nilSession *model.Session
			convey.So(nilSession.Clone(), convey.ShouldBeNil)
		})
	})
}

func TestTimelineActualDuration(t *testing.T) {
	convey.Convey("Given a conductor timeline", t, func() {
		start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
		tl := &model.Timeline{StartedAt: start}
		convey.So(tl.ActualDuration(), convey.ShouldEqual, 0)

		end := start.Add(90 * time.Second)
		tl.EndedAt = &end
		convey.So(tl.ActualDuration(), convey.ShouldEqual, 90*time.Second)

		var none *model.Timeline
		convey.So(none.ActualDuration(), convey.ShouldEqual, 0)
	})
}

func TestEvaluationScores(t *testing.T) {
	convey.Convey("Given evaluations of each game", t, func() {
		rf := &model.RapidFireEvaluation{
			ResponseRate: model.Criterion{Score: 6},
			Pace:         model.Criterion{Score: 7},
			Energy:       model.Criterion{Score: 8},
		}
		convey.So(rf.Overall(), convey.ShouldEqual, 7)
		convey.So(rf.Scores(), convey.ShouldResemble, map[string]float64{"responseRate": 6, "pace": 7, "energy": 8})

		cd := &model.ConductorEvaluation{OverallPerformance: model.PerformanceSummary{Score: 9}}
		convey.So(cd.Overall(), convey.ShouldEqual, 9)
		convey.So(cd.Scores(), convey.ShouldContainKey, model.SkillBreathRecovery)

		ts := &model.TripleStepEvaluation{}
		ts.OverallScore.Score = 4
		convey.So(ts.Overall(), convey.ShouldEqual, 4)
		convey.So(ts.Scores()[model.SkillOverall], convey.ShouldEqual, 4)

		convey.Convey("Embedded criteria flatten into the section object", func() {
			ts.Primary = model.WordIntegration{Criterion: model.Criterion{Score: 5, Feedback: "ok"}, WordsIntegrated: 2}
			raw, err := json.Marshal(ts)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(raw), convey.ShouldContainSubstring, `"primary":{"score":5,"feedback":"ok","wordsIntegrated":2`)
			convey.So(string(raw), convey.ShouldNotContainSubstring, "wordVerification")
		})
	})
}
