package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/oratora/internal/adapters/mq/queue"
	"github.com/okian/oratora/internal/adapters/mq/worker"
	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/internal/domain/registry"
	"github.com/okian/oratora/internal/domain/scoring"
	logging "github.com/okian/oratora/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const goodRapidFire = `{"responseRate":{"score":8,"feedback":"a"},"pace":{"score":6,"feedback":"b"},"energy":{"score":7,"feedback":"c"}}`

type mockMirror struct {
	mu        sync.Mutex
	records   []model.HistoryRecord
	stats     []model.StatsDelta
	updateErr error
}

func (m *mockMirror) UpdateSession(_ context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.records = append(m.records, rec)
	return &rec, nil
}

func (m *mockMirror) RecordGamePlayed(_ context.Context, _ string, _ model.GameType, d model.StatsDelta, _ time.Time) (*model.UserGameStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, d)
	return &model.UserGameStats{}, nil
}

// scriptedScorer fails for the slots listed in failSlots and records how
// many calls were in flight at once.
type scriptedScorer struct {
	mu        sync.Mutex
	failSlots map[int]bool
	inFlight  int
	maxFlight int
	calls     []int
}

func (s *scriptedScorer) Score(_ context.Context, req scoring.Request) ([]byte, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxFlight {
		s.maxFlight = s.inFlight
	}
	s.calls = append(s.calls, req.Context.PromptIndex)
	fail := s.failSlots[req.Context.PromptIndex-1]
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	if fail {
		return nil, errors.New("upstream 503")
	}
	return []byte(goodRapidFire), nil
}

func rapidJob(sessionID string, slot int) model.Job {
	return model.Job{
		SessionID:  sessionID,
		Game:       model.GameRapidFire,
		Slot:       slot,
		Audio:      model.Audio{Data: []byte{1}, MIMEType: "audio/wav", Key: "k"},
		Context:    model.PromptContext{Prompt: "p", PromptIndex: slot + 1, TotalPrompts: 3, TotalTime: 5},
		EnqueuedAt: time.Now(),
	}
}

// claimedRapidFire is a rapid-fire session whose every prompt was accepted.
func claimedRapidFire(id, userID string, total int, created time.Time) *model.Session {
	s := games.NewRapidFireSession(id, userID, model.Payload{TotalPrompts: total}, created)
	for i := range s.Claimed {
		s.Claimed[i] = true
	}
	return s
}

// endedConductor is a conductor session whose recording was accepted.
func endedConductor(id string, created time.Time) *model.Session {
	s := games.NewConductorSession(id, "", model.Payload{Topic: "t"}, created)
	s.Status = model.StatusCompleted
	return s
}

func TestEvaluatorRapidFireScenario(t *testing.T) {
	convey.Convey("Given three rapid-fire jobs where slot 1 fails", t, func() {
		reg := registry.New(registry.WithLogger(logging.Nop()))
		reg.CreateOrGet("S", func() *model.Session {
			s := claimedRapidFire("S", "user-1", 3, time.Now())
			s.StoreID = "rec-1"
			return s
		})
		scorer := &scriptedScorer{failSlots: map[int]bool{1: true}}
		mirror := &mockMirror{}
		ev := worker.NewEvaluator(reg, scorer, worker.WithLogger(logging.Nop()), worker.WithMirror(mirror))
		q := queue.New(ev.Process, queue.WithLogger(logging.Nop()))
		ctx := context.Background()

		for slot := range 3 {
			_, err := q.Enqueue(ctx, rapidJob("S", slot))
			convey.So(err, convey.ShouldBeNil)
		}
		q.Drain(ctx)
		q.Drain(ctx)
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		convey.So(q.Wait(waitCtx), convey.ShouldBeNil)

		convey.Convey("the session completes with the failed slot flagged", func() {
			s, err := reg.Get("S")
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Status, convey.ShouldEqual, model.StatusCompleted)
			convey.So(s.Filled, convey.ShouldEqual, 3)
			convey.So(s.Slots[1].Error, convey.ShouldBeTrue)
			convey.So(s.Slots[1].Evaluation.Overall(), convey.ShouldEqual, games.PlaceholderScore)
			convey.So(s.Slots[0].Error, convey.ShouldBeFalse)
			convey.So(s.Slots[2].Error, convey.ShouldBeFalse)
			convey.So(s.Error, convey.ShouldBeTrue)
		})

		convey.Convey("scoring ran one call at a time in FIFO order", func() {
			convey.So(scorer.maxFlight, convey.ShouldEqual, 1)
			convey.So(scorer.calls, convey.ShouldResemble, []int{1, 2, 3})
		})

		convey.Convey("the terminal session was mirrored once without the placeholder", func() {
			convey.So(mirror.records, convey.ShouldHaveLength, 1)
			rec := mirror.records[0]
			convey.So(rec.ID, convey.ShouldEqual, "rec-1")
			convey.So(rec.Completed, convey.ShouldBeTrue)
			convey.So(rec.SessionData.AverageScores[model.SkillResponseRate], convey.ShouldEqual, 8)
			convey.So(mirror.stats, convey.ShouldHaveLength, 1)
			convey.So(mirror.stats[0].Duration, convey.ShouldEqual, 15)
		})
	})
}

func TestEvaluatorEdgeCases(t *testing.T) {
	convey.Convey("Given a registry and an evaluator", t, func() {
		reg := registry.New(registry.WithLogger(logging.Nop()))
		ctx := context.Background()
		ok := scoring.ClientFunc(func(context.Context, scoring.Request) ([]byte, error) {
			return []byte(goodRapidFire), nil
		})

		convey.Convey("a job for an evicted session is skipped and not resurrected", func() {
			ev := worker.NewEvaluator(reg, ok, worker.WithLogger(logging.Nop()))
			convey.So(func() { ev.Process(ctx, rapidJob("gone", 0)) }, convey.ShouldNotPanic)
			_, err := reg.Get("gone")
			convey.So(errors.Is(err, registry.ErrSessionNotFound), convey.ShouldBeTrue)
			convey.So(reg.Len(), convey.ShouldEqual, 0)
		})

		convey.Convey("a job from an evicted session does not land in a session recreated under its id", func() {
			created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			reg.CreateOrGet("R", func() *model.Session { return endedConductor("R", created) })
			old := model.Job{SessionID: "R", Game: model.GameConductor, Slot: model.NoSlot, EnqueuedAt: created.Add(time.Second)}

			reg.Delete("R")
			reg.CreateOrGet("R", func() *model.Session {
				return games.NewConductorSession("R", "", model.Payload{Topic: "t"}, created.Add(time.Minute))
			})
			ev := worker.NewEvaluator(reg, ok, worker.WithLogger(logging.Nop()))
			ev.Process(ctx, old)

			s, err := reg.Get("R")
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Status, convey.ShouldEqual, model.StatusInProgress)
			convey.So(s.Filled, convey.ShouldEqual, 0)
			convey.So(s.Evaluation, convey.ShouldBeNil)

			convey.Convey("even once the new session has ended", func() {
				_, err := reg.Mutate("R", func(m *model.Session) error {
					m.Status = model.StatusCompleted
					return nil
				})
				convey.So(err, convey.ShouldBeNil)
				ev.Process(ctx, old)
				s, _ := reg.Get("R")
				convey.So(s.Status, convey.ShouldEqual, model.StatusCompleted)
				convey.So(s.Filled, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("a rapid-fire job for an unclaimed slot is discarded", func() {
			reg.CreateOrGet("U", func() *model.Session {
				return games.NewRapidFireSession("U", "", model.Payload{TotalPrompts: 2}, time.Now())
			})
			ev := worker.NewEvaluator(reg, ok, worker.WithLogger(logging.Nop()))
			ev.Process(ctx, rapidJob("U", 0))
			s, _ := reg.Get("U")
			convey.So(s.Filled, convey.ShouldEqual, 0)
			convey.So(s.Slots[0], convey.ShouldBeNil)
		})

		convey.Convey("unparseable output becomes a placeholder", func() {
			reg.CreateOrGet("C", func() *model.Session {
				return endedConductor("C", time.Now())
			})
			garbage := scoring.ClientFunc(func(context.Context, scoring.Request) ([]byte, error) {
				return []byte("I think you did great!"), nil
			})
			ev := worker.NewEvaluator(reg, garbage, worker.WithLogger(logging.Nop()))
			ev.Process(ctx, model.Job{SessionID: "C", Game: model.GameConductor, Slot: model.NoSlot, EnqueuedAt: time.Now()})

			s, _ := reg.Get("C")
			convey.So(s.Status, convey.ShouldEqual, model.StatusEvaluationFailed)
			convey.So(s.Error, convey.ShouldBeTrue)
			convey.So(s.Evaluation.Overall(), convey.ShouldEqual, games.PlaceholderScore)
		})

		convey.Convey("a job whose game does not match the session is discarded", func() {
			reg.CreateOrGet("T", func() *model.Session {
				return games.NewTripleStepSession("T", "", model.Payload{}, time.Now())
			})
			ev := worker.NewEvaluator(reg, ok, worker.WithLogger(logging.Nop()))
			ev.Process(ctx, rapidJob("T", 0))
			s, _ := reg.Get("T")
			convey.So(s.Filled, convey.ShouldEqual, 0)
			convey.So(s.Status, convey.ShouldEqual, model.StatusInProgress)
		})

		convey.Convey("mirror failures do not roll back the registry", func() {
			reg.CreateOrGet("M", func() *model.Session {
				s := claimedRapidFire("M", "u", 1, time.Now())
				s.StoreID = "rec"
				return s
			})
			mirror := &mockMirror{updateErr: errors.New("db down")}
			ev := worker.NewEvaluator(reg, ok,
				worker.WithLogger(logging.Nop()),
				worker.WithMirror(mirror),
				worker.WithMirrorTimeout(time.Second),
				worker.WithClock(time.Now),
			)
			ev.Process(ctx, rapidJob("M", 0))
			s, _ := reg.Get("M")
			convey.So(s.Status, convey.ShouldEqual, model.StatusCompleted)
			convey.So(mirror.stats, convey.ShouldBeEmpty)
		})

		convey.Convey("unknown games are dropped", func() {
			ev := worker.NewEvaluator(reg, ok, worker.WithLogger(logging.Nop()))
			convey.So(func() { ev.Process(ctx, model.Job{SessionID: "x", Game: "charades"}) }, convey.ShouldNotPanic)
		})
	})
}
