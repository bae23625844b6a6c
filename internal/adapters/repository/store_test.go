package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/okian/oratora/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// storeContract runs the behaviour every Store must share.
func storeContract(newStore func() Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	Convey("CreateSession assigns an id and GetSession reads it back", func() {
		s := newStore()
		rec, err := s.CreateSession(ctx, model.HistoryRecord{
			UserID:    "u1",
			GameType:  model.GameConductor,
			Topic:     "travel",
			CreatedAt: base,
			SessionData: model.SessionData{
				SessionID: "sess-1",
				Payload:   model.Payload{Topic: "travel", DurationMinutes: 2},
			},
		})
		So(err, ShouldBeNil)
		So(rec.ID, ShouldNotBeEmpty)

		got, err := s.GetSession(ctx, rec.ID)
		So(err, ShouldBeNil)
		So(got.UserID, ShouldEqual, "u1")
		So(got.GameType, ShouldEqual, model.GameConductor)
		So(got.SessionData.Payload.DurationMinutes, ShouldEqual, 2)
		So(got.Completed, ShouldBeFalse)
		So(got.CreatedAt.Equal(base), ShouldBeTrue)

		Convey("UpdateSession replaces fields but keeps CreatedAt", func() {
			upd := *got
			upd.Completed = true
			upd.Duration = 93.5
			upd.EnergyLevels = []float64{3, 7}
			upd.SessionData.AverageScores = map[string]float64{model.SkillOverall: 7}
			upd.CreatedAt = base.Add(time.Hour)
			out, err := s.UpdateSession(ctx, upd)
			So(err, ShouldBeNil)
			So(out.Completed, ShouldBeTrue)
			So(out.CreatedAt.Equal(base), ShouldBeTrue)

			again, _ := s.GetSession(ctx, rec.ID)
			So(again.Duration, ShouldEqual, 93.5)
			So(again.EnergyLevels, ShouldResemble, []float64{3, 7})
			So(again.SessionData.AverageScores[model.SkillOverall], ShouldEqual, 7)
		})
	})

	Convey("unknown ids are ErrNotFound", func() {
		s := newStore()
		_, err := s.GetSession(ctx, "00000000-0000-0000-0000-000000000000")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		_, err = s.UpdateSession(ctx, model.HistoryRecord{ID: "00000000-0000-0000-0000-000000000000", UserID: "u"})
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
	})

	Convey("a record without a user is rejected", func() {
		_, err := newStore().CreateSession(ctx, model.HistoryRecord{GameType: model.GameRapidFire})
		So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
	})

	Convey("ListUserSessions filters by user and game, newest first", func() {
		s := newStore()
		user := fmt.Sprintf("list-%d", time.Now().UnixNano())
		for i, g := range []model.GameType{model.GameRapidFire, model.GameConductor, model.GameRapidFire} {
			_, err := s.CreateSession(ctx, model.HistoryRecord{
				UserID: user, GameType: g, CreatedAt: base.Add(time.Duration(i) * time.Hour),
			})
			So(err, ShouldBeNil)
		}
		_, _ = s.CreateSession(ctx, model.HistoryRecord{UserID: user + "-other", GameType: model.GameRapidFire, CreatedAt: base})

		all, err := s.ListUserSessions(ctx, user, "")
		So(err, ShouldBeNil)
		So(all, ShouldHaveLength, 3)
		So(all[0].CreatedAt.After(all[2].CreatedAt), ShouldBeTrue)

		rf, err := s.ListUserSessions(ctx, user, model.GameRapidFire)
		So(err, ShouldBeNil)
		So(rf, ShouldHaveLength, 2)
	})

	Convey("RecordGamePlayed accumulates per user and game", func() {
		s := newStore()
		user := fmt.Sprintf("stats-%d", time.Now().UnixNano())
		st, err := s.RecordGamePlayed(ctx, user, model.GameConductor, model.StatsDelta{Duration: 60, EnergyLevels: []float64{2, 4}}, base)
		So(err, ShouldBeNil)
		So(st.TotalSessions, ShouldEqual, 1)
		So(*st.AverageEnergyLevel, ShouldEqual, 3)

		st, err = s.RecordGamePlayed(ctx, user, model.GameConductor, model.StatsDelta{Duration: 30}, base.Add(time.Hour))
		So(err, ShouldBeNil)
		So(st.TotalSessions, ShouldEqual, 2)
		So(st.TotalDuration, ShouldEqual, 90)
		So(*st.AverageEnergyLevel, ShouldEqual, 3)
		So(st.LastPlayed.Equal(base.Add(time.Hour)), ShouldBeTrue)

		_, _ = s.RecordGamePlayed(ctx, user, model.GameTripleStep, model.StatsDelta{Duration: 45}, base)
		list, err := s.ListUserGameStats(ctx, user)
		So(err, ShouldBeNil)
		So(list, ShouldHaveLength, 2)
		So(list[0].GameType, ShouldEqual, model.GameConductor)
		So(list[1].AverageEnergyLevel, ShouldBeNil)
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		storeContract(func() Store { return NewMemoryStore() })
	})

	Convey("Options override clock and ids", t, func() {
		at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		s := NewMemoryStore(WithClock(func() time.Time { return at }), WithIDGenerator(func() string { return "fixed" }))
		rec, err := s.CreateSession(context.Background(), model.HistoryRecord{UserID: "u"})
		So(err, ShouldBeNil)
		So(rec.ID, ShouldEqual, "fixed")
		So(rec.UpdatedAt, ShouldEqual, at)

		_, err = s.CreateSession(context.Background(), model.HistoryRecord{UserID: "u"})
		So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
	})

	Convey("Returned records do not alias stored state", t, func() {
		s := NewMemoryStore()
		rec, _ := s.CreateSession(context.Background(), model.HistoryRecord{UserID: "u", AudioFiles: []string{"a"}})
		rec.AudioFiles[0] = "changed"
		got, _ := s.GetSession(context.Background(), rec.ID)
		So(got.AudioFiles[0], ShouldEqual, "a")
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ORATORA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ORATORA_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	ctx := context.Background()
	store, err := ConnectPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("ConnectPostgres: %v", err)
	}
	t.Cleanup(store.Close)
	if _, err := store.db.Exec(ctx, `TRUNCATE game_sessions, user_game_stats`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	Convey("Given a PostgreSQL store", t, func() {
		storeContract(func() Store { return store })
	})
}
