package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func rapidInit(n int, at time.Time) func() *model.Session {
	return func() *model.Session {
		return games.NewRapidFireSession("", "", model.Payload{TotalPrompts: n}, at)
	}
}

func TestRegistry(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		r := New(WithLogger(logger.Nop()))
		now := time.Now()

		Convey("CreateOrGet materializes once and never resets progress", func() {
			s, created := r.CreateOrGet("s1", rapidInit(3, now))
			So(created, ShouldBeTrue)
			So(s.ID, ShouldEqual, "s1")
			So(s.Slots, ShouldHaveLength, 3)

			_, err := r.Mutate("s1", func(s *model.Session) error {
				s.Claimed[0] = true
				s.Filled = 1
				return nil
			})
			So(err, ShouldBeNil)

			again, created := r.CreateOrGet("s1", rapidInit(5, now))
			So(created, ShouldBeFalse)
			So(again.Filled, ShouldEqual, 1)
			So(again.Slots, ShouldHaveLength, 3)
			So(r.Len(), ShouldEqual, 1)
		})

		Convey("concurrent creates for one id produce a single entry", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			createdCount := 0
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, created := r.CreateOrGet("same", rapidInit(2, now)); created {
						mu.Lock()
						createdCount++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			So(createdCount, ShouldEqual, 1)
			So(r.Len(), ShouldEqual, 1)
		})

		Convey("Get on a missing id is SessionNotFound", func() {
			_, err := r.Get("nope")
			So(errors.Is(err, ErrSessionNotFound), ShouldBeTrue)
			_, err = r.Mutate("nope", func(*model.Session) error { return nil })
			So(errors.Is(err, ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("returned sessions are copies", func() {
			s, _ := r.CreateOrGet("s1", rapidInit(1, now))
			s.Status = model.StatusCompleted
			s.Claimed[0] = true
			got, err := r.Get("s1")
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusInProgress)
			So(got.Claimed[0], ShouldBeFalse)
		})

		Convey("a failing mutation is rolled back", func() {
			r.CreateOrGet("s1", rapidInit(2, now))
			boom := errors.New("boom")
			_, err := r.Mutate("s1", func(s *model.Session) error {
				s.Claimed[1] = true
				s.Filled = 2
				return boom
			})
			So(errors.Is(err, boom), ShouldBeTrue)
			got, _ := r.Get("s1")
			So(got.Filled, ShouldEqual, 0)
			So(got.Claimed[1], ShouldBeFalse)
		})

		Convey("DeleteCreatedBefore evicts by age regardless of status", func() {
			r.CreateOrGet("old", rapidInit(1, now.Add(-25*time.Hour)))
			r.CreateOrGet("fresh", rapidInit(1, now))
			_, _ = r.Mutate("old", func(s *model.Session) error {
				s.Status = model.StatusInProgress
				return nil
			})

			removed := r.DeleteCreatedBefore(now.Add(-24 * time.Hour))
			So(removed, ShouldHaveLength, 1)
			So(removed[0].ID, ShouldEqual, "old")
			_, err := r.Get("old")
			So(errors.Is(err, ErrSessionNotFound), ShouldBeTrue)
			So(r.Len(), ShouldEqual, 1)
		})

		Convey("Delete and Snapshot", func() {
			r.CreateOrGet("b", rapidInit(1, now))
			r.CreateOrGet("a", rapidInit(1, now.Add(-time.Minute)))
			snap := r.Snapshot()
			So(snap, ShouldHaveLength, 2)
			So(snap[0].ID, ShouldEqual, "a")

			So(r.Delete("a"), ShouldBeTrue)
			So(r.Delete("a"), ShouldBeFalse)
			So(r.Len(), ShouldEqual, 1)
		})
	})
}
