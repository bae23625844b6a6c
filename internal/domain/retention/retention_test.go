package retention_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/oratora/internal/adapters/blob"
	"github.com/okian/oratora/internal/adapters/mq/worker"
	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/internal/domain/registry"
	"github.com/okian/oratora/internal/domain/retention"
	"github.com/okian/oratora/internal/domain/scoring"
	"github.com/okian/oratora/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSweeper(t *testing.T) {
	Convey("Given sessions of different ages with stored audio", t, func() {
		ctx := context.Background()
		now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
		reg := registry.New(registry.WithLogger(logger.Nop()))
		dir := t.TempDir()
		blobs, err := blob.NewFileStore(dir)
		So(err, ShouldBeNil)

		add := func(id string, age time.Duration, status model.Status) {
			key := blob.PromptKey(id, 1)
			So(blobs.Put(ctx, key, []byte("RIFF")), ShouldBeNil)
			reg.CreateOrGet(id, func() *model.Session {
				s := games.NewRapidFireSession(id, "", model.Payload{TotalPrompts: 1}, now.Add(-age))
				s.Status = status
				s.AudioKeys = []string{key}
				return s
			})
		}
		add("stale-running", 25*time.Hour, model.StatusInProgress)
		add("stale-done", 30*time.Hour, model.StatusCompleted)
		add("fresh", time.Hour, model.StatusInProgress)

		sw := retention.New(reg, blobs,
			retention.WithClock(func() time.Time { return now }),
			retention.WithWindow(24*time.Hour),
			retention.WithInterval(time.Minute),
			retention.WithLogger(logger.Nop()),
		)

		Convey("one pass removes old sessions regardless of status, with their blobs", func() {
			res := sw.SweepOnce(ctx)
			So(res.Sessions, ShouldEqual, 2)
			So(res.Blobs, ShouldEqual, 2)
			So(reg.Len(), ShouldEqual, 1)
			_, err := reg.Get("fresh")
			So(err, ShouldBeNil)
			_, err = blobs.Open(ctx, blob.PromptKey("stale-done", 1))
			So(errors.Is(err, blob.ErrNotFound), ShouldBeTrue)
		})

		Convey("orphaned blobs older than the window are removed too", func() {
			So(blobs.Put(ctx, "orphan.wav", []byte("x")), ShouldBeNil)
			old := now.Add(-48 * time.Hour)
			So(os.Chtimes(filepath.Join(dir, "orphan.wav"), old, old), ShouldBeNil)
			res := sw.SweepOnce(ctx)
			So(res.Blobs, ShouldEqual, 3)
		})

		Convey("a job finishing after eviction does not resurrect the session", func() {
			sw.SweepOnce(ctx)
			ev := worker.NewEvaluator(reg, scoring.ClientFunc(func(context.Context, scoring.Request) ([]byte, error) {
				return nil, errors.New("late")
			}), worker.WithLogger(logger.Nop()))
			ev.Process(ctx, model.Job{SessionID: "stale-running", Game: model.GameRapidFire, Slot: 0})
			_, err := reg.Get("stale-running")
			So(errors.Is(err, registry.ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("Run stops when its context ends", func() {
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- sw.Run(runCtx) }()
			cancel()
			So(<-done, ShouldBeNil)
		})
	})

	Convey("A sweeper without a blob store only evicts sessions", t, func() {
		reg := registry.New(registry.WithLogger(logger.Nop()))
		reg.CreateOrGet("old", func() *model.Session {
			return games.NewConductorSession("old", "", model.Payload{}, time.Now().Add(-48*time.Hour))
		})
		res := retention.New(reg, nil, retention.WithLogger(logger.Nop())).SweepOnce(context.Background())
		So(res, ShouldResemble, retention.Result{Sessions: 1})
	})
}
