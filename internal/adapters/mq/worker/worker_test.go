package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/kickoff/internal/adapters/mq/queue"
	worker "github.com/okian/kickoff/internal/adapters/mq/worker"
	"github.com/okian/kickoff/internal/adapters/repository"
	model "github.com/okian/kickoff/internal/domain/model"
	logging "github.com/okian/kickoff/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

// recordingApplier remembers applied report ids and fails for listed players.
type recordingApplier struct {
	mu      sync.Mutex
	applied []string
	fail    map[string]error
}

func (a *recordingApplier) Apply(_ context.Context, r queue.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.fail[r.PlayerID]; ok {
		return err
	}
	a.applied = append(a.applied, r.ReportID)
	return nil
}

func (a *recordingApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

func seededStore(ids ...string) *repository.MemoryStore {
	store := repository.NewMemoryStore()
	players := make([]model.Player, len(ids))
	for i, id := range ids {
		players[i] = model.Player{ID: id, Name: id, Attributes: model.Attributes{
			Goalscoring: 3, Defending: 3, StaminaPace: 3, Control: 3, Teamwork: 3, Resilience: 3,
		}}
	}
	if err := store.UpsertPlayers(context.Background(), players); err != nil {
		panic(err)
	}
	return store
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker on an open queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		applier := &recordingApplier{fail: map[string]error{"bad": errors.New("apply error")}}
		w := worker.NewInMemoryWorker(q, applier, worker.WithName("test-worker"), worker.WithLogger(logging.Nop()))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When reports arrive and the queue is closed", func() {
			convey.So(q.Enqueue(ctx, model.PerformanceReport{ReportID: "r1", PlayerID: "p1"}), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, model.PerformanceReport{ReportID: "r2", PlayerID: "bad"}), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, model.PerformanceReport{ReportID: "r3", PlayerID: "p2"}), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then the queue is drained and failures are skipped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(applier.applied, convey.ShouldResemble, []string{"r1", "r3"})
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then the worker stops without the queue closing", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given a worker that never runs", t, func() {
		w := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), &recordingApplier{})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		convey.Convey("Then Shutdown times out with the context error", func() {
			err := w.Shutdown(ctx)
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, queue.NewInMemoryQueue(), &recordingApplier{})

			convey.Convey("Then it falls back to one worker per CPU", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When many reports are processed concurrently", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(500))
			applier := &recordingApplier{}
			pool := worker.NewPool(4, q, applier, worker.WithLogger(logging.Nop()))
			convey.So(pool.Size(), convey.ShouldEqual, 4)
			pool.Start(context.Background())

			for i := 0; i < 200; i++ {
				r := model.PerformanceReport{ReportID: fmt.Sprintf("r%d", i), PlayerID: fmt.Sprintf("p%d", i%7)}
				convey.So(q.Enqueue(context.Background(), r), convey.ShouldBeNil)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err := pool.Shutdown(ctx)

			convey.Convey("Then shutdown drains every report", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(applier.count(), convey.ShouldEqual, 200)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestBlender(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a blender over a seeded store", t, func() {
		store := seededStore("p1", "p2")
		b := worker.NewBlender(store, 0.5)

		convey.Convey("When a player has no history", func() {
			err := b.Apply(ctx, model.PerformanceReport{ReportID: "r1", PlayerID: "p1", PowerRating: 0.6, GoalThreat: 0.2})
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the report becomes the history", func() {
				perf, err := store.Performance(ctx, []string{"p1"})
				convey.So(err, convey.ShouldBeNil)
				convey.So(perf["p1"], convey.ShouldResemble, model.Performance{PlayerID: "p1", PowerRating: 0.6, GoalThreat: 0.2})
				convey.So(b.Applied(), convey.ShouldEqual, int64(1))
			})

			convey.Convey("And a second report is averaged in", func() {
				err := b.Apply(ctx, model.PerformanceReport{ReportID: "r2", PlayerID: "p1", PowerRating: 1.0, GoalThreat: 0.0})
				convey.So(err, convey.ShouldBeNil)

				perf, _ := store.Performance(ctx, []string{"p1"})
				convey.So(perf["p1"].PowerRating, convey.ShouldAlmostEqual, 0.8, 1e-9)
				convey.So(perf["p1"].GoalThreat, convey.ShouldAlmostEqual, 0.1, 1e-9)
			})
		})

		convey.Convey("When the player is not on the roster", func() {
			err := b.Apply(ctx, model.PerformanceReport{ReportID: "r1", PlayerID: "ghost", PowerRating: 0.5})

			convey.Convey("Then the write error is returned", func() {
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
				convey.So(b.Applied(), convey.ShouldEqual, int64(0))
			})
		})

		convey.Convey("When many reports for one player race", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = b.Apply(ctx, model.PerformanceReport{ReportID: fmt.Sprint(i), PlayerID: "p2", PowerRating: 0.5, GoalThreat: 0.5})
				}(i)
			}
			wg.Wait()

			convey.Convey("Then every report is counted", func() {
				convey.So(b.Applied(), convey.ShouldEqual, int64(50))
				perf, _ := store.Performance(ctx, []string{"p2"})
				convey.So(perf["p2"].PowerRating, convey.ShouldAlmostEqual, 0.5, 1e-9)
			})
		})

		convey.Convey("When alpha is out of range", func() {
			b := worker.NewBlender(store, 2)
			convey.So(b.Apply(ctx, model.PerformanceReport{ReportID: "a", PlayerID: "p1", PowerRating: 0}), convey.ShouldBeNil)
			convey.So(b.Apply(ctx, model.PerformanceReport{ReportID: "b", PlayerID: "p1", PowerRating: 1}), convey.ShouldBeNil)

			convey.Convey("Then the default factor is used", func() {
				perf, _ := store.Performance(ctx, []string{"p1"})
				convey.So(perf["p1"].PowerRating, convey.ShouldAlmostEqual, worker.DefaultBlendFactor, 1e-9)
			})
		})
	})
}
