package seed

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/kickoff/internal/adapters/repository"
	"github.com/okian/kickoff/internal/domain/model"
	"github.com/okian/kickoff/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var errWriteFailed = errors.New("write failed")

// failingWriter refuses performance rows.
type failingWriter struct {
	*repository.MemoryStore
}

func (failingWriter) UpsertPerformance(context.Context, []model.Performance) error {
	return errWriteFailed
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a := NewGenerator(42).Players(200)
		b := NewGenerator(42).Players(200)

		Convey("Then they produce the same roster", func() {
			So(a, ShouldResemble, b)
		})

		Convey("Then every player is valid with a unique id", func() {
			seen := make(map[string]bool, len(a))
			for _, p := range a {
				So(p.Attributes.Validate(), ShouldBeNil)
				So(p.Name, ShouldNotBeBlank)
				So(seen[p.ID], ShouldBeFalse)
				seen[p.ID] = true
			}
		})

		Convey("Then a different seed produces a different roster", func() {
			c := NewGenerator(43).Players(200)
			So(c[0].ID, ShouldNotEqual, a[0].ID)
		})

		Convey("Then performance rows stay on the unit scale", func() {
			rows := NewGenerator(42).Performance(a)
			So(rows, ShouldHaveLength, len(a))
			for i, r := range rows {
				So(r.PlayerID, ShouldEqual, a[i].ID)
				So(r.PowerRating, ShouldBeBetweenOrEqual, 0.0, 1.0)
				So(r.GoalThreat, ShouldBeBetweenOrEqual, 0.0, 1.0)
			}
		})
	})

	Convey("clamp01 bounds values", t, func() {
		So(clamp01(-0.5), ShouldEqual, 0.0)
		So(clamp01(0.25), ShouldEqual, 0.25)
		So(clamp01(1.5), ShouldEqual, 1.0)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory store", t, func() {
		store := repository.NewMemoryStore()

		Convey("When seeding with performance history in small batches", func() {
			stats, err := Run(ctx, &Config{Players: 23, Seed: 9, Performance: true, BatchSize: 10}, store)
			So(err, ShouldBeNil)

			Convey("Then every player and row is written", func() {
				So(stats.PlayersGenerated, ShouldEqual, 23)
				So(stats.PerformanceRows, ShouldEqual, 23)
				So(stats.Batches, ShouldEqual, 3)
				So(stats.Duration >= 0, ShouldBeTrue)

				players, err := store.ListPlayers(ctx)
				So(err, ShouldBeNil)
				So(players, ShouldHaveLength, 23)

				ids := make([]string, len(players))
				for i, p := range players {
					ids[i] = p.ID
				}
				perf, err := store.Performance(ctx, ids)
				So(err, ShouldBeNil)
				So(perf, ShouldHaveLength, 23)
			})
		})

		Convey("When an output file is requested", func() {
			out := filepath.Join(t.TempDir(), "dump", "roster.json")
			_, err := Run(ctx, &Config{Players: 5, Seed: 1, OutputFile: out}, store)
			So(err, ShouldBeNil)

			Convey("Then the roster is dumped as JSON", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var dumped []model.Player
				So(json.Unmarshal(data, &dumped), ShouldBeNil)
				So(dumped, ShouldResemble, NewGenerator(1).Players(5))
			})
		})

		Convey("When the config is unusable", func() {
			_, err := Run(ctx, &Config{Players: 0}, store)
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)

			_, err = Run(ctx, &Config{Players: 3, BatchSize: -1}, store)
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the writer fails", func() {
			_, err := Run(ctx, &Config{Players: 3, Performance: true}, failingWriter{store})
			So(errors.Is(err, errWriteFailed), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := Run(cctx, &Config{Players: 3}, store)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
