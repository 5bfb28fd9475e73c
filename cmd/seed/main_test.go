package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/okian/kickoff/internal/adapters/repository/sqlite"
	"github.com/okian/kickoff/internal/seed"
	"github.com/okian/kickoff/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRun(t *testing.T) {
	convey.Convey("Given an empty database file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "seed.db")

		convey.Convey("When seeding twelve players", func() {
			err := run(ctx, path, &seed.Config{Players: 12, Seed: 5, Performance: true, BatchSize: 5})
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the roster and its history are stored", func() {
				store, err := sqlite.Open(path)
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()

				players, err := store.ListPlayers(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(players, convey.ShouldHaveLength, 12)

				ids := make([]string, len(players))
				for i, p := range players {
					ids[i] = p.ID
				}
				perf, err := store.Performance(ctx, ids)
				convey.So(err, convey.ShouldBeNil)
				convey.So(perf, convey.ShouldHaveLength, 12)
			})

			convey.Convey("Then seeding again with the same seed is idempotent", func() {
				convey.So(run(ctx, path, &seed.Config{Players: 12, Seed: 5}), convey.ShouldBeNil)

				store, err := sqlite.Open(path)
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()
				players, err := store.ListPlayers(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(players, convey.ShouldHaveLength, 12)
			})
		})

		convey.Convey("When the database path is empty", func() {
			err := run(ctx, " ", &seed.Config{Players: 1})
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
