package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/okian/kickoff/internal/adapters/repository"
	"github.com/okian/kickoff/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var fiveASide = model.Formation{Defenders: 2, Midfielders: 2, Attackers: 1}

func openTempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kickoff.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store, path
}

func player(id string, v int) model.Player {
	return model.Player{
		ID:       id,
		Name:     "Player " + id,
		IsRinger: v == 5,
		Attributes: model.Attributes{
			Goalscoring: v, Defending: v, StaminaPace: v, Control: v, Teamwork: v, Resilience: v,
		},
	}
}

func session(id string) model.Assignment {
	a := model.NewAssignment(id, fiveASide, fiveASide)
	for i := range a.TeamA {
		a.TeamA[i].PlayerID = fmt.Sprintf("a%d", i+1)
		a.TeamB[i].PlayerID = fmt.Sprintf("b%d", i+1)
	}
	a.Unassigned = []string{"p1"}
	a.Version = 1
	return a
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestRoster(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with two players", t, func() {
		store, _ := openTempStore(t)
		So(store.UpsertPlayers(ctx, []model.Player{player("p2", 2), player("p1", 5)}), ShouldBeNil)
		So(store.UpsertPerformance(ctx, []model.Performance{{PlayerID: "p1", PowerRating: 0.8, GoalThreat: 0.3}}), ShouldBeNil)

		Convey("Players returns them in request order with every field", func() {
			got, err := store.Players(ctx, []string{"p2", "p1"})
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []model.Player{player("p2", 2), player("p1", 5)})
		})

		Convey("Missing ids are named", func() {
			_, err := store.Players(ctx, []string{"p1", "ghost"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "ghost")
		})

		Convey("Upserting an existing id updates it", func() {
			updated := player("p2", 4)
			updated.IsRetired = true
			So(store.UpsertPlayers(ctx, []model.Player{updated}), ShouldBeNil)

			all, err := store.ListPlayers(ctx)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 2)
			So(all[0].ID, ShouldEqual, "p1")
			So(all[1], ShouldResemble, updated)
		})

		Convey("Invalid attributes never reach the table", func() {
			err := store.UpsertPlayers(ctx, []model.Player{player("p3", 0)})
			So(errors.Is(err, repository.ErrInvalidPlayer), ShouldBeTrue)
		})

		Convey("Performance only returns stored metrics", func() {
			got, err := store.Performance(ctx, []string{"p1", "p2"})
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			So(got["p1"], ShouldResemble, model.Performance{PlayerID: "p1", PowerRating: 0.8, GoalThreat: 0.3})
		})

		Convey("Performance for an unknown player is refused", func() {
			err := store.UpsertPerformance(ctx, []model.Performance{{PlayerID: "ghost", PowerRating: 1}})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Templates round trip per size and mode", func() {
			f := model.Formation{Defenders: 2, Midfielders: 3, Attackers: 2}
			So(store.SetTemplate(ctx, 7, false, f), ShouldBeNil)

			got, ok, err := store.Template(ctx, 7, false)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(got, ShouldResemble, f)

			_, ok, err = store.Template(ctx, 8, false)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSessions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a saved session", t, func() {
		store, path := openTempStore(t)
		So(store.SaveAssignment(ctx, session("s1")), ShouldBeNil)

		Convey("It loads back unchanged", func() {
			got, err := store.LoadAssignment(ctx, "s1")
			So(err, ShouldBeNil)
			So(got.Equal(session("s1")), ShouldBeTrue)
			So(got.Version, ShouldEqual, uint64(1))
		})

		Convey("A swap is written in one transaction", func() {
			err := store.SaveBindings(ctx, "s1", []model.SlotBinding{
				{Team: model.TeamA, Slot: 2, PlayerID: "b4"},
				{Team: model.TeamB, Slot: 4, PlayerID: "a2"},
			})
			So(err, ShouldBeNil)

			got, _ := store.LoadAssignment(ctx, "s1")
			So(got.TeamA[1].PlayerID, ShouldEqual, "b4")
			So(got.TeamB[3].PlayerID, ShouldEqual, "a2")
			So(got.Unassigned, ShouldResemble, []string{"p1"})
			So(got.Version, ShouldEqual, uint64(2))
			So(got.Validate(), ShouldBeNil)
		})

		Convey("Pool players swap with seated players", func() {
			err := store.SaveBindings(ctx, "s1", []model.SlotBinding{{Team: model.TeamB, Slot: 5, PlayerID: "p1"}})
			So(err, ShouldBeNil)

			got, _ := store.LoadAssignment(ctx, "s1")
			So(got.TeamB[4].PlayerID, ShouldEqual, "p1")
			So(got.Unassigned, ShouldResemble, []string{"b5"})
		})

		Convey("An emptied slot pools its player", func() {
			err := store.SaveBindings(ctx, "s1", []model.SlotBinding{{Team: model.TeamA, Slot: 1}})
			So(err, ShouldBeNil)

			got, _ := store.LoadAssignment(ctx, "s1")
			So(got.TeamA[0].Empty(), ShouldBeTrue)
			So(got.Unassigned, ShouldResemble, []string{"a1", "p1"})
		})

		Convey("Seating a player twice rolls the whole write back", func() {
			err := store.SaveBindings(ctx, "s1", []model.SlotBinding{
				{Team: model.TeamA, Slot: 1, PlayerID: "p1"},
				{Team: model.TeamA, Slot: 2, PlayerID: "b1"},
			})
			So(errors.Is(err, repository.ErrBindingConflict), ShouldBeTrue)

			got, _ := store.LoadAssignment(ctx, "s1")
			So(got.Equal(session("s1")), ShouldBeTrue)
			So(got.Version, ShouldEqual, uint64(1))
		})

		Convey("Unknown slots and sessions are reported", func() {
			err := store.SaveBindings(ctx, "s1", []model.SlotBinding{{Team: model.TeamB, Slot: 9, PlayerID: "p1"}})
			So(errors.Is(err, repository.ErrUnknownSlot), ShouldBeTrue)

			err = store.SaveBindings(ctx, "nope", nil)
			So(errors.Is(err, repository.ErrUnknownSession), ShouldBeTrue)

			_, err = store.LoadAssignment(ctx, "nope")
			So(errors.Is(err, repository.ErrUnknownSession), ShouldBeTrue)
		})

		Convey("Saving again replaces every row", func() {
			next := model.NewAssignment("s1", fiveASide, model.Formation{Defenders: 1, Midfielders: 2, Attackers: 1})
			next.Unassigned = []string{"x", "y"}
			next.TeamA[0].PlayerID = "z"
			next.Version = 7
			So(store.SaveAssignment(ctx, next), ShouldBeNil)

			got, _ := store.LoadAssignment(ctx, "s1")
			So(got.Equal(next), ShouldBeTrue)
			So(got.Version, ShouldEqual, uint64(7))
			So(got.TeamB, ShouldHaveLength, 4)
		})

		Convey("State survives reopening the file", func() {
			So(store.SaveBindings(ctx, "s1", []model.SlotBinding{{Team: model.TeamA, Slot: 3, PlayerID: "p1"}}), ShouldBeNil)

			reopened, err := Open(path)
			So(err, ShouldBeNil)
			defer reopened.Close()

			got, err := reopened.LoadAssignment(ctx, "s1")
			So(err, ShouldBeNil)
			So(got.TeamA[2].PlayerID, ShouldEqual, "p1")
			So(got.Unassigned, ShouldResemble, []string{"a3"})
		})

		Convey("A cancelled context does no work", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := store.SaveBindings(cctx, "s1", []model.SlotBinding{{Team: model.TeamA, Slot: 1}})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestUpSection(t *testing.T) {
	Convey("upSection", t, func() {
		So(upSection("-- +migrate Up\nCREATE x;\n-- +migrate Down\nDROP x;"), ShouldEqual, "\nCREATE x;\n")
		So(upSection("CREATE y;"), ShouldEqual, "CREATE y;")
		So(upSection("-- +migrate Up\nCREATE z;"), ShouldEqual, "\nCREATE z;")
	})
}
