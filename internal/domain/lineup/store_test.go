package lineup

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/okian/kickoff/internal/domain/errs"
	"github.com/okian/kickoff/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var errStoreDown = errors.New("store down")

type recordingPersister struct {
	mu          sync.Mutex
	fail        bool
	block       bool
	bindings    [][]model.SlotBinding
	assignments []model.Assignment
}

func (p *recordingPersister) SaveBindings(ctx context.Context, _ string, b []model.SlotBinding) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if p.fail {
		return errStoreDown
	}
	p.bindings = append(p.bindings, b)
	return nil
}

func (p *recordingPersister) SaveAssignment(_ context.Context, a model.Assignment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errStoreDown
	}
	p.assignments = append(p.assignments, a)
	return nil
}

var nineASide = model.Formation{Defenders: 3, Midfielders: 4, Attackers: 2}

// fixture puts a01..a09 in team A, b01..b09 in team B and two players in the pool.
func fixture() model.Assignment {
	a := model.NewAssignment("s1", nineASide, nineASide)
	for i := range a.TeamA {
		a.TeamA[i].PlayerID = fmt.Sprintf("a%02d", i+1)
		a.TeamB[i].PlayerID = fmt.Sprintf("b%02d", i+1)
	}
	a.Unassigned = []string{"pool1", "pool2"}
	return a
}

func newTestStore(t *testing.T, p Persister, opts ...Option) *Store {
	t.Helper()
	s, err := NewStore(fixture(), append([]Option{WithPersister(p)}, opts...)...)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func at(a model.Assignment, id string) model.Location {
	loc, _ := a.Location(id)
	return loc
}

func TestMoveOrSwap(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with two full teams and two pooled players", t, func() {
		p := &recordingPersister{}
		s := newTestStore(t, p)
		So(s.Version(), ShouldEqual, 1)

		Convey("When a player is moved onto an occupied slot of the other team", func() {
			a, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a01", Team: model.TeamB, Slot: 1})

			Convey("Then the two players swap places atomically", func() {
				So(err, ShouldBeNil)
				So(at(a, "a01"), ShouldResemble, model.Location{Team: model.TeamB, Slot: 1})
				So(at(a, "b01"), ShouldResemble, model.Location{Team: model.TeamA, Slot: 1})
				So(a.Validate(), ShouldBeNil)
				So(a.Version, ShouldEqual, uint64(2))
			})

			Convey("And only the two touched slots are persisted", func() {
				So(p.bindings, ShouldHaveLength, 1)
				So(p.bindings[0], ShouldResemble, []model.SlotBinding{
					{Team: model.TeamA, Slot: 1, PlayerID: "b01"},
					{Team: model.TeamB, Slot: 1, PlayerID: "a01"},
				})
			})
		})

		Convey("When a pooled player is moved onto an occupied slot", func() {
			a, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "pool1", Team: model.TeamA, Slot: 5})

			Convey("Then the occupant goes to the pool", func() {
				So(err, ShouldBeNil)
				So(at(a, "pool1"), ShouldResemble, model.Location{Team: model.TeamA, Slot: 5})
				So(at(a, "a05").IsPool(), ShouldBeTrue)
				So(a.Unassigned, ShouldResemble, []string{"a05", "pool2"})
			})
		})

		Convey("When a player is moved to the pool and another into the freed slot", func() {
			_, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "b09", Team: model.Unassigned})
			So(err, ShouldBeNil)
			a, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a02", Team: model.TeamB, Slot: 9})

			Convey("Then the mover's previous slot is left empty", func() {
				So(err, ShouldBeNil)
				So(a.TeamA[1].Empty(), ShouldBeTrue)
				So(a.TeamB[8].PlayerID, ShouldEqual, "a02")
				So(a.Version, ShouldEqual, uint64(3))
			})
		})

		Convey("When a player is dropped on its own slot", func() {
			before := s.Snapshot()
			a, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a03", Team: model.TeamA, Slot: 3})

			Convey("Then nothing changes and nothing is persisted", func() {
				So(err, ShouldBeNil)
				So(a.Equal(before), ShouldBeTrue)
				So(a.Version, ShouldEqual, before.Version)
				So(p.bindings, ShouldBeEmpty)
			})
		})

		Convey("When the player is unknown", func() {
			_, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "ghost", Team: model.TeamA, Slot: 1})

			Convey("Then a validation error is returned", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, ErrUnknownPlayer), ShouldBeTrue)
			})
		})

		Convey("When the slot does not exist", func() {
			_, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a01", Team: model.TeamB, Slot: 10})

			Convey("Then a validation error is returned and state is untouched", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, ErrSlotOutOfRange), ShouldBeTrue)
				So(s.Snapshot().Equal(fixture()), ShouldBeTrue)
			})
		})

		Convey("When the caller's version is stale", func() {
			_, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a01", Team: model.TeamB, Slot: 2})
			So(err, ShouldBeNil)
			_, err = s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a04", Team: model.TeamB, Slot: 3, IfVersion: 1})

			Convey("Then the move is rejected as a conflict", func() {
				So(errors.Is(err, errs.ErrConflict), ShouldBeTrue)
				So(at(s.Snapshot(), "a04"), ShouldResemble, model.Location{Team: model.TeamA, Slot: 4})
			})

			Convey("And the current version is accepted", func() {
				_, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a04", Team: model.TeamB, Slot: 3, IfVersion: 2})
				So(err, ShouldBeNil)
			})
		})

		Convey("When the same request id is retried", func() {
			req := MoveRequest{RequestID: "r1", PlayerID: "a01", Team: model.TeamB, Slot: 1}
			first, err := s.MoveOrSwap(ctx, req)
			So(err, ShouldBeNil)
			second, err := s.MoveOrSwap(ctx, req)

			Convey("Then it is applied once", func() {
				So(err, ShouldBeNil)
				So(second.Equal(first), ShouldBeTrue)
				So(second.Version, ShouldEqual, first.Version)
				So(p.bindings, ShouldHaveLength, 1)
			})
		})
	})
}

func TestSwapRoundTrip(t *testing.T) {
	ctx := context.Background()

	Convey("Given X in A/2 and Y in B/7", t, func() {
		s := newTestStore(t, &recordingPersister{})
		original := s.Snapshot()

		Convey("When X moves onto Y and then Y moves back onto X's new slot", func() {
			_, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a02", Team: model.TeamB, Slot: 7})
			So(err, ShouldBeNil)
			back, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "b07", Team: model.TeamB, Slot: 7})
			So(err, ShouldBeNil)

			Convey("Then the assignment equals the original", func() {
				So(back.Equal(original), ShouldBeTrue)
			})
		})

		Convey("When a pooled player round-trips through an occupied slot", func() {
			_, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "pool2", Team: model.TeamA, Slot: 9})
			So(err, ShouldBeNil)
			back, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a09", Team: model.TeamA, Slot: 9})
			So(err, ShouldBeNil)

			Convey("Then the assignment equals the original", func() {
				So(back.Equal(original), ShouldBeTrue)
			})
		})
	})
}

func TestSlotUniquenessUnderRandomMoves(t *testing.T) {
	Convey("Given a long random sequence of moves", t, func() {
		s := newTestStore(t, &recordingPersister{})
		rng := rand.New(rand.NewSource(42))
		ids := append(fixture().PlayerIDs(model.TeamA), fixture().PlayerIDs(model.TeamB)...)
		ids = append(ids, "pool1", "pool2")
		teams := []model.Team{model.Unassigned, model.TeamA, model.TeamB}

		var failures []string
		for i := 0; i < 1000; i++ {
			req := MoveRequest{
				PlayerID: ids[rng.Intn(len(ids))],
				Team:     teams[rng.Intn(len(teams))],
				Slot:     1 + rng.Intn(nineASide.Size()),
			}
			a, err := s.MoveOrSwap(context.Background(), req)
			if err != nil {
				failures = append(failures, err.Error())
				continue
			}
			if err := a.Validate(); err != nil {
				failures = append(failures, err.Error())
			}
			if err := s.arena.check(); err != nil {
				failures = append(failures, err.Error())
			}
		}

		Convey("Then no player is ever in two places and everyone is accounted for", func() {
			So(failures, ShouldBeEmpty)
			final := s.Snapshot()
			total := len(final.PlayerIDs(model.TeamA)) + len(final.PlayerIDs(model.TeamB)) + len(final.Unassigned)
			So(total, ShouldEqual, len(ids))
		})
	})
}

func TestConcurrentMoves(t *testing.T) {
	Convey("Given moves against one session from many goroutines", t, func() {
		s := newTestStore(t, &recordingPersister{})
		ids := append(fixture().PlayerIDs(model.TeamA), fixture().PlayerIDs(model.TeamB)...)
		ids = append(ids, "pool1", "pool2")
		teams := []model.Team{model.Unassigned, model.TeamA, model.TeamB}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			failures []string
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(seed int64) {
				defer wg.Done()
				rng := rand.New(rand.NewSource(seed))
				for i := 0; i < 200; i++ {
					a, err := s.MoveOrSwap(context.Background(), MoveRequest{
						PlayerID: ids[rng.Intn(len(ids))],
						Team:     teams[rng.Intn(len(teams))],
						Slot:     1 + rng.Intn(nineASide.Size()),
					})
					if err == nil {
						err = a.Validate()
					}
					if err != nil {
						mu.Lock()
						failures = append(failures, err.Error())
						mu.Unlock()
					}
				}
			}(int64(g))
		}
		wg.Wait()

		Convey("Then moves are serialized and the assignment stays consistent", func() {
			So(failures, ShouldBeEmpty)
			So(s.arena.check(), ShouldBeNil)
			final := s.Snapshot()
			So(final.Version, ShouldBeGreaterThan, uint64(0))
			So(final.Version, ShouldBeLessThanOrEqualTo, uint64(1601))
			total := len(final.PlayerIDs(model.TeamA)) + len(final.PlayerIDs(model.TeamB)) + len(final.Unassigned)
			So(total, ShouldEqual, len(ids))
		})
	})
}

func TestRollback(t *testing.T) {
	ctx := context.Background()

	Convey("Given a persister that always fails", t, func() {
		p := &recordingPersister{fail: true}
		s := newTestStore(t, p)
		before := s.Snapshot()

		Convey("When a swap is attempted", func() {
			_, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "a01", Team: model.TeamB, Slot: 1})

			Convey("Then a persistence error names the move", func() {
				So(errors.Is(err, errs.ErrPersistence), ShouldBeTrue)
				So(errors.Is(err, errStoreDown), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "swap a01 -> B/1")
			})

			Convey("And a subsequent read equals the state before the call", func() {
				after := s.Snapshot()
				So(after.Equal(before), ShouldBeTrue)
				So(after.Version, ShouldEqual, before.Version)
			})
		})

		Convey("When the same request id fails and is retried after recovery", func() {
			req := MoveRequest{RequestID: "r1", PlayerID: "a01", Team: model.TeamB, Slot: 1}
			_, err := s.MoveOrSwap(ctx, req)
			So(err, ShouldNotBeNil)
			p.fail = false
			a, err := s.MoveOrSwap(ctx, req)

			Convey("Then the retry is applied", func() {
				So(err, ShouldBeNil)
				So(at(a, "a01"), ShouldResemble, model.Location{Team: model.TeamB, Slot: 1})
			})
		})

		Convey("When clear is attempted", func() {
			_, err := s.Clear(ctx)

			Convey("Then no player is moved", func() {
				So(errors.Is(err, errs.ErrPersistence), ShouldBeTrue)
				So(s.Snapshot().Equal(before), ShouldBeTrue)
			})
		})

		Convey("When replace is attempted", func() {
			next := model.NewAssignment("s1", nineASide, nineASide)
			next.Unassigned = append(fixture().PlayerIDs(model.TeamA), "pool1")
			_, err := s.Replace(ctx, next)

			Convey("Then the previous assignment stays", func() {
				So(errors.Is(err, errs.ErrPersistence), ShouldBeTrue)
				So(s.Snapshot().Equal(before), ShouldBeTrue)
			})
		})
	})

	Convey("Given a persister that never returns", t, func() {
		p := &recordingPersister{block: true}
		s := newTestStore(t, p, WithPersistTimeout(20*time.Millisecond))
		before := s.Snapshot()

		Convey("When a move times out", func() {
			_, err := s.MoveOrSwap(ctx, MoveRequest{PlayerID: "pool1", Team: model.TeamA, Slot: 1})

			Convey("Then it is rolled back", func() {
				So(errors.Is(err, errs.ErrPersistence), ShouldBeTrue)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(s.Snapshot().Equal(before), ShouldBeTrue)
			})
		})
	})
}

func TestClearAndReplace(t *testing.T) {
	ctx := context.Background()

	Convey("Given a full store", t, func() {
		p := &recordingPersister{}
		s := newTestStore(t, p)

		Convey("When it is cleared", func() {
			a, err := s.Clear(ctx)

			Convey("Then every player is in the pool and every slot is persisted empty", func() {
				So(err, ShouldBeNil)
				So(a.PlayerIDs(model.TeamA), ShouldBeEmpty)
				So(a.PlayerIDs(model.TeamB), ShouldBeEmpty)
				So(a.Unassigned, ShouldHaveLength, 20)
				So(p.bindings, ShouldHaveLength, 1)
				So(p.bindings[0], ShouldHaveLength, 18)
				for _, b := range p.bindings[0] {
					So(b.PlayerID, ShouldBeEmpty)
				}
			})
		})

		Convey("When it is replaced by a smaller lineup", func() {
			seven := model.Formation{Defenders: 3, Midfielders: 2, Attackers: 2}
			next := model.NewAssignment("ignored", seven, seven)
			for i := range next.TeamA {
				next.TeamA[i].PlayerID = fmt.Sprintf("a%02d", i+1)
				next.TeamB[i].PlayerID = fmt.Sprintf("b%02d", i+1)
			}
			a, err := s.Replace(ctx, next)

			Convey("Then the session keeps its id and the new layout is saved whole", func() {
				So(err, ShouldBeNil)
				So(a.SessionID, ShouldEqual, "s1")
				So(a.FormationA, ShouldResemble, seven)
				So(a.Version, ShouldEqual, uint64(2))
				So(p.assignments, ShouldHaveLength, 1)
				So(p.assignments[0].Equal(a), ShouldBeTrue)
			})
		})

		Convey("When the replacement repeats a player", func() {
			next := fixture()
			next.TeamB[0].PlayerID = "a01"
			_, err := s.Replace(ctx, next)

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, model.ErrDuplicatePlayer), ShouldBeTrue)
			})
		})
	})

	Convey("Given an invalid initial assignment", t, func() {
		bad := fixture()
		bad.Unassigned = append(bad.Unassigned, "a01")
		_, err := NewStore(bad)

		Convey("Then the store is not created", func() {
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})
	})
}
