package lineup

import (
	"fmt"
	"slices"

	"github.com/okian/kickoff/internal/domain/model"
)

// arena owns the slot state of one session. slots[team][n-1] holds the player in slot n;
// where indexes every known player, pooled ones included.
type arena struct {
	sessionID  string
	formations map[model.Team]model.Formation
	slots      map[model.Team][]string
	where      map[string]model.Location
	version    uint64
}

// change relocates one player. A batch of changes is applied as a unit.
type change struct {
	playerID string
	from     model.Location
	to       model.Location
}

func (c change) inverse() change {
	return change{playerID: c.playerID, from: c.to, to: c.from}
}

func newArena(a model.Assignment) (*arena, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	ar := &arena{
		sessionID: a.SessionID,
		formations: map[model.Team]model.Formation{
			model.TeamA: a.FormationA,
			model.TeamB: a.FormationB,
		},
		slots:   make(map[model.Team][]string, 2),
		where:   make(map[string]model.Location),
		version: a.Version,
	}
	for _, t := range []model.Team{model.TeamA, model.TeamB} {
		cells := make([]string, len(a.Slots(t)))
		for i, s := range a.Slots(t) {
			cells[i] = s.PlayerID
			if !s.Empty() {
				ar.where[s.PlayerID] = model.Location{Team: t, Slot: s.Number}
			}
		}
		ar.slots[t] = cells
	}
	for _, id := range a.Unassigned {
		ar.where[id] = model.Pool
	}
	return ar, nil
}

func (ar *arena) clone() *arena {
	c := &arena{
		sessionID:  ar.sessionID,
		formations: make(map[model.Team]model.Formation, len(ar.formations)),
		slots:      make(map[model.Team][]string, len(ar.slots)),
		where:      make(map[string]model.Location, len(ar.where)),
		version:    ar.version,
	}
	for t, f := range ar.formations {
		c.formations[t] = f
	}
	for t, cells := range ar.slots {
		c.slots[t] = slices.Clone(cells)
	}
	for id, loc := range ar.where {
		c.where[id] = loc
	}
	return c
}

// inRange reports whether loc names an existing slot or the pool.
func (ar *arena) inRange(loc model.Location) bool {
	if loc.IsPool() {
		return true
	}
	cells, ok := ar.slots[loc.Team]
	return ok && loc.Slot >= 1 && loc.Slot <= len(cells)
}

// occupant returns the player in loc, or "" for an empty slot or the pool.
func (ar *arena) occupant(loc model.Location) string {
	if loc.IsPool() || !ar.inRange(loc) {
		return ""
	}
	return ar.slots[loc.Team][loc.Slot-1]
}

// apply computes the final state of every touched slot, checks it, then commits.
// On error the arena is unchanged.
func (ar *arena) apply(changes []change) error {
	next := make(map[model.Location]string)
	cell := func(loc model.Location) string {
		if id, ok := next[loc]; ok {
			return id
		}
		return ar.occupant(loc)
	}

	for _, c := range changes {
		if !ar.inRange(c.from) || !ar.inRange(c.to) {
			return fmt.Errorf("%w: %s -> %s", ErrSlotOutOfRange, locString(c.from), locString(c.to))
		}
		if cur, ok := ar.where[c.playerID]; !ok || cur != c.from {
			return fmt.Errorf("%w: %s is not at %s", ErrOccupancy, c.playerID, locString(c.from))
		}
		if !c.from.IsPool() && cell(c.from) == c.playerID {
			next[c.from] = ""
		}
	}
	for _, c := range changes {
		if c.to.IsPool() {
			continue
		}
		if cur := cell(c.to); cur != "" {
			return fmt.Errorf("%w: %s would hold %s and %s", ErrOccupancy, locString(c.to), cur, c.playerID)
		}
		next[c.to] = c.playerID
	}

	for loc, id := range next {
		ar.slots[loc.Team][loc.Slot-1] = id
	}
	for _, c := range changes {
		ar.where[c.playerID] = c.to
	}
	return nil
}

// bindings reports the final occupant of every slot touched by changes, in team/slot order.
func (ar *arena) bindings(changes []change) []model.SlotBinding {
	touched := make(map[model.Location]struct{}, 2*len(changes))
	for _, c := range changes {
		for _, loc := range []model.Location{c.from, c.to} {
			if !loc.IsPool() {
				touched[loc] = struct{}{}
			}
		}
	}
	out := make([]model.SlotBinding, 0, len(touched))
	for loc := range touched {
		out = append(out, model.SlotBinding{Team: loc.Team, Slot: loc.Slot, PlayerID: ar.occupant(loc)})
	}
	slices.SortFunc(out, func(a, b model.SlotBinding) int {
		if a.Team != b.Team {
			return int(a.Team) - int(b.Team)
		}
		return a.Slot - b.Slot
	})
	return out
}

func (ar *arena) allBindings() []model.SlotBinding {
	return ar.snapshot().Bindings()
}

func (ar *arena) snapshot() model.Assignment {
	a := model.NewAssignment(ar.sessionID, ar.formations[model.TeamA], ar.formations[model.TeamB])
	for _, t := range []model.Team{model.TeamA, model.TeamB} {
		slots := a.Slots(t)
		for i, id := range ar.slots[t] {
			slots[i].PlayerID = id
		}
	}
	pool := make([]string, 0)
	for id, loc := range ar.where {
		if loc.IsPool() {
			pool = append(pool, id)
		}
	}
	slices.Sort(pool)
	a.Unassigned = pool
	a.Version = ar.version
	return a
}

// check verifies the index and the slots agree and no player sits twice.
func (ar *arena) check() error {
	seen := make(map[string]model.Location)
	for t, cells := range ar.slots {
		for i, id := range cells {
			if id == "" {
				continue
			}
			loc := model.Location{Team: t, Slot: i + 1}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: %s in %s and %s", ErrOccupancy, id, locString(prev), locString(loc))
			}
			seen[id] = loc
			if ar.where[id] != loc {
				return fmt.Errorf("%w: index has %s at %s, slot says %s", ErrOccupancy, id, locString(ar.where[id]), locString(loc))
			}
		}
	}
	for id, loc := range ar.where {
		if !loc.IsPool() && ar.occupant(loc) != id {
			return fmt.Errorf("%w: index has %s at %s, slot holds %q", ErrOccupancy, id, locString(loc), ar.occupant(loc))
		}
	}
	return nil
}

func locString(l model.Location) string {
	if l.IsPool() {
		return "pool"
	}
	return fmt.Sprintf("%s/%d", l.Team, l.Slot)
}
