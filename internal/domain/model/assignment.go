package model

import (
	"fmt"
	"slices"
	"strings"
)

// Team identifies which side a slot belongs to.
type Team int

// Teams. Unassigned doubles as the pool of players not in any slot.
const (
	Unassigned Team = iota
	TeamA
	TeamB
)

func (t Team) String() string {
	switch t {
	case TeamA:
		return "A"
	case TeamB:
		return "B"
	default:
		return "Unassigned"
	}
}

// MarshalText encodes the team as A, B or Unassigned.
func (t Team) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes the team name case-insensitively.
func (t *Team) UnmarshalText(b []byte) error {
	parsed, err := ParseTeam(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTeam parses A, B or Unassigned (empty also means Unassigned).
func ParseTeam(s string) (Team, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return TeamA, nil
	case "b":
		return TeamB, nil
	case "", "unassigned", "pool":
		return Unassigned, nil
	default:
		return Unassigned, fmt.Errorf("%w: %q", ErrUnknownTeam, s)
	}
}

// Slot is one numbered placeholder within a team. An empty PlayerID means the slot is free.
type Slot struct {
	Team     Team     `json:"team"`
	Number   int      `json:"slot"`
	Position Position `json:"position"`
	PlayerID string   `json:"player_id,omitempty"`
}

// Empty reports whether no player occupies the slot.
func (s Slot) Empty() bool { return s.PlayerID == "" }

// Location is where a player currently sits. The unassigned pool is Team Unassigned, Slot 0.
type Location struct {
	Team Team `json:"team"`
	Slot int  `json:"slot"`
}

// Pool is the location of unassigned players.
var Pool = Location{Team: Unassigned} //nolint:gochecknoglobals // value constant

// IsPool reports whether the location is the unassigned pool.
func (l Location) IsPool() bool { return l.Team == Unassigned }

// SlotBinding is the slot/team/player triple recorded by persistence.
// An empty PlayerID clears the slot.
type SlotBinding struct {
	Team     Team   `json:"team"`
	Slot     int    `json:"slot"`
	PlayerID string `json:"player_id,omitempty"`
}

// Assignment is a value snapshot of every slot of both teams plus the unassigned pool.
type Assignment struct {
	SessionID  string    `json:"session_id"`
	FormationA Formation `json:"formation_a"`
	FormationB Formation `json:"formation_b"`
	TeamA      []Slot    `json:"team_a"`
	TeamB      []Slot    `json:"team_b"`
	Unassigned []string  `json:"unassigned"`
	Version    uint64    `json:"version"`
}

// NewAssignment lays out empty slots for both formations.
func NewAssignment(sessionID string, formationA, formationB Formation) Assignment {
	return Assignment{
		SessionID:  sessionID,
		FormationA: formationA,
		FormationB: formationB,
		TeamA:      layoutSlots(TeamA, formationA),
		TeamB:      layoutSlots(TeamB, formationB),
	}
}

func layoutSlots(team Team, f Formation) []Slot {
	slots := make([]Slot, f.Size())
	for i := range slots {
		pos, _ := f.PositionOf(i + 1)
		slots[i] = Slot{Team: team, Number: i + 1, Position: pos}
	}
	return slots
}

// Formation returns the formation of one team.
func (a Assignment) Formation(t Team) Formation {
	if t == TeamB {
		return a.FormationB
	}
	return a.FormationA
}

// Slots returns the slots of one team (nil for Unassigned).
func (a Assignment) Slots(t Team) []Slot {
	switch t {
	case TeamA:
		return a.TeamA
	case TeamB:
		return a.TeamB
	default:
		return nil
	}
}

// Clone returns a deep copy.
func (a Assignment) Clone() Assignment {
	c := a
	c.TeamA = slices.Clone(a.TeamA)
	c.TeamB = slices.Clone(a.TeamB)
	c.Unassigned = slices.Clone(a.Unassigned)
	return c
}

// PlayerIDs returns the occupied slots of a team in slot order.
func (a Assignment) PlayerIDs(t Team) []string {
	var ids []string
	for _, s := range a.Slots(t) {
		if !s.Empty() {
			ids = append(ids, s.PlayerID)
		}
	}
	return ids
}

// Groups returns a team's players keyed by position band.
func (a Assignment) Groups(t Team) map[Position][]string {
	groups := make(map[Position][]string, len(Positions))
	for _, s := range a.Slots(t) {
		if !s.Empty() {
			groups[s.Position] = append(groups[s.Position], s.PlayerID)
		}
	}
	return groups
}

// Location finds a player. ok is false when the player is unknown to the assignment.
func (a Assignment) Location(playerID string) (Location, bool) {
	for _, t := range []Team{TeamA, TeamB} {
		for _, s := range a.Slots(t) {
			if s.PlayerID == playerID {
				return Location{Team: t, Slot: s.Number}, true
			}
		}
	}
	if slices.Contains(a.Unassigned, playerID) {
		return Pool, true
	}
	return Location{}, false
}

// Bindings returns a binding for every slot of both teams.
func (a Assignment) Bindings() []SlotBinding {
	out := make([]SlotBinding, 0, len(a.TeamA)+len(a.TeamB))
	for _, t := range []Team{TeamA, TeamB} {
		for _, s := range a.Slots(t) {
			out = append(out, SlotBinding{Team: t, Slot: s.Number, PlayerID: s.PlayerID})
		}
	}
	return out
}

// Validate checks the slot layout matches both formations and that no player
// appears in more than one place.
func (a Assignment) Validate() error {
	seen := make(map[string]string)
	mark := func(id, where string) error {
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s in %s and %s", ErrDuplicatePlayer, id, prev, where)
		}
		seen[id] = where
		return nil
	}
	for _, t := range []Team{TeamA, TeamB} {
		f := a.Formation(t)
		slots := a.Slots(t)
		if len(slots) != f.Size() {
			return fmt.Errorf("%w: team %s has %d slots, formation %s", ErrSlotLayout, t, len(slots), f)
		}
		for i, s := range slots {
			pos, _ := f.PositionOf(i + 1)
			if s.Number != i+1 || s.Team != t || s.Position != pos {
				return fmt.Errorf("%w: team %s slot %d", ErrSlotLayout, t, i+1)
			}
			if s.Empty() {
				continue
			}
			if err := mark(s.PlayerID, fmt.Sprintf("%s/%d", t, s.Number)); err != nil {
				return err
			}
		}
	}
	for _, id := range a.Unassigned {
		if id == "" {
			return fmt.Errorf("%w: empty id in pool", ErrSlotLayout)
		}
		if err := mark(id, "pool"); err != nil {
			return err
		}
	}
	return nil
}

// Equal compares two assignments by value. The pool is compared as a set.
func (a Assignment) Equal(b Assignment) bool {
	if a.SessionID != b.SessionID || a.FormationA != b.FormationA || a.FormationB != b.FormationB {
		return false
	}
	if !slices.Equal(a.TeamA, b.TeamA) || !slices.Equal(a.TeamB, b.TeamB) {
		return false
	}
	pa, pb := slices.Clone(a.Unassigned), slices.Clone(b.Unassigned)
	slices.Sort(pa)
	slices.Sort(pb)
	return slices.Equal(pa, pb)
}
