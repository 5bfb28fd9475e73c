package lineup

import (
	"context"
	"fmt"

	"github.com/okian/kickoff/internal/domain/model"
)

// Edit kinds, used for metrics and logs.
const (
	kindMove    = "move"
	kindSwap    = "swap"
	kindNoop    = "noop"
	kindClear   = "clear"
	kindReplace = "replace"
)

// command is one reversible edit. execute validates before touching the arena,
// so a failed execute needs no undo.
type command interface {
	kind() string
	describe() string
	execute(ar *arena) ([]model.SlotBinding, error)
	undo(ar *arena)
	persist(ctx context.Context, p Persister, ar *arena, bindings []model.SlotBinding) error
}

// moveCommand moves a player to a slot or the pool, swapping any occupant into the mover's old place.
type moveCommand struct {
	playerID string
	target   model.Location
	changes  []change
	outcome  string
}

func newMoveCommand(playerID string, team model.Team, slot int) *moveCommand {
	target := model.Location{Team: team, Slot: slot}
	if target.IsPool() {
		target = model.Pool
	}
	return &moveCommand{playerID: playerID, target: target, outcome: kindMove}
}

func (c *moveCommand) kind() string { return c.outcome }

func (c *moveCommand) describe() string {
	return fmt.Sprintf("%s %s -> %s", c.outcome, c.playerID, locString(c.target))
}

func (c *moveCommand) execute(ar *arena) ([]model.SlotBinding, error) {
	from, ok := ar.where[c.playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, c.playerID)
	}
	if !ar.inRange(c.target) {
		return nil, fmt.Errorf("%w: %s (team %s has %d slots)",
			ErrSlotOutOfRange, locString(c.target), c.target.Team, len(ar.slots[c.target.Team]))
	}
	if from == c.target {
		c.outcome = kindNoop
		return nil, nil
	}

	c.changes = []change{{playerID: c.playerID, from: from, to: c.target}}
	if occupant := ar.occupant(c.target); occupant != "" {
		c.changes = append(c.changes, change{playerID: occupant, from: c.target, to: from})
		c.outcome = kindSwap
	}
	if err := ar.apply(c.changes); err != nil {
		return nil, err
	}
	return ar.bindings(c.changes), nil
}

func (c *moveCommand) undo(ar *arena) {
	inverse := make([]change, len(c.changes))
	for i, ch := range c.changes {
		inverse[i] = ch.inverse()
	}
	// The inverse of an applied batch always fits.
	_ = ar.apply(inverse)
}

func (c *moveCommand) persist(ctx context.Context, p Persister, ar *arena, bindings []model.SlotBinding) error {
	return p.SaveBindings(ctx, ar.sessionID, bindings)
}

// clearCommand returns every slotted player to the pool.
type clearCommand struct {
	changes []change
}

func (c *clearCommand) kind() string     { return kindClear }
func (c *clearCommand) describe() string { return fmt.Sprintf("clear %d players", len(c.changes)) }

func (c *clearCommand) execute(ar *arena) ([]model.SlotBinding, error) {
	c.changes = c.changes[:0]
	for _, t := range []model.Team{model.TeamA, model.TeamB} {
		for i, id := range ar.slots[t] {
			if id != "" {
				c.changes = append(c.changes, change{
					playerID: id,
					from:     model.Location{Team: t, Slot: i + 1},
					to:       model.Pool,
				})
			}
		}
	}
	if err := ar.apply(c.changes); err != nil {
		return nil, err
	}
	return ar.allBindings(), nil
}

func (c *clearCommand) undo(ar *arena) {
	inverse := make([]change, len(c.changes))
	for i, ch := range c.changes {
		inverse[i] = ch.inverse()
	}
	_ = ar.apply(inverse)
}

func (c *clearCommand) persist(ctx context.Context, p Persister, ar *arena, bindings []model.SlotBinding) error {
	return p.SaveBindings(ctx, ar.sessionID, bindings)
}

// replaceCommand swaps the whole aggregate, e.g. after a re-balance.
type replaceCommand struct {
	next model.Assignment
	prev *arena
}

func (c *replaceCommand) kind() string { return kindReplace }

func (c *replaceCommand) describe() string {
	return fmt.Sprintf("replace with %s v %s", c.next.FormationA, c.next.FormationB)
}

func (c *replaceCommand) execute(ar *arena) ([]model.SlotBinding, error) {
	c.next.SessionID = ar.sessionID
	fresh, err := newArena(c.next)
	if err != nil {
		return nil, err
	}
	c.prev = ar.clone()
	fresh.version = ar.version
	*ar = *fresh
	return ar.allBindings(), nil
}

func (c *replaceCommand) undo(ar *arena) {
	if c.prev != nil {
		*ar = *c.prev
	}
}

func (c *replaceCommand) persist(ctx context.Context, p Persister, ar *arena, _ []model.SlotBinding) error {
	return p.SaveAssignment(ctx, ar.snapshot())
}
