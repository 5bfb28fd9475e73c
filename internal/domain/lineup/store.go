// Package lineup owns a session's slot assignment and applies manual edits to it.
//
// Every edit is a command with an undo. The store captures a snapshot, executes the
// command, persists the touched slots and, if persistence fails or times out, undoes
// the command so local state never diverges from what was durably recorded.
package lineup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/kickoff/internal/domain/dedupe"
	"github.com/okian/kickoff/internal/domain/errs"
	"github.com/okian/kickoff/internal/domain/model"
	"github.com/okian/kickoff/pkg/logger"
	"github.com/okian/kickoff/pkg/metrics"
)

const defaultPersistTimeout = 5 * time.Second

// Persister durably records slot changes.
type Persister interface {
	// SaveBindings records the final occupant of each listed slot in one unit.
	SaveBindings(ctx context.Context, sessionID string, bindings []model.SlotBinding) error
	// SaveAssignment replaces everything recorded for the session.
	SaveAssignment(ctx context.Context, a model.Assignment) error
}

type discardPersister struct{}

func (discardPersister) SaveBindings(context.Context, string, []model.SlotBinding) error { return nil }
func (discardPersister) SaveAssignment(context.Context, model.Assignment) error         { return nil }

// MoveRequest asks for a player to be placed in a slot, or in the pool when Team is Unassigned.
type MoveRequest struct {
	// RequestID makes retries idempotent when set.
	RequestID string
	PlayerID  string
	Team      model.Team
	Slot      int
	// IfVersion rejects the move with a conflict unless the store is at this version. Zero skips the check.
	IfVersion uint64
}

// Store is the single writer for one session's assignment.
type Store struct {
	mu             sync.Mutex
	arena          *arena
	persister      Persister
	deduper        dedupe.Deduper
	persistTimeout time.Duration
	logger         logger.Logger
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithPersister sets the persistence collaborator. Without one, edits are only kept in memory.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithDeduper shares a request-id tracker between stores.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Store) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithPersistTimeout bounds each persistence call.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore takes ownership of a copy of initial. The assignment must pass Validate.
func NewStore(initial model.Assignment, opts ...Option) (*Store, error) {
	const op = "lineup.new_store"
	ar, err := newArena(initial.Clone())
	if err != nil {
		return nil, errs.Wrap(op, errs.ErrValidation, err)
	}
	if ar.version == 0 {
		ar.version = 1
	}
	s := &Store{
		arena:          ar,
		persister:      discardPersister{},
		persistTimeout: defaultPersistTimeout,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper()
	}
	return s, nil
}

// Snapshot returns a value copy of the current assignment.
func (s *Store) Snapshot() model.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arena.snapshot()
}

// Version returns the current assignment version.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arena.version
}

// MoveOrSwap places a player into the target slot. An occupant is moved to the
// player's previous location, or the pool if the player came from the pool.
func (s *Store) MoveOrSwap(ctx context.Context, req MoveRequest) (model.Assignment, error) {
	const op = "lineup.move_or_swap"
	s.mu.Lock()
	defer s.mu.Unlock()

	var key string
	if req.RequestID != "" {
		key = dedupe.Key(s.arena.sessionID, req.RequestID)
		if s.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordDuplicateMove()
			s.logger.Debug(ctx, "duplicate move skipped", logger.String("request", req.RequestID))
			return s.arena.snapshot(), nil
		}
	}

	if req.IfVersion != 0 && req.IfVersion != s.arena.version {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		metrics.RecordConflict()
		return model.Assignment{}, errs.New(op, errs.ErrConflict, "%v: expected %d, current %d",
			ErrVersionMismatch, req.IfVersion, s.arena.version)
	}

	a, err := s.run(ctx, op, newMoveCommand(req.PlayerID, req.Team, req.Slot))
	if err != nil && key != "" {
		s.deduper.Unrecord(ctx, key)
	}
	return a, err
}

// Clear returns every player to the pool, or changes nothing.
func (s *Store) Clear(ctx context.Context) (model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, "lineup.clear", &clearCommand{})
}

// Replace swaps in a new assignment for the same session, e.g. after a re-balance.
func (s *Store) Replace(ctx context.Context, next model.Assignment) (model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, "lineup.replace", &replaceCommand{next: next.Clone()})
}

// Save persists the full current assignment without changing it.
func (s *Store) Save(ctx context.Context) error {
	const op = "lineup.save"
	s.mu.Lock()
	defer s.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	if err := s.observe(pctx, "save_assignment", func(ctx context.Context) error {
		return s.persister.SaveAssignment(ctx, s.arena.snapshot())
	}); err != nil {
		return errs.Wrap(op, errs.ErrPersistence, err)
	}
	return nil
}

// run executes cmd and persists it, undoing it if persistence fails. Callers hold s.mu.
func (s *Store) run(ctx context.Context, op string, cmd command) (model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return model.Assignment{}, fmt.Errorf("%s: %w", op, err)
	}

	before := s.arena.snapshot()
	bindings, err := cmd.execute(s.arena)
	if err != nil {
		return model.Assignment{}, errs.Wrap(op, errs.ErrValidation, err)
	}
	if cmd.kind() == kindNoop {
		metrics.RecordSlotMove(kindNoop)
		return before, nil
	}

	prevVersion := s.arena.version
	s.arena.version++

	pctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	err = s.observe(pctx, persistOperation(cmd), func(ctx context.Context) error {
		return cmd.persist(ctx, s.persister, s.arena, bindings)
	})
	if err != nil {
		cmd.undo(s.arena)
		s.arena.version = prevVersion
		metrics.RecordRollback(cmd.kind())
		if after := s.arena.snapshot(); !after.Equal(before) {
			s.logger.Error(ctx, "rollback did not restore snapshot", logger.String("edit", cmd.describe()))
			return model.Assignment{}, errs.New(op, errs.ErrPersistence, "%s: rollback incomplete: %v", cmd.describe(), err)
		}
		s.logger.Warn(ctx, "edit rolled back",
			logger.String("session", s.arena.sessionID),
			logger.String("edit", cmd.describe()),
			logger.Error(err),
		)
		return model.Assignment{}, errs.Wrap(op, errs.ErrPersistence, fmt.Errorf("%s: %w", cmd.describe(), err))
	}

	if err := s.arena.check(); err != nil {
		// Only reachable if apply is wrong.
		s.logger.Error(ctx, "arena invariant broken", logger.String("edit", cmd.describe()), logger.Error(err))
		return model.Assignment{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordSlotMove(cmd.kind())
	s.logger.Debug(ctx, "edit applied",
		logger.String("session", s.arena.sessionID),
		logger.String("edit", cmd.describe()),
		logger.Uint64("version", s.arena.version),
	)
	return s.arena.snapshot(), nil
}

// observe times a persistence call. A nil error means the change is durable, however late it returned.
func (s *Store) observe(ctx context.Context, operation string, call func(context.Context) error) error {
	start := time.Now()
	err := call(ctx)
	metrics.RecordPersistenceLatency(operation, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordPersistenceError(operation)
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func persistOperation(cmd command) string {
	if cmd.kind() == kindReplace {
		return "save_assignment"
	}
	return "save_bindings"
}
