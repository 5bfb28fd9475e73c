package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/okian/kickoff/internal/domain/model"
)

type templateKey struct {
	size       int
	simplified bool
}

// MemoryStore implements Store in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	players     map[string]model.Player
	performance map[string]model.Performance
	templates   map[templateKey]model.Formation
	sessions    map[string]model.Assignment
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		players:     make(map[string]model.Player),
		performance: make(map[string]model.Performance),
		templates:   make(map[templateKey]model.Formation),
		sessions:    make(map[string]model.Assignment),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Players implements RosterProvider.
func (s *MemoryStore) Players(ctx context.Context, ids []string) ([]model.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Player, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := s.players[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(missing, ", "))
	}
	return out, nil
}

// ListPlayers implements RosterProvider.
func (s *MemoryStore) ListPlayers(ctx context.Context) ([]model.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.Player) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Performance implements PerformanceProvider.
func (s *MemoryStore) Performance(ctx context.Context, ids []string) (map[string]model.Performance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Performance, len(ids))
	for _, id := range ids {
		if m, ok := s.performance[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

// Template implements TemplateProvider.
func (s *MemoryStore) Template(ctx context.Context, teamSize int, simplified bool) (model.Formation, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Formation{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.templates[templateKey{size: teamSize, simplified: simplified}]
	return f, ok, nil
}

// SaveAssignment implements SessionStore.
func (s *MemoryStore) SaveAssignment(ctx context.Context, a model.Assignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("save assignment %s: %w", a.SessionID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[a.SessionID] = a.Clone()
	return nil
}

// SaveBindings implements SessionStore. Displaced players join the session pool.
func (s *MemoryStore) SaveBindings(ctx context.Context, sessionID string, bindings []model.SlotBinding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	next, err := applyBindings(current, bindings)
	if err != nil {
		return err
	}
	next.Version++
	s.sessions[sessionID] = next
	return nil
}

// LoadAssignment implements SessionStore.
func (s *MemoryStore) LoadAssignment(ctx context.Context, sessionID string) (model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return model.Assignment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.sessions[sessionID]
	if !ok {
		return model.Assignment{}, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return a.Clone(), nil
}

// UpsertPlayers implements RosterWriter.
func (s *MemoryStore) UpsertPlayers(ctx context.Context, players []model.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range players {
		if err := validatePlayer(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		s.players[p.ID] = p
	}
	return nil
}

// UpsertPerformance implements RosterWriter.
func (s *MemoryStore) UpsertPerformance(ctx context.Context, metrics []model.Performance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range metrics {
		if _, ok := s.players[m.PlayerID]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, m.PlayerID)
		}
	}
	for _, m := range metrics {
		s.performance[m.PlayerID] = m
	}
	return nil
}

// SetTemplate implements RosterWriter.
func (s *MemoryStore) SetTemplate(ctx context.Context, teamSize int, simplified bool, f model.Formation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[templateKey{size: teamSize, simplified: simplified}] = f
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// applyBindings returns a copy of a with the bindings applied. Players that lose
// their slot and are not placed elsewhere move to the pool.
func applyBindings(a model.Assignment, bindings []model.SlotBinding) (model.Assignment, error) {
	next := a.Clone()
	pool := make(map[string]struct{}, len(next.Unassigned))
	for _, id := range next.Unassigned {
		pool[id] = struct{}{}
	}
	for _, b := range bindings {
		slots := next.Slots(b.Team)
		if b.Slot < 1 || b.Slot > len(slots) {
			return model.Assignment{}, fmt.Errorf("%w: %s/%d", ErrUnknownSlot, b.Team, b.Slot)
		}
		if old := slots[b.Slot-1].PlayerID; old != "" {
			pool[old] = struct{}{}
		}
		slots[b.Slot-1].PlayerID = b.PlayerID
	}
	for _, t := range []model.Team{model.TeamA, model.TeamB} {
		for _, id := range next.PlayerIDs(t) {
			delete(pool, id)
		}
	}
	next.Unassigned = make([]string, 0, len(pool))
	for id := range pool {
		next.Unassigned = append(next.Unassigned, id)
	}
	slices.Sort(next.Unassigned)
	if err := next.Validate(); err != nil {
		return model.Assignment{}, fmt.Errorf("%w: %w", ErrBindingConflict, err)
	}
	return next, nil
}

func validatePlayer(p model.Player) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPlayer)
	}
	if err := p.Attributes.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPlayer, p.ID, err)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
