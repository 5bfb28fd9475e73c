// Package repository defines the storage contracts the engine consumes and an in-memory implementation.
package repository

import (
	"context"

	"github.com/okian/kickoff/internal/domain/model"
)

// RosterProvider returns player records.
type RosterProvider interface {
	// Players returns the requested players in request order.
	// Returns ErrNotFound naming the missing ids if any id is unknown.
	Players(ctx context.Context, ids []string) ([]model.Player, error)
	// ListPlayers returns the whole roster ordered by id.
	ListPlayers(ctx context.Context) ([]model.Player, error)
}

// PerformanceProvider returns historical metrics. Players without metrics are simply absent.
type PerformanceProvider interface {
	Performance(ctx context.Context, ids []string) (map[string]model.Performance, error)
}

// TemplateProvider supplies admin formation overrides.
type TemplateProvider interface {
	Template(ctx context.Context, teamSize int, simplified bool) (model.Formation, bool, error)
}

// SessionStore durably records assignments.
type SessionStore interface {
	// SaveAssignment replaces everything recorded for the session.
	SaveAssignment(ctx context.Context, a model.Assignment) error
	// SaveBindings sets the listed slots of an existing session in one unit.
	// Returns ErrUnknownSession if the session was never saved and
	// ErrBindingConflict if the result would seat a player twice.
	SaveBindings(ctx context.Context, sessionID string, bindings []model.SlotBinding) error
	// LoadAssignment returns the last saved state, or ErrUnknownSession.
	LoadAssignment(ctx context.Context, sessionID string) (model.Assignment, error)
}

// RosterWriter loads roster data, used by the seed command and tests.
type RosterWriter interface {
	UpsertPlayers(ctx context.Context, players []model.Player) error
	UpsertPerformance(ctx context.Context, metrics []model.Performance) error
	SetTemplate(ctx context.Context, teamSize int, simplified bool, f model.Formation) error
}

// Store is everything the service needs from storage.
type Store interface {
	RosterProvider
	PerformanceProvider
	TemplateProvider
	SessionStore
	RosterWriter
	Close() error
}
