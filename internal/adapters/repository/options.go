package repository

import "github.com/okian/kickoff/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithPlayers preloads the roster.
func WithPlayers(players ...model.Player) Option {
	return func(s *MemoryStore) {
		for _, p := range players {
			s.players[p.ID] = p
		}
	}
}

// WithPerformance preloads performance metrics.
func WithPerformance(metrics ...model.Performance) Option {
	return func(s *MemoryStore) {
		for _, m := range metrics {
			s.performance[m.PlayerID] = m
		}
	}
}

// WithTemplate preloads one formation override.
func WithTemplate(teamSize int, simplified bool, f model.Formation) Option {
	return func(s *MemoryStore) {
		s.templates[templateKey{size: teamSize, simplified: simplified}] = f
	}
}
