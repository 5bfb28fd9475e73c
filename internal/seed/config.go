// Package seed generates a deterministic roster with performance history and
// loads it into storage.
package seed

import (
	"errors"
	"time"
)

// ErrInvalidConfig is returned by Run for unusable settings.
var ErrInvalidConfig = errors.New("invalid seed config")

// Config holds configuration for one seeding run.
type Config struct {
	Players     int    // Number of players to generate
	Seed        int64  // Seed for the generator; equal seeds yield equal rosters
	Performance bool   // Also generate performance history
	BatchSize   int    // Players written per storage call
	OutputFile  string // Optional JSON dump of the generated roster
}

// Stats holds run statistics.
type Stats struct {
	PlayersGenerated int
	Ringers          int
	Retired          int
	PerformanceRows  int
	Batches          int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

func (c *Config) validate() error {
	switch {
	case c.Players <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("players must be positive"))
	case c.BatchSize < 0:
		return errors.Join(ErrInvalidConfig, errors.New("batch size must not be negative"))
	}
	return nil
}
