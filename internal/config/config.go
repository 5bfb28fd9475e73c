// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case so every field can be set from KICKOFF_* env vars.
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/kickoff/internal/domain/balance"
	"github.com/okian/kickoff/internal/domain/model"
	"github.com/okian/kickoff/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath points at the SQLite database. Empty keeps everything in memory.
	DBPath string `koanf:"db_path"`

	// PersistTimeoutMS bounds each call to the persistence collaborator.
	PersistTimeoutMS int `koanf:"persist_timeout_ms"`

	// IterationCap bounds the local search of the balance engine.
	IterationCap int `koanf:"iteration_cap"`

	DefenseWeight  float64 `koanf:"defense_weight"`
	MidfieldWeight float64 `koanf:"midfield_weight"`
	AttackWeight   float64 `koanf:"attack_weight"`

	// PowerWeight and GoalWeight are the performance strategy defaults.
	PowerWeight float64 `koanf:"power_weight"`
	GoalWeight  float64 `koanf:"goal_weight"`

	BandExcellent float64 `koanf:"band_excellent"`
	BandGood      float64 `koanf:"band_good"`
	BandNotGreat  float64 `koanf:"band_not_great"`

	// PercentageScale is k in 100 - min(100, score*k).
	PercentageScale float64 `koanf:"percentage_scale"`

	// RandomSeed seeds the random strategy. Zero seeds from the clock.
	RandomSeed int64 `koanf:"random_seed"`

	// DedupeSize bounds the remembered move request ids per session.
	DedupeSize int `koanf:"dedupe_size"`

	// ReportWorkers is the number of goroutines applying performance reports.
	ReportWorkers int `koanf:"report_workers"`

	// ReportQueueCapacity bounds reports waiting for a worker; beyond it submissions are refused.
	ReportQueueCapacity int `koanf:"report_queue_capacity"`

	// BlendFactor is the weight a new report carries against a player's history.
	BlendFactor float64 `koanf:"blend_factor"`

	// FormationTemplates overrides the built-in formations. Keys are team
	// sizes; "4s" is the simplified 4v4 layout.
	FormationTemplates map[string]model.Formation `koanf:"formation_templates"`
}

// New creates a Config with defaults.
func New() *Config {
	bands := balance.DefaultBands()
	weights := scoring.DefaultGroupWeights()
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		PersistTimeoutMS:    5000,
		IterationCap:        100,
		DefenseWeight:       weights.Defense,
		MidfieldWeight:      weights.Midfield,
		AttackWeight:        weights.Attack,
		PowerWeight:         balance.DefaultPowerWeight,
		GoalWeight:          balance.DefaultGoalWeight,
		BandExcellent:       bands.Excellent,
		BandGood:            bands.Good,
		BandNotGreat:        bands.NotGreat,
		PercentageScale:     100,
		DedupeSize:          10_000,
		ReportWorkers:       2,
		ReportQueueCapacity: 1024,
		BlendFactor:         0.3,
		FormationTemplates:  map[string]model.Formation{},
	}
}

// GroupWeights returns the configured position-group weights.
func (c *Config) GroupWeights() scoring.GroupWeights {
	return scoring.GroupWeights{Defense: c.DefenseWeight, Midfield: c.MidfieldWeight, Attack: c.AttackWeight}
}

// Bands returns the configured quality band thresholds.
func (c *Config) Bands() balance.Bands {
	return balance.Bands{Excellent: c.BandExcellent, Good: c.BandGood, NotGreat: c.BandNotGreat}
}

// PerformanceStrategy returns the performance strategy with the configured weights.
func (c *Config) PerformanceStrategy() balance.Performance {
	return balance.Performance{PowerWeight: c.PowerWeight, GoalWeight: c.GoalWeight}
}

// PersistTimeout returns PersistTimeoutMS as a duration.
func (c *Config) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutMS) * time.Millisecond
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.PersistTimeoutMS <= 0:
		return fmt.Errorf("%w: persist_timeout_ms must be positive", ErrInvalidConfig)
	case c.IterationCap <= 0:
		return fmt.Errorf("%w: iteration_cap must be positive", ErrInvalidConfig)
	case !c.GroupWeights().Valid():
		return fmt.Errorf("%w: group weights must be non-negative with a positive sum", ErrInvalidConfig)
	case c.PowerWeight < 0 || c.GoalWeight < 0:
		return fmt.Errorf("%w: power_weight and goal_weight must be non-negative", ErrInvalidConfig)
	case !c.Bands().Valid():
		return fmt.Errorf("%w: bands must be non-negative and ascending", ErrInvalidConfig)
	case c.PercentageScale <= 0:
		return fmt.Errorf("%w: percentage_scale must be positive", ErrInvalidConfig)
	case c.ReportWorkers <= 0 || c.ReportQueueCapacity <= 0:
		return fmt.Errorf("%w: report_workers and report_queue_capacity must be positive", ErrInvalidConfig)
	case c.BlendFactor <= 0 || c.BlendFactor > 1:
		return fmt.Errorf("%w: blend_factor must be in (0, 1]", ErrInvalidConfig)
	}
	for key, f := range c.FormationTemplates {
		size, simplified, err := parseTemplateKey(key)
		if err != nil {
			return err
		}
		if simplified && size != 4 {
			return fmt.Errorf("%w: formation_templates.%s: only 4s is simplified", ErrInvalidConfig, key)
		}
		if !f.Valid(size) {
			return fmt.Errorf("%w: formation_templates.%s: %s does not sum to %d", ErrInvalidConfig, key, f, size)
		}
	}
	return nil
}

func parseTemplateKey(key string) (size int, simplified bool, err error) {
	trimmed := strings.TrimSuffix(key, "s")
	size, err = strconv.Atoi(trimmed)
	if err != nil || size <= 0 {
		return 0, false, fmt.Errorf("%w: formation_templates key %q", ErrInvalidConfig, key)
	}
	return size, trimmed != key, nil
}
