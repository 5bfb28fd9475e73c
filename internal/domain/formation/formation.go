// Package formation derives the defender/midfielder/attacker split for a team size.
package formation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/okian/kickoff/internal/domain/errs"
	"github.com/okian/kickoff/internal/domain/model"
)

// Team size domain.
const (
	MinTeamSize        = 5
	MaxTeamSize        = 11
	SimplifiedTeamSize = 4

	defenderShare = 0.3
	attackerShare = 0.2
)

type key struct {
	size       int
	simplified bool
}

// builtin is the hand-tuned table. The simplified 4v4 is the only entry keyed on the flag.
var builtin = map[key]model.Formation{ //nolint:gochecknoglobals // lookup table
	{SimplifiedTeamSize, true}: {Defenders: 1, Midfielders: 2, Attackers: 1},
	{5, false}:                 {Defenders: 2, Midfielders: 2, Attackers: 1},
	{6, false}:                 {Defenders: 2, Midfielders: 2, Attackers: 2},
	{7, false}:                 {Defenders: 3, Midfielders: 2, Attackers: 2},
	{8, false}:                 {Defenders: 3, Midfielders: 3, Attackers: 2},
	{9, false}:                 {Defenders: 3, Midfielders: 4, Attackers: 2},
	{10, false}:                {Defenders: 4, Midfielders: 4, Attackers: 2},
	{11, false}:                {Defenders: 4, Midfielders: 4, Attackers: 3},
}

// TemplateProvider supplies admin-defined formations that take precedence over the table.
type TemplateProvider interface {
	// Template returns the override for a size, ok=false when none is defined.
	Template(ctx context.Context, teamSize int, simplified bool) (model.Formation, bool, error)
}

// Deriver computes formations and caches them per (size, simplified) pair.
type Deriver struct {
	templates TemplateProvider

	mu    sync.RWMutex
	cache map[key]model.Formation
}

// Option applies a configuration option to the Deriver.
type Option func(*Deriver)

// WithTemplates installs a template override provider.
func WithTemplates(p TemplateProvider) Option {
	return func(d *Deriver) {
		d.templates = p
	}
}

// NewDeriver creates a Deriver.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{cache: make(map[key]model.Formation)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Derive returns the formation for one team. Sizes outside the table fall back
// to a proportional split where midfield absorbs the rounding remainder.
func (d *Deriver) Derive(ctx context.Context, teamSize int, simplified bool) (model.Formation, error) {
	const op = "formation.derive"
	if teamSize <= 0 {
		return model.Formation{}, errs.New(op, errs.ErrValidation, "team size must be positive, got %d", teamSize)
	}
	k := key{size: teamSize, simplified: simplified && teamSize == SimplifiedTeamSize}

	d.mu.RLock()
	f, ok := d.cache[k]
	d.mu.RUnlock()
	if ok {
		return f, nil
	}

	f, err := d.derive(ctx, k)
	if errors.Is(err, ErrInvalidTemplate) {
		return model.Formation{}, errs.Wrap(op, errs.ErrValidation, err)
	}
	if err != nil {
		return model.Formation{}, fmt.Errorf("%s: %w", op, err)
	}

	d.mu.Lock()
	d.cache[k] = f
	d.mu.Unlock()
	return f, nil
}

func (d *Deriver) derive(ctx context.Context, k key) (model.Formation, error) {
	if d.templates != nil {
		f, ok, err := d.templates.Template(ctx, k.size, k.simplified)
		if err != nil {
			return model.Formation{}, fmt.Errorf("load template: %w", err)
		}
		if ok {
			if !f.Valid(k.size) {
				return model.Formation{}, fmt.Errorf("%w: %s for size %d", ErrInvalidTemplate, f, k.size)
			}
			return f, nil
		}
	}
	if f, ok := builtin[k]; ok {
		return f, nil
	}
	return Proportional(k.size), nil
}

// Reset drops cached formations, e.g. after templates change.
func (d *Deriver) Reset() {
	d.mu.Lock()
	d.cache = make(map[key]model.Formation)
	d.mu.Unlock()
}

// Proportional splits size 30/50/20 rounding defenders and attackers down.
func Proportional(size int) model.Formation {
	def := int(math.Floor(defenderShare * float64(size)))
	att := int(math.Floor(attackerShare * float64(size)))
	return model.Formation{Defenders: def, Midfielders: size - def - att, Attackers: att}
}

// ValidateTeamSize checks n is in [MinTeamSize, MaxTeamSize] or is the simplified size.
func ValidateTeamSize(n int) (simplified bool, err error) {
	switch {
	case n == SimplifiedTeamSize:
		return true, nil
	case n >= MinTeamSize && n <= MaxTeamSize:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d (allowed %d or %d-%d)", ErrTeamSize, n, SimplifiedTeamSize, MinTeamSize, MaxTeamSize)
	}
}
