package balance

import (
	"fmt"
	"strings"
)

// Kind names a balancing strategy on the wire and in metrics.
type Kind string

// Strategy kinds.
const (
	KindAbility     Kind = "ability"
	KindPerformance Kind = "performance"
	KindRandom      Kind = "random"
)

// Default performance feature weights.
const (
	DefaultPowerWeight = 0.5
	DefaultGoalWeight  = 0.5
)

// Strategy is a closed set: Ability, Performance or Random.
type Strategy interface {
	Kind() Kind
	sealed()
}

// Ability balances on the six static attributes. It requires equal, non-simplified team sizes.
type Ability struct{}

// Kind implements Strategy.
func (Ability) Kind() Kind { return KindAbility }
func (Ability) sealed()    {}

// Performance balances on historical power rating and goal threat.
type Performance struct {
	PowerWeight float64 `json:"power_weight"`
	GoalWeight  float64 `json:"goal_weight"`
}

// Kind implements Strategy.
func (Performance) Kind() Kind { return KindPerformance }
func (Performance) sealed()    {}

// weights returns the feature weights, substituting defaults when both are zero.
func (p Performance) weights() ([]float64, error) {
	if p.PowerWeight < 0 || p.GoalWeight < 0 {
		return nil, fmt.Errorf("%w: power=%v goal=%v", ErrNegativeWeight, p.PowerWeight, p.GoalWeight)
	}
	if p.PowerWeight == 0 && p.GoalWeight == 0 {
		return []float64{DefaultPowerWeight, DefaultGoalWeight}, nil
	}
	return []float64{p.PowerWeight, p.GoalWeight}, nil
}

// Random fills slots uniformly at random and computes no score.
type Random struct{}

// Kind implements Strategy.
func (Random) Kind() Kind { return KindRandom }
func (Random) sealed()    {}

// ParseStrategy maps a wire name onto a Strategy. Performance gets default weights.
func ParseStrategy(name string) (Strategy, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case KindAbility:
		return Ability{}, nil
	case KindPerformance:
		return Performance{PowerWeight: DefaultPowerWeight, GoalWeight: DefaultGoalWeight}, nil
	case KindRandom:
		return Random{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
