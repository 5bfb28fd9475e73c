// Package scoring aggregates player features into per-position-group vectors
// and measures how far apart two teams are.
package scoring

import (
	"math"

	"github.com/okian/kickoff/internal/domain/model"
)

// Performance feature layout.
const (
	PerformanceFeatureCount = 2
	powerIndex              = 0
	goalIndex               = 1
)

// PerformanceFeatureNames lists the performance features in vector order.
var PerformanceFeatureNames = []string{"power_rating", "goal_threat"} //nolint:gochecknoglobals // fixed vector layout

// Normalization selects how a group vector is aggregated.
type Normalization int

// Normalizations.
const (
	// Sum adds each feature across the group.
	Sum Normalization = iota
	// Mean averages each feature across the group, so groups of different sizes compare fairly.
	Mean
)

// Vector is a fixed-length feature vector.
type Vector []float64

// add accumulates o into v in place.
func (v Vector) add(o Vector) {
	for i := range v {
		if i < len(o) {
			v[i] += o[i]
		}
	}
}

// Sub returns v - o element-wise.
func (v Vector) Sub(o Vector) Vector {
	out := make(Vector, len(v))
	for i := range v {
		out[i] = v[i]
		if i < len(o) {
			out[i] -= o[i]
		}
	}
	return out
}

// FeatureFunc extracts the vector a strategy scores a player on.
type FeatureFunc func(model.Player) Vector

// AbilityFeatures returns the six static attributes as floats.
func AbilityFeatures(p model.Player) Vector {
	vals := p.Attributes.Values()
	v := make(Vector, model.AttributeCount)
	for i, x := range vals {
		v[i] = float64(x)
	}
	return v
}

// PerformanceFeatures returns power rating and goal threat from metrics.
// Players without metrics are scored at the mean of the known ones.
func PerformanceFeatures(metrics map[string]model.Performance) FeatureFunc {
	fallback := make(Vector, PerformanceFeatureCount)
	if len(metrics) > 0 {
		for _, m := range metrics {
			fallback[powerIndex] += m.PowerRating
			fallback[goalIndex] += m.GoalThreat
		}
		fallback[powerIndex] /= float64(len(metrics))
		fallback[goalIndex] /= float64(len(metrics))
	}
	return func(p model.Player) Vector {
		m, ok := metrics[p.ID]
		if !ok {
			return Vector{fallback[powerIndex], fallback[goalIndex]}
		}
		return Vector{m.PowerRating, m.GoalThreat}
	}
}

// Scorer computes group vectors.
type Scorer interface {
	// ScoreGroup aggregates one position group. An empty group is the zero vector.
	ScoreGroup(players []model.Player) Vector
	// ScoreTeam aggregates every position group of one team independently.
	ScoreTeam(groups map[model.Position][]model.Player) map[model.Position]Vector
}

// GroupScorer implements Scorer over a configurable feature extractor.
type GroupScorer struct {
	normalization Normalization
	features      FeatureFunc
	dims          int
}

// Option applies a configuration option to the GroupScorer.
type Option func(*GroupScorer)

// WithNormalization sets the aggregation mode.
func WithNormalization(n Normalization) Option {
	return func(s *GroupScorer) {
		s.normalization = n
	}
}

// WithFeatures swaps the feature extractor and its vector length.
func WithFeatures(f FeatureFunc, dims int) Option {
	return func(s *GroupScorer) {
		if f != nil && dims > 0 {
			s.features = f
			s.dims = dims
		}
	}
}

// NewGroupScorer creates a scorer summing ability attributes by default.
func NewGroupScorer(opts ...Option) *GroupScorer {
	s := &GroupScorer{
		normalization: Sum,
		features:      AbilityFeatures,
		dims:          model.AttributeCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dims returns the vector length produced by the scorer.
func (s *GroupScorer) Dims() int { return s.dims }

// ScoreGroup implements Scorer.
func (s *GroupScorer) ScoreGroup(players []model.Player) Vector {
	v := make(Vector, s.dims)
	if len(players) == 0 {
		return v
	}
	for _, p := range players {
		v.add(s.features(p))
	}
	if s.normalization == Mean {
		n := float64(len(players))
		for i := range v {
			v[i] /= n
		}
	}
	return v
}

// ScoreTeam implements Scorer.
func (s *GroupScorer) ScoreTeam(groups map[model.Position][]model.Player) map[model.Position]Vector {
	out := make(map[model.Position]Vector, len(model.Positions))
	for _, pos := range model.Positions {
		out[pos] = s.ScoreGroup(groups[pos])
	}
	return out
}

// GroupWeights weights each position group in the imbalance measure.
type GroupWeights struct {
	Defense  float64 `json:"defense" koanf:"defense"`
	Midfield float64 `json:"midfield" koanf:"midfield"`
	Attack   float64 `json:"attack" koanf:"attack"`
}

// DefaultGroupWeights weights all groups equally.
func DefaultGroupWeights() GroupWeights {
	return GroupWeights{Defense: 1, Midfield: 1, Attack: 1}
}

// For returns the weight of one position group.
func (w GroupWeights) For(p model.Position) float64 {
	switch p {
	case model.Defender:
		return w.Defense
	case model.Midfielder:
		return w.Midfield
	case model.Attacker:
		return w.Attack
	default:
		return 0
	}
}

// Valid reports whether weights are non-negative with a positive total.
func (w GroupWeights) Valid() bool {
	if w.Defense < 0 || w.Midfield < 0 || w.Attack < 0 {
		return false
	}
	return w.Defense+w.Midfield+w.Attack > 0
}

// RelativeDiff is |a-b| / (|a|+|b|), in [0,1]; zero when both are zero.
func RelativeDiff(a, b float64) float64 {
	den := math.Abs(a) + math.Abs(b)
	if den == 0 {
		return 0
	}
	return math.Abs(a-b) / den
}

// Imbalance is the weighted mean relative difference between two teams' group
// vectors. featureWeights may be nil for equal weighting. Lower is better; 0 is identical.
func Imbalance(a, b map[model.Position]Vector, groups GroupWeights, featureWeights []float64) float64 {
	var total, norm float64
	for _, pos := range model.Positions {
		gw := groups.For(pos)
		if gw == 0 {
			continue
		}
		va, vb := a[pos], b[pos]
		n := max(len(va), len(vb))
		for i := 0; i < n; i++ {
			fw := 1.0
			if featureWeights != nil {
				if i >= len(featureWeights) {
					continue
				}
				fw = featureWeights[i]
			}
			if fw == 0 {
				continue
			}
			total += gw * fw * RelativeDiff(at(va, i), at(vb, i))
			norm += gw * fw
		}
	}
	if norm == 0 {
		return 0
	}
	return total / norm
}

func at(v Vector, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}
