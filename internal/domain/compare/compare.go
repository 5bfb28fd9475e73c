// Package compare computes side-by-side statistics for two complete teams.
package compare

import (
	"math"

	"github.com/okian/kickoff/internal/domain/balance"
	"github.com/okian/kickoff/internal/domain/model"
	"github.com/okian/kickoff/internal/domain/scoring"
)

const defaultPercentageScale = 100.0

// Side is one team as placed: its formation and its players per position band.
type Side struct {
	Formation model.Formation
	Groups    map[model.Position][]model.Player
}

// Complete reports whether every band holds exactly as many players as the formation asks for.
func (s Side) Complete() bool {
	if s.Formation.Size() == 0 {
		return false
	}
	for _, pos := range model.Positions {
		if len(s.Groups[pos]) != s.Formation.Count(pos) {
			return false
		}
	}
	return true
}

// Stats is the comparison of two complete teams.
type Stats struct {
	// Diffs holds A minus B attribute sums per position group.
	Diffs             balance.GroupStats  `json:"diffs"`
	TeamA             balance.GroupStats  `json:"team_a"`
	TeamB             balance.GroupStats  `json:"team_b"`
	BalanceScore      float64             `json:"balance_score"`
	BalancePercentage float64             `json:"balance_percentage"`
	QualityBand       balance.QualityBand `json:"quality_band"`
}

// Calculator compares teams. The zero value is not usable; use NewCalculator.
type Calculator struct {
	bands   balance.Bands
	scale   float64
	weights scoring.GroupWeights
	sums    *scoring.GroupScorer
	means   *scoring.GroupScorer
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithBands sets the quality thresholds.
func WithBands(b balance.Bands) Option {
	return func(c *Calculator) {
		if b.Valid() {
			c.bands = b
		}
	}
}

// WithPercentageScale sets k in percentage = 100 - min(100, score*k).
func WithPercentageScale(k float64) Option {
	return func(c *Calculator) {
		if k > 0 {
			c.scale = k
		}
	}
}

// WithGroupWeights sets the weights used when a call passes none.
func WithGroupWeights(w scoring.GroupWeights) Option {
	return func(c *Calculator) {
		if w.Valid() {
			c.weights = w
		}
	}
}

// NewCalculator creates a Calculator.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		bands:   balance.DefaultBands(),
		scale:   defaultPercentageScale,
		weights: scoring.DefaultGroupWeights(),
		sums:    scoring.NewGroupScorer(),
		means:   scoring.NewGroupScorer(scoring.WithNormalization(scoring.Mean)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare returns nil, false while either side is incomplete. A zero weights value means the configured default.
func (c *Calculator) Compare(a, b Side, weights scoring.GroupWeights) (*Stats, bool) {
	if !a.Complete() || !b.Complete() {
		return nil, false
	}
	if weights == (scoring.GroupWeights{}) || !weights.Valid() {
		weights = c.weights
	}

	sumA, sumB := c.sums.ScoreTeam(a.Groups), c.sums.ScoreTeam(b.Groups)
	diffs := make(map[model.Position]scoring.Vector, len(model.Positions))
	for _, pos := range model.Positions {
		diffs[pos] = sumA[pos].Sub(sumB[pos])
	}

	score := scoring.Imbalance(c.means.ScoreTeam(a.Groups), c.means.ScoreTeam(b.Groups), weights, nil)
	return &Stats{
		Diffs:             toGroupStats(diffs),
		TeamA:             toGroupStats(sumA),
		TeamB:             toGroupStats(sumB),
		BalanceScore:      score,
		BalancePercentage: 100 - math.Min(100, score*c.scale),
		QualityBand:       c.bands.Classify(score),
	}, true
}

func toGroupStats(vectors map[model.Position]scoring.Vector) balance.GroupStats {
	out := make(balance.GroupStats, len(model.Positions))
	for _, pos := range model.Positions {
		row := make(map[string]float64, model.AttributeCount)
		v := vectors[pos]
		for i, name := range model.AttributeNames {
			if i < len(v) {
				row[name] = v[i]
			} else {
				row[name] = 0
			}
		}
		out[pos.Group()] = row
	}
	return out
}
