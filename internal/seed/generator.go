package seed

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/okian/kickoff/internal/domain/model"
)

// Profile shares. Anything left over is an all-rounder.
const (
	ringerShare   = 0.03
	retiredShare  = 0.05
	defenderShare = 0.3
	attackerShare = 0.25
)

type profile int

const (
	profileAllRounder profile = iota
	profileDefender
	profileAttacker
	profileRinger
)

var firstNames = []string{ //nolint:gochecknoglobals // name pool
	"Alex", "Sam", "Jordan", "Robin", "Kai", "Noa", "Ezra", "Mika", "Remy", "Jesse",
	"Ari", "Luca", "Quinn", "Sasha", "Toni", "Yuri", "Dani", "Nico", "Rene", "Sky",
}

var lastNames = []string{ //nolint:gochecknoglobals // name pool
	"Okafor", "Silva", "Novak", "Haddad", "Kowalski", "Tanaka", "Moreau", "Lindqvist",
	"Mensah", "Rossi", "Byrne", "Costa", "Ivanova", "Park", "Nguyen", "Schmidt",
}

// Generator produces players and performance rows from a seeded source.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a Generator. Equal seeds produce equal output, ids included.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // seeded fixtures, not secrets
}

// Players generates n players with attributes on the 1..5 scale.
func (g *Generator) Players(n int) []model.Player {
	players := make([]model.Player, n)
	for i := range players {
		players[i] = g.player()
	}
	return players
}

// Performance generates one history row per player. Goal threat follows the
// goalscoring attribute, power rating the attribute total.
func (g *Generator) Performance(players []model.Player) []model.Performance {
	rows := make([]model.Performance, len(players))
	for i, p := range players {
		total := float64(p.Attributes.Total()-model.AttributeCount*model.MinAttribute) / float64(model.AttributeCount*(model.MaxAttribute-model.MinAttribute))
		goal := float64(p.Attributes.Goalscoring-model.MinAttribute) / float64(model.MaxAttribute-model.MinAttribute)
		rows[i] = model.Performance{
			PlayerID:    p.ID,
			PowerRating: clamp01(0.8*total + 0.2*g.rng.Float64()),
			GoalThreat:  clamp01(0.7*goal + 0.3*g.rng.Float64()),
		}
	}
	return rows
}

func (g *Generator) player() model.Player {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		// math/rand never fails to read.
		panic(err)
	}
	p := model.Player{
		ID:        id.String(),
		Name:      fmt.Sprintf("%s %s", firstNames[g.rng.Intn(len(firstNames))], lastNames[g.rng.Intn(len(lastNames))]),
		IsRetired: g.rng.Float64() < retiredShare,
	}

	switch g.profile() {
	case profileRinger:
		p.IsRinger = true
		p.Attributes = model.Attributes{
			Goalscoring: g.between(4, 5), Defending: g.between(4, 5), StaminaPace: g.between(4, 5),
			Control: g.between(4, 5), Teamwork: g.between(3, 5), Resilience: g.between(4, 5),
		}
	case profileDefender:
		p.Attributes = model.Attributes{
			Goalscoring: g.between(1, 3), Defending: g.between(3, 5), StaminaPace: g.between(2, 4),
			Control: g.between(1, 4), Teamwork: g.between(2, 5), Resilience: g.between(3, 5),
		}
	case profileAttacker:
		p.Attributes = model.Attributes{
			Goalscoring: g.between(3, 5), Defending: g.between(1, 3), StaminaPace: g.between(2, 5),
			Control: g.between(3, 5), Teamwork: g.between(1, 4), Resilience: g.between(1, 4),
		}
	default:
		p.Attributes = model.Attributes{
			Goalscoring: g.between(2, 4), Defending: g.between(2, 4), StaminaPace: g.between(2, 4),
			Control: g.between(2, 4), Teamwork: g.between(2, 4), Resilience: g.between(2, 4),
		}
	}
	return p
}

func (g *Generator) profile() profile {
	r := g.rng.Float64()
	switch {
	case r < ringerShare:
		return profileRinger
	case r < ringerShare+defenderShare:
		return profileDefender
	case r < ringerShare+defenderShare+attackerShare:
		return profileAttacker
	default:
		return profileAllRounder
	}
}

// between returns an int in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
