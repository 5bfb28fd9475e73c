// Package model contains domain models passed between layers.
package model

import "fmt"

// Attribute scale bounds.
const (
	MinAttribute = 1
	MaxAttribute = 5
)

// AttributeCount is the length of the ability vector.
const AttributeCount = 6

// AttributeNames lists the ability attributes in vector order.
var AttributeNames = [AttributeCount]string{ //nolint:gochecknoglobals // fixed vector layout
	"goalscoring",
	"defending",
	"stamina_pace",
	"control",
	"teamwork",
	"resilience",
}

// Attributes holds the six static ability ratings of a player.
type Attributes struct {
	Goalscoring int `json:"goalscoring"`
	Defending   int `json:"defending"`
	StaminaPace int `json:"stamina_pace"`
	Control     int `json:"control"`
	Teamwork    int `json:"teamwork"`
	Resilience  int `json:"resilience"`
}

// Values returns the attributes in AttributeNames order.
func (a Attributes) Values() [AttributeCount]int {
	return [AttributeCount]int{a.Goalscoring, a.Defending, a.StaminaPace, a.Control, a.Teamwork, a.Resilience}
}

// Total is the unweighted sum of all six attributes.
func (a Attributes) Total() int {
	total := 0
	for _, v := range a.Values() {
		total += v
	}
	return total
}

// Validate checks every attribute is on the MinAttribute..MaxAttribute scale.
func (a Attributes) Validate() error {
	for i, v := range a.Values() {
		if v < MinAttribute || v > MaxAttribute {
			return fmt.Errorf("%w: %s=%d", ErrInvalidAttribute, AttributeNames[i], v)
		}
	}
	return nil
}

// Player is a roster entry. Players are owned by the roster provider and are
// treated as immutable for the duration of a balancing session.
type Player struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes"`
	IsRinger   bool       `json:"is_ringer"`
	IsRetired  bool       `json:"is_retired"`
}

// Performance captures historical metrics used by the performance strategy.
type Performance struct {
	PlayerID    string  `json:"player_id"`
	PowerRating float64 `json:"power_rating"`
	GoalThreat  float64 `json:"goal_threat"`
}
