package model

import (
	"fmt"
	"strings"
)

// Position is the band a slot belongs to.
type Position int

// Positions ordered from the back of the pitch forward.
const (
	Defender Position = iota
	Midfielder
	Attacker
)

// Positions lists every position in slot order.
var Positions = [...]Position{Defender, Midfielder, Attacker} //nolint:gochecknoglobals // fixed ordering

func (p Position) String() string {
	switch p {
	case Defender:
		return "defender"
	case Midfielder:
		return "midfielder"
	case Attacker:
		return "attacker"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// Group returns the position-group name (defense, midfield, attack).
func (p Position) Group() string {
	switch p {
	case Defender:
		return "defense"
	case Midfielder:
		return "midfield"
	case Attacker:
		return "attack"
	default:
		return "unknown"
	}
}

// MarshalText encodes the position by name.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts either the position name or its group name.
func (p *Position) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "defender", "defense":
		*p = Defender
	case "midfielder", "midfield":
		*p = Midfielder
	case "attacker", "attack":
		*p = Attacker
	default:
		return fmt.Errorf("unknown position %q", string(b))
	}
	return nil
}

// Formation is the defender/midfielder/attacker split of one team.
type Formation struct {
	Defenders   int `json:"defenders" koanf:"defenders"`
	Midfielders int `json:"midfielders" koanf:"midfielders"`
	Attackers   int `json:"attackers" koanf:"attackers"`
}

// Size is the number of slots the formation describes.
func (f Formation) Size() int {
	return f.Defenders + f.Midfielders + f.Attackers
}

// Count returns the slot count for one position.
func (f Formation) Count(p Position) int {
	switch p {
	case Defender:
		return f.Defenders
	case Midfielder:
		return f.Midfielders
	case Attacker:
		return f.Attackers
	default:
		return 0
	}
}

// Valid reports whether all counts are non-negative and sum to size.
func (f Formation) Valid(size int) bool {
	if f.Defenders < 0 || f.Midfielders < 0 || f.Attackers < 0 {
		return false
	}
	return f.Size() == size
}

// PositionOf maps a 1-based slot number onto its position band.
func (f Formation) PositionOf(slot int) (Position, bool) {
	switch {
	case slot < 1 || slot > f.Size():
		return 0, false
	case slot <= f.Defenders:
		return Defender, true
	case slot <= f.Defenders+f.Midfielders:
		return Midfielder, true
	default:
		return Attacker, true
	}
}

func (f Formation) String() string {
	return fmt.Sprintf("%d-%d-%d", f.Defenders, f.Midfielders, f.Attackers)
}
