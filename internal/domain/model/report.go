package model

import (
	"fmt"
	"time"
)

// PerformanceReport is one match's worth of metrics submitted for a player.
// Reports are folded into the player's Performance by the report workers.
type PerformanceReport struct {
	ReportID    string    `json:"report_id"` // unique id for idempotency
	PlayerID    string    `json:"player_id"`
	PowerRating float64   `json:"power_rating"`
	GoalThreat  float64   `json:"goal_threat"`
	PlayedAt    time.Time `json:"played_at"`
}

// Validate checks ids are present and both metrics are on the unit scale.
func (r PerformanceReport) Validate() error {
	switch {
	case r.ReportID == "":
		return fmt.Errorf("%w: missing report_id", ErrInvalidReport)
	case r.PlayerID == "":
		return fmt.Errorf("%w: missing player_id", ErrInvalidReport)
	case r.PowerRating < 0 || r.PowerRating > 1:
		return fmt.Errorf("%w: power_rating=%g", ErrInvalidReport, r.PowerRating)
	case r.GoalThreat < 0 || r.GoalThreat > 1:
		return fmt.Errorf("%w: goal_threat=%g", ErrInvalidReport, r.GoalThreat)
	}
	return nil
}

// Blend folds r into p as an exponential moving average with weight alpha
// on the report. A player without history takes the report as is.
func (p Performance) Blend(r PerformanceReport, alpha float64, hasHistory bool) Performance {
	if !hasHistory {
		return Performance{PlayerID: r.PlayerID, PowerRating: r.PowerRating, GoalThreat: r.GoalThreat}
	}
	return Performance{
		PlayerID:    r.PlayerID,
		PowerRating: alpha*r.PowerRating + (1-alpha)*p.PowerRating,
		GoalThreat:  alpha*r.GoalThreat + (1-alpha)*p.GoalThreat,
	}
}
