package balance

// QualityBand classifies a normalized balance score.
type QualityBand string

// Quality bands, best first.
const (
	Excellent QualityBand = "EXCELLENT"
	Good      QualityBand = "GOOD"
	NotGreat  QualityBand = "NOT_GREAT"
	Poor      QualityBand = "POOR"
)

// Bands holds the inclusive upper score bound of each band; anything above NotGreat is Poor.
type Bands struct {
	Excellent float64 `json:"excellent" koanf:"excellent"`
	Good      float64 `json:"good" koanf:"good"`
	NotGreat  float64 `json:"not_great" koanf:"not_great"`
}

// DefaultBands returns the 0.2 / 0.3 / 0.4 thresholds.
func DefaultBands() Bands {
	return Bands{Excellent: 0.2, Good: 0.3, NotGreat: 0.4}
}

// Valid reports whether thresholds are non-negative and ascending.
func (b Bands) Valid() bool {
	return b.Excellent >= 0 && b.Excellent <= b.Good && b.Good <= b.NotGreat
}

// Classify maps a score (lower is better) onto a band.
func (b Bands) Classify(score float64) QualityBand {
	switch {
	case score <= b.Excellent:
		return Excellent
	case score <= b.Good:
		return Good
	case score <= b.NotGreat:
		return NotGreat
	default:
		return Poor
	}
}
