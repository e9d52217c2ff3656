// Package domain holds the values that flow through a deal-finder run.
package domain

// DealRecord is one deal identified in a country catalog.
type DealRecord struct {
	Title     string  `json:"title" validate:"required"`
	Price     float64 `json:"price" validate:"gte=0"`
	Condition string  `json:"condition"`
	// Brand is empty when the listing does not mention one.
	Brand      string  `json:"brand,omitempty"`
	URL        string  `json:"url" validate:"required,http_url"`
	Country    string  `json:"country" validate:"required"`
	DealScore  float64 `json:"deal_score" validate:"gte=0,lte=100"`
	DealReason string  `json:"deal_reason" validate:"required"`
}

// Tier returns the scoring band the record falls in.
func (d DealRecord) Tier() Tier {
	return TierForScore(d.DealScore)
}

// Tier is a named scoring band.
type Tier string

const (
	TierExceptional Tier = "exceptional"
	TierGreat       Tier = "great"
	TierGood        Tier = "good"
	TierBelow       Tier = "below"
)

// Lower bounds of each band.
const (
	ExceptionalMinScore = 90
	GreatMinScore       = 70
	GoodMinScore        = 50
)

// TierForScore maps a score in [0, 100] to its band.
func TierForScore(score float64) Tier {
	switch {
	case score >= ExceptionalMinScore:
		return TierExceptional
	case score >= GreatMinScore:
		return TierGreat
	case score >= GoodMinScore:
		return TierGood
	default:
		return TierBelow
	}
}

// MinScore is the lowest score in the band. TierBelow and unknown tiers return 0.
func (t Tier) MinScore() float64 {
	switch t {
	case TierExceptional:
		return ExceptionalMinScore
	case TierGreat:
		return GreatMinScore
	case TierGood:
		return GoodMinScore
	case TierBelow:
		return 0
	default:
		return 0
	}
}

// Valid reports whether t is one of the named bands.
func (t Tier) Valid() bool {
	switch t {
	case TierExceptional, TierGreat, TierGood, TierBelow:
		return true
	default:
		return false
	}
}
