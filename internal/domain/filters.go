package domain

import (
	"slices"
	"strings"
)

// Filters narrow a run. The zero value narrows nothing.
type Filters struct {
	Countries []string `json:"countries,omitempty"`
	MinScore  float64  `json:"min_score,omitempty" binding:"gte=0,lte=100"`
	MaxPrice  float64  `json:"max_price,omitempty" binding:"gte=0"`
	MinTier   Tier     `json:"min_tier,omitempty"`
}

// IsZero reports whether f leaves a run untouched.
func (f Filters) IsZero() bool {
	return len(f.Countries) == 0 && f.MinScore == 0 && f.MaxPrice == 0 && f.MinTier == ""
}

// IncludesCountry matches country labels or codes case-insensitively.
// An empty country list includes everything.
func (f Filters) IncludesCountry(site CountrySite) bool {
	if len(f.Countries) == 0 {
		return true
	}
	return slices.ContainsFunc(f.Countries, func(c string) bool {
		return strings.EqualFold(c, site.Country) || strings.EqualFold(c, site.Code)
	})
}

// Allows reports whether a deal passes the score, tier and price filters.
func (f Filters) Allows(d DealRecord) bool {
	if d.DealScore < f.MinScore {
		return false
	}
	if f.MinTier != "" && d.DealScore < f.MinTier.MinScore() {
		return false
	}
	if f.MaxPrice > 0 && d.Price > f.MaxPrice {
		return false
	}
	return true
}
