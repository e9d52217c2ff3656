// Package ranking orders, filters and trims deals for the digest.
package ranking

import (
	"cmp"
	"slices"

	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
)

// Rank returns a copy of deals sorted by score, highest first. Equal scores
// keep their input order.
func Rank(deals []domain.DealRecord) []domain.DealRecord {
	ranked := slices.Clone(deals)
	slices.SortStableFunc(ranked, func(a, b domain.DealRecord) int {
		return cmp.Compare(b.DealScore, a.DealScore)
	})
	return ranked
}

// RankAndTruncate ranks deals and keeps at most n of them. n <= 0 keeps none.
func RankAndTruncate(deals []domain.DealRecord, n int) []domain.DealRecord {
	ranked := Rank(deals)
	if n <= 0 {
		return ranked[:0]
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Apply keeps the deals allowed by f, in order.
func Apply(deals []domain.DealRecord, f domain.Filters) []domain.DealRecord {
	if f.IsZero() {
		return slices.Clone(deals)
	}

	kept := make([]domain.DealRecord, 0, len(deals))
	for _, d := range deals {
		if f.Allows(d) {
			kept = append(kept, d)
		}
	}
	return kept
}

// CountByTier tallies deals per scoring band.
func CountByTier(deals []domain.DealRecord) map[domain.Tier]int {
	counts := make(map[domain.Tier]int, 4)
	for _, d := range deals {
		counts[d.Tier()]++
	}
	return counts
}
