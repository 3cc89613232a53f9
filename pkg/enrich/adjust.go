package enrich

import (
	"math"
	"slices"
	"sort"
)

// AdjustFamily corrects the p-values of one item's family of categories.
// With m tests, the adjusted value of p_e is min(1, p_e*m/rank_e) where
// rank_e counts the family members with p_k >= p_e, ties included.
// The result is index-aligned with pvalues.
func AdjustFamily(pvalues []float64) []float64 {
	m := len(pvalues)
	adjusted := make([]float64, m)
	if m == 0 {
		return adjusted
	}

	sorted := slices.Clone(pvalues)
	slices.Sort(sorted)

	for i, p := range pvalues {
		// first index holding a value >= p; everything from there on counts
		rank := m - sort.SearchFloat64s(sorted, p)
		adjusted[i] = math.Min(1.0, p*float64(m)/float64(rank))
	}
	return adjusted
}

// EnrichmentScore returns -ln(adjusted). A zero adjusted p-value is replaced
// by floor, the smallest positive adjusted p-value of the run.
func EnrichmentScore(adjusted, floor float64) float64 {
	if adjusted == 0 {
		adjusted = floor
	}
	return -math.Log(adjusted)
}

// minPositive returns the smallest adjusted p-value above zero. When none is
// positive it returns the smallest positive float so scores stay finite.
func minPositive(list []*Association) float64 {
	best := math.Inf(1)
	for _, a := range list {
		if a.AdjustedPValue > 0 && a.AdjustedPValue < best {
			best = a.AdjustedPValue
		}
	}
	if math.IsInf(best, 1) {
		return math.SmallestNonzeroFloat64
	}
	return best
}
