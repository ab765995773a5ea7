package enrich

import (
	"strings"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
)

// BestMatch picks the candidate whose display name contains, or is contained
// in, target (case-insensitive). The first such candidate in order wins. With
// a nil target or no match it returns index 0, whatever that candidate holds.
// Candidates without a display name, and nil candidates, are never matched.
//
// candidates must be non-empty.
func BestMatch(target *string, candidates []*model.GeocodeCandidate) (int, *model.GeocodeCandidate) {
	if target == nil {
		return 0, candidates[0]
	}
	want := strings.ToLower(*target)
	for i, c := range candidates {
		name := c.Name()
		if name == nil {
			continue
		}
		got := strings.ToLower(*name)
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return i, c
		}
	}
	return 0, candidates[0]
}
