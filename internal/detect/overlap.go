package detect

import "sort"

// ResolveOverlaps selects a non-overlapping subset of candidate spans.
// Candidates are ranked longest first, ties broken by earlier start; each is
// accepted only if it overlaps none of the already accepted spans. The result
// is returned in start order.
func ResolveOverlaps(candidates []Detection) []Detection {
	if len(candidates) < 2 {
		return candidates
	}

	ranked := make([]Detection, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Len() != ranked[j].Len() {
			return ranked[i].Len() > ranked[j].Len()
		}
		return ranked[i].Start < ranked[j].Start
	})

	accepted := make([]Detection, 0, len(ranked))
	for _, cand := range ranked {
		clear := true
		for _, a := range accepted {
			if cand.overlaps(a) {
				clear = false
				break
			}
		}
		if clear {
			accepted = append(accepted, cand)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}
