package scanner

import "sort"

// Report lists the segments a scan implicated, sorted and deduplicated.
type Report struct {
	EchoSegments     []int `json:"echo_segments,omitempty"`
	DurationSegments []int `json:"duration_segments,omitempty"`
}

// Empty reports whether the scan found nothing.
func (r Report) Empty() bool {
	return len(r.EchoSegments) == 0 && len(r.DurationSegments) == 0
}

// Flagged returns the union of all implicated segments, sorted.
func (r Report) Flagged() []int {
	seen := make(map[int]struct{}, len(r.EchoSegments)+len(r.DurationSegments))
	for _, idx := range r.EchoSegments {
		seen[idx] = struct{}{}
	}
	for _, idx := range r.DurationSegments {
		seen[idx] = struct{}{}
	}
	flagged := make([]int, 0, len(seen))
	for idx := range seen {
		flagged = append(flagged, idx)
	}
	sort.Ints(flagged)
	return flagged
}

func sortedUnique(indexes []int) []int {
	if len(indexes) == 0 {
		return nil
	}
	sort.Ints(indexes)
	out := indexes[:1]
	for _, idx := range indexes[1:] {
		if idx != out[len(out)-1] {
			out = append(out, idx)
		}
	}
	return out
}
