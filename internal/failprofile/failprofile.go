// Package failprofile turns human verdict history into the metric profiles
// the selection engine screens candidates against. Hard-fail profiles drive
// elimination, soft-fail profiles drive a continuous ranking penalty.
package failprofile

import (
	"retake/internal/production"
	"retake/internal/scoring"
	"retake/internal/verdict"
)

// Profiles holds the exemplar metric vectors for one segment, split by
// severity, with the contributing versions kept for the selection log.
type Profiles struct {
	Hard         []scoring.Vector
	Soft         []scoring.Vector
	HardVersions []int
	SoftVersions []int
}

// Empty reports whether no verdict produced a profile.
func (p Profiles) Empty() bool {
	return len(p.Hard) == 0 && len(p.Soft) == 0
}

// Build derives the fail profiles for one segment from its candidate pool
// and resolved verdict history. Candidates nobody has judged contribute
// nothing, and pass verdicts contribute nothing: a confirmed-good take is an
// exemption, not an exemplar. Verdicts for versions missing from the pool
// are skipped since there are no metrics to profile. The result is a pure
// function of its inputs; pool order fixes profile order.
func Build(pool []production.Candidate, hist verdict.SegmentHistory, scorer scoring.Scorer) Profiles {
	var profiles Profiles
	for _, candidate := range pool {
		switch {
		case hist.IsHard(candidate.Version):
			profiles.Hard = append(profiles.Hard, scorer.Metrics(candidate))
			profiles.HardVersions = append(profiles.HardVersions, candidate.Version)
		case hist.IsSoft(candidate.Version):
			profiles.Soft = append(profiles.Soft, scorer.Metrics(candidate))
			profiles.SoftVersions = append(profiles.SoftVersions, candidate.Version)
		}
	}
	return profiles
}
