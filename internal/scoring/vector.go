package scoring

import "math"

// Metric keys understood by Vector. Config profile keys are validated
// against this set.
const (
	KeyEchoRisk = "echo_risk"
	KeyHissDB   = "hiss_db"
	KeyFlatness = "flatness"
	KeyContrast = "contrast"
	KeyQuality  = "quality"
)

// DefaultKeys returns the full metric key list in canonical order.
func DefaultKeys() []string {
	return []string{KeyEchoRisk, KeyHissDB, KeyFlatness, KeyContrast, KeyQuality}
}

// KnownKey reports whether key names a metric this package can compare.
func KnownKey(key string) bool {
	switch key {
	case KeyEchoRisk, KeyHissDB, KeyFlatness, KeyContrast, KeyQuality:
		return true
	}
	return false
}

// Vector is one take's analyzer metrics. NaN marks a metric the analyzer
// did not produce; absent metrics are skipped during comparison rather
// than treated as zero.
type Vector struct {
	EchoRisk float64
	HissDB   float64
	Flatness float64
	Contrast float64
	Quality  float64
}

// Absent returns a vector with every metric missing.
func Absent() Vector {
	nan := math.NaN()
	return Vector{EchoRisk: nan, HissDB: nan, Flatness: nan, Contrast: nan, Quality: nan}
}

// Value returns the metric named by key. The bool is false for unknown keys;
// known but unmeasured metrics return NaN.
func (v Vector) Value(key string) (float64, bool) {
	switch key {
	case KeyEchoRisk:
		return v.EchoRisk, true
	case KeyHissDB:
		return v.HissDB, true
	case KeyFlatness:
		return v.Flatness, true
	case KeyContrast:
		return v.Contrast, true
	case KeyQuality:
		return v.Quality, true
	}
	return math.NaN(), false
}

// RelativeDifference is the symmetric relative distance between two metric
// values: |a−b| / max(|a|, |b|). Two zeros are identical (0); when exactly
// one side is zero the difference is maximal (1).
func RelativeDifference(a, b float64) float64 {
	if a == b {
		return 0
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 0
	}
	return math.Abs(a-b) / denom
}

// Similar applies the profile-match rule: more than half of the comparable
// metrics must fall within tolerance. A metric is comparable when both
// vectors carry it. It returns the verdict plus the matched and comparable
// counts for the selection log.
func Similar(a, b Vector, keys []string, tolerance float64) (bool, int, int) {
	matched, comparable := 0, 0
	for _, key := range keys {
		av, ok := a.Value(key)
		if !ok || math.IsNaN(av) {
			continue
		}
		bv, ok := b.Value(key)
		if !ok || math.IsNaN(bv) {
			continue
		}
		comparable++
		if RelativeDifference(av, bv) <= tolerance {
			matched++
		}
	}
	return comparable > 0 && matched*2 > comparable, matched, comparable
}

// SoftSimilarity scores how closely v resembles its nearest profile, as the
// mean over comparable metrics of (1 − relative difference), clamped to
// [0,1]. No profiles or no comparable metrics score 0.
func SoftSimilarity(v Vector, profiles []Vector, keys []string) float64 {
	best := 0.0
	for _, profile := range profiles {
		sum, comparable := 0.0, 0
		for _, key := range keys {
			av, ok := v.Value(key)
			if !ok || math.IsNaN(av) {
				continue
			}
			pv, ok := profile.Value(key)
			if !ok || math.IsNaN(pv) {
				continue
			}
			comparable++
			if closeness := 1 - RelativeDifference(av, pv); closeness > 0 {
				sum += closeness
			}
		}
		if comparable == 0 {
			continue
		}
		if mean := sum / float64(comparable); mean > best {
			best = mean
		}
	}
	return best
}
