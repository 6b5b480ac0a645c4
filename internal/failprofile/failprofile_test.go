package failprofile_test

import (
	"reflect"
	"testing"

	"retake/internal/failprofile"
	"retake/internal/production"
	"retake/internal/scoring"
	"retake/internal/verdict"
)

func take(version int, echo float64) production.Candidate {
	return production.Candidate{
		Version:  version,
		EchoRisk: echo,
		HissDB:   -60,
		Flatness: 0.3,
		Contrast: 20,
		Quality:  0.8,
	}
}

func TestBuildSplitsBySeverity(t *testing.T) {
	pool := []production.Candidate{take(0, 0.001), take(1, 0.009), take(2, 0.002), take(3, 0.004)}
	hist := verdict.SegmentHistory{
		PassVersions: []int{0},
		SoftVersions: []int{3},
		HardVersions: []int{1},
	}

	profiles := failprofile.Build(pool, hist, scoring.AnalyzerScorer{})

	if !reflect.DeepEqual(profiles.HardVersions, []int{1}) {
		t.Fatalf("unexpected hard versions: %v", profiles.HardVersions)
	}
	if !reflect.DeepEqual(profiles.SoftVersions, []int{3}) {
		t.Fatalf("unexpected soft versions: %v", profiles.SoftVersions)
	}
	if len(profiles.Hard) != 1 || profiles.Hard[0].EchoRisk != 0.009 {
		t.Fatalf("hard profile should carry version 1 metrics, got %+v", profiles.Hard)
	}
	if len(profiles.Soft) != 1 || profiles.Soft[0].EchoRisk != 0.004 {
		t.Fatalf("soft profile should carry version 3 metrics, got %+v", profiles.Soft)
	}
	if profiles.Empty() {
		t.Fatal("profiles with exemplars should not report empty")
	}
}

func TestBuildIgnoresUnjudgedAndPassTakes(t *testing.T) {
	pool := []production.Candidate{take(0, 0.001), take(1, 0.002)}
	hist := verdict.SegmentHistory{PassVersions: []int{0}}

	profiles := failprofile.Build(pool, hist, scoring.AnalyzerScorer{})
	if !profiles.Empty() {
		t.Fatalf("pass and unjudged takes must not produce profiles, got %+v", profiles)
	}
}

func TestBuildSkipsVerdictsWithoutCandidates(t *testing.T) {
	pool := []production.Candidate{take(0, 0.001)}
	hist := verdict.SegmentHistory{HardVersions: []int{7}}

	profiles := failprofile.Build(pool, hist, scoring.AnalyzerScorer{})
	if !profiles.Empty() {
		t.Fatalf("verdicts for absent versions have no metrics to contribute, got %+v", profiles)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	pool := []production.Candidate{take(0, 0.003), take(1, 0.005), take(2, 0.007)}
	hist := verdict.SegmentHistory{HardVersions: []int{0, 1, 2}}

	first := failprofile.Build(pool, hist, scoring.AnalyzerScorer{})
	second := failprofile.Build(pool, hist, scoring.AnalyzerScorer{})
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs should produce identical profiles")
	}
	if !reflect.DeepEqual(first.HardVersions, []int{0, 1, 2}) {
		t.Fatalf("pool order should fix profile order, got %v", first.HardVersions)
	}
}
