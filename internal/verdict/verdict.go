package verdict

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"retake/internal/services"
)

// Severity classifies a failed take. Passing takes carry no severity.
type Severity string

const (
	SeveritySoft Severity = "soft"
	SeverityHard Severity = "hard"
)

// Verdict is one human judgement of one take.
type Verdict struct {
	Segment  int      `yaml:"segment"`
	Version  int      `yaml:"version"`
	Passed   bool     `yaml:"passed"`
	Severity Severity `yaml:"severity,omitempty"`
	Note     string   `yaml:"note,omitempty"`
}

// ReviewFile is the on-disk shape of one review drop.
type ReviewFile struct {
	Production string    `yaml:"production,omitempty"`
	Reviewer   string    `yaml:"reviewer,omitempty"`
	ReviewedAt time.Time `yaml:"reviewed_at"`
	Verdicts   []Verdict `yaml:"verdicts"`
}

// SegmentHistory holds the resolved verdict sets for one segment.
type SegmentHistory struct {
	PassVersions []int
	SoftVersions []int
	HardVersions []int
}

// IsPass reports whether a human confirmed the version as passing.
func (s SegmentHistory) IsPass(version int) bool { return containsInt(s.PassVersions, version) }

// IsSoft reports whether the version's latest verdict is a soft fail.
func (s SegmentHistory) IsSoft(version int) bool { return containsInt(s.SoftVersions, version) }

// IsHard reports whether the version's latest verdict is a hard fail.
func (s SegmentHistory) IsHard(version int) bool { return containsInt(s.HardVersions, version) }

// Empty reports whether the segment has no resolved verdicts at all.
func (s SegmentHistory) Empty() bool {
	return len(s.PassVersions) == 0 && len(s.SoftVersions) == 0 && len(s.HardVersions) == 0
}

// History is the aggregated verdict state for a production. It is a pure
// function of the review files and is rebuilt from disk on every run.
type History struct {
	segments map[int]SegmentHistory
	files    int
	verdicts int
}

// Segment returns the resolved history for one segment. Segments nobody has
// reviewed yet return an empty history.
func (h *History) Segment(index int) SegmentHistory {
	if h == nil || h.segments == nil {
		return SegmentHistory{}
	}
	return h.segments[index]
}

// IsPass reports whether the (segment, version) pair is a confirmed pass.
func (h *History) IsPass(segment, version int) bool {
	return h.Segment(segment).IsPass(version)
}

// Files reports how many review files contributed to the history.
func (h *History) Files() int {
	if h == nil {
		return 0
	}
	return h.files
}

// Verdicts reports how many resolved (segment, version) judgements exist.
func (h *History) Verdicts() int {
	if h == nil {
		return 0
	}
	return h.verdicts
}

// resolved is one verdict plus the ordering key that decides precedence.
type resolved struct {
	verdict    Verdict
	reviewedAt time.Time
	file       string
}

func (r resolved) before(other resolved) bool {
	if !r.reviewedAt.Equal(other.reviewedAt) {
		return r.reviewedAt.Before(other.reviewedAt)
	}
	return r.file < other.file
}

type takeKey struct {
	segment int
	version int
}

// LoadDir reads every review file in dir and aggregates the verdicts.
// A missing directory is not an error: it means nobody has reviewed yet.
func LoadDir(dir string) (*History, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{segments: map[int]SegmentHistory{}}, nil
		}
		return nil, services.Wrap(services.ErrTransient, "verdict", "load", "read reviews directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	latest := make(map[takeKey]resolved)
	files := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "verdict", "load", fmt.Sprintf("read review file %s", name), err)
		}
		review, err := parseReview(data)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "verdict", "load", fmt.Sprintf("parse review file %s", name), err)
		}
		files++
		for _, v := range review.Verdicts {
			key := takeKey{segment: v.Segment, version: v.Version}
			candidate := resolved{verdict: v, reviewedAt: review.ReviewedAt, file: name}
			current, seen := latest[key]
			if !seen || !candidate.before(current) {
				latest[key] = candidate
			}
		}
	}

	history := &History{segments: make(map[int]SegmentHistory), files: files, verdicts: len(latest)}
	for key, record := range latest {
		seg := history.segments[key.segment]
		switch {
		case record.verdict.Passed:
			seg.PassVersions = append(seg.PassVersions, key.version)
		case record.verdict.Severity == SeveritySoft:
			seg.SoftVersions = append(seg.SoftVersions, key.version)
		default:
			seg.HardVersions = append(seg.HardVersions, key.version)
		}
		history.segments[key.segment] = seg
	}
	for index, seg := range history.segments {
		sort.Ints(seg.PassVersions)
		sort.Ints(seg.SoftVersions)
		sort.Ints(seg.HardVersions)
		history.segments[index] = seg
	}
	return history, nil
}

func parseReview(data []byte) (ReviewFile, error) {
	var review ReviewFile
	if err := yaml.Unmarshal(data, &review); err != nil {
		return ReviewFile{}, err
	}
	if review.ReviewedAt.IsZero() {
		return ReviewFile{}, fmt.Errorf("reviewed_at is required")
	}
	for i, v := range review.Verdicts {
		if v.Segment < 0 {
			return ReviewFile{}, fmt.Errorf("verdict %d: segment must be non-negative", i)
		}
		if v.Version < 0 {
			return ReviewFile{}, fmt.Errorf("verdict %d: version must be non-negative", i)
		}
		severity := Severity(strings.ToLower(strings.TrimSpace(string(v.Severity))))
		if v.Passed {
			if severity != "" && severity != "pass" {
				return ReviewFile{}, fmt.Errorf("verdict %d: passed verdict cannot carry severity %q", i, v.Severity)
			}
			review.Verdicts[i].Severity = ""
			continue
		}
		switch severity {
		case SeveritySoft, SeverityHard:
			review.Verdicts[i].Severity = severity
		case "":
			review.Verdicts[i].Severity = SeverityHard
		default:
			return ReviewFile{}, fmt.Errorf("verdict %d: unknown severity %q", i, v.Severity)
		}
	}
	return review, nil
}

func containsInt(values []int, want int) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
