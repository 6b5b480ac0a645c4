package production

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"retake/internal/fileutil"
	"retake/internal/logging"
	"retake/internal/media/wavfile"
	"retake/internal/services"
)

// Manifest is the parsed takes.json for one production.
type Manifest struct {
	Production string    `json:"production"`
	Segments   []Segment `json:"segments"`

	// baseDir is the manifest's directory, used to resolve relative audio paths.
	baseDir string
}

// LoadManifest reads, normalizes, and validates a take manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "production", "load manifest", path, err)
		}
		return nil, services.Wrap(services.ErrTransient, "production", "load manifest", path, err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, services.Wrap(services.ErrValidation, "production", "parse manifest", path, err)
	}

	manifest.normalize()
	if err := manifest.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "production", "validate manifest", path, err)
	}

	manifest.baseDir = filepath.Dir(path)
	return &manifest, nil
}

// Save writes the manifest atomically. Used by fixtures and tooling; the
// generation pipeline owns the canonical file.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (m *Manifest) normalize() {
	m.Production = strings.TrimSpace(m.Production)
	sort.SliceStable(m.Segments, func(i, j int) bool {
		return m.Segments[i].Index < m.Segments[j].Index
	})
	for i := range m.Segments {
		takes := m.Segments[i].Takes
		sort.SliceStable(takes, func(a, b int) bool {
			return takes[a].Version < takes[b].Version
		})
	}
}

// Validate checks structural invariants: unique non-negative segment indexes,
// unique take versions per segment, and usable text and audio references.
func (m *Manifest) Validate() error {
	if m.Production == "" {
		return errors.New("manifest production name must be set")
	}
	seenSegments := make(map[int]struct{}, len(m.Segments))
	for _, segment := range m.Segments {
		if segment.Index < 0 {
			return fmt.Errorf("segment index %d must be >= 0", segment.Index)
		}
		if _, ok := seenSegments[segment.Index]; ok {
			return fmt.Errorf("duplicate segment index %d", segment.Index)
		}
		seenSegments[segment.Index] = struct{}{}
		if strings.TrimSpace(segment.Text) == "" {
			return fmt.Errorf("segment %d has no text", segment.Index)
		}
		seenVersions := make(map[int]struct{}, len(segment.Takes))
		for _, take := range segment.Takes {
			if take.Version < 0 {
				return fmt.Errorf("segment %d take version %d must be >= 0", segment.Index, take.Version)
			}
			if _, ok := seenVersions[take.Version]; ok {
				return fmt.Errorf("segment %d has duplicate take version %d", segment.Index, take.Version)
			}
			seenVersions[take.Version] = struct{}{}
			if strings.TrimSpace(take.AudioPath) == "" {
				return fmt.Errorf("segment %d take v%d has no audio path", segment.Index, take.Version)
			}
		}
	}
	return nil
}

// Segment returns the segment with the given index.
func (m *Manifest) Segment(index int) (*Segment, bool) {
	for i := range m.Segments {
		if m.Segments[i].Index == index {
			return &m.Segments[i], true
		}
	}
	return nil, false
}

// SegmentIndexes returns the ordered indexes of all segments.
func (m *Manifest) SegmentIndexes() []int {
	indexes := make([]int, 0, len(m.Segments))
	for _, segment := range m.Segments {
		indexes = append(indexes, segment.Index)
	}
	return indexes
}

// Truncate returns a copy limited to segments at or below maxIndex, keeping
// the audio-path resolution of the original. A negative maxIndex keeps every
// segment.
func (m *Manifest) Truncate(maxIndex int) *Manifest {
	out := &Manifest{Production: m.Production, baseDir: m.baseDir}
	if maxIndex < 0 {
		out.Segments = m.Segments
		return out
	}
	for _, segment := range m.Segments {
		if segment.Index > maxIndex {
			continue
		}
		out.Segments = append(out.Segments, segment)
	}
	return out
}

// AudioFile resolves a take's audio path against the manifest directory.
func (m *Manifest) AudioFile(c Candidate) string {
	if filepath.IsAbs(c.AudioPath) || m.baseDir == "" {
		return c.AudioPath
	}
	return filepath.Join(m.baseDir, c.AudioPath)
}

// BackfillTailSilence measures the trailing-silence metric from the waveform
// for every take the generator left unmeasured. Takes whose audio cannot be
// read keep a nil metric; the selection gates skip what they cannot measure.
func (m *Manifest) BackfillTailSilence(windowMs, floorDBFS float64, logger *slog.Logger) {
	log := logging.NewComponentLogger(logger, "production")
	for si := range m.Segments {
		segment := &m.Segments[si]
		for ti := range segment.Takes {
			take := &segment.Takes[ti]
			if take.TailSilenceMs != nil {
				continue
			}
			clip, err := wavfile.Read(m.AudioFile(*take))
			if err != nil {
				log.Debug("tail silence backfill skipped",
					logging.Int(logging.FieldSegment, segment.Index),
					logging.Int(logging.FieldVersion, take.Version),
					logging.Error(err))
				continue
			}
			measured := clip.TailSilence(windowMs, floorDBFS)
			take.TailSilenceMs = &measured
		}
	}
}
