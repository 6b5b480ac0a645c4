package assembly

import (
	"encoding/json"
	"fmt"
	"os"

	"retake/internal/fileutil"
	"retake/internal/services"
)

// SegmentSpan marks where one segment's speech sits in the assembled track,
// in seconds. Gaps and padding fall outside every span.
type SegmentSpan struct {
	Segment int     `json:"segment"`
	Start   float64 `json:"start_seconds"`
	End     float64 `json:"end_seconds"`
}

// Manifest is the timing map for one assembled track. Spans are ordered by
// start time and never overlap.
type Manifest struct {
	Duration float64       `json:"duration_seconds"`
	Spans    []SegmentSpan `json:"spans"`
}

// SpanFor returns the span for a segment index.
func (m Manifest) SpanFor(segment int) (SegmentSpan, bool) {
	for _, span := range m.Spans {
		if span.Segment == segment {
			return span, true
		}
	}
	return SegmentSpan{}, false
}

// Validate checks span ordering, overlap, and track bounds.
func (m Manifest) Validate() error {
	prevEnd := 0.0
	seen := make(map[int]struct{}, len(m.Spans))
	for i, span := range m.Spans {
		if _, dup := seen[span.Segment]; dup {
			return fmt.Errorf("span %d: duplicate segment %d", i, span.Segment)
		}
		seen[span.Segment] = struct{}{}
		if span.Start < 0 || span.End < span.Start {
			return fmt.Errorf("span %d: invalid bounds [%f, %f]", i, span.Start, span.End)
		}
		if span.Start < prevEnd {
			return fmt.Errorf("span %d: overlaps previous span", i)
		}
		if m.Duration > 0 && span.End > m.Duration+1e-9 {
			return fmt.Errorf("span %d: extends past track end %f", i, m.Duration)
		}
		prevEnd = span.End
	}
	return nil
}

// Save writes the manifest as JSON.
func (m Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrTransient, "assembly", "save manifest", "encode", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "assembly", "save manifest", "write", err)
	}
	return nil
}

// LoadManifest reads a timing manifest written by Save.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, services.Wrap(services.ErrNotFound, "assembly", "load manifest", path, err)
		}
		return Manifest{}, services.Wrap(services.ErrTransient, "assembly", "load manifest", path, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, services.Wrap(services.ErrValidation, "assembly", "load manifest", "decode", err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, services.Wrap(services.ErrValidation, "assembly", "load manifest", "validate", err)
	}
	return manifest, nil
}
