package production

import (
	"fmt"

	"retake/internal/textutil"
)

// Segment is one ordered unit of narration text plus its candidate takes.
type Segment struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	CharCount int    `json:"char_count,omitempty"`
	// Opening and Closing mark segments that begin or end the production;
	// the assembler pads them with extra room tone.
	Opening bool        `json:"opening,omitempty"`
	Closing bool        `json:"closing,omitempty"`
	Takes   []Candidate `json:"takes,omitempty"`
}

// Candidate is one synthesized take for a segment. Metrics are precomputed by
// the generation pipeline; a candidate is produced once and never mutated.
type Candidate struct {
	// Version is unique within a segment's pool.
	Version   int    `json:"version"`
	AudioPath string `json:"audio_path"`
	// Duration is the take length in seconds.
	Duration float64 `json:"duration_seconds"`
	// EchoRisk is a non-negative artifact score; higher is worse.
	EchoRisk float64 `json:"echo_risk"`
	// HissDB is the estimated noise floor, dB-like; more negative is cleaner.
	HissDB   float64 `json:"hiss_db"`
	Flatness float64 `json:"flatness"`
	Contrast float64 `json:"contrast"`
	// Quality is an overall synthesis score; higher is better.
	Quality float64 `json:"quality"`
	// TonalDistance measures drift from the previous segment's chosen take,
	// computed upstream when that pick was known. Zero when unavailable.
	TonalDistance float64 `json:"tonal_distance,omitempty"`
	// TailSilenceMs is the measured trailing silence; nil means the generator
	// did not measure it and it must be backfilled from the waveform.
	TailSilenceMs *float64 `json:"tail_silence_ms,omitempty"`
	// Filtered marks takes the generation stage already rejected
	// (over-generation artifacts); never cleared here.
	Filtered     bool   `json:"filtered,omitempty"`
	FilterReason string `json:"filter_reason,omitempty"`
}

// Chars returns the speakable character count for the segment, deriving it
// from the text when the manifest did not carry one.
func (s Segment) Chars() int {
	if s.CharCount > 0 {
		return s.CharCount
	}
	return textutil.SpeakableChars(s.Text)
}

// Take returns the candidate with the given version.
func (s Segment) Take(version int) (Candidate, bool) {
	for _, take := range s.Takes {
		if take.Version == version {
			return take, true
		}
	}
	return Candidate{}, false
}

// TailSilence reports the trailing-silence metric and whether it was measured.
func (c Candidate) TailSilence() (float64, bool) {
	if c.TailSilenceMs == nil {
		return 0, false
	}
	return *c.TailSilenceMs, true
}

// Label formats a human-readable identifier for logs and review files.
func (c Candidate) Label(segmentIndex int) string {
	return fmt.Sprintf("seg%03d/v%02d", segmentIndex, c.Version)
}
