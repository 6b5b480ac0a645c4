package selection

// Elimination reason tokens recorded in the selection log. Stage 1 gates
// union every reason that applies; stage 2 records a single profile match.
const (
	ReasonCutShort        = "cut_short"
	ReasonDurationOutlier = "duration_outlier"
	ReasonTextCutoff      = "text_cutoff"
	ReasonTailSilence     = "tail_silence"
	ReasonEchoCeiling     = "echo_ceiling"
	ReasonHissCeiling     = "hiss_ceiling"
	ReasonUpstreamFilter  = "upstream_filtered"
	ReasonHardProfile     = "hard_profile_match"
)

// Confidence grades the gap between the top two survivor scores.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Elimination records one rejected take and every reason that applied.
type Elimination struct {
	Version int      `json:"version"`
	Stage   int      `json:"stage"`
	Reasons []string `json:"reasons"`
}

// Ranked is one surviving take with its ranking inputs and final score.
type Ranked struct {
	Version        int     `json:"version"`
	Score          float64 `json:"score"`
	PassVerified   bool    `json:"pass_verified,omitempty"`
	SoftSimilarity float64 `json:"soft_similarity,omitempty"`
	TonalDistance  float64 `json:"tonal_distance,omitempty"`
}

// Fallback is the least-bad eliminated take reported for an unresolvable
// segment. It is reference material for a human, never an authoritative pick.
type Fallback struct {
	Version  int     `json:"version"`
	Reasons  int     `json:"reasons"`
	Duration float64 `json:"duration_seconds"`
}

// Log is the full audit record of one segment's selection: every
// elimination with reasons, every survivor with its score, the pick, and
// the confidence grade. It is deterministic given identical inputs and
// tunables.
type Log struct {
	Segment        int           `json:"segment"`
	Round          int           `json:"round,omitempty"`
	PoolSize       int           `json:"pool_size"`
	MedianDuration float64       `json:"median_duration_seconds"`
	Eliminated     []Elimination `json:"eliminated,omitempty"`
	Survivors      []Ranked      `json:"survivors,omitempty"`
	Pick           *Ranked       `json:"pick,omitempty"`
	Confidence     Confidence    `json:"confidence,omitempty"`
	Unresolvable   bool          `json:"unresolvable,omitempty"`
	Fallback       *Fallback     `json:"fallback,omitempty"`
	NeedsReview    bool          `json:"needs_review,omitempty"`
}

// PickVersion returns the picked version, or -1 when the segment is
// unresolvable.
func (l Log) PickVersion() int {
	if l.Pick == nil {
		return -1
	}
	return l.Pick.Version
}

// EliminationFor returns the recorded elimination for a version, if any.
func (l Log) EliminationFor(version int) (Elimination, bool) {
	for _, e := range l.Eliminated {
		if e.Version == version {
			return e, true
		}
	}
	return Elimination{}, false
}
