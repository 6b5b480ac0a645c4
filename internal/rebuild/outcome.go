package rebuild

import "retake/internal/session"

// Pick is one segment's resolution at the end of a run.
type Pick struct {
	Version int `json:"version"`
	// Unresolvable marks a least-bad fallback: every take was eliminated and
	// the version is reference material for a human, not a verified choice.
	Unresolvable bool `json:"unresolvable,omitempty"`
	NeedsReview  bool `json:"needs_review,omitempty"`
}

// RoundRecord summarizes one control-loop iteration.
type RoundRecord struct {
	Number int `json:"number"`
	// Rechunk lists the segments re-selected this round.
	Rechunk []int `json:"rechunk,omitempty"`
	// GatePasses and GateFailures count automated build-report gates only;
	// gates configured as non-automatable are excluded from both.
	GatePasses    int      `json:"gate_passes"`
	GateFailures  int      `json:"gate_failures"`
	FailedGates   []string `json:"failed_gates,omitempty"`
	EchoFlags     []int    `json:"echo_flags,omitempty"`
	DurationFlags []int    `json:"duration_flags,omitempty"`
	// Flagged is the scanner union, the next round's rechunk set.
	Flagged   []int       `json:"flagged,omitempty"`
	Improved  bool        `json:"improved,omitempty"`
	TrackPath string      `json:"track_path,omitempty"`
	Picks     map[int]int `json:"picks,omitempty"`
}

// Passing reports whether the round cleared every automated check.
func (r RoundRecord) Passing() bool {
	return r.GateFailures == 0 && len(r.Flagged) == 0
}

// Outcome is the complete result of one rebuild run.
type Outcome struct {
	SessionID  string         `json:"session_id"`
	Production string         `json:"production"`
	Status     session.Status `json:"status"`
	Rounds     []RoundRecord  `json:"rounds,omitempty"`
	// BestRound is the promoted round, zero when nothing was ever assembled.
	BestRound int          `json:"best_round,omitempty"`
	Picks     map[int]Pick `json:"picks,omitempty"`
	// Rejected accumulates versions picked in scanner-flagged rounds, per
	// segment. Tracked for the operator; never fed back into selection.
	Rejected map[int][]int `json:"rejected,omitempty"`
	// Flagged is the final round's scanner union.
	Flagged []int `json:"flagged,omitempty"`
	// Review lists segments whose current pick needs human judgement.
	Review []int `json:"review,omitempty"`
}
