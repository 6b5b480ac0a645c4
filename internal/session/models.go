package session

import "time"

// Status represents the lifecycle of a rebuild session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPassing   Status = "passing"
	StatusStalled   Status = "stalled"
	StatusExhausted Status = "exhausted"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusRunning,
	StatusPassing,
	StatusStalled,
	StatusExhausted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether the status ends a session.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusRunning
}

// Session is one rebuild run against a production.
type Session struct {
	ID         string `json:"id"`
	Production string `json:"production"`
	Status     Status `json:"status"`
	// BestRound is the promoted round number, zero until a round improves on
	// the baseline.
	BestRound    int        `json:"best_round,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Round is the persisted record of one control-loop iteration.
type Round struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	// Number is the 1-based round counter within the session.
	Number int `json:"number"`
	// Picks maps segment index to the take version assembled that round.
	Picks map[int]int `json:"picks,omitempty"`
	// Flagged lists the segments the defect scan implicated; they form the
	// next round's rechunk set.
	Flagged []int `json:"flagged,omitempty"`
	// Review lists segments whose selection needs human review.
	Review []int `json:"review,omitempty"`
	// FailedGates names the automated build-report gates that failed.
	FailedGates []string `json:"failed_gates,omitempty"`
	// GatePasses counts automated gate passes, the improvement metric.
	GatePasses int       `json:"gate_passes"`
	Improved   bool      `json:"improved,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Artifact is one promoted round snapshot.
type Artifact struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Round        int       `json:"round"`
	TrackPath    string    `json:"track_path"`
	ManifestPath string    `json:"manifest_path"`
	CreatedAt    time.Time `json:"created_at"`
}
