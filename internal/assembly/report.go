package assembly

// Gate names reported by the bundled assembler.
const (
	GateClipping         = "clipping"
	GatePeakHeadroom     = "peak_headroom"
	GateSegmentAlignment = "segment_alignment"
	GateDuration         = "duration"
	GateAmbience         = "ambience"
)

// GateResult is one quality gate's outcome. Automated gates may fail a
// rebuild round; manual gates only inform the reviewer.
type GateResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Automated bool   `json:"automated"`
	Detail    string `json:"detail,omitempty"`
}

// BuildReport describes one assembled track: where it is, how its segments
// are laid out, and how it fared against the gates.
type BuildReport struct {
	TrackPath string       `json:"track_path"`
	Manifest  Manifest     `json:"manifest"`
	Gates     []GateResult `json:"gates"`
}

// Gate returns a gate result by name.
func (r BuildReport) Gate(name string) (GateResult, bool) {
	for _, gate := range r.Gates {
		if gate.Name == name {
			return gate, true
		}
	}
	return GateResult{}, false
}

// AutomatedFailures lists failing gates that count against the round.
// Gates named in exclude are treated as needing human judgement regardless
// of how the assembler marked them.
func (r BuildReport) AutomatedFailures(exclude []string) []string {
	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excluded[name] = struct{}{}
	}
	var failed []string
	for _, gate := range r.Gates {
		if gate.Passed || !gate.Automated {
			continue
		}
		if _, skip := excluded[gate.Name]; skip {
			continue
		}
		failed = append(failed, gate.Name)
	}
	return failed
}

// AutomatedPassCount counts passing automated gates, applying the same
// exclusion list as AutomatedFailures. It is the improvement metric the
// rebuild loop compares across rounds.
func (r BuildReport) AutomatedPassCount(exclude []string) int {
	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excluded[name] = struct{}{}
	}
	count := 0
	for _, gate := range r.Gates {
		if !gate.Automated || !gate.Passed {
			continue
		}
		if _, skip := excluded[gate.Name]; skip {
			continue
		}
		count++
	}
	return count
}

// FailedGates lists every failing gate, manual ones included.
func (r BuildReport) FailedGates() []string {
	var failed []string
	for _, gate := range r.Gates {
		if !gate.Passed {
			failed = append(failed, gate.Name)
		}
	}
	return failed
}
