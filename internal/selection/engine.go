package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"retake/internal/failprofile"
	"retake/internal/logging"
	"retake/internal/production"
	"retake/internal/scoring"
	"retake/internal/verdict"
)

// ErrNoCandidates reports a segment whose candidate pool is empty.
var ErrNoCandidates = errors.New("no candidates")

// Request carries everything one segment selection needs. Candidates
// defaults to the segment's takes; PrevPick, when present, replaces each
// candidate's precomputed tonal distance with the distance to the take
// actually chosen for the previous segment.
type Request struct {
	Segment    production.Segment
	Candidates []production.Candidate
	History    verdict.SegmentHistory
	Profiles   failprofile.Profiles
	PrevPick   *production.Candidate
	Round      int
}

// Engine applies the staged elimination and ranking rules.
type Engine struct {
	tunables Tunables
	scorer   scoring.Scorer
	logger   *slog.Logger
}

// NewEngine builds an engine. A nil scorer falls back to the analyzer
// fields on the candidates themselves; a nil logger disables logging.
func NewEngine(tunables Tunables, scorer scoring.Scorer, logger *slog.Logger) *Engine {
	if scorer == nil {
		scorer = scoring.AnalyzerScorer{}
	}
	return &Engine{
		tunables: tunables,
		scorer:   scorer,
		logger:   logging.NewComponentLogger(logger, "selection"),
	}
}

// Select produces exactly one pick, or an explicit unresolvable result, for
// the segment in req. Unresolvable segments are not errors: the log carries
// the least-bad fallback and the review flag instead. The only error case
// is an empty candidate pool.
func (e *Engine) Select(ctx context.Context, req Request) (Log, error) {
	pool := req.Candidates
	if pool == nil {
		pool = req.Segment.Takes
	}
	record := Log{Segment: req.Segment.Index, Round: req.Round, PoolSize: len(pool)}
	if len(pool) == 0 {
		return record, fmt.Errorf("%w: segment %d", ErrNoCandidates, req.Segment.Index)
	}

	logger := logging.WithContext(ctx, e.logger)
	median := medianDuration(pool)
	record.MedianDuration = median
	chars := req.Segment.Chars()

	survivors := make([]production.Candidate, 0, len(pool))
	for _, c := range pool {
		if req.History.IsPass(c.Version) {
			survivors = append(survivors, c)
			continue
		}
		if reasons := e.hardGateReasons(c, median, chars); len(reasons) > 0 {
			record.Eliminated = append(record.Eliminated, Elimination{Version: c.Version, Stage: 1, Reasons: reasons})
			continue
		}
		survivors = append(survivors, c)
	}

	if len(req.Profiles.Hard) > 0 {
		kept := make([]production.Candidate, 0, len(survivors))
		for _, c := range survivors {
			if req.History.IsPass(c.Version) {
				kept = append(kept, c)
				continue
			}
			if profileVersion, matched := e.matchHardProfile(c, req.Profiles); matched {
				record.Eliminated = append(record.Eliminated, Elimination{Version: c.Version, Stage: 2, Reasons: []string{ReasonHardProfile}})
				logger.Debug("take matches hard fail profile",
					logging.Args(
						logging.Int(logging.FieldSegment, req.Segment.Index),
						logging.Int(logging.FieldVersion, c.Version),
						logging.Int("profile_version", profileVersion),
					)...)
				continue
			}
			kept = append(kept, c)
		}
		survivors = kept
	}

	if len(survivors) == 0 {
		record.Unresolvable = true
		record.NeedsReview = true
		if fallback, ok := leastBad(pool, record.Eliminated); ok {
			record.Fallback = &fallback
		}
		logger.Warn("segment unresolvable, every take eliminated",
			logging.Args(
				logging.Int(logging.FieldSegment, req.Segment.Index),
				logging.Int("pool_size", len(pool)),
				logging.Int("eliminated", len(record.Eliminated)),
			)...)
		return record, nil
	}

	ranked := make([]Ranked, 0, len(survivors))
	for _, c := range survivors {
		ranked = append(ranked, e.rank(c, req, median))
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	record.Survivors = ranked

	pick := ranked[0]
	record.Pick = &pick
	record.Confidence = confidence(ranked, e.tunables.ConfidenceMargin)
	if record.Confidence == ConfidenceLow {
		record.NeedsReview = true
	}

	attrs := logging.DecisionAttrs("take_selection", pick.label(req.Segment.Index), string(record.Confidence))
	attrs = append(attrs,
		logging.Int(logging.FieldSegment, req.Segment.Index),
		logging.Int("pool_size", len(pool)),
		logging.Int("eliminated", len(record.Eliminated)),
		logging.Float64("score", pick.Score),
	)
	logger.Debug("take selected", logging.Args(attrs...)...)
	return record, nil
}

func (r Ranked) label(segment int) string {
	return fmt.Sprintf("seg%03d/v%02d", segment, r.Version)
}

// hardGateReasons evaluates every stage 1 gate and unions the failures so
// the log shows all of a take's problems, not just the first.
func (e *Engine) hardGateReasons(c production.Candidate, median float64, chars int) []string {
	t := e.tunables
	var reasons []string
	if median > 0 {
		if c.Duration < t.MinDurationFraction*median {
			reasons = append(reasons, ReasonCutShort)
		}
		if math.Abs(c.Duration-median)/median > t.DurationOutlierRatio {
			reasons = append(reasons, ReasonDurationOutlier)
		}
	}
	if chars > 0 && t.MaxCharsPerSecond > 0 && c.Duration < float64(chars)/t.MaxCharsPerSecond {
		reasons = append(reasons, ReasonTextCutoff)
	}
	if tail, measured := c.TailSilence(); measured && tail < t.MinTrailingSilenceMs {
		reasons = append(reasons, ReasonTailSilence)
	}
	if c.EchoRisk > t.EchoRiskCeiling {
		reasons = append(reasons, ReasonEchoCeiling)
	}
	if c.HissDB > t.HissCeilingDB {
		reasons = append(reasons, ReasonHissCeiling)
	}
	if c.Filtered {
		reasons = append(reasons, ReasonUpstreamFilter)
	}
	return reasons
}

func (e *Engine) matchHardProfile(c production.Candidate, profiles failprofile.Profiles) (int, bool) {
	metrics := e.scorer.Metrics(c)
	for i, profile := range profiles.Hard {
		similar, _, _ := scoring.Similar(metrics, profile, e.tunables.ProfileKeys, e.tunables.ProfileTolerance)
		if similar {
			version := -1
			if i < len(profiles.HardVersions) {
				version = profiles.HardVersions[i]
			}
			return version, true
		}
	}
	return -1, false
}

func (e *Engine) rank(c production.Candidate, req Request, median float64) Ranked {
	t := e.tunables
	tonal := c.TonalDistance
	if req.PrevPick != nil {
		tonal = e.scorer.TonalDistance(c, *req.PrevPick)
	}
	score := -c.EchoRisk*t.EchoWeight -
		c.Flatness*t.FlatnessWeight +
		c.Quality*t.QualityWeight -
		tonal*t.TonalWeight +
		c.HissDB*t.HissWeight
	if t.DurationWeight != 0 && median > 0 {
		score += (c.Duration - median) / median * t.DurationWeight
	}
	soft := scoring.SoftSimilarity(e.scorer.Metrics(c), req.Profiles.Soft, t.ProfileKeys)
	score -= soft * t.SoftFailWeight
	pass := req.History.IsPass(c.Version)
	if pass {
		score += t.PassBonus
	}
	return Ranked{
		Version:        c.Version,
		Score:          score,
		PassVerified:   pass,
		SoftSimilarity: soft,
		TonalDistance:  tonal,
	}
}

// confidence grades the score gap between the top two survivors. A sole
// survivor is high confidence: there is nothing to confuse it with.
func confidence(ranked []Ranked, margin float64) Confidence {
	if len(ranked) == 1 {
		return ConfidenceHigh
	}
	gap := ranked[0].Score - ranked[1].Score
	switch {
	case gap > margin:
		return ConfidenceHigh
	case gap > margin/2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// leastBad picks the reference take for an unresolvable segment: fewest
// elimination reasons, then longest duration, then input order.
func leastBad(pool []production.Candidate, eliminated []Elimination) (Fallback, bool) {
	reasonsFor := func(version int) (int, bool) {
		for _, e := range eliminated {
			if e.Version == version {
				return len(e.Reasons), true
			}
		}
		return 0, false
	}

	best := -1
	bestReasons := 0
	for i, c := range pool {
		count, ok := reasonsFor(c.Version)
		if !ok {
			continue
		}
		switch {
		case best == -1:
			best, bestReasons = i, count
		case count < bestReasons:
			best, bestReasons = i, count
		case count == bestReasons && c.Duration > pool[best].Duration:
			best, bestReasons = i, count
		}
	}
	if best == -1 {
		return Fallback{}, false
	}
	return Fallback{Version: pool[best].Version, Reasons: bestReasons, Duration: pool[best].Duration}, true
}

func medianDuration(pool []production.Candidate) float64 {
	durations := make([]float64, len(pool))
	for i, c := range pool {
		durations[i] = c.Duration
	}
	sort.Float64s(durations)
	mid := len(durations) / 2
	if len(durations)%2 == 1 {
		return durations[mid]
	}
	return (durations[mid-1] + durations[mid]) / 2
}
