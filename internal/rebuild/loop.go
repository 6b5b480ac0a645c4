package rebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"retake/internal/assembly"
	"retake/internal/config"
	"retake/internal/failprofile"
	"retake/internal/logging"
	"retake/internal/notifications"
	"retake/internal/production"
	"retake/internal/scanner"
	"retake/internal/scoring"
	"retake/internal/selection"
	"retake/internal/services"
	"retake/internal/session"
	"retake/internal/verdict"
)

// Selector yields one segment's selection. *selection.Engine implements it.
type Selector interface {
	Select(ctx context.Context, req selection.Request) (selection.Log, error)
}

// RunOptions bounds one rebuild run. Zero values inherit the config bounds
// and rebuild the whole production.
type RunOptions struct {
	// Rechunk seeds the first round's re-selection set; empty means every
	// segment. Segments without a starting pick are selected regardless, a
	// round cannot assemble a hole.
	Rechunk []int
	// Picks carries starting picks, typically a previous session's last
	// recorded round. Picks for segments outside the run are ignored.
	Picks map[int]int
	// MaxRounds caps the round counter; zero or negative inherits config.
	MaxRounds int
	// StallAfter bounds consecutive non-improving rounds; zero or negative
	// inherits config.
	StallAfter int
	// MaxSegment, when positive, limits the run to segments at or below it.
	MaxSegment int
}

// Loop drives select-assemble-scan rounds for one production and owns the
// session record for the run's duration.
type Loop struct {
	cfg       *config.Config
	engine    Selector
	assembler assembly.Assembler
	scanner   scanner.Scanner
	store     *session.Store
	notifier  notifications.Service
	scorer    scoring.Scorer
	logger    *slog.Logger
}

// NewLoop wires the control loop. A nil notifier disables notifications.
func NewLoop(cfg *config.Config, engine Selector, assembler assembly.Assembler, scan scanner.Scanner, store *session.Store, notifier notifications.Service, logger *slog.Logger) *Loop {
	return &Loop{
		cfg:       cfg,
		engine:    engine,
		assembler: assembler,
		scanner:   scan,
		store:     store,
		notifier:  notifier,
		scorer:    scoring.AnalyzerScorer{},
		logger:    logging.NewComponentLogger(logger, "rebuild"),
	}
}

// Run executes rounds until the production passes, improvement stalls, the
// round cap is hit, or a collaborator fails. Stalled and exhausted runs are
// outcomes, not errors; the returned error reports aborts only, and the
// session is marked failed whenever one occurs.
func (l *Loop) Run(ctx context.Context, prod *production.Manifest, history *verdict.History, opts RunOptions) (Outcome, error) {
	if prod == nil || len(prod.Segments) == 0 {
		return Outcome{}, services.Wrap(services.ErrValidation, "rebuild", "run", "no segments to rebuild", nil)
	}
	if opts.MaxSegment > 0 {
		prod = prod.Truncate(opts.MaxSegment)
		if len(prod.Segments) == 0 {
			return Outcome{}, services.Wrap(services.ErrValidation, "rebuild", "run",
				fmt.Sprintf("no segments at or below index %d", opts.MaxSegment), nil)
		}
	}
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = l.cfg.Rebuild.MaxRounds
	}
	stallAfter := opts.StallAfter
	if stallAfter <= 0 {
		stallAfter = l.cfg.Rebuild.StallAfter
	}
	rechunk, err := seedRechunk(prod, opts.Rechunk)
	if err != nil {
		return Outcome{}, err
	}
	state, err := newRunState(prod, opts.Picks)
	if err != nil {
		return Outcome{}, err
	}

	sess, err := l.store.Create(ctx, prod.Production)
	if err != nil {
		return Outcome{}, fmt.Errorf("create session: %w", err)
	}
	ctx = services.WithProduction(ctx, prod.Production)
	ctx = services.WithSessionID(ctx, sess.ID)
	logger := logging.WithContext(ctx, l.logger)

	outcome := Outcome{
		SessionID:  sess.ID,
		Production: prod.Production,
		Status:     session.StatusRunning,
	}

	state.workDir = filepath.Join(l.cfg.Paths.StagingDir, prod.Production, sess.ID)
	if err := os.MkdirAll(state.workDir, 0o755); err != nil {
		return l.fail(ctx, logger, &outcome,
			services.Wrap(services.ErrConfiguration, "rebuild", "run", "create staging directory", err))
	}

	logger.Info("rebuild run started",
		logging.Args(
			logging.String(logging.FieldEventType, "run_start"),
			logging.Int("segments", len(prod.Segments)),
			logging.Int("rechunk", len(rechunk)),
			logging.Int("max_rounds", maxRounds),
			logging.Int("stall_after", stallAfter),
		)...)
	l.publish(ctx, logger, notifications.EventRunStarted, notifications.Payload{
		"production": prod.Production,
		"session":    sess.ID,
	})

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return l.fail(ctx, logger, &outcome, services.Wrap(services.ErrTimeout, "rebuild", "run", "canceled", err))
		}

		record, err := l.runRound(ctx, prod, history, sess.ID, round, rechunk, state)
		if err != nil {
			return l.fail(ctx, logger, &outcome, err)
		}

		outcome.Rounds = append(outcome.Rounds, record)
		outcome.BestRound = state.bestRound
		outcome.Flagged = record.Flagged
		outcome.Picks = state.snapshotMeta()
		outcome.Rejected = state.snapshotRejected()
		outcome.Review = state.reviewList()

		switch {
		case record.Passing():
			return l.finish(ctx, logger, &outcome, session.StatusPassing)
		case round >= maxRounds:
			return l.finish(ctx, logger, &outcome, session.StatusExhausted)
		case state.sinceImprovement >= stallAfter:
			return l.finish(ctx, logger, &outcome, session.StatusStalled)
		}
		rechunk = record.Flagged
	}
}

// runRound performs one full iteration: select the rechunk set, assemble,
// gate, scan, promote on improvement, and persist the round.
func (l *Loop) runRound(ctx context.Context, prod *production.Manifest, history *verdict.History, sessionID string, round int, rechunk []int, state *runState) (RoundRecord, error) {
	ctx = services.WithRound(ctx, round)
	logger := logging.WithContext(ctx, l.logger)
	start := time.Now()
	logger.Info("round started",
		logging.Args(
			logging.String(logging.FieldEventType, "round_start"),
			logging.Int("rechunk", len(rechunk)),
		)...)

	logs, err := l.selectPicks(ctx, prod, history, round, rechunk, state)
	if err != nil {
		return RoundRecord{}, err
	}

	trackPath := filepath.Join(state.workDir, fmt.Sprintf("round-%03d.wav", round))
	manifestPath := filepath.Join(state.workDir, fmt.Sprintf("round-%03d.manifest.json", round))
	report, err := l.assembler.Assemble(ctx, prod, state.picks, trackPath)
	if err != nil {
		return RoundRecord{}, err
	}
	if err := report.Manifest.Save(manifestPath); err != nil {
		return RoundRecord{}, err
	}

	scanReport, err := l.scanner.Scan(ctx, trackPath, report.Manifest, prod.Segments)
	if err != nil {
		return RoundRecord{}, err
	}

	exclude := l.cfg.Rebuild.NonAutomatableGates
	failures := report.AutomatedFailures(exclude)
	passes := report.AutomatedPassCount(exclude)
	flagged := scanReport.Flagged()

	improved := passes > state.bestPasses ||
		(passes == state.bestPasses && len(flagged) < state.bestFlagged)
	if improved {
		if _, err := l.store.PromoteRound(ctx, sessionID, round, trackPath, manifestPath); err != nil {
			return RoundRecord{}, fmt.Errorf("promote round %d: %w", round, err)
		}
		state.bestPasses = passes
		state.bestFlagged = len(flagged)
		state.bestRound = round
		state.sinceImprovement = 0
	} else {
		state.sinceImprovement++
	}

	for _, segment := range flagged {
		version, ok := state.picks[segment]
		if !ok {
			continue
		}
		state.reject(segment, version)
		if err := l.store.RecordRejections(ctx, sessionID, round, segment, []int{version}); err != nil {
			return RoundRecord{}, fmt.Errorf("record rejections: %w", err)
		}
	}

	record := RoundRecord{
		Number:        round,
		Rechunk:       append([]int(nil), rechunk...),
		GatePasses:    passes,
		GateFailures:  len(failures),
		FailedGates:   failures,
		EchoFlags:     scanReport.EchoSegments,
		DurationFlags: scanReport.DurationSegments,
		Flagged:       flagged,
		Improved:      improved,
		TrackPath:     trackPath,
		Picks:         state.snapshotPicks(),
	}

	if err := l.store.RecordRound(ctx, &session.Round{
		SessionID:   sessionID,
		Number:      round,
		Picks:       record.Picks,
		Flagged:     flagged,
		Review:      state.reviewList(),
		FailedGates: failures,
		GatePasses:  passes,
		Improved:    improved,
	}); err != nil {
		return RoundRecord{}, fmt.Errorf("record round %d: %w", round, err)
	}
	if err := l.store.SaveSelectionLogs(ctx, sessionID, round, logs); err != nil {
		return RoundRecord{}, fmt.Errorf("save selection logs: %w", err)
	}

	logger.Info("round completed",
		logging.Args(
			logging.String(logging.FieldEventType, "round_complete"),
			logging.Int("gate_passes", passes),
			logging.Int("gate_failures", len(failures)),
			logging.Int("flagged", len(flagged)),
			logging.Bool("improved", improved),
			logging.Duration("round_duration", time.Since(start)),
		)...)
	l.publish(ctx, logger, notifications.EventRoundCompleted, notifications.Payload{
		"round":    round,
		"passes":   passes,
		"flagged":  len(flagged),
		"improved": improved,
	})
	return record, nil
}

// selectPicks runs the engine for every rechunk segment, carrying picks for
// the rest. Fail profiles are rebuilt from verdict history on every round.
// Segments in index order so each pick anchors the next segment's tonal
// distance.
func (l *Loop) selectPicks(ctx context.Context, prod *production.Manifest, history *verdict.History, round int, rechunk []int, state *runState) ([]selection.Log, error) {
	targets := make(map[int]struct{}, len(rechunk))
	for _, idx := range rechunk {
		targets[idx] = struct{}{}
	}

	logs := make([]selection.Log, 0, len(rechunk))
	var prev *production.Candidate
	for i := range prod.Segments {
		segment := &prod.Segments[i]
		_, wanted := targets[segment.Index]
		current, picked := state.picks[segment.Index]
		if picked && !wanted {
			if take, ok := segment.Take(current); ok {
				prev = &take
			}
			continue
		}

		segCtx := services.WithSegment(ctx, segment.Index)
		hist := history.Segment(segment.Index)
		trace, err := l.engine.Select(segCtx, selection.Request{
			Segment:  *segment,
			History:  hist,
			Profiles: failprofile.Build(segment.Takes, hist, l.scorer),
			PrevPick: prev,
			Round:    round,
		})
		if err != nil {
			if errors.Is(err, selection.ErrNoCandidates) && picked {
				// An emptied pool cannot unseat an assembled pick, but a
				// human should know the segment is frozen.
				state.markReview(segment.Index, Pick{Version: current, NeedsReview: true})
				logging.WarnWithContext(logging.WithContext(segCtx, l.logger),
					"segment pool empty, keeping previous pick", "empty_pool",
					logging.Int(logging.FieldSegment, segment.Index),
					logging.Int(logging.FieldVersion, current))
				if take, ok := segment.Take(current); ok {
					prev = &take
				}
				continue
			}
			if errors.Is(err, selection.ErrNoCandidates) {
				return nil, services.Wrap(services.ErrValidation, "rebuild", "select",
					fmt.Sprintf("segment %d has no candidates", segment.Index), err)
			}
			return nil, err
		}

		var meta Pick
		switch {
		case !trace.Unresolvable:
			meta = Pick{Version: trace.Pick.Version, NeedsReview: trace.NeedsReview}
		case trace.Fallback != nil:
			meta = Pick{Version: trace.Fallback.Version, Unresolvable: true, NeedsReview: true}
		default:
			return nil, services.Wrap(services.ErrValidation, "rebuild", "select",
				fmt.Sprintf("segment %d is unresolvable with no fallback", segment.Index), nil)
		}
		state.setPick(segment.Index, meta)
		logs = append(logs, trace)

		if take, ok := segment.Take(meta.Version); ok {
			prev = &take
		}
	}
	return logs, nil
}

func (l *Loop) finish(ctx context.Context, logger *slog.Logger, outcome *Outcome, status session.Status) (Outcome, error) {
	outcome.Status = status
	if err := l.store.Finish(ctx, outcome.SessionID, status); err != nil {
		return *outcome, fmt.Errorf("finish session: %w", err)
	}
	logger.Info("rebuild run finished",
		logging.Args(
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("status", string(status)),
			logging.Int("rounds", len(outcome.Rounds)),
			logging.Int("best_round", outcome.BestRound),
			logging.Int("review_segments", len(outcome.Review)),
		)...)
	if len(outcome.Review) > 0 {
		l.publish(ctx, logger, notifications.EventReviewNeeded, notifications.Payload{
			"production": outcome.Production,
			"segments":   len(outcome.Review),
		})
	}
	l.publish(ctx, logger, notifications.EventRunFinished, notifications.Payload{
		"production": outcome.Production,
		"status":     string(status),
		"rounds":     len(outcome.Rounds),
		"bestRound":  outcome.BestRound,
	})
	return *outcome, nil
}

// fail marks the session failed and surfaces the cause. Persistence uses a
// detached context so a canceled run still records why it stopped.
func (l *Loop) fail(ctx context.Context, logger *slog.Logger, outcome *Outcome, cause error) (Outcome, error) {
	outcome.Status = session.StatusFailed
	persistCtx := context.WithoutCancel(ctx)
	if err := l.store.Fail(persistCtx, outcome.SessionID, cause.Error()); err != nil {
		logger.Error("failed to persist session failure", logging.Args(logging.Error(err))...)
	}
	logging.ErrorWithContext(logger, "rebuild run failed", "run_failed", logging.Error(cause))
	l.publish(persistCtx, logger, notifications.EventError, notifications.Payload{
		"context": "rebuild",
		"error":   cause,
	})
	return *outcome, cause
}

func (l *Loop) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("notification skipped during shutdown",
				logging.Args(logging.String("event", string(event)))...)
			return
		}
		logger.Warn("notification failed",
			logging.Args(logging.String("event", string(event)), logging.Error(err))...)
	}
}

// seedRechunk resolves the caller-supplied rechunk set, defaulting to every
// segment, deduplicating, and rejecting unknown indexes.
func seedRechunk(prod *production.Manifest, seed []int) ([]int, error) {
	if len(seed) == 0 {
		return prod.SegmentIndexes(), nil
	}
	sorted := append([]int(nil), seed...)
	sort.Ints(sorted)
	out := sorted[:0]
	for i, idx := range sorted {
		if i > 0 && idx == sorted[i-1] {
			continue
		}
		if _, ok := prod.Segment(idx); !ok {
			return nil, services.Wrap(services.ErrValidation, "rebuild", "run",
				fmt.Sprintf("rechunk segment %d is not in the production", idx), nil)
		}
		out = append(out, idx)
	}
	return out, nil
}

// runState carries the mutable loop state across rounds.
type runState struct {
	workDir          string
	picks            map[int]int
	meta             map[int]Pick
	review           map[int]struct{}
	rejected         map[int][]int
	bestPasses       int
	bestFlagged      int
	bestRound        int
	sinceImprovement int
}

func newRunState(prod *production.Manifest, starting map[int]int) (*runState, error) {
	state := &runState{
		picks:      make(map[int]int, len(prod.Segments)),
		meta:       make(map[int]Pick, len(prod.Segments)),
		review:     make(map[int]struct{}),
		rejected:   make(map[int][]int),
		bestPasses: -1,
	}
	indexes := make([]int, 0, len(starting))
	for idx := range starting {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		segment, ok := prod.Segment(idx)
		if !ok {
			continue
		}
		version := starting[idx]
		if _, ok := segment.Take(version); !ok {
			return nil, services.Wrap(services.ErrValidation, "rebuild", "run",
				fmt.Sprintf("starting pick v%02d is not a take of segment %d", version, idx), nil)
		}
		state.setPick(idx, Pick{Version: version})
	}
	return state, nil
}

func (s *runState) setPick(segment int, meta Pick) {
	s.picks[segment] = meta.Version
	s.meta[segment] = meta
	if meta.NeedsReview {
		s.review[segment] = struct{}{}
	} else {
		delete(s.review, segment)
	}
}

// markReview flags a segment without changing its pick.
func (s *runState) markReview(segment int, meta Pick) {
	s.meta[segment] = meta
	s.review[segment] = struct{}{}
}

func (s *runState) reject(segment, version int) {
	for _, v := range s.rejected[segment] {
		if v == version {
			return
		}
	}
	s.rejected[segment] = append(s.rejected[segment], version)
}

func (s *runState) reviewList() []int {
	out := make([]int, 0, len(s.review))
	for idx := range s.review {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (s *runState) snapshotPicks() map[int]int {
	out := make(map[int]int, len(s.picks))
	for segment, version := range s.picks {
		out[segment] = version
	}
	return out
}

func (s *runState) snapshotMeta() map[int]Pick {
	out := make(map[int]Pick, len(s.meta))
	for segment, meta := range s.meta {
		out[segment] = meta
	}
	return out
}

func (s *runState) snapshotRejected() map[int][]int {
	if len(s.rejected) == 0 {
		return nil
	}
	out := make(map[int][]int, len(s.rejected))
	for segment, versions := range s.rejected {
		out[segment] = append([]int(nil), versions...)
	}
	return out
}
