package rebuild_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"

	"retake/internal/assembly"
	"retake/internal/config"
	"retake/internal/logging"
	"retake/internal/notifications"
	"retake/internal/production"
	"retake/internal/rebuild"
	"retake/internal/scanner"
	"retake/internal/selection"
	"retake/internal/services"
	"retake/internal/session"
	"retake/internal/testsupport"
)

func take(version int, quality float64) production.Candidate {
	tail := 300.0
	return production.Candidate{
		Version:       version,
		AudioPath:     fmt.Sprintf("v%02d.wav", version),
		Duration:      2.0,
		EchoRisk:      0.001,
		HissDB:        -60,
		Flatness:      0.3,
		Contrast:      0.5,
		Quality:       quality,
		TailSilenceMs: &tail,
	}
}

func testManifest(segments int) *production.Manifest {
	m := &production.Manifest{Production: "night-shift"}
	for i := 0; i < segments; i++ {
		m.Segments = append(m.Segments, production.Segment{
			Index:     i,
			Text:      "Hold the line until the bridge clears.",
			CharCount: 20,
			Takes:     []production.Candidate{take(0, 0.9), take(1, 0.5)},
		})
	}
	return m
}

func passingGates() []assembly.GateResult {
	return []assembly.GateResult{
		{Name: assembly.GateClipping, Passed: true, Automated: true},
		{Name: assembly.GatePeakHeadroom, Passed: true, Automated: true},
		{Name: assembly.GateSegmentAlignment, Passed: true, Automated: true},
		{Name: assembly.GateDuration, Passed: true, Automated: false},
		{Name: assembly.GateAmbience, Passed: true, Automated: false},
	}
}

func gatesFailing(names ...string) []assembly.GateResult {
	gates := passingGates()
	for i := range gates {
		for _, name := range names {
			if gates[i].Name == name {
				gates[i].Passed = false
			}
		}
	}
	return gates
}

type stubAssembler struct {
	t         *testing.T
	gates     []assembly.GateResult
	failOn    int
	failErr   error
	calls     int
	picksSeen []map[int]int
}

func (a *stubAssembler) Assemble(_ context.Context, prod *production.Manifest, picks map[int]int, outPath string) (assembly.BuildReport, error) {
	a.calls++
	snapshot := make(map[int]int, len(picks))
	for segment, version := range picks {
		snapshot[segment] = version
	}
	a.picksSeen = append(a.picksSeen, snapshot)
	if a.failOn != 0 && a.calls == a.failOn {
		return assembly.BuildReport{}, a.failErr
	}
	if err := os.WriteFile(outPath, []byte(fmt.Sprintf("track %d", a.calls)), 0o644); err != nil {
		a.t.Fatalf("write stub track: %v", err)
	}
	spans := make([]assembly.SegmentSpan, 0, len(prod.Segments))
	for i, segment := range prod.Segments {
		start := float64(i)
		spans = append(spans, assembly.SegmentSpan{Segment: segment.Index, Start: start, End: start + 0.5})
	}
	return assembly.BuildReport{
		TrackPath: outPath,
		Manifest:  assembly.Manifest{Duration: float64(len(prod.Segments)), Spans: spans},
		Gates:     a.gates,
	}, nil
}

type stubScanner struct {
	reports []scanner.Report
	failOn  int
	failErr error
	calls   int
}

func (s *stubScanner) Scan(context.Context, string, assembly.Manifest, []production.Segment) (scanner.Report, error) {
	s.calls++
	if s.failOn != 0 && s.calls == s.failOn {
		return scanner.Report{}, s.failErr
	}
	if s.calls <= len(s.reports) {
		return s.reports[s.calls-1], nil
	}
	return scanner.Report{}, nil
}

type loopNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (n *loopNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
	return nil
}

func (n *loopNotifier) saw(event notifications.Event) bool {
	for _, seen := range n.events {
		if seen == event {
			return true
		}
	}
	return false
}

func newTestLoop(t *testing.T, cfg *config.Config, asm assembly.Assembler, scan scanner.Scanner, notifier notifications.Service) (*rebuild.Loop, *session.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	engine := selection.NewEngine(selection.TunablesFromConfig(cfg), nil, logging.NewNop())
	return rebuild.NewLoop(cfg, engine, asm, scan, store, notifier, logging.NewNop()), store
}

func TestRunPassesOnCleanFirstRound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	asm := &stubAssembler{t: t, gates: passingGates()}
	scan := &stubScanner{}
	notifier := &loopNotifier{}
	loop, store := newTestLoop(t, cfg, asm, scan, notifier)

	ctx := context.Background()
	outcome, err := loop.Run(ctx, testManifest(3), nil, rebuild.RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != session.StatusPassing {
		t.Fatalf("expected passing, got %s", outcome.Status)
	}
	if len(outcome.Rounds) != 1 || outcome.BestRound != 1 {
		t.Fatalf("expected one best round, got rounds=%d best=%d", len(outcome.Rounds), outcome.BestRound)
	}
	if !outcome.Rounds[0].Passing() {
		t.Fatal("expected round 1 to pass")
	}
	wantPicks := map[int]rebuild.Pick{0: {Version: 0}, 1: {Version: 0}, 2: {Version: 0}}
	if !reflect.DeepEqual(outcome.Picks, wantPicks) {
		t.Fatalf("unexpected picks: %#v", outcome.Picks)
	}
	if len(outcome.Review) != 0 {
		t.Fatalf("expected no review segments, got %v", outcome.Review)
	}
	if !strings.HasPrefix(outcome.Rounds[0].TrackPath, cfg.Paths.StagingDir) {
		t.Fatalf("track assembled outside staging: %s", outcome.Rounds[0].TrackPath)
	}
	if _, err := os.Stat(outcome.Rounds[0].TrackPath); err != nil {
		t.Fatalf("round track missing: %v", err)
	}

	sess, err := store.GetByID(ctx, outcome.SessionID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if sess.Status != session.StatusPassing || sess.BestRound != 1 {
		t.Fatalf("session not finished passing: %+v", sess)
	}
	artifact, err := store.BestArtifact(ctx, outcome.SessionID)
	if err != nil {
		t.Fatalf("BestArtifact failed: %v", err)
	}
	if artifact == nil || artifact.Round != 1 {
		t.Fatalf("expected promoted round 1 artifact, got %+v", artifact)
	}
	logs, err := store.SelectionLogs(ctx, outcome.SessionID, 1)
	if err != nil {
		t.Fatalf("SelectionLogs failed: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected a selection log per segment, got %d", len(logs))
	}

	for _, event := range []notifications.Event{
		notifications.EventRunStarted,
		notifications.EventRoundCompleted,
		notifications.EventRunFinished,
	} {
		if !notifier.saw(event) {
			t.Fatalf("missing notification %s (saw %v)", event, notifier.events)
		}
	}
	if notifier.saw(notifications.EventReviewNeeded) {
		t.Fatal("unexpected review notification for a clean run")
	}
}

func TestRechunkNarrowsToScannerFlags(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	asm := &stubAssembler{t: t, gates: passingGates()}
	scan := &stubScanner{reports: []scanner.Report{
		{EchoSegments: []int{0, 2}, DurationSegments: []int{1}},
		{EchoSegments: []int{2}},
	}}
	loop, store := newTestLoop(t, cfg, asm, scan, &loopNotifier{})

	ctx := context.Background()
	outcome, err := loop.Run(ctx, testManifest(4), nil, rebuild.RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != session.StatusPassing {
		t.Fatalf("expected passing, got %s", outcome.Status)
	}
	if len(outcome.Rounds) != 3 {
		t.Fatalf("expected three rounds, got %d", len(outcome.Rounds))
	}
	if got := outcome.Rounds[0].Flagged; !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Fatalf("round 1 flags = %v", got)
	}
	if got := outcome.Rounds[1].Rechunk; !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Fatalf("round 2 rechunk = %v, want the round 1 flags", got)
	}
	if got := outcome.Rounds[2].Rechunk; !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("round 3 rechunk = %v, want only the still-failing segment", got)
	}

	for round, wantSegments := range map[int][]int{2: {0, 1, 2}, 3: {2}} {
		logs, err := store.SelectionLogs(ctx, outcome.SessionID, round)
		if err != nil {
			t.Fatalf("SelectionLogs round %d failed: %v", round, err)
		}
		got := make([]int, 0, len(logs))
		for _, entry := range logs {
			got = append(got, entry.Segment)
		}
		if !reflect.DeepEqual(got, wantSegments) {
			t.Fatalf("round %d selected %v, want %v", round, got, wantSegments)
		}
	}

	wantRejected := map[int][]int{0: {0}, 1: {0}, 2: {0}}
	if !reflect.DeepEqual(outcome.Rejected, wantRejected) {
		t.Fatalf("unexpected rejected map: %#v", outcome.Rejected)
	}
	stored, err := store.RejectedVersions(ctx, outcome.SessionID)
	if err != nil {
		t.Fatalf("RejectedVersions failed: %v", err)
	}
	if !reflect.DeepEqual(stored, wantRejected) {
		t.Fatalf("stored rejected map: %#v", stored)
	}

	// Fewer flagged segments at equal pass counts advances the best pointer.
	if outcome.BestRound != 3 {
		t.Fatalf("expected best round 3, got %d", outcome.BestRound)
	}
	for i := 1; i < len(outcome.Rounds); i++ {
		if outcome.Rounds[i].GatePasses < outcome.Rounds[i-1].GatePasses {
			t.Fatalf("gate passes regressed at round %d", i+1)
		}
	}
}

func TestStallsAfterConsecutiveNonImprovingRounds(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRebuild(func(r *config.Rebuild) {
		r.MaxRounds = 10
		r.StallAfter = 5
	}))
	asm := &stubAssembler{t: t, gates: gatesFailing(assembly.GateClipping)}
	scan := &stubScanner{reports: []scanner.Report{
		{EchoSegments: []int{1}}, {EchoSegments: []int{1}}, {EchoSegments: []int{1}},
		{EchoSegments: []int{1}}, {EchoSegments: []int{1}}, {EchoSegments: []int{1}},
	}}
	loop, store := newTestLoop(t, cfg, asm, scan, &loopNotifier{})

	ctx := context.Background()
	outcome, err := loop.Run(ctx, testManifest(2), nil, rebuild.RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != session.StatusStalled {
		t.Fatalf("expected stalled, got %s", outcome.Status)
	}
	if len(outcome.Rounds) != 6 {
		t.Fatalf("expected round 1 plus five non-improving rounds, got %d", len(outcome.Rounds))
	}
	if outcome.BestRound != 1 {
		t.Fatalf("expected best round to stay at 1, got %d", outcome.BestRound)
	}
	if outcome.Rounds[0].Improved != true || outcome.Rounds[5].Improved != false {
		t.Fatal("improvement flags wrong")
	}
	sess, err := store.GetByID(ctx, outcome.SessionID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if sess.Status != session.StatusStalled {
		t.Fatalf("session status = %s", sess.Status)
	}
}

func TestExhaustsAtRoundCapBeforeStallCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	asm := &stubAssembler{t: t, gates: gatesFailing(assembly.GateClipping)}
	scan := &stubScanner{reports: []scanner.Report{
		{EchoSegments: []int{0}}, {EchoSegments: []int{0}}, {EchoSegments: []int{0}},
	}}
	loop, _ := newTestLoop(t, cfg, asm, scan, &loopNotifier{})

	outcome, err := loop.Run(context.Background(), testManifest(2), nil, rebuild.RunOptions{
		MaxRounds:  3,
		StallAfter: 2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != session.StatusExhausted {
		t.Fatalf("expected exhausted at the cap, got %s", outcome.Status)
	}
	if len(outcome.Rounds) != 3 {
		t.Fatalf("expected exactly three rounds, got %d", len(outcome.Rounds))
	}
}

func TestAssemblyFailureFailsSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failure := services.Wrap(services.ErrMedia, "assembly", "assemble", "read take seg001/v00", errors.New("corrupt wav"))
	asm := &stubAssembler{t: t, gates: passingGates(), failOn: 2, failErr: failure}
	scan := &stubScanner{reports: []scanner.Report{{EchoSegments: []int{0}}}}
	notifier := &loopNotifier{}
	loop, store := newTestLoop(t, cfg, asm, scan, notifier)

	ctx := context.Background()
	outcome, err := loop.Run(ctx, testManifest(2), nil, rebuild.RunOptions{})
	if err == nil {
		t.Fatal("expected assembly failure to surface")
	}
	if !errors.Is(err, services.ErrMedia) {
		t.Fatalf("expected media error, got %v", err)
	}
	if outcome.Status != session.StatusFailed {
		t.Fatalf("expected failed outcome, got %s", outcome.Status)
	}
	if len(outcome.Rounds) != 1 {
		t.Fatalf("aborted round must not be recorded, got %d rounds", len(outcome.Rounds))
	}

	sess, getErr := store.GetByID(ctx, outcome.SessionID)
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if sess.Status != session.StatusFailed || sess.ErrorMessage == "" {
		t.Fatalf("session not failed with message: %+v", sess)
	}
	if sess.BestRound != 1 {
		t.Fatalf("round 1 promotion should survive the abort, got best %d", sess.BestRound)
	}
	if !notifier.saw(notifications.EventError) {
		t.Fatalf("expected error notification, saw %v", notifier.events)
	}
}

func TestScannerFailureNeverMeansNoDefects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failure := services.Wrap(services.ErrMedia, "scanner", "scan", "read track", errors.New("truncated"))
	asm := &stubAssembler{t: t, gates: passingGates()}
	scan := &stubScanner{failOn: 1, failErr: failure}
	loop, store := newTestLoop(t, cfg, asm, scan, &loopNotifier{})

	ctx := context.Background()
	outcome, err := loop.Run(ctx, testManifest(2), nil, rebuild.RunOptions{})
	if err == nil {
		t.Fatal("expected scanner failure to surface")
	}
	if outcome.Status != session.StatusFailed {
		t.Fatalf("expected failed outcome, got %s", outcome.Status)
	}
	if len(outcome.Rounds) != 0 {
		t.Fatalf("no round may complete on scanner failure, got %d", len(outcome.Rounds))
	}
	artifact, artErr := store.BestArtifact(ctx, outcome.SessionID)
	if artErr != nil {
		t.Fatalf("BestArtifact failed: %v", artErr)
	}
	if artifact != nil {
		t.Fatalf("nothing may be promoted, got %+v", artifact)
	}
}

func TestUnresolvableSegmentAssemblesFallbackAndFlagsReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manifest := testManifest(2)
	blocked := []production.Candidate{take(0, 0.9), take(1, 0.5)}
	for i := range blocked {
		blocked[i].Filtered = true
		blocked[i].FilterReason = "over_generation"
	}
	blocked[1].Duration = 2.2
	manifest.Segments[1].Takes = blocked

	asm := &stubAssembler{t: t, gates: passingGates()}
	notifier := &loopNotifier{}
	loop, _ := newTestLoop(t, cfg, asm, &stubScanner{}, notifier)

	outcome, err := loop.Run(context.Background(), manifest, nil, rebuild.RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != session.StatusPassing {
		t.Fatalf("expected passing, got %s", outcome.Status)
	}

	pick, ok := outcome.Picks[1]
	if !ok {
		t.Fatal("segment 1 missing from picks")
	}
	if !pick.Unresolvable || !pick.NeedsReview {
		t.Fatalf("expected unresolvable review pick, got %+v", pick)
	}
	if pick.Version != 1 {
		t.Fatalf("least-bad fallback should prefer the longer take, got v%02d", pick.Version)
	}
	if asm.picksSeen[0][1] != 1 {
		t.Fatalf("fallback not assembled: %v", asm.picksSeen[0])
	}
	if !reflect.DeepEqual(outcome.Review, []int{1}) {
		t.Fatalf("review set = %v", outcome.Review)
	}
	if !notifier.saw(notifications.EventReviewNeeded) {
		t.Fatalf("expected review notification, saw %v", notifier.events)
	}
}

func TestEmptyPoolWithoutPriorPickAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manifest := testManifest(2)
	manifest.Segments[1].Takes = nil

	loop, store := newTestLoop(t, cfg, &stubAssembler{t: t, gates: passingGates()}, &stubScanner{}, &loopNotifier{})

	ctx := context.Background()
	outcome, err := loop.Run(ctx, manifest, nil, rebuild.RunOptions{})
	if err == nil {
		t.Fatal("expected empty pool to abort the run")
	}
	if !errors.Is(err, selection.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	sess, getErr := store.GetByID(ctx, outcome.SessionID)
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if sess.Status != session.StatusFailed {
		t.Fatalf("session status = %s", sess.Status)
	}
}

type flakySelector struct {
	engine  rebuild.Selector
	segment int
	round   int
}

func (f *flakySelector) Select(ctx context.Context, req selection.Request) (selection.Log, error) {
	if req.Segment.Index == f.segment && req.Round == f.round {
		return selection.Log{Segment: req.Segment.Index, Round: req.Round},
			fmt.Errorf("%w: segment %d", selection.ErrNoCandidates, req.Segment.Index)
	}
	return f.engine.Select(ctx, req)
}

func TestEmptyPoolKeepsPriorPickAndFlagsReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := selection.NewEngine(selection.TunablesFromConfig(cfg), nil, logging.NewNop())
	selector := &flakySelector{engine: engine, segment: 1, round: 2}
	asm := &stubAssembler{t: t, gates: passingGates()}
	scan := &stubScanner{reports: []scanner.Report{{EchoSegments: []int{1}}}}
	loop := rebuild.NewLoop(cfg, selector, asm, scan, store, &loopNotifier{}, logging.NewNop())

	ctx := context.Background()
	outcome, err := loop.Run(ctx, testManifest(2), nil, rebuild.RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != session.StatusPassing {
		t.Fatalf("expected passing, got %s", outcome.Status)
	}
	if len(outcome.Rounds) != 2 {
		t.Fatalf("expected two rounds, got %d", len(outcome.Rounds))
	}

	pick := outcome.Picks[1]
	if pick.Version != 0 || !pick.NeedsReview || pick.Unresolvable {
		t.Fatalf("expected frozen review pick v00, got %+v", pick)
	}
	if asm.picksSeen[1][1] != 0 {
		t.Fatalf("round 2 must reuse the round 1 pick: %v", asm.picksSeen[1])
	}
	if !reflect.DeepEqual(outcome.Review, []int{1}) {
		t.Fatalf("review set = %v", outcome.Review)
	}
	logs, logErr := store.SelectionLogs(ctx, outcome.SessionID, 2)
	if logErr != nil {
		t.Fatalf("SelectionLogs failed: %v", logErr)
	}
	if len(logs) != 0 {
		t.Fatalf("a kept pick records no selection, got %d logs", len(logs))
	}
	// Equal passes with fewer flagged segments still counts as improvement.
	if outcome.BestRound != 2 {
		t.Fatalf("expected round 2 promotion, got %d", outcome.BestRound)
	}
}

func TestMaxSegmentTruncatesRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	asm := &stubAssembler{t: t, gates: passingGates()}
	loop, _ := newTestLoop(t, cfg, asm, &stubScanner{}, &loopNotifier{})

	outcome, err := loop.Run(context.Background(), testManifest(4), nil, rebuild.RunOptions{MaxSegment: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(asm.picksSeen[0]) != 2 {
		t.Fatalf("expected two assembled segments, got %v", asm.picksSeen[0])
	}
	if len(outcome.Picks) != 2 {
		t.Fatalf("expected picks for segments 0 and 1, got %#v", outcome.Picks)
	}
	for segment := range outcome.Picks {
		if segment > 1 {
			t.Fatalf("segment %d selected beyond the bound", segment)
		}
	}
}

func TestRunValidatesInputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	loop, store := newTestLoop(t, cfg, &stubAssembler{t: t, gates: passingGates()}, &stubScanner{}, &loopNotifier{})
	ctx := context.Background()

	if _, err := loop.Run(ctx, nil, nil, rebuild.RunOptions{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("nil manifest: %v", err)
	}
	if _, err := loop.Run(ctx, testManifest(2), nil, rebuild.RunOptions{Rechunk: []int{7}}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown rechunk segment: %v", err)
	}
	if _, err := loop.Run(ctx, testManifest(2), nil, rebuild.RunOptions{Picks: map[int]int{0: 99}}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown starting pick: %v", err)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("validation failures must not create sessions, got %d", len(sessions))
	}
}

// cancelNotifier cancels the run context once a chosen event is published.
// Round completion is the last act of a round, so the cancellation lands on
// the between-rounds check.
type cancelNotifier struct {
	loopNotifier
	on     notifications.Event
	cancel context.CancelFunc
}

func (n *cancelNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	if event == n.on {
		n.cancel()
	}
	return n.loopNotifier.Publish(ctx, event, payload)
}

func TestCancellationFailsBetweenRounds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	asm := &stubAssembler{t: t, gates: passingGates()}
	scan := &stubScanner{reports: []scanner.Report{{EchoSegments: []int{0}}}}
	notifier := &cancelNotifier{on: notifications.EventRoundCompleted, cancel: cancel}
	loop, store := newTestLoop(t, cfg, asm, scan, notifier)

	outcome, err := loop.Run(ctx, testManifest(2), nil, rebuild.RunOptions{})
	if err == nil {
		t.Fatal("expected cancellation to abort the run")
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if outcome.Status != session.StatusFailed {
		t.Fatalf("expected failed outcome, got %s", outcome.Status)
	}
	if len(outcome.Rounds) != 1 {
		t.Fatalf("round 1 completed before cancellation, got %d rounds", len(outcome.Rounds))
	}

	sess, getErr := store.GetByID(context.Background(), outcome.SessionID)
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if sess.Status != session.StatusFailed {
		t.Fatalf("canceled run must persist failure, got %s", sess.Status)
	}
}

func TestStartingPicksNarrowRoundOne(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	asm := &stubAssembler{t: t, gates: passingGates()}
	scan := &stubScanner{}
	loop, store := newTestLoop(t, cfg, asm, scan, &loopNotifier{})

	ctx := context.Background()
	outcome, err := loop.Run(ctx, testManifest(3), nil, rebuild.RunOptions{
		Picks:   map[int]int{0: 1, 1: 1, 2: 1},
		Rechunk: []int{1},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != session.StatusPassing {
		t.Fatalf("expected passing, got %s", outcome.Status)
	}

	want := map[int]int{0: 1, 1: 0, 2: 1}
	if !reflect.DeepEqual(asm.picksSeen[0], want) {
		t.Fatalf("assembled picks = %v, want %v", asm.picksSeen[0], want)
	}
	logs, logErr := store.SelectionLogs(ctx, outcome.SessionID, 1)
	if logErr != nil {
		t.Fatalf("SelectionLogs failed: %v", logErr)
	}
	if len(logs) != 1 || logs[0].Segment != 1 {
		t.Fatalf("expected round 1 to select only segment 1, got %+v", logs)
	}
}
