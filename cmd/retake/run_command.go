package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"retake/internal/assembly"
	"retake/internal/logging"
	"retake/internal/notifications"
	"retake/internal/preflight"
	"retake/internal/production"
	"retake/internal/rebuild"
	"retake/internal/scanner"
	"retake/internal/selection"
	"retake/internal/session"
	"retake/internal/verdict"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		rounds     int
		stallAfter int
		segments   []int
		maxSegment int
		resume     bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "run <production>",
		Short: "Rebuild a production track until it passes or stops improving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := rebuild.RunOptions{
				Rechunk:    segments,
				MaxRounds:  rounds,
				StallAfter: stallAfter,
				MaxSegment: maxSegment,
			}
			return runRebuild(cmd, ctx, strings.TrimSpace(args[0]), opts, resume, jsonOut)
		},
	}

	cmd.Flags().IntVar(&rounds, "rounds", 0, "Maximum rebuild rounds (0 uses the configured cap)")
	cmd.Flags().IntVar(&stallAfter, "stall-after", 0, "Stop after this many non-improving rounds (0 uses the configured cap)")
	cmd.Flags().IntSliceVar(&segments, "segments", nil, "Segment indexes to rechunk in round one (default all)")
	cmd.Flags().IntVar(&maxSegment, "max-segment", 0, "Limit the run to segments at or below this index")
	cmd.Flags().BoolVar(&resume, "resume", false, "Seed picks from the production's last recorded round")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the run outcome as JSON")

	return cmd
}

func runRebuild(cmd *cobra.Command, ctx *commandContext, name string, opts rebuild.RunOptions, resume, jsonOut bool) error {
	if name == "" {
		return errors.New("production name is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	manifestPath := cfg.ManifestPath(name)
	results := preflight.RunAll(signalCtx, cfg)
	results = append(results, preflight.CheckManifest(name, manifestPath))
	var failures []string
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
			failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
		if !jsonOut {
			fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock, err := session.AcquireRunLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Release()

	prod, err := production.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	prod.BackfillTailSilence(cfg.Selection.TailWindowMs, cfg.Selection.SilenceFloorDBFS, logger)

	history, err := verdict.LoadDir(cfg.ReviewsDir(name))
	if err != nil {
		return err
	}

	store, err := session.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if resume && len(opts.Picks) == 0 {
		picks, err := latestPicks(signalCtx, store, name)
		if err != nil {
			return err
		}
		opts.Picks = picks
	}

	engine := selection.NewEngine(selection.TunablesFromConfig(cfg), nil, logger)
	loop := rebuild.NewLoop(cfg, engine,
		assembly.NewWaveAssembler(cfg, logger),
		scanner.NewSpikeScanner(cfg, logger),
		store, notifications.NewService(cfg), logger)

	outcome, runErr := loop.Run(signalCtx, prod, history, opts)
	if outcome.SessionID == "" {
		// Nothing ran; the error says why.
		return runErr
	}
	if jsonOut {
		if err := writeJSON(cmd, outcome); err != nil {
			return err
		}
	} else {
		renderOutcome(cmd, outcome, colorize)
	}
	return runErr
}

// latestPicks returns the last recorded round's picks for the production's
// most recent session, or nil when nothing has run yet.
func latestPicks(ctx context.Context, store *session.Store, production string) (map[int]int, error) {
	sess, err := store.Latest(ctx, production)
	if err != nil {
		return nil, fmt.Errorf("load latest session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	round, err := store.LastRound(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load last round: %w", err)
	}
	if round == nil {
		return nil, nil
	}
	return round.Picks, nil
}

func renderOutcome(cmd *cobra.Command, outcome rebuild.Outcome, colorize bool) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader(fmt.Sprintf("Rebuild %s", outcome.Production), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", sessionStatusKind(outcome.Status), string(outcome.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("Session", statusInfo, outcome.SessionID, colorize))
	fmt.Fprintln(out, renderStatusLine("Rounds", statusInfo, fmt.Sprintf("%d", len(outcome.Rounds)), colorize))
	if outcome.BestRound > 0 {
		fmt.Fprintln(out, renderStatusLine("Best round", statusInfo, fmt.Sprintf("%d", outcome.BestRound), colorize))
	}

	if len(outcome.Rounds) > 0 {
		rows := make([][]string, 0, len(outcome.Rounds))
		for _, round := range outcome.Rounds {
			rows = append(rows, []string{
				fmt.Sprintf("%d", round.Number),
				formatInts(round.Rechunk),
				fmt.Sprintf("%d", round.GatePasses),
				formatStrings(round.FailedGates),
				formatInts(round.Flagged),
				yesNo(round.Improved),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Round", "Rechunk", "Gate Passes", "Failed Gates", "Flagged", "Improved"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
		))
	}

	if len(outcome.Flagged) > 0 {
		fmt.Fprintln(out, renderStatusLine("Still flagged", statusWarn, formatInts(outcome.Flagged), colorize))
	}
	if len(outcome.Review) > 0 {
		fmt.Fprintln(out, renderStatusLine("Needs review", statusWarn, formatInts(outcome.Review), colorize))
	}
}
