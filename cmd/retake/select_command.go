package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"retake/internal/failprofile"
	"retake/internal/logging"
	"retake/internal/production"
	"retake/internal/scoring"
	"retake/internal/selection"
	"retake/internal/verdict"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	var (
		round   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "select <production> <segment>",
		Short: "Trace one segment's selection without assembling anything",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			segment, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("invalid segment index %q", args[1])
			}
			return runSelect(cmd, ctx, strings.TrimSpace(args[0]), segment, round, jsonOut)
		},
	}

	cmd.Flags().IntVar(&round, "round", 1, "Round number recorded in the selection log")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the selection log as JSON")

	return cmd
}

func runSelect(cmd *cobra.Command, ctx *commandContext, name string, segmentIndex, round int, jsonOut bool) error {
	if name == "" {
		return errors.New("production name is required")
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	prod, err := production.LoadManifest(cfg.ManifestPath(name))
	if err != nil {
		return err
	}
	prod.BackfillTailSilence(cfg.Selection.TailWindowMs, cfg.Selection.SilenceFloorDBFS, logging.NewNop())

	var segment *production.Segment
	for i := range prod.Segments {
		if prod.Segments[i].Index == segmentIndex {
			segment = &prod.Segments[i]
			break
		}
	}
	if segment == nil {
		return fmt.Errorf("production %q has no segment %d", name, segmentIndex)
	}

	history, err := verdict.LoadDir(cfg.ReviewsDir(name))
	if err != nil {
		return err
	}
	hist := history.Segment(segmentIndex)

	engine := selection.NewEngine(selection.TunablesFromConfig(cfg), nil, logging.NewNop())
	trace, err := engine.Select(cmd.Context(), selection.Request{
		Segment:  *segment,
		History:  hist,
		Profiles: failprofile.Build(segment.Takes, hist, scoring.AnalyzerScorer{}),
		Round:    round,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(cmd, trace)
	}
	renderSelection(cmd, trace)
	return nil
}

func renderSelection(cmd *cobra.Command, trace selection.Log) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader(fmt.Sprintf("Segment %d", trace.Segment), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Pool size", statusInfo, fmt.Sprintf("%d", trace.PoolSize), colorize))
	fmt.Fprintln(out, renderStatusLine("Median duration", statusInfo, fmt.Sprintf("%.2fs", trace.MedianDuration), colorize))

	if len(trace.Eliminated) > 0 {
		rows := make([][]string, 0, len(trace.Eliminated))
		for _, elim := range trace.Eliminated {
			rows = append(rows, []string{
				fmt.Sprintf("v%02d", elim.Version),
				fmt.Sprintf("%d", elim.Stage),
				formatStrings(elim.Reasons),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Eliminated", "Stage", "Reasons"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft},
		))
	}

	if len(trace.Survivors) > 0 {
		rows := make([][]string, 0, len(trace.Survivors))
		for _, ranked := range trace.Survivors {
			verified := ""
			if ranked.PassVerified {
				verified = "verified"
			}
			rows = append(rows, []string{
				fmt.Sprintf("v%02d", ranked.Version),
				fmt.Sprintf("%.3f", ranked.Score),
				verified,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Survivor", "Score", ""},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft},
		))
	}

	switch {
	case trace.Pick != nil:
		fmt.Fprintln(out, renderStatusLine("Pick", statusOK, fmt.Sprintf("v%02d (score %.3f)", trace.Pick.Version, trace.Pick.Score), colorize))
		fmt.Fprintln(out, renderStatusLine("Confidence", confidenceKind(trace.Confidence), string(trace.Confidence), colorize))
	case trace.Fallback != nil:
		fmt.Fprintln(out, renderStatusLine("Unresolvable", statusWarn,
			fmt.Sprintf("fallback v%02d (%d reasons, %.2fs)", trace.Fallback.Version, trace.Fallback.Reasons, trace.Fallback.Duration), colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Unresolvable", statusError, "no fallback available", colorize))
	}
	if trace.NeedsReview {
		fmt.Fprintln(out, renderStatusLine("Needs review", statusWarn, "", colorize))
	}
}

func confidenceKind(confidence selection.Confidence) statusKind {
	switch confidence {
	case selection.ConfidenceHigh:
		return statusOK
	case selection.ConfidenceMedium:
		return statusInfo
	default:
		return statusWarn
	}
}
