package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"retake/internal/session"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show recorded rebuild sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryDetail(cmd, ctx, strings.TrimSpace(args[0]), jsonOut)
			}
			return runHistoryList(cmd, ctx, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit history as JSON")

	return cmd
}

func runHistoryList(cmd *cobra.Command, ctx *commandContext, jsonOut bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := session.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(cmd, sessions)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		best := "-"
		if sess.BestRound > 0 {
			best = fmt.Sprintf("%d", sess.BestRound)
		}
		rows = append(rows, []string{
			sess.ID,
			sess.Production,
			string(sess.Status),
			best,
			formatTimestamp(sess.StartedAt),
			formatOptionalTimestamp(sess.FinishedAt),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Session", "Production", "Status", "Best", "Started", "Finished"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	return nil
}

type sessionDetail struct {
	Session  *session.Session  `json:"session"`
	Rounds   []*session.Round  `json:"rounds,omitempty"`
	Rejected map[int][]int     `json:"rejected,omitempty"`
	Artifact *session.Artifact `json:"artifact,omitempty"`
}

func runHistoryDetail(cmd *cobra.Command, ctx *commandContext, sessionID string, jsonOut bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := session.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cmdCtx := cmd.Context()
	sess, err := store.GetByID(cmdCtx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %q not found", sessionID)
	}
	rounds, err := store.Rounds(cmdCtx, sessionID)
	if err != nil {
		return err
	}
	rejected, err := store.RejectedVersions(cmdCtx, sessionID)
	if err != nil {
		return err
	}
	artifact, err := store.BestArtifact(cmdCtx, sessionID)
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(cmd, sessionDetail{
			Session:  sess,
			Rounds:   rounds,
			Rejected: rejected,
			Artifact: artifact,
		})
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader(fmt.Sprintf("Session %s", sess.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Production", statusInfo, sess.Production, colorize))
	fmt.Fprintln(out, renderStatusLine("Status", sessionStatusKind(sess.Status), string(sess.Status), colorize))
	if sess.BestRound > 0 {
		fmt.Fprintln(out, renderStatusLine("Best round", statusInfo, fmt.Sprintf("%d", sess.BestRound), colorize))
	}
	if sess.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, sess.ErrorMessage, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Started", statusInfo, formatTimestamp(sess.StartedAt), colorize))
	if sess.FinishedAt != nil {
		fmt.Fprintln(out, renderStatusLine("Finished", statusInfo, formatTimestamp(*sess.FinishedAt), colorize))
	}
	if artifact != nil {
		fmt.Fprintln(out, renderStatusLine("Best track", statusInfo, artifact.TrackPath, colorize))
	}

	if len(rounds) > 0 {
		rows := make([][]string, 0, len(rounds))
		for _, round := range rounds {
			rows = append(rows, []string{
				fmt.Sprintf("%d", round.Number),
				formatPicks(round.Picks),
				fmt.Sprintf("%d", round.GatePasses),
				formatStrings(round.FailedGates),
				formatInts(round.Flagged),
				yesNo(round.Improved),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Round", "Picks", "Gate Passes", "Failed Gates", "Flagged", "Improved"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
		))
	}

	if len(rejected) > 0 {
		segments := make([]int, 0, len(rejected))
		for segment := range rejected {
			segments = append(segments, segment)
		}
		sort.Ints(segments)
		rows := make([][]string, 0, len(segments))
		for _, segment := range segments {
			rows = append(rows, []string{
				fmt.Sprintf("%d", segment),
				formatInts(rejected[segment]),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Segment", "Rejected Versions"},
			rows,
			[]columnAlignment{alignRight, alignLeft},
		))
	}
	return nil
}
