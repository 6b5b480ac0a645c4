package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"retake/internal/assembly"
	"retake/internal/config"
	"retake/internal/logging"
	"retake/internal/production"
	"retake/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		productionName string
		timingPath     string
		jsonOut        bool
	)

	cmd := &cobra.Command{
		Use:   "scan <track.wav>",
		Short: "Scan an assembled track for echo and duration defects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, ctx, strings.TrimSpace(args[0]), productionName, timingPath, jsonOut)
		},
	}

	cmd.Flags().StringVar(&productionName, "production", "", "Production whose segments the track assembles (required)")
	cmd.Flags().StringVar(&timingPath, "timing", "", "Timing manifest path (default <track>.manifest.json)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the scan report as JSON")
	_ = cmd.MarkFlagRequired("production")

	return cmd
}

func runScan(cmd *cobra.Command, ctx *commandContext, trackArg, productionName, timingPath string, jsonOut bool) error {
	if trackArg == "" {
		return errors.New("track path is required")
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	trackPath, err := config.ExpandPath(trackArg)
	if err != nil {
		return err
	}
	if timingPath == "" {
		timingPath = strings.TrimSuffix(trackPath, filepath.Ext(trackPath)) + ".manifest.json"
	} else if timingPath, err = config.ExpandPath(timingPath); err != nil {
		return err
	}

	prod, err := production.LoadManifest(cfg.ManifestPath(productionName))
	if err != nil {
		return err
	}
	timing, err := assembly.LoadManifest(timingPath)
	if err != nil {
		return err
	}

	spike := scanner.NewSpikeScanner(cfg, logging.NewNop())
	report, err := spike.Scan(cmd.Context(), trackPath, timing, prod.Segments)
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(cmd, report)
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	if report.Empty() {
		fmt.Fprintln(out, renderStatusLine("Defects", statusOK, "No defects found", colorize))
		return nil
	}
	if len(report.EchoSegments) > 0 {
		fmt.Fprintln(out, renderStatusLine("Echo", statusWarn, formatInts(report.EchoSegments), colorize))
	}
	if len(report.DurationSegments) > 0 {
		fmt.Fprintln(out, renderStatusLine("Duration", statusWarn, formatInts(report.DurationSegments), colorize))
	}
	return nil
}
