package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateWeights(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateRebuild(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkspaceDir == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.SessionDir == "" {
		return errors.New("paths.session_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateSelection() error {
	sel := c.Selection
	if sel.MinDurationFraction <= 0 || sel.MinDurationFraction >= 1 {
		return errors.New("selection.min_duration_fraction must be between 0 and 1")
	}
	if sel.DurationOutlierRatio <= 0 {
		return errors.New("selection.duration_outlier_ratio must be positive")
	}
	if sel.MaxCharsPerSecond <= 0 {
		return errors.New("selection.max_chars_per_second must be positive")
	}
	if sel.MinCharsPerSecond <= 0 {
		return errors.New("selection.min_chars_per_second must be positive")
	}
	if sel.MinCharsPerSecond >= sel.MaxCharsPerSecond {
		return errors.New("selection.min_chars_per_second must be less than selection.max_chars_per_second")
	}
	if sel.MinTrailingSilenceMs < 0 {
		return errors.New("selection.min_trailing_silence_ms must be >= 0")
	}
	if sel.TailWindowMs <= 0 {
		return errors.New("selection.tail_window_ms must be positive")
	}
	if sel.SilenceFloorDBFS >= 0 {
		return errors.New("selection.silence_floor_dbfs must be negative")
	}
	if sel.EchoRiskCeiling <= 0 {
		return errors.New("selection.echo_risk_ceiling must be positive")
	}
	if sel.ProfileTolerance <= 0 || sel.ProfileTolerance >= 1 {
		return errors.New("selection.profile_tolerance must be between 0 and 1")
	}
	if len(sel.ProfileKeys) == 0 {
		return errors.New("selection.profile_keys must include at least one metric")
	}
	if sel.ConfidenceMargin <= 0 {
		return errors.New("selection.confidence_margin must be positive")
	}
	return nil
}

func (c *Config) validateWeights() error {
	named := map[string]float64{
		"weights.echo":      c.Weights.Echo,
		"weights.flatness":  c.Weights.Flatness,
		"weights.quality":   c.Weights.Quality,
		"weights.tonal":     c.Weights.Tonal,
		"weights.soft_fail": c.Weights.SoftFail,
	}
	for key, value := range named {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	if c.Weights.PassBonus < 0 {
		return errors.New("weights.pass_bonus must be >= 0")
	}
	return nil
}

func (c *Config) validateAssembly() error {
	if c.Assembly.SampleRate < 0 {
		return errors.New("assembly.sample_rate must be >= 0")
	}
	if c.Assembly.GapMs < 0 {
		return errors.New("assembly.gap_ms must be >= 0")
	}
	if c.Assembly.OpeningPadMs < 0 {
		return errors.New("assembly.opening_pad_ms must be >= 0")
	}
	if c.Assembly.ClosingPadMs < 0 {
		return errors.New("assembly.closing_pad_ms must be >= 0")
	}
	if c.Assembly.PeakCeilingDBFS > 0 {
		return errors.New("assembly.peak_ceiling_dbfs must be <= 0")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if c.Scanner.HighPassHz <= 0 {
		return errors.New("scanner.high_pass_hz must be positive")
	}
	if c.Scanner.WindowMs <= 0 {
		return errors.New("scanner.window_ms must be positive")
	}
	if c.Scanner.EnergyRatio <= 1 {
		return errors.New("scanner.energy_ratio must be greater than 1")
	}
	if c.Scanner.PaceSlackSeconds < 0 {
		return errors.New("scanner.pace_slack_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateRebuild() error {
	if c.Rebuild.MaxRounds < 1 {
		return errors.New("rebuild.max_rounds must be >= 1")
	}
	if c.Rebuild.StallAfter < 1 {
		return errors.New("rebuild.stall_after must be >= 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
