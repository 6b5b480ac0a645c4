package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// WorkspaceDir holds one subdirectory per production containing the
	// take manifest, generated waveforms, and review files.
	WorkspaceDir string `toml:"workspace_dir"`
	// StagingDir receives per-round assembled tracks before promotion.
	StagingDir string `toml:"staging_dir"`
	// SessionDir holds session databases, locks, and promoted artifacts.
	SessionDir string `toml:"session_dir"`
	// LogDir receives the retake log file.
	LogDir string `toml:"log_dir"`
}

// Selection contains elimination thresholds for the selection engine.
type Selection struct {
	// MinDurationFraction rejects takes shorter than this fraction of the
	// pool median duration ("cut short").
	MinDurationFraction float64 `toml:"min_duration_fraction"`
	// DurationOutlierRatio rejects takes whose relative deviation from the
	// pool median exceeds this ratio in either direction.
	DurationOutlierRatio float64 `toml:"duration_outlier_ratio"`
	// MaxCharsPerSecond bounds plausible speaking pace; takes shorter than
	// chars/MaxCharsPerSecond are rejected as truncated.
	MaxCharsPerSecond float64 `toml:"max_chars_per_second"`
	// MinCharsPerSecond is the slow end of the pace band used by the
	// duration defect scan.
	MinCharsPerSecond float64 `toml:"min_chars_per_second"`
	// MinTrailingSilenceMs rejects takes that end with less trailing
	// silence than this, which indicates a mid-word cutoff.
	MinTrailingSilenceMs float64 `toml:"min_trailing_silence_ms"`
	// TailWindowMs is how much of the take's tail is inspected when the
	// trailing-silence metric has to be measured from the waveform.
	TailWindowMs float64 `toml:"tail_window_ms"`
	// SilenceFloorDBFS is the level below which a sample counts as silence.
	SilenceFloorDBFS float64 `toml:"silence_floor_dbfs"`
	// EchoRiskCeiling rejects takes whose echo risk exceeds it.
	EchoRiskCeiling float64 `toml:"echo_risk_ceiling"`
	// HissCeilingDB rejects takes whose noise floor is above it (hiss is
	// dB-like; more negative is cleaner).
	HissCeilingDB float64 `toml:"hiss_ceiling_db"`
	// ProfileKeys names the metrics compared against fail profiles.
	ProfileKeys []string `toml:"profile_keys"`
	// ProfileTolerance is the symmetric relative difference under which a
	// metric counts as matching a fail profile.
	ProfileTolerance float64 `toml:"profile_tolerance"`
	// ConfidenceMargin is the score gap between the top two survivors
	// required for high confidence; half of it yields medium.
	ConfidenceMargin float64 `toml:"confidence_margin"`
}

// Weights contains the ranking weights applied to surviving takes.
type Weights struct {
	Echo     float64 `toml:"echo"`
	Flatness float64 `toml:"flatness"`
	Quality  float64 `toml:"quality"`
	Tonal    float64 `toml:"tonal"`
	// Hiss multiplies the raw dB-like hiss value; a negative weight rewards
	// a lower (more negative) noise floor.
	Hiss float64 `toml:"hiss"`
	// Duration multiplies the signed relative deviation from the pool
	// median. Zero disables any duration preference.
	Duration float64 `toml:"duration"`
	SoftFail float64 `toml:"soft_fail"`
	// PassBonus is added to takes a human already confirmed as passing.
	PassBonus float64 `toml:"pass_bonus"`
}

// Assembly contains settings for the bundled concatenating assembler.
type Assembly struct {
	// SampleRate forces an output rate; zero adopts the first clip's rate.
	SampleRate int `toml:"sample_rate"`
	// GapMs is the silence inserted between consecutive segments.
	GapMs float64 `toml:"gap_ms"`
	// OpeningPadMs precedes segments flagged as opening a production.
	OpeningPadMs float64 `toml:"opening_pad_ms"`
	// ClosingPadMs follows segments flagged as closing a production.
	ClosingPadMs float64 `toml:"closing_pad_ms"`
	// PeakCeilingDBFS is the headroom gate threshold.
	PeakCeilingDBFS float64 `toml:"peak_ceiling_dbfs"`
}

// Scanner contains defect-scan tuning.
type Scanner struct {
	// HighPassHz is the cutoff above which echo-signature energy is measured.
	HighPassHz float64 `toml:"high_pass_hz"`
	// WindowMs is the sliding energy window; windows advance by half a window.
	WindowMs float64 `toml:"window_ms"`
	// EnergyRatio flags a segment when any window exceeds the segment median
	// energy by this multiplier.
	EnergyRatio float64 `toml:"energy_ratio"`
	// PaceSlackSeconds widens the chars-per-second duration band at both ends.
	PaceSlackSeconds float64 `toml:"pace_slack_seconds"`
}

// Rebuild contains control-loop bounds.
type Rebuild struct {
	// MaxRounds is the hard cap after which a session is exhausted.
	MaxRounds int `toml:"max_rounds"`
	// StallAfter is the number of consecutive non-improving rounds after
	// which a session stalls.
	StallAfter int `toml:"stall_after"`
	// NonAutomatableGates lists build-report gates that require human
	// judgement and never count toward automated failure.
	NonAutomatableGates []string `toml:"non_automatable_gates"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RoundUpdates   bool   `toml:"round_updates"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for retake.
//
// Sections by subsystem:
//   - Paths: workspace, staging, session, and log directories
//   - Selection: elimination thresholds for the selection engine
//   - Weights: ranking weights for surviving takes
//   - Assembly: concatenation and headroom-gate settings
//   - Scanner: echo-spike and duration-band defect detection
//   - Rebuild: round caps and the non-automatable gate list
//   - Notifications: ntfy push settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Selection     Selection     `toml:"selection"`
	Weights       Weights       `toml:"weights"`
	Assembly      Assembly      `toml:"assembly"`
	Scanner       Scanner       `toml:"scanner"`
	Rebuild       Rebuild       `toml:"rebuild"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/retake/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("retake.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs. The workspace is
// created best-effort so read-only commands still work when it lives on
// storage that is temporarily offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.SessionDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.WorkspaceDir) != "" {
		_ = os.MkdirAll(c.Paths.WorkspaceDir, 0o755)
	}
	return nil
}

// ProductionDir returns the workspace directory for a named production.
func (c *Config) ProductionDir(name string) string {
	return filepath.Join(c.Paths.WorkspaceDir, name)
}

// ManifestPath returns the take manifest path for a named production.
func (c *Config) ManifestPath(name string) string {
	return filepath.Join(c.ProductionDir(name), "takes.json")
}

// ReviewsDir returns the verdict review directory for a named production.
func (c *Config) ReviewsDir(name string) string {
	return filepath.Join(c.ProductionDir(name), "reviews")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
