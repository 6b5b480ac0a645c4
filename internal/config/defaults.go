package config

// Default values for directories.
const (
	DefaultWorkspaceDir = "~/retake/workspace"
	DefaultStagingDir   = "~/retake/staging"
	DefaultSessionDir   = "~/retake/sessions"
	DefaultLogDir       = "~/retake/logs"
)

// Default selection thresholds.
const (
	DefaultMinDurationFraction  = 0.5
	DefaultDurationOutlierRatio = 0.4
	DefaultMaxCharsPerSecond    = 22.0
	DefaultMinCharsPerSecond    = 8.0
	DefaultMinTrailingSilenceMs = 120.0
	DefaultTailWindowMs         = 500.0
	DefaultSilenceFloorDBFS     = -40.0
	DefaultEchoRiskCeiling      = 0.003
	DefaultHissCeilingDB        = -55.0
	DefaultProfileTolerance     = 0.15
	DefaultConfidenceMargin     = 0.75
)

// Default ranking weights.
const (
	DefaultWeightEcho     = 400.0
	DefaultWeightFlatness = 2.0
	DefaultWeightQuality  = 5.0
	DefaultWeightTonal    = 1.5
	DefaultWeightHiss     = -0.02
	DefaultWeightDuration = 0.0
	DefaultWeightSoftFail = 3.0
	DefaultPassBonus      = 1000.0
)

// Default assembly settings.
const (
	DefaultGapMs           = 120.0
	DefaultOpeningPadMs    = 350.0
	DefaultClosingPadMs    = 500.0
	DefaultPeakCeilingDBFS = -1.0
)

// Default scanner settings.
const (
	DefaultHighPassHz       = 6000.0
	DefaultWindowMs         = 50.0
	DefaultEnergyRatio      = 6.0
	DefaultPaceSlackSeconds = 0.35
)

// Default rebuild bounds.
const (
	DefaultMaxRounds  = 10
	DefaultStallAfter = 5
)

// Default notification settings.
const (
	DefaultNtfyRequestTimeout = 30
)

// Default logging settings.
const (
	DefaultLogFormat = "console"
	DefaultLogLevel  = "info"
)

func defaultProfileKeys() []string {
	return []string{"echo_risk", "hiss_db", "flatness", "contrast", "quality"}
}

func defaultNonAutomatableGates() []string {
	return []string{"duration", "ambience"}
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: DefaultWorkspaceDir,
			StagingDir:   DefaultStagingDir,
			SessionDir:   DefaultSessionDir,
			LogDir:       DefaultLogDir,
		},
		Selection: Selection{
			MinDurationFraction:  DefaultMinDurationFraction,
			DurationOutlierRatio: DefaultDurationOutlierRatio,
			MaxCharsPerSecond:    DefaultMaxCharsPerSecond,
			MinCharsPerSecond:    DefaultMinCharsPerSecond,
			MinTrailingSilenceMs: DefaultMinTrailingSilenceMs,
			TailWindowMs:         DefaultTailWindowMs,
			SilenceFloorDBFS:     DefaultSilenceFloorDBFS,
			EchoRiskCeiling:      DefaultEchoRiskCeiling,
			HissCeilingDB:        DefaultHissCeilingDB,
			ProfileKeys:          defaultProfileKeys(),
			ProfileTolerance:     DefaultProfileTolerance,
			ConfidenceMargin:     DefaultConfidenceMargin,
		},
		Weights: Weights{
			Echo:      DefaultWeightEcho,
			Flatness:  DefaultWeightFlatness,
			Quality:   DefaultWeightQuality,
			Tonal:     DefaultWeightTonal,
			Hiss:      DefaultWeightHiss,
			Duration:  DefaultWeightDuration,
			SoftFail:  DefaultWeightSoftFail,
			PassBonus: DefaultPassBonus,
		},
		Assembly: Assembly{
			SampleRate:      0,
			GapMs:           DefaultGapMs,
			OpeningPadMs:    DefaultOpeningPadMs,
			ClosingPadMs:    DefaultClosingPadMs,
			PeakCeilingDBFS: DefaultPeakCeilingDBFS,
		},
		Scanner: Scanner{
			HighPassHz:       DefaultHighPassHz,
			WindowMs:         DefaultWindowMs,
			EnergyRatio:      DefaultEnergyRatio,
			PaceSlackSeconds: DefaultPaceSlackSeconds,
		},
		Rebuild: Rebuild{
			MaxRounds:           DefaultMaxRounds,
			StallAfter:          DefaultStallAfter,
			NonAutomatableGates: defaultNonAutomatableGates(),
		},
		Notifications: Notifications{
			NtfyTopic:      "",
			RequestTimeout: DefaultNtfyRequestTimeout,
			RoundUpdates:   true,
			Review:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: DefaultLogFormat,
			Level:  DefaultLogLevel,
		},
	}
}
