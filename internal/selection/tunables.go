package selection

import "retake/internal/config"

// Tunables is the immutable threshold and weight set one engine runs with.
// Construct it once from config; the engine never reads config directly.
type Tunables struct {
	MinDurationFraction  float64
	DurationOutlierRatio float64
	MaxCharsPerSecond    float64
	MinTrailingSilenceMs float64
	EchoRiskCeiling      float64
	HissCeilingDB        float64
	ProfileKeys          []string
	ProfileTolerance     float64
	ConfidenceMargin     float64

	EchoWeight     float64
	FlatnessWeight float64
	QualityWeight  float64
	TonalWeight    float64
	HissWeight     float64
	DurationWeight float64
	SoftFailWeight float64
	PassBonus      float64
}

// TunablesFromConfig copies the selection thresholds and ranking weights out
// of a validated config.
func TunablesFromConfig(cfg *config.Config) Tunables {
	keys := make([]string, len(cfg.Selection.ProfileKeys))
	copy(keys, cfg.Selection.ProfileKeys)
	return Tunables{
		MinDurationFraction:  cfg.Selection.MinDurationFraction,
		DurationOutlierRatio: cfg.Selection.DurationOutlierRatio,
		MaxCharsPerSecond:    cfg.Selection.MaxCharsPerSecond,
		MinTrailingSilenceMs: cfg.Selection.MinTrailingSilenceMs,
		EchoRiskCeiling:      cfg.Selection.EchoRiskCeiling,
		HissCeilingDB:        cfg.Selection.HissCeilingDB,
		ProfileKeys:          keys,
		ProfileTolerance:     cfg.Selection.ProfileTolerance,
		ConfidenceMargin:     cfg.Selection.ConfidenceMargin,

		EchoWeight:     cfg.Weights.Echo,
		FlatnessWeight: cfg.Weights.Flatness,
		QualityWeight:  cfg.Weights.Quality,
		TonalWeight:    cfg.Weights.Tonal,
		HissWeight:     cfg.Weights.Hiss,
		DurationWeight: cfg.Weights.Duration,
		SoftFailWeight: cfg.Weights.SoftFail,
		PassBonus:      cfg.Weights.PassBonus,
	}
}

// DefaultTunables returns the tunables derived from the default config.
func DefaultTunables() Tunables {
	cfg := config.Default()
	return TunablesFromConfig(&cfg)
}
