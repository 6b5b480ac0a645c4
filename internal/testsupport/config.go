package testsupport

import (
	"path/filepath"
	"testing"

	"retake/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.SessionDir = filepath.Join(base, "sessions")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSelection adjusts the selection thresholds on the test config.
func WithSelection(mutate func(*config.Selection)) ConfigOption {
	return func(b *configBuilder) {
		mutate(&b.cfg.Selection)
	}
}

// WithWeights adjusts the ranking weights on the test config.
func WithWeights(mutate func(*config.Weights)) ConfigOption {
	return func(b *configBuilder) {
		mutate(&b.cfg.Weights)
	}
}

// WithRebuild adjusts the control-loop bounds on the test config.
func WithRebuild(mutate func(*config.Rebuild)) ConfigOption {
	return func(b *configBuilder) {
		mutate(&b.cfg.Rebuild)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
