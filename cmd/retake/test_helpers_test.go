package main

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"retake/internal/config"
	"retake/internal/media/wavfile"
	"retake/internal/production"
	"retake/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)

	configPath := filepath.Join(homeDir, ".config", "retake", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nworkspace_dir = %q\nstaging_dir = %q\nsession_dir = %q\nlog_dir = %q\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.WorkspaceDir,
		cfg.Paths.StagingDir,
		cfg.Paths.SessionDir,
		cfg.Paths.LogDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeTone(t *testing.T, path string, rate int, durMs, amp float64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	n := int(durMs / 1000 * float64(rate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
	}
	if err := wavfile.Write(path, &wavfile.Clip{SampleRate: rate, Samples: samples}); err != nil {
		t.Fatalf("write tone %s: %v", path, err)
	}
}

// seedProduction writes a two-segment production whose v0 takes win selection
// outright and assemble into a track that clears every automated check.
func seedProduction(t *testing.T, cfg *config.Config, name string) *production.Manifest {
	t.Helper()
	dir := cfg.ProductionDir(name)

	tail := 300.0
	segments := make([]production.Segment, 2)
	for i := range segments {
		takes := make([]production.Candidate, 2)
		for v := range takes {
			rel := filepath.Join(fmt.Sprintf("seg%03d", i), fmt.Sprintf("v%02d.wav", v))
			amp := 0.35
			if v == 1 {
				amp = 0.3
			}
			writeTone(t, filepath.Join(dir, rel), 16000, 500, amp)
			takes[v] = production.Candidate{
				Version:       v,
				AudioPath:     rel,
				Duration:      0.5,
				EchoRisk:      0.001 + 0.001*float64(v),
				HissDB:        -60,
				Flatness:      0.3,
				Contrast:      0.5,
				Quality:       0.9 - 0.4*float64(v),
				TailSilenceMs: &tail,
			}
		}
		segments[i] = production.Segment{
			Index:     i,
			Text:      "Hold the line until the bridge clears.",
			CharCount: 5,
			Opening:   i == 0,
			Closing:   i == len(segments)-1,
			Takes:     takes,
		}
	}

	manifest := &production.Manifest{Production: name, Segments: segments}
	if err := manifest.Save(cfg.ManifestPath(name)); err != nil {
		t.Fatalf("save manifest: %v", err)
	}
	return manifest
}
