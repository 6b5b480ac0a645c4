package main

import (
	"encoding/json"
	"testing"

	"retake/internal/selection"
)

func TestSelectCommandTracesSegment(t *testing.T) {
	env := setupCLITestEnv(t)
	seedProduction(t, env.cfg, "night-shift")

	stdout, _, err := runCLI(t, []string{"select", "night-shift", "0", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}

	var trace selection.Log
	if err := json.Unmarshal([]byte(stdout), &trace); err != nil {
		t.Fatalf("parse log: %v\noutput: %s", err, stdout)
	}
	if trace.Segment != 0 {
		t.Fatalf("segment = %d, want 0", trace.Segment)
	}
	if trace.PoolSize != 2 {
		t.Fatalf("pool size = %d, want 2", trace.PoolSize)
	}
	if trace.PickVersion() != 0 {
		t.Fatalf("pick = v%02d, want v00", trace.PickVersion())
	}
	if trace.Confidence != selection.ConfidenceHigh {
		t.Fatalf("confidence = %s, want %s", trace.Confidence, selection.ConfidenceHigh)
	}
}

func TestSelectCommandTextOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	seedProduction(t, env.cfg, "night-shift")

	stdout, _, err := runCLI(t, []string{"select", "night-shift", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}

	requireContains(t, stdout, "== Segment 1 ==")
	requireContains(t, stdout, "v00")
	requireContains(t, stdout, "Confidence")
	requireContains(t, stdout, "high")
}

func TestSelectCommandUnknownSegment(t *testing.T) {
	env := setupCLITestEnv(t)
	seedProduction(t, env.cfg, "night-shift")

	_, _, err := runCLI(t, []string{"select", "night-shift", "9"}, env.configPath)
	if err == nil {
		t.Fatal("expected an error for a segment that does not exist")
	}
	requireContains(t, err.Error(), "no segment 9")
}

func TestSelectCommandRejectsBadIndex(t *testing.T) {
	env := setupCLITestEnv(t)
	seedProduction(t, env.cfg, "night-shift")

	_, _, err := runCLI(t, []string{"select", "night-shift", "two"}, env.configPath)
	if err == nil {
		t.Fatal("expected an error for a non-numeric segment")
	}
	requireContains(t, err.Error(), "invalid segment index")
}
