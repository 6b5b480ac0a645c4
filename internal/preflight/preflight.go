package preflight

import (
	"context"

	"retake/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the config-wide checks. Production-specific checks
// (CheckManifest) are invoked separately by callers that know the target.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Session directory", cfg.Paths.SessionDir),
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNotify(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}
