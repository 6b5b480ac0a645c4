// Package preflight provides readiness checks for the filesystem paths and
// services a rebuild run depends on.
//
// The checks run in two contexts:
//   - The CLI "retake run" command calls RunAll, plus CheckManifest for the
//     target production, before starting the control loop, so a doomed run
//     aborts before any round is burned.
//   - Status rendering uses individual check functions to display
//     environment health.
//
// The notification check is skipped when no topic is configured.
package preflight
