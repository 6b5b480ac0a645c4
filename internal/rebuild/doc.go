// Package rebuild drives repeated select-assemble-scan rounds for one
// production until its assembled track passes every automated check.
//
// The Loop selects a take for each segment in the round's rechunk set,
// assembles the full track, evaluates the build-report gates, and runs the
// defect scanner. Scanner-implicated segments become the next round's rechunk
// set, so selection work shrinks to the still-failing segments. Rounds that
// beat the best automated pass count (or tie it with fewer flagged segments)
// are snapshotted into the session artifact store and become the new best.
//
// Runs end passing, stalled, exhausted, or failed. Stalled and exhausted are
// outcomes, not errors; only collaborator failures (assembly, scanner, an
// unfillable segment) abort a run. Every round is persisted before the next
// begins, so a non-passing run can be resumed from its recorded picks.
package rebuild
