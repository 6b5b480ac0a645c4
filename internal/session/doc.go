// Package session persists rebuild sessions in SQLite and snapshots promoted
// round artifacts.
//
// The Store records one row per session plus its rounds, per-segment selection
// traces, rejected take versions, and promoted artifacts. Promoting a round
// copies the assembled track and manifest into a versioned snapshot directory
// and advances the sessions.best_round pointer in the same transaction, so the
// pointer never names a snapshot that does not exist.
//
// A RunLock guards the session directory while a rebuild run is active;
// history and resume tooling read without one.
package session
