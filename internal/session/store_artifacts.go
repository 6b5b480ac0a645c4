package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"retake/internal/fileutil"
)

// ArtifactDir returns the snapshot directory for one promoted round.
func (s *Store) ArtifactDir(sessionID string, round int) string {
	return filepath.Join(s.artifactsRoot, sessionID, fmt.Sprintf("round-%03d", round))
}

// PromoteRound snapshots a round's assembled track and manifest into the
// artifact store and advances the session's best-round pointer. The copies are
// integrity-verified, and the pointer update lands in the same transaction as
// the artifact row, so the pointer never references a missing snapshot.
func (s *Store) PromoteRound(ctx context.Context, sessionID string, round int, trackPath, manifestPath string) (*Artifact, error) {
	if round <= 0 {
		return nil, fmt.Errorf("promote round: number %d must be positive", round)
	}

	destDir := s.ArtifactDir(sessionID, round)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	destTrack := filepath.Join(destDir, "track.wav")
	destManifest := filepath.Join(destDir, "manifest.json")
	if err := fileutil.CopyFileVerified(trackPath, destTrack); err != nil {
		return nil, fmt.Errorf("snapshot track: %w", err)
	}
	if err := fileutil.CopyFileVerified(manifestPath, destManifest); err != nil {
		return nil, fmt.Errorf("snapshot manifest: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin promote tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE sessions SET best_round = ?, updated_at = ? WHERE id = ?`,
		round,
		timestamp,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("advance best round: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("unknown session %q", sessionID)
	}

	insert, err := tx.ExecContext(
		ctx,
		`INSERT INTO artifacts (session_id, round, track_path, manifest_path, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		sessionID,
		round,
		destTrack,
		destManifest,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}
	id, err := insert.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit promote: %w", err)
	}

	return &Artifact{
		ID:           id,
		SessionID:    sessionID,
		Round:        round,
		TrackPath:    destTrack,
		ManifestPath: destManifest,
		CreatedAt:    now,
	}, nil
}

// BestArtifact returns the snapshot named by the session's best-round pointer,
// or (nil, nil) when no round has been promoted.
func (s *Store) BestArtifact(ctx context.Context, sessionID string) (*Artifact, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+artifactColumns+` FROM artifacts
         JOIN sessions ON sessions.id = artifacts.session_id AND sessions.best_round = artifacts.round
         WHERE artifacts.session_id = ?`,
		sessionID,
	)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("best artifact: %w", err)
	}
	return artifact, nil
}

// Artifacts returns every promoted snapshot for a session in round order.
func (s *Store) Artifacts(ctx context.Context, sessionID string) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE artifacts.session_id = ? ORDER BY artifacts.round`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}
