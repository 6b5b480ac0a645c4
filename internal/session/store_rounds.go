package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"retake/internal/selection"
)

// RecordRound persists one control-loop iteration. The round's ID and
// CreatedAt are filled in on success.
func (s *Store) RecordRound(ctx context.Context, round *Round) error {
	if round == nil {
		return errors.New("record round: round is nil")
	}
	if strings.TrimSpace(round.SessionID) == "" {
		return errors.New("record round: session id required")
	}
	if round.Number <= 0 {
		return fmt.Errorf("record round: number %d must be positive", round.Number)
	}

	picksJSON, err := json.Marshal(round.Picks)
	if err != nil {
		return fmt.Errorf("encode picks: %w", err)
	}
	flaggedJSON, err := json.Marshal(round.Flagged)
	if err != nil {
		return fmt.Errorf("encode flagged segments: %w", err)
	}
	reviewJSON, err := json.Marshal(round.Review)
	if err != nil {
		return fmt.Errorf("encode review segments: %w", err)
	}
	gatesJSON, err := json.Marshal(round.FailedGates)
	if err != nil {
		return fmt.Errorf("encode failed gates: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO rounds (
            session_id, number, picks_json, flagged_json, review_json,
            failed_gates_json, gate_passes, improved, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		round.SessionID,
		round.Number,
		string(picksJSON),
		string(flaggedJSON),
		string(reviewJSON),
		string(gatesJSON),
		round.GatePasses,
		boolToInt(round.Improved),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	round.ID = id
	round.CreatedAt = now
	return nil
}

// Rounds returns a session's recorded rounds in execution order.
func (s *Store) Rounds(ctx context.Context, sessionID string) ([]*Round, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE session_id = ? ORDER BY number`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

// LastRound returns the newest recorded round, or (nil, nil) when the session
// has none. Resume tooling reads its picks as the starting state.
func (s *Store) LastRound(ctx context.Context, sessionID string) (*Round, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE session_id = ? ORDER BY number DESC LIMIT 1`,
		sessionID,
	)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last round: %w", err)
	}
	return round, nil
}

// SaveSelectionLogs stores the per-segment selection traces for one round in a
// single transaction.
func (s *Store) SaveSelectionLogs(ctx context.Context, sessionID string, round int, logs []selection.Log) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin selection log tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for _, entry := range logs {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode selection log: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO selection_logs (session_id, round, segment, log_json, created_at)
             VALUES (?, ?, ?, ?, ?)`,
			sessionID,
			round,
			entry.Segment,
			string(data),
			timestamp,
		); err != nil {
			return fmt.Errorf("insert selection log for segment %d: %w", entry.Segment, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit selection logs: %w", err)
	}
	return nil
}

// SelectionLogs returns one round's selection traces ordered by segment.
func (s *Store) SelectionLogs(ctx context.Context, sessionID string, round int) ([]selection.Log, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT log_json FROM selection_logs WHERE session_id = ? AND round = ? ORDER BY segment`,
		sessionID,
		round,
	)
	if err != nil {
		return nil, fmt.Errorf("list selection logs: %w", err)
	}
	defer rows.Close()

	var logs []selection.Log
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var entry selection.Log
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode selection log: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// RecordRejections stores the versions a flagged segment wore when the scan
// implicated it. Duplicate (segment, version) pairs are ignored; rejection is
// bookkeeping for the operator, not a ban.
func (s *Store) RecordRejections(ctx context.Context, sessionID string, round, segment int, versions []int) error {
	if len(versions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rejection tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, version := range versions {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO rejected_versions (session_id, round, segment, version)
             VALUES (?, ?, ?, ?)`,
			sessionID,
			round,
			segment,
			version,
		); err != nil {
			return fmt.Errorf("insert rejection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rejections: %w", err)
	}
	return nil
}

// RejectedVersions aggregates every rejected version per segment.
func (s *Store) RejectedVersions(ctx context.Context, sessionID string) (map[int][]int, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT segment, version FROM rejected_versions WHERE session_id = ? ORDER BY segment, version`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rejections: %w", err)
	}
	defer rows.Close()

	rejected := make(map[int][]int)
	for rows.Next() {
		var segment, version int
		if err := rows.Scan(&segment, &version); err != nil {
			return nil, err
		}
		rejected[segment] = append(rejected[segment], version)
	}
	return rejected, rows.Err()
}
