package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const sessionColumns = "id, production, status, best_round, error_message, started_at, updated_at, finished_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id           string
		production   string
		statusStr    string
		bestRound    sql.NullInt64
		errorMessage sql.NullString
		startedRaw   sql.NullString
		updatedRaw   sql.NullString
		finishedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&production,
		&statusStr,
		&bestRound,
		&errorMessage,
		&startedRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:           id,
		Production:   production,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if bestRound.Valid {
		sess.BestRound = int(bestRound.Int64)
	}
	if started, err := parseTimeString(startedRaw.String); err == nil {
		sess.StartedAt = started
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sess.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			sess.FinishedAt = &finished
		}
	}
	return sess, nil
}

const roundColumns = "id, session_id, number, picks_json, flagged_json, review_json, failed_gates_json, gate_passes, improved, created_at"

func scanRound(scanner interface{ Scan(dest ...any) error }) (*Round, error) {
	var (
		id         int64
		sessionID  string
		number     int
		picksRaw   string
		flaggedRaw string
		reviewRaw  string
		gatesRaw   string
		gatePasses int
		improved   sql.NullInt64
		createdRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sessionID,
		&number,
		&picksRaw,
		&flaggedRaw,
		&reviewRaw,
		&gatesRaw,
		&gatePasses,
		&improved,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	round := &Round{
		ID:         id,
		SessionID:  sessionID,
		Number:     number,
		GatePasses: gatePasses,
	}
	if err := json.Unmarshal([]byte(picksRaw), &round.Picks); err != nil {
		return nil, fmt.Errorf("decode picks: %w", err)
	}
	if err := json.Unmarshal([]byte(flaggedRaw), &round.Flagged); err != nil {
		return nil, fmt.Errorf("decode flagged segments: %w", err)
	}
	if err := json.Unmarshal([]byte(reviewRaw), &round.Review); err != nil {
		return nil, fmt.Errorf("decode review segments: %w", err)
	}
	if err := json.Unmarshal([]byte(gatesRaw), &round.FailedGates); err != nil {
		return nil, fmt.Errorf("decode failed gates: %w", err)
	}
	if improved.Valid {
		round.Improved = improved.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		round.CreatedAt = created
	}
	return round, nil
}

const artifactColumns = "artifacts.id, artifacts.session_id, artifacts.round, artifacts.track_path, artifacts.manifest_path, artifacts.created_at"

func scanArtifact(scanner interface{ Scan(dest ...any) error }) (*Artifact, error) {
	var (
		id           int64
		sessionID    string
		round        int
		trackPath    string
		manifestPath string
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sessionID,
		&round,
		&trackPath,
		&manifestPath,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	artifact := &Artifact{
		ID:           id,
		SessionID:    sessionID,
		Round:        round,
		TrackPath:    trackPath,
		ManifestPath: manifestPath,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		artifact.CreatedAt = created
	}
	return artifact, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
