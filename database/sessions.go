package database

import (
	"database/sql"
	"fmt"
	"time"

	"webxcrawl/models"
)

// SaveSession upserts a browser session record. The browser collaborator
// owns session lifecycle and semantics; this module only owns durable
// storage of the record, per spec §6.5.
func (s *Store) SaveSession(session models.SessionInfo) error {
	headed := 0
	if session.Headed {
		headed = 1
	}
	_, err := s.DB.Exec(`
		INSERT INTO sessions (name, created_at, updated_at, storage_state_path, notes, headed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			updated_at = EXCLUDED.updated_at,
			storage_state_path = EXCLUDED.storage_state_path,
			notes = EXCLUDED.notes,
			headed = EXCLUDED.headed
	`, session.Name, session.CreatedAt, session.UpdatedAt, session.StorageStatePath, nullableString(session.Notes), headed)
	return err
}

// GetSession loads a session by name, or nil if it doesn't exist.
func (s *Store) GetSession(name string) (*models.SessionInfo, error) {
	var session models.SessionInfo
	var notes sql.NullString
	var headed int
	err := s.DB.QueryRow(`
		SELECT name, created_at, updated_at, storage_state_path, notes, headed
		FROM sessions WHERE name = $1
	`, name).Scan(&session.Name, &session.CreatedAt, &session.UpdatedAt, &session.StorageStatePath, &notes, &headed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	session.Notes = notes.String
	session.Headed = headed != 0
	return &session, nil
}

// AppendActionLog records one executed-action entry. The browser
// collaborator owns execution; this module only owns durable storage.
func (s *Store) AppendActionLog(entry models.ActionLog) error {
	actionJSON, err := marshalJSON(entry.Action)
	if err != nil {
		return fmt.Errorf("marshaling action: %w", err)
	}
	resultJSON, err := marshalJSON(entry.Result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err = s.DB.Exec(`
		INSERT INTO actions_log (id, session_name, url, action_json, result_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.SessionName, entry.URL, actionJSON, resultJSON, entry.CreatedAt)
	return err
}

// ListActionLog returns the most recent action-log entries for a session,
// newest first.
func (s *Store) ListActionLog(sessionName string, limit int) ([]models.ActionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(`
		SELECT id, session_name, url, action_json, result_json, created_at
		FROM actions_log WHERE session_name = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying action log: %w", err)
	}
	defer rows.Close()

	var entries []models.ActionLog
	for rows.Next() {
		var entry models.ActionLog
		var actionJSON, resultJSON []byte
		if err := rows.Scan(&entry.ID, &entry.SessionName, &entry.URL, &actionJSON, &resultJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning action log row: %w", err)
		}
		if err := unmarshalJSON(actionJSON, &entry.Action); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(resultJSON, &entry.Result); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
