package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists sessions in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path and runs
// migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT 'New Session',
		status TEXT NOT NULL DEFAULT 'active',
		selected_models TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		round_index INTEGER NOT NULL,
		role TEXT NOT NULL,
		model_id TEXT,
		content TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		status TEXT NOT NULL DEFAULT 'success'
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(selectedModels []string) (Session, error) {
	if selectedModels == nil {
		selectedModels = []string{}
	}
	models, err := json.Marshal(selectedModels)
	if err != nil {
		return Session{}, err
	}
	now := time.Now().UTC()
	session := Session{
		ID:             uuid.NewString(),
		Title:          DefaultTitle,
		Status:         StatusActive,
		SelectedModels: selectedModels,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, title, status, selected_models, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.Title, session.Status, string(models), now, now,
	)
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *SQLiteStore) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, title, status, selected_models, created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(
		`SELECT id, title, status, selected_models, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Session{}, err
	}

	messages, err := s.sessionMessages(id)
	if err != nil {
		return Session{}, err
	}
	session.Messages = messages
	for _, message := range messages {
		if message.RoundIndex > session.CurrentRound {
			session.CurrentRound = message.RoundIndex
		}
	}
	return session, nil
}

func (s *SQLiteStore) sessionMessages(sessionID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, round_index, role, model_id, content, timestamp, status
		 FROM messages WHERE session_id = ? ORDER BY timestamp, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var modelID sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.RoundIndex, &m.Role, &modelID, &m.Content, &m.Timestamp, &m.Status); err != nil {
			return nil, err
		}
		m.ModelID = modelID.String
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) DeleteSession(id string) error {
	if _, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) UpdateTitle(id, title string) error {
	return s.updateSessionField(id, "title", title)
}

func (s *SQLiteStore) UpdateStatus(id, status string) error {
	return s.updateSessionField(id, "status", status)
}

func (s *SQLiteStore) updateSessionField(id, field, value string) error {
	result, err := s.db.Exec(
		`UPDATE sessions SET `+field+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) AddMessage(sessionID, role, content, modelID, status string, roundIndex int) (Message, error) {
	message := Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		RoundIndex: roundIndex,
		Role:       role,
		ModelID:    modelID,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		Status:     status,
	}
	var modelValue any
	if modelID != "" {
		modelValue = modelID
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, session_id, round_index, role, model_id, content, timestamp, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		message.ID, sessionID, roundIndex, role, modelValue, content, message.Timestamp, status,
	)
	if err != nil {
		return Message{}, err
	}
	if _, err := s.db.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, message.Timestamp, sessionID); err != nil {
		return Message{}, fmt.Errorf("bump session updated_at: %w", err)
	}
	return message, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var session Session
	var models string
	if err := row.Scan(&session.ID, &session.Title, &session.Status, &models, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(models), &session.SelectedModels); err != nil {
		return Session{}, fmt.Errorf("decode selected models: %w", err)
	}
	return session, nil
}
