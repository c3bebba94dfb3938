package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mixcard/internal/models"
	"mixcard/internal/shared"
)

// SessionRepository persists wizard sessions with soft delete support.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session with a generated ID and timestamps.
func (r *SessionRepository) Create(session *models.Session) error {
	if session.ID == "" {
		session.ID = shared.GenerateID()
	}
	if session.Phase == "" {
		session.Phase = models.PhaseBuilt
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	state, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		INSERT INTO sessions (id, phase, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.Exec(query, session.ID, string(session.Phase), string(state), now, now); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID, excluding soft-deleted sessions.
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `
		SELECT state FROM sessions
		WHERE id = ? AND deleted_at IS NULL
	`

	var state string
	err := r.db.QueryRow(query, id).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(state), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	return &session, nil
}

// Update replaces the stored state for an existing session.
func (r *SessionRepository) Update(session *models.Session) error {
	now := time.Now().UTC()
	session.UpdatedAt = now

	state, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		UPDATE sessions
		SET phase = ?, state = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, string(session.Phase), string(state), now, session.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: session %s", shared.ErrSessionNotFound, session.ID)
	}
	return nil
}

// Delete soft-deletes a session by ID.
func (r *SessionRepository) Delete(id string) error {
	query := `
		UPDATE sessions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: session %s", shared.ErrSessionNotFound, id)
	}
	return nil
}

// List retrieves sessions, optionally filtered by phase, newest first.
func (r *SessionRepository) List(phase models.SessionPhase) ([]*models.Session, error) {
	query := `
		SELECT state FROM sessions
		WHERE deleted_at IS NULL
	`
	args := []any{}

	if phase != "" {
		query += " AND phase = ?"
		args = append(args, string(phase))
	}

	query += " ORDER BY updated_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		var session models.Session
		if err := json.Unmarshal([]byte(state), &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
		}
		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}
