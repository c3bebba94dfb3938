// package repositories provides the persistence layer for web wizard
// sessions.
//
// Session state is serialized as a JSON blob; the phase column is duplicated
// out of the blob so listings can filter without unmarshalling.
package repositories

import (
	"database/sql"
	"fmt"
)

// sessionSchema bootstraps the sessions table.
const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	phase TEXT NOT NULL,
	state TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	deleted_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_phase ON sessions(phase);
`

// Bootstrap creates the schema when missing.
func Bootstrap(db *sql.DB) error {
	if _, err := db.Exec(sessionSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
