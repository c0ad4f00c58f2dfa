// Package manifest persists a crash-safe record of every chunk the engine
// has emitted, keyed by a run ID, so a `-resume` invocation can tell which
// ranges are already done. Modeled on the teacher's internal/plex.RegisterTuner
// use of database/sql + modernc.org/sqlite.
package manifest

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ChunkRecord is one completed chunk.
type ChunkRecord struct {
	RunID       string
	FileNumber  int
	FileSuffix  string
	StartMS     int64
	EndMS       int64
	ByteCount   int64
	CompletedAt time.Time
}

// Manifest wraps the sqlite-backed chunk log.
type Manifest struct {
	db    *sql.DB
	runID string
}

// Open opens (creating if necessary) the manifest database at path, and
// starts (or resumes) a run. When resume is false a fresh run ID is minted;
// when true the most recent run ID in the database is reused.
func Open(path string, resume bool) (*Manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: create schema: %w", err)
	}
	m := &Manifest{db: db}
	if resume {
		runID, err := latestRunID(db)
		if err == nil && runID != "" {
			m.runID = runID
			return m, nil
		}
	}
	m.runID = uuid.NewString()
	return m, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	run_id       TEXT NOT NULL,
	file_number  INTEGER NOT NULL,
	file_suffix  TEXT NOT NULL,
	start_ms     INTEGER NOT NULL,
	end_ms       INTEGER NOT NULL,
	byte_count   INTEGER NOT NULL,
	completed_at TEXT NOT NULL,
	PRIMARY KEY (run_id, file_number)
);
`

func latestRunID(db *sql.DB) (string, error) {
	var runID string
	err := db.QueryRow(`SELECT run_id FROM chunks ORDER BY completed_at DESC LIMIT 1`).Scan(&runID)
	if err != nil {
		return "", err
	}
	return runID, nil
}

// RunID returns the manifest's current run identifier.
func (m *Manifest) RunID() string { return m.runID }

// RecordChunk inserts (or replaces) the record for one completed chunk.
func (m *Manifest) RecordChunk(rec ChunkRecord) error {
	rec.RunID = m.runID
	_, err := m.db.Exec(
		`INSERT OR REPLACE INTO chunks (run_id, file_number, file_suffix, start_ms, end_ms, byte_count, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.FileNumber, rec.FileSuffix, rec.StartMS, rec.EndMS, rec.ByteCount, rec.CompletedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("manifest: record chunk %d: %w", rec.FileNumber, err)
	}
	return nil
}

// CompletedFileNumbers returns the file numbers already recorded for the
// current run; cmd/reframer's -resume path reports how many there are.
func (m *Manifest) CompletedFileNumbers() (map[int]bool, error) {
	rows, err := m.db.Query(`SELECT file_number FROM chunks WHERE run_id = ?`, m.runID)
	if err != nil {
		return nil, fmt.Errorf("manifest: query completed chunks: %w", err)
	}
	defer rows.Close()
	out := map[int]bool{}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out[n] = true
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (m *Manifest) Close() error { return m.db.Close() }
