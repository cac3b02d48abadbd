// Package sqlite provides a durable, embedded ArtifactStore backed by a
// single SQLite database file. It is the production default: published
// recordings survive process restarts without requiring an external service.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/SereneyePro/rrweb-uploader/artifact"
	"github.com/SereneyePro/rrweb-uploader/core"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// Store implements core.ArtifactStore on top of database/sql. One row per
// published artifact; payload bytes are stored verbatim so Fetch returns
// exactly what Publish received.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database file at path and ensures the
// schema exists.
func NewStore(path string) (*Store, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS artifacts(
	  id         TEXT    PRIMARY KEY,
	  name       TEXT    NOT NULL,
	  data       BLOB    NOT NULL,
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Publish inserts the artifact bytes under a freshly minted id.
func (s *Store) Publish(name string, data []byte) (core.PublishResult, error) {
	id := core.NewID()
	_, err := s.db.Exec(
		`INSERT INTO artifacts(id, name, data, created_at) VALUES(?,?,?,?)`,
		id, name, data, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return core.PublishResult{}, fmt.Errorf("failed to insert artifact: %w", err)
	}
	return core.PublishResult{ID: id, Name: name}, nil
}

// Fetch returns the stored artifact bytes or artifact.ErrNotFound.
func (s *Store) Fetch(id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM artifacts WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact: %w", err)
	}
	return data, nil
}

// List returns descriptors for every stored artifact, newest first.
func (s *Store) List() ([]core.ArtifactInfo, error) {
	rows, err := s.db.Query(
		`SELECT id, name, length(data), created_at FROM artifacts ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	infos := []core.ArtifactInfo{}
	for rows.Next() {
		var (
			info      core.ArtifactInfo
			createdMs int64
		)
		if err := rows.Scan(&info.ID, &info.Name, &info.Size, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}
		info.CreatedAt = time.UnixMilli(createdMs).UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifact rows: %w", err)
	}
	return infos, nil
}

// Delete removes the artifact if present or returns artifact.ErrNotFound.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return artifact.ErrNotFound
	}
	return nil
}
