package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer behind the program index and the
// persisted results of pipeline runs.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an already opened database handle. The caller keeps
// ownership of driver configuration; Close still closes db.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
-- Index tables

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT,
  archived        BOOLEAN DEFAULT TRUE,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS declarations (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER REFERENCES files(id),
  kind            TEXT NOT NULL,
  name            TEXT NOT NULL,
  simple_name     TEXT,
  package         TEXT,
  owner_id        INTEGER REFERENCES declarations(id),
  class_kind      TEXT,
  type_expr       TEXT,
  params          TEXT,
  modifiers       TEXT,
  archived        BOOLEAN DEFAULT TRUE,
  line            INTEGER
);

CREATE TABLE IF NOT EXISTS supertypes (
  id              INTEGER PRIMARY KEY,
  class_id        INTEGER NOT NULL REFERENCES declarations(id),
  name            TEXT NOT NULL,
  relation        TEXT NOT NULL,
  ordinal         INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS annotations (
  id              INTEGER PRIMARY KEY,
  target_id       INTEGER NOT NULL REFERENCES declarations(id),
  name            TEXT NOT NULL,
  attributes      TEXT,
  ordinal         INTEGER DEFAULT 0
);

-- Run tables

CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  started_at      TIMESTAMP,
  finished_at     TIMESTAMP,
  failed          BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS effective_annotations (
  id              INTEGER PRIMARY KEY,
  run_id          TEXT NOT NULL REFERENCES runs(id),
  target_name     TEXT NOT NULL,
  target_kind     TEXT NOT NULL,
  name            TEXT NOT NULL,
  attributes      TEXT,
  ordinal         INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  run_id          TEXT NOT NULL REFERENCES runs(id),
  severity        TEXT NOT NULL,
  phase           TEXT,
  callback        TEXT,
  target          TEXT,
  message         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

-- Indexes

CREATE UNIQUE INDEX IF NOT EXISTS idx_declarations_identity ON declarations(kind, name);
CREATE INDEX IF NOT EXISTS idx_declarations_file ON declarations(file_id);
CREATE INDEX IF NOT EXISTS idx_declarations_owner ON declarations(owner_id);
CREATE INDEX IF NOT EXISTS idx_supertypes_class ON supertypes(class_id);
CREATE INDEX IF NOT EXISTS idx_supertypes_name ON supertypes(name);
CREATE INDEX IF NOT EXISTS idx_annotations_target ON annotations(target_id);
CREATE INDEX IF NOT EXISTS idx_annotations_name ON annotations(name);
CREATE INDEX IF NOT EXISTS idx_effective_run_target ON effective_annotations(run_id, target_name);
CREATE INDEX IF NOT EXISTS idx_diagnostics_run ON diagnostics(run_id);
`

// DeleteFileData transactionally removes every declaration of a file together
// with its supertypes and annotations, then the file record itself.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM declarations WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("query declarations: %w", err)
	}
	var declIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan declaration id: %w", err)
		}
		declIDs = append(declIDs, id)
	}
	rows.Close()

	if len(declIDs) > 0 {
		placeholders := placeholderList(len(declIDs))
		args := int64sToArgs(declIDs)
		for _, q := range []string{
			"DELETE FROM annotations WHERE target_id IN (" + placeholders + ")",
			"DELETE FROM supertypes WHERE class_id IN (" + placeholders + ")",
		} {
			if _, err := tx.Exec(q, args...); err != nil {
				return fmt.Errorf("delete declaration children: %w", err)
			}
		}
		// Members reference their owner; clear them before their classes.
		if _, err := tx.Exec("DELETE FROM declarations WHERE file_id = ? AND owner_id IS NOT NULL AND kind IN ('method', 'field')", fileID); err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		if _, err := tx.Exec("UPDATE declarations SET owner_id = NULL WHERE file_id = ?", fileID); err != nil {
			return fmt.Errorf("detach nested classes: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM declarations WHERE file_id = ?", fileID); err != nil {
			return fmt.Errorf("delete declarations: %w", err)
		}
	}

	if _, err := tx.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return tx.Commit()
}

// GetMetadata returns the value stored under key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value.String, nil
}

// SetMetadata upserts a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
