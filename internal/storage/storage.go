// Package storage provides SQLite-backed persistence for rating events,
// submission outcomes, problem metadata, and contest statistics.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/probsolve/cfdataset/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/cfdataset/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "cfdataset", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rating_changes (
			handle      TEXT NOT NULL,
			contest_id  INTEGER NOT NULL,
			old_rating  INTEGER NOT NULL,
			new_rating  INTEGER NOT NULL,
			PRIMARY KEY (handle, contest_id)
		)`,
		`CREATE TABLE IF NOT EXISTS contest_user_result (
			handle            TEXT NOT NULL,
			contest_id        INTEGER NOT NULL,
			problem_index     INTEGER NOT NULL,
			problem_index_raw TEXT NOT NULL,
			verdict           INTEGER NOT NULL,
			PRIMARY KEY (contest_id, handle, problem_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_result_handle
			ON contest_user_result(handle, contest_id, problem_index)`,
		`CREATE TABLE IF NOT EXISTS problem_meta (
			contest_id        INTEGER NOT NULL,
			problem_index     INTEGER NOT NULL,
			problem_index_raw TEXT NOT NULL,
			division_type     INTEGER NOT NULL,
			problem_rating    INTEGER NOT NULL,
			tags              TEXT NOT NULL,
			PRIMARY KEY (contest_id, problem_index)
		)`,
		`CREATE TABLE IF NOT EXISTS contest_statistics (
			contest_id          INTEGER PRIMARY KEY,
			avg_rating_all      INTEGER NOT NULL,
			avg_rating_rated    INTEGER NOT NULL,
			median_rating_rated INTEGER NOT NULL,
			p25_rating_rated    INTEGER NOT NULL,
			p75_rating_rated    INTEGER NOT NULL,
			std_rating_rated    REAL NOT NULL,
			count_total         INTEGER NOT NULL,
			count_unrated       INTEGER NOT NULL,
			unrated_ratio       REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contests (
			contest_id    INTEGER PRIMARY KEY,
			name          TEXT NOT NULL,
			division_type INTEGER NOT NULL,
			start_time    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sampled_handles (
			handle     TEXT PRIMARY KEY,
			max_rating INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertContests stores contest rows, replacing existing entries.
func (s *Storage) UpsertContests(contests []models.Contest) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO contests (contest_id, name, division_type, start_time)
		VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare contest insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range contests {
		if _, err := stmt.Exec(c.ID, c.Name, c.DivisionType, c.StartTime.Unix()); err != nil {
			return fmt.Errorf("failed to insert contest %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Contests returns all stored contests ordered by contest id.
func (s *Storage) Contests() ([]models.Contest, error) {
	rows, err := s.db.Query(`
		SELECT contest_id, name, division_type, start_time
		FROM contests ORDER BY contest_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contests: %w", err)
	}
	defer rows.Close()

	var contests []models.Contest
	for rows.Next() {
		var c models.Contest
		var startUnix int64
		if err := rows.Scan(&c.ID, &c.Name, &c.DivisionType, &startUnix); err != nil {
			return nil, fmt.Errorf("failed to scan contest: %w", err)
		}
		c.StartTime = time.Unix(startUnix, 0)
		contests = append(contests, c)
	}
	return contests, rows.Err()
}

// ReplaceHandles replaces the sampled handle population.
func (s *Storage) ReplaceHandles(handles []models.Handle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM sampled_handles`); err != nil {
		return fmt.Errorf("failed to clear handles: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO sampled_handles (handle, max_rating) VALUES (?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare handle insert: %w", err)
	}
	defer stmt.Close()

	for _, h := range handles {
		if _, err := stmt.Exec(h.Handle, h.MaxRating); err != nil {
			return fmt.Errorf("failed to insert handle %s: %w", h.Handle, err)
		}
	}
	return tx.Commit()
}

// SampledHandles returns the sampled handle population ordered by handle.
func (s *Storage) SampledHandles() ([]string, error) {
	rows, err := s.db.Query(`SELECT handle FROM sampled_handles ORDER BY handle`)
	if err != nil {
		return nil, fmt.Errorf("failed to query handles: %w", err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan handle: %w", err)
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}
