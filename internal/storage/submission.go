package storage

import (
	"database/sql"
	"fmt"

	"github.com/probsolve/cfdataset/internal/models"
)

// RecordOutcomes inserts submission outcomes idempotently: a duplicate
// (contest_id, handle, problem_index) triple is a no-op.
func (s *Storage) RecordOutcomes(outcomes []models.SubmissionOutcome) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO contest_user_result
			(handle, contest_id, problem_index, problem_index_raw, verdict)
		VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i := range outcomes {
		o := &outcomes[i]
		if err := o.Validate(); err != nil {
			return fmt.Errorf("invalid outcome: %w", err)
		}
		if _, err := stmt.Exec(o.Handle, o.ContestID, o.ProblemIndex, o.ProblemIndexRaw, o.Verdict); err != nil {
			return fmt.Errorf("failed to insert outcome %s/%d/%d: %w", o.Handle, o.ContestID, o.ProblemIndex, err)
		}
	}
	return tx.Commit()
}

// OutcomesForHandle returns the full outcome history of a handle,
// ordered ascending by (contest_id, problem_index).
func (s *Storage) OutcomesForHandle(handle string) ([]models.SubmissionOutcome, error) {
	rows, err := s.db.Query(`
		SELECT handle, contest_id, problem_index, problem_index_raw, verdict
		FROM contest_user_result
		WHERE handle = ?
		ORDER BY contest_id, problem_index`, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.SubmissionOutcome
	for rows.Next() {
		var o models.SubmissionOutcome
		if err := rows.Scan(&o.Handle, &o.ContestID, &o.ProblemIndex, &o.ProblemIndexRaw, &o.Verdict); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// AcceptedBefore returns all accepted problems of a handle with
// contest_id strictly less than contestID, sorted ascending by
// (contest_id, problem_index). The ordering enables early-exit scans.
func (s *Storage) AcceptedBefore(handle string, contestID int) ([]models.AcceptedProblem, error) {
	rows, err := s.db.Query(`
		SELECT contest_id, problem_index FROM contest_user_result
		WHERE handle = ? AND verdict = 1 AND contest_id < ?
		ORDER BY contest_id, problem_index`, handle, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accepted problems: %w", err)
	}
	defer rows.Close()

	return scanAccepted(rows)
}

// AcceptedByHandle returns every accepted problem of a handle, sorted
// ascending by (contest_id, problem_index).
func (s *Storage) AcceptedByHandle(handle string) ([]models.AcceptedProblem, error) {
	rows, err := s.db.Query(`
		SELECT contest_id, problem_index FROM contest_user_result
		WHERE handle = ? AND verdict = 1
		ORDER BY contest_id, problem_index`, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to query accepted problems: %w", err)
	}
	defer rows.Close()

	return scanAccepted(rows)
}

// AllAcceptedByHandle returns every accepted problem grouped by handle,
// each list sorted ascending by (contest_id, problem_index). Bulk
// precomputation that avoids one query per user when processing many.
func (s *Storage) AllAcceptedByHandle() (map[string][]models.AcceptedProblem, error) {
	rows, err := s.db.Query(`
		SELECT handle, contest_id, problem_index FROM contest_user_result
		WHERE verdict = 1
		ORDER BY handle, contest_id, problem_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accepted problems: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]models.AcceptedProblem)
	for rows.Next() {
		var handle string
		var p models.AcceptedProblem
		if err := rows.Scan(&handle, &p.ContestID, &p.ProblemIndex); err != nil {
			return nil, fmt.Errorf("failed to scan accepted problem: %w", err)
		}
		grouped[handle] = append(grouped[handle], p)
	}
	return grouped, rows.Err()
}

func scanAccepted(rows *sql.Rows) ([]models.AcceptedProblem, error) {
	var accepted []models.AcceptedProblem
	for rows.Next() {
		var p models.AcceptedProblem
		if err := rows.Scan(&p.ContestID, &p.ProblemIndex); err != nil {
			return nil, fmt.Errorf("failed to scan accepted problem: %w", err)
		}
		accepted = append(accepted, p)
	}
	return accepted, rows.Err()
}
