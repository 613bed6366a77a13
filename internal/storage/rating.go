package storage

import (
	"database/sql"
	"fmt"

	"github.com/probsolve/cfdataset/internal/models"
)

// RecordRatingEvents inserts rating events idempotently: a duplicate
// (handle, contest_id) pair is a no-op.
func (s *Storage) RecordRatingEvents(events []models.RatingEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO rating_changes (handle, contest_id, old_rating, new_rating)
		VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare rating insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		e := &events[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("invalid rating event: %w", err)
		}
		if _, err := stmt.Exec(e.Handle, e.ContestID, e.OldRating, e.NewRating); err != nil {
			return fmt.Errorf("failed to insert rating event %s/%d: %w", e.Handle, e.ContestID, err)
		}
	}
	return tx.Commit()
}

// HasRatingData reports whether any rating event exists for the handle.
func (s *Storage) HasRatingData(handle string) (bool, error) {
	row := s.db.QueryRow(`SELECT 1 FROM rating_changes WHERE handle = ? LIMIT 1`, handle)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe rating data: %w", err)
	}
	return true, nil
}

// RatingAt returns the rating event of the handle at the given contest,
// or nil when the handle did not participate rated.
func (s *Storage) RatingAt(handle string, contestID int) (*models.RatingEvent, error) {
	row := s.db.QueryRow(`
		SELECT old_rating, new_rating FROM rating_changes
		WHERE handle = ? AND contest_id = ?`, handle, contestID)

	e := models.RatingEvent{Handle: handle, ContestID: contestID}
	err := row.Scan(&e.OldRating, &e.NewRating)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rating event: %w", err)
	}
	return &e, nil
}

// MaxRatingBefore returns the maximum of all old and new ratings across
// events strictly before contestID, or 0 when no prior event exists.
func (s *Storage) MaxRatingBefore(handle string, contestID int) (int, error) {
	row := s.db.QueryRow(`
		SELECT MAX(new_rating), MAX(old_rating) FROM rating_changes
		WHERE handle = ? AND contest_id < ?`, handle, contestID)

	var maxNew, maxOld sql.NullInt64
	if err := row.Scan(&maxNew, &maxOld); err != nil {
		return 0, fmt.Errorf("failed to query max rating: %w", err)
	}
	rating := 0
	if maxNew.Valid {
		rating = int(maxNew.Int64)
	}
	if maxOld.Valid && int(maxOld.Int64) > rating {
		rating = int(maxOld.Int64)
	}
	return rating, nil
}

// RecentDeltaAvg returns the truncated mean of rating deltas over the
// most recent window events strictly before contestID, most recent by
// descending contest id, or 0 when no prior event exists.
func (s *Storage) RecentDeltaAvg(handle string, contestID, window int) (int, error) {
	row := s.db.QueryRow(`
		SELECT AVG(new_rating - old_rating) FROM (
			SELECT new_rating, old_rating FROM rating_changes
			WHERE handle = ? AND contest_id < ?
			ORDER BY contest_id DESC LIMIT ?
		)`, handle, contestID, window)

	var avg sql.NullFloat64
	if err := row.Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to query delta average: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return int(avg.Float64), nil
}
