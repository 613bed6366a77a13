package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/probsolve/cfdataset/internal/models"
)

// UpsertProblems stores problem metadata rows, replacing existing
// entries for the same (contest_id, problem_index).
func (s *Storage) UpsertProblems(problems []models.ProblemMeta) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO problem_meta
			(contest_id, problem_index, problem_index_raw, division_type, problem_rating, tags)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare problem insert: %w", err)
	}
	defer stmt.Close()

	for i := range problems {
		p := &problems[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid problem meta: %w", err)
		}
		tagsJSON, err := json.Marshal(p.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		if _, err := stmt.Exec(p.ContestID, p.ProblemIndex, p.ProblemIndexRaw,
			p.DivisionType, p.Rating, string(tagsJSON)); err != nil {
			return fmt.Errorf("failed to insert problem %d/%d: %w", p.ContestID, p.ProblemIndex, err)
		}
	}
	return tx.Commit()
}

// LoadProblems returns all stored problem metadata.
func (s *Storage) LoadProblems() ([]models.ProblemMeta, error) {
	rows, err := s.db.Query(`
		SELECT contest_id, problem_index, problem_index_raw, division_type, problem_rating, tags
		FROM problem_meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to query problems: %w", err)
	}
	defer rows.Close()

	var problems []models.ProblemMeta
	for rows.Next() {
		var p models.ProblemMeta
		var tagsJSON string
		if err := rows.Scan(&p.ContestID, &p.ProblemIndex, &p.ProblemIndexRaw,
			&p.DivisionType, &p.Rating, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan problem: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

// UpsertContestStatistic stores one per-contest aggregate row.
func (s *Storage) UpsertContestStatistic(cs *models.ContestStatistic) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO contest_statistics
			(contest_id, avg_rating_all, avg_rating_rated, median_rating_rated,
			 p25_rating_rated, p75_rating_rated, std_rating_rated,
			 count_total, count_unrated, unrated_ratio)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		cs.ContestID, cs.AvgRatingAll, cs.AvgRatingRated, cs.MedianRatingRated,
		cs.P25RatingRated, cs.P75RatingRated, cs.StdRatingRated,
		cs.CountTotal, cs.CountUnrated, cs.UnratedRatio,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contest statistic: %w", err)
	}
	return nil
}

// ContestStatistic returns the aggregate row of one contest, or nil
// when no row exists.
func (s *Storage) ContestStatistic(contestID int) (*models.ContestStatistic, error) {
	row := s.db.QueryRow(`
		SELECT contest_id, avg_rating_all, avg_rating_rated, median_rating_rated,
		       p25_rating_rated, p75_rating_rated, std_rating_rated,
		       count_total, count_unrated, unrated_ratio
		FROM contest_statistics WHERE contest_id = ?`, contestID)

	cs, err := scanContestStatistic(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contest statistic: %w", err)
	}
	return cs, nil
}

// LoadContestStatistics returns all aggregate rows keyed by contest id.
func (s *Storage) LoadContestStatistics() (map[int]*models.ContestStatistic, error) {
	rows, err := s.db.Query(`
		SELECT contest_id, avg_rating_all, avg_rating_rated, median_rating_rated,
		       p25_rating_rated, p75_rating_rated, std_rating_rated,
		       count_total, count_unrated, unrated_ratio
		FROM contest_statistics`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contest statistics: %w", err)
	}
	defer rows.Close()

	stats := make(map[int]*models.ContestStatistic)
	for rows.Next() {
		cs, err := scanContestStatistic(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contest statistic: %w", err)
		}
		stats[cs.ContestID] = cs
	}
	return stats, rows.Err()
}

func scanContestStatistic(scan func(...any) error) (*models.ContestStatistic, error) {
	var cs models.ContestStatistic
	err := scan(
		&cs.ContestID, &cs.AvgRatingAll, &cs.AvgRatingRated, &cs.MedianRatingRated,
		&cs.P25RatingRated, &cs.P75RatingRated, &cs.StdRatingRated,
		&cs.CountTotal, &cs.CountUnrated, &cs.UnratedRatio,
	)
	if err != nil {
		return nil, err
	}
	return &cs, nil
}
