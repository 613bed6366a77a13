// Package models defines the core domain entities: rating events,
// submission outcomes, problem metadata, and contest aggregates.
package models

import (
	"errors"
	"time"
)

// RatingEvent is one entry of a user's rating history: the rating held
// before and after a single contest. Unique per (handle, contest_id)
// and immutable once stored.
type RatingEvent struct {
	Handle    string `json:"handle"`
	ContestID int    `json:"contest_id"`
	OldRating int    `json:"old_rating"`
	NewRating int    `json:"new_rating"`
}

// Validate checks rating event field constraints.
func (e *RatingEvent) Validate() error {
	if e.Handle == "" {
		return errors.New("rating event handle must not be empty")
	}
	if e.ContestID <= 0 {
		return errors.New("rating event contest ID must be positive")
	}
	if e.OldRating < 0 || e.NewRating < 0 {
		return errors.New("rating event ratings must not be negative")
	}
	return nil
}

// SubmissionOutcome is one (handle, contest, problem, verdict) fact.
// ProblemIndex is the 0-based position of the problem within the
// contest; ProblemIndexRaw is the display letter ("A", "B1", ...).
type SubmissionOutcome struct {
	Handle          string `json:"handle"`
	ContestID       int    `json:"contest_id"`
	ProblemIndex    int    `json:"problem_index"`
	ProblemIndexRaw string `json:"problem_index_raw"`
	Verdict         int    `json:"verdict"`
}

// Validate checks submission outcome field constraints.
func (o *SubmissionOutcome) Validate() error {
	if o.Handle == "" {
		return errors.New("outcome handle must not be empty")
	}
	if o.ContestID <= 0 {
		return errors.New("outcome contest ID must be positive")
	}
	if o.ProblemIndex < 0 {
		return errors.New("outcome problem index must not be negative")
	}
	if o.ProblemIndexRaw == "" {
		return errors.New("outcome raw problem index must not be empty")
	}
	if o.Verdict != 0 && o.Verdict != 1 {
		return errors.New("outcome verdict must be 0 or 1")
	}
	return nil
}

// AcceptedProblem identifies one accepted problem in a user's history.
type AcceptedProblem struct {
	ContestID    int
	ProblemIndex int
}

// ProblemMeta describes one problem of a contest: its rated difficulty,
// normalized tag groups, and the division tier of the hosting contest.
// Immutable after creation.
type ProblemMeta struct {
	ContestID       int      `json:"contest_id"`
	ProblemIndex    int      `json:"problem_index"`
	ProblemIndexRaw string   `json:"problem_index_raw"`
	DivisionType    int      `json:"division_type"`
	Rating          int      `json:"problem_rating"`
	Tags            []string `json:"tags"`
}

// HasTag reports whether the problem carries the given normalized tag.
func (p *ProblemMeta) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate checks problem metadata field constraints.
func (p *ProblemMeta) Validate() error {
	if p.ContestID <= 0 {
		return errors.New("problem contest ID must be positive")
	}
	if p.ProblemIndex < 0 {
		return errors.New("problem index must not be negative")
	}
	if p.Rating <= 0 {
		return errors.New("problem rating must be positive")
	}
	return nil
}

// ContestStatistic is a precomputed aggregate over the pre-contest
// ratings of all rated participants of one contest.
type ContestStatistic struct {
	ContestID         int     `json:"contest_id"`
	AvgRatingAll      int     `json:"avg_rating_all"`
	AvgRatingRated    int     `json:"avg_rating_rated_only"`
	MedianRatingRated int     `json:"median_rating_rated"`
	P25RatingRated    int     `json:"p25_rating_rated"`
	P75RatingRated    int     `json:"p75_rating_rated"`
	StdRatingRated    float64 `json:"std_rating_rated"`
	CountTotal        int     `json:"count_total"`
	CountUnrated      int     `json:"count_unrated"`
	UnratedRatio      float64 `json:"unrated_ratio"`
}

// Contest is one rated contest selected for ingestion.
type Contest struct {
	ID           int       `json:"contest_id"`
	Name         string    `json:"name"`
	DivisionType int       `json:"division_type"`
	StartTime    time.Time `json:"start_time"`
}

// Handle is one sampled user of the dataset population, with the
// maximum rating observed for stratification.
type Handle struct {
	Handle    string `json:"handle"`
	MaxRating int    `json:"max_rating"`
}
