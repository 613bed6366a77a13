// Package features derives per-outcome feature vectors from the rating
// ledger, the submission ledger, and the problem catalog. Every value
// is point-in-time correct: it depends only on ledger entries with a
// contest id strictly below the outcome's contest.
package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/probsolve/cfdataset/internal/catalog"
	"github.com/probsolve/cfdataset/internal/logger"
	"github.com/probsolve/cfdataset/internal/models"
	"github.com/probsolve/cfdataset/internal/storage"
)

// RatingBackfiller fetches the full rating history of a handle.
type RatingBackfiller interface {
	UserRating(ctx context.Context, handle string) ([]models.RatingEvent, error)
}

// Engine derives one feature record per submission outcome.
type Engine struct {
	store   *storage.Storage
	catalog *catalog.Catalog
	stats   map[int]*models.ContestStatistic
	caches  *Caches

	backfiller RatingBackfiller // nil disables rating backfill
	window     int
	tagGroups  []string

	ratingBackfillTried map[string]bool
}

// New creates an engine. The caches are owned by the caller and shared
// across Derive calls; stats is the full precomputed aggregate table.
func New(store *storage.Storage, cat *catalog.Catalog, stats map[int]*models.ContestStatistic,
	caches *Caches, backfiller RatingBackfiller, window int) *Engine {
	if window <= 0 {
		window = 5
	}
	return &Engine{
		store:               store,
		catalog:             cat,
		stats:               stats,
		caches:              caches,
		backfiller:          backfiller,
		window:              window,
		tagGroups:           catalog.TagGroups(),
		ratingBackfillTried: make(map[string]bool),
	}
}

// Columns returns the ordered output schema of this engine.
func (e *Engine) Columns() []string {
	return Columns(e.tagGroups)
}

// Derive computes the feature record for one outcome. Unresolvable
// outcomes return a SkipError; any other error is a data or storage
// failure the caller must not swallow.
func (e *Engine) Derive(ctx context.Context, out models.SubmissionOutcome) (*Record, error) {
	meta := e.catalog.Lookup(out.ContestID, out.ProblemIndex)
	if meta == nil {
		if err := e.catalog.Backfill(ctx, out.ContestID); err != nil {
			// A fetch failure degrades to a skip below; losing fetched
			// metadata on the way to storage must abort the run.
			if errors.Is(err, catalog.ErrPersist) {
				return nil, err
			}
			logger.Debug("Catalog backfill failed: %v", err)
		}
		meta = e.catalog.Lookup(out.ContestID, out.ProblemIndex)
	}
	if meta == nil {
		return nil, &SkipError{out.Handle, out.ContestID, out.ProblemIndex, ReasonMissingProblem}
	}

	cs := e.stats[out.ContestID]
	if cs == nil {
		return nil, fmt.Errorf("contest %d: missing contest statistics", out.ContestID)
	}

	entity, err := e.ratingEntity(ctx, out.Handle, out.ContestID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &SkipError{out.Handle, out.ContestID, out.ProblemIndex, ReasonNoRatingBaseline}
	}

	maxRating, err := e.maxRatingBefore(out.Handle, out.ContestID)
	if err != nil {
		return nil, err
	}
	deltaAvg, err := e.recentDeltaAvg(out.Handle, out.ContestID)
	if err != nil {
		return nil, err
	}
	tagMax, err := e.maxAcceptedRatingByTag(out.Handle, out.ContestID)
	if err != nil {
		return nil, err
	}

	values := map[string]float64{
		ColContestID:      float64(out.ContestID),
		ColProblemIndex:   float64(out.ProblemIndex),
		ColDivisionType:   float64(meta.DivisionType),
		ColProblemRating:  float64(meta.Rating),
		ColMaxRating:      float64(maxRating),
		ColRecentDeltaAvg: float64(deltaAvg),
		ColAvgRatingRated: float64(cs.AvgRatingRated),
		ColMedianRated:    float64(cs.MedianRatingRated),
		ColP25Rated:       float64(cs.P25RatingRated),
		ColP75Rated:       float64(cs.P75RatingRated),
		ColCountTotal:     float64(cs.CountTotal),
		ColCountUnrated:   float64(cs.CountUnrated),
		ColUnratedRatio:   cs.UnratedRatio,
		ColVerdict:        float64(out.Verdict),
	}
	for _, tag := range e.tagGroups {
		values[AcceptedMaxColumn(tag)] = float64(tagMax[tag])
		if meta.HasTag(tag) {
			values[ProblemTagColumn(tag)] = 1
		} else {
			values[ProblemTagColumn(tag)] = 0
		}
	}

	return &Record{
		Handle:       out.Handle,
		ContestID:    out.ContestID,
		ProblemIndex: out.ProblemIndex,
		Values:       values,
	}, nil
}

// ratingEntity resolves the handle's rating event at the pivot contest,
// backfilling the full rating history once per handle when the ledger
// has no entry at all.
func (e *Engine) ratingEntity(ctx context.Context, handle string, contestID int) (*models.RatingEvent, error) {
	entity, err := e.store.RatingAt(handle, contestID)
	if err != nil || entity != nil {
		return entity, err
	}

	has, err := e.store.HasRatingData(handle)
	if err != nil {
		return nil, err
	}
	if has || e.backfiller == nil || e.ratingBackfillTried[handle] {
		return nil, nil
	}
	e.ratingBackfillTried[handle] = true

	events, err := e.backfiller.UserRating(ctx, handle)
	if err != nil {
		logger.Warn("Rating backfill failed for %s: %v", handle, err)
		return nil, nil
	}
	if len(events) > 0 {
		if err := e.store.RecordRatingEvents(events); err != nil {
			return nil, err
		}
	}
	return e.store.RatingAt(handle, contestID)
}

// maxRatingBefore is memoized per (handle, contest) for the lifetime of
// the current batch caches.
func (e *Engine) maxRatingBefore(handle string, contestID int) (int, error) {
	key := ratingKey{handle, contestID}
	if v, ok := e.caches.maxRating[key]; ok {
		return v, nil
	}
	v, err := e.store.MaxRatingBefore(handle, contestID)
	if err != nil {
		return 0, err
	}
	e.caches.maxRating[key] = v
	return v, nil
}

func (e *Engine) recentDeltaAvg(handle string, contestID int) (int, error) {
	key := ratingKey{handle, contestID}
	if v, ok := e.caches.deltaAvg[key]; ok {
		return v, nil
	}
	v, err := e.store.RecentDeltaAvg(handle, contestID, e.window)
	if err != nil {
		return 0, err
	}
	e.caches.deltaAvg[key] = v
	return v, nil
}

// maxAcceptedRatingByTag scans the handle's accepted problems in
// ascending contest order, stopping at the first entry at or past the
// pivot, and keeps the maximum difficulty rating seen per tag group.
// Problems without catalog metadata are silently skipped.
func (e *Engine) maxAcceptedRatingByTag(handle string, contestID int) (map[string]int, error) {
	accepted, ok := e.caches.Accepted(handle)
	if !ok {
		var err error
		accepted, err = e.store.AcceptedByHandle(handle)
		if err != nil {
			return nil, err
		}
		e.caches.SetAccepted(handle, accepted)
	}

	tagMax := make(map[string]int)
	for _, p := range accepted {
		if p.ContestID >= contestID {
			break // list is ascending; nothing below the pivot remains
		}
		meta := e.catalog.Lookup(p.ContestID, p.ProblemIndex)
		if meta == nil {
			continue
		}
		for _, tag := range meta.Tags {
			updateMax(tagMax, tag, meta.Rating)
		}
	}
	return tagMax, nil
}

// updateMax merges a value into the mapping with default-0, keep-max
// semantics.
func updateMax(m map[string]int, key string, value int) {
	if value > m[key] {
		m[key] = value
	}
}
