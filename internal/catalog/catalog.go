// Package catalog maps (contest, problem) pairs to problem metadata,
// with explicit on-demand backfill from the Codeforces API.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/probsolve/cfdataset/internal/codeforces"
	"github.com/probsolve/cfdataset/internal/logger"
	"github.com/probsolve/cfdataset/internal/models"
	"github.com/probsolve/cfdataset/internal/storage"
)

// ErrPersist reports that fetched problem metadata could not be written
// to storage. A fetch failure only loses one contest; this loses data
// integrity, so callers must treat it as fatal rather than skip.
var ErrPersist = errors.New("catalog: failed to persist backfill")

// Fetcher is the API surface the catalog needs for backfills.
type Fetcher interface {
	ContestProblems(ctx context.Context, contestID int) (*codeforces.Standings, error)
}

type problemKey struct {
	contestID    int
	problemIndex int
}

// Catalog is an in-memory problem metadata index warmed from storage.
// Lookup is a pure read; Backfill makes the fetch side effect explicit
// at the call site and is bounded to one attempt per contest per
// process lifetime.
type Catalog struct {
	store   *storage.Storage
	fetcher Fetcher

	problems map[problemKey]*models.ProblemMeta
	fetched  map[int]bool // contests backfilled this process
	failed   map[int]bool // contests whose backfill already failed
}

// New builds a catalog warmed from all stored problem metadata.
// fetcher may be nil, which disables backfills.
func New(store *storage.Storage, fetcher Fetcher) (*Catalog, error) {
	stored, err := store.LoadProblems()
	if err != nil {
		return nil, fmt.Errorf("failed to warm catalog: %w", err)
	}
	c := &Catalog{
		store:    store,
		fetcher:  fetcher,
		problems: make(map[problemKey]*models.ProblemMeta, len(stored)),
		fetched:  make(map[int]bool),
		failed:   make(map[int]bool),
	}
	for i := range stored {
		p := stored[i]
		c.problems[problemKey{p.ContestID, p.ProblemIndex}] = &p
	}
	return c, nil
}

// Lookup returns the metadata of one problem, or nil when unknown.
// It never touches the network; callers use Backfill on a miss.
func (c *Catalog) Lookup(contestID, problemIndex int) *models.ProblemMeta {
	return c.problems[problemKey{contestID, problemIndex}]
}

// Backfill fetches and stores metadata for all problems of a contest.
// Repeated calls for the same contest are no-ops, whether the first
// attempt succeeded or failed.
func (c *Catalog) Backfill(ctx context.Context, contestID int) error {
	if c.fetched[contestID] {
		return nil
	}
	if c.failed[contestID] {
		return fmt.Errorf("contest %d: backfill already failed", contestID)
	}
	if c.fetcher == nil {
		c.failed[contestID] = true
		return fmt.Errorf("contest %d: no fetcher configured", contestID)
	}

	st, err := c.fetcher.ContestProblems(ctx, contestID)
	if err != nil {
		c.failed[contestID] = true
		return fmt.Errorf("contest %d: backfill fetch failed: %w", contestID, err)
	}

	metas := ProblemMetas(contestID, st.Contest.Name, st.Problems)
	if len(metas) == 0 {
		c.failed[contestID] = true
		return fmt.Errorf("contest %d: no rated problems in response", contestID)
	}
	if err := c.store.UpsertProblems(metas); err != nil {
		return fmt.Errorf("contest %d: %w: %v", contestID, ErrPersist, err)
	}
	for i := range metas {
		p := metas[i]
		c.problems[problemKey{p.ContestID, p.ProblemIndex}] = &p
	}
	c.fetched[contestID] = true
	logger.Debug("Backfilled %d problems for contest %d", len(metas), contestID)
	return nil
}

// ProblemMetas converts an API problem list into metadata rows for the
// whole contest. Problems without a difficulty rating are skipped.
func ProblemMetas(contestID int, contestName string, problems []codeforces.Problem) []models.ProblemMeta {
	division := DivisionType(contestName)
	metas := make([]models.ProblemMeta, 0, len(problems))
	for i, p := range problems {
		if p.Rating == 0 {
			logger.Debug("Skipping unrated problem %d/%d", contestID, i)
			continue
		}
		metas = append(metas, models.ProblemMeta{
			ContestID:       contestID,
			ProblemIndex:    i,
			ProblemIndexRaw: p.Index,
			DivisionType:    division,
			Rating:          p.Rating,
			Tags:            NormalizeTags(p.Tags),
		})
	}
	return metas
}
