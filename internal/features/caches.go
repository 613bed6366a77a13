package features

import "github.com/probsolve/cfdataset/internal/models"

type ratingKey struct {
	handle    string
	contestID int
}

// Caches hold per-batch memoization state for the engine. They are
// owned by the caller (the dataset assembler) and passed in by
// reference; lifecycle is an explicit method call, not module state.
type Caches struct {
	maxRating map[ratingKey]int
	deltaAvg  map[ratingKey]int
	accepted  map[string][]models.AcceptedProblem
}

// NewCaches creates empty caches.
func NewCaches() *Caches {
	c := &Caches{}
	c.Reset()
	return c
}

// Reset clears everything; called between chunks to bound memory.
func (c *Caches) Reset() {
	c.maxRating = make(map[ratingKey]int)
	c.deltaAvg = make(map[ratingKey]int)
	c.accepted = make(map[string][]models.AcceptedProblem)
}

// ResetRatings clears the rating memos; called when moving to a new
// handle, since the entries of one handle are useless for the next.
func (c *Caches) ResetRatings() {
	c.maxRating = make(map[ratingKey]int)
	c.deltaAvg = make(map[ratingKey]int)
}

// SetAccepted seeds the accepted-problems cache for one handle. The
// list must be sorted ascending by (contest_id, problem_index).
func (c *Caches) SetAccepted(handle string, accepted []models.AcceptedProblem) {
	c.accepted[handle] = accepted
}

// Accepted returns the cached accepted list of a handle.
func (c *Caches) Accepted(handle string) ([]models.AcceptedProblem, bool) {
	list, ok := c.accepted[handle]
	return list, ok
}
