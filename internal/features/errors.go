package features

import (
	"errors"
	"fmt"
)

// Skip reasons for unresolvable outcomes.
const (
	ReasonMissingProblem   = "problem metadata missing"
	ReasonNoRatingBaseline = "no rating baseline"
)

// SkipError reports that one outcome is unresolvable and must be
// skipped. It carries the identifying key for logging; it is never
// fatal for a batch.
type SkipError struct {
	Handle       string
	ContestID    int
	ProblemIndex int
	Reason       string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skip %s/%d/%d: %s", e.Handle, e.ContestID, e.ProblemIndex, e.Reason)
}

// AsSkip unwraps err into a SkipError, or returns nil when err is a
// real failure.
func AsSkip(err error) *SkipError {
	var se *SkipError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
