package features

// Base feature column names, in output order.
const (
	ColHandle         = "handle"
	ColContestID      = "contest_id"
	ColProblemIndex   = "problem_index"
	ColDivisionType   = "division_type"
	ColProblemRating  = "problem_rating"
	ColMaxRating      = "max_rating_before_contest"
	ColRecentDeltaAvg = "recent_delta_avg"
	ColAvgRatingRated = "avg_rating_rated_only"
	ColMedianRated    = "median_rating_rated"
	ColP25Rated       = "p25_rating_rated"
	ColP75Rated       = "p75_rating_rated"
	ColCountTotal     = "count_total"
	ColCountUnrated   = "count_unrated"
	ColUnratedRatio   = "unrated_ratio"
	ColVerdict        = "verdict"

	acceptedMaxPrefix = "accepted_max_rating_"
	problemTagPrefix  = "problem_tag_"
)

// Record is one derived feature vector plus the binary label. Values
// are keyed by column name; Handle is carried separately as the only
// non-numeric column.
type Record struct {
	Handle       string
	ContestID    int
	ProblemIndex int
	Values       map[string]float64
}

// Columns returns the full ordered schema for the given tag-group
// vocabulary: identifiers, ratings, contest aggregates, per-tag
// accepted maxima, one-hot tag membership, and the verdict label.
func Columns(tagGroups []string) []string {
	cols := []string{
		ColHandle,
		ColContestID,
		ColProblemIndex,
		ColDivisionType,
		ColProblemRating,
		ColMaxRating,
		ColRecentDeltaAvg,
		ColAvgRatingRated,
		ColMedianRated,
		ColP25Rated,
		ColP75Rated,
		ColCountTotal,
		ColCountUnrated,
		ColUnratedRatio,
	}
	for _, tag := range tagGroups {
		cols = append(cols, acceptedMaxPrefix+tag)
	}
	for _, tag := range tagGroups {
		cols = append(cols, problemTagPrefix+tag)
	}
	return append(cols, ColVerdict)
}

// AcceptedMaxColumn returns the per-tag accepted-maximum column name.
func AcceptedMaxColumn(tag string) string {
	return acceptedMaxPrefix + tag
}

// ProblemTagColumn returns the one-hot tag membership column name.
func ProblemTagColumn(tag string) string {
	return problemTagPrefix + tag
}
