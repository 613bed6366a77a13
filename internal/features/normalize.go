package features

import (
	"math"
	"strings"
)

// ratingScaleColumns are divided by the rating pivot; problem and
// per-tag difficulty columns are divided by the problem rating pivot.
var ratingScaleColumns = []string{
	ColMaxRating,
	ColRecentDeltaAvg,
	ColAvgRatingRated,
	ColMedianRated,
	ColP25Rated,
	ColP75Rated,
}

// Normalize scales the rating-valued columns of a record in place and
// rounds them to 3 decimal places. The transform is uniform and
// monotonic: it never reorders two records whose raw values differ.
func Normalize(rec *Record, ratingPivot, problemRatingPivot int) {
	for _, col := range ratingScaleColumns {
		if v, ok := rec.Values[col]; ok {
			rec.Values[col] = round3(v / float64(ratingPivot))
		}
	}
	for col, v := range rec.Values {
		if col == ColProblemRating || strings.HasPrefix(col, acceptedMaxPrefix) {
			rec.Values[col] = round3(v / float64(problemRatingPivot))
		}
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
