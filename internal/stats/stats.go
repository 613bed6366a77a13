// Package stats aggregates per-contest rating distributions.
package stats

import (
	"math"
	"sort"

	"github.com/probsolve/cfdataset/internal/models"
)

// FromRatingChanges aggregates the pre-contest ratings of all rated
// participants of one contest into a ContestStatistic. Participants
// with an old rating of 0 count as unrated; median and percentiles are
// taken by index over the sorted rated-only ratings.
func FromRatingChanges(contestID int, changes []models.RatingEvent) *models.ContestStatistic {
	ratingSumAll := 0
	unrated := 0
	ratings := make([]int, 0, len(changes))
	for i := range changes {
		old := changes[i].OldRating
		ratingSumAll += old
		if old != 0 {
			ratings = append(ratings, old)
		} else {
			unrated++
		}
	}
	sort.Ints(ratings)

	total := len(changes)
	avgAll := ratingSumAll / max(1, total)
	avgRated := ratingSumAll / max(1, total-unrated)

	sumOfVariance := 0.0
	for _, r := range ratings {
		d := float64(r - avgRated)
		sumOfVariance += d * d
	}
	std := math.Sqrt(sumOfVariance / float64(max(total-unrated, 1)))

	cs := &models.ContestStatistic{
		ContestID:      contestID,
		AvgRatingAll:   avgAll,
		AvgRatingRated: avgRated,
		StdRatingRated: std,
		CountTotal:     total,
		CountUnrated:   unrated,
		UnratedRatio:   math.Round(float64(unrated)/float64(max(1, total))*1000) / 1000,
	}
	if len(ratings) > 0 {
		cs.MedianRatingRated = ratings[len(ratings)/2]
		cs.P25RatingRated = ratings[int(float64(len(ratings))*0.25)]
		cs.P75RatingRated = ratings[int(float64(len(ratings))*0.75)]
	}
	return cs
}
