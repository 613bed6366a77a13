package stats

import (
	"math"
	"testing"

	"github.com/probsolve/cfdataset/internal/models"
)

func change(old int) models.RatingEvent {
	return models.RatingEvent{Handle: "h", ContestID: 1, OldRating: old, NewRating: old}
}

func TestFromRatingChanges_Basic(t *testing.T) {
	changes := []models.RatingEvent{
		change(1000),
		change(1400),
		change(1800),
		change(0), // unrated newcomer
	}
	cs := FromRatingChanges(42, changes)

	if cs.ContestID != 42 {
		t.Errorf("contest id: got %d, want 42", cs.ContestID)
	}
	if cs.CountTotal != 4 {
		t.Errorf("total: got %d, want 4", cs.CountTotal)
	}
	if cs.CountUnrated != 1 {
		t.Errorf("unrated: got %d, want 1", cs.CountUnrated)
	}
	// Integer division: 4200/4 and 4200/3.
	if cs.AvgRatingAll != 1050 {
		t.Errorf("avg all: got %d, want 1050", cs.AvgRatingAll)
	}
	if cs.AvgRatingRated != 1400 {
		t.Errorf("avg rated: got %d, want 1400", cs.AvgRatingRated)
	}
	if cs.UnratedRatio != 0.25 {
		t.Errorf("unrated ratio: got %v, want 0.25", cs.UnratedRatio)
	}
}

func TestFromRatingChanges_Percentiles(t *testing.T) {
	// Sorted rated ratings: 1000 1100 1200 1300 1400 1500 1600 1700.
	var changes []models.RatingEvent
	for _, r := range []int{1500, 1000, 1700, 1200, 1400, 1100, 1600, 1300} {
		changes = append(changes, change(r))
	}
	cs := FromRatingChanges(1, changes)

	// Median at index 8/2=4, p25 at index 2, p75 at index 6.
	if cs.MedianRatingRated != 1400 {
		t.Errorf("median: got %d, want 1400", cs.MedianRatingRated)
	}
	if cs.P25RatingRated != 1200 {
		t.Errorf("p25: got %d, want 1200", cs.P25RatingRated)
	}
	if cs.P75RatingRated != 1600 {
		t.Errorf("p75: got %d, want 1600", cs.P75RatingRated)
	}
}

func TestFromRatingChanges_Std(t *testing.T) {
	changes := []models.RatingEvent{change(1300), change(1500)}
	cs := FromRatingChanges(1, changes)
	// avgRated = 1400; deviations +-100, std = 100.
	if math.Abs(cs.StdRatingRated-100) > 1e-9 {
		t.Errorf("std: got %v, want 100", cs.StdRatingRated)
	}
}

func TestFromRatingChanges_Empty(t *testing.T) {
	cs := FromRatingChanges(7, nil)
	if cs.CountTotal != 0 || cs.CountUnrated != 0 {
		t.Errorf("counts: got %d/%d, want 0/0", cs.CountTotal, cs.CountUnrated)
	}
	if cs.AvgRatingAll != 0 || cs.AvgRatingRated != 0 {
		t.Errorf("averages: got %d/%d, want 0/0", cs.AvgRatingAll, cs.AvgRatingRated)
	}
	if cs.MedianRatingRated != 0 || cs.P25RatingRated != 0 || cs.P75RatingRated != 0 {
		t.Error("percentiles should stay zero with no rated participants")
	}
	if cs.UnratedRatio != 0 {
		t.Errorf("unrated ratio: got %v, want 0", cs.UnratedRatio)
	}
}

func TestFromRatingChanges_AllUnrated(t *testing.T) {
	changes := []models.RatingEvent{change(0), change(0)}
	cs := FromRatingChanges(1, changes)
	if cs.UnratedRatio != 1 {
		t.Errorf("unrated ratio: got %v, want 1", cs.UnratedRatio)
	}
	if cs.StdRatingRated != 0 {
		t.Errorf("std: got %v, want 0", cs.StdRatingRated)
	}
	if cs.MedianRatingRated != 0 {
		t.Errorf("median: got %d, want 0", cs.MedianRatingRated)
	}
}

func TestFromRatingChanges_UnratedRatioRounded(t *testing.T) {
	changes := []models.RatingEvent{change(0), change(1200), change(1300)}
	cs := FromRatingChanges(1, changes)
	// 1/3 rounded to three decimals.
	if cs.UnratedRatio != 0.333 {
		t.Errorf("unrated ratio: got %v, want 0.333", cs.UnratedRatio)
	}
}
