package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/probsolve/cfdataset/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ratingEvent(handle string, contestID, oldRating, newRating int) models.RatingEvent {
	return models.RatingEvent{
		Handle:    handle,
		ContestID: contestID,
		OldRating: oldRating,
		NewRating: newRating,
	}
}

func TestStorage_RecordRatingEvents_Idempotent(t *testing.T) {
	s := newTestStorage(t)
	events := []models.RatingEvent{
		ratingEvent("tourist", 100, 1200, 1350),
		ratingEvent("tourist", 150, 1350, 1400),
	}
	if err := s.RecordRatingEvents(events); err != nil {
		t.Fatalf("RecordRatingEvents: %v", err)
	}
	// Re-recording the same batch must not change stored values.
	events[0].NewRating = 9999
	if err := s.RecordRatingEvents(events); err != nil {
		t.Fatalf("RecordRatingEvents (second): %v", err)
	}
	e, err := s.RatingAt("tourist", 100)
	if err != nil {
		t.Fatalf("RatingAt: %v", err)
	}
	if e == nil || e.NewRating != 1350 {
		t.Errorf("duplicate insert overwrote row: got %+v", e)
	}
}

func TestStorage_RecordRatingEvents_Invalid(t *testing.T) {
	s := newTestStorage(t)
	err := s.RecordRatingEvents([]models.RatingEvent{ratingEvent("", 100, 0, 100)})
	if err == nil {
		t.Error("expected error for empty handle")
	}
}

func TestStorage_RatingAt_Absent(t *testing.T) {
	s := newTestStorage(t)
	e, err := s.RatingAt("nobody", 100)
	if err != nil {
		t.Fatalf("RatingAt: %v", err)
	}
	if e != nil {
		t.Errorf("expected nil for absent event, got %+v", e)
	}
}

func TestStorage_HasRatingData(t *testing.T) {
	s := newTestStorage(t)
	has, err := s.HasRatingData("tourist")
	if err != nil {
		t.Fatalf("HasRatingData: %v", err)
	}
	if has {
		t.Error("expected no rating data before insert")
	}
	if err := s.RecordRatingEvents([]models.RatingEvent{ratingEvent("tourist", 100, 0, 1200)}); err != nil {
		t.Fatalf("RecordRatingEvents: %v", err)
	}
	has, err = s.HasRatingData("tourist")
	if err != nil {
		t.Fatalf("HasRatingData: %v", err)
	}
	if !has {
		t.Error("expected rating data after insert")
	}
}

func TestStorage_MaxRatingBefore(t *testing.T) {
	s := newTestStorage(t)
	events := []models.RatingEvent{
		ratingEvent("alice", 100, 1200, 1400),
		ratingEvent("alice", 150, 1400, 1300),
		ratingEvent("alice", 200, 1300, 1500),
	}
	if err := s.RecordRatingEvents(events); err != nil {
		t.Fatalf("RecordRatingEvents: %v", err)
	}

	tests := []struct {
		name      string
		contestID int
		want      int
	}{
		{"no prior events", 100, 0},
		{"one prior event", 150, 1400},
		{"pivot excluded", 200, 1400},
		{"all events prior", 999, 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.MaxRatingBefore("alice", tt.contestID)
			if err != nil {
				t.Fatalf("MaxRatingBefore: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStorage_RecentDeltaAvg(t *testing.T) {
	s := newTestStorage(t)
	events := []models.RatingEvent{
		ratingEvent("bob", 100, 1000, 1050),
		ratingEvent("bob", 150, 1050, 1200),
	}
	if err := s.RecordRatingEvents(events); err != nil {
		t.Fatalf("RecordRatingEvents: %v", err)
	}

	// Deltas before contest 200 are +50 and +150, mean 100.
	got, err := s.RecentDeltaAvg("bob", 200, 5)
	if err != nil {
		t.Fatalf("RecentDeltaAvg: %v", err)
	}
	if got != 100 {
		t.Errorf("got %d, want 100", got)
	}

	// Window 1 keeps only the most recent delta (+150).
	got, err = s.RecentDeltaAvg("bob", 200, 1)
	if err != nil {
		t.Fatalf("RecentDeltaAvg: %v", err)
	}
	if got != 150 {
		t.Errorf("windowed: got %d, want 150", got)
	}

	// No prior events yields 0.
	got, err = s.RecentDeltaAvg("bob", 100, 5)
	if err != nil {
		t.Fatalf("RecentDeltaAvg: %v", err)
	}
	if got != 0 {
		t.Errorf("empty history: got %d, want 0", got)
	}
}

func outcome(handle string, contestID, problemIndex, verdict int) models.SubmissionOutcome {
	return models.SubmissionOutcome{
		Handle:          handle,
		ContestID:       contestID,
		ProblemIndex:    problemIndex,
		ProblemIndexRaw: string(rune('A' + problemIndex)),
		Verdict:         verdict,
	}
}

func TestStorage_RecordOutcomes_Idempotent(t *testing.T) {
	s := newTestStorage(t)
	outcomes := []models.SubmissionOutcome{
		outcome("carol", 100, 0, 1),
		outcome("carol", 100, 1, 0),
	}
	if err := s.RecordOutcomes(outcomes); err != nil {
		t.Fatalf("RecordOutcomes: %v", err)
	}
	outcomes[0].Verdict = 0
	if err := s.RecordOutcomes(outcomes); err != nil {
		t.Fatalf("RecordOutcomes (second): %v", err)
	}
	got, err := s.OutcomesForHandle("carol")
	if err != nil {
		t.Fatalf("OutcomesForHandle: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(got))
	}
	if got[0].Verdict != 1 {
		t.Errorf("duplicate insert overwrote verdict: got %d", got[0].Verdict)
	}
}

func TestStorage_OutcomesForHandle_Ordering(t *testing.T) {
	s := newTestStorage(t)
	outcomes := []models.SubmissionOutcome{
		outcome("dave", 200, 1, 1),
		outcome("dave", 100, 2, 0),
		outcome("dave", 200, 0, 1),
		outcome("dave", 100, 0, 1),
	}
	if err := s.RecordOutcomes(outcomes); err != nil {
		t.Fatalf("RecordOutcomes: %v", err)
	}
	got, err := s.OutcomesForHandle("dave")
	if err != nil {
		t.Fatalf("OutcomesForHandle: %v", err)
	}
	want := [][2]int{{100, 0}, {100, 2}, {200, 0}, {200, 1}}
	if len(got) != len(want) {
		t.Fatalf("got %d outcomes, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].ContestID != w[0] || got[i].ProblemIndex != w[1] {
			t.Errorf("row %d: got (%d,%d), want (%d,%d)",
				i, got[i].ContestID, got[i].ProblemIndex, w[0], w[1])
		}
	}
}

func TestStorage_AcceptedBefore(t *testing.T) {
	s := newTestStorage(t)
	outcomes := []models.SubmissionOutcome{
		outcome("eve", 90, 0, 1),
		outcome("eve", 100, 0, 0),
		outcome("eve", 100, 1, 1),
		outcome("eve", 150, 0, 1),
	}
	if err := s.RecordOutcomes(outcomes); err != nil {
		t.Fatalf("RecordOutcomes: %v", err)
	}

	accepted, err := s.AcceptedBefore("eve", 150)
	if err != nil {
		t.Fatalf("AcceptedBefore: %v", err)
	}
	// Contest 150 itself is excluded, rejected rows are excluded.
	want := [][2]int{{90, 0}, {100, 1}}
	if len(accepted) != len(want) {
		t.Fatalf("got %d accepted, want %d", len(accepted), len(want))
	}
	for i, w := range want {
		if accepted[i].ContestID != w[0] || accepted[i].ProblemIndex != w[1] {
			t.Errorf("row %d: got (%d,%d), want (%d,%d)",
				i, accepted[i].ContestID, accepted[i].ProblemIndex, w[0], w[1])
		}
	}
}

func TestStorage_AllAcceptedByHandle(t *testing.T) {
	s := newTestStorage(t)
	outcomes := []models.SubmissionOutcome{
		outcome("u1", 100, 0, 1),
		outcome("u1", 200, 0, 1),
		outcome("u2", 100, 1, 1),
		outcome("u2", 100, 2, 0),
	}
	if err := s.RecordOutcomes(outcomes); err != nil {
		t.Fatalf("RecordOutcomes: %v", err)
	}
	grouped, err := s.AllAcceptedByHandle()
	if err != nil {
		t.Fatalf("AllAcceptedByHandle: %v", err)
	}
	if len(grouped["u1"]) != 2 {
		t.Errorf("u1: got %d accepted, want 2", len(grouped["u1"]))
	}
	if len(grouped["u2"]) != 1 {
		t.Errorf("u2: got %d accepted, want 1", len(grouped["u2"]))
	}
}

func TestStorage_UpsertAndLoadProblems(t *testing.T) {
	s := newTestStorage(t)
	problems := []models.ProblemMeta{
		{ContestID: 100, ProblemIndex: 0, ProblemIndexRaw: "A", DivisionType: 2, Rating: 800, Tags: []string{"implementation"}},
		{ContestID: 100, ProblemIndex: 1, ProblemIndexRaw: "B", DivisionType: 2, Rating: 1200, Tags: []string{"dp", "math"}},
	}
	if err := s.UpsertProblems(problems); err != nil {
		t.Fatalf("UpsertProblems: %v", err)
	}

	// Replacing a row updates it in place.
	problems[1].Rating = 1300
	if err := s.UpsertProblems(problems[1:]); err != nil {
		t.Fatalf("UpsertProblems (replace): %v", err)
	}

	loaded, err := s.LoadProblems()
	if err != nil {
		t.Fatalf("LoadProblems: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("got %d problems, want 2", len(loaded))
	}
	for _, p := range loaded {
		if p.ProblemIndex == 1 {
			if p.Rating != 1300 {
				t.Errorf("rating not replaced: got %d", p.Rating)
			}
			if len(p.Tags) != 2 || p.Tags[0] != "dp" {
				t.Errorf("tags roundtrip failed: got %v", p.Tags)
			}
		}
	}
}

func TestStorage_ContestStatistic(t *testing.T) {
	s := newTestStorage(t)

	got, err := s.ContestStatistic(100)
	if err != nil {
		t.Fatalf("ContestStatistic: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for absent statistic, got %+v", got)
	}

	cs := &models.ContestStatistic{
		ContestID:         100,
		AvgRatingAll:      1400,
		AvgRatingRated:    1500,
		MedianRatingRated: 1450,
		P25RatingRated:    1200,
		P75RatingRated:    1700,
		StdRatingRated:    312.5,
		CountTotal:        1000,
		CountUnrated:      100,
		UnratedRatio:      0.1,
	}
	if err := s.UpsertContestStatistic(cs); err != nil {
		t.Fatalf("UpsertContestStatistic: %v", err)
	}
	got, err = s.ContestStatistic(100)
	if err != nil {
		t.Fatalf("ContestStatistic: %v", err)
	}
	if got == nil || got.MedianRatingRated != 1450 || got.UnratedRatio != 0.1 {
		t.Errorf("statistic roundtrip failed: got %+v", got)
	}

	all, err := s.LoadContestStatistics()
	if err != nil {
		t.Fatalf("LoadContestStatistics: %v", err)
	}
	if len(all) != 1 || all[100] == nil {
		t.Errorf("expected one statistic keyed by contest id, got %v", all)
	}
}

func TestStorage_UpsertContestsAndList(t *testing.T) {
	s := newTestStorage(t)
	now := time.Unix(1700000000, 0)
	contests := []models.Contest{
		{ID: 200, Name: "Codeforces Round (Div. 2)", DivisionType: 2, StartTime: now},
		{ID: 100, Name: "Codeforces Round (Div. 1)", DivisionType: 1, StartTime: now.Add(-time.Hour)},
	}
	if err := s.UpsertContests(contests); err != nil {
		t.Fatalf("UpsertContests: %v", err)
	}
	got, err := s.Contests()
	if err != nil {
		t.Fatalf("Contests: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d contests, want 2", len(got))
	}
	if got[0].ID != 100 || got[1].ID != 200 {
		t.Errorf("contests not ordered by id: got %d, %d", got[0].ID, got[1].ID)
	}
	if !got[1].StartTime.Equal(now) {
		t.Errorf("start time roundtrip failed: got %v", got[1].StartTime)
	}
}

func TestStorage_ReplaceHandles(t *testing.T) {
	s := newTestStorage(t)
	first := []models.Handle{
		{Handle: "zeta", MaxRating: 1500},
		{Handle: "alpha", MaxRating: 2100},
	}
	if err := s.ReplaceHandles(first); err != nil {
		t.Fatalf("ReplaceHandles: %v", err)
	}
	second := []models.Handle{{Handle: "beta", MaxRating: 900}}
	if err := s.ReplaceHandles(second); err != nil {
		t.Fatalf("ReplaceHandles (second): %v", err)
	}
	got, err := s.SampledHandles()
	if err != nil {
		t.Fatalf("SampledHandles: %v", err)
	}
	if len(got) != 1 || got[0] != "beta" {
		t.Errorf("replace did not clear old population: got %v", got)
	}
}

func TestStorage_ManyHandles(t *testing.T) {
	s := newTestStorage(t)
	var handles []models.Handle
	for i := 0; i < 20; i++ {
		handles = append(handles, models.Handle{Handle: fmt.Sprintf("user-%02d", i), MaxRating: 1000 + i})
	}
	if err := s.ReplaceHandles(handles); err != nil {
		t.Fatalf("ReplaceHandles: %v", err)
	}
	got, err := s.SampledHandles()
	if err != nil {
		t.Fatalf("SampledHandles: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("got %d handles, want 20", len(got))
	}
	if got[0] != "user-00" || got[19] != "user-19" {
		t.Errorf("handles not ordered: got %s .. %s", got[0], got[19])
	}
}
