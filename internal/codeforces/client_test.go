package codeforces

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, ClientConfig{
		SleepInterval:  time.Millisecond,
		MaxRetries:     3,
		RetryDelayBase: time.Millisecond,
	})
}

func TestClient_ContestList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contest.list" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("gym") != "false" {
			t.Errorf("gym param missing: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"status":"OK","result":[
			{"id":100,"name":"Codeforces Round (Div. 2)","phase":"FINISHED","startTimeSeconds":1700000000},
			{"id":101,"name":"Upcoming Round","phase":"BEFORE","startTimeSeconds":1800000000}
		]}`))
	})

	contests, err := c.ContestList(context.Background())
	if err != nil {
		t.Fatalf("ContestList: %v", err)
	}
	if len(contests) != 2 {
		t.Fatalf("got %d contests, want 2", len(contests))
	}
	if contests[0].ID != 100 || contests[0].Phase != "FINISHED" {
		t.Errorf("unexpected first contest: %+v", contests[0])
	}
}

func TestClient_ContestStandings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("participantTypes"); got != "CONTESTANT" {
			t.Errorf("participantTypes: got %s", got)
		}
		w.Write([]byte(`{"status":"OK","result":{
			"contest":{"id":100,"name":"Codeforces Round (Div. 2)"},
			"problems":[{"index":"A","rating":800,"tags":["math"]},{"index":"B","tags":["dp"]}],
			"rows":[{"party":{"members":[{"handle":"alice"}]},"problemResults":[{"points":500},{"points":0}]}]
		}}`))
	})

	st, err := c.ContestStandings(context.Background(), 100)
	if err != nil {
		t.Fatalf("ContestStandings: %v", err)
	}
	if st.Contest.Name != "Codeforces Round (Div. 2)" {
		t.Errorf("contest name: got %s", st.Contest.Name)
	}
	if len(st.Problems) != 2 || st.Problems[1].Rating != 0 {
		t.Errorf("problems not decoded: %+v", st.Problems)
	}
	if len(st.Rows) != 1 || st.Rows[0].Handle() != "alice" {
		t.Errorf("rows not decoded: %+v", st.Rows)
	}
	if st.Rows[0].ProblemResults[0].Points != 500 {
		t.Errorf("points: got %v", st.Rows[0].ProblemResults[0].Points)
	}
}

func TestClient_UserRating(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("handle"); got != "alice" {
			t.Errorf("handle: got %s", got)
		}
		w.Write([]byte(`{"status":"OK","result":[
			{"handle":"alice","contestId":100,"oldRating":0,"newRating":1200},
			{"handle":"alice","contestId":150,"oldRating":1200,"newRating":1350}
		]}`))
	})

	events, err := c.UserRating(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserRating: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].ContestID != 150 || events[1].OldRating != 1200 || events[1].NewRating != 1350 {
		t.Errorf("unexpected event: %+v", events[1])
	}
}

func TestClient_RetriesCallLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"status":"FAILED","comment":"Call limit exceeded"}`))
			return
		}
		w.Write([]byte(`{"status":"OK","result":[]}`))
	})

	if _, err := c.ContestList(context.Background()); err != nil {
		t.Fatalf("expected success after call limit retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("got %d calls, want 2", calls.Load())
	}
}

func TestClient_NonTransientFailureStops(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"status":"FAILED","comment":"contestId: Contest with id 99999 not found"}`))
	})

	_, err := c.ContestStandings(context.Background(), 99999)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("got %d calls for a permanent refusal, want 1", calls.Load())
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":"OK","result":[]}`))
	})

	if _, err := c.ContestList(context.Background()); err != nil {
		t.Fatalf("expected success after 5xx retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("got %d calls, want 3", calls.Load())
	}
}

func TestClient_ExhaustsRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.ContestList(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ContestList(ctx)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStandingsRow_Handle_Empty(t *testing.T) {
	var row StandingsRow
	if got := row.Handle(); got != "" {
		t.Errorf("empty row handle: got %q", got)
	}
}
