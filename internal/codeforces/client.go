// Package codeforces provides a rate-limited client for the Codeforces REST API.
package codeforces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/probsolve/cfdataset/internal/metrics"
	"github.com/probsolve/cfdataset/internal/models"
)

// ErrUnavailable reports that the API could not produce the requested
// data after all retries. Callers treat it as "data unavailable" and
// skip, never as a fatal error.
var ErrUnavailable = errors.New("codeforces: data unavailable")

// Client provides access to the Codeforces API. Every call is spaced
// by a fixed inter-call delay; callers are expected to be sequential.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sleep      time.Duration
	maxRetries int
	retryDelay time.Duration

	standingsTimeout time.Duration
	lastCall         time.Time
}

// ClientConfig holds retry and timing behavior.
type ClientConfig struct {
	SleepInterval    time.Duration
	MaxRetries       int
	RetryDelayBase   time.Duration
	StandingsTimeout time.Duration
}

// NewClient creates a new Codeforces client.
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.SleepInterval <= 0 {
		cfg.SleepInterval = 2100 * time.Millisecond
	}
	if cfg.StandingsTimeout <= 0 {
		cfg.StandingsTimeout = timeout
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		httpClient:       &http.Client{Timeout: cfg.StandingsTimeout},
		sleep:            cfg.SleepInterval,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       cfg.RetryDelayBase,
		standingsTimeout: cfg.StandingsTimeout,
	}
}

// envelope is the uniform Codeforces API response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment,omitempty"`
	Result  json.RawMessage `json:"result"`
}

// Contest is one entry of the contest.list endpoint.
type Contest struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Phase            string `json:"phase"`
	StartTimeSeconds int64  `json:"startTimeSeconds"`
}

// Problem is one problem of a contest as reported by contest.standings.
// Rating is 0 when the problem has no difficulty rating yet.
type Problem struct {
	Index  string   `json:"index"`
	Rating int      `json:"rating"`
	Tags   []string `json:"tags"`
}

// RatedUser is one entry of the user.ratedList endpoint.
type RatedUser struct {
	Handle    string `json:"handle"`
	MaxRating int    `json:"maxRating"`
}

// Standings holds the decoded contest.standings result.
type Standings struct {
	Contest  Contest        `json:"contest"`
	Problems []Problem      `json:"problems"`
	Rows     []StandingsRow `json:"rows"`
}

// StandingsRow is one participant row of contest.standings.
type StandingsRow struct {
	Party struct {
		Members []struct {
			Handle string `json:"handle"`
		} `json:"members"`
	} `json:"party"`
	ProblemResults []struct {
		Points float64 `json:"points"`
	} `json:"problemResults"`
}

// Handle returns the handle of the first party member, or "".
func (r *StandingsRow) Handle() string {
	if len(r.Party.Members) == 0 {
		return ""
	}
	return r.Party.Members[0].Handle
}

type ratingChange struct {
	Handle    string `json:"handle"`
	ContestID int    `json:"contestId"`
	OldRating int    `json:"oldRating"`
	NewRating int    `json:"newRating"`
}

// ContestList fetches all non-gym contests, including finished phases.
func (c *Client) ContestList(ctx context.Context) ([]Contest, error) {
	raw, err := c.getResult(ctx, "contest.list", url.Values{"gym": {"false"}})
	if err != nil {
		return nil, err
	}
	var contests []Contest
	if err := json.Unmarshal(raw, &contests); err != nil {
		return nil, fmt.Errorf("failed to decode contest list: %w", err)
	}
	return contests, nil
}

// ContestProblems fetches the problem list of one contest without
// standings rows (from=1, count=1 keeps the response small).
func (c *Client) ContestProblems(ctx context.Context, contestID int) (*Standings, error) {
	q := url.Values{
		"contestId":      {fmt.Sprintf("%d", contestID)},
		"asManager":      {"false"},
		"showUnofficial": {"false"},
		"from":           {"1"},
		"count":          {"1"},
	}
	return c.standings(ctx, q)
}

// ContestStandings fetches the full official standings of one contest.
func (c *Client) ContestStandings(ctx context.Context, contestID int) (*Standings, error) {
	q := url.Values{
		"contestId":        {fmt.Sprintf("%d", contestID)},
		"asManager":        {"false"},
		"showUnofficial":   {"false"},
		"participantTypes": {"CONTESTANT"},
	}
	return c.standings(ctx, q)
}

func (c *Client) standings(ctx context.Context, q url.Values) (*Standings, error) {
	raw, err := c.getResult(ctx, "contest.standings", q)
	if err != nil {
		return nil, err
	}
	var st Standings
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("failed to decode standings: %w", err)
	}
	return &st, nil
}

// UserRating fetches the full rating history of a handle, ordered by
// contest, mapped into rating events.
func (c *Client) UserRating(ctx context.Context, handle string) ([]models.RatingEvent, error) {
	raw, err := c.getResult(ctx, "user.rating", url.Values{"handle": {handle}})
	if err != nil {
		return nil, err
	}
	return decodeRatingEvents(raw)
}

// ContestRatingChanges fetches the rating changes of all rated
// participants of one contest.
func (c *Client) ContestRatingChanges(ctx context.Context, contestID int) ([]models.RatingEvent, error) {
	q := url.Values{"contestId": {fmt.Sprintf("%d", contestID)}}
	raw, err := c.getResult(ctx, "contest.ratingChanges", q)
	if err != nil {
		return nil, err
	}
	return decodeRatingEvents(raw)
}

// RatedUsersByContest fetches every user ever rated that participated
// in the given contest.
func (c *Client) RatedUsersByContest(ctx context.Context, contestID int) ([]RatedUser, error) {
	q := url.Values{
		"activeOnly":     {"false"},
		"includeRetired": {"true"},
		"contestId":      {fmt.Sprintf("%d", contestID)},
	}
	raw, err := c.getResult(ctx, "user.ratedList", q)
	if err != nil {
		return nil, err
	}
	var users []RatedUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("failed to decode rated users: %w", err)
	}
	return users, nil
}

func decodeRatingEvents(raw json.RawMessage) ([]models.RatingEvent, error) {
	var changes []ratingChange
	if err := json.Unmarshal(raw, &changes); err != nil {
		return nil, fmt.Errorf("failed to decode rating changes: %w", err)
	}
	events := make([]models.RatingEvent, 0, len(changes))
	for _, ch := range changes {
		events = append(events, models.RatingEvent{
			Handle:    ch.Handle,
			ContestID: ch.ContestID,
			OldRating: ch.OldRating,
			NewRating: ch.NewRating,
		})
	}
	return events, nil
}

// throttle enforces the fixed inter-call delay.
func (c *Client) throttle() {
	if !c.lastCall.IsZero() {
		if wait := c.sleep - time.Since(c.lastCall); wait > 0 {
			time.Sleep(wait)
		}
	}
	c.lastCall = time.Now()
}

// getResult performs a GET against one endpoint and unwraps the API
// envelope, retrying transient failures a bounded number of times.
func (c *Client) getResult(ctx context.Context, endpoint string, q url.Values) (json.RawMessage, error) {
	u := c.baseURL + "/" + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		c.throttle()
		metrics.APICalls.WithLabelValues(endpoint).Inc()

		raw, err := c.doRequest(ctx, u)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		metrics.FetchFailures.WithLabelValues(endpoint).Inc()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var se *statusError
		if errors.As(err, &se) {
			if strings.Contains(se.comment, "Call limit exceeded") {
				time.Sleep(c.sleep)
				continue
			}
			// Non-transient API refusal: retrying will not help.
			break
		}
		time.Sleep(c.retryDelay * time.Duration(i+1))
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, lastErr)
}

// statusError reports a decoded envelope with status != OK.
type statusError struct {
	comment string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("api status FAILED: %s", e.comment)
}

func (c *Client) doRequest(ctx context.Context, urlStr string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("server error: %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Status != "OK" {
		return nil, &statusError{comment: env.Comment}
	}
	return env.Result, nil
}
