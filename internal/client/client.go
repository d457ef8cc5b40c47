package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"krosswordle/internal/puzzle"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	maxErrorBody      = 512
)

// Config controls how the client reaches the KrossWordle API
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	// MaxRetries bounds retries of reads that hit network failures or 5xx answers; zero uses
	// the default
	MaxRetries uint64
	// InitialInterval is the first retry delay; zero uses the backoff package default
	InitialInterval time.Duration
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("krosswordle api: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Remote implements puzzle.Remote over the HTTP API with a bearer token. Reads are retried
// with exponential backoff. Writes go out once: the game's next autosave, or the next load
// of an unscored solved session, is their retry.
type Remote struct {
	baseURL         string
	token           string
	httpClient      httpDoer
	maxRetries      uint64
	initialInterval time.Duration
}

var _ puzzle.Remote = (*Remote)(nil)

// NewRemote constructs a client with the provided configuration
func NewRemote(cfg Config) *Remote {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	return &Remote{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		token:           cfg.Token,
		httpClient:      resolveHTTPClient(cfg.HTTPClient),
		maxRetries:      maxRetries,
		initialInterval: cfg.InitialInterval,
	}
}

func resolveHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

// FetchToken exchanges an email and password for a bearer token
func FetchToken(ctx context.Context, cfg Config, email, password string) (string, time.Time, error) {
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := NewRemote(cfg).do(ctx, http.MethodPost, "/api/auth/token", nil, body, &resp); err != nil {
		return "", time.Time{}, err
	}
	return resp.Token, resp.ExpiresAt, nil
}

func (c *Remote) StartSession(ctx context.Context, levelID int64, grid puzzle.Grid, powers []puzzle.PowerState) error {
	body := struct {
		LevelID int64               `json:"levelId"`
		Grid    puzzle.Grid         `json:"grid,omitempty"`
		Powers  []puzzle.PowerState `json:"powers,omitempty"`
	}{levelID, grid.Persisted(), powers}
	return c.do(ctx, http.MethodPost, "/api/puzzle/session", nil, body, nil)
}

func (c *Remote) GetSession(ctx context.Context, date string) (*puzzle.SessionState, error) {
	var state puzzle.SessionState
	if err := c.do(ctx, http.MethodGet, "/api/puzzle/session", dateQuery("date", date), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Remote) SaveProgress(ctx context.Context, grid puzzle.Grid, powers []puzzle.PowerState, elapsedSeconds int) error {
	body := struct {
		Grid           puzzle.Grid         `json:"grid"`
		Powers         []puzzle.PowerState `json:"powers,omitempty"`
		ElapsedSeconds int                 `json:"elapsedSeconds"`
	}{grid.Persisted(), powers, elapsedSeconds}
	return c.do(ctx, http.MethodPut, "/api/puzzle/session/progress", nil, body, nil)
}

func (c *Remote) SaveScore(ctx context.Context, levelID int64, completionTimeSeconds int, playDate string) error {
	body := struct {
		LevelID               int64  `json:"levelId"`
		CompletionTimeSeconds int    `json:"completionTimeSeconds"`
		PlayDate              string `json:"playDate"`
	}{levelID, completionTimeSeconds, playDate}
	return c.do(ctx, http.MethodPost, "/api/puzzle/score", nil, body, nil)
}

// GetLevel returns nil, nil when the server has no level for date
func (c *Remote) GetLevel(ctx context.Context, date string) (*puzzle.Level, error) {
	var level puzzle.Level
	found := false
	err := c.doFunc(ctx, http.MethodGet, "/api/puzzle/level", dateQuery("date", date), nil, func(resp *http.Response) error {
		if resp.StatusCode == http.StatusNoContent {
			return nil
		}
		found = true
		return json.NewDecoder(resp.Body).Decode(&level)
	})
	if err != nil || !found {
		return nil, err
	}
	return &level, nil
}

func (c *Remote) GetLeaderboard(ctx context.Context, month string) ([]puzzle.LeaderboardEntry, error) {
	var entries []puzzle.LeaderboardEntry
	if err := c.do(ctx, http.MethodGet, "/api/puzzle/leaderboard", dateQuery("month", month), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetWinners returns the month's podium and prize
func (c *Remote) GetWinners(ctx context.Context, month string) (*puzzle.MonthWinners, error) {
	var winners puzzle.MonthWinners
	if err := c.do(ctx, http.MethodGet, "/api/puzzle/winners", dateQuery("month", month), nil, &winners); err != nil {
		return nil, err
	}
	return &winners, nil
}

func dateQuery(key, value string) url.Values {
	if value == "" {
		return nil
	}
	return url.Values{key: []string{value}}
}

func (c *Remote) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	return c.doFunc(ctx, method, path, query, body, func(resp *http.Response) error {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// doFunc sends the request and hands a 2xx response to decode. GET requests are retried
// on transport errors, 429 and 5xx answers; anything else gets a single attempt.
func (c *Remote) doFunc(ctx context.Context, method, path string, query url.Values, body interface{}, decode func(*http.Response) error) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	attempt := 0
	op := func() error {
		attempt++
		req, err := c.buildRequest(ctx, method, path, query, payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := readAPIError(resp)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if err := decode(resp); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode %s %s: %w", method, path, err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("method", method).Str("path", path).Int("attempt", attempt).Dur("wait", wait).Msg("retrying request")
	}
	retries := c.maxRetries
	if method != http.MethodGet {
		retries = 0
	}
	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), retries), ctx), notify)
}

func (c *Remote) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.initialInterval > 0 {
		b.InitialInterval = c.initialInterval
	}
	return b
}

func (c *Remote) buildRequest(ctx context.Context, method, path string, query url.Values, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func readAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
