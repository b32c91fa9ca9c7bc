// Package jellyfin fetches a user's play history from a Jellyfin
// server, page by page.
package jellyfin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/samfreund/musicViz/internal/event"
)

const (
	playHistoryPath = "/user_usage_stats/PlayActivity"

	defaultPageSize       = 200
	defaultRequestTimeout = 30 * time.Second
	defaultAttempts       = 4
	defaultRetryDelay     = 500 * time.Millisecond
)

// Config carries the opaque connection values. ServerURL, APIKey and
// UserID come from the environment; the rest default sensibly.
type Config struct {
	ServerURL string
	APIKey    string
	UserID    string

	PageSize int
	Timeout  time.Duration
	Attempts uint
}

// FetchError means a page could not be fetched even after retries. It
// aborts the run; it is never treated as end of history.
type FetchError struct {
	StartIndex int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching play events from index %d: %v", e.StartIndex, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// statusError marks a non-2xx response so RetryIf can tell 5xx-class
// failures from permanent ones.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d %s", e.code, http.StatusText(e.code))
}

type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(config Config) *Client {
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultRequestTimeout
	}
	if config.Attempts == 0 {
		config.Attempts = defaultAttempts
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type page struct {
	Items            []event.RawEvent `json:"Items"`
	TotalRecordCount int              `json:"TotalRecordCount"`
}

// PlayEvents streams the user's whole play history through fn, one raw
// record at a time, requesting successive pages until the server is
// exhausted. Pages are never accumulated, so memory stays bounded. A
// non-nil error from fn aborts the stream.
func (c *Client) PlayEvents(ctx context.Context, fn func(event.RawEvent) error) error {
	startIndex := 0
	total := -1
	for {
		p, err := c.fetchPage(ctx, startIndex)
		if err != nil {
			return &FetchError{StartIndex: startIndex, Err: err}
		}

		if len(p.Items) == 0 {
			return nil
		}
		if total < 0 {
			total = p.TotalRecordCount
			fmt.Printf("Server reports %d play events\n", total)
		}

		for _, raw := range p.Items {
			if err := fn(raw); err != nil {
				return err
			}
		}

		startIndex += len(p.Items)
		fmt.Printf("Downloaded %d of %d play events\n", startIndex, total)
		if total >= 0 && startIndex >= total {
			return nil
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return &FetchError{StartIndex: startIndex, Err: err}
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, startIndex int) (page, error) {
	var p page
	err := retry.Do(
		func() error {
			var err error
			p, err = c.getPage(ctx, startIndex)
			return err
		},
		retry.Attempts(c.config.Attempts),
		retry.Delay(defaultRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)
	return p, err
}

// isTransient allows retries on timeouts and 5xx-class responses only.
// Anything else (bad auth, bad request) fails immediately.
func isTransient(err error) bool {
	if serr, ok := err.(*statusError); ok {
		return serr.code/100 == 5
	}
	if uerr, ok := err.(*url.Error); ok {
		return uerr.Timeout() || uerr.Temporary()
	}
	return false
}

func (c *Client) getPage(ctx context.Context, startIndex int) (page, error) {
	u, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return page{}, fmt.Errorf("parsing server URL: %w", err)
	}
	u = u.JoinPath(playHistoryPath)

	params := url.Values{}
	params.Set("UserId", c.config.UserID)
	params.Set("StartIndex", strconv.Itoa(startIndex))
	params.Set("Limit", strconv.Itoa(c.config.PageSize))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return page{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return page{}, &statusError{code: resp.StatusCode}
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return page{}, fmt.Errorf("decoding page at index %d: %w", startIndex, err)
	}
	return p, nil
}
