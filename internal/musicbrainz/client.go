// Package musicbrainz looks up genre tags for recordings that Jellyfin
// has no genre metadata for.
package musicbrainz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2"

	// MusicBrainz asks unauthenticated clients to stay at or under one
	// request per second and to identify themselves.
	userAgent = "musicViz/0.1 (https://github.com/samfreund/musicViz)"

	requestTimeout = 15 * time.Second
	attempts       = 3
	retryDelay     = time.Second
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New returns a client for the public MusicBrainz API. baseURL is
// overridable for tests; empty means the public endpoint.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type tag struct {
	Name string `json:"name"`
}

type recordingSearch struct {
	Recordings []struct {
		Tags         []tag `json:"tags"`
		ArtistCredit []struct {
			Artist struct {
				ID string `json:"id"`
			} `json:"artist"`
		} `json:"artist-credit"`
	} `json:"recordings"`
}

type artistLookup struct {
	Tags []tag `json:"tags"`
}

// RecordingGenres searches for the recording and returns its tag names.
// When the recording itself carries no tags, the credited artist's tags
// are used instead. An unknown recording yields an empty list, not an
// error.
func (c *Client) RecordingGenres(ctx context.Context, artist, title string) ([]string, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("artist:%q AND recording:%q", artist, title))
	params.Set("limit", "1")
	params.Set("fmt", "json")

	var search recordingSearch
	if err := c.get(ctx, "/recording?"+params.Encode(), &search); err != nil {
		return nil, fmt.Errorf("searching recording %q by %q: %w", title, artist, err)
	}
	if len(search.Recordings) == 0 {
		return nil, nil
	}

	recording := search.Recordings[0]
	if len(recording.Tags) > 0 {
		return tagNames(recording.Tags), nil
	}

	if len(recording.ArtistCredit) == 0 {
		return nil, nil
	}
	artistID := recording.ArtistCredit[0].Artist.ID
	if artistID == "" {
		return nil, nil
	}

	var lookup artistLookup
	path := "/artist/" + artistID + "?inc=tags&fmt=json"
	if err := c.get(ctx, path, &lookup); err != nil {
		return nil, fmt.Errorf("looking up artist %s: %w", artistID, err)
	}
	return tagNames(lookup.Tags), nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
			if err != nil {
				return err
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("musicbrainz returned %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(out)
		},
		retry.Attempts(attempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

func tagNames(tags []tag) []string {
	var names []string
	for _, t := range tags {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}
