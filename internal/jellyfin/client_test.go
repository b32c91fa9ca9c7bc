package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/samfreund/musicViz/internal/event"
)

func testConfig(serverURL string) Config {
	return Config{
		ServerURL: serverURL,
		APIKey:    "test-key",
		UserID:    "user-1",
		PageSize:  2,
		Attempts:  3,
	}
}

// fastClient drops the inter-page rate limit so tests don't sleep.
func fastClient(config Config) *Client {
	c := New(config)
	c.limiter.SetLimit(1e6)
	return c
}

func historyHandler(t *testing.T, events []event.RawEvent) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Emby-Token"); got != "test-key" {
			t.Errorf("X-Emby-Token = %q, want %q", got, "test-key")
		}
		if got := r.URL.Query().Get("UserId"); got != "user-1" {
			t.Errorf("UserId = %q, want %q", got, "user-1")
		}

		start, _ := strconv.Atoi(r.URL.Query().Get("StartIndex"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("Limit"))
		end := start + limit
		if end > len(events) {
			end = len(events)
		}
		var items []event.RawEvent
		if start < len(events) {
			items = events[start:end]
		}
		json.NewEncoder(w).Encode(map[string]any{
			"Items":            items,
			"TotalRecordCount": len(events),
		})
	}
}

func rawEvents(n int) []event.RawEvent {
	events := make([]event.RawEvent, n)
	for i := range events {
		events[i] = event.RawEvent{
			ItemID:     fmt.Sprintf("track-%d", i),
			Name:       fmt.Sprintf("Song %d", i),
			DatePlayed: time.Date(2024, 3, 1, 12, 0, i, 0, time.UTC).Format(time.RFC3339),
		}
	}
	return events
}

func TestPlayEventsPagination(t *testing.T) {
	server := httptest.NewServer(historyHandler(t, rawEvents(5)))
	defer server.Close()

	client := fastClient(testConfig(server.URL))
	var got []string
	err := client.PlayEvents(context.Background(), func(raw event.RawEvent) error {
		got = append(got, raw.ItemID)
		return nil
	})
	if err != nil {
		t.Fatalf("PlayEvents() error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d events, want 5", len(got))
	}
	for i, id := range got {
		if want := fmt.Sprintf("track-%d", i); id != want {
			t.Errorf("event %d = %q, want %q", i, id, want)
		}
	}
}

func TestPlayEventsEmptyHistory(t *testing.T) {
	server := httptest.NewServer(historyHandler(t, nil))
	defer server.Close()

	client := fastClient(testConfig(server.URL))
	count := 0
	err := client.PlayEvents(context.Background(), func(event.RawEvent) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("PlayEvents() error: %v", err)
	}
	if count != 0 {
		t.Errorf("got %d events, want 0", count)
	}
}

func TestRetriesTransientServerError(t *testing.T) {
	var calls atomic.Int32
	events := rawEvents(1)
	inner := historyHandler(t, events)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		inner(w, r)
	}))
	defer server.Close()

	client := fastClient(testConfig(server.URL))
	count := 0
	err := client.PlayEvents(context.Background(), func(event.RawEvent) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("PlayEvents() error: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d events, want 1", count)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d requests, want 3 (two failures, one success)", calls.Load())
	}
}

func TestExhaustedRetriesIsFetchError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := fastClient(testConfig(server.URL))
	err := client.PlayEvents(context.Background(), func(event.RawEvent) error {
		t.Error("callback invoked despite fetch failure")
		return nil
	})

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("PlayEvents() error = %v, want *FetchError", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d requests, want 3 attempts", calls.Load())
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := fastClient(testConfig(server.URL))
	err := client.PlayEvents(context.Background(), func(event.RawEvent) error { return nil })

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("PlayEvents() error = %v, want *FetchError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d requests, want 1 (401 is not transient)", calls.Load())
	}
}

func TestFailureOnSecondPageAborts(t *testing.T) {
	events := rawEvents(5)
	inner := historyHandler(t, events)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("StartIndex"))
		if start > 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		inner(w, r)
	}))
	defer server.Close()

	client := fastClient(testConfig(server.URL))
	count := 0
	err := client.PlayEvents(context.Background(), func(event.RawEvent) error {
		count++
		return nil
	})

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("PlayEvents() error = %v, want *FetchError, not silent truncation", err)
	}
	if count != 2 {
		t.Errorf("callback saw %d events before the failure, want 2", count)
	}
}

func TestCallbackErrorAborts(t *testing.T) {
	server := httptest.NewServer(historyHandler(t, rawEvents(5)))
	defer server.Close()

	sentinel := errors.New("stop")
	client := fastClient(testConfig(server.URL))
	err := client.PlayEvents(context.Background(), func(event.RawEvent) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("PlayEvents() error = %v, want the callback's error", err)
	}
}
