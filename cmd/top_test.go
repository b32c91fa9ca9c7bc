package cmd

import (
	"strings"
	"testing"

	"github.com/samfreund/musicViz/internal/stats"
)

func sampleResult() *stats.Result {
	return &stats.Result{
		ByArtist: map[string]stats.BucketStat{
			"Artist A": {PlayCount: 5, TotalDuration: 900},
			"Artist B": {PlayCount: 2, TotalDuration: 360},
		},
		ByTrack: map[string]stats.TrackStat{
			"T1": {PlayCount: 5, TotalDuration: 900, DisplayName: "Song One", ArtistNames: []string{"Artist A"}},
			"T2": {PlayCount: 2, TotalDuration: 360, DisplayName: "Song Two", ArtistNames: []string{"Artist B"}},
		},
		ByGenre: map[string]stats.BucketStat{
			"Rock": {PlayCount: 7, TotalDuration: 1260},
		},
		ActivitySeries: []stats.ActivityPoint{
			{Date: "2024-03-01", PlayCount: 4, TotalDuration: 700},
			{Date: "2024-03-02"},
			{Date: "2024-03-03", PlayCount: 3, TotalDuration: 560},
		},
	}
}

func TestSummarizeResult(t *testing.T) {
	out := summarizeResult(sampleResult(), 10, 10, 10)

	for _, want := range []string{
		"Total plays: 7",
		"2024-03-01 to 2024-03-03 (3 days)",
		"Artist A",
		"Song One",
		"Rock",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	// Artist A outranks Artist B.
	if strings.Index(out, "Artist A") > strings.Index(out, "Artist B") {
		t.Error("top artists out of order")
	}
}

func TestSummarizeResultRespectsLimits(t *testing.T) {
	out := summarizeResult(sampleResult(), 1, 0, 0)

	if strings.Contains(out, "Artist B") {
		t.Error("limit 1 should drop the second artist")
	}
	if strings.Contains(out, "Top 0") {
		t.Error("zero-limit sections should be omitted")
	}
}

func TestFormatListenTime(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{59, "0m59s"},
		{75, "1m15s"},
		{3600, "1h00m"},
		{5400, "1h30m"},
		{90000, "25h00m"},
	}
	for _, tc := range tests {
		if got := formatListenTime(tc.seconds); got != tc.want {
			t.Errorf("formatListenTime(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
