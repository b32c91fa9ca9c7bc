package event

import (
	"strings"
	"time"
)

// Composite artist strings ("Artist A, Artist B") are split on this.
const artistDelimiter = ","

// Normalize validates a raw record and builds a PlayEvent from it.
// Failures are always a *NormalizationError naming the offending field.
func Normalize(raw RawEvent) (PlayEvent, error) {
	trackID := strings.TrimSpace(raw.ItemID)
	if trackID == "" {
		return PlayEvent{}, &NormalizationError{Field: "ItemId", Reason: "missing"}
	}

	if strings.TrimSpace(raw.DatePlayed) == "" {
		return PlayEvent{}, &NormalizationError{Field: "DatePlayed", Reason: "missing"}
	}
	playedAt, err := time.Parse(time.RFC3339, raw.DatePlayed)
	if err != nil {
		return PlayEvent{}, &NormalizationError{Field: "DatePlayed", Reason: "not a RFC 3339 timestamp: " + raw.DatePlayed}
	}
	playedAt = playedAt.UTC().Truncate(time.Second)

	var duration int64
	durationMissing := true
	if raw.PlayDuration != nil {
		if *raw.PlayDuration < 0 {
			return PlayEvent{}, &NormalizationError{Field: "PlayDuration", Reason: "negative"}
		}
		duration = *raw.PlayDuration
		durationMissing = false
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = "Unknown Title"
	}

	return PlayEvent{
		TrackID:         trackID,
		TrackName:       name,
		Artists:         normalizeArtists(raw),
		Genres:          normalizeGenres(raw.Genres),
		PlayedAt:        playedAt,
		DurationPlayed:  duration,
		DurationMissing: durationMissing,
		TrackLength:     raw.RunTimeTicks / ticksPerSecond,
	}, nil
}

// normalizeArtists prefers the structured artist list; a composite
// display string is split as a fallback. The returned slice may be
// empty, which the aggregator handles.
func normalizeArtists(raw RawEvent) []string {
	var names []string
	if len(raw.Artists) > 0 {
		names = raw.Artists
	} else if raw.Artist != "" {
		names = strings.Split(raw.Artist, artistDelimiter)
	}

	var artists []string
	seen := make(map[string]struct{})
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := MatchKey(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		artists = append(artists, n)
	}
	return artists
}

func normalizeGenres(raw []string) []string {
	var genres []string
	seen := make(map[string]struct{})
	for _, g := range raw {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		genres = append(genres, g)
	}
	return genres
}
