// Package stats folds a deduplicated play event stream into the
// aggregate dataset the chart frontend consumes.
package stats

import (
	"sort"
	"time"

	"github.com/samfreund/musicViz/internal/event"
)

const dayFormat = "2006-01-02"

// BucketStat accumulates plays and listened seconds under one key.
// Durations are integer seconds throughout; no floats, no drift.
type BucketStat struct {
	PlayCount     int64 `json:"play_count"`
	TotalDuration int64 `json:"total_duration"`
}

// TrackStat is the per-track aggregate plus the display metadata the
// frontend needs to label it.
type TrackStat struct {
	PlayCount     int64    `json:"play_count"`
	TotalDuration int64    `json:"total_duration"`
	DisplayName   string   `json:"display_name"`
	ArtistNames   []string `json:"artist_names"`
}

// ActivityPoint is one day of the activity series. Days with no plays
// still appear, zero-valued, so charting never needs gap filling.
type ActivityPoint struct {
	Date          string `json:"date"`
	PlayCount     int64  `json:"play_count"`
	TotalDuration int64  `json:"total_duration"`
}

// Result is the published dataset. It is built once per run and not
// mutated after Aggregator.Result returns it.
type Result struct {
	ByArtist       map[string]BucketStat `json:"by_artist"`
	ByTrack        map[string]TrackStat  `json:"by_track"`
	ByGenre        map[string]BucketStat `json:"by_genre"`
	ActivitySeries []ActivityPoint       `json:"activity_series"`
}

type artistBucket struct {
	display string
	stat    BucketStat
}

// Aggregator is a single left-to-right fold over the event stream.
type Aggregator struct {
	byArtist map[string]*artistBucket // keyed by event.MatchKey
	byTrack  map[string]*TrackStat
	byGenre  map[string]*BucketStat
	byDay    map[string]*BucketStat
	minDay   time.Time
	maxDay   time.Time
	events   int64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byArtist: make(map[string]*artistBucket),
		byTrack:  make(map[string]*TrackStat),
		byGenre:  make(map[string]*BucketStat),
		byDay:    make(map[string]*BucketStat),
	}
}

// Add folds one event into every matching bucket: each credited artist,
// the track, each genre, and the day of play. An event with no artists
// still counts everywhere else; there is just no artist to credit.
func (a *Aggregator) Add(e event.PlayEvent) {
	a.events++

	for _, artist := range e.Artists {
		key := event.MatchKey(artist)
		bucket, ok := a.byArtist[key]
		if !ok {
			bucket = &artistBucket{display: artist}
			a.byArtist[key] = bucket
		}
		bucket.stat.PlayCount++
		bucket.stat.TotalDuration += e.DurationPlayed
	}

	track, ok := a.byTrack[e.TrackID]
	if !ok {
		track = &TrackStat{
			DisplayName: e.TrackName,
			ArtistNames: append([]string(nil), e.Artists...),
		}
		a.byTrack[e.TrackID] = track
	}
	track.PlayCount++
	track.TotalDuration += e.DurationPlayed

	for _, genre := range e.Genres {
		bucket, ok := a.byGenre[genre]
		if !ok {
			bucket = &BucketStat{}
			a.byGenre[genre] = bucket
		}
		bucket.PlayCount++
		bucket.TotalDuration += e.DurationPlayed
	}

	day := e.PlayedAt.UTC().Truncate(24 * time.Hour)
	dayKey := day.Format(dayFormat)
	bucket, ok := a.byDay[dayKey]
	if !ok {
		bucket = &BucketStat{}
		a.byDay[dayKey] = bucket
	}
	bucket.PlayCount++
	bucket.TotalDuration += e.DurationPlayed

	if a.minDay.IsZero() || day.Before(a.minDay) {
		a.minDay = day
	}
	if a.maxDay.IsZero() || day.After(a.maxDay) {
		a.maxDay = day
	}
}

// Events returns how many events have been folded in.
func (a *Aggregator) Events() int64 {
	return a.events
}

// Result assembles the final dataset. The activity series covers every
// day from the first to the last observed play, inclusive, zero-filled.
func (a *Aggregator) Result() *Result {
	r := &Result{
		ByArtist: make(map[string]BucketStat, len(a.byArtist)),
		ByTrack:  make(map[string]TrackStat, len(a.byTrack)),
		ByGenre:  make(map[string]BucketStat, len(a.byGenre)),
	}

	for _, bucket := range a.byArtist {
		r.ByArtist[bucket.display] = bucket.stat
	}
	for id, track := range a.byTrack {
		r.ByTrack[id] = *track
	}
	for genre, bucket := range a.byGenre {
		r.ByGenre[genre] = *bucket
	}

	if !a.minDay.IsZero() {
		days := int(a.maxDay.Sub(a.minDay).Hours()/24) + 1
		r.ActivitySeries = make([]ActivityPoint, 0, days)
		for day := a.minDay; !day.After(a.maxDay); day = day.Add(24 * time.Hour) {
			point := ActivityPoint{Date: day.Format(dayFormat)}
			if bucket, ok := a.byDay[point.Date]; ok {
				point.PlayCount = bucket.PlayCount
				point.TotalDuration = bucket.TotalDuration
			}
			r.ActivitySeries = append(r.ActivitySeries, point)
		}
	}

	return r
}

// TopArtists returns artist names with their stats, most played first,
// name-ordered within equal counts so output is stable across runs.
func (r *Result) TopArtists(n int) []ArtistEntry {
	entries := make([]ArtistEntry, 0, len(r.ByArtist))
	for name, stat := range r.ByArtist {
		entries = append(entries, ArtistEntry{Name: name, BucketStat: stat})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PlayCount != entries[j].PlayCount {
			return entries[i].PlayCount > entries[j].PlayCount
		}
		return entries[i].Name < entries[j].Name
	})
	return limitEntries(entries, n)
}

// TopGenres is TopArtists for genre buckets.
func (r *Result) TopGenres(n int) []ArtistEntry {
	entries := make([]ArtistEntry, 0, len(r.ByGenre))
	for name, stat := range r.ByGenre {
		entries = append(entries, ArtistEntry{Name: name, BucketStat: stat})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PlayCount != entries[j].PlayCount {
			return entries[i].PlayCount > entries[j].PlayCount
		}
		return entries[i].Name < entries[j].Name
	})
	return limitEntries(entries, n)
}

// TopTracks returns track stats, most played first.
func (r *Result) TopTracks(n int) []TrackEntry {
	entries := make([]TrackEntry, 0, len(r.ByTrack))
	for id, stat := range r.ByTrack {
		entries = append(entries, TrackEntry{TrackID: id, TrackStat: stat})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PlayCount != entries[j].PlayCount {
			return entries[i].PlayCount > entries[j].PlayCount
		}
		return entries[i].TrackID < entries[j].TrackID
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// TotalPlays sums play counts over tracks, which equals the number of
// deduplicated events.
func (r *Result) TotalPlays() int64 {
	var total int64
	for _, track := range r.ByTrack {
		total += track.PlayCount
	}
	return total
}

type ArtistEntry struct {
	Name string
	BucketStat
}

type TrackEntry struct {
	TrackID string
	TrackStat
}

func limitEntries(entries []ArtistEntry, n int) []ArtistEntry {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}
