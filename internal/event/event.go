// Package event defines the canonical play event and the rules for
// building one from a raw Jellyfin record.
package event

import (
	"fmt"
	"strings"
	"time"
)

// Jellyfin reports durations in ticks of 100ns.
const ticksPerSecond = 10_000_000

// RawEvent is a single play record as the Jellyfin API returns it.
// Fields may be absent or partial; Normalize decides what is usable.
type RawEvent struct {
	ItemID       string   `json:"ItemId"`
	Name         string   `json:"Name"`
	Artists      []string `json:"Artists"`
	Artist       string   `json:"Artist"`
	Genres       []string `json:"Genres"`
	DatePlayed   string   `json:"DatePlayed"`
	PlayDuration *int64   `json:"PlayDuration"`
	RunTimeTicks int64    `json:"RunTimeTicks"`
}

// PlayEvent is one normalized listen. Instances live for a single
// pipeline run and are consumed exactly once by the aggregator.
type PlayEvent struct {
	TrackID   string
	TrackName string
	Artists   []string
	Genres    []string

	// PlayedAt is UTC, second precision.
	PlayedAt time.Time

	// DurationPlayed is seconds actually listened. Zero with
	// DurationMissing set means the source didn't report it; it is
	// never assumed to be a full play.
	DurationPlayed  int64
	DurationMissing bool

	// TrackLength is the nominal track duration in seconds, 0 when the
	// source didn't report it.
	TrackLength int64
}

// NormalizationError reports a record that can't be turned into a
// PlayEvent. Callers skip the record and count it; the run continues.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalizing record: field %s: %s", e.Field, e.Reason)
}

// MatchKey returns the key used to group artists across casing variants
// from the source. Display names keep their original casing.
func MatchKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
