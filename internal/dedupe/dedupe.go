// Package dedupe collapses play events that the server reports more
// than once across overlapping pages.
package dedupe

import (
	"sort"
	"time"

	"github.com/samfreund/musicViz/internal/event"
)

// DefaultTolerance is how far apart two timestamps for the same track
// may be while still describing the same physical play.
const DefaultTolerance = 5 * time.Second

// Deduper accumulates events and keeps one per duplicate group. Events
// are bucketed by track id since only same-track events can collide.
// Duplicates are resolved when Events or Dropped is called, from the
// timestamp-ordered view of each bucket, so the survivors depend only
// on when plays happened and never on arrival order.
type Deduper struct {
	tolerance time.Duration
	byTrack   map[string][]event.PlayEvent
}

// New returns a Deduper. A tolerance <= 0 falls back to DefaultTolerance.
func New(tolerance time.Duration) *Deduper {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Deduper{
		tolerance: tolerance,
		byTrack:   make(map[string][]event.PlayEvent),
	}
}

// Add records an event for later resolution.
func (d *Deduper) Add(e event.PlayEvent) {
	d.byTrack[e.TrackID] = append(d.byTrack[e.TrackID], e)
}

// Events returns the surviving events ordered by played-at time.
func (d *Deduper) Events() []event.PlayEvent {
	events, _ := d.resolve()
	return events
}

// Dropped returns how many events were discarded as duplicates.
func (d *Deduper) Dropped() int {
	_, dropped := d.resolve()
	return dropped
}

func (d *Deduper) resolve() ([]event.PlayEvent, int) {
	var events []event.PlayEvent
	dropped := 0
	for _, bucket := range d.byTrack {
		kept, n := mergeBucket(bucket, d.tolerance)
		events = append(events, kept...)
		dropped += n
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].PlayedAt.Equal(events[j].PlayedAt) {
			return events[i].PlayedAt.Before(events[j].PlayedAt)
		}
		return events[i].TrackID < events[j].TrackID
	})
	return events, dropped
}

// mergeBucket walks a bucket in timestamp order and greedily merges
// each event into the previous survivor when they fall within the
// tolerance. A merge keeps the larger duration; ties keep the earlier
// play. Replacing a survivor only ever moves its timestamp forward, so
// consecutive survivors always end up more than the tolerance apart
// and a second pass over the output removes nothing.
func mergeBucket(bucket []event.PlayEvent, tolerance time.Duration) ([]event.PlayEvent, int) {
	sorted := append([]event.PlayEvent(nil), bucket...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].PlayedAt.Equal(sorted[j].PlayedAt) {
			return sorted[i].PlayedAt.Before(sorted[j].PlayedAt)
		}
		return sorted[i].DurationPlayed > sorted[j].DurationPlayed
	})

	var kept []event.PlayEvent
	dropped := 0
	for _, e := range sorted {
		if len(kept) > 0 && withinTolerance(kept[len(kept)-1].PlayedAt, e.PlayedAt, tolerance) {
			if e.DurationPlayed > kept[len(kept)-1].DurationPlayed {
				kept[len(kept)-1] = e
			}
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	return kept, dropped
}

func withinTolerance(a, b time.Time, tolerance time.Duration) bool {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}
