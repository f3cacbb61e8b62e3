package reservation

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Interval is a half-open time range [Start, End) held by one reservation.
type Interval struct {
	ReservationID string
	Start         time.Time
	End           time.Time
}

// Overlaps implements half-open semantics: [a,b) and [c,d) overlap iff a < d && c < b.
func (iv Interval) Overlaps(start, end time.Time) bool {
	return iv.Start.Before(end) && start.Before(iv.End)
}

// IntervalIndex keeps, per space, the intervals of Pending and Confirmed reservations
// sorted by start. Active intervals of one space never overlap, so they are sorted by
// end as well; overlap lookups are a binary search plus a walk over the hits.
//
// The index is safe for concurrent use, but check-then-insert atomicity is the caller's
// job (the service holds the per-space lock across both).
type IntervalIndex struct {
	mu     sync.RWMutex
	spaces map[string][]Interval
	owner  map[string]string // reservation id -> space id
}

func NewIntervalIndex() *IntervalIndex {
	return &IntervalIndex{
		spaces: make(map[string][]Interval),
		owner:  make(map[string]string),
	}
}

// Query reports whether [start, end) overlaps any interval of the space.
func (x *IntervalIndex) Query(spaceID string, start, end time.Time) bool {
	return len(x.Overlapping(spaceID, start, end, "")) > 0
}

// Overlapping returns the ids of reservations overlapping [start, end), ignoring excludeID.
// Results are ordered by start time.
func (x *IntervalIndex) Overlapping(spaceID string, start, end time.Time, excludeID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	list := x.spaces[spaceID]
	// First interval that starts at or after end cannot overlap, nor can anything after it.
	hi := sort.Search(len(list), func(i int) bool { return !list[i].Start.Before(end) })

	var ids []string
	for i := hi - 1; i >= 0; i-- {
		iv := list[i]
		if !iv.End.After(start) {
			break
		}
		if iv.ReservationID == excludeID {
			continue
		}
		ids = append(ids, iv.ReservationID)
	}
	slices.Reverse(ids)
	return ids
}

// Insert adds an interval for the space. Re-inserting a reservation id replaces its interval.
func (x *IntervalIndex) Insert(spaceID, reservationID string, start, end time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeLocked(reservationID)

	list := x.spaces[spaceID]
	pos := sort.Search(len(list), func(i int) bool { return list[i].Start.After(start) })
	list = slices.Insert(list, pos, Interval{ReservationID: reservationID, Start: start, End: end})
	x.spaces[spaceID] = list
	x.owner[reservationID] = spaceID
}

// Remove drops the reservation's interval. Unknown ids are ignored.
func (x *IntervalIndex) Remove(spaceID, reservationID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if owner, ok := x.owner[reservationID]; !ok || owner != spaceID {
		return
	}
	x.removeLocked(reservationID)
}

func (x *IntervalIndex) removeLocked(reservationID string) {
	spaceID, ok := x.owner[reservationID]
	if !ok {
		return
	}
	delete(x.owner, reservationID)

	list := x.spaces[spaceID]
	i := slices.IndexFunc(list, func(iv Interval) bool { return iv.ReservationID == reservationID })
	if i < 0 {
		return
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(x.spaces, spaceID)
		return
	}
	x.spaces[spaceID] = list
}

// Busy returns a copy of the space's intervals that overlap [from, to).
func (x *IntervalIndex) Busy(spaceID string, from, to time.Time) []Interval {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []Interval
	for _, iv := range x.spaces[spaceID] {
		if !iv.Start.Before(to) {
			break
		}
		if iv.Overlaps(from, to) {
			out = append(out, iv)
		}
	}
	return out
}

// Len returns the number of indexed intervals across all spaces.
func (x *IntervalIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.owner)
}

// Reset replaces the whole index with the given active reservations.
func (x *IntervalIndex) Reset(active []*Reservation) {
	spaces := make(map[string][]Interval)
	owner := make(map[string]string, len(active))
	for _, r := range active {
		if !r.State.Active() {
			continue
		}
		spaces[r.SpaceID] = append(spaces[r.SpaceID], r.Interval())
		owner[r.ID] = r.SpaceID
	}
	for _, list := range spaces {
		slices.SortFunc(list, func(a, b Interval) int { return a.Start.Compare(b.Start) })
	}

	x.mu.Lock()
	x.spaces = spaces
	x.owner = owner
	x.mu.Unlock()
}
