package reservation

import "time"

// Decision is the result of a conflict check: either Accept or Reject.
type Decision interface {
	isDecision()
}

// Accept means the interval is free.
type Accept struct{}

// Reject lists the active reservations the interval collides with.
type Reject struct {
	ConflictingIDs []string
}

func (Accept) isDecision() {}
func (Reject) isDecision() {}

// ConflictDetector gates creation and modification of reservations against the interval index.
type ConflictDetector struct {
	index *IntervalIndex
}

func NewConflictDetector(index *IntervalIndex) *ConflictDetector {
	return &ConflictDetector{index: index}
}

// Check validates [start, end) and looks for overlaps in the space, ignoring excludeID
// so an update is never in conflict with itself. Malformed intervals return
// ErrInvalidTimeRange before the index is consulted.
func (d *ConflictDetector) Check(spaceID string, start, end time.Time, excludeID string) (Decision, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	ids := d.index.Overlapping(spaceID, start, end, excludeID)
	if len(ids) > 0 {
		return Reject{ConflictingIDs: ids}, nil
	}
	return Accept{}, nil
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return ErrInvalidTimeRange
	}
	return nil
}
