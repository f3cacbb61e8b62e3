package reservation

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/apperror"
)

var (
	ErrNotFound          = apperror.New(http.StatusNotFound, "reservation not found")
	ErrTimeConflict      = apperror.New(http.StatusConflict, "time slot already booked")
	ErrInvalidTimeRange  = apperror.New(http.StatusBadRequest, "start time must be before end time")
	ErrInvalidOccupants  = apperror.New(http.StatusBadRequest, "occupant count must be a positive integer")
	ErrCapacityExceeded  = apperror.New(http.StatusBadRequest, "occupant count exceeds space capacity")
	ErrSpaceNotFound     = apperror.New(http.StatusNotFound, "space not found")
	ErrSpaceImmutable    = apperror.New(http.StatusBadRequest, "space cannot be changed; cancel and create a new reservation")
	ErrInvalidTransition = apperror.New(http.StatusConflict, "invalid reservation state transition")
	ErrPermissionDenied  = apperror.New(http.StatusForbidden, "permission denied")
	ErrInvalidInput      = apperror.New(http.StatusBadRequest, "invalid input parameters")
)

// State is the lifecycle state of a reservation.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
)

// Active reports whether the state holds an interval in the space's calendar.
func (s State) Active() bool {
	return s == StatePending || s == StateConfirmed
}

func (s State) Valid() bool {
	return s == StatePending || s == StateConfirmed || s == StateCancelled
}

// Reservation is a booking of one space over the half-open interval [StartTime, EndTime).
// ExternalEventID is empty unless Synchronized is true. SyncGeneration counts how often the
// calendar mirror was dropped; a sync attempt only records its event for the generation it read.
type Reservation struct {
	ID              string
	SpaceID         string
	OwnerID         string
	StartTime       time.Time
	EndTime         time.Time
	OccupantCount   int
	State           State
	Synchronized    bool
	ExternalEventID string
	SyncGeneration  int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the reservation's booked range.
func (r *Reservation) Interval() Interval {
	return Interval{ReservationID: r.ID, Start: r.StartTime, End: r.EndTime}
}

type Filter struct {
	OwnerID   string
	SpaceID   string
	State     State
	From      *time.Time // reservations ending after this time
	To        *time.Time // reservations starting before this time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ConflictError reports the active reservations that overlap a requested interval.
// It unwraps to ErrTimeConflict.
type ConflictError struct {
	SpaceID        string
	ConflictingIDs []string
}

func (e *ConflictError) Error() string {
	if len(e.ConflictingIDs) == 0 {
		return ErrTimeConflict.Message
	}
	return fmt.Sprintf("%s (conflicts with %s)", ErrTimeConflict.Message, strings.Join(e.ConflictingIDs, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrTimeConflict
}

// InvalidTransitionError names the state a reservation was in and the action that was refused.
// It unwraps to ErrInvalidTransition.
type InvalidTransitionError struct {
	From   State
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s reservation", e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
