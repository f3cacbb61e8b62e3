// Package calendar defines the contract with the external calendar that mirrors
// reservations, plus an HTTP/JSON implementation of it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDisabled is returned by the Disabled provider when no calendar is configured.
	ErrDisabled = errors.New("calendar sync is disabled")
	// ErrEventNotFound is returned by DeleteEvent when the provider no longer knows the event.
	ErrEventNotFound = errors.New("calendar event not found")
)

// Event is the mirror of a reservation in the external calendar.
type Event struct {
	ReservationID string    `json:"reservation_id"`
	SpaceID       string    `json:"space_id"`
	OwnerID       string    `json:"owner_id"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Attendees     int       `json:"attendees"`

	// Generation changes whenever the reservation's previous event was retracted.
	Generation int `json:"generation"`
}

// Provider is the calendar the Synchronization Coordinator writes to.
// Implementations are network-bound; callers bound every call with a deadline.
type Provider interface {
	CreateEvent(ctx context.Context, ev Event) (eventID string, err error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Disabled is the provider used when no calendar URL is configured.
type Disabled struct{}

func (Disabled) CreateEvent(context.Context, Event) (string, error) { return "", ErrDisabled }
func (Disabled) DeleteEvent(context.Context, string) error          { return ErrDisabled }

// StatusError is returned when the provider answers with an unexpected HTTP status.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("calendar %s: unexpected status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("calendar %s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same call may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
