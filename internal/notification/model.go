package notification

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/apperror"
)

var (
	ErrNotFound     = apperror.New(http.StatusNotFound, "notification not found")
	ErrUnknownKind  = apperror.New(http.StatusBadRequest, "unknown notification kind")
	ErrInvalidInput = apperror.New(http.StatusBadRequest, "invalid input parameters")
)

// Kinds mirror the reservation event types that produce notifications.
const (
	KindReservationCreated   = "reservation.created"
	KindReservationConfirmed = "reservation.confirmed"
	KindReservationCancelled = "reservation.cancelled"
)

var messages = map[string]string{
	KindReservationCreated:   "Your reservation was created and is pending confirmation.",
	KindReservationConfirmed: "Your reservation has been confirmed.",
	KindReservationCancelled: "Your reservation has been cancelled.",
}

// Notification is an inbox entry for one user.
type Notification struct {
	ID            string
	UserID        string
	ReservationID string
	Kind          string
	Message       string
	Read          bool
	CreatedAt     time.Time
}

type Filter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}

// Message is the JSON body published to the broker.
type Message struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	OwnerID       string    `json:"owner_id"`
	Message       string    `json:"message"`
	OccurredAt    time.Time `json:"occurred_at"`
}
