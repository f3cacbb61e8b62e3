package http

import (
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/request"
	"github.com/nekogravitycat/space-reservation-backend/internal/reservation"
)

// ListReservationsRequest defines query parameters for listing reservations.
// OwnerID is honoured for staff only; everyone else sees their own reservations.
type ListReservationsRequest struct {
	request.ListParams
	SpaceID string     `form:"space_id" binding:"omitempty,uuid"`
	OwnerID string     `form:"owner_id"`
	State   string     `form:"state" binding:"omitempty,oneof=pending confirmed cancelled"`
	From    *time.Time `form:"from"`
	To      *time.Time `form:"to"`
	SortBy  string     `form:"sort_by" binding:"omitempty,oneof=start_time end_time created_at updated_at"`
}

// BusyRequest asks for the occupied intervals of a space within [from, to).
type BusyRequest struct {
	SpaceID string    `form:"space_id" binding:"required,uuid"`
	From    time.Time `form:"from" binding:"required"`
	To      time.Time `form:"to" binding:"required"`
}

type DeleteQuery struct {
	Hard bool `form:"hard"`
}

type CreateReservationRequest struct {
	SpaceID       string    `json:"space_id" binding:"required,uuid"`
	StartTime     time.Time `json:"start_time" binding:"required"`
	EndTime       time.Time `json:"end_time" binding:"required"`
	OccupantCount int       `json:"occupant_count" binding:"required,min=1"`
}

type UpdateReservationRequest struct {
	SpaceID       *string    `json:"space_id" binding:"omitempty,uuid"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	OccupantCount *int       `json:"occupant_count" binding:"omitempty,min=1"`
}

type ReservationResponse struct {
	ID              string    `json:"id"`
	SpaceID         string    `json:"space_id"`
	OwnerID         string    `json:"owner_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	OccupantCount   int       `json:"occupant_count"`
	State           string    `json:"state"`
	Synchronized    bool      `json:"synchronized"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:              r.ID,
		SpaceID:         r.SpaceID,
		OwnerID:         r.OwnerID,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		OccupantCount:   r.OccupantCount,
		State:           string(r.State),
		Synchronized:    r.Synchronized,
		ExternalEventID: r.ExternalEventID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type IntervalResponse struct {
	ReservationID string    `json:"reservation_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

type BusyResponse struct {
	SpaceID   string             `json:"space_id"`
	Intervals []IntervalResponse `json:"intervals"`
}

// ConflictResponse is returned with 409 when the requested slot is taken.
type ConflictResponse struct {
	Error                     string   `json:"error"`
	ConflictingReservationIDs []string `json:"conflicting_reservation_ids"`
}

// TransitionErrorResponse is returned with 409 when the state machine refuses an action.
type TransitionErrorResponse struct {
	Error  string `json:"error"`
	State  string `json:"state"`
	Action string `json:"action"`
}
