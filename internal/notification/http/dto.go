package http

import (
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/notification"
	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/request"
)

type ListNotificationsRequest struct {
	request.ListParams
	UnreadOnly bool `form:"unread"`
}

type NotificationResponse struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservation_id,omitempty"`
	Kind          string    `json:"kind"`
	Message       string    `json:"message"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:            n.ID,
		ReservationID: n.ReservationID,
		Kind:          n.Kind,
		Message:       n.Message,
		Read:          n.Read,
		CreatedAt:     n.CreatedAt,
	}
}
