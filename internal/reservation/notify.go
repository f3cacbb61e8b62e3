package reservation

import "context"

// Notifier is the Notification Dispatcher boundary. kind is the event type
// (reservation.created, reservation.confirmed or reservation.cancelled).
type Notifier interface {
	Notify(ctx context.Context, kind, reservationID, ownerID string) error
}

// NotifyHandler forwards created, confirmed and cancelled events to n.
func NotifyHandler(n Notifier) EventHandler {
	return EventHandlerFunc(func(ctx context.Context, ev Event) error {
		switch ev.Type {
		case EventCreated, EventConfirmed, EventCancelled:
			return n.Notify(ctx, string(ev.Type), ev.Reservation.ID, ev.Reservation.OwnerID)
		default:
			return nil
		}
	})
}
