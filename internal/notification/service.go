package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/logging"
)

type Service interface {
	// Notify stores an inbox entry for ownerID and publishes it to the broker.
	Notify(ctx context.Context, kind, reservationID, ownerID string) error
	List(ctx context.Context, filter Filter) ([]*Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type service struct {
	repo   Repository
	broker Broker
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, broker Broker, logger *slog.Logger) Service {
	if broker == nil {
		broker = NoopBroker{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &service{repo: repo, broker: broker, logger: logger, now: time.Now}
}

func (s *service) Notify(ctx context.Context, kind, reservationID, ownerID string) error {
	text, ok := messages[kind]
	if !ok {
		return ErrUnknownKind
	}
	if ownerID == "" {
		return ErrInvalidInput
	}

	n := &Notification{
		UserID:        ownerID,
		ReservationID: reservationID,
		Kind:          kind,
		Message:       text,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	err := s.broker.Publish(ctx, Message{
		Type:          kind,
		ReservationID: reservationID,
		OwnerID:       ownerID,
		Message:       text,
		OccurredAt:    s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notification %s stored but not published: %w", n.ID, err)
	}

	logging.FromContext(ctx, s.logger).Debug("notification dispatched",
		"kind", kind, "reservation_id", reservationID, "user_id", ownerID)
	return nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Notification, int, error) {
	if filter.UserID == "" {
		return nil, 0, ErrInvalidInput
	}
	return s.repo.List(ctx, filter)
}

func (s *service) MarkRead(ctx context.Context, id, userID string) error {
	return s.repo.MarkRead(ctx, id, userID)
}
