package reservation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/calendar"
)

// ErrSyncStale means the reservation was cancelled, deleted or moved while its
// calendar event was being created; the event has been retracted.
var ErrSyncStale = errors.New("reservation changed during calendar sync")

// SyncResult is either Synced or SyncFailed.
type SyncResult interface {
	isSyncResult()
}

// Synced carries the external event id now recorded on the reservation.
type Synced struct {
	EventID string
}

// SyncFailed leaves the reservation unsynchronized; the retry loop picks it up later
// unless Reason is ErrSyncStale.
type SyncFailed struct {
	Reason error
}

func (Synced) isSyncResult()     {}
func (SyncFailed) isSyncResult() {}

// SyncCoordinator mirrors reservations into the external calendar. Attempts for the
// same reservation are serialized; attempts for different reservations run in parallel
// and never under a space lock.
type SyncCoordinator struct {
	repo     Repository
	provider calendar.Provider
	timeout  time.Duration
	logger   *slog.Logger

	serial   *keyedMutex
	inflight sync.WaitGroup
}

func NewSyncCoordinator(repo Repository, provider calendar.Provider, timeout time.Duration, logger *slog.Logger) *SyncCoordinator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SyncCoordinator{
		repo:     repo,
		provider: provider,
		timeout:  timeout,
		logger:   logger,
		serial:   newKeyedMutex(),
	}
}

// Sync creates the calendar event for reservation id and records it. The record is
// only written if the reservation is still active, unsynchronized and in the sync
// generation that was read (moving or cancelling starts a new one); otherwise the
// fresh event is retracted and ErrSyncStale is reported.
func (c *SyncCoordinator) Sync(ctx context.Context, id string) SyncResult {
	unlock := c.serial.Lock(id)
	defer unlock()

	r, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SyncFailed{Reason: ErrSyncStale}
		}
		return SyncFailed{Reason: err}
	}
	if !r.State.Active() {
		return SyncFailed{Reason: ErrSyncStale}
	}
	if r.Synchronized {
		return Synced{EventID: r.ExternalEventID}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	eventID, err := c.provider.CreateEvent(callCtx, calendarEvent(r))
	cancel()
	if err != nil {
		if errors.Is(err, calendar.ErrDisabled) {
			c.logger.Debug("calendar sync skipped", "reservation_id", id, "reason", err)
		} else {
			c.logger.Warn("calendar sync failed", "reservation_id", id, "error", err)
		}
		return SyncFailed{Reason: err}
	}

	ok, err := c.repo.MarkSynchronized(ctx, id, eventID, r.SyncGeneration)
	if err != nil {
		// The idempotency key only changes with the generation, so the next attempt
		// in this generation gets this event back from the provider.
		c.logger.Error("record calendar sync failed", "reservation_id", id, "event_id", eventID, "error", err)
		return SyncFailed{Reason: err}
	}
	if !ok {
		c.logger.Info("discarding stale calendar event", "reservation_id", id, "event_id", eventID)
		c.Retract(ctx, eventID)
		return SyncFailed{Reason: ErrSyncStale}
	}

	c.logger.Info("reservation synchronized", "reservation_id", id, "event_id", eventID)
	return Synced{EventID: eventID}
}

// Retract deletes an external event. Failures are logged and otherwise ignored.
func (c *SyncCoordinator) Retract(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.provider.DeleteEvent(callCtx, eventID)
	switch {
	case err == nil:
		c.logger.Info("calendar event retracted", "event_id", eventID)
	case errors.Is(err, calendar.ErrEventNotFound), errors.Is(err, calendar.ErrDisabled):
		c.logger.Debug("calendar event retraction skipped", "event_id", eventID, "reason", err)
	default:
		c.logger.Warn("calendar event retraction failed", "event_id", eventID, "error", err)
	}
}

// Handle is the outbox consumer. Calendar calls run on their own goroutines so a
// slow provider never holds up notification dispatch.
func (c *SyncCoordinator) Handle(ctx context.Context, ev Event) error {
	if ev.RetractEventID != "" {
		eventID := ev.RetractEventID
		c.goAsync(func() { c.Retract(ctx, eventID) })
	}

	switch ev.Type {
	case EventCreated, EventConfirmed, EventUpdated:
		if ev.Reservation.State.Active() && !ev.Reservation.Synchronized {
			id := ev.Reservation.ID
			c.goAsync(func() { c.Sync(ctx, id) })
		}
	}
	return nil
}

func (c *SyncCoordinator) goAsync(fn func()) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		fn()
	}()
}

// Wait blocks until all asynchronous sync and retraction attempts have returned.
func (c *SyncCoordinator) Wait() {
	c.inflight.Wait()
}

// RetryLoop periodically re-attempts sync for active reservations without a calendar
// mirror, until ctx is cancelled.
func (c *SyncCoordinator) RetryLoop(ctx context.Context, interval time.Duration, batch int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := c.RetryPending(ctx, batch); err != nil {
				c.logger.Warn("calendar sync retry pass failed", "error", err)
			} else if n > 0 {
				c.logger.Info("calendar sync retry pass", "synced", n)
			}
		}
	}
}

// RetryPending runs one retry pass and returns how many reservations were synchronized.
func (c *SyncCoordinator) RetryPending(ctx context.Context, batch int) (int, error) {
	list, err := c.repo.ListUnsynced(ctx, batch)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, r := range list {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		res := c.Sync(ctx, r.ID)
		if _, ok := res.(Synced); ok {
			synced++
			continue
		}
		if f, ok := res.(SyncFailed); ok && errors.Is(f.Reason, calendar.ErrDisabled) {
			return synced, nil
		}
	}
	return synced, nil
}

func calendarEvent(r *Reservation) calendar.Event {
	return calendar.Event{
		ReservationID: r.ID,
		SpaceID:       r.SpaceID,
		OwnerID:       r.OwnerID,
		Title:         "Reservation " + r.ID,
		Start:         r.StartTime,
		End:           r.EndTime,
		Attendees:     r.OccupantCount,
		Generation:    r.SyncGeneration,
	}
}
