package reservation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType names a committed reservation transition.
type EventType string

const (
	EventCreated   EventType = "reservation.created"
	EventConfirmed EventType = "reservation.confirmed"
	EventCancelled EventType = "reservation.cancelled"
	EventUpdated   EventType = "reservation.updated"
	EventDeleted   EventType = "reservation.deleted"
)

// Event is emitted once per committed transition. Reservation is a snapshot taken at
// commit time; RetractEventID carries an external calendar event that the transition
// orphaned and that must be removed.
type Event struct {
	Type           EventType
	Reservation    Reservation
	RetractEventID string
	OccurredAt     time.Time
}

// EventHandler consumes committed events. Errors are logged by the outbox and never
// reach the caller of the transition.
type EventHandler interface {
	Handle(ctx context.Context, ev Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, ev Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Publisher accepts committed events for asynchronous dispatch.
type Publisher interface {
	Publish(ev Event)
}

// Outbox is an in-process queue between state transitions and their side effects.
// A single worker drains it in publish order and fans every event out to all handlers.
type Outbox struct {
	events   chan Event
	handlers []EventHandler
	logger   *slog.Logger

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	done    chan struct{}
	started sync.Once
}

func NewOutbox(buffer int, logger *slog.Logger, handlers ...EventHandler) *Outbox {
	if buffer < 1 {
		buffer = 1
	}
	return &Outbox{
		events:   make(chan Event, buffer),
		handlers: handlers,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the dispatch worker. Handlers receive ctx.
func (o *Outbox) Start(ctx context.Context) {
	o.started.Do(func() {
		go o.run(ctx)
	})
}

func (o *Outbox) run(ctx context.Context) {
	defer close(o.done)
	for ev := range o.events {
		o.dispatch(ctx, ev)
		o.pending.Done()
	}
}

func (o *Outbox) dispatch(ctx context.Context, ev Event) {
	for _, h := range o.handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("outbox handler panicked",
						"event", ev.Type, "reservation_id", ev.Reservation.ID, "panic", r)
				}
			}()
			if err := h.Handle(ctx, ev); err != nil {
				o.logger.Warn("outbox handler failed",
					"event", ev.Type, "reservation_id", ev.Reservation.ID, "error", err)
			}
		}()
	}
}

// Publish enqueues ev. It blocks while the buffer is full. Events published after
// Close are dropped and logged.
func (o *Outbox) Publish(ev Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		o.logger.Warn("outbox closed, dropping event", "event", ev.Type, "reservation_id", ev.Reservation.ID)
		return
	}
	o.pending.Add(1)
	o.events <- ev
}

// Wait blocks until every event published so far has been handled.
func (o *Outbox) Wait() {
	o.pending.Wait()
}

// Close stops accepting events and waits for the worker to drain the queue.
// The outbox must have been started.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.events)
	o.mu.Unlock()

	<-o.done
}
