package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/logging"
	"github.com/nekogravitycat/space-reservation-backend/internal/space"
)

type CreateRequest struct {
	SpaceID       string
	OwnerID       string
	StartTime     time.Time
	EndTime       time.Time
	OccupantCount int
}

// UpdateRequest holds the fields to change; nil fields keep their current value.
// SpaceID may only repeat the current space.
type UpdateRequest struct {
	SpaceID       *string
	StartTime     *time.Time
	EndTime       *time.Time
	OccupantCount *int
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Reservation, error)
	Confirm(ctx context.Context, id string, actorID string, isStaff bool) (*Reservation, error)
	// Cancel is idempotent: cancelling a cancelled reservation succeeds without side effects.
	Cancel(ctx context.Context, id string, actorID string, isStaff bool) error
	Update(ctx context.Context, id string, req UpdateRequest, actorID string, isStaff bool) (*Reservation, error)
	// Delete removes a pending reservation. With hard set, staff may remove one in any state.
	Delete(ctx context.Context, id string, actorID string, isStaff bool, hard bool) error

	GetByID(ctx context.Context, id string) (*Reservation, error)
	// FindByID is GetByID with absence reported as ok == false instead of ErrNotFound.
	FindByID(ctx context.Context, id string) (r *Reservation, ok bool, err error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	// Busy returns the active intervals of a space overlapping [from, to), ordered by start.
	Busy(ctx context.Context, spaceID string, from, to time.Time) ([]Interval, error)
}

// SpaceLookup is the part of the space catalogue reservations depend on.
type SpaceLookup interface {
	GetByID(ctx context.Context, id string) (*space.Space, error)
}

type service struct {
	repo      Repository
	spaces    SpaceLookup
	index     *IntervalIndex
	detector  *ConflictDetector
	locks     *keyedMutex
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, spaces SpaceLookup, index *IntervalIndex, publisher Publisher, logger *slog.Logger) Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &service{
		repo:      repo,
		spaces:    spaces,
		index:     index,
		detector:  NewConflictDetector(index),
		locks:     newKeyedMutex(),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// RebuildIndex loads every active reservation into index. It runs once at startup,
// before the service accepts requests.
func RebuildIndex(ctx context.Context, repo Repository, index *IntervalIndex) error {
	active, err := repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("rebuild interval index: %w", err)
	}
	index.Reset(active)
	return nil
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Reservation, error) {
	if req.OwnerID == "" || req.SpaceID == "" {
		return nil, ErrInvalidInput
	}
	req.StartTime, req.EndTime = storedPrecision(req.StartTime), storedPrecision(req.EndTime)
	if err := validateRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.checkOccupants(ctx, req.SpaceID, req.OccupantCount); err != nil {
		return nil, err
	}

	state, _, err := Transition(noState, ActionCreate)
	if err != nil {
		return nil, err
	}
	r := &Reservation{
		SpaceID:       req.SpaceID,
		OwnerID:       req.OwnerID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		OccupantCount: req.OccupantCount,
		State:         state,
	}

	unlock := s.locks.Lock(r.SpaceID)
	defer unlock()

	if err := s.checkFree(ctx, r.SpaceID, r.StartTime, r.EndTime, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, s.conflictFromStore(ctx, err, r.SpaceID, r.StartTime, r.EndTime, "")
	}

	s.index.Insert(r.SpaceID, r.ID, r.StartTime, r.EndTime)
	s.publish(EventCreated, r, "")
	s.log(ctx).Info("reservation created",
		"reservation_id", r.ID, "space_id", r.SpaceID, "owner_id", r.OwnerID,
		"start", r.StartTime, "end", r.EndTime)

	out := *r
	return &out, nil
}

func (s *service) Confirm(ctx context.Context, id string, actorID string, isStaff bool) (*Reservation, error) {
	var out *Reservation
	err := s.withReservation(ctx, id, actorID, isStaff, func(r *Reservation) error {
		to, _, err := Transition(r.State, ActionConfirm)
		if err != nil {
			return err
		}
		r.State = to

		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		s.publish(EventConfirmed, r, "")
		s.log(ctx).Info("reservation confirmed", "reservation_id", r.ID)

		cp := *r
		out = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Cancel(ctx context.Context, id string, actorID string, isStaff bool) error {
	return s.withReservation(ctx, id, actorID, isStaff, func(r *Reservation) error {
		to, changed, err := Transition(r.State, ActionCancel)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		r.State = to

		orphaned, err := s.repo.UpdateUnsynced(ctx, r)
		if err != nil {
			return err
		}
		s.index.Remove(r.SpaceID, r.ID)
		s.publish(EventCancelled, r, orphaned)
		s.log(ctx).Info("reservation cancelled", "reservation_id", r.ID, "actor_id", actorID)
		return nil
	})
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest, actorID string, isStaff bool) (*Reservation, error) {
	var out *Reservation
	err := s.withReservation(ctx, id, actorID, isStaff, func(r *Reservation) error {
		if !r.State.Active() {
			return &InvalidTransitionError{From: r.State, Action: ActionUpdate}
		}
		if req.SpaceID != nil && *req.SpaceID != r.SpaceID {
			return ErrSpaceImmutable
		}

		start, end := r.StartTime, r.EndTime
		if req.StartTime != nil {
			start = storedPrecision(*req.StartTime)
		}
		if req.EndTime != nil {
			end = storedPrecision(*req.EndTime)
		}
		timeChanged := !start.Equal(r.StartTime) || !end.Equal(r.EndTime)
		occupantsChanged := req.OccupantCount != nil && *req.OccupantCount != r.OccupantCount

		if !timeChanged && !occupantsChanged {
			cp := *r
			out = &cp
			return nil
		}

		if occupantsChanged {
			if err := s.checkOccupants(ctx, r.SpaceID, *req.OccupantCount); err != nil {
				return err
			}
			r.OccupantCount = *req.OccupantCount
		}
		if timeChanged {
			if err := s.checkFree(ctx, r.SpaceID, start, end, r.ID); err != nil {
				return err
			}
			to, _, err := Transition(r.State, ActionUpdate)
			if err != nil {
				return err
			}
			r.State = to
			r.StartTime, r.EndTime = start, end
		}

		// Only a new interval invalidates the calendar mirror.
		var orphaned string
		var err error
		if timeChanged {
			orphaned, err = s.repo.UpdateUnsynced(ctx, r)
		} else {
			err = s.repo.Update(ctx, r)
		}
		if err != nil {
			return s.conflictFromStore(ctx, err, r.SpaceID, start, end, r.ID)
		}
		if timeChanged {
			s.index.Insert(r.SpaceID, r.ID, r.StartTime, r.EndTime)
		}
		s.publish(EventUpdated, r, orphaned)
		s.log(ctx).Info("reservation updated",
			"reservation_id", r.ID, "state", r.State, "time_changed", timeChanged)

		cp := *r
		out = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, id string, actorID string, isStaff bool, hard bool) error {
	if hard && !isStaff {
		return ErrPermissionDenied
	}
	return s.withReservation(ctx, id, actorID, isStaff, func(r *Reservation) error {
		if !hard {
			if _, _, err := Transition(r.State, ActionDelete); err != nil {
				return err
			}
		}

		orphaned, err := s.repo.Delete(ctx, r.ID)
		if err != nil {
			return err
		}
		s.index.Remove(r.SpaceID, r.ID)
		s.publish(EventDeleted, r, orphaned)
		s.log(ctx).Info("reservation deleted", "reservation_id", r.ID, "hard", hard, "actor_id", actorID)
		return nil
	})
}

func (s *service) GetByID(ctx context.Context, id string) (*Reservation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) FindByID(ctx context.Context, id string) (*Reservation, bool, error) {
	r, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, 0, ErrInvalidInput
	}
	return s.repo.List(ctx, filter)
}

func (s *service) Busy(ctx context.Context, spaceID string, from, to time.Time) ([]Interval, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if _, err := s.lookupSpace(ctx, spaceID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(spaceID)
	defer unlock()
	if _, err := s.reconcile(ctx, spaceID, from, to, ""); err != nil {
		return nil, err
	}
	return s.index.Busy(spaceID, from, to), nil
}

// withReservation runs fn on a freshly loaded reservation while holding its space's lock.
// The first read only locates the space; fn always sees the state committed under the lock.
func (s *service) withReservation(ctx context.Context, id, actorID string, isStaff bool, fn func(r *Reservation) error) error {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !isStaff && r.OwnerID != actorID {
		return ErrPermissionDenied
	}

	unlock := s.locks.Lock(r.SpaceID)
	defer unlock()

	r, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fn(r)
}

// checkFree runs the conflict detector. The index only sees this instance's writes, so a
// rejection is confirmed against the store before it is reported. Called with the space lock held.
func (s *service) checkFree(ctx context.Context, spaceID string, start, end time.Time, excludeID string) error {
	decision, err := s.detector.Check(spaceID, start, end, excludeID)
	if err != nil {
		return err
	}
	if _, ok := decision.(Reject); !ok {
		return nil
	}

	ids, err := s.reconcile(ctx, spaceID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return &ConflictError{SpaceID: spaceID, ConflictingIDs: ids}
}

// conflictFromStore turns an exclusion constraint hit (another instance won the race)
// into a ConflictError listing the reservations now holding the interval.
func (s *service) conflictFromStore(ctx context.Context, err error, spaceID string, start, end time.Time, excludeID string) error {
	if !errors.Is(err, ErrTimeConflict) {
		return err
	}
	ids, lookupErr := s.reconcile(ctx, spaceID, start, end, excludeID)
	if lookupErr != nil {
		s.log(ctx).Warn("lookup conflicting reservations failed", "space_id", spaceID, "error", lookupErr)
	}
	return &ConflictError{SpaceID: spaceID, ConflictingIDs: ids}
}

// reconcile makes the index agree with the store on [start, end) of the space and returns
// the ids the store holds there. Entries cancelled, deleted or moved by another instance
// are dropped or re-placed; rows the index never saw are added. Called with the space lock held.
func (s *service) reconcile(ctx context.Context, spaceID string, start, end time.Time, excludeID string) ([]string, error) {
	held, err := s.repo.Overlapping(ctx, spaceID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(held))
	for _, iv := range held {
		stored[iv.ReservationID] = true
	}

	for _, id := range s.index.Overlapping(spaceID, start, end, excludeID) {
		if stored[id] {
			continue
		}
		r, err := s.repo.GetByID(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			s.index.Remove(spaceID, id)
		case err != nil:
			return nil, err
		case r.State.Active() && r.SpaceID == spaceID:
			s.index.Insert(spaceID, id, r.StartTime, r.EndTime)
		default:
			s.index.Remove(spaceID, id)
		}
	}

	ids := make([]string, 0, len(held))
	for _, iv := range held {
		s.index.Insert(spaceID, iv.ReservationID, iv.Start, iv.End)
		ids = append(ids, iv.ReservationID)
	}
	return ids, nil
}

func (s *service) checkOccupants(ctx context.Context, spaceID string, occupants int) error {
	if occupants < 1 {
		return ErrInvalidOccupants
	}
	sp, err := s.lookupSpace(ctx, spaceID)
	if err != nil {
		return err
	}
	if occupants > sp.Capacity {
		return ErrCapacityExceeded
	}
	return nil
}

func (s *service) lookupSpace(ctx context.Context, spaceID string) (*space.Space, error) {
	sp, err := s.spaces.GetByID(ctx, spaceID)
	if err != nil {
		if errors.Is(err, space.ErrNotFound) {
			return nil, ErrSpaceNotFound
		}
		return nil, err
	}
	return sp, nil
}

// publish must be called with the space lock held so events leave in commit order.
func (s *service) publish(t EventType, r *Reservation, retract string) {
	s.publisher.Publish(Event{
		Type:           t,
		Reservation:    *r,
		RetractEventID: retract,
		OccurredAt:     s.now(),
	})
}

func (s *service) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// storedPrecision truncates t to the microsecond resolution of timestamptz, so the
// index, responses and later reads agree on the same instant.
func storedPrecision(t time.Time) time.Time {
	return t.Truncate(time.Microsecond)
}
