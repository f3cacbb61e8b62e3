package reservation

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/calendar"
	"github.com/nekogravitycat/space-reservation-backend/internal/space"
)

// memRepo mimics the Postgres repository, including the exclusion constraint, the
// column split between Update and UpdateUnsynced and the conditional MarkSynchronized write.
type memRepo struct {
	mu   sync.Mutex
	rows map[string]*Reservation
	seq  int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]*Reservation)}
}

func (m *memRepo) overlapsLocked(spaceID string, start, end time.Time, excludeID string) []Interval {
	var hits []*Reservation
	for _, r := range m.rows {
		if r.ID == excludeID || r.SpaceID != spaceID || !r.State.Active() {
			continue
		}
		if r.StartTime.Before(end) && start.Before(r.EndTime) {
			hits = append(hits, r)
		}
	}
	slices.SortFunc(hits, func(a, b *Reservation) int { return a.StartTime.Compare(b.StartTime) })
	held := make([]Interval, 0, len(hits))
	for _, r := range hits {
		held = append(held, r.Interval())
	}
	return held
}

func (m *memRepo) Create(_ context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.overlapsLocked(r.SpaceID, r.StartTime, r.EndTime, "")) > 0 {
		return ErrTimeConflict
	}
	m.seq++
	r.ID = "res-" + strconv.Itoa(m.seq)
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]*Reservation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reservation
	for _, r := range m.rows {
		if f.OwnerID != "" && r.OwnerID != f.OwnerID {
			continue
		}
		if f.SpaceID != "" && r.SpaceID != f.SpaceID {
			continue
		}
		if f.State != "" && r.State != f.State {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Reservation) int { return a.StartTime.Compare(b.StartTime) })
	return out, len(out), nil
}

func (m *memRepo) ListActive(_ context.Context) ([]*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reservation
	for _, r := range m.rows {
		if r.State.Active() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ListUnsynced(_ context.Context, limit int) ([]*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reservation
	for _, r := range m.rows {
		if r.State.Active() && !r.Synchronized {
			cp := *r
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *Reservation) int { return a.StartTime.Compare(b.StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) Overlapping(_ context.Context, spaceID string, start, end time.Time, excludeID string) ([]Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlapsLocked(spaceID, start, end, excludeID), nil
}

func (m *memRepo) Update(_ context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[r.ID]
	if !ok {
		return ErrNotFound
	}
	stored.OccupantCount = r.OccupantCount
	stored.State = r.State
	stored.UpdatedAt = time.Now()

	r.Synchronized = stored.Synchronized
	r.ExternalEventID = stored.ExternalEventID
	r.SyncGeneration = stored.SyncGeneration
	r.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *memRepo) UpdateUnsynced(_ context.Context, r *Reservation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[r.ID]
	if !ok {
		return "", ErrNotFound
	}
	if r.State.Active() && len(m.overlapsLocked(r.SpaceID, r.StartTime, r.EndTime, r.ID)) > 0 {
		return "", ErrTimeConflict
	}
	orphaned := stored.ExternalEventID

	r.Synchronized = false
	r.ExternalEventID = ""
	r.SyncGeneration = stored.SyncGeneration + 1
	r.UpdatedAt = time.Now()
	cp := *r
	m.rows[r.ID] = &cp
	return orphaned, nil
}

func (m *memRepo) MarkSynchronized(_ context.Context, id, eventID string, generation int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || !r.State.Active() || r.Synchronized || r.SyncGeneration != generation {
		return false, nil
	}
	r.Synchronized = true
	r.ExternalEventID = eventID
	return true, nil
}

func (m *memRepo) Delete(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return "", ErrNotFound
	}
	delete(m.rows, id)
	return r.ExternalEventID, nil
}

type fakeSpaces map[string]*space.Space

func (f fakeSpaces) GetByID(_ context.Context, id string) (*space.Space, error) {
	sp, ok := f[id]
	if !ok {
		return nil, space.ErrNotFound
	}
	return sp, nil
}

// recordingPublisher collects events synchronously.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) Last() Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// fakeProvider is an in-memory calendar. If gate is set, CreateEvent blocks on it.
// Like a real provider it answers a repeated idempotency key with the id it handed out
// first, whether or not that event still exists.
type fakeProvider struct {
	mu        sync.Mutex
	seq       int
	events    map[string]calendar.Event
	keys      map[string]string
	deleted   []string
	createErr error
	gate      chan struct{}
	entered   chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		events: make(map[string]calendar.Event),
		keys:   make(map[string]string),
	}
}

func (p *fakeProvider) CreateEvent(ctx context.Context, ev calendar.Event) (string, error) {
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return "", p.createErr
	}
	key := calendar.IdempotencyKey(ev)
	if id, ok := p.keys[key]; ok {
		return id, nil
	}
	p.seq++
	id := "evt-" + strconv.Itoa(p.seq)
	p.events[id] = ev
	p.keys[key] = id
	return id, nil
}

func (p *fakeProvider) DeleteEvent(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.events[id]; !ok {
		return calendar.ErrEventNotFound
	}
	delete(p.events, id)
	p.deleted = append(p.deleted, id)
	return nil
}

func (p *fakeProvider) Live() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.events))
	for id := range p.events {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p *fakeProvider) Deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.deleted)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) Notify(_ context.Context, kind, reservationID, ownerID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, kind+":"+reservationID+":"+ownerID)
	return nil
}

func (n *recordingNotifier) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.calls)
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 1, 1, hour, minute, 0, 0, time.UTC)
}

// hookRepo runs beforeUpdate once, right before the next Update reaches the store.
type hookRepo struct {
	*memRepo
	beforeUpdate func()
}

func (h *hookRepo) Update(ctx context.Context, r *Reservation) error {
	if fn := h.beforeUpdate; fn != nil {
		h.beforeUpdate = nil
		fn()
	}
	return h.memRepo.Update(ctx, r)
}
