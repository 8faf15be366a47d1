package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu       sync.RWMutex
	checkins map[uuid.UUID]CheckIn
	entries  map[uuid.UUID]Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		checkins: make(map[uuid.UUID]CheckIn),
		entries:  make(map[uuid.UUID]Entry),
	}
}

func (r *MemoryRepository) InsertCheckIn(_ context.Context, c CheckIn) (*CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.checkins[c.ID] = c
	return &c, nil
}

// InsertCheckInWithEntry stores both rows under one lock.
func (r *MemoryRepository) InsertCheckInWithEntry(_ context.Context, c CheckIn, e Entry) (*CheckIn, *Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CheckInID = c.ID
	r.checkins[c.ID] = c
	r.entries[e.ID] = e
	return &c, &e, nil
}

func (r *MemoryRepository) InsertQueueEntry(_ context.Context, e Entry) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.checkins[e.CheckInID]; !ok {
		return nil, ErrCheckInNotFound
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.entries[e.ID] = e
	return &e, nil
}

func (r *MemoryRepository) GetQueueEntry(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

func (r *MemoryRepository) UpdateQueueEntry(_ context.Context, e Entry, from Status) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[e.ID]
	if !ok || current.Status != from {
		return nil, ErrEntryNotFound
	}
	current.Status = e.Status
	current.StartedAt = e.StartedAt
	current.CompletedAt = e.CompletedAt
	r.entries[e.ID] = current
	return &current, nil
}

func (r *MemoryRepository) DeleteQueueEntry(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *MemoryRepository) ListActiveQueue(_ context.Context, doctorID *uuid.UUID) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.Status.Active() {
			continue
		}
		if doctorID != nil && e.DoctorID != *doctorID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return activeLess(out[i], out[j]) })
	return out, nil
}
