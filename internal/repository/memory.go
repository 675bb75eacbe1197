package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"digipet-api/internal/model"
)

// MemoryStore is an in-process Store for development and tests. Records
// are copied in and out so callers never share state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	pets       map[int64]model.Pet
	tasks      map[int64]model.ScheduledTask
	nextPetID  int64
	nextTaskID int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pets:  make(map[int64]model.Pet),
		tasks: make(map[int64]model.ScheduledTask),
	}
}

func clonePet(p model.Pet) model.Pet {
	if p.OwnerID != nil {
		owner := *p.OwnerID
		p.OwnerID = &owner
	}
	return p
}

// FindPet returns the pet with id, or ErrNotFound.
func (s *MemoryStore) FindPet(ctx context.Context, id int64) (*model.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clonePet(p)
	return &out, nil
}

// ListPets returns pets matching filter ordered by id.
func (s *MemoryStore) ListPets(ctx context.Context, filter PetFilter) ([]model.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Pet, 0, len(s.pets))
	for _, p := range s.pets {
		if filter.Match(&p) {
			out = append(out, clonePet(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreatePet inserts p and assigns its ID when zero.
func (s *MemoryStore) CreatePet(ctx context.Context, p *model.Pet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		s.nextPetID++
		for s.pets[s.nextPetID].ID != 0 {
			s.nextPetID++
		}
		p.ID = s.nextPetID
	} else if p.ID > s.nextPetID {
		s.nextPetID = p.ID
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	s.pets[p.ID] = clonePet(*p)
	return nil
}

// SavePet overwrites an existing pet.
func (s *MemoryStore) SavePet(ctx context.Context, p *model.Pet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.savePetLocked(p)
}

func (s *MemoryStore) savePetLocked(p *model.Pet) error {
	if _, ok := s.pets[p.ID]; !ok {
		return ErrNotFound
	}
	s.pets[p.ID] = clonePet(*p)
	return nil
}

// FindScheduledTasksDue returns pending tasks due at now on now's weekday.
func (s *MemoryStore) FindScheduledTasksDue(ctx context.Context, now time.Time) ([]model.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.ScheduledTask{}
	for _, t := range s.tasks {
		if t.Due(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListScheduledTasks returns every task for a pet.
func (s *MemoryStore) ListScheduledTasks(ctx context.Context, petID int64) ([]model.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.ScheduledTask{}
	for _, t := range s.tasks {
		if t.PetID == petID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveScheduledTask inserts or overwrites t.
func (s *MemoryStore) SaveScheduledTask(ctx context.Context, t *model.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveTaskLocked(t)
}

func (s *MemoryStore) saveTaskLocked(t *model.ScheduledTask) error {
	if t.ID == 0 {
		s.nextTaskID++
		t.ID = s.nextTaskID
	} else if _, ok := s.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	t.DueAt = t.DueAt.UTC()
	s.tasks[t.ID] = *t
	return nil
}

// SaveFeeding persists p and t together.
func (s *MemoryStore) SaveFeeding(ctx context.Context, p *model.Pet, t *model.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pets[p.ID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.tasks[t.ID]; !ok && t.ID != 0 {
		return ErrNotFound
	}
	if err := s.saveTaskLocked(t); err != nil {
		return err
	}
	return s.savePetLocked(p)
}

// Stats returns record counts.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Pets: int64(len(s.pets))}
	for _, p := range s.pets {
		if p.Adopted() {
			st.AdoptedPets++
		}
	}
	for _, t := range s.tasks {
		if !t.Completed {
			st.PendingTasks++
		}
	}
	return st, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
