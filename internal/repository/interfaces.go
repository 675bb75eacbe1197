package repository

import (
	"context"
	"errors"
	"time"

	"digipet-api/internal/model"
)

// ErrNotFound is returned when a pet or task does not exist.
var ErrNotFound = errors.New("not found")

// Adoption narrows a pet listing by ownership state.
type Adoption int

const (
	AdoptionAny Adoption = iota
	AdoptionOwned
	AdoptionAvailable
)

// PetFilter selects pets in ListPets. The zero value selects all pets.
type PetFilter struct {
	Adoption Adoption
	OwnerID  *int64
}

// Match reports whether p satisfies the filter.
func (f PetFilter) Match(p *model.Pet) bool {
	switch f.Adoption {
	case AdoptionOwned:
		if !p.Adopted() {
			return false
		}
	case AdoptionAvailable:
		if p.Adopted() {
			return false
		}
	}
	if f.OwnerID != nil && !p.OwnedBy(*f.OwnerID) {
		return false
	}
	return true
}

// PetRepository is the authoritative pet record store.
type PetRepository interface {
	// FindPet returns the pet with id, or ErrNotFound.
	FindPet(ctx context.Context, id int64) (*model.Pet, error)

	// ListPets returns pets matching filter ordered by id.
	ListPets(ctx context.Context, filter PetFilter) ([]model.Pet, error)

	// CreatePet inserts p and assigns its ID.
	CreatePet(ctx context.Context, p *model.Pet) error

	// SavePet overwrites an existing pet. Returns ErrNotFound if absent.
	SavePet(ctx context.Context, p *model.Pet) error
}

// TaskRepository stores scheduled tasks.
type TaskRepository interface {
	// FindScheduledTasksDue returns pending tasks with DueAt <= now whose
	// weekday set contains now's UTC weekday.
	FindScheduledTasksDue(ctx context.Context, now time.Time) ([]model.ScheduledTask, error)

	// ListScheduledTasks returns every task for a pet ordered by id.
	ListScheduledTasks(ctx context.Context, petID int64) ([]model.ScheduledTask, error)

	// SaveScheduledTask inserts t when t.ID is zero, otherwise overwrites it.
	SaveScheduledTask(ctx context.Context, t *model.ScheduledTask) error

	// SaveFeeding persists a pet and the task that fed it in one transaction.
	SaveFeeding(ctx context.Context, p *model.Pet, t *model.ScheduledTask) error
}

// Stats summarizes store contents for the admin endpoint.
type Stats struct {
	Pets         int64 `json:"pets"`
	AdoptedPets  int64 `json:"adopted_pets"`
	PendingTasks int64 `json:"pending_tasks"`
}

// Store is the durable store used by the engine.
type Store interface {
	PetRepository
	TaskRepository

	// Stats returns store statistics.
	Stats(ctx context.Context) (Stats, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close closes the repository connection.
	Close() error
}
