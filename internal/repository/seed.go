package repository

import (
	"context"
	"fmt"
	"time"

	"digipet-api/internal/model"
)

// seededAt is the creation time of the catalogue pets in the seed migration.
var seededAt = time.UnixMilli(1723939200000).UTC()

// Catalogue returns the adoptable pets every fresh store starts with. The
// SQL stores receive the same rows from the seed migration.
func Catalogue() []model.Pet {
	entries := []struct{ name, species, breed string }{
		{"Buddy", "dogs", "labrador"},
		{"Whiskers", "cats", "persian"},
		{"Tweety", "birds", "canary"},
		{"Rex", "dogs", "german shepherd"},
		{"Fluffy", "cats", "maine coon"},
		{"Polly", "birds", "parrot"},
		{"Spike", "dogs", "bulldog"},
		{"Mittens", "cats", "siamese"},
		{"Chirpy", "birds", "finch"},
		{"Max", "dogs", "golden retriever"},
		{"Luna", "cats", "russian blue"},
		{"Kiwi", "birds", "budgerigar"},
		{"Rocky", "dogs", "rottweiler"},
	}

	pets := make([]model.Pet, len(entries))
	for i, e := range entries {
		pets[i] = model.Pet{
			ID:        int64(i + 1),
			Name:      e.name,
			Species:   e.species,
			Breed:     e.breed,
			Health:    model.AttributeMax,
			Mood:      model.AttributeMax,
			Happiness: model.AttributeMax,
			CreatedAt: seededAt,
			UpdatedAt: seededAt,
		}
	}
	return pets
}

// Seed inserts the catalogue into repo.
func Seed(ctx context.Context, repo PetRepository) error {
	for _, p := range Catalogue() {
		if err := repo.CreatePet(ctx, &p); err != nil {
			return fmt.Errorf("seed pet %d: %w", p.ID, err)
		}
	}
	return nil
}
