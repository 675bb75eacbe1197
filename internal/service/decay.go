package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"digipet-api/internal/cache"
	"digipet-api/internal/model"
	"digipet-api/internal/repository"
	"digipet-api/internal/scheduler"
	"digipet-api/internal/telemetry"
)

// DefaultDecayInterval is how often owned pets lose attributes.
const DefaultDecayInterval = time.Hour

// decayStep is subtracted from every owned pet on each tick.
var decayStep = model.Attributes{Health: 1, Mood: 2, Happiness: 2}

// Decay lowers the attributes of every owned pet.
type Decay struct {
	pets  repository.PetRepository
	cache *cache.PetCache
	now   func() time.Time
	log   *slog.Logger

	decayed  metric.Int64Counter
	failures metric.Int64Counter
}

// NewDecay creates the decay job.
func NewDecay(pets repository.PetRepository, petCache *cache.PetCache, logger *slog.Logger) *Decay {
	if logger == nil {
		logger = slog.Default()
	}
	meter := telemetry.Meter("digipet-api/decay")
	decayed, _ := meter.Int64Counter("decay.pets", metric.WithDescription("Pets decayed"))
	failures, _ := meter.Int64Counter("decay.failures", metric.WithDescription("Pets that failed to save during decay"))

	return &Decay{
		pets:     pets,
		cache:    petCache,
		now:      time.Now,
		log:      logger.With("component", "decay"),
		decayed:  decayed,
		failures: failures,
	}
}

// WithClock overrides the clock used to stamp UpdatedAt.
func (d *Decay) WithClock(now func() time.Time) *Decay {
	d.now = now
	return d
}

// Job registers Tick with the scheduler.
func (d *Decay) Job(interval time.Duration) scheduler.Job {
	if interval <= 0 {
		interval = DefaultDecayInterval
	}
	return scheduler.Job{Name: "decay", Interval: interval, Run: d.Tick}
}

// Tick decays every owned pet once. A pet that fails to save is skipped.
func (d *Decay) Tick(ctx context.Context) error {
	pets, err := d.pets.ListPets(ctx, repository.PetFilter{Adoption: repository.AdoptionOwned})
	if err != nil {
		return storeError("list owned pets", err)
	}

	var updated, failed int
	for i := range pets {
		pet := &pets[i]
		pet.SetAttributes(decay(pet.Attributes()))
		pet.UpdatedAt = d.now().UTC()

		if err := d.pets.SavePet(ctx, pet); err != nil {
			failed++
			d.log.Error("failed to save decayed pet", "pet_id", pet.ID, "error", err)
			continue
		}
		d.cache.Set(ctx, pet.Snapshot())
		updated++
	}

	d.decayed.Add(ctx, int64(updated))
	d.failures.Add(ctx, int64(failed))
	d.log.Info("decay tick finished", "updated", updated, "failed", failed)
	return nil
}

// decay subtracts decayStep, flooring at zero. It never raises a value.
func decay(a model.Attributes) model.Attributes {
	return model.Attributes{
		Health:    lower(a.Health, decayStep.Health),
		Mood:      lower(a.Mood, decayStep.Mood),
		Happiness: lower(a.Happiness, decayStep.Happiness),
	}
}

func lower(v, by int) int {
	n := v - by
	if n < model.AttributeMin {
		n = model.AttributeMin
	}
	return min(n, v)
}
