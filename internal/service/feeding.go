package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"digipet-api/internal/cache"
	"digipet-api/internal/interaction"
	"digipet-api/internal/model"
	"digipet-api/internal/repository"
	"digipet-api/internal/scheduler"
	"digipet-api/internal/telemetry"
)

// DefaultFeedingInterval is how often due tasks are dispatched.
const DefaultFeedingInterval = time.Minute

// taskRecurrence is how far a fired task's due time moves forward.
const taskRecurrence = 24 * time.Hour

// FeedingStore is what the dispatcher needs from the durable store.
type FeedingStore interface {
	repository.PetRepository
	repository.TaskRepository
}

// Feeding fires due scheduled tasks.
type Feeding struct {
	store FeedingStore
	cache *cache.PetCache
	now   func() time.Time
	log   *slog.Logger

	fired metric.Int64Counter
}

// NewFeeding creates the feeding dispatcher.
func NewFeeding(store FeedingStore, petCache *cache.PetCache, logger *slog.Logger) *Feeding {
	if logger == nil {
		logger = slog.Default()
	}
	fired, _ := telemetry.Meter("digipet-api/feeding").Int64Counter("feeding.fired",
		metric.WithDescription("Scheduled tasks fired"))

	return &Feeding{
		store: store,
		cache: petCache,
		now:   time.Now,
		log:   logger.With("component", "feeding"),
		fired: fired,
	}
}

// WithClock overrides the dispatcher clock.
func (f *Feeding) WithClock(now func() time.Time) *Feeding {
	f.now = now
	return f
}

// Job registers Tick with the scheduler.
func (f *Feeding) Job(interval time.Duration) scheduler.Job {
	if interval <= 0 {
		interval = DefaultFeedingInterval
	}
	return scheduler.Job{Name: "feeding", Interval: interval, Run: f.Tick}
}

// Tick fires every task due now. A task whose pet is gone is left as is.
func (f *Feeding) Tick(ctx context.Context) error {
	now := f.now().UTC()
	tasks, err := f.store.FindScheduledTasksDue(ctx, now)
	if err != nil {
		return storeError("find due tasks", err)
	}

	var fired int
	for i := range tasks {
		if f.dispatch(ctx, &tasks[i], now) {
			fired++
		}
	}

	f.fired.Add(ctx, int64(fired))
	if len(tasks) > 0 {
		f.log.Info("feeding tick finished", "due", len(tasks), "fired", fired)
	}
	return nil
}

func (f *Feeding) dispatch(ctx context.Context, task *model.ScheduledTask, now time.Time) bool {
	log := f.log.With("task_id", task.ID, "pet_id", task.PetID)

	pet, err := f.store.FindPet(ctx, task.PetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("scheduled task targets missing pet")
		} else {
			log.Error("failed to load pet for task", "error", err)
		}
		return false
	}

	pet.SetAttributes(taskEffect(task.Kind, pet.Attributes()))
	pet.UpdatedAt = now

	// Recurring: the task completes and is immediately pending again one
	// day later.
	task.DueAt = task.DueAt.Add(taskRecurrence)
	task.Completed = false

	if err := f.store.SaveFeeding(ctx, pet, task); err != nil {
		log.Error("failed to save fired task", "error", err)
		return false
	}
	f.cache.Set(ctx, pet.Snapshot())
	return true
}

// taskEffect returns attrs after a task of kind fires. Unknown kinds leave
// the pet unchanged.
func taskEffect(kind model.TaskKind, attrs model.Attributes) model.Attributes {
	switch kind {
	case model.TaskFeed:
		out, err := interaction.Apply(attrs, model.InteractionFeed)
		if err != nil {
			return attrs
		}
		return out
	default:
		return attrs
	}
}
