// Package service implements the pet request paths and background jobs.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"digipet-api/internal/cache"
	"digipet-api/internal/interaction"
	"digipet-api/internal/mint"
	"digipet-api/internal/model"
	"digipet-api/internal/repository"
)

// Adopter runs the mint-and-confirm adoption flow.
type Adopter interface {
	Adopt(ctx context.Context, petID, userID int64) (*mint.Result, error)
}

// FeedingRequest schedules a recurring feed. Time is "HH:MM" or "HH:MM:SS"
// in TimeZone, an IANA zone name; empty selects the service default.
type FeedingRequest struct {
	PetID    int64    `json:"pet_id"`
	Time     string   `json:"time"`
	Weekdays []string `json:"weekdays"`
	TimeZone string   `json:"time_zone,omitempty"`
}

// PetService serves the user-facing pet operations.
type PetService struct {
	store   repository.Store
	cache   *cache.PetCache
	adopter Adopter
	loc     *time.Location
	now     func() time.Time
	log     *slog.Logger
}

// Option configures a PetService.
type Option func(*PetService)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *PetService) { s.now = now }
}

// WithLocation sets the zone for feeding times without an explicit zone.
func WithLocation(loc *time.Location) Option {
	return func(s *PetService) { s.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *PetService) { s.log = l }
}

// NewPetService creates a PetService.
func NewPetService(store repository.Store, petCache *cache.PetCache, adopter Adopter, opts ...Option) *PetService {
	s := &PetService{
		store:   store,
		cache:   petCache,
		adopter: adopter,
		loc:     time.Local,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "pet_service")
	return s
}

// Get returns a pet, reading through the cache.
func (s *PetService) Get(ctx context.Context, petID int64) (model.Snapshot, error) {
	if snap, ok := s.cache.Get(ctx, petID); ok {
		return snap, nil
	}
	pet, err := s.store.FindPet(ctx, petID)
	if err != nil {
		return model.Snapshot{}, storeError("find pet", err)
	}
	snap := pet.Snapshot()
	s.cache.Set(ctx, snap)
	return snap, nil
}

// List returns every pet.
func (s *PetService) List(ctx context.Context) ([]model.Snapshot, error) {
	return s.list(ctx, repository.PetFilter{})
}

// ListAvailable returns pets without an owner.
func (s *PetService) ListAvailable(ctx context.Context) ([]model.Snapshot, error) {
	return s.list(ctx, repository.PetFilter{Adoption: repository.AdoptionAvailable})
}

// ListByOwner returns the pets owned by userID.
func (s *PetService) ListByOwner(ctx context.Context, userID int64) ([]model.Snapshot, error) {
	return s.list(ctx, repository.PetFilter{Adoption: repository.AdoptionOwned, OwnerID: &userID})
}

func (s *PetService) list(ctx context.Context, filter repository.PetFilter) ([]model.Snapshot, error) {
	pets, err := s.store.ListPets(ctx, filter)
	if err != nil {
		return nil, storeError("list pets", err)
	}
	out := make([]model.Snapshot, 0, len(pets))
	for i := range pets {
		out = append(out, pets[i].Snapshot())
	}
	return out, nil
}

// Interact applies one interaction to a pet owned by userID and returns
// the updated pet.
func (s *PetService) Interact(ctx context.Context, petID, userID int64, kind string) (model.Snapshot, error) {
	k, err := interaction.ParseKind(kind)
	if err != nil {
		return model.Snapshot{}, invalidInput("%v", err)
	}

	pet, err := s.ownedPet(ctx, petID, userID)
	if err != nil {
		return model.Snapshot{}, err
	}

	attrs, err := interaction.Apply(pet.Attributes(), k)
	if err != nil {
		return model.Snapshot{}, invalidInput("%v", err)
	}
	pet.SetAttributes(attrs)
	pet.UpdatedAt = s.now().UTC()

	if err := s.store.SavePet(ctx, pet); err != nil {
		return model.Snapshot{}, storeError("save pet", err)
	}
	snap := pet.Snapshot()
	s.cache.Set(ctx, snap)

	s.log.Debug("interaction applied", "pet_id", petID, "kind", k,
		"health", attrs.Health, "mood", attrs.Mood, "happiness", attrs.Happiness)
	return snap, nil
}

// Adopt mints petID for userID and records ownership once confirmed.
func (s *PetService) Adopt(ctx context.Context, petID, userID int64) (*mint.Result, error) {
	res, err := s.adopter.Adopt(ctx, petID, userID)
	return res, adoptError(err)
}

// ScheduleFeeding creates a recurring feed for a pet owned by userID.
func (s *PetService) ScheduleFeeding(ctx context.Context, userID int64, req FeedingRequest) (*model.ScheduledTask, error) {
	if len(req.Weekdays) == 0 {
		return nil, invalidInput("at least one weekday is required")
	}
	days, err := model.ParseWeekdays(req.Weekdays)
	if err != nil {
		return nil, invalidInput("%v", err)
	}
	tod, err := parseTimeOfDay(req.Time)
	if err != nil {
		return nil, err
	}
	loc := s.loc
	if req.TimeZone != "" {
		if loc, err = time.LoadLocation(req.TimeZone); err != nil {
			return nil, invalidInput("unknown time zone %q", req.TimeZone)
		}
	}

	if _, err := s.ownedPet(ctx, req.PetID, userID); err != nil {
		return nil, err
	}

	now := s.now().In(loc)
	local := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc)
	due := local.UTC()

	// Due times fire on UTC weekdays, so the caller's days move with the
	// conversion when it crosses midnight.
	days = days.Shift(dayOffset(local, due))

	task := &model.ScheduledTask{
		PetID:    req.PetID,
		Kind:     model.TaskFeed,
		DueAt:    due,
		Weekdays: days,
	}
	if err := s.store.SaveScheduledTask(ctx, task); err != nil {
		return nil, storeError("save task", err)
	}
	s.log.Info("feeding scheduled", "pet_id", req.PetID, "task_id", task.ID,
		"due_at", task.DueAt, "weekdays", days.String())
	return task, nil
}

// ListSchedules returns the tasks of a pet owned by userID.
func (s *PetService) ListSchedules(ctx context.Context, petID, userID int64) ([]model.ScheduledTask, error) {
	if _, err := s.ownedPet(ctx, petID, userID); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListScheduledTasks(ctx, petID)
	if err != nil {
		return nil, storeError("list tasks", err)
	}
	return tasks, nil
}

// Stats returns store statistics.
func (s *PetService) Stats(ctx context.Context) (repository.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return repository.Stats{}, storeError("stats", err)
	}
	return st, nil
}

// ownedPet loads a pet through the cache and checks that userID owns it.
func (s *PetService) ownedPet(ctx context.Context, petID, userID int64) (*model.Pet, error) {
	snap, err := s.Get(ctx, petID)
	if err != nil {
		return nil, err
	}
	if !snap.OwnedBy(userID) {
		return nil, ErrUnauthorized
	}
	return snap.Pet(), nil
}

// dayOffset returns the calendar-day difference from a's date to b's date,
// each read in its own location.
func dayOffset(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

var timeOfDayLayouts = []string{"15:04:05", "15:04"}

func parseTimeOfDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalidInput("time is required")
	}
	for _, layout := range timeOfDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalidInput("malformed time %q", s)
}
