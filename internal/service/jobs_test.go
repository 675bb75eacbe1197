package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digipet-api/internal/model"
	"digipet-api/internal/repository"
)

var errFlaky = errors.New("connection reset")

// flakyStore fails selected pets with a non-NotFound error.
type flakyStore struct {
	*repository.MemoryStore
	failFind    map[int64]bool
	failSave    map[int64]bool
	failFeeding map[int64]bool
}

func (s flakyStore) FindPet(ctx context.Context, id int64) (*model.Pet, error) {
	if s.failFind[id] {
		return nil, errFlaky
	}
	return s.MemoryStore.FindPet(ctx, id)
}

func (s flakyStore) SavePet(ctx context.Context, p *model.Pet) error {
	if s.failSave[p.ID] {
		return errFlaky
	}
	return s.MemoryStore.SavePet(ctx, p)
}

func (s flakyStore) SaveFeeding(ctx context.Context, p *model.Pet, t *model.ScheduledTask) error {
	if s.failFeeding[p.ID] {
		return errFlaky
	}
	return s.MemoryStore.SaveFeeding(ctx, p, t)
}

func TestDecayFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.own(t, 1, 2, model.Attributes{Health: 1, Mood: 1, Happiness: 1})
	f.own(t, 2, 2, model.Attributes{Health: 50, Mood: 50, Happiness: 50})

	d := NewDecay(f.store, f.cache, nil).WithClock(clock)
	require.NoError(t, d.Tick(ctx))

	pet, _ := f.store.FindPet(ctx, 1)
	assert.Equal(t, model.Attributes{}, pet.Attributes())
	assert.Equal(t, testNow, pet.UpdatedAt)
	f.assertConsistent(t, 1)

	pet, _ = f.store.FindPet(ctx, 2)
	assert.Equal(t, model.Attributes{Health: 49, Mood: 48, Happiness: 48}, pet.Attributes())
	f.assertConsistent(t, 2)

	unowned, _ := f.store.FindPet(ctx, 3)
	assert.Equal(t, model.Attributes{Health: 100, Mood: 100, Happiness: 100}, unowned.Attributes())

	require.NoError(t, d.Tick(ctx))
	pet, _ = f.store.FindPet(ctx, 1)
	assert.Equal(t, model.Attributes{}, pet.Attributes())
}

func TestDecaySkipsPetThatFailsToSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.own(t, 1, 2, model.Attributes{Health: 50, Mood: 50, Happiness: 50})
	f.own(t, 2, 2, model.Attributes{Health: 50, Mood: 50, Happiness: 50})

	store := flakyStore{MemoryStore: f.store, failSave: map[int64]bool{1: true}}
	require.NoError(t, NewDecay(store, f.cache, nil).WithClock(clock).Tick(ctx))

	pet, _ := f.store.FindPet(ctx, 1)
	assert.Equal(t, model.Attributes{Health: 50, Mood: 50, Happiness: 50}, pet.Attributes())
	_, cached := f.cache.Get(ctx, 1)
	assert.False(t, cached)

	pet, _ = f.store.FindPet(ctx, 2)
	assert.Equal(t, model.Attributes{Health: 49, Mood: 48, Happiness: 48}, pet.Attributes())
	f.assertConsistent(t, 2)
}

func TestDecayNeverRaises(t *testing.T) {
	assert.Equal(t, model.Attributes{}, decay(model.Attributes{}))
	assert.Equal(t, model.Attributes{Health: 99, Mood: 98, Happiness: 98},
		decay(model.Attributes{Health: 100, Mood: 100, Happiness: 100}))
	assert.Equal(t, -3, lower(-3, 1))
}

func TestFeedingFiresDueTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.own(t, 1, 2, model.Attributes{Health: 50, Mood: 40, Happiness: 30})

	due := testNow.Add(-time.Minute)
	task := &model.ScheduledTask{PetID: 1, Kind: model.TaskFeed, DueAt: due, Weekdays: model.AllWeekdays}
	require.NoError(t, f.store.SaveScheduledTask(ctx, task))

	feeding := NewFeeding(f.store, f.cache, nil).WithClock(clock)
	require.NoError(t, feeding.Tick(ctx))

	pet, _ := f.store.FindPet(ctx, 1)
	assert.Equal(t, model.Attributes{Health: 60, Mood: 40, Happiness: 35}, pet.Attributes())
	f.assertConsistent(t, 1)

	tasks, err := f.store.ListScheduledTasks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, due.Add(24*time.Hour), tasks[0].DueAt)
	assert.False(t, tasks[0].Completed)

	// Not due again until tomorrow.
	require.NoError(t, feeding.Tick(ctx))
	pet, _ = f.store.FindPet(ctx, 1)
	assert.Equal(t, 60, pet.Health)
}

func TestFeedingSkipsIneligibleAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.own(t, 1, 2, model.Attributes{Health: 50, Mood: 50, Happiness: 50})

	wrongDay := &model.ScheduledTask{PetID: 1, Kind: model.TaskFeed, DueAt: testNow.Add(-time.Hour), Weekdays: model.NewWeekdays(time.Tuesday)}
	future := &model.ScheduledTask{PetID: 1, Kind: model.TaskFeed, DueAt: testNow.Add(time.Hour), Weekdays: model.AllWeekdays}
	orphan := &model.ScheduledTask{PetID: 404, Kind: model.TaskFeed, DueAt: testNow.Add(-time.Hour), Weekdays: model.AllWeekdays}
	for _, task := range []*model.ScheduledTask{wrongDay, future, orphan} {
		require.NoError(t, f.store.SaveScheduledTask(ctx, task))
	}

	require.NoError(t, NewFeeding(f.store, f.cache, nil).WithClock(clock).Tick(ctx))

	pet, _ := f.store.FindPet(ctx, 1)
	assert.Equal(t, 50, pet.Health)

	tasks, err := f.store.ListScheduledTasks(ctx, 404)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, orphan.DueAt, tasks[0].DueAt)
}

func TestFeedingIsolatesFailingTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := testNow.Add(-time.Minute)
	for id := int64(1); id <= 3; id++ {
		f.own(t, id, 2, model.Attributes{Health: 50, Mood: 50, Happiness: 50})
		task := &model.ScheduledTask{PetID: id, Kind: model.TaskFeed, DueAt: due, Weekdays: model.AllWeekdays}
		require.NoError(t, f.store.SaveScheduledTask(ctx, task))
	}

	store := flakyStore{
		MemoryStore: f.store,
		failFind:    map[int64]bool{1: true},
		failFeeding: map[int64]bool{2: true},
	}
	require.NoError(t, NewFeeding(store, f.cache, nil).WithClock(clock).Tick(ctx))

	for _, id := range []int64{1, 2} {
		pet, _ := f.store.FindPet(ctx, id)
		assert.Equal(t, 50, pet.Health, "pet %d", id)
		tasks, err := f.store.ListScheduledTasks(ctx, id)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, due, tasks[0].DueAt, "pet %d", id)
	}

	pet, _ := f.store.FindPet(ctx, 3)
	assert.Equal(t, 60, pet.Health)
	f.assertConsistent(t, 3)
	tasks, err := f.store.ListScheduledTasks(ctx, 3)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, due.Add(24*time.Hour), tasks[0].DueAt)
}

func TestTaskEffectUnknownKindIsNoop(t *testing.T) {
	attrs := model.Attributes{Health: 10, Mood: 20, Happiness: 30}
	assert.Equal(t, attrs, taskEffect(model.TaskKind("water"), attrs))
}

func TestJobsUseDefaults(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, DefaultDecayInterval, NewDecay(f.store, f.cache, nil).Job(0).Interval)
	assert.Equal(t, "feeding", NewFeeding(f.store, f.cache, nil).Job(time.Second).Name)
}
