package mint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digipet-api/internal/ledger"
	"digipet-api/internal/model"
	"digipet-api/internal/repository"
)

type poll struct {
	status ledger.Status
	err    error
}

// scriptedLedger replays polls in order, then reports the last entry forever.
type scriptedLedger struct {
	mu        sync.Mutex
	submitErr error
	polls     []poll
	calls     int
	onPoll    func(n int)
	submitted []model.PetIdentity
}

func (l *scriptedLedger) SubmitMint(ctx context.Context, pet model.PetIdentity) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitErr != nil {
		return "", l.submitErr
	}
	l.submitted = append(l.submitted, pet)
	return "opTest", nil
}

func (l *scriptedLedger) PollStatus(ctx context.Context, ref string) (ledger.Status, error) {
	l.mu.Lock()
	l.calls++
	n := l.calls
	idx := n - 1
	if idx >= len(l.polls) {
		idx = len(l.polls) - 1
	}
	next := l.polls[idx]
	hook := l.onPoll
	l.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return next.status, next.err
}

type recordingCache struct {
	mu    sync.Mutex
	snaps []model.Snapshot
}

func (c *recordingCache) Set(_ context.Context, snap model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, snap)
}

func newFixture(t *testing.T, l Ledger) (*Pipeline, *repository.MemoryStore, *recordingCache) {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.CreatePet(context.Background(), &model.Pet{
		Name: "Buddy", Species: "dogs", Breed: "labrador",
		Health: 100, Mood: 100, Happiness: 100,
	}))
	c := &recordingCache{}
	fixed := time.Date(2024, 8, 19, 12, 0, 0, 0, time.UTC)
	p := NewPipeline(store, c, l, Config{PollInterval: time.Millisecond, MaxAttempts: DefaultMaxAttempts}, nil).
		WithClock(func() time.Time { return fixed })
	return p, store, c
}

func pending(n int) []poll {
	out := make([]poll, n)
	for i := range out {
		out[i] = poll{status: ledger.StatusPending}
	}
	return out
}

func TestAdoptConfirmsOnThirdPoll(t *testing.T) {
	l := &scriptedLedger{polls: append(pending(2), poll{status: ledger.StatusApplied})}
	p, store, c := newFixture(t, l)

	res, err := p.Adopt(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "opTest", res.OperationRef)
	require.NotNil(t, res.Pet)
	assert.True(t, res.Pet.OwnedBy(2))
	assert.Equal(t, model.Attributes{Health: 100, Mood: 100, Happiness: 100}, res.Pet.Attributes())

	pet, err := store.FindPet(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, pet.OwnedBy(2))

	require.Len(t, c.snaps, 1)
	assert.True(t, c.snaps[0].OwnedBy(2))
	assert.Equal(t, []model.PetIdentity{{ID: 1, Name: "Buddy", Species: "dogs", Breed: "labrador"}}, l.submitted)
}

func TestAdoptTimesOutAfterBudget(t *testing.T) {
	l := &scriptedLedger{polls: []poll{{status: ledger.StatusAbsent}}}
	p, store, c := newFixture(t, l)

	res, err := p.Adopt(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrLedgerTimedOut)
	assert.Equal(t, StateTimedOut, res.State)
	assert.Equal(t, DefaultMaxAttempts, res.Attempts)
	assert.Equal(t, DefaultMaxAttempts, l.calls)
	assert.Equal(t, "opTest", res.OperationRef)

	pet, _ := store.FindPet(context.Background(), 1)
	assert.False(t, pet.Adopted())
	assert.Empty(t, c.snaps)
}

func TestAdoptTransportErrorsCountTowardBudget(t *testing.T) {
	l := &scriptedLedger{polls: []poll{{err: errors.New("connection reset")}}}
	p, _, _ := newFixture(t, l)

	res, err := p.Adopt(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrLedgerTimedOut)
	assert.Equal(t, DefaultMaxAttempts, res.Attempts)
}

func TestAdoptRecoversAfterTransportError(t *testing.T) {
	l := &scriptedLedger{polls: []poll{
		{err: errors.New("timeout")},
		{status: ledger.StatusApplied},
	}}
	p, _, _ := newFixture(t, l)

	res, err := p.Adopt(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
}

func TestAdoptRejected(t *testing.T) {
	l := &scriptedLedger{polls: []poll{{status: ledger.StatusPending}, {status: ledger.StatusFailed}}}
	p, store, c := newFixture(t, l)

	res, err := p.Adopt(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrLedgerRejected)
	assert.Equal(t, StateRejected, res.State)

	pet, _ := store.FindPet(context.Background(), 1)
	assert.False(t, pet.Adopted())
	assert.Empty(t, c.snaps)
}

func TestAdoptSubmitFailure(t *testing.T) {
	cause := errors.New("node unreachable")
	l := &scriptedLedger{submitErr: cause}
	p, store, _ := newFixture(t, l)

	res, err := p.Adopt(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrLedger)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, StateError, res.State)
	assert.Empty(t, res.OperationRef)
	assert.Zero(t, l.calls)

	pet, _ := store.FindPet(context.Background(), 1)
	assert.False(t, pet.Adopted())
}

func TestAdoptPreconditions(t *testing.T) {
	l := &scriptedLedger{polls: []poll{{status: ledger.StatusApplied}}}
	p, store, _ := newFixture(t, l)

	_, err := p.Adopt(context.Background(), 99, 2)
	assert.ErrorIs(t, err, ErrPetNotFound)

	pet, _ := store.FindPet(context.Background(), 1)
	owner := int64(5)
	pet.OwnerID = &owner
	require.NoError(t, store.SavePet(context.Background(), pet))

	res, err := p.Adopt(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrAlreadyOwned)
	assert.Equal(t, StateRequested, res.State)
	assert.Empty(t, l.submitted)
}

func TestAdoptDoesNotOverwriteConcurrentOwner(t *testing.T) {
	l := &scriptedLedger{polls: []poll{{status: ledger.StatusApplied}}}
	p, store, c := newFixture(t, l)
	l.onPoll = func(int) {
		pet, _ := store.FindPet(context.Background(), 1)
		other := int64(7)
		pet.OwnerID = &other
		_ = store.SavePet(context.Background(), pet)
	}

	_, err := p.Adopt(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrAlreadyOwned)

	pet, _ := store.FindPet(context.Background(), 1)
	assert.True(t, pet.OwnedBy(7))
	assert.Empty(t, c.snaps)
}

func TestAdoptCancelledDuringPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := &scriptedLedger{polls: []poll{{status: ledger.StatusPending}}}
	l.onPoll = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	p, store, _ := newFixture(t, l)

	res, err := p.Adopt(ctx, 1, 2)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrLedgerTimedOut)
	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, "opTest", res.OperationRef)
	assert.Less(t, res.Attempts, DefaultMaxAttempts)

	pet, _ := store.FindPet(context.Background(), 1)
	assert.False(t, pet.Adopted())
}

func TestAdoptCommitsWhenCallerLeavesAfterApplied(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := &scriptedLedger{polls: []poll{{status: ledger.StatusPending}, {status: ledger.StatusApplied}}}
	l.onPoll = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	_, store, c := newFixture(t, l)
	p := NewPipeline(ctxStore{store}, c, l, Config{PollInterval: time.Millisecond}, nil)

	res, err := p.Adopt(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, res.State)
	assert.Equal(t, 2, res.Attempts)

	pet, err := store.FindPet(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, pet.OwnedBy(2))
	require.Len(t, c.snaps, 1)
	assert.True(t, c.snaps[0].OwnedBy(2))
}

// ctxStore fails like a database driver once the context is done.
type ctxStore struct {
	*repository.MemoryStore
}

func (s ctxStore) FindPet(ctx context.Context, id int64) (*model.Pet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.FindPet(ctx, id)
}

func (s ctxStore) SavePet(ctx context.Context, p *model.Pet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.SavePet(ctx, p)
}

func TestAdoptFirstPollIsImmediate(t *testing.T) {
	l := &scriptedLedger{polls: []poll{{status: ledger.StatusApplied}}}
	store := repository.NewMemoryStore()
	require.NoError(t, store.CreatePet(context.Background(), &model.Pet{Name: "Rex", Species: "dogs", Breed: "beagle"}))
	p := NewPipeline(store, &recordingCache{}, l, Config{PollInterval: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Adopt(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, res.State)
	assert.Equal(t, 1, res.Attempts)
}

func TestAdoptCancelledBeforeFirstPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := &cancellingSubmit{scriptedLedger: scriptedLedger{polls: []poll{{status: ledger.StatusApplied}}}, cancel: cancel}
	p, store, _ := newFixture(t, l)

	res, err := p.Adopt(ctx, 1, 2)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StateCancelled, res.State)
	assert.Zero(t, res.Attempts)
	assert.Equal(t, "opTest", res.OperationRef)

	pet, _ := store.FindPet(context.Background(), 1)
	assert.False(t, pet.Adopted())
}

// cancellingSubmit cancels the caller right after the mint is accepted.
type cancellingSubmit struct {
	scriptedLedger
	cancel context.CancelFunc
}

func (l *cancellingSubmit) SubmitMint(ctx context.Context, pet model.PetIdentity) (string, error) {
	ref, err := l.scriptedLedger.SubmitMint(ctx, pet)
	l.cancel()
	return ref, err
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "timed_out", StateTimedOut.String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StatePolling.Terminal())

	text, err := StateConfirmed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "confirmed", string(text))
}
