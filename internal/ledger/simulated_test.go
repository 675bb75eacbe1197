package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digipet-api/internal/model"
)

func TestSimulatedConfirmsAfterPolls(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(3)

	ref, err := sim.SubmitMint(ctx, model.PetIdentity{ID: 2, Name: "Whiskers"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		st, err := sim.PollStatus(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, st)
	}
	st, err := sim.PollStatus(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, st)

	pet, ok := sim.Minted(ref)
	require.True(t, ok)
	assert.Equal(t, "Whiskers", pet.Name)
}

func TestSimulatedUnknownRefIsAbsent(t *testing.T) {
	st, err := NewSimulated(1).PollStatus(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, st)
}

func TestSimulatedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulated(1).SubmitMint(ctx, model.PetIdentity{})
	assert.ErrorIs(t, err, context.Canceled)
}
