package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digipet-api/internal/model"
)

func TestApply_Deltas(t *testing.T) {
	start := model.Attributes{Health: 50, Mood: 50, Happiness: 50}

	tests := []struct {
		kind model.InteractionKind
		want model.Attributes
	}{
		{model.InteractionFeed, model.Attributes{Health: 60, Mood: 50, Happiness: 55}},
		{model.InteractionPlay, model.Attributes{Health: 45, Mood: 65, Happiness: 60}},
		{model.InteractionTrain, model.Attributes{Health: 55, Mood: 40, Happiness: 65}},
		{model.InteractionGroom, model.Attributes{Health: 65, Mood: 45, Happiness: 55}},
		{model.InteractionAdventure, model.Attributes{Health: 40, Mood: 70, Happiness: 65}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := Apply(start, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_StaysInBoundsForAllInputs(t *testing.T) {
	for _, kind := range Kinds() {
		for h := 0; h <= 100; h += 5 {
			for m := 0; m <= 100; m += 5 {
				for hp := 0; hp <= 100; hp += 5 {
					got, err := Apply(model.Attributes{Health: h, Mood: m, Happiness: hp}, kind)
					require.NoError(t, err)
					if !got.InRange() {
						t.Fatalf("%s from (%d,%d,%d) left bounds: %+v", kind, h, m, hp, got)
					}
				}
			}
		}
	}
}

func TestApply_FeedAtCeilingIsIdempotent(t *testing.T) {
	full := model.Attributes{Health: 100, Mood: 100, Happiness: 100}

	once, err := Apply(full, model.InteractionFeed)
	require.NoError(t, err)
	twice, err := Apply(once, model.InteractionFeed)
	require.NoError(t, err)

	assert.Equal(t, full, once)
	assert.Equal(t, full, twice)
}

func TestApply_ClampsHealthOnly(t *testing.T) {
	got, err := Apply(model.Attributes{Health: 95, Mood: 80, Happiness: 80}, model.InteractionFeed)
	require.NoError(t, err)
	assert.Equal(t, model.Attributes{Health: 100, Mood: 80, Happiness: 85}, got)
}

func TestApply_FloorAtZero(t *testing.T) {
	got, err := Apply(model.Attributes{Health: 3, Mood: 4, Happiness: 0}, model.InteractionAdventure)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Health)

	got, err = Apply(model.Attributes{Health: 50, Mood: 4, Happiness: 50}, model.InteractionTrain)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Mood)
}

func TestApply_UnknownKind(t *testing.T) {
	start := model.Attributes{Health: 10, Mood: 20, Happiness: 30}
	got, err := Apply(start, "dance")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, start, got)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind(" Groom ")
	require.NoError(t, err)
	assert.Equal(t, model.InteractionGroom, kind)

	_, err = ParseKind("sleep")
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = ParseKind("")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
