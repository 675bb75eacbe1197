// Package interaction maps an interaction kind onto pet attribute deltas.
package interaction

import (
	"errors"
	"fmt"
	"strings"

	"digipet-api/internal/model"
)

// ErrUnknownKind is returned for an interaction kind outside the table.
var ErrUnknownKind = errors.New("unknown interaction kind")

// Delta is the signed change an interaction applies to each attribute.
type Delta struct {
	Health    int
	Mood      int
	Happiness int
}

var deltas = map[model.InteractionKind]Delta{
	model.InteractionFeed:      {Health: 10, Mood: 0, Happiness: 5},
	model.InteractionPlay:      {Health: -5, Mood: 15, Happiness: 10},
	model.InteractionTrain:     {Health: 5, Mood: -10, Happiness: 15},
	model.InteractionGroom:     {Health: 15, Mood: -5, Happiness: 5},
	model.InteractionAdventure: {Health: -10, Mood: 20, Happiness: 15},
}

var kinds = []model.InteractionKind{
	model.InteractionFeed,
	model.InteractionPlay,
	model.InteractionTrain,
	model.InteractionGroom,
	model.InteractionAdventure,
}

// Kinds returns every supported kind in a stable order.
func Kinds() []model.InteractionKind {
	out := make([]model.InteractionKind, len(kinds))
	copy(out, kinds)
	return out
}

// DeltaFor returns the delta for kind.
func DeltaFor(kind model.InteractionKind) (Delta, bool) {
	d, ok := deltas[kind]
	return d, ok
}

// ParseKind validates a raw kind name. Matching is case-insensitive.
func ParseKind(s string) (model.InteractionKind, error) {
	kind := model.InteractionKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := deltas[kind]; !ok {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownKind, s, strings.Join(names, ", "))
	}
	return kind, nil
}

// Apply adds the delta for kind to attrs and clamps the result to
// [0,100]. attrs is returned unchanged together with ErrUnknownKind when
// kind is not in the table.
func Apply(attrs model.Attributes, kind model.InteractionKind) (model.Attributes, error) {
	d, ok := deltas[kind]
	if !ok {
		return attrs, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return model.Attributes{
		Health:    attrs.Health + d.Health,
		Mood:      attrs.Mood + d.Mood,
		Happiness: attrs.Happiness + d.Happiness,
	}.Clamp(), nil
}
