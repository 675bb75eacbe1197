package model

import "time"

// Attribute bounds shared by every mutation path.
const (
	AttributeMin = 0
	AttributeMax = 100
)

// Attributes holds the three bounded pet attributes.
type Attributes struct {
	Health    int `json:"health"`
	Mood      int `json:"mood"`
	Happiness int `json:"happiness"`
}

// Clamp constrains every attribute to [AttributeMin, AttributeMax].
func (a Attributes) Clamp() Attributes {
	return Attributes{
		Health:    clamp(a.Health),
		Mood:      clamp(a.Mood),
		Happiness: clamp(a.Happiness),
	}
}

// InRange reports whether every attribute is within bounds.
func (a Attributes) InRange() bool {
	return a == a.Clamp()
}

func clamp(v int) int {
	if v < AttributeMin {
		return AttributeMin
	}
	if v > AttributeMax {
		return AttributeMax
	}
	return v
}

// Pet is the authoritative pet record held by the durable store.
type Pet struct {
	ID        int64
	OwnerID   *int64 // nil means available for adoption
	Name      string
	Species   string // e.g. "dogs", "cats", "birds"
	Breed     string // e.g. "poodle", "persian", "canary"
	Health    int
	Mood      int
	Happiness int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Adopted reports whether the pet has an owner.
func (p *Pet) Adopted() bool {
	return p.OwnerID != nil
}

// OwnedBy reports whether userID owns the pet.
func (p *Pet) OwnedBy(userID int64) bool {
	return p.OwnerID != nil && *p.OwnerID == userID
}

// Attributes returns the pet's bounded attributes.
func (p *Pet) Attributes() Attributes {
	return Attributes{Health: p.Health, Mood: p.Mood, Happiness: p.Happiness}
}

// SetAttributes overwrites the pet's bounded attributes.
func (p *Pet) SetAttributes(a Attributes) {
	p.Health = a.Health
	p.Mood = a.Mood
	p.Happiness = a.Happiness
}

// Identity returns the fields referenced by an on-chain mint.
func (p *Pet) Identity() PetIdentity {
	return PetIdentity{ID: p.ID, Name: p.Name, Species: p.Species, Breed: p.Breed}
}

// Snapshot returns the externally visible view of the pet.
func (p *Pet) Snapshot() Snapshot {
	s := Snapshot{
		PetID:     p.ID,
		Name:      p.Name,
		Species:   p.Species,
		Breed:     p.Breed,
		Health:    p.Health,
		Mood:      p.Mood,
		Happiness: p.Happiness,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.OwnerID != nil {
		owner := *p.OwnerID
		s.UserID = &owner
	}
	return s
}

// PetIdentity is the immutable part of a pet that a ledger mint references.
type PetIdentity struct {
	ID      int64
	Name    string
	Species string
	Breed   string
}

// Snapshot is the serialized pet view kept in the attribute cache and
// returned to callers.
type Snapshot struct {
	PetID     int64     `json:"pet_id"`
	UserID    *int64    `json:"user_id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	Breed     string    `json:"type"`
	Health    int       `json:"health"`
	Mood      int       `json:"mood"`
	Happiness int       `json:"happiness"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attributes returns the snapshot's bounded attributes.
func (s Snapshot) Attributes() Attributes {
	return Attributes{Health: s.Health, Mood: s.Mood, Happiness: s.Happiness}
}

// OwnedBy reports whether userID owns the pet in this snapshot.
func (s Snapshot) OwnedBy(userID int64) bool {
	return s.UserID != nil && *s.UserID == userID
}

// Pet rebuilds a pet record from the snapshot.
func (s Snapshot) Pet() *Pet {
	p := &Pet{
		ID:        s.PetID,
		Name:      s.Name,
		Species:   s.Species,
		Breed:     s.Breed,
		Health:    s.Health,
		Mood:      s.Mood,
		Happiness: s.Happiness,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.UserID != nil {
		owner := *s.UserID
		p.OwnerID = &owner
	}
	return p
}
