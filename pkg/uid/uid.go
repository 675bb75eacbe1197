package uid

import "github.com/google/uuid"

// New returns a time-ordered (v7) identifier, falling back to a random v4
// if the clock source fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Prefixed returns New with prefix prepended.
func Prefixed(prefix string) string {
	return prefix + New()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
