package mint

import (
	"errors"
	"fmt"

	"digipet-api/internal/model"
)

// State is a step of one adoption attempt.
type State int

const (
	StateRequested State = iota
	StateSubmitted
	StatePolling
	StateConfirmed
	StateRejected
	StateTimedOut
	StateError
	StateCancelled
)

var stateNames = [...]string{
	StateRequested: "requested",
	StateSubmitted: "submitted",
	StatePolling:   "polling",
	StateConfirmed: "confirmed",
	StateRejected:  "rejected",
	StateTimedOut:  "timed_out",
	StateError:     "error",
	StateCancelled: "cancelled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s >= StateConfirmed
}

var (
	ErrPetNotFound    = errors.New("pet not found")
	ErrAlreadyOwned   = errors.New("pet already owned")
	ErrLedger         = errors.New("ledger error")
	ErrLedgerRejected = errors.New("ledger rejected mint")
	ErrLedgerTimedOut = errors.New("ledger confirmation timed out")
	ErrCancelled      = errors.New("adoption cancelled")
)

// Result describes one adoption attempt. OperationRef is set once the mint
// has been submitted, whatever the outcome.
type Result struct {
	PetID        int64           `json:"pet_id"`
	UserID       int64           `json:"user_id"`
	OperationRef string          `json:"operation_ref,omitempty"`
	State        State           `json:"state"`
	Attempts     int             `json:"attempts"`
	Pet          *model.Snapshot `json:"pet,omitempty"`
}
