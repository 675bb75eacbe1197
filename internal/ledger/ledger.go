// Package ledger talks to the blockchain that records pet mints.
package ledger

import "fmt"

// Status is the confirmation state of a submitted operation.
type Status int

const (
	// StatusAbsent means the ledger does not know the operation yet.
	StatusAbsent Status = iota
	// StatusPending means the operation is known but has no result yet.
	StatusPending
	// StatusApplied means the operation was included and applied.
	StatusApplied
	// StatusFailed means the operation was included but not applied.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusPending:
		return "pending"
	case StatusApplied:
		return "applied"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
