package ledger

import (
	"context"
	"sync"

	"digipet-api/internal/model"
	"digipet-api/pkg/uid"
)

// Simulated is an in-process ledger. Each submitted operation reports
// StatusPending until it has been polled ConfirmAfter times, then Outcome.
type Simulated struct {
	ConfirmAfter int
	Outcome      Status

	mu    sync.Mutex
	polls map[string]int
	pets  map[string]model.PetIdentity
}

// NewSimulated returns a ledger that applies every operation on the
// confirmAfter-th poll.
func NewSimulated(confirmAfter int) *Simulated {
	return &Simulated{
		ConfirmAfter: confirmAfter,
		Outcome:      StatusApplied,
		polls:        make(map[string]int),
		pets:         make(map[string]model.PetIdentity),
	}
}

// SubmitMint records pet and returns a fresh operation reference.
func (s *Simulated) SubmitMint(ctx context.Context, pet model.PetIdentity) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := uid.Prefixed("op")

	s.mu.Lock()
	s.polls[ref] = 0
	s.pets[ref] = pet
	s.mu.Unlock()

	return ref, nil
}

// PollStatus advances the poll count for ref.
func (s *Simulated) PollStatus(ctx context.Context, ref string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusAbsent, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.polls[ref]
	if !ok {
		return StatusAbsent, nil
	}
	n++
	s.polls[ref] = n
	if n < s.ConfirmAfter {
		return StatusPending, nil
	}
	return s.Outcome, nil
}

// Minted returns the pet submitted under ref.
func (s *Simulated) Minted(ref string) (model.PetIdentity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pets[ref]
	return p, ok
}
