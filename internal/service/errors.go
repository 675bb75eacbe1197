package service

import (
	"errors"
	"fmt"

	"digipet-api/internal/mint"
	"digipet-api/internal/repository"
)

// Domain errors. Callers classify with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("pet is not owned by caller")
	ErrConflict     = errors.New("pet already owned")
	ErrInvalidInput = errors.New("invalid input")
	ErrTransient    = errors.New("temporarily unavailable")

	ErrLedger         = mint.ErrLedger
	ErrLedgerRejected = mint.ErrLedgerRejected
	ErrLedgerTimedOut = mint.ErrLedgerTimedOut
	ErrCancelled      = mint.ErrCancelled
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// storeError maps a repository failure onto the domain taxonomy.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// adoptError maps mint pipeline failures. Ledger and cancellation errors
// already are domain errors.
func adoptError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mint.ErrPetNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, mint.ErrAlreadyOwned):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, ErrLedger), errors.Is(err, ErrLedgerRejected),
		errors.Is(err, ErrLedgerTimedOut), errors.Is(err, ErrCancelled):
		return err
	default:
		return fmt.Errorf("adopt: %w: %w", ErrTransient, err)
	}
}
