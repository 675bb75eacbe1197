// Package mint runs the submit-and-confirm flow that gates pet adoption on
// an on-chain mint.
package mint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"digipet-api/internal/ledger"
	"digipet-api/internal/model"
	"digipet-api/internal/repository"
	"digipet-api/internal/telemetry"
)

// Default polling budget.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 20
)

// commitTimeout bounds the ownership write after the ledger applied a mint.
const commitTimeout = 10 * time.Second

// Ledger submits mints and reports their confirmation status.
type Ledger interface {
	SubmitMint(ctx context.Context, pet model.PetIdentity) (string, error)
	PollStatus(ctx context.Context, ref string) (ledger.Status, error)
}

// SnapshotCache receives the adopted pet once ownership is committed.
type SnapshotCache interface {
	Set(ctx context.Context, snap model.Snapshot)
}

// Config bounds confirmation polling.
type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
}

// Pipeline adopts pets. Ownership is written only after the ledger reports
// the mint applied.
type Pipeline struct {
	pets   repository.PetRepository
	cache  SnapshotCache
	ledger Ledger
	cfg    Config
	log    *slog.Logger
	now    func() time.Time

	tracer   trace.Tracer
	attempts metric.Int64Counter
	outcomes metric.Int64Counter
}

// NewPipeline builds a pipeline. Zero Config fields select the defaults.
func NewPipeline(pets repository.PetRepository, cache SnapshotCache, l Ledger, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	meter := telemetry.Meter("digipet-api/mint")
	attempts, _ := meter.Int64Counter("mint.attempts",
		metric.WithDescription("Ledger status polls issued while confirming mints"))
	outcomes, _ := meter.Int64Counter("mint.outcomes",
		metric.WithDescription("Adoption attempts by final state"))

	return &Pipeline{
		pets:     pets,
		cache:    cache,
		ledger:   l,
		cfg:      cfg,
		log:      logger.With("component", "mint"),
		now:      time.Now,
		tracer:   telemetry.Tracer("digipet-api/mint"),
		attempts: attempts,
		outcomes: outcomes,
	}
}

// WithClock overrides the clock used to stamp UpdatedAt.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Adopt mints petID for userID and, once confirmed, records userID as owner.
// The returned Result is never nil.
func (p *Pipeline) Adopt(ctx context.Context, petID, userID int64) (res *Result, err error) {
	ctx, span := p.tracer.Start(ctx, "mint.Adopt", trace.WithAttributes(
		attribute.Int64("pet.id", petID),
		attribute.Int64("user.id", userID),
	))
	res = &Result{PetID: petID, UserID: userID, State: StateRequested}
	defer func() {
		state := attribute.String("state", res.State.String())
		p.outcomes.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(state))
		span.SetAttributes(state, attribute.Int("attempts", res.Attempts))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := p.log.With("pet_id", petID, "user_id", userID)

	pet, err := p.pets.FindPet(ctx, petID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return res, fmt.Errorf("%w: %d", ErrPetNotFound, petID)
		}
		return res, fmt.Errorf("load pet: %w", err)
	}
	if pet.Adopted() {
		return res, fmt.Errorf("%w: %d", ErrAlreadyOwned, petID)
	}

	ref, err := p.ledger.SubmitMint(ctx, pet.Identity())
	if err != nil {
		if ctx.Err() != nil {
			return p.cancelled(ctx, res)
		}
		res.State = StateError
		log.Error("mint submission failed", "error", err)
		return res, fmt.Errorf("%w: submit: %w", ErrLedger, err)
	}
	res.State = StateSubmitted
	res.OperationRef = ref
	log = log.With("operation", ref)
	log.Info("mint submitted")

	status, err := p.poll(ctx, res, log)
	if err != nil {
		return res, err
	}

	switch status {
	case ledger.StatusApplied:
		return p.confirm(ctx, res, log)
	case ledger.StatusFailed:
		res.State = StateRejected
		log.Warn("mint rejected by ledger", "attempts", res.Attempts)
		return res, ErrLedgerRejected
	default:
		res.State = StateTimedOut
		log.Warn("mint not confirmed within budget", "attempts", res.Attempts)
		return res, ErrLedgerTimedOut
	}
}

// poll queries the ledger until a terminal status or the attempt budget is
// spent. The first query is immediate; later ones wait one interval.
func (p *Pipeline) poll(ctx context.Context, res *Result, log *slog.Logger) (ledger.Status, error) {
	res.State = StatePolling

	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer.Reset(p.cfg.PollInterval)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			_, err := p.cancelled(ctx, res)
			return ledger.StatusAbsent, err
		}

		res.Attempts = attempt
		p.attempts.Add(ctx, 1)

		status, err := p.ledger.PollStatus(ctx, res.OperationRef)
		switch {
		case err != nil && ctx.Err() != nil:
			_, err := p.cancelled(ctx, res)
			return ledger.StatusAbsent, err
		case err != nil:
			log.Warn("ledger poll failed", "attempt", attempt, "error", err)
		case status == ledger.StatusApplied, status == ledger.StatusFailed:
			return status, nil
		default:
			log.Debug("mint not yet confirmed", "attempt", attempt, "status", status.String())
		}
	}
	return ledger.StatusAbsent, nil
}

// confirm commits ownership. The pet is re-read so an adoption that won a
// race since submission is not overwritten. The mint is already applied on
// the ledger, so the commit outlives caller cancellation.
func (p *Pipeline) confirm(ctx context.Context, res *Result, log *slog.Logger) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	pet, err := p.pets.FindPet(ctx, res.PetID)
	if err != nil {
		res.State = StateError
		log.Error("mint confirmed but pet reload failed", "error", err)
		return res, fmt.Errorf("reload pet: %w", err)
	}
	if pet.Adopted() {
		res.State = StateError
		log.Warn("mint confirmed but pet was adopted concurrently", "owner_id", *pet.OwnerID)
		return res, fmt.Errorf("%w: %d", ErrAlreadyOwned, res.PetID)
	}

	owner := res.UserID
	pet.OwnerID = &owner
	pet.UpdatedAt = p.now().UTC()
	if err := p.pets.SavePet(ctx, pet); err != nil {
		res.State = StateError
		log.Error("mint confirmed but ownership save failed", "error", err)
		return res, fmt.Errorf("save adoption: %w", err)
	}

	snap := pet.Snapshot()
	p.cache.Set(ctx, snap)

	res.State = StateConfirmed
	res.Pet = &snap
	log.Info("adoption confirmed", "attempts", res.Attempts)
	return res, nil
}

func (p *Pipeline) cancelled(ctx context.Context, res *Result) (*Result, error) {
	res.State = StateCancelled
	p.log.Info("adoption cancelled by caller",
		"pet_id", res.PetID, "operation", res.OperationRef, "attempts", res.Attempts)
	return res, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}
