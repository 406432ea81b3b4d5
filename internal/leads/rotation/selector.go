// Package rotation implements round-robin agent selection. The per-source
// cursor lives in the database and is advanced under a row lock, so the
// read-advance-write is atomic across concurrent requests and across
// service instances.
package rotation

import (
	"context"

	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/jackc/pgx/v5"
)

// Store defines the data access interface needed by the selector.
// This is a consumer-driven interface - only what rotation needs.
type Store interface {
	EligibleAgents(ctx context.Context, tx pgx.Tx, source string) ([]repository.AssignableAgent, error)
	LockCursor(ctx context.Context, tx pgx.Tx, source string) (int, error)
	UpdateCursor(ctx context.Context, tx pgx.Tx, source string, position int) error
}

// Selector picks the next eligible agent for a source.
type Selector struct {
	store   Store
	degrade bool
	log     *logger.Logger
}

// New creates a selector. When degrade is true, store failures are treated
// as "no eligible agents" instead of a hard error; the default wiring keeps
// it false so infrastructure failure stays distinguishable from a
// legitimately empty rotation.
func New(store Store, degrade bool, log *logger.Logger) *Selector {
	return &Selector{store: store, degrade: degrade, log: log}
}

// Next returns the next agent in rotation for the source, advancing the
// persistent cursor, or (nil, nil) when no agent is eligible. It runs on
// the caller's transaction: the cursor advance commits or rolls back
// together with whatever the caller persists.
func (s *Selector) Next(ctx context.Context, tx pgx.Tx, source string) (*repository.AssignableAgent, error) {
	eligible, err := s.store.EligibleAgents(ctx, tx, source)
	if err != nil {
		return s.storeError("load eligible agents", source, err)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	position, err := s.store.LockCursor(ctx, tx, source)
	if err != nil {
		return s.storeError("lock rotation cursor", source, err)
	}

	// Membership may have shrunk since the cursor was last advanced.
	if position < 0 || position >= len(eligible) {
		position = 0
	}

	selected := eligible[position]
	next := (position + 1) % len(eligible)
	if err := s.store.UpdateCursor(ctx, tx, source, next); err != nil {
		return s.storeError("advance rotation cursor", source, err)
	}

	return &selected, nil
}

func (s *Selector) storeError(op, source string, err error) (*repository.AssignableAgent, error) {
	if s.degrade {
		s.log.Warn("rotation degraded to unassigned on store error",
			"op", op,
			"source", source,
			"error", err,
		)
		return nil, nil
	}
	return nil, apperr.Unavailable("authorization store unreachable", err).WithOp(op)
}
