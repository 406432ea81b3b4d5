package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrAgentNotFound = errors.New("agent not found")

// AssignableAgent is the slice of an agent the rotation needs: identity plus
// the contact fields the assignment notification uses.
type AssignableAgent struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
}

// EligibleAgents returns the agents eligible to receive leads of the given
// source: active, role 'agent', holding an authorization for the source.
// Ordered by agent id so the rotation order is stable.
func (r *Repository) EligibleAgents(ctx context.Context, tx pgx.Tx, source string) ([]AssignableAgent, error) {
	rows, err := tx.Query(ctx, `
		SELECT a.id, a.email, a.display_name
		FROM agents a
		JOIN agent_authorizations aa ON aa.agent_id = a.id
		WHERE aa.source = $1 AND a.is_active = true AND a.role = 'agent'
		ORDER BY a.id ASC
	`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]AssignableAgent, 0)
	for rows.Next() {
		var a AssignableAgent
		if err := rows.Scan(&a.ID, &a.Email, &a.DisplayName); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// LockCursor loads the rotation cursor for a source, creating it at zero on
// first use, and locks it for the duration of the transaction. Two
// concurrent selections for the same source serialize here, so the
// read-advance-write below is atomic even across service instances.
func (r *Repository) LockCursor(ctx context.Context, tx pgx.Tx, source string) (int, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO rotation_cursors (source) VALUES ($1)
		ON CONFLICT (source) DO NOTHING
	`, source); err != nil {
		return 0, err
	}

	var position int
	err := tx.QueryRow(ctx, `
		SELECT position FROM rotation_cursors WHERE source = $1 FOR UPDATE
	`, source).Scan(&position)
	return position, err
}

// UpdateCursor persists the advanced cursor position inside the same
// transaction that holds the lock.
func (r *Repository) UpdateCursor(ctx context.Context, tx pgx.Tx, source string, position int) error {
	_, err := tx.Exec(ctx, `
		UPDATE rotation_cursors SET position = $2, updated_at = now() WHERE source = $1
	`, source, position)
	return err
}

// GetAssignableAgent loads an agent for explicit assignment, verifying it
// exists and is active.
func (r *Repository) GetAssignableAgent(ctx context.Context, tx pgx.Tx, id uuid.UUID) (AssignableAgent, bool, error) {
	var a AssignableAgent
	var active bool
	err := tx.QueryRow(ctx, `
		SELECT id, email, display_name, is_active FROM agents WHERE id = $1
	`, id).Scan(&a.ID, &a.Email, &a.DisplayName, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return AssignableAgent{}, false, ErrAgentNotFound
	}
	if err != nil {
		return AssignableAgent{}, false, err
	}
	return a, active, nil
}
