// Package repository provides data access for agents and their
// authorization sets. Authorization rows are owned by the directory sync
// engine; nothing else in the application writes them.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("agent not found")

// ErrAgentExists reports an insert that lost a first-sight race: a concurrent
// transaction committed a row for the same external id first.
var ErrAgentExists = errors.New("agent already exists")

const uniqueViolationCode = "23505"

// Agent is one row in the agents table.
type Agent struct {
	ID          uuid.UUID
	ExternalID  string
	Email       string
	DisplayName string
	Role        string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AgentWithSources pairs an agent with its sorted authorization sources.
type AgentWithSources struct {
	Agent   Agent
	Sources []string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	return err
}

const agentColumns = `id, external_id, email, display_name, role, is_active, created_at, updated_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.ExternalID, &a.Email, &a.DisplayName, &a.Role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return a, err
}

// GetByExternalIDForUpdate loads an agent by external identity id and locks
// the row for the duration of the transaction. Concurrent syncs for the same
// external id serialize on this lock.
func (r *Repository) GetByExternalIDForUpdate(ctx context.Context, tx pgx.Tx, externalID string) (Agent, error) {
	return scanAgent(tx.QueryRow(ctx, `
		SELECT `+agentColumns+`
		FROM agents WHERE external_id = $1
		FOR UPDATE
	`, externalID))
}

// GetByID loads an agent by internal id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `
		SELECT `+agentColumns+`
		FROM agents WHERE id = $1
	`, id))
}

// CreateAgentParams holds the fields for inserting a new agent row.
type CreateAgentParams struct {
	ExternalID  string
	Email       string
	DisplayName string
	Role        string
	IsActive    bool
}

// CreateAgent inserts a new agent inside the given transaction. A unique
// violation on external_id surfaces as ErrAgentExists so the caller can
// reapply the record as an update in a fresh transaction.
func (r *Repository) CreateAgent(ctx context.Context, tx pgx.Tx, params CreateAgentParams) (Agent, error) {
	agent, err := scanAgent(tx.QueryRow(ctx, `
		INSERT INTO agents (external_id, email, display_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+agentColumns+`
	`, params.ExternalID, params.Email, params.DisplayName, params.Role, params.IsActive))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return Agent{}, ErrAgentExists
	}
	return agent, err
}

// UpdateAgentParams holds the mutable fields of an agent. Nil pointers leave
// the stored value untouched.
type UpdateAgentParams struct {
	Email       *string
	DisplayName *string
	Role        *string
	IsActive    *bool
}

// UpdateAgent applies the non-nil fields to an agent row inside the given
// transaction.
func (r *Repository) UpdateAgent(ctx context.Context, tx pgx.Tx, id uuid.UUID, params UpdateAgentParams) (Agent, error) {
	return scanAgent(tx.QueryRow(ctx, `
		UPDATE agents SET
			email = COALESCE($2, email),
			display_name = COALESCE($3, display_name),
			role = COALESCE($4, role),
			is_active = COALESCE($5, is_active),
			updated_at = now()
		WHERE id = $1
		RETURNING `+agentColumns+`
	`, id, params.Email, params.DisplayName, params.Role, params.IsActive))
}

// ListAuthorizations returns the agent's authorization sources in stable order.
func (r *Repository) ListAuthorizations(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT source FROM agent_authorizations
		WHERE agent_id = $1
		ORDER BY source ASC
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// InsertAuthorization grants the agent eligibility for a source.
func (r *Repository) InsertAuthorization(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, source string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO agent_authorizations (agent_id, source)
		VALUES ($1, $2)
		ON CONFLICT (agent_id, source) DO NOTHING
	`, agentID, source)
	return err
}

// DeleteAuthorization revokes the agent's eligibility for a source.
func (r *Repository) DeleteAuthorization(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, source string) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM agent_authorizations
		WHERE agent_id = $1 AND source = $2
	`, agentID, source)
	return err
}

// ListAllWithSources returns every agent together with its sorted
// authorization sources. Used by the reconciliation auditor.
func (r *Repository) ListAllWithSources(ctx context.Context) ([]AgentWithSources, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.external_id, a.email, a.display_name, a.role, a.is_active, a.created_at, a.updated_at,
			COALESCE(array_agg(aa.source ORDER BY aa.source) FILTER (WHERE aa.source IS NOT NULL), '{}')
		FROM agents a
		LEFT JOIN agent_authorizations aa ON aa.agent_id = a.id
		GROUP BY a.id
		ORDER BY a.external_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]AgentWithSources, 0)
	for rows.Next() {
		var item AgentWithSources
		if err := rows.Scan(
			&item.Agent.ID, &item.Agent.ExternalID, &item.Agent.Email, &item.Agent.DisplayName,
			&item.Agent.Role, &item.Agent.IsActive, &item.Agent.CreatedAt, &item.Agent.UpdatedAt,
			&item.Sources,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
