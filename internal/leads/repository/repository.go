// Package repository provides data access for leads, their source-specific
// detail records, and the append-only status history trail.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// Lead is one row in the leads table.
type Lead struct {
	ID              uuid.UUID
	Source          string
	ContactName     string
	ContactEmail    string
	ContactPhone    string
	Message         string
	Status          string
	AssignedAgentID *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HistoryEntry is one row of the append-only status history trail.
type HistoryEntry struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	ActingAgentID *uuid.UUID
	OldStatus     *string
	NewStatus     string
	Note          string
	CreatedAt     time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. The lead creation unit and the rotation cursor update
// share one transaction through this helper.
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

const leadColumns = `id, source, contact_name, contact_email, contact_phone, message, status, assigned_agent_id, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Source, &lead.ContactName, &lead.ContactEmail, &lead.ContactPhone,
		&lead.Message, &lead.Status, &lead.AssignedAgentID, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// InsertLeadParams holds the fields for a new lead row.
type InsertLeadParams struct {
	Source          string
	ContactName     string
	ContactEmail    string
	ContactPhone    string
	Message         string
	AssignedAgentID *uuid.UUID
}

// InsertLead creates a lead row with status 'new' inside the given transaction.
func (r *Repository) InsertLead(ctx context.Context, tx pgx.Tx, params InsertLeadParams) (Lead, error) {
	return scanLead(tx.QueryRow(ctx, `
		INSERT INTO leads (source, contact_name, contact_email, contact_phone, message, assigned_agent_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+leadColumns+`
	`, params.Source, params.ContactName, params.ContactEmail, params.ContactPhone, params.Message, params.AssignedAgentID))
}

// InsertDetail creates the one-to-one detail record for a lead inside the
// given transaction.
func (r *Repository) InsertDetail(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO lead_details (lead_id, fields) VALUES ($1, $2)
	`, leadID, payload)
	return err
}

// InsertHistoryParams holds the fields for one audit trail entry.
type InsertHistoryParams struct {
	LeadID        uuid.UUID
	ActingAgentID *uuid.UUID
	OldStatus     *string
	NewStatus     string
	Note          string
}

// InsertHistory appends an entry to the status history trail inside the
// given transaction. History rows are never updated or deleted.
func (r *Repository) InsertHistory(ctx context.Context, tx pgx.Tx, params InsertHistoryParams) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO lead_status_history (lead_id, acting_agent_id, old_status, new_status, note)
		VALUES ($1, $2, $3, $4, $5)
	`, params.LeadID, params.ActingAgentID, params.OldStatus, params.NewStatus, params.Note)
	return err
}

// GetByID retrieves a lead by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1
	`, id))
}

// GetDetail returns the detail fields stored for a lead.
func (r *Repository) GetDetail(ctx context.Context, leadID uuid.UUID) (map[string]any, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `
		SELECT fields FROM lead_details WHERE lead_id = $1
	`, leadID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// LockLeadStatus loads a lead's current status and locks the row for a
// status transition.
func (r *Repository) LockLeadStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, error) {
	var status string
	err := tx.QueryRow(ctx, `
		SELECT status FROM leads WHERE id = $1 FOR UPDATE
	`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return status, err
}

// UpdateLeadStatus sets a lead's status inside the given transaction.
func (r *Repository) UpdateLeadStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE leads SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHistory returns a lead's audit trail, oldest first.
func (r *Repository) ListHistory(ctx context.Context, leadID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, acting_agent_id, old_status, new_status, note, created_at
		FROM lead_status_history
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.LeadID, &e.ActingAgentID, &e.OldStatus, &e.NewStatus, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FindRecentDuplicate returns the id of a lead with the same source and
// contact email or phone created within the window, if any. Used by the
// webhook gateway to absorb double submissions.
func (r *Repository) FindRecentDuplicate(ctx context.Context, source, email, phone string, window time.Duration) (*uuid.UUID, error) {
	if email == "" && phone == "" {
		return nil, nil
	}

	cutoff := time.Now().Add(-window)
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM leads
		WHERE source = $1
		  AND created_at > $2
		  AND (($3 <> '' AND contact_email = $3) OR ($4 <> '' AND contact_phone = $4))
		ORDER BY created_at DESC
		LIMIT 1
	`, source, cutoff, email, phone).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}
