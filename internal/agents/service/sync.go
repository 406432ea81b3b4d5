// Package service implements the directory sync engine and the
// reconciliation auditor. Agent and authorization rows flow one way: from
// the identity directory into the relational store, never back.
package service

import (
	"context"
	"errors"
	"strings"

	"leadrouter_backend/internal/agents/repository"
	"leadrouter_backend/internal/agents/transport"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store defines the data access interface needed by the sync engine.
// This is a consumer-driven interface - only what sync needs.
type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetByExternalIDForUpdate(ctx context.Context, tx pgx.Tx, externalID string) (repository.Agent, error)
	CreateAgent(ctx context.Context, tx pgx.Tx, params repository.CreateAgentParams) (repository.Agent, error)
	UpdateAgent(ctx context.Context, tx pgx.Tx, id uuid.UUID, params repository.UpdateAgentParams) (repository.Agent, error)
	ListAuthorizations(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) ([]string, error)
	InsertAuthorization(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, source string) error
	DeleteAuthorization(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, source string) error
}

// Directory is the read interface onto the identity directory.
type Directory interface {
	ListAll(ctx context.Context) ([]transport.DirectoryEntry, error)
}

// Syncer handles applying directory records to the authorization store.
type Syncer struct {
	repo Store
	dir  Directory
	bus  events.Bus
	log  *logger.Logger
}

// NewSyncer creates a new directory sync engine.
func NewSyncer(repo Store, dir Directory, bus events.Bus, log *logger.Logger) *Syncer {
	return &Syncer{repo: repo, dir: dir, bus: bus, log: log}
}

// SyncAgent applies a single directory record to the store inside one
// transaction. The agent row is locked for the duration, so concurrent syncs
// for the same external id serialize; unrelated agents proceed in parallel.
func (s *Syncer) SyncAgent(ctx context.Context, externalID string, rec transport.DirectoryRecord) (transport.SyncResult, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return transport.SyncResult{}, apperr.Validation("externalId is required")
	}
	if rec.Role != nil && !isKnownRole(*rec.Role) {
		return transport.SyncResult{}, apperr.Validation("unknown role: " + *rec.Role)
	}

	var result transport.SyncResult
	apply := func(tx pgx.Tx) error {
		agent, err := s.repo.GetByExternalIDForUpdate(ctx, tx, externalID)
		isNew := errors.Is(err, repository.ErrNotFound)
		if err != nil && !isNew {
			return err
		}

		if isNew {
			agent, err = s.createFromRecord(ctx, tx, externalID, rec)
			if err != nil {
				return err
			}
		} else {
			agent, err = s.repo.UpdateAgent(ctx, tx, agent.ID, repository.UpdateAgentParams{
				Email:       rec.Email,
				DisplayName: rec.DisplayName,
				Role:        rec.Role,
				IsActive:    rec.Active,
			})
			if err != nil {
				return err
			}
		}

		current, err := s.repo.ListAuthorizations(ctx, tx, agent.ID)
		if err != nil {
			return err
		}

		legacy := ""
		if rec.LegacySource != nil {
			legacy = *rec.LegacySource
		}
		desired := ResolveAuthorizations(isNew, agent.Role, rec.Sources, legacy, current)

		toInsert, toDelete := diffSources(normalizeSources(current), desired)
		for _, source := range toInsert {
			if err := s.repo.InsertAuthorization(ctx, tx, agent.ID, source); err != nil {
				return err
			}
		}
		for _, source := range toDelete {
			if err := s.repo.DeleteAuthorization(ctx, tx, agent.ID, source); err != nil {
				return err
			}
		}

		result = transport.SyncResult{AgentID: agent.ID, Created: isNew}
		return nil
	}

	err := s.repo.WithTx(ctx, apply)
	if errors.Is(err, repository.ErrAgentExists) {
		// Lost a first-sight race: a concurrent sync committed the row
		// between our lookup and insert. It exists now, so a second pass
		// applies the record as an update.
		err = s.repo.WithTx(ctx, apply)
	}
	if err != nil {
		s.log.SyncEvent(externalID, false, err)
		return transport.SyncResult{}, err
	}

	s.log.SyncEvent(externalID, result.Created, nil)
	s.bus.Publish(ctx, events.AgentSynced{
		BaseEvent:  events.NewBaseEvent(),
		AgentID:    result.AgentID,
		ExternalID: externalID,
		Created:    result.Created,
	})

	return result, nil
}

func (s *Syncer) createFromRecord(ctx context.Context, tx pgx.Tx, externalID string, rec transport.DirectoryRecord) (repository.Agent, error) {
	if rec.Email == nil || strings.TrimSpace(*rec.Email) == "" {
		return repository.Agent{}, apperr.Validation("directory record for new agent is missing email")
	}

	params := repository.CreateAgentParams{
		ExternalID: externalID,
		Email:      strings.TrimSpace(*rec.Email),
		Role:       RoleAgent,
		IsActive:   true,
	}
	if rec.DisplayName != nil {
		params.DisplayName = *rec.DisplayName
	}
	if rec.Role != nil {
		params.Role = *rec.Role
	}
	if rec.Active != nil {
		params.IsActive = *rec.Active
	}

	return s.repo.CreateAgent(ctx, tx, params)
}

// SyncAll enumerates the full identity directory and syncs every record.
// Per-agent failures are isolated; the batch continues and reports them.
func (s *Syncer) SyncAll(ctx context.Context) (transport.SyncReport, error) {
	entries, err := s.dir.ListAll(ctx)
	if err != nil {
		return transport.SyncReport{}, apperr.Unavailable("identity directory unreachable", err)
	}

	report := transport.SyncReport{Total: len(entries)}
	for _, entry := range entries {
		result, err := s.SyncAgent(ctx, entry.ExternalID, entry.Record)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, transport.SyncFailure{
				ExternalID: entry.ExternalID,
				Error:      err.Error(),
			})
			continue
		}
		if result.Created {
			report.Created++
		} else {
			report.Updated++
		}
	}

	return report, nil
}

func isKnownRole(role string) bool {
	switch role {
	case RoleAgent, RoleAdmin, RoleCampaignManager:
		return true
	}
	return false
}
