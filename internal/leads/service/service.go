// Package service implements the lead assignment transaction: lead, detail
// record, and history entry persist as one atomic unit, with the rotation
// cursor advanced inside the same transaction.
package service

import (
	"context"
	"errors"
	"strings"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/leads/detail"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// History notes for the assignment decision made at creation time.
const (
	noteAssignedViaRotation = "assigned via rotation"
	noteAssignedExplicitly  = "assigned explicitly"
	noteCreatedUnassigned   = "created unassigned - no eligible agents for source"
)

// Store defines the data access interface needed by the lead service.
// This is a consumer-driven interface - only what the service needs.
type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	InsertLead(ctx context.Context, tx pgx.Tx, params repository.InsertLeadParams) (repository.Lead, error)
	InsertDetail(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, fields map[string]any) error
	InsertHistory(ctx context.Context, tx pgx.Tx, params repository.InsertHistoryParams) error
	GetAssignableAgent(ctx context.Context, tx pgx.Tx, id uuid.UUID) (repository.AssignableAgent, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetDetail(ctx context.Context, leadID uuid.UUID) (map[string]any, error)
	LockLeadStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, error)
	UpdateLeadStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
	ListHistory(ctx context.Context, leadID uuid.UUID) ([]repository.HistoryEntry, error)
}

// AgentSelector picks the next agent in rotation, or nil for unassigned.
// Satisfied by rotation.Selector.
type AgentSelector interface {
	Next(ctx context.Context, tx pgx.Tx, source string) (*repository.AssignableAgent, error)
}

// Service handles lead creation and status transitions.
type Service struct {
	repo     Store
	selector AgentSelector
	schemas  *detail.Registry
	bus      events.Bus
}

// New creates a new lead service.
func New(repo Store, selector AgentSelector, schemas *detail.Registry, bus events.Bus) *Service {
	return &Service{repo: repo, selector: selector, schemas: schemas, bus: bus}
}

// Create creates a lead, its detail record, and the first history entry in
// one transaction. Without an explicit assignee the round-robin selector
// runs inside that same transaction, so an aborted creation never leaves
// the cursor advanced past an agent who received nothing.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	if err := validateCreate(&req); err != nil {
		return transport.LeadResponse{}, err
	}

	var (
		lead          repository.Lead
		assignedAgent *repository.AssignableAgent
	)
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		var note string
		var err error

		assignedAgent, note, err = s.resolveAssignee(ctx, tx, req)
		if err != nil {
			return err
		}

		params := repository.InsertLeadParams{
			Source:       req.Source,
			ContactName:  req.Name,
			ContactEmail: req.Email,
			ContactPhone: phone.NormalizeE164(req.Phone),
			Message:      req.Message,
		}
		var actingAgentID *uuid.UUID
		if assignedAgent != nil {
			params.AssignedAgentID = &assignedAgent.ID
			actingAgentID = &assignedAgent.ID
		}

		lead, err = s.repo.InsertLead(ctx, tx, params)
		if err != nil {
			return err
		}

		if err := s.repo.InsertDetail(ctx, tx, lead.ID, s.schemas.Filter(req.Source, req.Detail)); err != nil {
			return err
		}

		return s.repo.InsertHistory(ctx, tx, repository.InsertHistoryParams{
			LeadID:        lead.ID,
			ActingAgentID: actingAgentID,
			OldStatus:     nil,
			NewStatus:     transport.StatusNew,
			Note:          note,
		})
	})
	if err != nil {
		return transport.LeadResponse{}, abortError(err)
	}

	event := events.LeadCreated{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		Source:          lead.Source,
		AssignedAgentID: lead.AssignedAgentID,
		ContactName:     lead.ContactName,
		ContactEmail:    lead.ContactEmail,
		ContactPhone:    lead.ContactPhone,
		Message:         lead.Message,
	}
	if assignedAgent != nil {
		event.AgentEmail = assignedAgent.Email
		event.AgentName = assignedAgent.DisplayName
	}
	s.bus.Publish(ctx, event)

	return toLeadResponse(lead, nil), nil
}

// resolveAssignee makes the assignment decision: explicit assignee when
// given, otherwise the next agent in rotation, otherwise unassigned.
func (s *Service) resolveAssignee(ctx context.Context, tx pgx.Tx, req transport.CreateLeadRequest) (*repository.AssignableAgent, string, error) {
	if req.AssigneeID != nil {
		agent, active, err := s.repo.GetAssignableAgent(ctx, tx, *req.AssigneeID)
		if errors.Is(err, repository.ErrAgentNotFound) {
			return nil, "", apperr.NotFound("assignee not found")
		}
		if err != nil {
			return nil, "", err
		}
		if !active {
			return nil, "", apperr.Validation("assignee is inactive")
		}
		return &agent, noteAssignedExplicitly, nil
	}

	agent, err := s.selector.Next(ctx, tx, req.Source)
	if err != nil {
		return nil, "", err
	}
	if agent == nil {
		return nil, noteCreatedUnassigned, nil
	}
	return agent, noteAssignedViaRotation, nil
}

// GetByID retrieves a lead with its detail record.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}

	fields, err := s.repo.GetDetail(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, err
	}

	return toLeadResponse(lead, fields), nil
}

// UpdateStatus transitions a lead's status, appending to the audit trail in
// the same transaction. No transition graph is enforced; the trail records
// everything.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req transport.UpdateLeadStatusRequest) (transport.LeadResponse, error) {
	if req.Status == "" {
		return transport.LeadResponse{}, apperr.Validation("status is required")
	}

	var oldStatus string
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		oldStatus, err = s.repo.LockLeadStatus(ctx, tx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		if err != nil {
			return err
		}

		if err := s.repo.UpdateLeadStatus(ctx, tx, id, req.Status); err != nil {
			return err
		}

		old := oldStatus
		return s.repo.InsertHistory(ctx, tx, repository.InsertHistoryParams{
			LeadID:        id,
			ActingAgentID: req.ActingAgentID,
			OldStatus:     &old,
			NewStatus:     req.Status,
			Note:          req.Note,
		})
	})
	if err != nil {
		return transport.LeadResponse{}, abortError(err)
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    id,
		OldStatus: oldStatus,
		NewStatus: req.Status,
	})

	return s.GetByID(ctx, id)
}

// History returns a lead's audit trail.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]transport.HistoryEntryResponse, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, err
	}

	entries, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]transport.HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, transport.HistoryEntryResponse{
			ID:            e.ID,
			LeadID:        e.LeadID,
			ActingAgentID: e.ActingAgentID,
			OldStatus:     e.OldStatus,
			NewStatus:     e.NewStatus,
			Note:          e.Note,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out, nil
}

func validateCreate(req *transport.CreateLeadRequest) error {
	req.Source = strings.TrimSpace(req.Source)
	req.Email = strings.TrimSpace(req.Email)
	if req.Source == "" {
		return apperr.Validation("source is required")
	}
	if req.Email == "" {
		return apperr.Validation("email is required")
	}
	return nil
}

// abortError wraps transaction failures as an aborted unit of work while
// letting already-typed domain errors pass through unchanged.
func abortError(err error) error {
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return apperr.Aborted("transaction rolled back, nothing persisted", err)
}

func toLeadResponse(lead repository.Lead, fields map[string]any) transport.LeadResponse {
	return transport.LeadResponse{
		ID:              lead.ID,
		Source:          lead.Source,
		ContactName:     lead.ContactName,
		ContactEmail:    lead.ContactEmail,
		ContactPhone:    lead.ContactPhone,
		Message:         lead.Message,
		Status:          lead.Status,
		AssignedAgentID: lead.AssignedAgentID,
		Detail:          fields,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
	}
}
