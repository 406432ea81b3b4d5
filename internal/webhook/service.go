package webhook

import (
	"context"
	"time"

	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

const duplicateWindow = 60 * time.Second

// LeadCreator is the interface for creating leads. Satisfied by the leads
// service.
type LeadCreator interface {
	Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error)
}

// DuplicateFinder checks for a recently created lead with the same contact
// details. Satisfied by the leads repository.
type DuplicateFinder interface {
	FindRecentDuplicate(ctx context.Context, source, email, phone string, window time.Duration) (*uuid.UUID, error)
}

// FormSubmission represents an inbound form submission via the webhook.
type FormSubmission struct {
	Fields       map[string]string
	Source       string
	SourceDomain string
	APIKeyID     uuid.UUID
}

// FormSubmissionResponse is returned to the caller on success.
type FormSubmissionResponse struct {
	LeadID       uuid.UUID `json:"leadId"`
	IsDuplicate  bool      `json:"isDuplicate"`
	IsIncomplete bool      `json:"isIncomplete"`
	Message      string    `json:"message"`
}

// Service handles inbound form submissions.
type Service struct {
	leadCreator LeadCreator
	dupes       DuplicateFinder
	log         *logger.Logger
}

// NewService creates a new webhook service.
func NewService(leadCreator LeadCreator, dupes DuplicateFinder, log *logger.Logger) *Service {
	return &Service{leadCreator: leadCreator, dupes: dupes, log: log}
}

// ProcessFormSubmission handles an inbound form submission: extract contact
// fields, check for a recent duplicate, create the lead.
func (s *Service) ProcessFormSubmission(ctx context.Context, sub FormSubmission) (FormSubmissionResponse, error) {
	extracted := ExtractFields(sub.Fields)
	isIncomplete := extracted.IsIncomplete()

	dupID, err := s.dupes.FindRecentDuplicate(ctx, sub.Source, extracted.Email, extracted.Phone, duplicateWindow)
	if err != nil {
		s.log.Error("webhook: failed to check for duplicate lead", "error", err, "domain", sub.SourceDomain)
		// Continue anyway, better to have a duplicate than lose a lead
	} else if dupID != nil {
		s.log.Info("webhook: duplicate lead detected, skipping creation", "leadId", *dupID, "domain", sub.SourceDomain)
		return FormSubmissionResponse{
			LeadID:       *dupID,
			IsDuplicate:  true,
			IsIncomplete: isIncomplete,
			Message:      "Duplicate lead ignored",
		}, nil
	}

	leadResp, err := s.leadCreator.Create(ctx, buildCreateLeadRequest(extracted, sub))
	if err != nil {
		s.log.Error("webhook: failed to create lead from form submission", "error", err, "domain", sub.SourceDomain)
		return FormSubmissionResponse{}, err
	}

	return FormSubmissionResponse{
		LeadID:       leadResp.ID,
		IsIncomplete: isIncomplete,
		Message:      buildWebhookMessage(isIncomplete),
	}, nil
}

func buildCreateLeadRequest(extracted ExtractedFields, sub FormSubmission) transport.CreateLeadRequest {
	detail := make(map[string]any, len(extracted.Extra))
	for k, v := range extracted.Extra {
		detail[k] = v
	}
	return transport.CreateLeadRequest{
		Source:  sub.Source,
		Name:    extracted.Name,
		Email:   extracted.Email,
		Phone:   extracted.Phone,
		Message: extracted.Message,
		Detail:  detail,
	}
}

func buildWebhookMessage(isIncomplete bool) string {
	if isIncomplete {
		return "Lead created with incomplete data, manual review recommended"
	}
	return "Lead created successfully"
}
