package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeadCreator struct {
	lastReq transport.CreateLeadRequest
	resp    transport.LeadResponse
	err     error
	calls   int
}

func (f *fakeLeadCreator) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

type fakeDuplicateFinder struct {
	dupID *uuid.UUID
	err   error
}

func (f *fakeDuplicateFinder) FindRecentDuplicate(ctx context.Context, source, email, phone string, window time.Duration) (*uuid.UUID, error) {
	return f.dupID, f.err
}

func submission() FormSubmission {
	return FormSubmission{
		Fields: map[string]string{
			"naam":     "Jan Jansen",
			"email":    "jan@example.com",
			"telefoon": "0612345678",
			"budget":   "450000",
		},
		Source:       "mortgage",
		SourceDomain: "forms.example.com",
		APIKeyID:     uuid.New(),
	}
}

func TestProcessFormSubmission_CreatesLead(t *testing.T) {
	leadID := uuid.New()
	creator := &fakeLeadCreator{resp: transport.LeadResponse{ID: leadID}}
	svc := NewService(creator, &fakeDuplicateFinder{}, logger.New("test"))

	got, err := svc.ProcessFormSubmission(context.Background(), submission())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LeadID != leadID || got.IsDuplicate || got.IsIncomplete {
		t.Fatalf("unexpected response: %+v", got)
	}
	if creator.lastReq.Source != "mortgage" || creator.lastReq.Email != "jan@example.com" {
		t.Fatalf("unexpected create request: %+v", creator.lastReq)
	}
	if creator.lastReq.Detail["budget"] != "450000" {
		t.Fatalf("expected unmatched form field passed as detail, got %v", creator.lastReq.Detail)
	}
}

func TestProcessFormSubmission_DuplicateSkipsCreation(t *testing.T) {
	dupID := uuid.New()
	creator := &fakeLeadCreator{}
	svc := NewService(creator, &fakeDuplicateFinder{dupID: &dupID}, logger.New("test"))

	got, err := svc.ProcessFormSubmission(context.Background(), submission())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsDuplicate || got.LeadID != dupID {
		t.Fatalf("expected duplicate response, got %+v", got)
	}
	if creator.calls != 0 {
		t.Fatalf("expected no lead created for duplicate, got %d calls", creator.calls)
	}
}

func TestProcessFormSubmission_DuplicateCheckFailureStillCreates(t *testing.T) {
	leadID := uuid.New()
	creator := &fakeLeadCreator{resp: transport.LeadResponse{ID: leadID}}
	svc := NewService(creator, &fakeDuplicateFinder{err: errors.New("db down")}, logger.New("test"))

	got, err := svc.ProcessFormSubmission(context.Background(), submission())
	if err != nil {
		t.Fatalf("expected creation despite failed duplicate check, got %v", err)
	}
	if got.LeadID != leadID {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestProcessFormSubmission_IncompleteStillCreated(t *testing.T) {
	creator := &fakeLeadCreator{resp: transport.LeadResponse{ID: uuid.New()}}
	svc := NewService(creator, &fakeDuplicateFinder{}, logger.New("test"))

	sub := submission()
	delete(sub.Fields, "telefoon")

	got, err := svc.ProcessFormSubmission(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsIncomplete {
		t.Fatalf("expected incomplete flag, got %+v", got)
	}
	if creator.calls != 1 {
		t.Fatalf("expected lead still created, got %d calls", creator.calls)
	}
}

func TestProcessFormSubmission_CreationFailurePropagates(t *testing.T) {
	creator := &fakeLeadCreator{err: apperr.Validation("email is required")}
	svc := NewService(creator, &fakeDuplicateFinder{}, logger.New("test"))

	_, err := svc.ProcessFormSubmission(context.Background(), submission())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error passed through, got %v", err)
	}
}
