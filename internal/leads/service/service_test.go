package service

import (
	"context"
	"errors"
	"testing"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/leads/detail"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type storedAgent struct {
	agent  repository.AssignableAgent
	active bool
}

type fakeStore struct {
	leads   map[uuid.UUID]repository.Lead
	details map[uuid.UUID]map[string]any
	history []repository.HistoryEntry
	agents  map[uuid.UUID]storedAgent

	detailErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:   make(map[uuid.UUID]repository.Lead),
		details: make(map[uuid.UUID]map[string]any),
		agents:  make(map[uuid.UUID]storedAgent),
	}
}

// WithTx mimics transactional rollback by restoring the pre-call state when
// fn returns an error.
func (f *fakeStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	leadsSnap := make(map[uuid.UUID]repository.Lead, len(f.leads))
	for k, v := range f.leads {
		leadsSnap[k] = v
	}
	detailsSnap := make(map[uuid.UUID]map[string]any, len(f.details))
	for k, v := range f.details {
		detailsSnap[k] = v
	}
	historySnap := append([]repository.HistoryEntry(nil), f.history...)

	if err := fn(nil); err != nil {
		f.leads = leadsSnap
		f.details = detailsSnap
		f.history = historySnap
		return err
	}
	return nil
}

func (f *fakeStore) InsertLead(ctx context.Context, tx pgx.Tx, params repository.InsertLeadParams) (repository.Lead, error) {
	lead := repository.Lead{
		ID:              uuid.New(),
		Source:          params.Source,
		ContactName:     params.ContactName,
		ContactEmail:    params.ContactEmail,
		ContactPhone:    params.ContactPhone,
		Message:         params.Message,
		Status:          transport.StatusNew,
		AssignedAgentID: params.AssignedAgentID,
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) InsertDetail(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, fields map[string]any) error {
	if f.detailErr != nil {
		return f.detailErr
	}
	f.details[leadID] = fields
	return nil
}

func (f *fakeStore) InsertHistory(ctx context.Context, tx pgx.Tx, params repository.InsertHistoryParams) error {
	f.history = append(f.history, repository.HistoryEntry{
		ID:            uuid.New(),
		LeadID:        params.LeadID,
		ActingAgentID: params.ActingAgentID,
		OldStatus:     params.OldStatus,
		NewStatus:     params.NewStatus,
		Note:          params.Note,
	})
	return nil
}

func (f *fakeStore) GetAssignableAgent(ctx context.Context, tx pgx.Tx, id uuid.UUID) (repository.AssignableAgent, bool, error) {
	sa, ok := f.agents[id]
	if !ok {
		return repository.AssignableAgent{}, false, repository.ErrAgentNotFound
	}
	return sa.agent, sa.active, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) GetDetail(ctx context.Context, leadID uuid.UUID) (map[string]any, error) {
	fields, ok := f.details[leadID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return fields, nil
}

func (f *fakeStore) LockLeadStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, error) {
	lead, ok := f.leads[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return lead.Status, nil
}

func (f *fakeStore) UpdateLeadStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	lead, ok := f.leads[id]
	if !ok {
		return repository.ErrNotFound
	}
	lead.Status = status
	f.leads[id] = lead
	return nil
}

func (f *fakeStore) ListHistory(ctx context.Context, leadID uuid.UUID) ([]repository.HistoryEntry, error) {
	entries := make([]repository.HistoryEntry, 0)
	for _, e := range f.history {
		if e.LeadID == leadID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type fakeSelector struct {
	agent *repository.AssignableAgent
	err   error
	calls int
}

func (f *fakeSelector) Next(ctx context.Context, tx pgx.Tx, source string) (*repository.AssignableAgent, error) {
	f.calls++
	return f.agent, f.err
}

func newTestService(store *fakeStore, selector AgentSelector) *Service {
	schemas := detail.NewRegistry([]string{"notes"}, map[string][]string{
		"mortgage": {"propertyValue"},
	})
	return New(store, selector, schemas, events.NewInMemoryBus(logger.New("test")))
}

func validRequest() transport.CreateLeadRequest {
	return transport.CreateLeadRequest{
		Source: "mortgage",
		Name:   "Jan Jansen",
		Email:  "jan@example.com",
		Phone:  "+31612345678",
	}
}

func TestCreate_AssignsViaRotation(t *testing.T) {
	store := newFakeStore()
	agent := repository.AssignableAgent{ID: uuid.New(), Email: "agent@example.com", DisplayName: "Agent"}
	selector := &fakeSelector{agent: &agent}
	svc := newTestService(store, selector)

	got, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AssignedAgentID == nil || *got.AssignedAgentID != agent.ID {
		t.Fatalf("expected lead assigned to %s, got %v", agent.ID, got.AssignedAgentID)
	}
	if got.Status != transport.StatusNew {
		t.Fatalf("expected status new, got %s", got.Status)
	}
	if len(store.history) != 1 {
		t.Fatalf("expected one history entry, got %d", len(store.history))
	}
	entry := store.history[0]
	if entry.Note != noteAssignedViaRotation {
		t.Fatalf("unexpected history note: %q", entry.Note)
	}
	if entry.OldStatus != nil || entry.NewStatus != transport.StatusNew {
		t.Fatalf("unexpected history statuses: %v -> %s", entry.OldStatus, entry.NewStatus)
	}
	if entry.ActingAgentID == nil || *entry.ActingAgentID != agent.ID {
		t.Fatalf("expected acting agent recorded, got %v", entry.ActingAgentID)
	}
}

func TestCreate_UnassignedWhenRotationEmpty(t *testing.T) {
	store := newFakeStore()
	selector := &fakeSelector{}
	svc := newTestService(store, selector)

	got, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AssignedAgentID != nil {
		t.Fatalf("expected unassigned lead, got %v", got.AssignedAgentID)
	}
	if len(store.history) != 1 || store.history[0].Note != noteCreatedUnassigned {
		t.Fatalf("expected unassigned creation note, got %v", store.history)
	}
}

func TestCreate_ExplicitAssigneeBypassesRotation(t *testing.T) {
	store := newFakeStore()
	agent := repository.AssignableAgent{ID: uuid.New(), Email: "agent@example.com"}
	store.agents[agent.ID] = storedAgent{agent: agent, active: true}
	selector := &fakeSelector{}
	svc := newTestService(store, selector)

	req := validRequest()
	req.AssigneeID = &agent.ID

	got, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AssignedAgentID == nil || *got.AssignedAgentID != agent.ID {
		t.Fatalf("expected explicit assignee, got %v", got.AssignedAgentID)
	}
	if selector.calls != 0 {
		t.Fatalf("rotation must not run for explicit assignment, ran %d times", selector.calls)
	}
	if store.history[0].Note != noteAssignedExplicitly {
		t.Fatalf("unexpected history note: %q", store.history[0].Note)
	}
}

func TestCreate_UnknownAssigneeRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSelector{})

	req := validRequest()
	id := uuid.New()
	req.AssigneeID = &id

	_, err := svc.Create(context.Background(), req)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(store.leads) != 0 || len(store.history) != 0 {
		t.Fatalf("expected nothing persisted after rejected assignee")
	}
}

func TestCreate_InactiveAssigneeRejected(t *testing.T) {
	store := newFakeStore()
	agent := repository.AssignableAgent{ID: uuid.New()}
	store.agents[agent.ID] = storedAgent{agent: agent, active: false}
	svc := newTestService(store, &fakeSelector{})

	req := validRequest()
	req.AssigneeID = &agent.ID

	_, err := svc.Create(context.Background(), req)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error for inactive assignee, got %v", err)
	}
}

func TestCreate_DetailFailureRollsBackEverything(t *testing.T) {
	store := newFakeStore()
	store.detailErr = errors.New("disk full")
	svc := newTestService(store, &fakeSelector{})

	_, err := svc.Create(context.Background(), validRequest())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindAborted {
		t.Fatalf("expected aborted error, got %v", err)
	}
	if len(store.leads) != 0 || len(store.details) != 0 || len(store.history) != 0 {
		t.Fatalf("expected full rollback, got leads=%d details=%d history=%d",
			len(store.leads), len(store.details), len(store.history))
	}
}

func TestCreate_SelectorFailureAborts(t *testing.T) {
	store := newFakeStore()
	selector := &fakeSelector{err: apperr.Unavailable("authorization store unreachable", errors.New("down"))}
	svc := newTestService(store, selector)

	_, err := svc.Create(context.Background(), validRequest())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindUnavailable {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if len(store.leads) != 0 {
		t.Fatalf("expected no lead persisted when selection fails")
	}
}

func TestCreate_RequiresSourceAndEmail(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSelector{})

	for _, tc := range []struct {
		name string
		mut  func(*transport.CreateLeadRequest)
	}{
		{"missing source", func(r *transport.CreateLeadRequest) { r.Source = " " }},
		{"missing email", func(r *transport.CreateLeadRequest) { r.Email = "" }},
	} {
		req := validRequest()
		tc.mut(&req)
		_, err := svc.Create(context.Background(), req)
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
	if len(store.leads) != 0 {
		t.Fatalf("validation failures must not reach the store")
	}
}

func TestCreate_FiltersUnknownDetailFields(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSelector{})

	req := validRequest()
	req.Detail = map[string]any{
		"propertyValue": 450000,
		"notes":         "call after 17:00",
		"unknownField":  "dropped",
	}

	got, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := store.details[got.ID]
	if _, ok := fields["propertyValue"]; !ok {
		t.Fatalf("expected source field kept, got %v", fields)
	}
	if _, ok := fields["notes"]; !ok {
		t.Fatalf("expected common field kept, got %v", fields)
	}
	if _, ok := fields["unknownField"]; ok {
		t.Fatalf("expected unknown field dropped, got %v", fields)
	}
}

func TestCreate_NormalizesPhone(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSelector{})

	req := validRequest()
	req.Phone = "06 12 34 56 78"

	got, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ContactPhone != "+31612345678" {
		t.Fatalf("expected normalized phone, got %q", got.ContactPhone)
	}
}

func TestUpdateStatus_AppendsHistory(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSelector{})

	created, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	actingID := uuid.New()
	got, err := svc.UpdateStatus(context.Background(), created.ID, transport.UpdateLeadStatusRequest{
		Status:        transport.StatusContacted,
		ActingAgentID: &actingID,
		Note:          "spoke on the phone",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != transport.StatusContacted {
		t.Fatalf("expected status contacted, got %s", got.Status)
	}

	entries, err := svc.History(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	last := entries[1]
	if last.OldStatus == nil || *last.OldStatus != transport.StatusNew {
		t.Fatalf("expected old status recorded, got %v", last.OldStatus)
	}
	if last.NewStatus != transport.StatusContacted || last.Note != "spoke on the phone" {
		t.Fatalf("unexpected history entry: %+v", last)
	}
}

func TestUpdateStatus_UnknownLead(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSelector{})

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), transport.UpdateLeadStatusRequest{
		Status: transport.StatusContacted,
	})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetByID_MissingDetailRecordTolerated(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSelector{})

	created, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	delete(store.details, created.ID)

	got, err := svc.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("unexpected lead: %+v", got)
	}
}

func TestHistory_UnknownLead(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSelector{})

	_, err := svc.History(context.Background(), uuid.New())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
