package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadrouter_backend/internal/agents/repository"
	"leadrouter_backend/internal/agents/transport"
	"leadrouter_backend/platform/logger"
)

type fakeSyncer struct {
	report     transport.SyncReport
	reportErr  error
	syncErrs   map[string]error
	syncedIDs  []string
	syncedRecs map[string]transport.DirectoryRecord
}

func (f *fakeSyncer) SyncAgent(ctx context.Context, externalID string, rec transport.DirectoryRecord) (transport.SyncResult, error) {
	f.syncedIDs = append(f.syncedIDs, externalID)
	if f.syncedRecs == nil {
		f.syncedRecs = make(map[string]transport.DirectoryRecord)
	}
	f.syncedRecs[externalID] = rec
	if err := f.syncErrs[externalID]; err != nil {
		return transport.SyncResult{}, err
	}
	return transport.SyncResult{}, nil
}

func (f *fakeSyncer) SyncAll(ctx context.Context) (transport.SyncReport, error) {
	return f.report, f.reportErr
}

type fakeAuditor struct {
	items []transport.Discrepancy
	err   error
}

func (f *fakeAuditor) FindDiscrepancies(ctx context.Context) ([]transport.Discrepancy, error) {
	return f.items, f.err
}

type fakeDirectoryLister struct {
	entries []transport.DirectoryEntry
	err     error
}

func (f *fakeDirectoryLister) ListAll(ctx context.Context) ([]transport.DirectoryEntry, error) {
	return f.entries, f.err
}

type fakeRetryStore struct {
	due      []repository.SyncRetry
	listErr  error
	upserted map[string]string
	deleted  []string
}

func (f *fakeRetryStore) ListDueSyncRetries(ctx context.Context, minAge time.Duration, limit int) ([]repository.SyncRetry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.due) {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeRetryStore) UpsertSyncRetry(ctx context.Context, externalID string, errMsg string) error {
	if f.upserted == nil {
		f.upserted = make(map[string]string)
	}
	f.upserted[externalID] = errMsg
	return nil
}

func (f *fakeRetryStore) DeleteSyncRetry(ctx context.Context, externalID string) error {
	f.deleted = append(f.deleted, externalID)
	return nil
}

type recordedReport struct {
	to    string
	lines []string
}

type fakeSender struct {
	reports []recordedReport
}

func (f *fakeSender) SendLeadAssignedEmail(ctx context.Context, toEmail, agentName, leadSource, contactName, contactEmail, contactPhone, message string) error {
	return nil
}

func (f *fakeSender) SendReconciliationReportEmail(ctx context.Context, toEmail string, lines []string) error {
	f.reports = append(f.reports, recordedReport{to: toEmail, lines: lines})
	return nil
}

func testWorker(syncer *fakeSyncer, auditor *fakeAuditor, dir *fakeDirectoryLister, retries *fakeRetryStore, sender *fakeSender) *Worker {
	w := &Worker{
		syncer:     syncer,
		auditor:    auditor,
		dir:        dir,
		retries:    retries,
		retryDelay: time.Minute,
		reportTo:   "ops@example.com",
		log:        logger.New("test"),
	}
	if sender != nil {
		w.sender = sender
	}
	return w
}

func TestHandleSnapshotSync_RecordsFailuresForRetry(t *testing.T) {
	syncer := &fakeSyncer{report: transport.SyncReport{
		Total:   3,
		Created: 1,
		Updated: 1,
		Failed:  1,
		Failures: []transport.SyncFailure{
			{ExternalID: "ext-bad", Error: "record missing email"},
		},
	}}
	retries := &fakeRetryStore{}
	w := testWorker(syncer, nil, nil, retries, nil)

	if err := w.handleSnapshotSync(context.Background(), NewDirectorySnapshotSyncTask()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retries.upserted["ext-bad"] != "record missing email" {
		t.Fatalf("expected failure queued for retry, got %v", retries.upserted)
	}
}

func TestHandleSnapshotSync_DirectoryFailureFailsTask(t *testing.T) {
	syncer := &fakeSyncer{reportErr: errors.New("directory unreachable")}
	w := testWorker(syncer, nil, nil, &fakeRetryStore{}, nil)

	if err := w.handleSnapshotSync(context.Background(), NewDirectorySnapshotSyncTask()); err == nil {
		t.Fatalf("expected error so the task is retried")
	}
}

func TestHandleSyncRetrySweep(t *testing.T) {
	syncer := &fakeSyncer{syncErrs: map[string]error{
		"ext-fail": errors.New("still broken"),
	}}
	dir := &fakeDirectoryLister{entries: []transport.DirectoryEntry{
		{ExternalID: "ext-ok"},
		{ExternalID: "ext-fail"},
	}}
	retries := &fakeRetryStore{due: []repository.SyncRetry{
		{ExternalID: "ext-ok", Attempts: 1},
		{ExternalID: "ext-fail", Attempts: 2},
		{ExternalID: "ext-gone", Attempts: 1},
	}}
	w := testWorker(syncer, nil, dir, retries, nil)

	task, err := NewSyncRetrySweepTask(SyncRetrySweepPayload{})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := w.handleSyncRetrySweep(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// ext-ok resynced and cleared, ext-gone dropped without a sync attempt,
	// ext-fail re-queued with the fresh error.
	if len(syncer.syncedIDs) != 2 {
		t.Fatalf("expected 2 sync attempts, got %v", syncer.syncedIDs)
	}
	wantDeleted := map[string]bool{"ext-ok": true, "ext-gone": true}
	for _, id := range retries.deleted {
		if !wantDeleted[id] {
			t.Fatalf("unexpected deletion of %s", id)
		}
		delete(wantDeleted, id)
	}
	if len(wantDeleted) != 0 {
		t.Fatalf("expected deletions missing: %v", wantDeleted)
	}
	if retries.upserted["ext-fail"] != "still broken" {
		t.Fatalf("expected failed retry re-queued, got %v", retries.upserted)
	}
}

func TestHandleSyncRetrySweep_NothingDueSkipsDirectory(t *testing.T) {
	dir := &fakeDirectoryLister{err: errors.New("must not be called")}
	w := testWorker(&fakeSyncer{}, nil, dir, &fakeRetryStore{}, nil)

	task, _ := NewSyncRetrySweepTask(SyncRetrySweepPayload{})
	if err := w.handleSyncRetrySweep(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandleSyncRetrySweep_RespectsLimit(t *testing.T) {
	syncer := &fakeSyncer{}
	dir := &fakeDirectoryLister{entries: []transport.DirectoryEntry{
		{ExternalID: "ext-1"},
		{ExternalID: "ext-2"},
	}}
	retries := &fakeRetryStore{due: []repository.SyncRetry{
		{ExternalID: "ext-1"},
		{ExternalID: "ext-2"},
	}}
	w := testWorker(syncer, nil, dir, retries, nil)

	task, _ := NewSyncRetrySweepTask(SyncRetrySweepPayload{Limit: 1})
	if err := w.handleSyncRetrySweep(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(syncer.syncedIDs) != 1 {
		t.Fatalf("expected limit honored, got %v", syncer.syncedIDs)
	}
}

func TestHandleReconciliationReport_EmailsDiscrepancies(t *testing.T) {
	auditor := &fakeAuditor{items: []transport.Discrepancy{
		{ExternalID: "ext-1", Type: transport.DiscrepancyMissingInStore},
		{ExternalID: "ext-2", Type: transport.DiscrepancySourceMismatch,
			DirectorySources: []string{"a"}, StoreSources: []string{"b"}},
	}}
	sender := &fakeSender{}
	w := testWorker(&fakeSyncer{}, auditor, nil, &fakeRetryStore{}, sender)

	if err := w.handleReconciliationReport(context.Background(), NewReconciliationReportTask()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.reports) != 1 {
		t.Fatalf("expected one report email, got %d", len(sender.reports))
	}
	report := sender.reports[0]
	if report.to != "ops@example.com" || len(report.lines) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestHandleReconciliationReport_NoRecipientNoEmail(t *testing.T) {
	auditor := &fakeAuditor{items: []transport.Discrepancy{
		{ExternalID: "ext-1", Type: transport.DiscrepancyMissingInStore},
	}}
	sender := &fakeSender{}
	w := testWorker(&fakeSyncer{}, auditor, nil, &fakeRetryStore{}, sender)
	w.reportTo = ""

	if err := w.handleReconciliationReport(context.Background(), NewReconciliationReportTask()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.reports) != 0 {
		t.Fatalf("expected no email without a recipient, got %v", sender.reports)
	}
}

func TestHandleReconciliationReport_AuditFailureFailsTask(t *testing.T) {
	auditor := &fakeAuditor{err: errors.New("directory unreachable")}
	w := testWorker(&fakeSyncer{}, auditor, nil, &fakeRetryStore{}, nil)

	if err := w.handleReconciliationReport(context.Background(), NewReconciliationReportTask()); err == nil {
		t.Fatalf("expected error so the task is retried")
	}
}
