package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadrouter_backend/internal/agents/repository"
	"leadrouter_backend/internal/agents/transport"
	"leadrouter_backend/internal/email"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const retrySweepBatchSize = 100

// Syncer applies directory records to the relational store. Satisfied by the
// agents service.
type Syncer interface {
	SyncAgent(ctx context.Context, externalID string, rec transport.DirectoryRecord) (transport.SyncResult, error)
	SyncAll(ctx context.Context) (transport.SyncReport, error)
}

// Auditor compares both stores. Satisfied by the agents auditor.
type Auditor interface {
	FindDiscrepancies(ctx context.Context) ([]transport.Discrepancy, error)
}

// Directory lists the full directory snapshot.
type Directory interface {
	ListAll(ctx context.Context) ([]transport.DirectoryEntry, error)
}

// RetryStore manages the pending-retry set for failed change-feed syncs.
type RetryStore interface {
	ListDueSyncRetries(ctx context.Context, minAge time.Duration, limit int) ([]repository.SyncRetry, error)
	UpsertSyncRetry(ctx context.Context, externalID string, errMsg string) error
	DeleteSyncRetry(ctx context.Context, externalID string) error
}

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	syncer     Syncer
	auditor    Auditor
	dir        Directory
	retries    RetryStore
	sender     email.Sender
	retryDelay time.Duration
	reportTo   string
	log        *logger.Logger
}

type WorkerDeps struct {
	Syncer  Syncer
	Auditor Auditor
	Dir     Directory
	Retries RetryStore
	Sender  email.Sender
}

func NewWorker(cfg config.SchedulerConfig, dirCfg config.DirectoryConfig, recCfg config.ReconcileConfig, deps WorkerDeps, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		syncer:     deps.Syncer,
		auditor:    deps.Auditor,
		dir:        deps.Dir,
		retries:    deps.Retries,
		sender:     deps.Sender,
		retryDelay: dirCfg.GetSyncRetryDelay(),
		reportTo:   recCfg.GetOpsReportEmail(),
		log:        log,
	}

	mux.HandleFunc(TaskDirectorySnapshotSync, w.handleSnapshotSync)
	mux.HandleFunc(TaskSyncRetrySweep, w.handleSyncRetrySweep)
	mux.HandleFunc(TaskReconciliationReport, w.handleReconciliationReport)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleSnapshotSync runs a full directory sync. Per-agent failures are
// reported, not fatal; the task only fails when the directory itself is
// unreachable so asynq retries it.
func (w *Worker) handleSnapshotSync(ctx context.Context, _ *asynq.Task) error {
	report, err := w.syncer.SyncAll(ctx)
	if err != nil {
		return err
	}

	w.log.Info("directory snapshot sync completed",
		"total", report.Total,
		"created", report.Created,
		"updated", report.Updated,
		"failed", report.Failed,
	)
	for _, f := range report.Failures {
		if err := w.retries.UpsertSyncRetry(ctx, f.ExternalID, f.Error); err != nil {
			w.log.Error("failed to record sync retry", "externalId", f.ExternalID, "error", err)
		}
	}
	return nil
}

// handleSyncRetrySweep re-applies directory records for agents whose last
// change-feed sync failed. Entries are dropped once the agent syncs cleanly
// or has disappeared from the directory.
func (w *Worker) handleSyncRetrySweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSyncRetrySweepPayload(task)
	if err != nil {
		return err
	}
	limit := payload.Limit
	if limit < 1 {
		limit = retrySweepBatchSize
	}

	due, err := w.retries.ListDueSyncRetries(ctx, w.retryDelay, limit)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	entries, err := w.dir.ListAll(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]transport.DirectoryRecord, len(entries))
	for _, e := range entries {
		byID[e.ExternalID] = e.Record
	}

	for _, retry := range due {
		rec, ok := byID[retry.ExternalID]
		if !ok {
			w.log.Info("dropping sync retry for agent no longer in directory", "externalId", retry.ExternalID)
			if err := w.retries.DeleteSyncRetry(ctx, retry.ExternalID); err != nil {
				w.log.Error("failed to drop sync retry", "externalId", retry.ExternalID, "error", err)
			}
			continue
		}

		if _, err := w.syncer.SyncAgent(ctx, retry.ExternalID, rec); err != nil {
			w.log.Error("sync retry failed",
				"externalId", retry.ExternalID,
				"attempts", retry.Attempts,
				"error", err,
			)
			if err := w.retries.UpsertSyncRetry(ctx, retry.ExternalID, err.Error()); err != nil {
				w.log.Error("failed to record sync retry", "externalId", retry.ExternalID, "error", err)
			}
			continue
		}

		if err := w.retries.DeleteSyncRetry(ctx, retry.ExternalID); err != nil {
			w.log.Error("failed to clear sync retry", "externalId", retry.ExternalID, "error", err)
		}
	}
	return nil
}

// handleReconciliationReport audits both stores and reports what diverged.
func (w *Worker) handleReconciliationReport(ctx context.Context, _ *asynq.Task) error {
	discrepancies, err := w.auditor.FindDiscrepancies(ctx)
	if err != nil {
		return err
	}

	w.log.Info("reconciliation audit completed", "discrepancies", len(discrepancies))

	lines := make([]string, 0, len(discrepancies))
	for _, d := range discrepancies {
		line := formatDiscrepancy(d)
		w.log.Warn("store discrepancy", "externalId", d.ExternalID, "type", d.Type, "detail", line)
		lines = append(lines, line)
	}

	if w.sender == nil || w.reportTo == "" {
		return nil
	}
	if err := w.sender.SendReconciliationReportEmail(ctx, w.reportTo, lines); err != nil {
		w.log.Error("failed to send reconciliation report", "error", err)
	}
	return nil
}

func formatDiscrepancy(d transport.Discrepancy) string {
	switch d.Type {
	case transport.DiscrepancyMissingInStore:
		return fmt.Sprintf("%s: present in directory, missing in store", d.ExternalID)
	case transport.DiscrepancySourceMismatch:
		return fmt.Sprintf("%s: directory sources %v, store sources %v", d.ExternalID, d.DirectorySources, d.StoreSources)
	default:
		return fmt.Sprintf("%s: %s", d.ExternalID, d.Type)
	}
}
