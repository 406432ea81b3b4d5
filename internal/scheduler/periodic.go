package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the recurring jobs with asynq's scheduler: the snapshot
// sync backstop, the retry sweep, and the reconciliation report.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, dirCfg config.DirectoryConfig, recCfg config.ReconcileConfig, log *logger.Logger) (*Periodic, error) {
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

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Error("failed to enqueue periodic task", "error", err)
			}
		},
	})

	register := func(interval time.Duration, task *asynq.Task) error {
		_, err := scheduler.Register(everySpec(interval), task, asynq.Queue(queue))
		return err
	}

	sweepTask, err := NewSyncRetrySweepTask(SyncRetrySweepPayload{Limit: retrySweepBatchSize})
	if err != nil {
		return nil, err
	}

	if err := register(dirCfg.GetSyncSnapshotInterval(), NewDirectorySnapshotSyncTask()); err != nil {
		return nil, err
	}
	if err := register(dirCfg.GetSyncRetryInterval(), sweepTask); err != nil {
		return nil, err
	}
	if err := register(recCfg.GetAuditInterval(), NewReconciliationReportTask()); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run blocks until the context is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}

func everySpec(interval time.Duration) string {
	if interval < time.Minute {
		interval = time.Minute
	}
	return "@every " + interval.String()
}
