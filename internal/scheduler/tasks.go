package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskDirectorySnapshotSync = "directory.snapshot.sync"

const TaskSyncRetrySweep = "directory.retry.sweep"

const TaskReconciliationReport = "agents.reconcile.report"

type SyncRetrySweepPayload struct {
	Limit int `json:"limit"`
}

func NewDirectorySnapshotSyncTask() *asynq.Task {
	return asynq.NewTask(TaskDirectorySnapshotSync, nil)
}

func NewSyncRetrySweepTask(payload SyncRetrySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncRetrySweep, data), nil
}

func ParseSyncRetrySweepPayload(task *asynq.Task) (SyncRetrySweepPayload, error) {
	var payload SyncRetrySweepPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SyncRetrySweepPayload{}, err
	}
	return payload, nil
}

func NewReconciliationReportTask() *asynq.Task {
	return asynq.NewTask(TaskReconciliationReport, nil)
}
