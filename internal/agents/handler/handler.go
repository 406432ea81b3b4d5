// Package handler exposes the agents module's operational endpoints: manual
// sync triggers and the reconciliation report.
package handler

import (
	"context"
	"net/http"

	"leadrouter_backend/internal/agents/service"
	"leadrouter_backend/internal/agents/transport"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// SnapshotEnqueuer queues a full directory sync for the background worker.
// Satisfied by scheduler.Client; nil when no task queue is configured.
type SnapshotEnqueuer interface {
	EnqueueSnapshotSync(ctx context.Context) error
}

// Handler handles agents HTTP requests.
type Handler struct {
	syncer  *service.Syncer
	auditor *service.Auditor
	queue   SnapshotEnqueuer
	val     *validator.Validator
}

// New creates a new agents handler.
func New(syncer *service.Syncer, auditor *service.Auditor, queue SnapshotEnqueuer, val *validator.Validator) *Handler {
	return &Handler{syncer: syncer, auditor: auditor, queue: queue, val: val}
}

// SyncAgentRequest is the request body for syncing one agent.
type SyncAgentRequest struct {
	ExternalID string                    `json:"externalId" validate:"required,min=1,max=200"`
	Record     transport.DirectoryRecord `json:"record"`
}

// HandleSyncAgent applies one directory record.
// POST /api/v1/ops/sync/agent
func (h *Handler) HandleSyncAgent(c *gin.Context) {
	var req SyncAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	result, err := h.syncer.SyncAgent(c.Request.Context(), req.ExternalID, req.Record)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// HandleSyncAll runs a full directory snapshot sync.
// POST /api/v1/ops/sync/all
func (h *Handler) HandleSyncAll(c *gin.Context) {
	report, err := h.syncer.SyncAll(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, report)
}

// HandleSnapshotSync queues a full directory sync on the background worker
// and returns immediately. Unlike /sync/all it does not block on the sync or
// return a report; use it to force convergence on large directories.
// POST /api/v1/ops/sync/snapshot
func (h *Handler) HandleSnapshotSync(c *gin.Context) {
	if h.queue == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "task queue not configured", nil)
		return
	}

	if err := h.queue.EnqueueSnapshotSync(c.Request.Context()); err != nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "failed to queue snapshot sync", nil)
		return
	}

	httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": true})
}

// HandleDiscrepancies returns the read-only reconciliation report.
// GET /api/v1/ops/discrepancies
func (h *Handler) HandleDiscrepancies(c *gin.Context) {
	discrepancies, err := h.auditor.FindDiscrepancies(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"discrepancies": discrepancies, "count": len(discrepancies)})
}
