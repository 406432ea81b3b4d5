// Package agents provides the agent authorization bounded context: the
// relational mirror of the identity directory, the one-way sync engine that
// maintains it, and the reconciliation auditor that checks it for drift.
package agents

import (
	"leadrouter_backend/internal/agents/handler"
	"leadrouter_backend/internal/agents/repository"
	"leadrouter_backend/internal/agents/service"
	"leadrouter_backend/internal/events"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the agents bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	syncer  *service.Syncer
	auditor *service.Auditor
	repo    *repository.Repository
}

// NewModule creates and initializes the agents module with all its dependencies.
// queue may be nil when no task queue is configured; the snapshot endpoint
// then reports unavailable.
func NewModule(pool *pgxpool.Pool, dir service.Directory, queue handler.SnapshotEnqueuer, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	syncer := service.NewSyncer(repo, dir, bus, log)
	auditor := service.NewAuditor(repo, dir)
	h := handler.New(syncer, auditor, queue, val)

	return &Module{
		handler: h,
		syncer:  syncer,
		auditor: auditor,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "agents"
}

// Syncer exposes the sync engine for the change-feed consumer and the
// background worker.
func (m *Module) Syncer() *service.Syncer {
	return m.syncer
}

// Auditor exposes the reconciliation auditor for the background worker.
func (m *Module) Auditor() *service.Auditor {
	return m.auditor
}

// Repository exposes the store for the retry sweep in the worker.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts agents routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Ops.POST("/sync/agent", m.handler.HandleSyncAgent)
	ctx.Ops.POST("/sync/all", m.handler.HandleSyncAll)
	ctx.Ops.POST("/sync/snapshot", m.handler.HandleSnapshotSync)
	ctx.Ops.GET("/discrepancies", m.handler.HandleDiscrepancies)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
