// Package leads provides the lead intake bounded context: the assignment
// transaction, round-robin selection, and the status history trail.
package leads

import (
	"leadrouter_backend/internal/events"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/internal/leads/detail"
	"leadrouter_backend/internal/leads/handler"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/rotation"
	"leadrouter_backend/internal/leads/service"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.RotationConfig, schemas *detail.Registry, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	selector := rotation.New(repo, cfg.DegradeOnStoreError(), log)
	svc := service.New(repo, selector, schemas, bus)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service exposes lead creation for the webhook gateway.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the store for the webhook duplicate check.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/leads")
	group.POST("", m.handler.HandleCreate)
	group.GET("/:leadId", m.handler.HandleGet)
	group.PATCH("/:leadId/status", m.handler.HandleUpdateStatus)
	group.GET("/:leadId/history", m.handler.HandleHistory)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
