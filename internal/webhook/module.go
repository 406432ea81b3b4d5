// Package webhook provides the form capture gateway module.
// This file defines the module that encapsulates all webhook setup and route registration.
package webhook

import (
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the webhook gateway module implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
	limiter *httpkit.RateLimiter
}

// NewModule creates and initializes the webhook module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.WebhookConfig, leadCreator LeadCreator, dupes DuplicateFinder, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(leadCreator, dupes, log)
	handler := NewHandler(service, repo, val)

	return &Module{
		handler: handler,
		repo:    repo,
		limiter: httpkit.NewRateLimiter(cfg.GetWebhookRatePerMinute(), log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public webhook endpoint (API key auth, rate limited)
	webhookGroup := ctx.V1.Group("/webhook")
	webhookGroup.Use(m.limiter.Middleware(), APIKeyAuthMiddleware(m.repo))
	webhookGroup.POST("/forms", m.handler.HandleFormSubmission)

	// API key management on the ops surface
	keysGroup := ctx.Ops.Group("/webhook/keys")
	keysGroup.POST("", m.handler.HandleCreateAPIKey)
	keysGroup.GET("", m.handler.HandleListAPIKeys)
	keysGroup.DELETE("/:keyId", m.handler.HandleRevokeAPIKey)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
