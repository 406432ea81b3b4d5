// Package notification provides event handlers for sending notifications in
// response to domain events. This module subscribes to events and inverts
// the dependency: domain modules never touch email providers or templates.
package notification

import (
	"context"
	"fmt"

	"leadrouter_backend/internal/email"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/platform/logger"
)

// Module listens for domain events and dispatches email notifications.
// Delivery is best effort: failures are logged, never propagated back into
// the operation that raised the event.
type Module struct {
	sender email.Sender
	log    *logger.Logger
}

// NewModule creates the notification module.
func NewModule(sender email.Sender, log *logger.Logger) *Module {
	return &Module{sender: sender, log: log}
}

// Register subscribes the module to the events it handles.
func (m *Module) Register(bus events.Bus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), m)
	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		return m.handleLeadCreated(ctx, e)
	default:
		return fmt.Errorf("notification: unexpected event %s", event.EventName())
	}
}

func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadCreated) error {
	if e.AssignedAgentID == nil || e.AgentEmail == "" {
		return nil
	}

	if err := m.sender.SendLeadAssignedEmail(ctx,
		e.AgentEmail, e.AgentName, e.Source,
		e.ContactName, e.ContactEmail, e.ContactPhone, e.Message,
	); err != nil {
		m.log.Error("failed to send lead assignment email",
			"leadId", e.LeadID,
			"agentId", *e.AssignedAgentID,
			"error", err,
		)
	}
	return nil
}
