// Package email delivers transactional email over SMTP.
package email

import (
	"context"

	"leadrouter_backend/platform/config"
)

const (
	subjectLeadAssigned    = "Nieuwe lead toegewezen"
	subjectDailyReportFmt  = "Synchronisatierapport: %d afwijkingen"
	subjectDailyReportNone = "Synchronisatierapport: geen afwijkingen"
)

// Sender is the outbound email interface. Satisfied by SMTPSender.
type Sender interface {
	SendLeadAssignedEmail(ctx context.Context, toEmail, agentName, leadSource, contactName, contactEmail, contactPhone, message string) error
	SendReconciliationReportEmail(ctx context.Context, toEmail string, lines []string) error
}

// NoopSender swallows all email, used when sending is disabled.
type NoopSender struct{}

func (NoopSender) SendLeadAssignedEmail(ctx context.Context, toEmail, agentName, leadSource, contactName, contactEmail, contactPhone, message string) error {
	return nil
}

func (NoopSender) SendReconciliationReportEmail(ctx context.Context, toEmail string, lines []string) error {
	return nil
}

// NewSender returns the configured Sender, or a NoopSender when email
// delivery is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}
