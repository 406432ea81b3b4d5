package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendLeadAssignedEmail notifies an agent that a new lead landed on their desk.
func (s *SMTPSender) SendLeadAssignedEmail(ctx context.Context, toEmail, agentName, leadSource, contactName, contactEmail, contactPhone, message string) error {
	content, err := renderEmailTemplate("lead_assigned.html", leadAssignedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Nieuwe lead toegewezen",
			Heading: "Nieuwe lead toegewezen",
		},
		AgentName:    agentName,
		LeadSource:   leadSource,
		ContactName:  contactName,
		ContactEmail: contactEmail,
		ContactPhone: contactPhone,
		Message:      message,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectLeadAssigned, content)
}

// SendReconciliationReportEmail mails the audit outcome to operations.
func (s *SMTPSender) SendReconciliationReportEmail(ctx context.Context, toEmail string, lines []string) error {
	subject := subjectDailyReportNone
	if len(lines) > 0 {
		subject = fmt.Sprintf(subjectDailyReportFmt, len(lines))
	}
	content, err := renderEmailTemplate("reconciliation_report.html", reconciliationReportEmailData{
		baseEmailData: baseEmailData{
			Title:   "Synchronisatierapport",
			Heading: "Synchronisatierapport",
		},
		Lines: lines,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}
