// Package email delivers campaign emails over the tenant's SMTP server.
package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"outreach_backend/internal/provider"
	"outreach_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

const providerName = "email"

// SMTPSender sends campaign messages via a direct SMTP connection using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	enabled   bool
}

// NewSMTPSender creates a sender from configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		enabled:   cfg.IsEmailEnabled(),
	}
}

// Send delivers one campaign email. The body is treated as HTML when it
// contains markup, plain text otherwise.
func (s *SMTPSender) Send(ctx context.Context, toEmail, subject, body string) error {
	if !s.enabled {
		return provider.NewError(providerName, provider.CategoryValidation, 0, "smtp not configured", nil)
	}
	if strings.TrimSpace(toEmail) == "" {
		return provider.NewError(providerName, provider.CategoryValidation, 0, "missing recipient address", nil)
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return provider.NewError(providerName, provider.CategoryValidation, 0, "invalid recipient address", err)
	}
	msg.Subject(subject)
	if strings.Contains(body, "<") && strings.Contains(body, ">") {
		msg.SetBodyString(gomail.TypeTextHTML, body)
	} else {
		msg.SetBodyString(gomail.TypeTextPlain, body)
	}

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
		return provider.NewError(providerName, provider.CategoryTransient, 0, "smtp send failed", err)
	}

	return nil
}
