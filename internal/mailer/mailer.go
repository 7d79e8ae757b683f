package mailer

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"legaldoc-backend/internal/shared/telemetry"
)

const resetSubject = "Reset your password - AI Legal Doc Explainer"

// Sender delivers account emails.
type Sender interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// SMTPOptions configures SMTPSender.
type SMTPOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender sends mail through an SMTP relay using STARTTLS when offered.
type SMTPSender struct {
	opts SMTPOptions
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New returns an SMTP sender when a host is configured and a LogSender otherwise.
func New(opts SMTPOptions) Sender {
	if strings.TrimSpace(opts.Host) == "" {
		return LogSender{}
	}
	if opts.Port == 0 {
		opts.Port = 587
	}
	if strings.TrimSpace(opts.From) == "" {
		opts.From = "no-reply@example.com"
	}
	return &SMTPSender{opts: opts, send: smtp.SendMail}
}

// SendPasswordReset mails the reset link.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.opts.User != "" {
		auth = smtp.PlainAuth("", s.opts.User, s.opts.Password, s.opts.Host)
	}
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	if err := s.send(addr, auth, s.opts.From, []string{to}, buildResetMessage(s.opts.From, to, resetURL)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	telemetry.Info("mailer.reset.sent", map[string]any{"request_id": telemetry.RequestIDFromContext(ctx)})
	return nil
}

func buildResetMessage(from, to, resetURL string) []byte {
	link := html.EscapeString(resetURL)
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", resetSubject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString("<p>You requested a password reset.</p>\r\n")
	b.WriteString("<p>Click the link below to reset your password:</p>\r\n")
	fmt.Fprintf(&b, "<p><a href=\"%s\">%s</a></p>\r\n", link, link)
	b.WriteString("<p>If you did not request this, you can ignore this email.</p>\r\n")
	return []byte(b.String())
}

// LogSender logs the reset link instead of sending it. Used when SMTP is not configured.
type LogSender struct{}

// SendPasswordReset logs the link.
func (LogSender) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	telemetry.Warn("mailer.smtp_not_configured", map[string]any{
		"request_id": telemetry.RequestIDFromContext(ctx),
		"to":         to,
		"reset_url":  resetURL,
	})
	return nil
}
